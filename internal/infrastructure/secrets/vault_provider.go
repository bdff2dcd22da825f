// Package secrets resolves JWT signing secrets at startup.
package secrets

import (
	"context"
	"fmt"

	vault "github.com/hashicorp/vault/api"

	"github.com/soybean-admin/uniauth/internal/config"
	"github.com/soybean-admin/uniauth/internal/domain/service"
	"github.com/soybean-admin/uniauth/pkg/constants"
	"github.com/soybean-admin/uniauth/pkg/logger"
)

var (
	_ service.SecretSource = (*StaticSource)(nil)
	_ service.SecretSource = (*VaultSource)(nil)
)

// StaticSource serves secrets straight from configuration.
type StaticSource struct {
	access  string
	refresh string
}

// NewStaticSource wraps config-provided secrets.
func NewStaticSource(cfg *config.AuthConfig) *StaticSource {
	return &StaticSource{access: cfg.AccessTokenSecret, refresh: cfg.RefreshTokenSecret}
}

// SigningSecrets returns the configured secrets.
func (s *StaticSource) SigningSecrets(context.Context) (string, string, error) {
	return s.access, s.refresh, nil
}

// VaultSource reads the signing secrets from a HashiCorp Vault KV-v2 mount.
// The secret document must carry "access_token_secret" and
// "refresh_token_secret" string fields.
type VaultSource struct {
	client     *vault.Client
	mountPath  string
	secretPath string
	log        logger.Logger
}

// NewVaultSource creates a Vault-backed secret source. Token auth only; any
// richer auth method is expected to populate VAULT_TOKEN out of band.
func NewVaultSource(cfg *config.VaultConfig, log logger.Logger) (*VaultSource, error) {
	vaultConfig := vault.DefaultConfig()
	vaultConfig.Address = cfg.Address

	client, err := vault.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	if cfg.Token != "" {
		client.SetToken(cfg.Token)
	}

	return &VaultSource{
		client:     client,
		mountPath:  cfg.MountPath,
		secretPath: cfg.SecretPath,
		log:        log.WithComponent("vault_secrets"),
	}, nil
}

// SigningSecrets fetches both signing secrets from the KV-v2 document.
func (s *VaultSource) SigningSecrets(ctx context.Context) (string, string, error) {
	secret, err := s.client.KVv2(s.mountPath).Get(ctx, s.secretPath)
	if err != nil {
		return "", "", fmt.Errorf("failed to read signing secrets from vault: %w", err)
	}
	if secret == nil || secret.Data == nil {
		return "", "", fmt.Errorf("vault secret %s/%s is empty", s.mountPath, s.secretPath)
	}

	access, ok := secret.Data["access_token_secret"].(string)
	if !ok || access == "" {
		return "", "", fmt.Errorf("vault secret is missing access_token_secret")
	}
	refresh, ok := secret.Data["refresh_token_secret"].(string)
	if !ok || refresh == "" {
		return "", "", fmt.Errorf("vault secret is missing refresh_token_secret")
	}

	s.log.Info(ctx, "signing secrets loaded from vault",
		logger.String("mount", s.mountPath),
		logger.String("path", s.secretPath),
	)
	return access, refresh, nil
}

// Validate applies the same strength rules to resolved secrets that the
// configuration loader applies to static ones. An external secret manager is
// just as capable of serving a weak or duplicated secret.
func Validate(access, refresh string) error {
	if len(access) < constants.MinSecretLength {
		return fmt.Errorf("access token secret must be at least %d characters long", constants.MinSecretLength)
	}
	if len(refresh) < constants.MinSecretLength {
		return fmt.Errorf("refresh token secret must be at least %d characters long", constants.MinSecretLength)
	}
	if access == refresh {
		return fmt.Errorf("access and refresh token secrets must differ")
	}
	return nil
}
