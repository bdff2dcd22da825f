package models

import (
	"time"

	"github.com/soybean-admin/uniauth/pkg/constants"
)

// AuditEvent records a security-relevant action for the async audit trail.
type AuditEvent struct {
	ID          string                   `json:"id"`
	Type        constants.AuditEventType `json:"type"`
	IdentityID  string                   `json:"identity_id,omitempty"`
	TokenID     string                   `json:"token_id,omitempty"`
	ServiceName string                   `json:"service_name,omitempty"`
	ClientIP    string                   `json:"client_ip,omitempty"`
	RequestID   string                   `json:"request_id,omitempty"`
	Detail      string                   `json:"detail,omitempty"`
	Timestamp   time.Time                `json:"timestamp"`
}
