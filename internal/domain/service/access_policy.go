package service

import (
	"github.com/soybean-admin/uniauth/internal/domain/models"
	apperrors "github.com/soybean-admin/uniauth/pkg/errors"
)

// AccessPolicy evaluates route requirements against an authenticated identity.
// Role and permission requirements are independent gates: each list grants
// access when the identity holds at least one of its entries, and both gates
// must pass when both are declared.
type AccessPolicy struct{}

// NewAccessPolicy creates the role/permission evaluator.
func NewAccessPolicy() *AccessPolicy {
	return &AccessPolicy{}
}

// Authorize checks identity against the requirement. A nil identity is only
// acceptable for public or optional routes.
func (p *AccessPolicy) Authorize(identity *models.Identity, req *models.RouteRequirement) error {
	if req == nil || req.Public {
		return nil
	}
	if identity == nil {
		if req.Optional {
			return nil
		}
		return apperrors.ErrInvalidToken
	}
	if len(req.Roles) > 0 && !identity.HasAnyRole(req.Roles) {
		return apperrors.ErrInsufficientRole
	}
	if len(req.Permissions) > 0 && !identity.HasAnyPermission(req.Permissions) {
		return apperrors.ErrInsufficientPerm
	}
	return nil
}
