// Package models defines the domain models of the unified auth core: the
// identity and claims value types shared by every other component, the token
// pair, the session records kept in the shared store, and the per-route
// requirement descriptors consumed by the authorization middleware.
package models

// Identity is the authenticated principal embedded in tokens and forwarded
// between services. It is immutable once embedded in a token; the source of
// truth for identities lives outside this layer.
type Identity struct {
	// ID is the stable identifier of the principal.
	ID string `json:"uid"`

	// Username is the human-readable display name.
	Username string `json:"username"`

	// Domain is the tenant or realm the identity belongs to.
	Domain string `json:"domain"`

	// Roles is the set of role names granted to the identity.
	Roles []string `json:"roles,omitempty"`

	// Permissions is the set of fine-grained permission codes.
	Permissions []string `json:"permissions,omitempty"`

	// Email is optional contact information carried for convenience.
	Email string `json:"email,omitempty"`

	// Extra carries additional caller-defined attributes.
	Extra map[string]any `json:"extra,omitempty"`
}

// HasAnyRole reports whether the identity holds at least one of the given
// roles. An empty requirement never matches.
func (i *Identity) HasAnyRole(roles []string) bool {
	return intersects(i.Roles, roles)
}

// HasAnyPermission reports whether the identity holds at least one of the
// given permissions.
func (i *Identity) HasAnyPermission(permissions []string) bool {
	return intersects(i.Permissions, permissions)
}

func intersects(have, want []string) bool {
	if len(have) == 0 || len(want) == 0 {
		return false
	}
	set := make(map[string]struct{}, len(have))
	for _, v := range have {
		set[v] = struct{}{}
	}
	for _, v := range want {
		if _, ok := set[v]; ok {
			return true
		}
	}
	return false
}
