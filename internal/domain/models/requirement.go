package models

// RouteRequirement is the per-route authorization descriptor attached at
// route-registration time and read by the authorization middleware. It
// replaces annotation-driven metadata dispatch with a plain value.
type RouteRequirement struct {
	// Public skips authentication entirely.
	Public bool

	// Optional verifies and attaches claims when a token is present but lets
	// the request through either way.
	Optional bool

	// Roles grants access when the identity holds ANY of the listed roles.
	// Empty means no role requirement.
	Roles []string

	// Permissions grants access when the identity holds ANY of the listed
	// permissions. Evaluated independently of Roles; both must pass.
	Permissions []string
}

// RateLimitSpec declares a per-route override of the global sliding-window
// limit, passed to the rate-limit middleware at route registration.
type RateLimitSpec struct {
	MaxRequests int64
	WindowMs    int64
}

// ServiceRequirement is the trust descriptor for service-to-service routes.
type ServiceRequirement struct {
	// AllowedServices restricts which calling services may reach the route.
	// Empty means any service with a valid signature.
	AllowedServices []string

	// RequireUserContext demands a forwarded x-user-context identity.
	RequireUserContext bool
}
