package models

// ServiceContext is attached to a request after a successful cross-service
// trust check. User is non-nil only when the caller forwarded an acting
// identity via the x-user-context header.
type ServiceContext struct {
	ServiceID   string    `json:"service_id"`
	ServiceName string    `json:"service_name"`
	Timestamp   int64     `json:"timestamp"` // ms epoch from the signed tuple
	User        *Identity `json:"user_context,omitempty"`
}
