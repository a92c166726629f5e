package models

// Role represents a caller's platform role as asserted by the identity provider.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleCreator Role = "creator"
	RoleViewer  Role = "viewer"
)

// Actor is an authenticated caller of the live engine.
type Actor struct {
	UserID string
	Role   Role
}

// IsAdmin reports whether the actor holds the platform admin capability.
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}
