// Package domain holds the plain data types shared by the support widget components.
package domain

// Role is the visitor's role on the rental site.
type Role string

const (
	RoleGuest  Role = "guest"
	RoleClient Role = "client"
	RoleAdmin  Role = "admin"
)

// ParseRole maps a backend role string to a Role. Unknown values are Guest.
func ParseRole(s string) Role {
	switch Role(s) {
	case RoleClient, RoleAdmin:
		return Role(s)
	default:
		return RoleGuest
	}
}

// Identity is the current visitor as supplied by the session provider.
// It is read-only to everything except the identity provider.
type Identity struct {
	Authenticated bool   `json:"isAuthenticated"`
	UserID        string `json:"userId,omitempty"`
	DisplayName   string `json:"displayName"`
	Email         string `json:"email"`
	Phone         string `json:"phone"`
	Role          Role   `json:"role"`
}

// Anonymous returns the identity of a visitor who is not logged in.
func Anonymous() Identity {
	return Identity{Role: RoleGuest}
}

// Key identifies the visitor for per-user state such as dismissals.
func (i Identity) Key() string {
	if i.Authenticated && i.UserID != "" {
		return i.UserID
	}
	return "anonymous"
}

// ContextAttributes describe where and why the widget was opened.
type ContextAttributes struct {
	Page        string `json:"page"`
	InquiryType string `json:"inquiryType,omitempty"`
}
