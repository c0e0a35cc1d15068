package domain

import "slices"

// Role defines user permission level
type Role string

const (
	RoleAdmin  Role = "admin"  // Manage any session
	RoleMember Role = "member" // Create sessions and annotate
	RoleViewer Role = "viewer" // Read-only
)

// AuthContext contains authenticated user info for request context
type AuthContext struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	Role   Role   `json:"role"`
}

// IsAdmin checks if the authenticated user is an admin
func (a *AuthContext) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// AnnotatingRoles may open sessions and write annotations
var AnnotatingRoles = []Role{RoleAdmin, RoleMember}

// CanAnnotate checks if the user may create sessions and annotations
func (a *AuthContext) CanAnnotate() bool {
	return a != nil && slices.Contains(AnnotatingRoles, a.Role)
}

// TokenClaims represents the JWT token payload
type TokenClaims struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	Role      Role   `json:"role"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
}

// ServiceKeyPrefix marks bearer values that are static service keys rather than JWTs
const ServiceKeyPrefix = "fbk_"

// ServiceKey is a named machine credential. Only the bcrypt hash is configured.
type ServiceKey struct {
	Name string
	Hash string
}

// ServiceUserID is the user ID an authenticated service key acts as
func (k ServiceKey) ServiceUserID() string {
	return "service:" + k.Name
}
