package models

import "strings"

// UserRole is the upstream account role.
type UserRole string

const (
	RoleAdmin UserRole = "admin"
	RoleUser  UserRole = "user"
)

// User is the identity returned by the upstream API.
type User struct {
	ID       string   `json:"id,omitempty"`
	Username string   `json:"username"`
	Email    string   `json:"email"`
	Role     UserRole `json:"role"`
}

// IsAdmin reports whether the user may enter the admin section.
// Roles compare case-insensitively.
func (u *User) IsAdmin() bool {
	return u != nil && strings.EqualFold(string(u.Role), string(RoleAdmin))
}

// UsersResponse is the body of GET /user.
type UsersResponse struct {
	Users []User `json:"users"`
}

// ShadowRequest is the body of POST /auth/shadow.
type ShadowRequest struct {
	Username string `json:"username"`
}

// ShadowResponse carries an impersonation token.
type ShadowResponse struct {
	Token string `json:"token"`
}
