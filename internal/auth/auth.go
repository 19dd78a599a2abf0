// Package auth gates access to the sync client. Users live in a JSON
// file compatible with the legacy deployment; sessions are in-memory
// tokens with a TTL.
package auth

import "errors"

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrUserExists         = errors.New("user already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrPasswordTooShort   = errors.New("password must have at least 4 characters")
)

// Role determines what a logged-in user may do. Admins manage users;
// regular users only sync.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}

// User is one account record. The JSON tags match the legacy users.json
// files (Portuguese field names), so existing deployments load as-is.
// PasswordHash is a hex sha256 of the password.
type User struct {
	Username     string `json:"-"`
	PasswordHash string `json:"password_hash"`
	DisplayName  string `json:"nome"`
	Role         Role   `json:"tipo"`
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
