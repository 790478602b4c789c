package auth

import "errors"

// Role represents an authorisation tier.
type Role string

const (
	// RoleReader may read devices and data.
	RoleReader Role = "reader"

	// RoleWriter may read and write devices and data.
	RoleWriter Role = "writer"
)

// ValidRoles is the set of roles a token may carry.
var ValidRoles = []Role{RoleReader, RoleWriter}

// IsValidRole returns true if r is a known role.
func IsValidRole(r Role) bool {
	for _, v := range ValidRoles {
		if v == r {
			return true
		}
	}
	return false
}

// Auth errors.
var (
	ErrTokenInvalid = errors.New("auth: invalid token")
	ErrInvalidRole  = errors.New("auth: invalid role")
	ErrNoSecret     = errors.New("auth: signing secret is empty")
)
