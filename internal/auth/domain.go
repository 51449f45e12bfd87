package auth

import (
	"context"
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

// Role is the single access level a principal holds.
type Role string

const (
	RoleStudent        Role = "student"
	RoleTeacher        Role = "teacher"
	RoleDepartmentHead Role = "department_head"
	RoleAdmin          Role = "admin"
)

// AllRoles lists the closed role enumeration.
func AllRoles() []Role {
	return []Role{RoleStudent, RoleTeacher, RoleDepartmentHead, RoleAdmin}
}

// ValidRole reports whether r is a member of the closed enumeration.
func ValidRole(r Role) bool {
	switch r {
	case RoleStudent, RoleTeacher, RoleDepartmentHead, RoleAdmin:
		return true
	}
	return false
}

// TeachingRole reports whether the role may carry teaching specialties and
// year-group associations.
func (r Role) TeachingRole() bool {
	return r == RoleTeacher || r == RoleDepartmentHead
}

// Claims is the verified attribute set extracted from a bearer token.
type Claims struct {
	jwt.RegisteredClaims
	Email    string `json:"email,omitempty"`
	Name     string `json:"name,omitempty"`
	Nickname string `json:"nickname,omitempty"`
	Picture  string `json:"picture,omitempty"`
}

// Principal is the local representation of an authenticated caller, attached
// to the request context after resolution.
type Principal struct {
	ID       int64
	Auth0ID  string
	Email    string
	Name     string
	Role     Role
	IsActive bool
}

// Resolver maps verified claims to a persisted principal, provisioning one
// on first sight. Every successful resolution writes at least a last-login
// timestamp.
type Resolver interface {
	ResolvePrincipal(ctx context.Context, claims *Claims) (*Principal, error)
}

// ErrMissingEmail is returned when the identity provider furnished no email
// for a previously unseen subject.
var ErrMissingEmail = errors.New("identity provider returned no email")

// ErrDeactivated is returned when the subject maps to a soft-deleted
// account. A valid token alone does not reactivate it.
var ErrDeactivated = errors.New("account is deactivated")
