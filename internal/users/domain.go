// Package users persists principals and implements just-in-time provisioning
// for identities first seen through the token verifier.
package users

import (
	"time"

	"github.com/mathshelp/mathshelp25/internal/auth"
)

// Preferences holds per-user notification settings.
type Preferences struct {
	EmailNotifications bool `json:"emailNotifications"`
	ResourceUpdates    bool `json:"resourceUpdates"`
}

// User is a persisted principal. The Auth0 subject never leaves the API.
type User struct {
	ID                    int64       `json:"id"`
	Auth0ID               string      `json:"-"`
	Email                 string      `json:"email"`
	Name                  string      `json:"name"`
	ProfileImage          string      `json:"profileImage"`
	Role                  auth.Role   `json:"role"`
	MathsSpecialties      []string    `json:"mathsSpecialties"`
	Preferences           Preferences `json:"preferences"`
	ContributedActivities int         `json:"contributedActivities"`
	RatingsGiven          int         `json:"ratingsGiven"`
	IsActive              bool        `json:"isActive"`
	LastLoginAt           time.Time   `json:"lastLoginAt"`
	CreatedAt             time.Time   `json:"createdAt"`
	UpdatedAt             time.Time   `json:"updatedAt"`
}

// Specialties is the closed set of mathematics teaching specialties.
var Specialties = []string{
	"Primary Mathematics",
	"Algebra",
	"Geometry",
	"Statistics",
	"Calculus",
	"Trigonometry",
	"Number Theory",
	"Applied Mathematics",
	"Mathematical Reasoning",
}

// ValidSpecialty reports whether s is a recognised teaching specialty.
func ValidSpecialty(s string) bool {
	for _, known := range Specialties {
		if s == known {
			return true
		}
	}
	return false
}

// Stats summarises a user's contribution history.
type Stats struct {
	ContributedActivities int       `json:"contributedActivities"`
	RatingsGiven          int       `json:"ratingsGiven"`
	JoinedDate            time.Time `json:"joinedDate"`
	LastLogin             time.Time `json:"lastLogin"`
	Role                  auth.Role `json:"role"`
}
