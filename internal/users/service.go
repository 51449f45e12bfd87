package users

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/mathshelp/mathshelp25/internal/auth"
	"github.com/mathshelp/mathshelp25/internal/platform/httpx"
)

// fallbackName is used when the identity provider supplies neither a name
// nor a nickname and the email has no usable local part.
const fallbackName = "New User"

// Service wraps principal business rules.
type Service struct {
	repo   Repository
	logger *slog.Logger
	now    func() time.Time
}

// NewService constructs a Service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger, now: time.Now}
}

// ResolvePrincipal maps verified claims to a persisted principal, creating
// one on first sight. Both branches write: resolution is deliberately not a
// pure read, every call records at least the login timestamp.
func (s *Service) ResolvePrincipal(ctx context.Context, claims *auth.Claims) (*auth.Principal, error) {
	u, err := s.repo.FindByAuth0ID(ctx, claims.Subject)
	switch {
	case err == nil:
		if !u.IsActive {
			return nil, auth.ErrDeactivated
		}
		if err := s.repo.RecordLogin(ctx, u.ID, strings.ToLower(claims.Email), claims.Picture, s.now()); err != nil {
			return nil, err
		}
		return principal(u), nil
	case errors.Is(err, httpx.ErrNotFound):
		return s.provision(ctx, claims)
	default:
		return nil, err
	}
}

// provision creates a principal for a previously unseen subject.
func (s *Service) provision(ctx context.Context, claims *auth.Claims) (*auth.Principal, error) {
	if claims.Email == "" {
		return nil, auth.ErrMissingEmail
	}

	u := &User{
		Auth0ID:      claims.Subject,
		Email:        strings.ToLower(claims.Email),
		Name:         displayName(claims),
		ProfileImage: claims.Picture,
		Role:         auth.RoleStudent,
		Preferences:  Preferences{EmailNotifications: true, ResourceUpdates: true},
		IsActive:     true,
		LastLoginAt:  s.now(),
	}

	err := s.repo.Insert(ctx, u)
	if errors.Is(err, httpx.ErrDuplicate) {
		// Another request for the same fresh identity won the insert race;
		// the unique index is the backstop, re-read and carry on.
		existing, readErr := s.repo.FindByAuth0ID(ctx, claims.Subject)
		if readErr != nil {
			return nil, readErr
		}
		return principal(existing), nil
	}
	if err != nil {
		return nil, err
	}

	if s.logger != nil {
		s.logger.Info("provisioned new user", slog.Int64("id", u.ID), slog.String("role", string(u.Role)))
	}
	return principal(u), nil
}

// Get returns the full user record.
func (s *Service) Get(ctx context.Context, id int64) (*User, error) {
	return s.repo.FindByID(ctx, id)
}

// UpdateProfileInput carries user-editable profile fields; nil means keep.
type UpdateProfileInput struct {
	Name             *string
	MathsSpecialties []string
	Preferences      *Preferences
}

// UpdateProfile applies profile changes for the principal's own record.
// Specialties on a non-teaching role are rejected, preserving the invariant
// that only teaching roles carry them.
func (s *Service) UpdateProfile(ctx context.Context, id int64, in UpdateProfileInput) (*User, error) {
	u, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Name != nil && strings.TrimSpace(*in.Name) != "" {
		u.Name = strings.TrimSpace(*in.Name)
	}
	if in.MathsSpecialties != nil {
		if !u.Role.TeachingRole() && len(in.MathsSpecialties) > 0 {
			return nil, httpx.ErrValidation
		}
		for _, sp := range in.MathsSpecialties {
			if !ValidSpecialty(sp) {
				return nil, httpx.ErrValidation
			}
		}
		u.MathsSpecialties = in.MathsSpecialties
	}
	if in.Preferences != nil {
		u.Preferences = *in.Preferences
	}

	if err := s.repo.UpdateProfile(ctx, u); err != nil {
		return nil, err
	}
	return s.repo.FindByID(ctx, id)
}

// ChangeRole updates a role. A principal may switch itself between student
// and teacher; only admins may assign elevated roles or change other users.
func (s *Service) ChangeRole(ctx context.Context, actor *auth.Principal, targetID int64, role auth.Role) (*User, error) {
	if !auth.ValidRole(role) {
		return nil, httpx.ErrValidation
	}

	self := actor.ID == targetID
	isAdmin := actor.Role == auth.RoleAdmin
	if !self && !isAdmin {
		return nil, httpx.ErrForbidden
	}
	if self && !isAdmin && role != auth.RoleStudent && role != auth.RoleTeacher {
		return nil, httpx.ErrForbidden
	}

	if err := s.repo.UpdateRole(ctx, targetID, string(role), !role.TeachingRole()); err != nil {
		return nil, err
	}
	return s.repo.FindByID(ctx, targetID)
}

// StatsFor summarises the user's contribution history.
func (s *Service) StatsFor(ctx context.Context, id int64) (*Stats, error) {
	u, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Stats{
		ContributedActivities: u.ContributedActivities,
		RatingsGiven:          u.RatingsGiven,
		JoinedDate:            u.CreatedAt,
		LastLogin:             u.LastLoginAt,
		Role:                  u.Role,
	}, nil
}

// Deactivate soft-deletes the account; records are never hard-deleted.
func (s *Service) Deactivate(ctx context.Context, id int64) error {
	return s.repo.Deactivate(ctx, id)
}

func principal(u *User) *auth.Principal {
	return &auth.Principal{
		ID:       u.ID,
		Auth0ID:  u.Auth0ID,
		Email:    u.Email,
		Name:     u.Name,
		Role:     u.Role,
		IsActive: u.IsActive,
	}
}

func displayName(claims *auth.Claims) string {
	if claims.Name != "" {
		return claims.Name
	}
	if claims.Nickname != "" {
		return claims.Nickname
	}
	if at := strings.Index(claims.Email, "@"); at > 0 {
		return claims.Email[:at]
	}
	return fallbackName
}
