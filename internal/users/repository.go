package users

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mathshelp/mathshelp25/internal/auth"
	"github.com/mathshelp/mathshelp25/internal/platform/httpx"
)

// Repository defines persistence operations for principals.
type Repository interface {
	FindByAuth0ID(ctx context.Context, auth0ID string) (*User, error)
	FindByID(ctx context.Context, id int64) (*User, error)
	Insert(ctx context.Context, u *User) error
	RecordLogin(ctx context.Context, id int64, email, profileImage string, at time.Time) error
	UpdateProfile(ctx context.Context, u *User) error
	UpdateRole(ctx context.Context, id int64, role string, clearSpecialties bool) error
	Deactivate(ctx context.Context, id int64) error
}

const userColumns = `id, auth0_id, email, name, profile_image, role, maths_specialties,
	notify_email, notify_resource_updates, contributed_activities, ratings_given,
	is_active, last_login_at, created_at, updated_at`

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// FindByAuth0ID fetches a principal by its identity-provider subject.
func (r *PGRepository) FindByAuth0ID(ctx context.Context, auth0ID string) (*User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE auth0_id = $1`, auth0ID)
	return scanUser(row)
}

// FindByID fetches a principal by primary key.
func (r *PGRepository) FindByID(ctx context.Context, id int64) (*User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// Insert persists a freshly provisioned principal. A unique violation on
// auth0_id or email surfaces as httpx.ErrDuplicate so the caller can
// resolve the first-login race by re-reading.
func (r *PGRepository) Insert(ctx context.Context, u *User) error {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO users (auth0_id, email, name, profile_image, role, maths_specialties,
			notify_email, notify_resource_updates, is_active, last_login_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now(), now())
		RETURNING id, created_at, updated_at`,
		u.Auth0ID, u.Email, u.Name, u.ProfileImage, string(u.Role), u.MathsSpecialties,
		u.Preferences.EmailNotifications, u.Preferences.ResourceUpdates, u.IsActive, u.LastLoginAt)
	if err := row.Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return httpx.ErrDuplicate
		}
		return err
	}
	return nil
}

// RecordLogin updates the last-login timestamp and refreshes identity-owned
// profile fields that may have drifted at the provider.
func (r *PGRepository) RecordLogin(ctx context.Context, id int64, email, profileImage string, at time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE users
		SET last_login_at = $2,
			email = COALESCE(NULLIF($3, ''), email),
			profile_image = COALESCE(NULLIF($4, ''), profile_image),
			updated_at = now()
		WHERE id = $1`, id, at, email, profileImage)
	return err
}

// UpdateProfile persists the user-editable profile fields.
func (r *PGRepository) UpdateProfile(ctx context.Context, u *User) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE users
		SET name = $2, maths_specialties = $3, notify_email = $4, notify_resource_updates = $5, updated_at = now()
		WHERE id = $1`,
		u.ID, u.Name, u.MathsSpecialties, u.Preferences.EmailNotifications, u.Preferences.ResourceUpdates)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

// UpdateRole changes the role, clearing teaching associations when the new
// role must not carry them.
func (r *PGRepository) UpdateRole(ctx context.Context, id int64, role string, clearSpecialties bool) error {
	query := `UPDATE users SET role = $2, updated_at = now() WHERE id = $1`
	if clearSpecialties {
		query = `UPDATE users SET role = $2, maths_specialties = '{}', updated_at = now() WHERE id = $1`
	}
	tag, err := r.pool.Exec(ctx, query, id, role)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

// Deactivate soft-deletes the account. Principals are never hard-deleted.
func (r *PGRepository) Deactivate(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET is_active = FALSE, updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (*User, error) {
	var u User
	var role string
	err := row.Scan(&u.ID, &u.Auth0ID, &u.Email, &u.Name, &u.ProfileImage, &role, &u.MathsSpecialties,
		&u.Preferences.EmailNotifications, &u.Preferences.ResourceUpdates,
		&u.ContributedActivities, &u.RatingsGiven, &u.IsActive, &u.LastLoginAt, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, httpx.ErrNotFound
		}
		return nil, err
	}
	u.Role = auth.Role(role)
	return &u, nil
}
