package activities

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mathshelp/mathshelp25/internal/platform/db"
	"github.com/mathshelp/mathshelp25/internal/platform/httpx"
	"github.com/mathshelp/mathshelp25/internal/shared"
)

// Filter narrows activity listings. Zero values mean "any".
type Filter struct {
	TopicID      int64
	CreatedBy    int64
	ActivityType string
	Difficulty   string
	Status       string
	Search       string
	Sort         string
	Page         int
	Limit        int
}

// Repository defines persistence operations for activities and ratings.
type Repository interface {
	List(ctx context.Context, f Filter) ([]Activity, int64, error)
	Get(ctx context.Context, id int64) (*Activity, error)
	Create(ctx context.Context, a *Activity) error
	Update(ctx context.Context, a *Activity) error
	SoftDelete(ctx context.Context, id int64) error
	AddViews(ctx context.Context, id int64, delta int) error

	Rate(ctx context.Context, rating *Rating) error
	RatingsFor(ctx context.Context, activityID int64) ([]Rating, error)
	UserRating(ctx context.Context, activityID, userID int64) (*Rating, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const activityColumns = `a.id, a.topic_id, a.title, a.description, a.activity_type, a.difficulty,
	a.duration_minutes, a.class_size, a.resources, a.materials, a.learning_outcomes, a.tags,
	a.status, a.average_rating, a.rating_count, a.view_count, a.created_by,
	COALESCE(u.name, ''), a.created_at, a.updated_at`

const activityFrom = ` FROM activities a LEFT JOIN users u ON u.id = a.created_by`

var sortClauses = map[string]string{
	"newest":  "a.created_at DESC",
	"oldest":  "a.created_at ASC",
	"rating":  "a.average_rating DESC, a.rating_count DESC",
	"popular": "a.view_count DESC",
	"title":   "a.title ASC",
}

// List returns a page of activities matching the filter plus the total count.
func (r *PGRepository) List(ctx context.Context, f Filter) ([]Activity, int64, error) {
	where := []string{"a.is_active"}
	args := []any{}
	add := func(clause string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}

	if f.TopicID > 0 {
		add("a.topic_id = $%d", f.TopicID)
	}
	if f.CreatedBy > 0 {
		add("a.created_by = $%d", f.CreatedBy)
	}
	if f.ActivityType != "" {
		add("a.activity_type = $%d", f.ActivityType)
	}
	if f.Difficulty != "" {
		add("a.difficulty = $%d", f.Difficulty)
	}
	if f.Status != "" {
		add("a.status = $%d", f.Status)
	}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		where = append(where, fmt.Sprintf("(a.title ILIKE $%d OR a.description ILIKE $%d)", len(args), len(args)))
	}

	cond := " WHERE " + strings.Join(where, " AND ")

	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT count(*)`+activityFrom+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	order, ok := sortClauses[f.Sort]
	if !ok {
		order = sortClauses["newest"]
	}
	limit := f.Limit
	if limit <= 0 {
		limit = shared.DefaultPerPage
	}
	if limit > shared.MaxPerPage {
		limit = shared.MaxPerPage
	}
	args = append(args, limit, shared.Offset(f.Page, limit))
	query := `SELECT ` + activityColumns + activityFrom + cond +
		fmt.Sprintf(" ORDER BY %s LIMIT $%d OFFSET $%d", order, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Activity
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *a)
	}
	return out, total, rows.Err()
}

// Get returns one active activity.
func (r *PGRepository) Get(ctx context.Context, id int64) (*Activity, error) {
	return scanActivity(r.pool.QueryRow(ctx,
		`SELECT `+activityColumns+activityFrom+` WHERE a.id = $1 AND a.is_active`, id))
}

// Create inserts an activity and bumps the creator's contribution counter.
func (r *PGRepository) Create(ctx context.Context, a *Activity) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			INSERT INTO activities (topic_id, title, description, activity_type, difficulty,
				duration_minutes, class_size, resources, materials, learning_outcomes, tags,
				status, is_active, created_by, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, TRUE, $13, now(), now())
			RETURNING id, created_at, updated_at`,
			a.TopicID, a.Title, a.Description, a.ActivityType, a.Difficulty,
			a.DurationMinutes, a.ClassSize, a.Resources, a.Materials, a.Outcomes, a.Tags,
			a.Status, a.CreatedBy)
		if err := row.Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return mapPGError(err)
		}
		if _, err := tx.Exec(ctx,
			`UPDATE users SET contributed_activities = contributed_activities + 1 WHERE id = $1`,
			a.CreatedBy); err != nil {
			return err
		}
		_, err := tx.Exec(ctx,
			`UPDATE topics SET activity_count = activity_count + 1, updated_at = now() WHERE id = $1`,
			a.TopicID)
		return err
	})
}

// Update persists mutable activity fields.
func (r *PGRepository) Update(ctx context.Context, a *Activity) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE activities
		SET title = $2, description = $3, activity_type = $4, difficulty = $5,
			duration_minutes = $6, class_size = $7, resources = $8, materials = $9,
			learning_outcomes = $10, tags = $11, status = $12, updated_at = now()
		WHERE id = $1 AND is_active`,
		a.ID, a.Title, a.Description, a.ActivityType, a.Difficulty,
		a.DurationMinutes, a.ClassSize, a.Resources, a.Materials, a.Outcomes, a.Tags, a.Status)
	if err != nil {
		return mapPGError(err)
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

// SoftDelete deactivates an activity and decrements the creator's counter.
func (r *PGRepository) SoftDelete(ctx context.Context, id int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var createdBy, topicID int64
		err := tx.QueryRow(ctx, `
			UPDATE activities SET is_active = FALSE, updated_at = now()
			WHERE id = $1 AND is_active
			RETURNING created_by, topic_id`, id).Scan(&createdBy, &topicID)
		if errors.Is(err, pgx.ErrNoRows) {
			return httpx.ErrNotFound
		}
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			`UPDATE users SET contributed_activities = GREATEST(contributed_activities - 1, 0) WHERE id = $1`,
			createdBy); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			UPDATE topics SET activity_count = GREATEST(activity_count - 1, 0), updated_at = now()
			WHERE id = $1`, topicID)
		return err
	})
}

// AddViews folds delta views into an activity's counter.
func (r *PGRepository) AddViews(ctx context.Context, id int64, delta int) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE activities SET view_count = view_count + $2 WHERE id = $1`, id, delta)
	return err
}

// Rate upserts a user's rating and recomputes the activity aggregate in the
// same transaction. A second rating by the same user replaces the first.
func (r *PGRepository) Rate(ctx context.Context, rating *Rating) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var existed bool
		err := tx.QueryRow(ctx, `
			INSERT INTO activity_ratings (activity_id, user_id, score, comment, created_at)
			VALUES ($1, $2, $3, $4, now())
			ON CONFLICT (activity_id, user_id)
			DO UPDATE SET score = EXCLUDED.score, comment = EXCLUDED.comment, created_at = now()
			RETURNING (xmax <> 0)`,
			rating.ActivityID, rating.UserID, rating.Score, rating.Comment).Scan(&existed)
		if err != nil {
			return mapPGError(err)
		}

		tag, err := tx.Exec(ctx, `
			UPDATE activities a
			SET average_rating = s.avg, rating_count = s.cnt, updated_at = now()
			FROM (SELECT COALESCE(AVG(score), 0) AS avg, COUNT(*) AS cnt
			      FROM activity_ratings WHERE activity_id = $1) s
			WHERE a.id = $1 AND a.is_active`, rating.ActivityID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return httpx.ErrNotFound
		}

		if !existed {
			_, err = tx.Exec(ctx,
				`UPDATE users SET ratings_given = ratings_given + 1 WHERE id = $1`, rating.UserID)
		}
		return err
	})
}

// RatingsFor lists an activity's ratings, newest first.
func (r *PGRepository) RatingsFor(ctx context.Context, activityID int64) ([]Rating, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT activity_id, user_id, score, comment, created_at
		FROM activity_ratings WHERE activity_id = $1
		ORDER BY created_at DESC`, activityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Rating
	for rows.Next() {
		var rt Rating
		if err := rows.Scan(&rt.ActivityID, &rt.UserID, &rt.Score, &rt.Comment, &rt.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rt)
	}
	return out, rows.Err()
}

// UserRating returns the given user's rating of an activity, or nil when the
// user has not rated it.
func (r *PGRepository) UserRating(ctx context.Context, activityID, userID int64) (*Rating, error) {
	var rt Rating
	err := r.pool.QueryRow(ctx, `
		SELECT activity_id, user_id, score, comment, created_at
		FROM activity_ratings WHERE activity_id = $1 AND user_id = $2`,
		activityID, userID).Scan(&rt.ActivityID, &rt.UserID, &rt.Score, &rt.Comment, &rt.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rt, nil
}

func scanActivity(row pgx.Row) (*Activity, error) {
	var a Activity
	err := row.Scan(&a.ID, &a.TopicID, &a.Title, &a.Description, &a.ActivityType, &a.Difficulty,
		&a.DurationMinutes, &a.ClassSize, &a.Resources, &a.Materials, &a.Outcomes, &a.Tags,
		&a.Status, &a.AverageRating, &a.RatingCount, &a.ViewCount, &a.CreatedBy,
		&a.CreatorName, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, httpx.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if a.Resources == nil {
		a.Resources = []Resource{}
	}
	if a.Materials == nil {
		a.Materials = []string{}
	}
	if a.Outcomes == nil {
		a.Outcomes = []string{}
	}
	if a.Tags == nil {
		a.Tags = []string{}
	}
	return &a, nil
}

func mapPGError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return httpx.ErrDuplicate
		case "23503":
			return httpx.ErrNotFound
		}
	}
	return err
}
