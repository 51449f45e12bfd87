package catalog

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mathshelp/mathshelp25/internal/platform/db"
	"github.com/mathshelp/mathshelp25/internal/platform/httpx"
)

// TopicFilter narrows topic listings.
type TopicFilter struct {
	YearGroupID int64
	Difficulty  string
	Strand      string
}

// Repository defines persistence operations for the catalog hierarchy.
type Repository interface {
	ListSubjects(ctx context.Context) ([]Subject, error)
	GetSubject(ctx context.Context, id int64) (*Subject, error)
	CreateSubject(ctx context.Context, s *Subject) error
	UpdateSubject(ctx context.Context, s *Subject) error
	SoftDeleteSubject(ctx context.Context, id int64) error

	ListYearGroups(ctx context.Context, subjectID int64) ([]YearGroup, error)
	GetYearGroup(ctx context.Context, id int64) (*YearGroup, error)
	CreateYearGroup(ctx context.Context, yg *YearGroup) error
	UpdateYearGroup(ctx context.Context, yg *YearGroup) error
	SoftDeleteYearGroup(ctx context.Context, id int64) error

	ListTopics(ctx context.Context, filter TopicFilter) ([]Topic, error)
	GetTopic(ctx context.Context, id int64) (*Topic, error)
	PopularTopics(ctx context.Context, limit int) ([]Topic, error)
	CreateTopic(ctx context.Context, t *Topic) error
	UpdateTopic(ctx context.Context, t *Topic) error
	SoftDeleteTopic(ctx context.Context, id int64) error
	AddTopicViews(ctx context.Context, id int64, delta int) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const subjectColumns = `id, name, description, icon_type, color_theme, category, display_order,
	total_topics, is_active, created_by, created_at, updated_at`

// ListSubjects returns active subjects in display order.
func (r *PGRepository) ListSubjects(ctx context.Context) ([]Subject, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+subjectColumns+` FROM subjects WHERE is_active ORDER BY display_order, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subjects []Subject
	for rows.Next() {
		s, err := scanSubject(rows)
		if err != nil {
			return nil, err
		}
		subjects = append(subjects, *s)
	}
	return subjects, rows.Err()
}

// GetSubject returns an active subject with its active year groups attached.
func (r *PGRepository) GetSubject(ctx context.Context, id int64) (*Subject, error) {
	s, err := scanSubject(r.pool.QueryRow(ctx, `SELECT `+subjectColumns+` FROM subjects WHERE id = $1 AND is_active`, id))
	if err != nil {
		return nil, err
	}
	groups, err := r.ListYearGroups(ctx, id)
	if err != nil {
		return nil, err
	}
	s.YearGroups = groups
	return s, nil
}

// CreateSubject inserts a subject; names are unique among active subjects.
func (r *PGRepository) CreateSubject(ctx context.Context, s *Subject) error {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO subjects (name, description, icon_type, color_theme, category, display_order, is_active, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, TRUE, $7, now(), now())
		RETURNING id, created_at, updated_at`,
		s.Name, s.Description, s.IconType, s.ColorTheme, s.Category, s.DisplayOrder, s.CreatedBy)
	if err := row.Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return mapPGError(err)
	}
	s.IsActive = true
	return nil
}

// UpdateSubject persists mutable subject fields. Ownership is immutable.
func (r *PGRepository) UpdateSubject(ctx context.Context, s *Subject) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE subjects
		SET name = $2, description = $3, icon_type = $4, color_theme = $5, category = $6, display_order = $7, updated_at = now()
		WHERE id = $1 AND is_active`,
		s.ID, s.Name, s.Description, s.IconType, s.ColorTheme, s.Category, s.DisplayOrder)
	if err != nil {
		return mapPGError(err)
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

// SoftDeleteSubject deactivates the subject and cascades to its year groups
// and their topics in one transaction.
func (r *PGRepository) SoftDeleteSubject(ctx context.Context, id int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE subjects SET is_active = FALSE, updated_at = now() WHERE id = $1 AND is_active`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return httpx.ErrNotFound
		}
		if _, err := tx.Exec(ctx, `UPDATE year_groups SET is_active = FALSE, updated_at = now() WHERE subject_id = $1`, id); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			UPDATE topics SET is_active = FALSE, updated_at = now()
			WHERE year_group_id IN (SELECT id FROM year_groups WHERE subject_id = $1)`, id)
		return err
	})
}

const yearGroupColumns = `id, subject_id, name, year_level, age_range, description, display_order,
	topic_count, is_active, created_by, created_at, updated_at`

// ListYearGroups returns active year groups, optionally scoped to a subject.
func (r *PGRepository) ListYearGroups(ctx context.Context, subjectID int64) ([]YearGroup, error) {
	query := `SELECT ` + yearGroupColumns + ` FROM year_groups WHERE is_active`
	args := []any{}
	if subjectID > 0 {
		query += ` AND subject_id = $1`
		args = append(args, subjectID)
	}
	query += ` ORDER BY display_order, year_level`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []YearGroup
	for rows.Next() {
		var yg YearGroup
		if err := rows.Scan(&yg.ID, &yg.SubjectID, &yg.Name, &yg.YearLevel, &yg.AgeRange, &yg.Description,
			&yg.DisplayOrder, &yg.TopicCount, &yg.IsActive, &yg.CreatedBy, &yg.CreatedAt, &yg.UpdatedAt); err != nil {
			return nil, err
		}
		groups = append(groups, yg)
	}
	return groups, rows.Err()
}

// GetYearGroup fetches one active year group.
func (r *PGRepository) GetYearGroup(ctx context.Context, id int64) (*YearGroup, error) {
	var yg YearGroup
	err := r.pool.QueryRow(ctx, `SELECT `+yearGroupColumns+` FROM year_groups WHERE id = $1 AND is_active`, id).
		Scan(&yg.ID, &yg.SubjectID, &yg.Name, &yg.YearLevel, &yg.AgeRange, &yg.Description,
			&yg.DisplayOrder, &yg.TopicCount, &yg.IsActive, &yg.CreatedBy, &yg.CreatedAt, &yg.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, httpx.ErrNotFound
		}
		return nil, err
	}
	return &yg, nil
}

// CreateYearGroup inserts a year group under an existing subject.
func (r *PGRepository) CreateYearGroup(ctx context.Context, yg *YearGroup) error {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO year_groups (subject_id, name, year_level, age_range, description, display_order, is_active, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, TRUE, $7, now(), now())
		RETURNING id, created_at, updated_at`,
		yg.SubjectID, yg.Name, yg.YearLevel, yg.AgeRange, yg.Description, yg.DisplayOrder, yg.CreatedBy)
	if err := row.Scan(&yg.ID, &yg.CreatedAt, &yg.UpdatedAt); err != nil {
		return mapPGError(err)
	}
	yg.IsActive = true
	return nil
}

// UpdateYearGroup persists mutable year-group fields.
func (r *PGRepository) UpdateYearGroup(ctx context.Context, yg *YearGroup) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE year_groups
		SET name = $2, year_level = $3, age_range = $4, description = $5, display_order = $6, updated_at = now()
		WHERE id = $1 AND is_active`,
		yg.ID, yg.Name, yg.YearLevel, yg.AgeRange, yg.Description, yg.DisplayOrder)
	if err != nil {
		return mapPGError(err)
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

// SoftDeleteYearGroup deactivates the year group and its topics.
func (r *PGRepository) SoftDeleteYearGroup(ctx context.Context, id int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE year_groups SET is_active = FALSE, updated_at = now() WHERE id = $1 AND is_active`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return httpx.ErrNotFound
		}
		deactivated, err := tx.Exec(ctx, `UPDATE topics SET is_active = FALSE, updated_at = now() WHERE year_group_id = $1 AND is_active`, id)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			UPDATE subjects SET total_topics = GREATEST(total_topics - $2, 0), updated_at = now()
			WHERE id = (SELECT subject_id FROM year_groups WHERE id = $1)`,
			id, deactivated.RowsAffected())
		return err
	})
}

const topicColumns = `id, year_group_id, name, description, difficulty, strand, learning_objectives,
	estimated_duration, activity_count, view_count, is_active, created_by, created_at, updated_at`

// ListTopics returns active topics matching the filter.
func (r *PGRepository) ListTopics(ctx context.Context, filter TopicFilter) ([]Topic, error) {
	query := `SELECT ` + topicColumns + ` FROM topics WHERE is_active`
	args := []any{}
	n := 0
	add := func(clause string, value any) {
		n++
		args = append(args, value)
		query += ` AND ` + clause + `$` + strconv.Itoa(n)
	}
	if filter.YearGroupID > 0 {
		add(`year_group_id = `, filter.YearGroupID)
	}
	if filter.Difficulty != "" {
		add(`difficulty = `, filter.Difficulty)
	}
	if filter.Strand != "" {
		add(`strand = `, filter.Strand)
	}
	query += ` ORDER BY name`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTopics(rows)
}

// GetTopic fetches one active topic.
func (r *PGRepository) GetTopic(ctx context.Context, id int64) (*Topic, error) {
	return scanTopic(r.pool.QueryRow(ctx, `SELECT `+topicColumns+` FROM topics WHERE id = $1 AND is_active`, id))
}

// PopularTopics returns the most viewed active topics.
func (r *PGRepository) PopularTopics(ctx context.Context, limit int) ([]Topic, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+topicColumns+` FROM topics WHERE is_active ORDER BY view_count DESC, activity_count DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTopics(rows)
}

// CreateTopic inserts a topic under an existing year group and bumps the
// parent's topic count.
func (r *PGRepository) CreateTopic(ctx context.Context, t *Topic) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			INSERT INTO topics (year_group_id, name, description, difficulty, strand, learning_objectives,
				estimated_duration, is_active, created_by, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE, $8, now(), now())
			RETURNING id, created_at, updated_at`,
			t.YearGroupID, t.Name, t.Description, t.Difficulty, t.Strand, t.LearningObjectives,
			t.EstimatedDuration, t.CreatedBy)
		if err := row.Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return mapPGError(err)
		}
		t.IsActive = true
		if _, err := tx.Exec(ctx, `UPDATE year_groups SET topic_count = topic_count + 1, updated_at = now() WHERE id = $1`, t.YearGroupID); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `
			UPDATE subjects SET total_topics = total_topics + 1, updated_at = now()
			WHERE id = (SELECT subject_id FROM year_groups WHERE id = $1)`, t.YearGroupID)
		return err
	})
}

// UpdateTopic persists mutable topic fields.
func (r *PGRepository) UpdateTopic(ctx context.Context, t *Topic) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE topics
		SET name = $2, description = $3, difficulty = $4, strand = $5, learning_objectives = $6,
			estimated_duration = $7, updated_at = now()
		WHERE id = $1 AND is_active`,
		t.ID, t.Name, t.Description, t.Difficulty, t.Strand, t.LearningObjectives, t.EstimatedDuration)
	if err != nil {
		return mapPGError(err)
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

// SoftDeleteTopic deactivates the topic and decrements the parent count.
func (r *PGRepository) SoftDeleteTopic(ctx context.Context, id int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var yearGroupID int64
		err := tx.QueryRow(ctx, `
			UPDATE topics SET is_active = FALSE, updated_at = now()
			WHERE id = $1 AND is_active
			RETURNING year_group_id`, id).Scan(&yearGroupID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return httpx.ErrNotFound
			}
			return err
		}
		if _, err := tx.Exec(ctx, `
			UPDATE year_groups SET topic_count = GREATEST(topic_count - 1, 0), updated_at = now()
			WHERE id = $1`, yearGroupID); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			UPDATE subjects SET total_topics = GREATEST(total_topics - 1, 0), updated_at = now()
			WHERE id = (SELECT subject_id FROM year_groups WHERE id = $1)`, yearGroupID)
		return err
	})
}

// AddTopicViews folds accumulated view counts into the topic record.
func (r *PGRepository) AddTopicViews(ctx context.Context, id int64, delta int) error {
	if delta <= 0 {
		return nil
	}
	_, err := r.pool.Exec(ctx, `UPDATE topics SET view_count = view_count + $2 WHERE id = $1`, id, delta)
	return err
}

func scanSubject(row pgx.Row) (*Subject, error) {
	var s Subject
	err := row.Scan(&s.ID, &s.Name, &s.Description, &s.IconType, &s.ColorTheme, &s.Category,
		&s.DisplayOrder, &s.TotalTopics, &s.IsActive, &s.CreatedBy, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, httpx.ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

func scanTopic(row pgx.Row) (*Topic, error) {
	var t Topic
	err := row.Scan(&t.ID, &t.YearGroupID, &t.Name, &t.Description, &t.Difficulty, &t.Strand,
		&t.LearningObjectives, &t.EstimatedDuration, &t.ActivityCount, &t.ViewCount,
		&t.IsActive, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, httpx.ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

func collectTopics(rows pgx.Rows) ([]Topic, error) {
	var topics []Topic
	for rows.Next() {
		var t Topic
		if err := rows.Scan(&t.ID, &t.YearGroupID, &t.Name, &t.Description, &t.Difficulty, &t.Strand,
			&t.LearningObjectives, &t.EstimatedDuration, &t.ActivityCount, &t.ViewCount,
			&t.IsActive, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		topics = append(topics, t)
	}
	return topics, rows.Err()
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

