package jobs

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

// RecountUserStats rebuilds contribution counters from the activities and
// ratings tables. Incremental updates drift when rows change outside the
// request path; this reconciles them. A zero userID recounts everyone.
func RecountUserStats(ctx context.Context, pool *pgxpool.Pool, logger *slog.Logger, userID int64) error {
	if pool == nil {
		return nil
	}
	query := `
		UPDATE users u
		SET contributed_activities = COALESCE(a.cnt, 0),
		    ratings_given = COALESCE(r.cnt, 0)
		FROM users x
		LEFT JOIN (SELECT created_by, COUNT(*) AS cnt FROM activities WHERE is_active GROUP BY created_by) a
			ON a.created_by = x.id
		LEFT JOIN (SELECT user_id, COUNT(*) AS cnt FROM activity_ratings GROUP BY user_id) r
			ON r.user_id = x.id
		WHERE u.id = x.id`
	args := []any{}
	if userID > 0 {
		query += ` AND u.id = $1`
		args = append(args, userID)
	}
	tag, err := pool.Exec(ctx, query, args...)
	if err != nil {
		logger.Error("recount user stats", slog.Any("error", err))
		return err
	}
	logger.Info("recounted user stats", slog.Int64("rows", tag.RowsAffected()))
	return nil
}

// RecountCatalogStats rebuilds the denormalized catalog counters from their
// source tables: topics.activity_count, year_groups.topic_count and
// subjects.total_topics.
func RecountCatalogStats(ctx context.Context, pool *pgxpool.Pool, logger *slog.Logger) error {
	if pool == nil {
		return nil
	}
	statements := []string{
		`UPDATE topics t
		 SET activity_count = COALESCE(a.cnt, 0)
		 FROM topics x
		 LEFT JOIN (SELECT topic_id, COUNT(*) AS cnt FROM activities WHERE is_active GROUP BY topic_id) a
		 	ON a.topic_id = x.id
		 WHERE t.id = x.id`,
		`UPDATE year_groups yg
		 SET topic_count = COALESCE(t.cnt, 0)
		 FROM year_groups x
		 LEFT JOIN (SELECT year_group_id, COUNT(*) AS cnt FROM topics WHERE is_active GROUP BY year_group_id) t
		 	ON t.year_group_id = x.id
		 WHERE yg.id = x.id`,
		`UPDATE subjects s
		 SET total_topics = COALESCE(t.cnt, 0)
		 FROM subjects x
		 LEFT JOIN (SELECT yg.subject_id, COUNT(*) AS cnt
		 	FROM topics t JOIN year_groups yg ON yg.id = t.year_group_id
		 	WHERE t.is_active GROUP BY yg.subject_id) t
		 	ON t.subject_id = x.id
		 WHERE s.id = x.id`,
	}
	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			logger.Error("recount catalog stats", slog.Any("error", err))
			return err
		}
	}
	logger.Info("recounted catalog stats")
	return nil
}
