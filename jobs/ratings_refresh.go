package jobs

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

// RefreshActivityRatings recomputes every activity's rating aggregate from
// the ratings table, correcting any drift in the per-request updates.
func RefreshActivityRatings(ctx context.Context, pool *pgxpool.Pool, logger *slog.Logger) error {
	if pool == nil {
		return nil
	}
	tag, err := pool.Exec(ctx, `
		UPDATE activities a
		SET average_rating = COALESCE(s.avg, 0),
		    rating_count = COALESCE(s.cnt, 0)
		FROM activities x
		LEFT JOIN (SELECT activity_id, AVG(score) AS avg, COUNT(*) AS cnt
		           FROM activity_ratings GROUP BY activity_id) s
			ON s.activity_id = x.id
		WHERE a.id = x.id AND a.is_active`)
	if err != nil {
		logger.Error("refresh activity ratings", slog.Any("error", err))
		return err
	}
	logger.Info("refreshed activity ratings", slog.Int64("rows", tag.RowsAffected()))
	return nil
}
