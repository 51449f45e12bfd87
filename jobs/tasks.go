package jobs

import (
	"context"
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"

	// TaskViewsFlush folds buffered redis view counters into postgres.
	TaskViewsFlush = "views:flush"
	// TaskStatsRecount rebuilds per-user contribution counters from source tables.
	TaskStatsRecount = "stats:recount"
	// TaskRatingsRefresh recomputes activity rating aggregates.
	TaskRatingsRefresh = "ratings:refresh"
	// TaskIdempotencyCleanup expires old idempotency keys.
	TaskIdempotencyCleanup = "idempotency:cleanup"
)

// StatsRecountPayload optionally narrows a recount to one user.
type StatsRecountPayload struct {
	UserID int64 `json:"userId,omitempty"`
}

// NewViewsFlushTask constructs a views flush task.
func NewViewsFlushTask() *asynq.Task {
	return asynq.NewTask(TaskViewsFlush, nil)
}

// NewStatsRecountTask constructs a stats recount task.
func NewStatsRecountTask(payload StatsRecountPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskStatsRecount, data), nil
}

// NewRatingsRefreshTask constructs a ratings refresh task.
func NewRatingsRefreshTask() *asynq.Task {
	return asynq.NewTask(TaskRatingsRefresh, nil)
}

// NewIdempotencyCleanupTask constructs a cleanup task.
func NewIdempotencyCleanupTask() *asynq.Task {
	return asynq.NewTask(TaskIdempotencyCleanup, nil)
}

// DecodeStatsRecount extracts the payload of a stats recount task. A corrupt
// payload skips retry since retrying cannot fix it.
func DecodeStatsRecount(t *asynq.Task) (StatsRecountPayload, error) {
	var payload StatsRecountPayload
	if len(t.Payload()) == 0 {
		return payload, nil
	}
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return payload, asynq.SkipRetry
	}
	return payload, nil
}

// HandlerFor adapts a plain func into an asynq handler.
func HandlerFor(fn func(ctx context.Context) error) asynq.HandlerFunc {
	return func(ctx context.Context, _ *asynq.Task) error {
		return fn(ctx)
	}
}
