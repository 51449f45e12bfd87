package activities

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/mathshelp/mathshelp25/internal/platform/httpx"
)

const activityViewPrefix = "views:activity:"

// Service wraps activity business rules. The redis client is optional and
// only batches view counts; without it views go straight to postgres.
type Service struct {
	repo   Repository
	cache  *redis.Client
	logger *slog.Logger
}

// NewService constructs a Service.
func NewService(repo Repository, cache *redis.Client, logger *slog.Logger) *Service {
	return &Service{repo: repo, cache: cache, logger: logger}
}

// List returns a filtered page of activities with the total match count.
func (s *Service) List(ctx context.Context, f Filter) ([]Activity, int64, error) {
	if f.ActivityType != "" && !ValidActivityType(f.ActivityType) {
		return nil, 0, httpx.ErrValidation
	}
	if f.Difficulty != "" && !ValidDifficulty(f.Difficulty) {
		return nil, 0, httpx.ErrValidation
	}
	if f.Status != "" && !ValidStatus(f.Status) {
		return nil, 0, httpx.ErrValidation
	}
	f.Search = strings.TrimSpace(f.Search)
	return s.repo.List(ctx, f)
}

// Get returns one activity and records the view.
func (s *Service) Get(ctx context.Context, id int64) (*Activity, error) {
	a, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.recordView(ctx, id)
	a.ViewCount++
	return a, nil
}

// Find returns one activity without recording a view. Mutation paths use
// this so ownership checks do not inflate the counter.
func (s *Service) Find(ctx context.Context, id int64) (*Activity, error) {
	return s.repo.Get(ctx, id)
}

// Create validates and persists a new activity. New activities start as
// drafts unless the caller publishes outright.
func (s *Service) Create(ctx context.Context, a *Activity) error {
	a.Title = strings.TrimSpace(a.Title)
	if a.Title == "" || !ValidActivityType(a.ActivityType) || !ValidDifficulty(a.Difficulty) {
		return httpx.ErrValidation
	}
	if a.Status == "" {
		a.Status = StatusDraft
	}
	if !ValidStatus(a.Status) {
		return httpx.ErrValidation
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
	return s.repo.Create(ctx, a)
}

// Update applies changes to an existing activity.
func (s *Service) Update(ctx context.Context, a *Activity) error {
	a.Title = strings.TrimSpace(a.Title)
	if a.Title == "" || !ValidActivityType(a.ActivityType) || !ValidDifficulty(a.Difficulty) || !ValidStatus(a.Status) {
		return httpx.ErrValidation
	}
	return s.repo.Update(ctx, a)
}

// Delete soft-deletes an activity.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.SoftDelete(ctx, id)
}

// Rate records or replaces the caller's rating and returns the refreshed
// activity with its new aggregate.
func (s *Service) Rate(ctx context.Context, activityID, userID int64, score int, comment string) (*Activity, error) {
	if !ValidScore(score) {
		return nil, httpx.ErrValidation
	}
	rating := &Rating{ActivityID: activityID, UserID: userID, Score: score, Comment: strings.TrimSpace(comment)}
	if err := s.repo.Rate(ctx, rating); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, activityID)
}

// Ratings lists an activity's ratings after confirming it exists.
func (s *Service) Ratings(ctx context.Context, activityID int64) ([]Rating, error) {
	if _, err := s.repo.Get(ctx, activityID); err != nil {
		return nil, err
	}
	return s.repo.RatingsFor(ctx, activityID)
}

// UserRating returns userID's own rating of an activity, nil when absent.
func (s *Service) UserRating(ctx context.Context, activityID, userID int64) (*Rating, error) {
	return s.repo.UserRating(ctx, activityID, userID)
}

func (s *Service) recordView(ctx context.Context, id int64) {
	if s.cache == nil {
		if err := s.repo.AddViews(ctx, id, 1); err != nil && s.logger != nil {
			s.logger.Warn("record activity view", "activity_id", id, "error", err)
		}
		return
	}
	if err := s.cache.Incr(ctx, activityViewPrefix+strconv.FormatInt(id, 10)).Err(); err != nil && s.logger != nil {
		s.logger.Warn("buffer activity view", "activity_id", id, "error", err)
	}
}

// FlushViews drains buffered redis view counters into postgres. It is run
// periodically by the background worker.
func (s *Service) FlushViews(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	iter := s.cache.Scan(ctx, 0, activityViewPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		raw, err := s.cache.GetDel(ctx, key).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return err
		}
		id, err := strconv.ParseInt(strings.TrimPrefix(key, activityViewPrefix), 10, 64)
		if err != nil {
			continue
		}
		delta, err := strconv.Atoi(raw)
		if err != nil || delta <= 0 {
			continue
		}
		if err := s.repo.AddViews(ctx, id, delta); err != nil {
			return err
		}
	}
	return iter.Err()
}
