package catalog

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mathshelp/mathshelp25/internal/platform/httpx"
)

const (
	popularTopicsKey = "catalog:topics:popular"
	popularTopicsTTL = 5 * time.Minute
	topicViewPrefix  = "views:topic:"
)

// Service wraps catalog business rules. The redis client is optional; when
// absent, view counts and the popular listing fall back to postgres.
type Service struct {
	repo   Repository
	cache  *redis.Client
	logger *slog.Logger
}

// NewService constructs a Service.
func NewService(repo Repository, cache *redis.Client, logger *slog.Logger) *Service {
	return &Service{repo: repo, cache: cache, logger: logger}
}

// ListSubjects returns the active subjects.
func (s *Service) ListSubjects(ctx context.Context) ([]Subject, error) {
	return s.repo.ListSubjects(ctx)
}

// GetSubject returns one subject with its year groups.
func (s *Service) GetSubject(ctx context.Context, id int64) (*Subject, error) {
	return s.repo.GetSubject(ctx, id)
}

// CreateSubject validates and persists a new subject.
func (s *Service) CreateSubject(ctx context.Context, subject *Subject) error {
	subject.Name = strings.TrimSpace(subject.Name)
	if subject.Name == "" || !ValidCategory(subject.Category) || !ValidIconType(subject.IconType) {
		return httpx.ErrValidation
	}
	if subject.ColorTheme == "" {
		subject.ColorTheme = "#6f42c1"
	}
	return s.repo.CreateSubject(ctx, subject)
}

// UpdateSubject applies changes to an existing subject.
func (s *Service) UpdateSubject(ctx context.Context, subject *Subject) error {
	subject.Name = strings.TrimSpace(subject.Name)
	if subject.Name == "" || !ValidCategory(subject.Category) || !ValidIconType(subject.IconType) {
		return httpx.ErrValidation
	}
	return s.repo.UpdateSubject(ctx, subject)
}

// DeleteSubject soft-deletes a subject and everything beneath it.
func (s *Service) DeleteSubject(ctx context.Context, id int64) error {
	return s.repo.SoftDeleteSubject(ctx, id)
}

// ListYearGroups lists active year groups, optionally per subject.
func (s *Service) ListYearGroups(ctx context.Context, subjectID int64) ([]YearGroup, error) {
	return s.repo.ListYearGroups(ctx, subjectID)
}

// GetYearGroup returns one year group.
func (s *Service) GetYearGroup(ctx context.Context, id int64) (*YearGroup, error) {
	return s.repo.GetYearGroup(ctx, id)
}

// CreateYearGroup validates the parent subject and persists the year group.
func (s *Service) CreateYearGroup(ctx context.Context, yg *YearGroup) error {
	yg.Name = strings.TrimSpace(yg.Name)
	if yg.Name == "" || yg.YearLevel < 0 {
		return httpx.ErrValidation
	}
	if _, err := s.repo.GetSubject(ctx, yg.SubjectID); err != nil {
		return err
	}
	return s.repo.CreateYearGroup(ctx, yg)
}

// UpdateYearGroup applies changes to an existing year group.
func (s *Service) UpdateYearGroup(ctx context.Context, yg *YearGroup) error {
	yg.Name = strings.TrimSpace(yg.Name)
	if yg.Name == "" || yg.YearLevel < 0 {
		return httpx.ErrValidation
	}
	return s.repo.UpdateYearGroup(ctx, yg)
}

// DeleteYearGroup soft-deletes a year group and its topics.
func (s *Service) DeleteYearGroup(ctx context.Context, id int64) error {
	return s.repo.SoftDeleteYearGroup(ctx, id)
}

// ListTopics lists active topics matching the filter.
func (s *Service) ListTopics(ctx context.Context, filter TopicFilter) ([]Topic, error) {
	if filter.Difficulty != "" && !ValidDifficulty(filter.Difficulty) {
		return nil, httpx.ErrValidation
	}
	if filter.Strand != "" && !ValidStrand(filter.Strand) {
		return nil, httpx.ErrValidation
	}
	return s.repo.ListTopics(ctx, filter)
}

// GetTopic returns one topic and records the view.
func (s *Service) GetTopic(ctx context.Context, id int64) (*Topic, error) {
	t, err := s.repo.GetTopic(ctx, id)
	if err != nil {
		return nil, err
	}
	s.recordTopicView(ctx, id)
	return t, nil
}

// FindTopic returns one topic without recording a view. Mutation paths use
// this so ownership checks do not inflate the counter.
func (s *Service) FindTopic(ctx context.Context, id int64) (*Topic, error) {
	return s.repo.GetTopic(ctx, id)
}

// PopularTopics serves the most viewed topics through a short-lived cache.
func (s *Service) PopularTopics(ctx context.Context, limit int) ([]Topic, error) {
	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, popularTopicsKey).Bytes(); err == nil {
			var topics []Topic
			if err := json.Unmarshal(raw, &topics); err == nil {
				return topics, nil
			}
		}
	}

	topics, err := s.repo.PopularTopics(ctx, limit)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if raw, err := json.Marshal(topics); err == nil {
			if err := s.cache.Set(ctx, popularTopicsKey, raw, popularTopicsTTL).Err(); err != nil && s.logger != nil {
				s.logger.Warn("cache popular topics", slog.Any("error", err))
			}
		}
	}
	return topics, nil
}

// CreateTopic validates and persists a topic under an existing year group.
func (s *Service) CreateTopic(ctx context.Context, t *Topic) error {
	t.Name = strings.TrimSpace(t.Name)
	if t.Name == "" || !ValidDifficulty(t.Difficulty) || !ValidStrand(t.Strand) {
		return httpx.ErrValidation
	}
	if _, err := s.repo.GetYearGroup(ctx, t.YearGroupID); err != nil {
		return err
	}
	return s.repo.CreateTopic(ctx, t)
}

// UpdateTopic applies changes to an existing topic.
func (s *Service) UpdateTopic(ctx context.Context, t *Topic) error {
	t.Name = strings.TrimSpace(t.Name)
	if t.Name == "" || !ValidDifficulty(t.Difficulty) || !ValidStrand(t.Strand) {
		return httpx.ErrValidation
	}
	return s.repo.UpdateTopic(ctx, t)
}

// DeleteTopic soft-deletes a topic.
func (s *Service) DeleteTopic(ctx context.Context, id int64) error {
	return s.repo.SoftDeleteTopic(ctx, id)
}

// recordTopicView accumulates a view in redis so reads stay cheap; the
// worker folds the counters into postgres.
func (s *Service) recordTopicView(ctx context.Context, id int64) {
	if s.cache == nil {
		if err := s.repo.AddTopicViews(ctx, id, 1); err != nil && s.logger != nil {
			s.logger.Warn("record topic view", slog.Int64("topic", id), slog.Any("error", err))
		}
		return
	}
	if err := s.cache.Incr(ctx, topicViewPrefix+strconv.FormatInt(id, 10)).Err(); err != nil && s.logger != nil {
		s.logger.Warn("record topic view", slog.Int64("topic", id), slog.Any("error", err))
	}
}

// FlushTopicViews folds accumulated redis view counters into postgres.
func (s *Service) FlushTopicViews(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	iter := s.cache.Scan(ctx, 0, topicViewPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		raw, err := s.cache.GetDel(ctx, key).Result()
		if err != nil {
			continue
		}
		id, err := strconv.ParseInt(strings.TrimPrefix(key, topicViewPrefix), 10, 64)
		if err != nil {
			continue
		}
		delta, err := strconv.Atoi(raw)
		if err != nil {
			continue
		}
		if err := s.repo.AddTopicViews(ctx, id, delta); err != nil {
			return err
		}
	}
	return iter.Err()
}
