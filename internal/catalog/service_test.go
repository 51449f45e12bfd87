package catalog

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/mathshelp/mathshelp25/internal/platform/httpx"
)

type memoryRepo struct {
	subjects     map[int64]*Subject
	yearGroups   map[int64]*YearGroup
	topics       map[int64]*Topic
	nextID       int64
	popularCalls int
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		subjects:   make(map[int64]*Subject),
		yearGroups: make(map[int64]*YearGroup),
		topics:     make(map[int64]*Topic),
	}
}

func (r *memoryRepo) ListSubjects(ctx context.Context) ([]Subject, error) {
	var out []Subject
	for _, s := range r.subjects {
		if s.IsActive {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (r *memoryRepo) GetSubject(ctx context.Context, id int64) (*Subject, error) {
	if s, ok := r.subjects[id]; ok && s.IsActive {
		clone := *s
		return &clone, nil
	}
	return nil, httpx.ErrNotFound
}

func (r *memoryRepo) CreateSubject(ctx context.Context, s *Subject) error {
	r.nextID++
	s.ID = r.nextID
	s.IsActive = true
	clone := *s
	r.subjects[s.ID] = &clone
	return nil
}

func (r *memoryRepo) UpdateSubject(ctx context.Context, s *Subject) error {
	stored, ok := r.subjects[s.ID]
	if !ok || !stored.IsActive {
		return httpx.ErrNotFound
	}
	*stored = *s
	return nil
}

func (r *memoryRepo) SoftDeleteSubject(ctx context.Context, id int64) error {
	s, ok := r.subjects[id]
	if !ok || !s.IsActive {
		return httpx.ErrNotFound
	}
	s.IsActive = false
	for _, yg := range r.yearGroups {
		if yg.SubjectID == id {
			yg.IsActive = false
			for _, t := range r.topics {
				if t.YearGroupID == yg.ID {
					t.IsActive = false
				}
			}
		}
	}
	return nil
}

func (r *memoryRepo) ListYearGroups(ctx context.Context, subjectID int64) ([]YearGroup, error) {
	var out []YearGroup
	for _, yg := range r.yearGroups {
		if yg.IsActive && (subjectID == 0 || yg.SubjectID == subjectID) {
			out = append(out, *yg)
		}
	}
	return out, nil
}

func (r *memoryRepo) GetYearGroup(ctx context.Context, id int64) (*YearGroup, error) {
	if yg, ok := r.yearGroups[id]; ok && yg.IsActive {
		clone := *yg
		return &clone, nil
	}
	return nil, httpx.ErrNotFound
}

func (r *memoryRepo) CreateYearGroup(ctx context.Context, yg *YearGroup) error {
	r.nextID++
	yg.ID = r.nextID
	yg.IsActive = true
	clone := *yg
	r.yearGroups[yg.ID] = &clone
	return nil
}

func (r *memoryRepo) UpdateYearGroup(ctx context.Context, yg *YearGroup) error {
	stored, ok := r.yearGroups[yg.ID]
	if !ok || !stored.IsActive {
		return httpx.ErrNotFound
	}
	*stored = *yg
	return nil
}

func (r *memoryRepo) SoftDeleteYearGroup(ctx context.Context, id int64) error {
	yg, ok := r.yearGroups[id]
	if !ok || !yg.IsActive {
		return httpx.ErrNotFound
	}
	yg.IsActive = false
	return nil
}

func (r *memoryRepo) ListTopics(ctx context.Context, filter TopicFilter) ([]Topic, error) {
	var out []Topic
	for _, t := range r.topics {
		if !t.IsActive {
			continue
		}
		if filter.YearGroupID > 0 && t.YearGroupID != filter.YearGroupID {
			continue
		}
		if filter.Difficulty != "" && t.Difficulty != filter.Difficulty {
			continue
		}
		if filter.Strand != "" && t.Strand != filter.Strand {
			continue
		}
		out = append(out, *t)
	}
	return out, nil
}

func (r *memoryRepo) GetTopic(ctx context.Context, id int64) (*Topic, error) {
	if t, ok := r.topics[id]; ok && t.IsActive {
		clone := *t
		return &clone, nil
	}
	return nil, httpx.ErrNotFound
}

func (r *memoryRepo) PopularTopics(ctx context.Context, limit int) ([]Topic, error) {
	r.popularCalls++
	var out []Topic
	for _, t := range r.topics {
		if t.IsActive {
			out = append(out, *t)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// CreateTopic mirrors the transactional counter maintenance of the SQL
// repository: the parent year group and its subject both move.
func (r *memoryRepo) CreateTopic(ctx context.Context, t *Topic) error {
	r.nextID++
	t.ID = r.nextID
	t.IsActive = true
	clone := *t
	r.topics[t.ID] = &clone
	if yg, ok := r.yearGroups[t.YearGroupID]; ok {
		yg.TopicCount++
		if s, ok := r.subjects[yg.SubjectID]; ok {
			s.TotalTopics++
		}
	}
	return nil
}

func (r *memoryRepo) UpdateTopic(ctx context.Context, t *Topic) error {
	stored, ok := r.topics[t.ID]
	if !ok || !stored.IsActive {
		return httpx.ErrNotFound
	}
	*stored = *t
	return nil
}

func (r *memoryRepo) SoftDeleteTopic(ctx context.Context, id int64) error {
	t, ok := r.topics[id]
	if !ok || !t.IsActive {
		return httpx.ErrNotFound
	}
	t.IsActive = false
	if yg, ok := r.yearGroups[t.YearGroupID]; ok {
		if yg.TopicCount > 0 {
			yg.TopicCount--
		}
		if s, ok := r.subjects[yg.SubjectID]; ok && s.TotalTopics > 0 {
			s.TotalTopics--
		}
	}
	return nil
}

func (r *memoryRepo) AddTopicViews(ctx context.Context, id int64, delta int) error {
	t, ok := r.topics[id]
	if !ok {
		return httpx.ErrNotFound
	}
	t.ViewCount += delta
	return nil
}

func testCache(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func seedTopic(t *testing.T, repo *memoryRepo) *Topic {
	t.Helper()
	yg := &YearGroup{SubjectID: 1, Name: "Year 8"}
	require.NoError(t, repo.CreateYearGroup(context.Background(), yg))
	topic := &Topic{YearGroupID: yg.ID, Name: "Linear Equations", Difficulty: "Foundation", Strand: "Number and Algebra"}
	require.NoError(t, repo.CreateTopic(context.Background(), topic))
	return topic
}

func TestCreateSubjectValidation(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil)

	err := svc.CreateSubject(context.Background(), &Subject{Name: "  ", Category: "Secondary", IconType: "calculator"})
	require.ErrorIs(t, err, httpx.ErrValidation)

	err = svc.CreateSubject(context.Background(), &Subject{Name: "Maths", Category: "nonsense", IconType: "calculator"})
	require.ErrorIs(t, err, httpx.ErrValidation)

	subject := &Subject{Name: "Maths", Category: "Secondary", IconType: "calculator"}
	require.NoError(t, svc.CreateSubject(context.Background(), subject))
	require.NotZero(t, subject.ID)
	require.NotEmpty(t, subject.ColorTheme)
}

func TestCreateTopicRequiresYearGroup(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)

	err := svc.CreateTopic(context.Background(), &Topic{
		YearGroupID: 42, Name: "Orphan", Difficulty: "Foundation", Strand: "Number and Algebra",
	})
	require.ErrorIs(t, err, httpx.ErrNotFound)
}

func TestGetTopicBuffersViewInRedis(t *testing.T) {
	repo := newMemoryRepo()
	cache := testCache(t)
	svc := NewService(repo, cache, nil)
	topic := seedTopic(t, repo)

	for i := 0; i < 3; i++ {
		_, err := svc.GetTopic(context.Background(), topic.ID)
		require.NoError(t, err)
	}

	// Views accumulate in redis, not postgres, until the worker flushes.
	require.Zero(t, repo.topics[topic.ID].ViewCount)

	require.NoError(t, svc.FlushTopicViews(context.Background()))
	require.Equal(t, 3, repo.topics[topic.ID].ViewCount)

	// A second flush has nothing left to fold.
	require.NoError(t, svc.FlushTopicViews(context.Background()))
	require.Equal(t, 3, repo.topics[topic.ID].ViewCount)
}

func TestGetTopicFallsBackToDirectViews(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	topic := seedTopic(t, repo)

	_, err := svc.GetTopic(context.Background(), topic.ID)
	require.NoError(t, err)
	require.Equal(t, 1, repo.topics[topic.ID].ViewCount)
}

func TestPopularTopicsUsesCache(t *testing.T) {
	repo := newMemoryRepo()
	cache := testCache(t)
	svc := NewService(repo, cache, nil)
	seedTopic(t, repo)

	first, err := svc.PopularTopics(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := svc.PopularTopics(context.Background(), 10)
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, 1, repo.popularCalls)
}

func TestFindTopicDoesNotRecordView(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	topic := seedTopic(t, repo)

	_, err := svc.FindTopic(context.Background(), topic.ID)
	require.NoError(t, err)
	require.Zero(t, repo.topics[topic.ID].ViewCount)
}

func TestTopicCountersFollowCreateAndDelete(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)

	subject := &Subject{Name: "Maths", Category: "Secondary", IconType: "calculator"}
	require.NoError(t, svc.CreateSubject(context.Background(), subject))
	yg := &YearGroup{SubjectID: subject.ID, Name: "Year 9", YearLevel: 9}
	require.NoError(t, svc.CreateYearGroup(context.Background(), yg))

	topic := &Topic{YearGroupID: yg.ID, Name: "Pythagoras", Difficulty: "Proficient", Strand: "Measurement and Geometry"}
	require.NoError(t, svc.CreateTopic(context.Background(), topic))
	require.Equal(t, 1, repo.yearGroups[yg.ID].TopicCount)
	require.Equal(t, 1, repo.subjects[subject.ID].TotalTopics)

	require.NoError(t, svc.DeleteTopic(context.Background(), topic.ID))
	require.Zero(t, repo.yearGroups[yg.ID].TopicCount)
	require.Zero(t, repo.subjects[subject.ID].TotalTopics)
}

func TestListTopicsRejectsUnknownEnums(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil)

	_, err := svc.ListTopics(context.Background(), TopicFilter{Difficulty: "impossible"})
	require.ErrorIs(t, err, httpx.ErrValidation)

	_, err = svc.ListTopics(context.Background(), TopicFilter{Strand: "alchemy"})
	require.ErrorIs(t, err, httpx.ErrValidation)
}
