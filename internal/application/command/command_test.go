package command_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ruben-Makrati/gamified-bible-study-app/internal/application/command"
	"github.com/Ruben-Makrati/gamified-bible-study-app/internal/domain/lesson"
	"github.com/Ruben-Makrati/gamified-bible-study-app/internal/domain/progress"
	"github.com/Ruben-Makrati/gamified-bible-study-app/internal/domain/shared"
	"github.com/Ruben-Makrati/gamified-bible-study-app/internal/infrastructure/persistence/docstore"
	"github.com/Ruben-Makrati/gamified-bible-study-app/internal/infrastructure/persistence/repository"
	"github.com/Ruben-Makrati/gamified-bible-study-app/pkg/timeutil"
)

var monday = time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)

type recordingPublisher struct {
	mu     sync.Mutex
	events []shared.Event
}

func (p *recordingPublisher) Publish(e shared.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) types() []shared.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]shared.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventType())
	}
	return out
}

type fixture struct {
	store    *docstore.MemoryStore
	users    *repository.ProgressRepository
	lessons  *repository.LessonRepository
	clock    *timeutil.FixedClock
	events   *recordingPublisher
	complete *command.CompleteLessonHandler
}

func newFixture(t *testing.T, cfg command.CompleteLessonConfig) *fixture {
	t.Helper()
	f := &fixture{
		store:  docstore.NewMemoryStore(),
		clock:  timeutil.NewFixedClock(monday),
		events: &recordingPublisher{},
	}
	f.users = repository.NewProgressRepository(f.store)
	f.lessons = repository.NewLessonRepository(f.store)
	f.complete = command.NewCompleteLessonHandler(f.users, f.lessons, f.events, f.clock, nil, cfg)

	ctx := context.Background()
	for i, id := range []string{"l1", "l2", "l3", "l4", "l5"} {
		require.NoError(t, f.lessons.Save(ctx, &lesson.Lesson{ID: id, Title: "Lesson " + id, Order: i + 1, XPReward: 10}))
	}
	u, err := progress.NewUserProgress("u1", "ruth@example.com", "Ruth", monday)
	require.NoError(t, err)
	require.NoError(t, f.users.Create(ctx, u))
	return f
}

func (f *fixture) setUser(t *testing.T, fields docstore.Fields) {
	t.Helper()
	require.NoError(t, f.store.UpdateFields(context.Background(), docstore.CollectionUsers, "u1", fields))
}

func (f *fixture) user(t *testing.T) *progress.UserProgress {
	t.Helper()
	u, err := f.users.Get(context.Background(), "u1")
	require.NoError(t, err)
	return u
}

func TestCompleteLesson_FirstCompletion(t *testing.T) {
	f := newFixture(t, command.CompleteLessonConfig{})

	res, err := f.complete.Handle(context.Background(), command.CompleteLessonCommand{UserID: "u1", LessonID: "l1"})
	require.NoError(t, err)

	assert.Equal(t, 10, res.XPGained)
	assert.Equal(t, 10, res.NewTotalXP)
	assert.Equal(t, 1, res.NewLevel)
	assert.False(t, res.LeveledUp)
	assert.Equal(t, 1, res.NewStreak)
	assert.True(t, res.StreakIncreased)
	assert.Equal(t, "2024-01-01", res.CompletionDate)

	u := f.user(t)
	assert.Equal(t, 10, u.TotalXP)
	assert.Equal(t, []string{"l1"}, u.CompletedLessons)
	assert.Equal(t, "2024-01-01", u.LastCompletionDate.String())

	assert.Equal(t, []shared.EventType{
		shared.EventLessonCompleted, shared.EventXPGained, shared.EventStreakUpdated,
	}, f.events.types())
}

func TestCompleteLesson_AlreadyCompletedWritesNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, command.CompleteLessonConfig{})

	_, err := f.complete.Handle(ctx, command.CompleteLessonCommand{UserID: "u1", LessonID: "l1"})
	require.NoError(t, err)
	writes := f.store.Writes()

	_, err = f.complete.Handle(ctx, command.CompleteLessonCommand{UserID: "u1", LessonID: "l1"})
	assert.ErrorIs(t, err, shared.ErrLessonCompleted)
	assert.True(t, shared.IsAlreadyCompleted(err))
	assert.False(t, shared.IsNotFound(err))
	assert.Equal(t, writes, f.store.Writes())
	assert.Equal(t, 10, f.user(t).TotalXP)
}

func TestCompleteLesson_LevelUp(t *testing.T) {
	f := newFixture(t, command.CompleteLessonConfig{})
	f.setUser(t, docstore.Fields{"totalXP": 95, "level": 1})

	res, err := f.complete.Handle(context.Background(), command.CompleteLessonCommand{UserID: "u1", LessonID: "l2"})
	require.NoError(t, err)

	assert.Equal(t, 105, res.NewTotalXP)
	assert.Equal(t, 2, res.NewLevel)
	assert.True(t, res.LeveledUp)
	assert.Contains(t, f.events.types(), shared.EventLevelUp)
}

func TestCompleteLesson_StreakAcrossDays(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, command.CompleteLessonConfig{})

	complete := func(id string) *command.CompleteLessonResult {
		res, err := f.complete.Handle(ctx, command.CompleteLessonCommand{UserID: "u1", LessonID: id})
		require.NoError(t, err)
		return res
	}

	assert.Equal(t, 1, complete("l1").NewStreak)

	// same day
	res := complete("l2")
	assert.Equal(t, 1, res.NewStreak)
	assert.False(t, res.StreakIncreased)

	f.clock.AdvanceDays(1)
	assert.Equal(t, 2, complete("l3").NewStreak)

	// missed a day
	f.clock.AdvanceDays(2)
	res = complete("l4")
	assert.Equal(t, 1, res.NewStreak)
	assert.Equal(t, 2, res.PreviousStreak)
	assert.Equal(t, 2, res.BestStreak)
	assert.Contains(t, f.events.types(), shared.EventStreakReset)

	u := f.user(t)
	assert.Equal(t, 40, u.TotalXP)
	assert.Equal(t, 2, u.BestStreak)
	assert.Equal(t, "2024-01-04", u.LastCompletionDate.String())
}

func TestCompleteLesson_BackdatedClockKeepsStreak(t *testing.T) {
	f := newFixture(t, command.CompleteLessonConfig{})
	f.setUser(t, docstore.Fields{"currentStreak": 4, "bestStreak": 4, "lastCompletionDate": "2024-01-03"})

	res, err := f.complete.Handle(context.Background(), command.CompleteLessonCommand{UserID: "u1", LessonID: "l1"})
	require.NoError(t, err)
	assert.Equal(t, 4, res.NewStreak)
	assert.Equal(t, "2024-01-03", res.CompletionDate)
}

func TestCompleteLesson_UsesClockLocation(t *testing.T) {
	f := newFixture(t, command.CompleteLessonConfig{})
	f.setUser(t, docstore.Fields{"currentStreak": 1, "bestStreak": 1, "lastCompletionDate": "2024-01-01"})

	// 2024-01-02 01:30 in UTC+3 is still 2024-01-01 in UTC
	east := time.FixedZone("UTC+3", 3*60*60)
	f.clock.Set(time.Date(2024, 1, 2, 1, 30, 0, 0, east))

	res, err := f.complete.Handle(context.Background(), command.CompleteLessonCommand{UserID: "u1", LessonID: "l1"})
	require.NoError(t, err)
	assert.Equal(t, 2, res.NewStreak)
	assert.Equal(t, "2024-01-02", res.CompletionDate)
}

func TestCompleteLesson_NotFound(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, command.CompleteLessonConfig{})
	writes := f.store.Writes()

	_, err := f.complete.Handle(ctx, command.CompleteLessonCommand{UserID: "u1", LessonID: "missing"})
	assert.ErrorIs(t, err, shared.ErrLessonNotFound)

	_, err = f.complete.Handle(ctx, command.CompleteLessonCommand{UserID: "ghost", LessonID: "l1"})
	assert.ErrorIs(t, err, shared.ErrUserNotFound)

	_, err = f.complete.Handle(ctx, command.CompleteLessonCommand{UserID: "u1"})
	assert.True(t, shared.IsValidation(err))

	assert.Equal(t, writes, f.store.Writes())
	assert.Empty(t, f.events.types())
}

func TestCompleteLesson_DefaultsMissingReward(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, command.CompleteLessonConfig{})
	require.NoError(t, f.store.SetRecord(ctx, docstore.CollectionLessons, "bare", docstore.Record{
		"title": "Forgiveness", "order": 9,
	}))

	res, err := f.complete.Handle(ctx, command.CompleteLessonCommand{UserID: "u1", LessonID: "bare"})
	require.NoError(t, err)
	assert.Equal(t, lesson.DefaultXPReward, res.XPGained)
}

func TestCompleteLesson_CorruptRecordWritesNothing(t *testing.T) {
	f := newFixture(t, command.CompleteLessonConfig{})
	f.setUser(t, docstore.Fields{"totalXP": -5})
	writes := f.store.Writes()

	_, err := f.complete.Handle(context.Background(), command.CompleteLessonCommand{UserID: "u1", LessonID: "l1"})
	assert.True(t, shared.IsInvalidState(err))
	assert.Equal(t, writes, f.store.Writes())
}

func TestCompleteLesson_SequentialUnlock(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, command.CompleteLessonConfig{SequentialUnlock: true})

	_, err := f.complete.Handle(ctx, command.CompleteLessonCommand{UserID: "u1", LessonID: "l2"})
	assert.ErrorIs(t, err, shared.ErrLessonLocked)
	assert.True(t, shared.IsForbidden(err))

	_, err = f.complete.Handle(ctx, command.CompleteLessonCommand{UserID: "u1", LessonID: "l1"})
	require.NoError(t, err)
	_, err = f.complete.Handle(ctx, command.CompleteLessonCommand{UserID: "u1", LessonID: "l2"})
	require.NoError(t, err)
}

// interferingRepo completes another lesson between the handler's read and
// its conditional write.
type interferingRepo struct {
	*repository.ProgressRepository
	once sync.Once
}

func (r *interferingRepo) ApplyCompletion(ctx context.Context, c progress.Completion, at time.Time) error {
	r.once.Do(func() {
		u, err := r.Get(ctx, c.UserID)
		if err != nil {
			return
		}
		other, err := progress.Plan(u, "l5", 10, c.CompletionDate)
		if err != nil {
			return
		}
		_ = r.ProgressRepository.ApplyCompletion(ctx, other, at)
	})
	return r.ProgressRepository.ApplyCompletion(ctx, c, at)
}

func TestCompleteLesson_LostRaceIsRetryable(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, command.CompleteLessonConfig{})
	h := command.NewCompleteLessonHandler(&interferingRepo{ProgressRepository: f.users}, f.lessons, f.events, f.clock, nil, command.CompleteLessonConfig{})

	_, err := h.Handle(ctx, command.CompleteLessonCommand{UserID: "u1", LessonID: "l1"})
	assert.ErrorIs(t, err, shared.ErrCompletionRace)
	assert.ErrorIs(t, err, shared.ErrConcurrentModification)
	assert.True(t, shared.IsRetryable(err))
	assert.Empty(t, f.events.types())

	u := f.user(t)
	assert.Equal(t, 10, u.TotalXP)
	assert.Equal(t, []string{"l5"}, u.CompletedLessons)

	// a retry succeeds
	res, err := h.Handle(ctx, command.CompleteLessonCommand{UserID: "u1", LessonID: "l1"})
	require.NoError(t, err)
	assert.Equal(t, 20, res.NewTotalXP)
}

// brokenWrites is a store whose conditional updates never reach the backend.
type brokenWrites struct {
	*docstore.MemoryStore
}

func (brokenWrites) UpdateFields(context.Context, string, string, docstore.Fields, ...docstore.Condition) error {
	return errors.New("connection reset by peer")
}

func TestCompleteLesson_StoreWriteFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, command.CompleteLessonConfig{})
	users := repository.NewProgressRepository(brokenWrites{f.store})
	h := command.NewCompleteLessonHandler(users, f.lessons, f.events, f.clock, nil, command.CompleteLessonConfig{})
	writes := f.store.Writes()

	_, err := h.Handle(ctx, command.CompleteLessonCommand{UserID: "u1", LessonID: "l1"})
	assert.ErrorIs(t, err, shared.ErrStoreUnavailable)
	assert.True(t, shared.IsUnavailable(err))
	assert.True(t, shared.IsRetryable(err))
	assert.Equal(t, writes, f.store.Writes())
	assert.Empty(t, f.events.types())

	u := f.user(t)
	assert.Zero(t, u.TotalXP)
	assert.Empty(t, u.CompletedLessons)
}

func TestCompleteLesson_StoreClosed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, command.CompleteLessonConfig{})
	writes := f.store.Writes()
	require.NoError(t, f.store.Close())

	_, err := f.complete.Handle(ctx, command.CompleteLessonCommand{UserID: "u1", LessonID: "l1"})
	assert.ErrorIs(t, err, shared.ErrStoreUnavailable)
	assert.True(t, shared.IsRetryable(err))
	assert.Equal(t, writes, f.store.Writes())
	assert.Empty(t, f.events.types())
}

func TestCompleteLesson_ConcurrentSameLesson(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, command.CompleteLessonConfig{})

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		failures  []error
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.complete.Handle(ctx, command.CompleteLessonCommand{UserID: "u1", LessonID: "l1"})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
				return
			}
			failures = append(failures, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	for _, err := range failures {
		assert.True(t, shared.IsAlreadyCompleted(err), "unexpected error: %v", err)
	}
	assert.Equal(t, 10, f.user(t).TotalXP)
}

func TestCompleteLesson_ConcurrentDifferentLessons(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, command.CompleteLessonConfig{})

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for _, id := range []string{"l1", "l2", "l3", "l4", "l5"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := f.complete.Handle(ctx, command.CompleteLessonCommand{UserID: "u1", LessonID: id})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
				return
			}
			assert.True(t, shared.IsRetryable(err), "unexpected error: %v", err)
		}(id)
	}
	wg.Wait()

	u := f.user(t)
	require.GreaterOrEqual(t, successes, 1)
	assert.Equal(t, 10*successes, u.TotalXP, "no lost updates")
	assert.Len(t, u.CompletedLessons, successes)
	assert.Equal(t, progress.ComputeLevel(u.TotalXP), u.Level)
}

func TestCreateProfile(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemoryStore()
	events := &recordingPublisher{}
	h := command.NewCreateProfileHandler(repository.NewProgressRepository(store), events, timeutil.NewFixedClock(monday), nil)

	u, err := h.Handle(ctx, command.CreateProfileCommand{UserID: "u9", Email: "Naomi@Example.com", DisplayName: "Naomi"})
	require.NoError(t, err)
	assert.Equal(t, 0, u.TotalXP)
	assert.Equal(t, 1, u.Level)
	assert.Equal(t, "naomi@example.com", u.Email)
	assert.Equal(t, []shared.EventType{shared.EventUserRegistered}, events.types())

	err = h.CreateProfile(ctx, "u9", "naomi@example.com", "Naomi")
	assert.ErrorIs(t, err, shared.ErrProfileExists)

	_, err = h.Handle(ctx, command.CreateProfileCommand{})
	assert.True(t, shared.IsValidation(err))
}

type countingInvalidator struct{ calls int }

func (c *countingInvalidator) Invalidate(context.Context) error {
	c.calls++
	return nil
}

func TestSeedLessons(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemoryStore()
	catalog := repository.NewLessonRepository(store)
	inv := &countingInvalidator{}
	events := &recordingPublisher{}
	h := command.NewSeedLessonsHandler(catalog, inv, events, timeutil.NewFixedClock(monday), nil)

	res, err := h.Handle(ctx, command.SeedLessonsCommand{})
	require.NoError(t, err)
	assert.Equal(t, len(lesson.DefaultLessons()), res.Seeded)
	assert.False(t, res.Skipped)
	assert.Equal(t, 1, inv.calls)
	assert.Equal(t, []shared.EventType{shared.EventLessonsSeeded}, events.types())

	list, err := catalog.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, res.Seeded)
	assert.Equal(t, "Faith and Trust", list[0].Title)
	assert.Equal(t, res.LessonIDs[0], list[0].ID)

	// non-empty catalog is left alone
	writes := store.Writes()
	res, err = h.Handle(ctx, command.SeedLessonsCommand{})
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Equal(t, writes, store.Writes())

	// forced reseed keeps ids
	res, err = h.Handle(ctx, command.SeedLessonsCommand{Force: true})
	require.NoError(t, err)
	again, err := catalog.List(ctx)
	require.NoError(t, err)
	require.Len(t, again, len(list))
	for i := range list {
		assert.Equal(t, list[i].ID, again[i].ID)
	}
	assert.Equal(t, 2, inv.calls)
}
