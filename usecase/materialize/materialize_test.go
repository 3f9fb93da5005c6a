package materialize

import (
	"context"
	"errors"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/planner/domain"
	"github.com/fastygo/planner/repository"
	"github.com/fastygo/planner/repository/memory"
)

var monday = time.Date(2024, time.January, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	updates    *memory.UpdateRepository
	activities *memory.ActivityRepository
	users      *memory.UserRepository
	uc         *UseCase
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		updates:    memory.NewUpdateRepository(),
		activities: memory.NewActivityRepository(),
		users:      memory.NewUserRepository(domain.User{ID: "user-1", Timezone: "UTC"}),
	}
	opts = append([]Option{WithClock(domain.FixedClock(monday))}, opts...)
	f.uc = New(f.updates, f.activities, f.users, Config{}, nil, opts...)
	return f
}

func daily(id string) domain.Activity {
	return domain.Activity{
		ID:        id,
		UserID:    "user-1",
		Active:    true,
		Frequency: domain.FrequencyDaily,
		EnabledAt: domain.NewDate(2023, time.December, 1),
	}
}

type bufferStub struct {
	parked []domain.Update
	err    error
}

func (b *bufferStub) BufferUpdate(_ context.Context, u domain.Update) error {
	if b.err != nil {
		return b.err
	}
	b.parked = append(b.parked, u)
	return nil
}

type publisherStub struct {
	events []domain.UpdateEvent
}

func (p *publisherStub) Publish(_ context.Context, events ...domain.UpdateEvent) error {
	p.events = append(p.events, events...)
	return nil
}

type failingUpdates struct {
	*memory.UpdateRepository
	err error
}

func (r failingUpdates) Upsert(context.Context, domain.Update) (repository.UpsertOutcome, error) {
	return repository.UpsertUnchanged, r.err
}

func TestEnsureUpcomingUpdatesCoversHorizonInclusive(t *testing.T) {
	f := newFixture(t)
	today := domain.DateOf(monday)

	res, err := f.uc.EnsureUpcomingUpdates(context.Background(), "user-1", []domain.Activity{daily("water")}, 14, today)
	require.NoError(t, err)

	assert.Equal(t, 15, res.Matched)
	assert.Equal(t, 15, res.Created)
	assert.Equal(t, today, res.From)
	assert.Equal(t, today.AddDays(14), res.To)
	assert.Equal(t, 15, f.updates.Len("user-1"))

	last, err := f.updates.Get(context.Background(), "user-1", "water-2024-01-15")
	require.NoError(t, err)
	assert.Equal(t, domain.UpdatePending, last.Status)
}

func TestEnsureUpcomingUpdatesIsIdempotent(t *testing.T) {
	f := newFixture(t)
	today := domain.DateOf(monday)
	activities := []domain.Activity{daily("water"), {
		ID:           "gym",
		UserID:       "user-1",
		Active:       true,
		SelectedDays: []int{domain.DayNumber(time.Tuesday), domain.DayNumber(time.Thursday)},
		Time:         &domain.TimeOfDay{Hour: 18},
	}}

	first, err := f.uc.EnsureUpcomingUpdates(context.Background(), "user-1", activities, 14, today)
	require.NoError(t, err)
	writes := f.updates.Writes()

	second, err := f.uc.EnsureUpcomingUpdates(context.Background(), "user-1", activities, 14, today)
	require.NoError(t, err)

	assert.Equal(t, writes, f.updates.Writes(), "second run must not write")
	assert.Equal(t, first.Matched, second.Unchanged)
	assert.Zero(t, second.Created)
	assert.Zero(t, second.Updated)
}

func TestEnsureUpcomingUpdatesKeepsStatus(t *testing.T) {
	f := newFixture(t)
	today := domain.DateOf(monday)
	activities := []domain.Activity{daily("water")}

	_, err := f.uc.EnsureUpcomingUpdates(context.Background(), "user-1", activities, 3, today)
	require.NoError(t, err)

	_, err = f.updates.SetStatus(context.Background(), "user-1", "water-2024-01-02", domain.UpdatePending, domain.UpdateCompleted, monday)
	require.NoError(t, err)

	_, err = f.uc.EnsureUpcomingUpdates(context.Background(), "user-1", activities, 3, today)
	require.NoError(t, err)

	u, err := f.updates.Get(context.Background(), "user-1", "water-2024-01-02")
	require.NoError(t, err)
	assert.Equal(t, domain.UpdateCompleted, u.Status)
}

func TestEnsureUpcomingUpdatesRewritesChangedSlot(t *testing.T) {
	f := newFixture(t)
	today := domain.DateOf(monday)
	a := daily("water")
	a.Time = &domain.TimeOfDay{Hour: 8}

	_, err := f.uc.EnsureUpcomingUpdates(context.Background(), "user-1", []domain.Activity{a}, 0, today)
	require.NoError(t, err)

	a.Time = &domain.TimeOfDay{Hour: 9, Minute: 30}
	res, err := f.uc.EnsureUpcomingUpdates(context.Background(), "user-1", []domain.Activity{a}, 0, today)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Updated)

	u, err := f.updates.Get(context.Background(), "user-1", "water-2024-01-01")
	require.NoError(t, err)
	require.NotNil(t, u.Time)
	assert.Equal(t, domain.TimeOfDay{Hour: 9, Minute: 30}, *u.Time)
}

func TestEnsureUpcomingUpdatesSkipsInactive(t *testing.T) {
	f := newFixture(t)
	a := daily("paused")
	a.Active = false

	res, err := f.uc.EnsureUpcomingUpdates(context.Background(), "user-1", []domain.Activity{a}, 14, domain.DateOf(monday))
	require.NoError(t, err)
	assert.Zero(t, res.Evaluated)
	assert.Zero(t, f.updates.Len("user-1"))
}

func TestEnsureUpcomingUpdatesZeroHorizonIsTodayOnly(t *testing.T) {
	f := newFixture(t)

	res, err := f.uc.EnsureUpcomingUpdates(context.Background(), "user-1", []domain.Activity{daily("water")}, 0, domain.DateOf(monday))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)
}

func TestEnsureUpcomingUpdatesValidatesInput(t *testing.T) {
	f := newFixture(t)
	today := domain.DateOf(monday)

	_, err := f.uc.EnsureUpcomingUpdates(context.Background(), "user-1", nil, -1, today)
	assert.ErrorIs(t, err, domain.ErrInvalidHorizon)

	_, err = f.uc.EnsureUpcomingUpdates(context.Background(), "user-1", nil, domain.MaxHorizonDays+1, today)
	assert.ErrorIs(t, err, domain.ErrInvalidHorizon)

	_, err = f.uc.EnsureUpcomingUpdates(context.Background(), "", nil, 14, today)
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeInvalid))

	_, err = f.uc.EnsureUpcomingUpdates(context.Background(), "user-1", nil, 14, domain.Date{})
	assert.ErrorIs(t, err, domain.ErrInvalidDate)
}

func TestEnsureUpcomingUpdatesBuffersFailedWrites(t *testing.T) {
	buffer := &bufferStub{}
	f := newFixture(t)
	uc := New(failingUpdates{f.updates, errors.New("connection refused")}, f.activities, f.users, Config{}, nil,
		WithClock(domain.FixedClock(monday)), WithBuffer(buffer))

	res, err := uc.EnsureUpcomingUpdates(context.Background(), "user-1", []domain.Activity{daily("water")}, 2, domain.DateOf(monday))
	require.NoError(t, err)
	assert.Equal(t, 3, res.Buffered)
	assert.Len(t, buffer.parked, 3)
	assert.Equal(t, "water-2024-01-01", buffer.parked[0].ID)
}

func TestEnsureUpcomingUpdatesJoinsErrorsWithoutBuffer(t *testing.T) {
	f := newFixture(t)
	storeErr := errors.New("connection refused")
	uc := New(failingUpdates{f.updates, storeErr}, f.activities, f.users, Config{}, nil,
		WithClock(domain.FixedClock(monday)), WithBuffer(&bufferStub{err: errors.New("disk full")}))

	res, err := uc.EnsureUpcomingUpdates(context.Background(), "user-1", []domain.Activity{daily("water")}, 1, domain.DateOf(monday))
	require.Error(t, err)
	assert.ErrorIs(t, err, storeErr)
	assert.Equal(t, 2, res.Failed)
	assert.Equal(t, 2, res.Matched, "a failed write does not stop later occurrences")
}

func TestEnsureUpcomingUpdatesPublishesCreated(t *testing.T) {
	events := &publisherStub{}
	f := newFixture(t, WithEvents(events))
	today := domain.DateOf(monday)

	_, err := f.uc.EnsureUpcomingUpdates(context.Background(), "user-1", []domain.Activity{daily("water")}, 1, today)
	require.NoError(t, err)
	_, err = f.uc.EnsureUpcomingUpdates(context.Background(), "user-1", []domain.Activity{daily("water")}, 1, today)
	require.NoError(t, err)

	require.Len(t, events.events, 2)
	assert.Equal(t, domain.EventUpdateCreated, events.events[0].Type)
	assert.Equal(t, "water-2024-01-01", events.events[0].UpdateID)
}

func TestEnsureForUserUsesStoredRecords(t *testing.T) {
	f := newFixture(t)
	f.activities.Save("user-1",
		domain.ActivityRecord{ID: "water", ActiveStatus: true, Frequency: "Every day", EnabledAt: "2023-12-01"},
		domain.ActivityRecord{ID: "paused", ActiveStatus: false, Frequency: "daily"},
		domain.ActivityRecord{ID: "dentist", Type: "one_time", ActiveStatus: true, SelectedEndBeforeDate: "2024-01-05"},
	)

	res, err := f.uc.EnsureForUser(context.Background(), "user-1", -1)
	require.NoError(t, err)

	assert.Equal(t, domain.DefaultHorizonDays+1+1, res.Created)
	_, err = f.updates.Get(context.Background(), "user-1", "dentist-2024-01-05")
	assert.NoError(t, err)
}

func TestEnsureForUserHonoursTimezone(t *testing.T) {
	f := newFixture(t)
	// 09:00 UTC on Monday is still Sunday evening in Honolulu.
	f.users.Save(domain.User{ID: "user-2", Timezone: "Pacific/Honolulu"})
	f.activities.Save("user-2", domain.ActivityRecord{ID: "water", ActiveStatus: true, Frequency: "daily"})

	res, err := f.uc.EnsureForUser(context.Background(), "user-2", 0)
	require.NoError(t, err)
	assert.Equal(t, domain.NewDate(2023, time.December, 31), res.From)
}

func TestEnsureForUserUnknownUser(t *testing.T) {
	f := newFixture(t)
	_, err := f.uc.EnsureForUser(context.Background(), "ghost", 14)
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestEnsureForUserGuardSkipsRepeatedRun(t *testing.T) {
	guard := memory.NewRunGuard(domain.FixedClock(monday))
	f := newFixture(t, WithGuard(guard))
	f.activities.Save("user-1", domain.ActivityRecord{ID: "water", ActiveStatus: true, Frequency: "daily"})

	first, err := f.uc.EnsureForUser(context.Background(), "user-1", 14)
	require.NoError(t, err)
	assert.False(t, first.Skipped)

	second, err := f.uc.EnsureForUser(context.Background(), "user-1", 14)
	require.NoError(t, err)
	assert.True(t, second.Skipped)
	assert.Zero(t, second.Evaluated)

	// A changed activity set produces a new fingerprint.
	f.activities.Save("user-1", domain.ActivityRecord{ID: "walk", ActiveStatus: true, Frequency: "weekends"})
	third, err := f.uc.EnsureForUser(context.Background(), "user-1", 14)
	require.NoError(t, err)
	assert.False(t, third.Skipped)
}

func TestEnsureForUserReleasesGuardOnFailure(t *testing.T) {
	guard := memory.NewRunGuard(domain.FixedClock(monday))
	f := newFixture(t)
	f.activities.Save("user-1", domain.ActivityRecord{ID: "water", ActiveStatus: true, Frequency: "daily"})
	uc := New(failingUpdates{f.updates, errors.New("timeout")}, f.activities, f.users, Config{}, nil,
		WithClock(domain.FixedClock(monday)), WithGuard(guard))

	_, err := uc.EnsureForUser(context.Background(), "user-1", 1)
	require.Error(t, err)

	res, err := uc.EnsureForUser(context.Background(), "user-1", 1)
	require.Error(t, err)
	assert.False(t, res.Skipped)
}

func TestEnsureForUserGuardRerunsAfterRevertedEdit(t *testing.T) {
	guard := memory.NewRunGuard(domain.FixedClock(monday))
	f := newFixture(t, WithGuard(guard))
	ctx := context.Background()

	stretch := func(hour int) domain.ActivityRecord {
		return domain.ActivityRecord{
			ID:           "a1",
			ActiveStatus: true,
			Frequency:    "daily",
			Time:         &domain.RecordTime{Hour: domain.Int(hour), Minute: domain.Int(0)},
		}
	}
	storedHour := func() int {
		u, err := f.updates.Get(ctx, "user-1", "a1-2024-01-01")
		require.NoError(t, err)
		require.NotNil(t, u.Time)
		return u.Time.Hour
	}

	f.activities.Save("user-1", stretch(8))
	res, err := f.uc.EnsureForUser(ctx, "user-1", 2)
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.Equal(t, 8, storedHour())

	f.activities.Save("user-1", stretch(9))
	res, err = f.uc.EnsureForUser(ctx, "user-1", 2)
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.Equal(t, 9, storedHour())

	f.activities.Save("user-1", stretch(8))
	res, err = f.uc.EnsureForUser(ctx, "user-1", 2)
	require.NoError(t, err)
	assert.False(t, res.Skipped, "reverting an edit must rewrite the stored slot")
	assert.Equal(t, 3, res.Updated)
	assert.Equal(t, 8, storedHour())

	marker, err := guard.Get(ctx, GuardKey("user-1"))
	require.NoError(t, err)
	want, err := Fingerprint(domain.NormalizeActivities([]domain.ActivityRecord{stretch(8)}, "user-1", time.UTC), 2, domain.DateOf(monday))
	require.NoError(t, err)
	assert.Equal(t, want, marker.Fingerprint)
}

type unavailableGuard struct{}

func (unavailableGuard) Get(context.Context, string) (*domain.RunMarker, error) {
	return nil, errors.New("connection refused")
}

func (unavailableGuard) Put(context.Context, *domain.RunMarker) error {
	return errors.New("connection refused")
}

func (unavailableGuard) Release(context.Context, string) error {
	return nil
}

func TestEnsureForUserRunsWhenGuardUnavailable(t *testing.T) {
	f := newFixture(t, WithGuard(unavailableGuard{}))
	f.activities.Save("user-1", domain.ActivityRecord{ID: "water", ActiveStatus: true, Frequency: "daily"})

	for i := 0; i < 2; i++ {
		res, err := f.uc.EnsureForUser(context.Background(), "user-1", 1)
		require.NoError(t, err)
		assert.False(t, res.Skipped)
	}
	assert.Equal(t, 2, f.updates.Len("user-1"))
}

func TestEnsureWithActivities(t *testing.T) {
	f := newFixture(t)
	records := []domain.ActivityRecord{{ID: "read", ActiveStatus: true, Frequency: "weekdays"}}

	res, err := f.uc.EnsureWithActivities(context.Background(), "user-1", records, 6)
	require.NoError(t, err)
	assert.Equal(t, 5, res.Created)
}

func TestFingerprintIsStable(t *testing.T) {
	today := domain.DateOf(monday)
	a, err := Fingerprint([]domain.Activity{daily("water")}, 14, today)
	require.NoError(t, err)
	b, err := Fingerprint([]domain.Activity{daily("water")}, 14, today)
	require.NoError(t, err)
	c, err := Fingerprint([]domain.Activity{daily("water")}, 14, today.AddDays(1))
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 32)
}
