package services

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/planner/domain"
	"github.com/fastygo/planner/internal/infrastructure/buffer"
	"github.com/fastygo/planner/repository"
	"github.com/fastygo/planner/repository/memory"
)

type healthStub bool

func (h healthStub) IsOnline() bool { return bool(h) }

type flakyUpdates struct {
	*memory.UpdateRepository
	err error
}

func (r *flakyUpdates) Upsert(ctx context.Context, u domain.Update) (repository.UpsertOutcome, error) {
	if r.err != nil {
		return repository.UpsertUnchanged, r.err
	}
	return r.UpdateRepository.Upsert(ctx, u)
}

func newProcessor(t *testing.T, updates repository.UpdateRepository, online bool) (*BufferProcessor, *buffer.Store) {
	t.Helper()
	store, err := buffer.Open(filepath.Join(t.TempDir(), "buffer.db"), "updates", 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return NewBufferProcessor(store, healthStub(online), updates, nil, ProcessorConfig{MaxRetries: 2}), store
}

func pendingUpdate(id string) domain.Update {
	return domain.Update{
		ID:         id,
		UserID:     "user-1",
		ActivityID: "water",
		Date:       domain.NewDate(2024, time.January, 1),
		Status:     domain.UpdatePending,
		Time:       &domain.TimeOfDay{Hour: 7, Minute: 15},
	}
}

func TestBufferRoundTrip(t *testing.T) {
	repo := memory.NewUpdateRepository()
	processor, store := newProcessor(t, repo, true)
	bridge := NewBufferBridge(processor)

	require.NoError(t, bridge.BufferUpdate(context.Background(), pendingUpdate("water-2024-01-01")))
	require.NoError(t, bridge.BufferUpdate(context.Background(), pendingUpdate("water-2024-01-01")))
	size, err := store.Size()
	require.NoError(t, err)
	assert.Equal(t, 1, size, "same update is parked once")

	require.NoError(t, processor.Drain(context.Background()))

	got, err := repo.Get(context.Background(), "user-1", "water-2024-01-01")
	require.NoError(t, err)
	assert.Equal(t, domain.UpdatePending, got.Status)
	require.NotNil(t, got.Time)
	assert.Equal(t, domain.TimeOfDay{Hour: 7, Minute: 15}, *got.Time)

	size, err = processor.Size()
	require.NoError(t, err)
	assert.Zero(t, size)
}

func TestBufferReplayKeepsStatus(t *testing.T) {
	repo := memory.NewUpdateRepository()
	processor, _ := newProcessor(t, repo, true)

	completed := pendingUpdate("water-2024-01-01")
	completed.Status = domain.UpdateCompleted
	repo.Put(completed)

	require.NoError(t, NewBufferBridge(processor).BufferUpdate(context.Background(), pendingUpdate("water-2024-01-01")))
	require.NoError(t, processor.Drain(context.Background()))

	got, err := repo.Get(context.Background(), "user-1", "water-2024-01-01")
	require.NoError(t, err)
	assert.Equal(t, domain.UpdateCompleted, got.Status)
}

func TestDrainSkipsWhileOffline(t *testing.T) {
	repo := memory.NewUpdateRepository()
	processor, store := newProcessor(t, repo, false)

	require.NoError(t, NewBufferBridge(processor).BufferUpdate(context.Background(), pendingUpdate("a")))
	require.NoError(t, processor.Drain(context.Background()))

	size, err := store.Size()
	require.NoError(t, err)
	assert.Equal(t, 1, size)
	assert.Zero(t, repo.Len("user-1"))
}

func TestDrainRetriesThenDrops(t *testing.T) {
	repo := &flakyUpdates{UpdateRepository: memory.NewUpdateRepository(), err: errors.New("timeout")}
	processor, store := newProcessor(t, repo, true)

	require.NoError(t, NewBufferBridge(processor).BufferUpdate(context.Background(), pendingUpdate("a")))

	require.NoError(t, processor.Drain(context.Background()))
	batch, err := store.GetBatch(10)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.Equal(t, 1, batch[0].Retries)

	require.NoError(t, processor.Drain(context.Background()))
	size, err := store.Size()
	require.NoError(t, err)
	assert.Zero(t, size, "dropped after MaxRetries")
}

func TestBufferBridgeRejectsIncompleteUpdate(t *testing.T) {
	processor, _ := newProcessor(t, memory.NewUpdateRepository(), true)
	err := NewBufferBridge(processor).BufferUpdate(context.Background(), domain.Update{ID: "x"})
	assert.ErrorIs(t, err, domain.ErrInvalidPayload)
}
