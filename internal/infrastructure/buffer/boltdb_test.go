package buffer

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T, maxSize int) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "buffer.db"), "updates", maxSize)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func item(key string, priority int, at time.Time) Item {
	return Item{
		UserID:    "user-1",
		Entity:    EntityUpdate,
		Operation: OperationUpsert,
		Key:       key,
		Data:      json.RawMessage(`{"id":"` + key + `"}`),
		Priority:  priority,
		Timestamp: at,
	}
}

func TestStoreOrdersByPriorityThenTime(t *testing.T) {
	s := openStore(t, 0)
	base := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.Enqueue(item("late", 3, base.Add(time.Minute))))
	require.NoError(t, s.Enqueue(item("early", 3, base)))
	require.NoError(t, s.Enqueue(item("urgent", 1, base.Add(time.Hour))))

	batch, err := s.GetBatch(10)
	require.NoError(t, err)

	var keys []string
	for _, it := range batch {
		keys = append(keys, it.Key)
	}
	assert.Equal(t, []string{"urgent", "early", "late"}, keys)
}

func TestStoreReplacesSameKey(t *testing.T) {
	s := openStore(t, 0)
	now := time.Now()

	first := item("user-1/water-2024-01-01", 3, now)
	first.Data = json.RawMessage(`{"v":1}`)
	second := item("user-1/water-2024-01-01", 3, now.Add(time.Second))
	second.Data = json.RawMessage(`{"v":2}`)

	require.NoError(t, s.Enqueue(first))
	require.NoError(t, s.Enqueue(second))

	size, err := s.Size()
	require.NoError(t, err)
	assert.Equal(t, 1, size)

	batch, err := s.GetBatch(10)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.JSONEq(t, `{"v":2}`, string(batch[0].Data))
	assert.NotEmpty(t, batch[0].ID)
}

func TestStoreRemoveAndRequeue(t *testing.T) {
	s := openStore(t, 0)
	require.NoError(t, s.Enqueue(item("a", 3, time.Now().Add(-time.Minute))))
	require.NoError(t, s.Enqueue(item("b", 3, time.Now())))

	batch, err := s.GetBatch(1)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	require.Equal(t, "a", batch[0].Key)

	batch[0].Retries++
	require.NoError(t, s.Requeue(batch[0]))

	batch, err = s.GetBatch(10)
	require.NoError(t, err)
	require.Len(t, batch, 2)
	assert.Equal(t, "b", batch[0].Key)
	assert.Equal(t, "a", batch[1].Key)
	assert.Equal(t, 1, batch[1].Retries)

	require.NoError(t, s.Remove(batch[0]))
	require.NoError(t, s.Remove(Item{ID: batch[1].ID}))

	size, err := s.Size()
	require.NoError(t, err)
	assert.Zero(t, size)

	// The index entry is gone too, so the key can be parked again.
	require.NoError(t, s.Enqueue(item("a", 3, time.Now())))
	size, err = s.Size()
	require.NoError(t, err)
	assert.Equal(t, 1, size)
}

func TestStoreRejectsWhenFull(t *testing.T) {
	s := openStore(t, 2)
	require.NoError(t, s.Enqueue(item("a", 3, time.Now())))
	require.NoError(t, s.Enqueue(item("b", 3, time.Now())))

	assert.ErrorIs(t, s.Enqueue(item("c", 3, time.Now())), ErrFull)
	assert.NoError(t, s.Enqueue(item("a", 3, time.Now())), "replacing an existing key does not grow the store")
}

func TestStoreCleanup(t *testing.T) {
	s := openStore(t, 0)
	now := time.Now()
	require.NoError(t, s.Enqueue(item("old-1", 3, now.Add(-48*time.Hour))))
	require.NoError(t, s.Enqueue(item("old-2", 1, now.Add(-25*time.Hour))))
	require.NoError(t, s.Enqueue(item("fresh", 3, now)))

	removed, err := s.Cleanup(now.Add(-24 * time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	batch, err := s.GetBatch(10)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.Equal(t, "fresh", batch[0].Key)
}

func TestClosedStore(t *testing.T) {
	var s *Store
	assert.Error(t, s.Enqueue(item("a", 3, time.Now())))
	_, err := s.Size()
	assert.Error(t, err)
	assert.NoError(t, s.Close())
}
