package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/fastygo/planner/domain"
	"github.com/fastygo/planner/repository"
)

// ActivityRepository holds activity documents per user.
type ActivityRepository struct {
	mu      sync.RWMutex
	records map[string]map[string]domain.ActivityRecord
}

func NewActivityRepository() *ActivityRepository {
	return &ActivityRepository{records: make(map[string]map[string]domain.ActivityRecord)}
}

var _ repository.ActivityRepository = (*ActivityRepository)(nil)

// Save replaces the record with the same id.
func (r *ActivityRepository) Save(userID string, records ...domain.ActivityRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.records[userID] == nil {
		r.records[userID] = make(map[string]domain.ActivityRecord)
	}
	for _, rec := range records {
		r.records[userID][rec.ID] = rec
	}
}

func (r *ActivityRepository) ListRecords(ctx context.Context, userID string) ([]domain.ActivityRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.ActivityRecord, 0, len(r.records[userID]))
	for _, rec := range r.records[userID] {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
