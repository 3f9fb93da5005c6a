package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/fastygo/planner/domain"
	"github.com/fastygo/planner/repository"
)

// UpdateRepository keeps updates in process memory for local development and tests.
type UpdateRepository struct {
	mu      sync.RWMutex
	updates map[string]map[string]domain.Update
	writes  int
}

func NewUpdateRepository() *UpdateRepository {
	return &UpdateRepository{updates: make(map[string]map[string]domain.Update)}
}

var _ repository.UpdateRepository = (*UpdateRepository)(nil)

func (r *UpdateRepository) Upsert(ctx context.Context, u domain.Update) (repository.UpsertOutcome, error) {
	if err := ctx.Err(); err != nil {
		return repository.UpsertUnchanged, err
	}
	if u.UserID == "" || u.ID == "" {
		return repository.UpsertUnchanged, domain.ErrInvalidPayload
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	byID := r.updates[u.UserID]
	if byID == nil {
		byID = make(map[string]domain.Update)
		r.updates[u.UserID] = byID
	}

	existing, ok := byID[u.ID]
	if !ok {
		if u.Status == "" {
			u.Status = domain.UpdatePending
		}
		byID[u.ID] = cloneUpdate(u)
		r.writes++
		return repository.UpsertCreated, nil
	}
	if existing.SameSchedule(u) {
		return repository.UpsertUnchanged, nil
	}

	existing.ActivityID = u.ActivityID
	existing.Date = u.Date
	existing.Time = u.Time
	existing.UpdatedAt = u.UpdatedAt
	byID[u.ID] = cloneUpdate(existing)
	r.writes++
	return repository.UpsertUpdated, nil
}

func (r *UpdateRepository) Get(ctx context.Context, userID, id string) (*domain.Update, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.updates[userID][id]
	if !ok {
		return nil, domain.ErrUpdateNotFound
	}
	out := cloneUpdate(u)
	return &out, nil
}

func (r *UpdateRepository) List(ctx context.Context, filter repository.UpdateFilter) ([]domain.Update, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []domain.Update
	for _, u := range r.updates[filter.UserID] {
		if !filter.From.IsZero() && u.Date.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && u.Date.After(filter.To) {
			continue
		}
		if filter.Status != "" && u.Status != filter.Status {
			continue
		}
		out = append(out, cloneUpdate(u))
	}
	sortUpdates(out)

	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return nil, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *UpdateRepository) ListPendingBefore(ctx context.Context, userID string, before domain.Date, after repository.UpdateCursor, limit int) ([]domain.Update, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []domain.Update
	for _, u := range r.updates[userID] {
		if u.Status != domain.UpdatePending || !u.Date.Before(before) {
			continue
		}
		if !after.Date.IsZero() {
			c := u.Date.Compare(after.Date)
			if c < 0 || (c == 0 && u.ID <= after.ID) {
				continue
			}
		}
		out = append(out, cloneUpdate(u))
	}
	sortUpdates(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *UpdateRepository) MarkMissed(ctx context.Context, userID string, ids []string, before domain.Date, at time.Time) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	var flipped []string
	for _, id := range ids {
		u, ok := r.updates[userID][id]
		if !ok || u.Status != domain.UpdatePending || !u.Date.Before(before) {
			continue
		}
		u.Status = domain.UpdateMissed
		u.UpdatedAt = at
		r.updates[userID][id] = u
		r.writes++
		flipped = append(flipped, id)
	}
	return flipped, nil
}

func (r *UpdateRepository) SetStatus(ctx context.Context, userID, id string, from, to domain.UpdateStatus, at time.Time) (*domain.Update, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.updates[userID][id]
	if !ok {
		return nil, domain.ErrUpdateNotFound
	}
	if u.Status != from {
		return nil, domain.ErrStatusTransition
	}
	u.Status = to
	u.UpdatedAt = at
	r.updates[userID][id] = u
	r.writes++
	out := cloneUpdate(u)
	return &out, nil
}

// Writes counts stored mutations. Unchanged upserts are not counted.
func (r *UpdateRepository) Writes() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.writes
}

// Len returns the number of updates stored for userID.
func (r *UpdateRepository) Len(userID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.updates[userID])
}

// Put stores u as-is, bypassing merge rules. Handy for seeding.
func (r *UpdateRepository) Put(u domain.Update) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updates[u.UserID] == nil {
		r.updates[u.UserID] = make(map[string]domain.Update)
	}
	r.updates[u.UserID][u.ID] = cloneUpdate(u)
}

func cloneUpdate(u domain.Update) domain.Update {
	if u.Time != nil {
		t := *u.Time
		u.Time = &t
	}
	return u
}

func sortUpdates(updates []domain.Update) {
	sort.Slice(updates, func(i, j int) bool {
		if c := updates[i].Date.Compare(updates[j].Date); c != 0 {
			return c < 0
		}
		return updates[i].ID < updates[j].ID
	})
}
