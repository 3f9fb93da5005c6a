package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/fastygo/planner/domain"
	"github.com/fastygo/planner/repository"
)

// UserRepository holds users in memory.
type UserRepository struct {
	mu    sync.RWMutex
	users map[string]domain.User
}

func NewUserRepository(users ...domain.User) *UserRepository {
	r := &UserRepository{users: make(map[string]domain.User)}
	for _, u := range users {
		r.Save(u)
	}
	return r
}

var _ repository.UserRepository = (*UserRepository)(nil)

func (r *UserRepository) Save(u domain.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u.Status == "" {
		u.Status = "active"
	}
	r.users[u.ID] = u
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return &u, nil
}

func (r *UserRepository) ListIDs(ctx context.Context, afterID string, limit int) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.users))
	for id, u := range r.users {
		if id > afterID && u.IsActive() {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}
