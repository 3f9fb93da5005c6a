package memory

import (
	"context"
	"sync"

	"github.com/fastygo/planner/domain"
	"github.com/fastygo/planner/repository"
)

// RunGuard keeps run markers in memory, honouring their expiry.
type RunGuard struct {
	mu      sync.Mutex
	markers map[string]domain.RunMarker
	clock   domain.Clock
}

func NewRunGuard(clock domain.Clock) *RunGuard {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	return &RunGuard{markers: make(map[string]domain.RunMarker), clock: clock}
}

var _ repository.RunGuard = (*RunGuard)(nil)

func (g *RunGuard) Put(ctx context.Context, marker *domain.RunMarker) error {
	if marker == nil || marker.Key == "" {
		return domain.ErrInvalidPayload
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.markers[marker.Key] = *marker
	return nil
}

func (g *RunGuard) Get(ctx context.Context, key string) (*domain.RunMarker, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	m, ok := g.markers[key]
	if !ok || m.IsExpired(g.clock.Now()) {
		return nil, domain.ErrMarkerNotFound
	}
	return &m, nil
}

func (g *RunGuard) Release(ctx context.Context, key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.markers, key)
	return nil
}

