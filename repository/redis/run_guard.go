package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redislib "github.com/redis/go-redis/v9"

	"github.com/fastygo/planner/domain"
	"github.com/fastygo/planner/repository"
)

type runGuard struct {
	client *redislib.Client
	prefix string
	ttl    time.Duration
}

// NewRunGuard creates a Redis-backed run guard. Markers without an expiry
// live for ttl.
func NewRunGuard(client *redislib.Client, ttl time.Duration) repository.RunGuard {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &runGuard{
		client: client,
		prefix: "planner:run:",
		ttl:    ttl,
	}
}

func (g *runGuard) Put(ctx context.Context, marker *domain.RunMarker) error {
	if marker == nil || marker.Key == "" {
		return domain.ErrInvalidPayload
	}

	if marker.CreatedAt.IsZero() {
		marker.CreatedAt = time.Now()
	}
	if !marker.ExpiresAt.After(marker.CreatedAt) {
		marker.ExpiresAt = marker.CreatedAt.Add(g.ttl)
	}

	payload, err := json.Marshal(marker)
	if err != nil {
		return err
	}

	ttl := marker.ExpiresAt.Sub(marker.CreatedAt)
	return g.client.Set(ctx, g.key(marker.Key), payload, ttl).Err()
}

func (g *runGuard) Get(ctx context.Context, key string) (*domain.RunMarker, error) {
	result, err := g.client.Get(ctx, g.key(key)).Result()
	if err != nil {
		if errors.Is(err, redislib.Nil) {
			return nil, domain.ErrMarkerNotFound
		}
		return nil, err
	}

	var marker domain.RunMarker
	if err := json.Unmarshal([]byte(result), &marker); err != nil {
		return nil, err
	}
	return &marker, nil
}

func (g *runGuard) Release(ctx context.Context, key string) error {
	return g.client.Del(ctx, g.key(key)).Err()
}

func (g *runGuard) key(id string) string {
	return fmt.Sprintf("%s%s", g.prefix, id)
}
