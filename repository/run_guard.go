package repository

import (
	"context"

	"github.com/fastygo/planner/domain"
)

// RunGuard stores short-lived run markers.
type RunGuard interface {
	// Get returns the live marker stored under key, or domain.ErrMarkerNotFound.
	Get(ctx context.Context, key string) (*domain.RunMarker, error)
	// Put stores marker, replacing any marker with the same key.
	Put(ctx context.Context, marker *domain.RunMarker) error
	Release(ctx context.Context, key string) error
}
