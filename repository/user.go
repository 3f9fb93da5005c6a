package repository

import (
	"context"

	"github.com/fastygo/planner/domain"
)

type UserRepository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	// ListIDs pages through active user ids in ascending order, starting after afterID.
	ListIDs(ctx context.Context, afterID string, limit int) ([]string, error)
}
