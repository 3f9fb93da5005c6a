package repository

import (
	"context"

	"github.com/fastygo/planner/domain"
)

// ActivityRepository reads activity documents as the editor stored them.
// Normalization into domain.Activity happens in the use cases, where the
// user's timezone is known.
type ActivityRepository interface {
	ListRecords(ctx context.Context, userID string) ([]domain.ActivityRecord, error)
}
