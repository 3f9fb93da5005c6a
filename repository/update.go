package repository

import (
	"context"
	"time"

	"github.com/fastygo/planner/domain"
)

// UpsertOutcome tells what a merge-upsert did to the stored record.
type UpsertOutcome int

const (
	UpsertUnchanged UpsertOutcome = iota
	UpsertCreated
	UpsertUpdated
)

func (o UpsertOutcome) String() string {
	switch o {
	case UpsertCreated:
		return "created"
	case UpsertUpdated:
		return "updated"
	default:
		return "unchanged"
	}
}

type UpdateFilter struct {
	UserID string
	From   domain.Date
	To     domain.Date
	Status domain.UpdateStatus
	Limit  int
	Offset int
}

// UpdateCursor resumes a (date, id) ordered scan after the given position.
type UpdateCursor struct {
	Date domain.Date
	ID   string
}

type UpdateRepository interface {
	// Upsert merges u by (user, id). An existing record keeps its status; its
	// schedule fields and timestamp are only rewritten when they differ.
	Upsert(ctx context.Context, u domain.Update) (UpsertOutcome, error)
	Get(ctx context.Context, userID, id string) (*domain.Update, error)
	List(ctx context.Context, filter UpdateFilter) ([]domain.Update, error)
	// ListPendingBefore returns pending updates dated strictly before the given
	// day, ordered by date then id, positioned after cursor.
	ListPendingBefore(ctx context.Context, userID string, before domain.Date, after UpdateCursor, limit int) ([]domain.Update, error)
	// MarkMissed flips the listed updates to missed when they are still pending
	// and dated before the given day, and returns the ids it changed.
	MarkMissed(ctx context.Context, userID string, ids []string, before domain.Date, at time.Time) ([]string, error)
	// SetStatus moves an update from one status to another. It fails with
	// domain.ErrStatusTransition when the stored status is not from.
	SetStatus(ctx context.Context, userID, id string, from, to domain.UpdateStatus, at time.Time) (*domain.Update, error)
}
