package usecase

import (
	"context"

	"github.com/fastygo/planner/domain"
)

// OperationBuffer parks writes that the primary store rejected so they can be
// retried later.
type OperationBuffer interface {
	BufferUpdate(ctx context.Context, update domain.Update) error
}

// EventPublisher announces update changes to downstream consumers.
type EventPublisher interface {
	Publish(ctx context.Context, events ...domain.UpdateEvent) error
}
