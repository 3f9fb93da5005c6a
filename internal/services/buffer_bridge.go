package services

import (
	"context"
	"encoding/json"

	"github.com/fastygo/planner/domain"
	"github.com/fastygo/planner/internal/infrastructure/buffer"
	"github.com/fastygo/planner/usecase"
)

// BufferBridge turns rejected update writes into buffer items.
type BufferBridge struct {
	processor *BufferProcessor
}

func NewBufferBridge(processor *BufferProcessor) *BufferBridge {
	return &BufferBridge{processor: processor}
}

func (b *BufferBridge) BufferUpdate(ctx context.Context, update domain.Update) error {
	if b == nil || b.processor == nil {
		return domain.ErrInvalidPayload
	}
	item, err := updateItem(update)
	if err != nil {
		return err
	}
	return b.processor.BufferOperation(ctx, item)
}

func updateItem(update domain.Update) (buffer.Item, error) {
	if update.UserID == "" || update.ID == "" {
		return buffer.Item{}, domain.ErrInvalidPayload
	}
	payload, err := json.Marshal(update)
	if err != nil {
		return buffer.Item{}, err
	}
	return buffer.Item{
		UserID:    update.UserID,
		Entity:    buffer.EntityUpdate,
		Operation: buffer.OperationUpsert,
		Key:       update.UserID + "/" + update.ID,
		Data:      payload,
	}, nil
}

var _ usecase.OperationBuffer = (*BufferBridge)(nil)
