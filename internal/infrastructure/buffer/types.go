package buffer

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

const (
	EntityUpdate = "update"

	OperationUpsert = "upsert"
)

const defaultPriority = 3

// ErrFull is returned by Enqueue once the store holds its maximum number of items.
var ErrFull = errors.New("buffer is full")

// Item is a write the primary store rejected, parked for replay.
type Item struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	Entity    string          `json:"entity"`
	Operation string          `json:"operation"`
	// Key identifies the target record. A newer item with the same key
	// replaces the older one.
	Key       string          `json:"key,omitempty"`
	Data      json.RawMessage `json:"data"`
	Priority  int             `json:"priority"`
	Retries   int             `json:"retries"`
	Timestamp time.Time       `json:"timestamp"`

	bucketKey []byte
}

func (i *Item) normalize() {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	if i.Priority <= 0 || i.Priority > 5 {
		i.Priority = defaultPriority
	}
	if i.Timestamp.IsZero() {
		i.Timestamp = time.Now()
	}
}
