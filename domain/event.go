package domain

import "time"

// Event types published when updates change.
const (
	EventUpdateCreated = "update.created"
	EventUpdateMissed  = "update.missed"
)

// UpdateEvent announces a change to a single update.
type UpdateEvent struct {
	Type       string       `json:"type"`
	UserID     string       `json:"user_id"`
	UpdateID   string       `json:"update_id"`
	ActivityID string       `json:"activity_id"`
	Date       Date         `json:"date"`
	Status     UpdateStatus `json:"status"`
	OccurredAt time.Time    `json:"occurred_at"`
}

// NewUpdateEvent snapshots u.
func NewUpdateEvent(kind string, u Update, at time.Time) UpdateEvent {
	return UpdateEvent{
		Type:       kind,
		UserID:     u.UserID,
		UpdateID:   u.ID,
		ActivityID: u.ActivityID,
		Date:       u.Date,
		Status:     u.Status,
		OccurredAt: at,
	}
}
