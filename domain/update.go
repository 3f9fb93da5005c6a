package domain

import (
	"fmt"
	"strings"
	"time"
)

// UpdateStatus tracks what happened to a single scheduled occurrence.
type UpdateStatus string

const (
	UpdatePending   UpdateStatus = "pending"
	UpdateCompleted UpdateStatus = "completed"
	UpdateSkipped   UpdateStatus = "skipped"
	UpdateMissed    UpdateStatus = "missed"
)

// DefaultHorizonDays is how far ahead updates are materialized by default.
const DefaultHorizonDays = 14

// MaxHorizonDays caps a single materialization run.
const MaxHorizonDays = 366

// ParseUpdateStatus accepts the lower-case status names.
func ParseUpdateStatus(raw string) (UpdateStatus, error) {
	switch s := UpdateStatus(strings.ToLower(strings.TrimSpace(raw))); s {
	case UpdatePending, UpdateCompleted, UpdateSkipped, UpdateMissed:
		return s, nil
	default:
		return "", WrapError(ErrCodeInvalid, fmt.Sprintf("unknown update status %q", raw), ErrInvalidStatus)
	}
}

// CanTransitionTo lists the moves a user may make. Missed is terminal and is
// only ever entered by the sweeper.
func (s UpdateStatus) CanTransitionTo(next UpdateStatus) bool {
	switch s {
	case UpdatePending:
		return next == UpdateCompleted || next == UpdateSkipped
	case UpdateCompleted, UpdateSkipped:
		return next == UpdatePending
	default:
		return false
	}
}

// Update is the materialized occurrence of an activity on one day.
type Update struct {
	ID         string       `json:"id"`
	UserID     string       `json:"user_id"`
	ActivityID string       `json:"activity_id"`
	Date       Date         `json:"date"`
	Status     UpdateStatus `json:"status"`
	Time       *TimeOfDay   `json:"time,omitempty"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

// BuildUpdateID derives the occurrence key. One-time activities with a time
// slot get the slot appended so a rescheduled slot becomes a new record.
func BuildUpdateID(a Activity, d Date) string {
	if a.IsOneTime() && a.Time != nil {
		return fmt.Sprintf("%s-%s-%02d%02d", a.ID, d, a.Time.Hour, a.Time.Minute)
	}
	return fmt.Sprintf("%s-%s", a.ID, d)
}

// NewPendingUpdate builds the record written for a matched occurrence.
func NewPendingUpdate(userID string, a Activity, d Date, now time.Time) Update {
	u := Update{
		ID:         BuildUpdateID(a, d),
		UserID:     userID,
		ActivityID: a.ID,
		Date:       d,
		Status:     UpdatePending,
		UpdatedAt:  now,
	}
	if a.Time != nil {
		t := *a.Time
		u.Time = &t
	}
	return u
}

// SameSchedule compares the fields a materialization run may rewrite.
// Status and timestamps are deliberately excluded.
func (u Update) SameSchedule(other Update) bool {
	if u.ActivityID != other.ActivityID || u.Date != other.Date {
		return false
	}
	switch {
	case u.Time == nil && other.Time == nil:
		return true
	case u.Time == nil || other.Time == nil:
		return false
	default:
		return *u.Time == *other.Time
	}
}
