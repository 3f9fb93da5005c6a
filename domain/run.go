package domain

import "time"

// RunMarker records that a materialization with a given input fingerprint
// already ran for a user.
type RunMarker struct {
	Key         string    `json:"key"`
	UserID      string    `json:"user_id"`
	Fingerprint string    `json:"fingerprint"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func (m *RunMarker) IsExpired(reference time.Time) bool {
	if m == nil {
		return true
	}
	if reference.IsZero() {
		reference = time.Now()
	}
	return !m.ExpiresAt.After(reference)
}
