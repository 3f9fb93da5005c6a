package monitor

import "time"

// Status is the latest snapshot of dependency health.
type Status struct {
	Online     bool            `json:"online"`
	Components map[string]bool `json:"components"`
	BufferSize int             `json:"buffer_size"`
	LastCheck  time.Time       `json:"last_check"`
}
