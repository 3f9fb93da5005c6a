package transport

import "github.com/fastygo/planner/domain"

// MaterializeRequest triggers a materialization for the caller. Activities,
// when present, replace the stored documents for this run.
type MaterializeRequest struct {
	HorizonDays *int                    `json:"horizon_days"`
	Activities  []domain.ActivityRecord `json:"activities"`
}

type StatusRequest struct {
	Status string `json:"status"`
}

// JobRequest is the payload of an admin job trigger. UserID is required by
// the per-user jobs only.
type JobRequest struct {
	UserID      string `json:"user_id"`
	HorizonDays *int   `json:"horizon_days"`
}
