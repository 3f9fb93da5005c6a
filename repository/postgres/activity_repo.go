package postgres

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fastygo/planner/domain"
	"github.com/fastygo/planner/repository"
)

type activityRepository struct {
	pool *pgxpool.Pool
}

// NewActivityRepository reads activity documents stored as JSONB.
func NewActivityRepository(pool *pgxpool.Pool) repository.ActivityRepository {
	return &activityRepository{pool: pool}
}

func (r *activityRepository) ListRecords(ctx context.Context, userID string) ([]domain.ActivityRecord, error) {
	const query = `
	SELECT id, payload
	FROM activities
	WHERE user_id = $1
	ORDER BY id
	`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []domain.ActivityRecord
	for rows.Next() {
		var (
			id      string
			payload []byte
		)
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, err
		}
		var rec domain.ActivityRecord
		if err := json.Unmarshal(payload, &rec); err != nil {
			// An undecodable document is skipped so the rest still schedule.
			continue
		}
		if rec.ID == "" {
			rec.ID = id
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
