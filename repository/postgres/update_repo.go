package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fastygo/planner/domain"
	"github.com/fastygo/planner/repository"
)

const updateColumns = `id, user_id, activity_id, date, status, time_hour, time_minute, updated_at`

type updateRepository struct {
	pool *pgxpool.Pool
}

// NewUpdateRepository returns a Postgres-backed implementation of UpdateRepository.
func NewUpdateRepository(pool *pgxpool.Pool) repository.UpdateRepository {
	return &updateRepository{pool: pool}
}

func (r *updateRepository) Upsert(ctx context.Context, u domain.Update) (repository.UpsertOutcome, error) {
	if u.UserID == "" || u.ID == "" {
		return repository.UpsertUnchanged, domain.ErrInvalidPayload
	}

	// The WHERE clause turns an identical re-upsert into a no-op, so the row
	// keeps its status and its updated_at.
	const query = `
	INSERT INTO updates (user_id, id, activity_id, date, status, time_hour, time_minute, updated_at)
	VALUES ($1, $2, $3, $4, 'pending', $5, $6, COALESCE($7, NOW()))
	ON CONFLICT (user_id, id) DO UPDATE
	SET activity_id = EXCLUDED.activity_id,
		date = EXCLUDED.date,
		time_hour = EXCLUDED.time_hour,
		time_minute = EXCLUDED.time_minute,
		updated_at = EXCLUDED.updated_at
	WHERE (updates.activity_id, updates.date, updates.time_hour, updates.time_minute)
		IS DISTINCT FROM (EXCLUDED.activity_id, EXCLUDED.date, EXCLUDED.time_hour, EXCLUDED.time_minute)
	RETURNING (xmax = 0) AS inserted
	`

	hour, minute := timeArgs(u.Time)
	var inserted bool
	err := r.pool.QueryRow(ctx, query,
		u.UserID,
		u.ID,
		u.ActivityID,
		dateArg(u.Date),
		hour,
		minute,
		nullTime(u.UpdatedAt),
	).Scan(&inserted)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return repository.UpsertUnchanged, nil
	case err != nil:
		return repository.UpsertUnchanged, err
	case inserted:
		return repository.UpsertCreated, nil
	default:
		return repository.UpsertUpdated, nil
	}
}

func (r *updateRepository) Get(ctx context.Context, userID, id string) (*domain.Update, error) {
	query := `SELECT ` + updateColumns + ` FROM updates WHERE user_id = $1 AND id = $2`
	return scanUpdate(r.pool.QueryRow(ctx, query, userID, id))
}

func (r *updateRepository) List(ctx context.Context, filter repository.UpdateFilter) ([]domain.Update, error) {
	query := `
	SELECT ` + updateColumns + `
	FROM updates
	WHERE user_id = $1
	  AND ($2::date IS NULL OR date >= $2)
	  AND ($3::date IS NULL OR date <= $3)
	  AND ($4 = '' OR status = $4)
	ORDER BY date, id
	LIMIT $5 OFFSET $6
	`
	rows, err := r.pool.Query(ctx, query,
		filter.UserID,
		dateArg(filter.From),
		dateArg(filter.To),
		string(filter.Status),
		clampLimit(filter.Limit),
		filter.Offset,
	)
	if err != nil {
		return nil, err
	}
	return collectUpdates(rows)
}

func (r *updateRepository) ListPendingBefore(ctx context.Context, userID string, before domain.Date, after repository.UpdateCursor, limit int) ([]domain.Update, error) {
	query := `
	SELECT ` + updateColumns + `
	FROM updates
	WHERE user_id = $1
	  AND status = 'pending'
	  AND date < $2
	  AND ($3::date IS NULL OR (date, id) > ($3, $4))
	ORDER BY date, id
	LIMIT $5
	`
	rows, err := r.pool.Query(ctx, query, userID, dateArg(before), dateArg(after.Date), after.ID, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	return collectUpdates(rows)
}

func (r *updateRepository) MarkMissed(ctx context.Context, userID string, ids []string, before domain.Date, at time.Time) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	const query = `
	UPDATE updates
	SET status = 'missed',
		updated_at = $4
	WHERE user_id = $1
	  AND id = ANY($2)
	  AND status = 'pending'
	  AND date < $3
	RETURNING id
	`
	rows, err := r.pool.Query(ctx, query, userID, ids, dateArg(before), at)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (r *updateRepository) SetStatus(ctx context.Context, userID, id string, from, to domain.UpdateStatus, at time.Time) (*domain.Update, error) {
	query := `
	UPDATE updates
	SET status = $4,
		updated_at = $5
	WHERE user_id = $1 AND id = $2 AND status = $3
	RETURNING ` + updateColumns

	u, err := scanUpdate(r.pool.QueryRow(ctx, query, userID, id, string(from), string(to), at))
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, domain.ErrUpdateNotFound) {
		return nil, err
	}
	if _, getErr := r.Get(ctx, userID, id); getErr != nil {
		return nil, getErr
	}
	return nil, domain.ErrStatusTransition
}

func collectUpdates(rows pgx.Rows) ([]domain.Update, error) {
	defer rows.Close()

	var updates []domain.Update
	for rows.Next() {
		u, err := scanUpdate(rows)
		if err != nil {
			return nil, err
		}
		updates = append(updates, *u)
	}
	return updates, rows.Err()
}

func scanUpdate(row rowScanner) (*domain.Update, error) {
	var (
		u            domain.Update
		date         time.Time
		status       string
		hour, minute *int16
	)

	if err := row.Scan(
		&u.ID,
		&u.UserID,
		&u.ActivityID,
		&date,
		&status,
		&hour,
		&minute,
		&u.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUpdateNotFound
		}
		return nil, err
	}

	u.Date = domain.DateOf(date)
	u.Status = domain.UpdateStatus(status)
	u.Time = timeOfDay(hour, minute)
	return &u, nil
}

func nullTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}
