package sweep

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fastygo/planner/domain"
	"github.com/fastygo/planner/internal/observability"
	"github.com/fastygo/planner/pkg/logger"
	"github.com/fastygo/planner/repository"
	"github.com/fastygo/planner/usecase"
)

const defaultBatchSize = 200

type Config struct {
	BatchSize       int
	DefaultLocation *time.Location
}

// Result summarizes one sweep.
type Result struct {
	UserID  string      `json:"user_id"`
	Before  domain.Date `json:"before"`
	Scanned int         `json:"scanned"`
	Missed  int         `json:"missed"`
}

// UseCase flips stale pending updates to missed.
type UseCase struct {
	updates repository.UpdateRepository
	users   repository.UserRepository
	events  usecase.EventPublisher
	clock   domain.Clock
	logger  *zap.Logger
	cfg     Config
}

type Option func(*UseCase)

func WithEvents(events usecase.EventPublisher) Option {
	return func(uc *UseCase) { uc.events = events }
}

func WithClock(clock domain.Clock) Option {
	return func(uc *UseCase) {
		if clock != nil {
			uc.clock = clock
		}
	}
}

func New(updates repository.UpdateRepository, users repository.UserRepository, cfg Config, logger *zap.Logger, opts ...Option) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.DefaultLocation == nil {
		cfg.DefaultLocation = time.UTC
	}
	uc := &UseCase{
		updates: updates,
		users:   users,
		clock:   domain.SystemClock{},
		logger:  logger,
		cfg:     cfg,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// MarkMissed marks every pending update dated strictly before today as
// missed. Today and later are never touched, nor are updates in any other
// status. Pages that were already written stay written when a later page fails.
func (uc *UseCase) MarkMissed(ctx context.Context, userID string, today domain.Date) (Result, error) {
	if userID == "" {
		return Result{}, domain.Invalidf("user id is required")
	}
	if today.IsZero() {
		return Result{}, domain.ErrInvalidDate
	}

	log := logger.WithRequestID(ctx, uc.logger).With(zap.String("user_id", userID))
	res := Result{UserID: userID, Before: today}
	now := uc.clock.Now()

	var cursor repository.UpdateCursor
	for {
		page, err := uc.updates.ListPendingBefore(ctx, userID, today, cursor, uc.cfg.BatchSize)
		if err != nil {
			return uc.finish(log, res, fmt.Errorf("list pending updates: %w", err))
		}
		if len(page) == 0 {
			break
		}
		res.Scanned += len(page)

		ids := make([]string, 0, len(page))
		byID := make(map[string]domain.Update, len(page))
		for _, u := range page {
			ids = append(ids, u.ID)
			byID[u.ID] = u
		}

		flipped, err := uc.updates.MarkMissed(ctx, userID, ids, today, now)
		if err != nil {
			return uc.finish(log, res, fmt.Errorf("mark missed: %w", err))
		}
		res.Missed += len(flipped)
		uc.publish(ctx, log, byID, flipped, now)

		last := page[len(page)-1]
		cursor = repository.UpdateCursor{Date: last.Date, ID: last.ID}
		if len(page) < uc.cfg.BatchSize {
			break
		}
	}
	return uc.finish(log, res, nil)
}

// MarkMissedForUser sweeps relative to the user's current calendar day.
func (uc *UseCase) MarkMissedForUser(ctx context.Context, userID string) (Result, error) {
	user, err := uc.users.GetByID(ctx, userID)
	if err != nil {
		return Result{UserID: userID}, err
	}
	today := domain.DateIn(uc.clock.Now(), user.Location(uc.cfg.DefaultLocation))
	return uc.MarkMissed(ctx, userID, today)
}

func (uc *UseCase) publish(ctx context.Context, log *zap.Logger, byID map[string]domain.Update, flipped []string, now time.Time) {
	if uc.events == nil || len(flipped) == 0 {
		return
	}
	events := make([]domain.UpdateEvent, 0, len(flipped))
	for _, id := range flipped {
		u := byID[id]
		u.Status = domain.UpdateMissed
		events = append(events, domain.NewUpdateEvent(domain.EventUpdateMissed, u, now))
	}
	if err := uc.events.Publish(context.WithoutCancel(ctx), events...); err != nil {
		log.Warn("publishing missed updates failed", zap.Int("events", len(events)), zap.Error(err))
	}
}

func (uc *UseCase) finish(log *zap.Logger, res Result, err error) (Result, error) {
	observability.RecordSweep(res.Missed, err)
	if err != nil {
		log.Error("sweep failed", zap.Stringer("before", res.Before), zap.Int("missed", res.Missed), zap.Error(err))
		return res, err
	}
	if res.Missed > 0 {
		log.Info("sweep finished", zap.Stringer("before", res.Before), zap.Int("missed", res.Missed))
	}
	return res, nil
}
