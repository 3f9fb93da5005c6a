package materialize

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fastygo/planner/domain"
	"github.com/fastygo/planner/internal/observability"
	"github.com/fastygo/planner/pkg/logger"
	"github.com/fastygo/planner/repository"
	"github.com/fastygo/planner/usecase"
)

// Config tunes materialization.
type Config struct {
	HorizonDays     int
	DefaultLocation *time.Location
	GuardTTL        time.Duration
}

// Result summarizes one materialization run.
type Result struct {
	UserID    string      `json:"user_id"`
	From      domain.Date `json:"from"`
	To        domain.Date `json:"to"`
	Evaluated int         `json:"evaluated"`
	Matched   int         `json:"matched"`
	Created   int         `json:"created"`
	Updated   int         `json:"updated"`
	Unchanged int         `json:"unchanged"`
	Buffered  int         `json:"buffered"`
	Failed    int         `json:"failed"`
	Skipped   bool        `json:"skipped"`
}

type UseCase struct {
	updates    repository.UpdateRepository
	activities repository.ActivityRepository
	users      repository.UserRepository
	guard      repository.RunGuard
	buffer     usecase.OperationBuffer
	events     usecase.EventPublisher
	clock      domain.Clock
	logger     *zap.Logger
	cfg        Config
}

// Option customizes a UseCase.
type Option func(*UseCase)

// WithGuard skips runs whose inputs match a recent run.
func WithGuard(guard repository.RunGuard) Option {
	return func(uc *UseCase) { uc.guard = guard }
}

// WithBuffer parks failed upserts for a later retry.
func WithBuffer(buffer usecase.OperationBuffer) Option {
	return func(uc *UseCase) { uc.buffer = buffer }
}

// WithEvents publishes update.created events.
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

func New(
	updates repository.UpdateRepository,
	activities repository.ActivityRepository,
	users repository.UserRepository,
	cfg Config,
	logger *zap.Logger,
	opts ...Option,
) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.HorizonDays <= 0 {
		cfg.HorizonDays = domain.DefaultHorizonDays
	}
	if cfg.DefaultLocation == nil {
		cfg.DefaultLocation = time.UTC
	}
	if cfg.GuardTTL <= 0 {
		cfg.GuardTTL = 10 * time.Minute
	}
	uc := &UseCase{
		updates:    updates,
		activities: activities,
		users:      users,
		clock:      domain.SystemClock{},
		logger:     logger,
		cfg:        cfg,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// HorizonDays is the configured default window.
func (uc *UseCase) HorizonDays() int {
	return uc.cfg.HorizonDays
}

// EnsureUpcomingUpdates upserts a pending update for every occurrence of an
// active activity on today .. today+horizonDays. Existing updates keep their
// status. Store failures are buffered when a buffer is configured and joined
// into the returned error otherwise; the remaining occurrences are still written.
func (uc *UseCase) EnsureUpcomingUpdates(
	ctx context.Context,
	userID string,
	activities []domain.Activity,
	horizonDays int,
	today domain.Date,
) (Result, error) {
	if userID == "" {
		return Result{}, domain.Invalidf("user id is required")
	}
	if horizonDays < 0 || horizonDays > domain.MaxHorizonDays {
		return Result{}, domain.ErrInvalidHorizon
	}
	if today.IsZero() {
		return Result{}, domain.ErrInvalidDate
	}

	log := logger.WithRequestID(ctx, uc.logger).With(zap.String("user_id", userID))
	now := uc.clock.Now()
	res := Result{UserID: userID, From: today, To: today.AddDays(horizonDays)}

	var (
		errs    []error
		created []domain.UpdateEvent
	)
	for _, a := range activities {
		if !a.Active || a.ID == "" {
			continue
		}
		for i := 0; i <= horizonDays; i++ {
			if err := ctx.Err(); err != nil {
				errs = append(errs, err)
				return uc.finish(ctx, log, res, created, errs)
			}

			date := today.AddDays(i)
			res.Evaluated++
			if !uc.matches(log, a, date) {
				continue
			}
			res.Matched++

			update := domain.NewPendingUpdate(userID, a, date, now)
			outcome, err := uc.updates.Upsert(ctx, update)
			if err != nil {
				if uc.park(ctx, log, update, err) {
					res.Buffered++
					continue
				}
				res.Failed++
				errs = append(errs, fmt.Errorf("upsert update %s: %w", update.ID, err))
				continue
			}

			switch outcome {
			case repository.UpsertCreated:
				res.Created++
				created = append(created, domain.NewUpdateEvent(domain.EventUpdateCreated, update, now))
			case repository.UpsertUpdated:
				res.Updated++
			default:
				res.Unchanged++
			}
		}
	}
	return uc.finish(ctx, log, res, created, errs)
}

// EnsureForUser loads the user's activities and timezone and materializes
// from the user's current calendar day. A negative horizon selects the
// configured default.
func (uc *UseCase) EnsureForUser(ctx context.Context, userID string, horizonDays int) (Result, error) {
	if horizonDays < 0 {
		horizonDays = uc.cfg.HorizonDays
	}

	user, err := uc.users.GetByID(ctx, userID)
	if err != nil {
		return Result{UserID: userID}, err
	}
	loc := user.Location(uc.cfg.DefaultLocation)

	records, err := uc.activities.ListRecords(ctx, userID)
	if err != nil {
		return Result{UserID: userID}, fmt.Errorf("list activities: %w", err)
	}
	activities := domain.NormalizeActivities(records, userID, loc)
	today := domain.DateIn(uc.clock.Now(), loc)

	return uc.guarded(ctx, userID, activities, horizonDays, today)
}

// EnsureWithActivities materializes an explicit activity list, as sent by an
// editor right after a change. The list replaces the stored documents for
// this run only.
func (uc *UseCase) EnsureWithActivities(ctx context.Context, userID string, records []domain.ActivityRecord, horizonDays int) (Result, error) {
	if horizonDays < 0 {
		horizonDays = uc.cfg.HorizonDays
	}

	user, err := uc.users.GetByID(ctx, userID)
	if err != nil {
		return Result{UserID: userID}, err
	}
	loc := user.Location(uc.cfg.DefaultLocation)
	activities := domain.NormalizeActivities(records, userID, loc)
	today := domain.DateIn(uc.clock.Now(), loc)

	return uc.guarded(ctx, userID, activities, horizonDays, today)
}

func (uc *UseCase) guarded(ctx context.Context, userID string, activities []domain.Activity, horizonDays int, today domain.Date) (Result, error) {
	if uc.guard == nil {
		return uc.EnsureUpcomingUpdates(ctx, userID, activities, horizonDays, today)
	}

	log := logger.WithRequestID(ctx, uc.logger).With(zap.String("user_id", userID))
	fingerprint, err := Fingerprint(activities, horizonDays, today)
	if err != nil {
		log.Warn("fingerprint failed, running unguarded", zap.Error(err))
		return uc.EnsureUpcomingUpdates(ctx, userID, activities, horizonDays, today)
	}

	// One marker per user holds the fingerprint of the last completed run, so
	// a skip only happens when the stored updates reflect the current inputs.
	key := GuardKey(userID)
	now := uc.clock.Now()
	last, err := uc.guard.Get(ctx, key)
	switch {
	case err == nil && last.Fingerprint == fingerprint && !last.IsExpired(now):
		log.Debug("materialization skipped, inputs unchanged", zap.String("fingerprint", fingerprint))
		res := Result{UserID: userID, From: today, To: today.AddDays(horizonDays), Skipped: true}
		observability.RecordMaterialization(observability.MaterializeCounts{}, true, nil)
		return res, nil
	case err != nil && !errors.Is(err, domain.ErrMarkerNotFound):
		log.Warn("run guard unavailable, running unguarded", zap.Error(err))
		return uc.EnsureUpcomingUpdates(ctx, userID, activities, horizonDays, today)
	}

	res, runErr := uc.EnsureUpcomingUpdates(ctx, userID, activities, horizonDays, today)
	guardCtx := context.WithoutCancel(ctx)
	if runErr != nil || res.Buffered > 0 {
		// Let the next trigger retry instead of waiting out the marker.
		if err := uc.guard.Release(guardCtx, key); err != nil {
			log.Warn("run guard release failed", zap.Error(err))
		}
		return res, runErr
	}

	marker := &domain.RunMarker{
		Key:         key,
		UserID:      userID,
		Fingerprint: fingerprint,
		CreatedAt:   now,
		ExpiresAt:   now.Add(uc.cfg.GuardTTL),
	}
	if err := uc.guard.Put(guardCtx, marker); err != nil {
		log.Warn("run guard update failed", zap.Error(err))
	}
	return res, nil
}

// GuardKey is the run-guard key holding a user's last materialization.
func GuardKey(userID string) string {
	return "materialize:" + userID
}

// Fingerprint hashes everything a run depends on.
func Fingerprint(activities []domain.Activity, horizonDays int, today domain.Date) (string, error) {
	payload, err := json.Marshal(struct {
		Today       domain.Date       `json:"today"`
		HorizonDays int               `json:"horizon_days"`
		Activities  []domain.Activity `json:"activities"`
	}{today, horizonDays, activities})
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:16]), nil
}

func (uc *UseCase) matches(log *zap.Logger, a domain.Activity, date domain.Date) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			observability.RecordRecoveredPanic()
			log.Error("activity evaluation panicked",
				zap.String("activity_id", a.ID),
				zap.Stringer("date", date),
				zap.Any("panic", r))
			ok = false
		}
	}()
	return domain.Matches(a, date)
}

func (uc *UseCase) park(ctx context.Context, log *zap.Logger, update domain.Update, cause error) bool {
	if uc.buffer == nil || ctx.Err() != nil {
		return false
	}
	if err := uc.buffer.BufferUpdate(ctx, update); err != nil {
		log.Error("update buffering failed",
			zap.String("update_id", update.ID),
			zap.NamedError("cause", cause),
			zap.Error(err))
		return false
	}
	log.Warn("update buffered for retry", zap.String("update_id", update.ID), zap.Error(cause))
	return true
}

func (uc *UseCase) finish(ctx context.Context, log *zap.Logger, res Result, created []domain.UpdateEvent, errs []error) (Result, error) {
	err := errors.Join(errs...)

	if uc.events != nil && len(created) > 0 {
		if pubErr := uc.events.Publish(context.WithoutCancel(ctx), created...); pubErr != nil {
			log.Warn("publishing created updates failed", zap.Int("events", len(created)), zap.Error(pubErr))
		}
	}

	observability.RecordMaterialization(observability.MaterializeCounts{
		Created:   res.Created,
		Updated:   res.Updated,
		Unchanged: res.Unchanged,
		Buffered:  res.Buffered,
		Failed:    res.Failed,
	}, false, err)

	fields := []zap.Field{
		zap.Stringer("from", res.From),
		zap.Stringer("to", res.To),
		zap.Int("matched", res.Matched),
		zap.Int("created", res.Created),
		zap.Int("updated", res.Updated),
		zap.Int("buffered", res.Buffered),
	}
	if err != nil {
		log.Error("materialization finished with errors", append(fields, zap.Error(err))...)
		return res, err
	}
	log.Info("materialization finished", fields...)
	return res, nil
}
