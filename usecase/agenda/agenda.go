package agenda

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fastygo/planner/domain"
	"github.com/fastygo/planner/pkg/logger"
	"github.com/fastygo/planner/repository"
)

// maxCalendarDays bounds a single calendar read.
const maxCalendarDays = 62

type UseCase struct {
	updates     repository.UpdateRepository
	activities  repository.ActivityRepository
	users       repository.UserRepository
	clock       domain.Clock
	logger      *zap.Logger
	defaultZone *time.Location
}

func New(
	updates repository.UpdateRepository,
	activities repository.ActivityRepository,
	users repository.UserRepository,
	defaultZone *time.Location,
	clock domain.Clock,
	logger *zap.Logger,
) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = domain.SystemClock{}
	}
	if defaultZone == nil {
		defaultZone = time.UTC
	}
	return &UseCase{
		updates:     updates,
		activities:  activities,
		users:       users,
		clock:       clock,
		logger:      logger,
		defaultZone: defaultZone,
	}
}

// Today resolves the user's current calendar day.
func (uc *UseCase) Today(ctx context.Context, userID string) (domain.Date, *time.Location, error) {
	user, err := uc.users.GetByID(ctx, userID)
	if err != nil {
		return domain.Date{}, nil, err
	}
	loc := user.Location(uc.defaultZone)
	return domain.DateIn(uc.clock.Now(), loc), loc, nil
}

// ForDate lists the tasks planned on date. A zero date means the user's today.
// Persisted updates supply the status; occurrences that were never
// materialized show as pending.
func (uc *UseCase) ForDate(ctx context.Context, userID string, date domain.Date) ([]domain.Task, error) {
	today, loc, err := uc.Today(ctx, userID)
	if err != nil {
		return nil, err
	}
	if date.IsZero() {
		date = today
	}

	records, err := uc.activities.ListRecords(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	stored, err := uc.updates.List(ctx, repository.UpdateFilter{UserID: userID, From: date, To: date})
	if err != nil {
		return nil, fmt.Errorf("list updates: %w", err)
	}
	statuses := make(map[string]domain.UpdateStatus, len(stored))
	for _, u := range stored {
		statuses[u.ID] = u.Status
	}

	var tasks []domain.Task
	for _, a := range domain.NormalizeActivities(records, userID, loc) {
		if !a.Active || !domain.Matches(a, date) {
			continue
		}
		task := domain.Task{
			ID:         domain.BuildUpdateID(a, date),
			ActivityID: a.ID,
			Name:       a.Name,
			Date:       date,
			Status:     domain.UpdatePending,
			Time:       a.Time,
		}
		if status, ok := statuses[task.ID]; ok {
			task.Status = status
		}
		tasks = append(tasks, task)
	}
	domain.SortTasks(tasks)

	logger.WithRequestID(ctx, uc.logger).Debug("agenda built",
		zap.String("user_id", userID),
		zap.Stringer("date", date),
		zap.Int("tasks", len(tasks)))
	return tasks, nil
}

// Calendar returns stored updates between from and to, inclusive.
func (uc *UseCase) Calendar(ctx context.Context, filter repository.UpdateFilter) ([]domain.Update, error) {
	if filter.UserID == "" {
		return nil, domain.Invalidf("user id is required")
	}
	if !filter.From.IsZero() && !filter.To.IsZero() {
		if filter.To.Before(filter.From) {
			return nil, domain.Invalidf("to must not be before from")
		}
		if filter.From.DaysUntil(filter.To) > maxCalendarDays {
			return nil, domain.Invalidf("range must not exceed %d days", maxCalendarDays)
		}
	}
	if filter.Status != "" {
		if _, err := domain.ParseUpdateStatus(string(filter.Status)); err != nil {
			return nil, err
		}
	}
	return uc.updates.List(ctx, filter)
}

// SetStatus applies a user-driven status change. Missed is owned by the
// sweeper and can be neither set nor left.
func (uc *UseCase) SetStatus(ctx context.Context, userID, updateID string, to domain.UpdateStatus) (*domain.Update, error) {
	if to == domain.UpdateMissed {
		return nil, domain.ErrStatusTransition
	}
	current, err := uc.updates.Get(ctx, userID, updateID)
	if err != nil {
		return nil, err
	}
	if current.Status == to {
		return current, nil
	}
	if !current.Status.CanTransitionTo(to) {
		return nil, domain.ErrStatusTransition
	}

	updated, err := uc.updates.SetStatus(ctx, userID, updateID, current.Status, to, uc.clock.Now())
	if err != nil {
		return nil, err
	}
	logger.WithRequestID(ctx, uc.logger).Info("update status changed",
		zap.String("user_id", userID),
		zap.String("update_id", updateID),
		zap.String("from", string(current.Status)),
		zap.String("to", string(to)))
	return updated, nil
}
