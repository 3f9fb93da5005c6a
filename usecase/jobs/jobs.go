package jobs

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fastygo/planner/domain"
	"github.com/fastygo/planner/internal/observability"
	"github.com/fastygo/planner/repository"
	"github.com/fastygo/planner/usecase"
	"github.com/fastygo/planner/usecase/materialize"
	"github.com/fastygo/planner/usecase/sweep"
)

// Dispatcher command names.
const (
	MaterializeUser = "materialize.user"
	MaterializeAll  = "materialize.all"
	SweepUser       = "sweep.user"
	SweepAll        = "sweep.all"
)

const defaultUserBatch = 100

type Materializer interface {
	EnsureForUser(ctx context.Context, userID string, horizonDays int) (materialize.Result, error)
}

type Sweeper interface {
	MarkMissedForUser(ctx context.Context, userID string) (sweep.Result, error)
}

// UserPayload targets a single user. A nil HorizonDays selects the default.
type UserPayload struct {
	UserID      string `json:"user_id"`
	HorizonDays *int   `json:"horizon_days,omitempty"`
}

// BatchResult summarizes an all-users run.
type BatchResult struct {
	Job     string `json:"job"`
	Users   int    `json:"users"`
	Failed  int    `json:"failed"`
	Created int    `json:"created,omitempty"`
	Missed  int    `json:"missed,omitempty"`
	Skipped int    `json:"skipped,omitempty"`
}

type Jobs struct {
	users        repository.UserRepository
	materializer Materializer
	sweeper      Sweeper
	batchSize    int
	logger       *zap.Logger
}

func New(users repository.UserRepository, materializer Materializer, sweeper Sweeper, batchSize int, logger *zap.Logger) *Jobs {
	if logger == nil {
		logger = zap.NewNop()
	}
	if batchSize <= 0 {
		batchSize = defaultUserBatch
	}
	return &Jobs{
		users:        users,
		materializer: materializer,
		sweeper:      sweeper,
		batchSize:    batchSize,
		logger:       logger,
	}
}

// Register binds the schedule jobs to d.
func (j *Jobs) Register(d *usecase.Dispatcher) {
	d.RegisterCommand(MaterializeUser, j.observe(MaterializeUser, j.materializeUser))
	d.RegisterCommand(SweepUser, j.observe(SweepUser, j.sweepUser))
	d.RegisterCommand(MaterializeAll, j.observe(MaterializeAll, func(ctx context.Context, _ interface{}) (interface{}, error) {
		return j.MaterializeAll(ctx)
	}))
	d.RegisterCommand(SweepAll, j.observe(SweepAll, func(ctx context.Context, _ interface{}) (interface{}, error) {
		return j.SweepAll(ctx)
	}))
}

// MaterializeAll runs the materializer for every active user. A failing
// user is logged and counted.
func (j *Jobs) MaterializeAll(ctx context.Context) (BatchResult, error) {
	res := BatchResult{Job: MaterializeAll}
	err := j.eachUser(ctx, func(userID string) error {
		out, err := j.materializer.EnsureForUser(ctx, userID, -1)
		res.Users++
		res.Created += out.Created
		if out.Skipped {
			res.Skipped++
		}
		return err
	}, &res)
	return res, err
}

// SweepAll marks stale pending updates missed for every active user.
func (j *Jobs) SweepAll(ctx context.Context) (BatchResult, error) {
	res := BatchResult{Job: SweepAll}
	err := j.eachUser(ctx, func(userID string) error {
		out, err := j.sweeper.MarkMissedForUser(ctx, userID)
		res.Users++
		res.Missed += out.Missed
		return err
	}, &res)
	return res, err
}

func (j *Jobs) eachUser(ctx context.Context, fn func(userID string) error, res *BatchResult) error {
	after := ""
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		ids, err := j.users.ListIDs(ctx, after, j.batchSize)
		if err != nil {
			return fmt.Errorf("list users: %w", err)
		}
		for _, id := range ids {
			if err := fn(id); err != nil {
				res.Failed++
				j.logger.Error("job failed for user",
					zap.String("job", res.Job),
					zap.String("user_id", id),
					zap.Error(err))
			}
		}
		if len(ids) < j.batchSize {
			return nil
		}
		after = ids[len(ids)-1]
	}
}

func (j *Jobs) materializeUser(ctx context.Context, payload interface{}) (interface{}, error) {
	p, err := userPayload(payload)
	if err != nil {
		return nil, err
	}
	horizon := -1
	if p.HorizonDays != nil {
		horizon = *p.HorizonDays
	}
	return j.materializer.EnsureForUser(ctx, p.UserID, horizon)
}

func (j *Jobs) sweepUser(ctx context.Context, payload interface{}) (interface{}, error) {
	p, err := userPayload(payload)
	if err != nil {
		return nil, err
	}
	return j.sweeper.MarkMissedForUser(ctx, p.UserID)
}

func (j *Jobs) observe(name string, handler usecase.CommandHandler) usecase.CommandHandler {
	return func(ctx context.Context, payload interface{}) (interface{}, error) {
		started := time.Now()
		out, err := handler(ctx, payload)
		observability.ObserveJob(name, started, err)
		j.logger.Debug("job finished", zap.String("job", name), zap.Duration("took", time.Since(started)), zap.Error(err))
		return out, err
	}
}

func userPayload(payload interface{}) (UserPayload, error) {
	var p UserPayload
	switch v := payload.(type) {
	case UserPayload:
		p = v
	case *UserPayload:
		if v != nil {
			p = *v
		}
	case string:
		p.UserID = v
	}
	if p.UserID == "" {
		return p, domain.Invalidf("user_id is required")
	}
	return p, nil
}
