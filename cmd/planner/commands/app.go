package commands

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fastygo/planner/internal/config"
	"github.com/fastygo/planner/internal/events"
	"github.com/fastygo/planner/internal/infrastructure/buffer"
	"github.com/fastygo/planner/internal/infrastructure/monitor"
	pgInfra "github.com/fastygo/planner/internal/infrastructure/postgres"
	redisInfra "github.com/fastygo/planner/internal/infrastructure/redis"
	"github.com/fastygo/planner/internal/services"
	"github.com/fastygo/planner/internal/services/lifecycle"
	"github.com/fastygo/planner/repository"
	"github.com/fastygo/planner/repository/memory"
	"github.com/fastygo/planner/repository/postgres"
	redisRepo "github.com/fastygo/planner/repository/redis"
	"github.com/fastygo/planner/usecase"
	"github.com/fastygo/planner/usecase/agenda"
	"github.com/fastygo/planner/usecase/jobs"
	"github.com/fastygo/planner/usecase/materialize"
	"github.com/fastygo/planner/usecase/sweep"
)

// app holds the wired components shared by every command.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	manager *lifecycle.Manager

	users      repository.UserRepository
	activities repository.ActivityRepository
	updates    repository.UpdateRepository
	guard      repository.RunGuard
	events     usecase.EventPublisher

	monitor   *monitor.Monitor
	processor *services.BufferProcessor

	materializer *materialize.UseCase
	sweeper      *sweep.UseCase
	agenda       *agenda.UseCase
	dispatcher   *usecase.Dispatcher
}

// newApp connects storage and builds the use cases. With background set it
// also opens the write buffer and starts the connection monitor and buffer
// processor; one-shot commands leave them off.
func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger, background bool) (*app, error) {
	a := &app{
		cfg:     cfg,
		logger:  logger,
		manager: lifecycle.New(cfg.Context.ShutdownTimeout, logger),
		events:  events.Nop{},
	}

	var probes []monitor.Probe
	switch cfg.Storage {
	case config.StorageMemory:
		logger.Warn("using in-memory storage, data is lost on exit")
		a.users = memory.NewUserRepository()
		a.activities = memory.NewActivityRepository()
		a.updates = memory.NewUpdateRepository()
	default:
		if err := pgInfra.RunMigrations(cfg, logger); err != nil {
			return nil, fmt.Errorf("migrations: %w", err)
		}
		pool, err := pgInfra.NewPool(ctx, cfg.AppName, cfg.Database, logger)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		a.manager.Register("postgres", func(context.Context) error {
			pgInfra.Close(pool, logger)
			return nil
		})
		a.users = postgres.NewUserRepository(pool)
		a.activities = postgres.NewActivityRepository(pool)
		a.updates = postgres.NewUpdateRepository(pool)
		probes = append(probes, monitor.PostgresProbe(pool))
	}

	if cfg.Redis.Enabled {
		client, err := redisInfra.NewClient(ctx, cfg.Redis, logger)
		if err != nil {
			// The guard only saves work; run unguarded rather than refuse to start.
			logger.Warn("redis unavailable, run guard disabled", zap.Error(err))
		} else {
			a.manager.Register("redis", func(context.Context) error { return client.Close() })
			a.guard = redisRepo.NewRunGuard(client, cfg.Scheduler.GuardTTL)
			probes = append(probes, monitor.RedisProbe(client))
		}
	}
	if a.guard == nil && cfg.Storage == config.StorageMemory {
		a.guard = memory.NewRunGuard(nil)
	}

	if cfg.Kafka.Enabled() {
		producer := events.NewKafkaProducer(cfg.Kafka.Brokers)
		a.manager.Register("kafka", func(context.Context) error { return producer.Close() })
		a.events = events.NewPublisher(producer, cfg.Kafka.Topic, logger)
	}

	var buf usecase.OperationBuffer
	if background && cfg.Buffer.Enabled {
		store, err := buffer.Open(cfg.Buffer.Path, "updates", cfg.Buffer.MaxSize)
		if err != nil {
			_ = a.manager.Shutdown(context.Background())
			return nil, fmt.Errorf("buffer store: %w", err)
		}
		a.manager.Register("buffer", func(context.Context) error { return store.Close() })

		a.monitor = monitor.New(10*time.Second, store, logger, probes...)
		a.processor = services.NewBufferProcessor(store, a.monitor, a.updates, logger, services.ProcessorConfig{
			Interval:   cfg.Buffer.SyncInterval,
			MaxRetries: cfg.Buffer.MaxRetry,
			Retention:  time.Duration(cfg.Buffer.RetentionHours) * time.Hour,
		})
		buf = services.NewBufferBridge(a.processor)
	} else if background {
		a.monitor = monitor.New(10*time.Second, nil, logger, probes...)
	}

	loc := cfg.Location()
	matOpts := []materialize.Option{materialize.WithEvents(a.events)}
	if a.guard != nil {
		matOpts = append(matOpts, materialize.WithGuard(a.guard))
	}
	if buf != nil {
		matOpts = append(matOpts, materialize.WithBuffer(buf))
	}
	a.materializer = materialize.New(a.updates, a.activities, a.users, materialize.Config{
		HorizonDays:     cfg.Scheduler.HorizonDays,
		DefaultLocation: loc,
		GuardTTL:        cfg.Scheduler.GuardTTL,
	}, logger, matOpts...)
	a.sweeper = sweep.New(a.updates, a.users, sweep.Config{
		BatchSize:       cfg.Scheduler.SweepBatchSize,
		DefaultLocation: loc,
	}, logger, sweep.WithEvents(a.events))
	a.agenda = agenda.New(a.updates, a.activities, a.users, loc, nil, logger)

	a.dispatcher = usecase.NewDispatcher()
	jobs.New(a.users, a.materializer, a.sweeper, cfg.Scheduler.UserBatchSize, logger).Register(a.dispatcher)

	return a, nil
}

// startBackground launches the monitor and buffer processor.
func (a *app) startBackground() {
	if a.monitor != nil {
		a.monitor.Start()
		a.manager.Register("monitor", func(context.Context) error {
			a.monitor.Stop()
			return nil
		})
	}
	if a.processor != nil {
		a.processor.Start()
		a.manager.Register("buffer_processor", func(ctx context.Context) error {
			a.processor.Stop(ctx)
			return a.processor.Drain(ctx)
		})
	}
}

func (a *app) close() {
	if err := a.manager.Shutdown(context.Background()); err != nil {
		a.logger.Error("graceful shutdown error", zap.Error(err))
	}
}
