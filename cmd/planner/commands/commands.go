package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	apiHandler "github.com/fastygo/planner/api/handler"
	"github.com/fastygo/planner/internal/config"
	"github.com/fastygo/planner/internal/middleware"
	pgInfra "github.com/fastygo/planner/internal/infrastructure/postgres"
	"github.com/fastygo/planner/internal/router"
	"github.com/fastygo/planner/internal/services"
	"github.com/fastygo/planner/pkg/httpcontext"
	"github.com/fastygo/planner/pkg/logger"
	"github.com/fastygo/planner/usecase/jobs"
)

// NewServeCommand starts the HTTP API together with the background
// scheduler and buffer processor.
func NewServeCommand() *cobra.Command {
	var runNow bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and the background scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, zapLogger, err := bootstrap(os.Stdout)
			if err != nil {
				return err
			}
			defer zapLogger.Sync()
			return serve(cmd.Context(), cfg, zapLogger, runNow)
		},
	}
	cmd.Flags().BoolVar(&runNow, "run-now", false, "run a sweep and materialize pass right after startup")
	return cmd
}

// NewMaterializeCommand runs a single materialize pass from the command line.
func NewMaterializeCommand() *cobra.Command {
	var (
		userID  string
		horizon int
	)

	cmd := &cobra.Command{
		Use:   "materialize",
		Short: "Create pending updates for the upcoming horizon",
		Long:  "Materialize writes pending updates for every scheduled day within the horizon. Without --user every user is processed.",
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := jobs.UserPayload{UserID: strings.TrimSpace(userID)}
			if cmd.Flags().Changed("horizon") {
				payload.HorizonDays = &horizon
			}
			job := jobs.MaterializeAll
			if payload.UserID != "" {
				job = jobs.MaterializeUser
			}
			return runJob(cmd, job, payload)
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "only materialize for this user id")
	cmd.Flags().IntVar(&horizon, "horizon", 0, "horizon in days for a --user run, defaults to SCHEDULER_HORIZON_DAYS")
	return cmd
}

// NewSweepCommand marks past pending updates as missed.
func NewSweepCommand() *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Mark past pending updates as missed",
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := jobs.UserPayload{UserID: strings.TrimSpace(userID)}
			job := jobs.SweepAll
			if payload.UserID != "" {
				job = jobs.SweepUser
			}
			return runJob(cmd, job, payload)
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "only sweep this user id")
	return cmd
}

// NewMigrateCommand applies or rolls back database migrations.
func NewMigrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database migrations",
	}
	cmd.AddCommand(newMigrateDirectionCommand(pgInfra.MigrateUp, "Apply pending migrations"))
	cmd.AddCommand(newMigrateDirectionCommand(pgInfra.MigrateDown, "Roll back migrations"))
	return cmd
}

func newMigrateDirectionCommand(direction, short string) *cobra.Command {
	var steps int

	cmd := &cobra.Command{
		Use:   direction,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, zapLogger, err := bootstrap(os.Stderr)
			if err != nil {
				return err
			}
			defer zapLogger.Sync()
			if cfg.Storage != config.StoragePostgres {
				return fmt.Errorf("migrations need STORAGE_DRIVER=%s", config.StoragePostgres)
			}
			return pgInfra.Migrate(cfg, direction, steps, zapLogger)
		},
	}
	cmd.Flags().IntVar(&steps, "steps", 0, "number of migrations to apply, 0 means all")
	return cmd
}

func bootstrap(out io.Writer) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("config error: %w", err)
	}
	zapLogger, err := logger.New(logger.Config{
		Level:    cfg.Logger.Level,
		Encoding: cfg.Logger.Encoding,
		Output:   out,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("logger error: %w", err)
	}
	return cfg, zapLogger, nil
}

func runJob(cmd *cobra.Command, job string, payload jobs.UserPayload) error {
	cfg, zapLogger, err := bootstrap(os.Stderr)
	if err != nil {
		return err
	}
	defer zapLogger.Sync()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, cfg.Scheduler.JobTimeout)
	defer cancel()

	a, err := newApp(ctx, cfg, zapLogger, false)
	if err != nil {
		return err
	}
	defer a.close()

	result, err := a.dispatcher.ExecuteCommand(ctx, job, payload)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func serve(parent context.Context, cfg *config.Config, zapLogger *zap.Logger, runNow bool) error {
	if parent == nil {
		parent = context.Background()
	}
	appCtx, cancel := context.WithCancel(parent)
	defer cancel()

	a, err := newApp(appCtx, cfg, zapLogger, true)
	if err != nil {
		return err
	}
	defer a.close()
	a.manager.Listen(cancel)
	a.startBackground()

	var scheduler *services.Scheduler
	if cfg.Scheduler.Enabled {
		scheduler, err = services.NewScheduler(a.dispatcher, services.SchedulerConfig{
			MaterializeSpec: cfg.Scheduler.MaterializeSpec,
			SweepSpec:       cfg.Scheduler.SweepSpec,
			JobTimeout:      cfg.Scheduler.JobTimeout,
		}, zapLogger)
		if err != nil {
			return fmt.Errorf("scheduler: %w", err)
		}
		scheduler.Start()
		a.manager.Register("scheduler", func(ctx context.Context) error {
			scheduler.Stop(ctx)
			return nil
		})
	}

	ctxAdapter := httpcontext.NewAdapter(cfg.Context.RequestTimeout)
	handlers := router.Handlers{
		Health:   apiHandler.NewHealthHandler(a.monitor, ctxAdapter, zapLogger),
		Schedule: apiHandler.NewScheduleHandler(a.materializer, a.sweeper, ctxAdapter, zapLogger),
		Updates:  apiHandler.NewUpdateHandler(a.agenda, ctxAdapter, zapLogger),
		Jobs:     apiHandler.NewJobHandler(a.dispatcher, cfg.Scheduler.JobTimeout, ctxAdapter, zapLogger),
	}
	if cfg.JWT.Secret == "" {
		zapLogger.Warn("JWT_SECRET is empty, every authenticated request will be rejected")
	}
	r := router.New(handlers, router.Options{
		Auth:          middleware.JWTAuth(cfg.JWT.Secret, cfg.JWT.Issuer, zapLogger),
		Admin:         middleware.RequireRole(middleware.RoleAdmin),
		EnableMetrics: cfg.HTTP.EnableMetrics,
	})

	server := &fasthttp.Server{
		Handler:            r.Handler,
		ReadTimeout:        cfg.HTTP.ReadTimeout,
		WriteTimeout:       cfg.HTTP.WriteTimeout,
		IdleTimeout:        cfg.HTTP.IdleTimeout,
		MaxConnsPerIP:      cfg.HTTP.MaxConn,
		Name:               cfg.AppName,
		MaxRequestBodySize: 4 << 20,
	}
	a.manager.Go("http_server", func() error {
		zapLogger.Info("server started", zap.String("address", cfg.Address()))
		return server.ListenAndServe(cfg.Address())
	})
	a.manager.Register("http_server", func(ctx context.Context) error {
		return server.ShutdownWithContext(ctx)
	})

	if runNow && scheduler != nil {
		go func() {
			if err := scheduler.RunOnce(appCtx); err != nil && !errors.Is(err, context.Canceled) {
				zapLogger.Error("startup run failed", zap.Error(err))
			}
		}()
	}

	select {
	case <-appCtx.Done():
		return nil
	case err := <-a.manager.Failures():
		return err
	}
}
