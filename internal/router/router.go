package router

import (
	"github.com/fasthttp/router"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	apiHandler "github.com/fastygo/planner/api/handler"
)

type Middleware func(fasthttp.RequestHandler) fasthttp.RequestHandler

type Handlers struct {
	Health   *apiHandler.HealthHandler
	Schedule *apiHandler.ScheduleHandler
	Updates  *apiHandler.UpdateHandler
	Jobs     *apiHandler.JobHandler
}

type Options struct {
	Auth          Middleware
	Admin         Middleware
	EnableMetrics bool
}

func New(handlers Handlers, opts Options) *router.Router {
	r := router.New()
	auth := opts.Auth
	if auth == nil {
		auth = func(next fasthttp.RequestHandler) fasthttp.RequestHandler { return next }
	}
	admin := func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		if opts.Admin != nil {
			next = opts.Admin(next)
		}
		return auth(next)
	}

	r.GET("/health", handlers.Health.Check)
	if opts.EnableMetrics {
		r.GET("/metrics", fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler()))
	}

	// Protected routes
	r.POST("/api/v1/schedule/materialize", auth(handlers.Schedule.Materialize))
	r.POST("/api/v1/schedule/sweep", auth(handlers.Schedule.Sweep))

	r.GET("/api/v1/updates", auth(handlers.Updates.List))
	r.PUT("/api/v1/updates/{id}/status", auth(handlers.Updates.SetStatus))
	r.GET("/api/v1/agenda", auth(handlers.Updates.Agenda))

	// Admin routes
	r.GET("/api/v1/jobs", admin(handlers.Jobs.List))
	r.POST("/api/v1/jobs/{name}", admin(handlers.Jobs.Run))

	return r
}
