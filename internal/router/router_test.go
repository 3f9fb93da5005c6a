package router

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/valyala/fasthttp"

	apiHandler "github.com/fastygo/planner/api/handler"
	"github.com/fastygo/planner/domain"
	"github.com/fastygo/planner/internal/infrastructure/monitor"
	"github.com/fastygo/planner/repository/memory"
	"github.com/fastygo/planner/usecase"
	"github.com/fastygo/planner/usecase/agenda"
	"github.com/fastygo/planner/usecase/materialize"
	"github.com/fastygo/planner/usecase/sweep"
)

func handlers() Handlers {
	updates := memory.NewUpdateRepository()
	activities := memory.NewActivityRepository()
	users := memory.NewUserRepository(domain.User{ID: "user-1"})
	mat := materialize.New(updates, activities, users, materialize.Config{}, nil)
	sw := sweep.New(updates, users, sweep.Config{}, nil)

	return Handlers{
		Health:   apiHandler.NewHealthHandler(monitor.New(time.Minute, nil, nil), nil, nil),
		Schedule: apiHandler.NewScheduleHandler(mat, sw, nil, nil),
		Updates:  apiHandler.NewUpdateHandler(agenda.New(updates, activities, users, time.UTC, nil, nil), nil, nil),
		Jobs:     apiHandler.NewJobHandler(usecase.NewDispatcher(), 0, nil, nil),
	}
}

func do(h fasthttp.RequestHandler, method, uri string, headers map[string]string) int {
	ctx := &fasthttp.RequestCtx{}
	ctx.Request.Header.SetMethod(method)
	ctx.Request.SetRequestURI(uri)
	for k, v := range headers {
		ctx.Request.Header.Set(k, v)
	}
	h(ctx)
	return ctx.Response.StatusCode()
}

func TestRoutes(t *testing.T) {
	deny := func(status int) Middleware {
		return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
			return func(ctx *fasthttp.RequestCtx) {
				if len(ctx.Request.Header.Peek("X-User-ID")) == 0 {
					ctx.SetStatusCode(status)
					return
				}
				next(ctx)
			}
		}
	}
	adminOnly := func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			if string(ctx.Request.Header.Peek("X-User-Role")) != "admin" {
				ctx.SetStatusCode(http.StatusForbidden)
				return
			}
			next(ctx)
		}
	}

	h := New(handlers(), Options{Auth: deny(http.StatusUnauthorized), Admin: adminOnly, EnableMetrics: true}).Handler
	user := map[string]string{"X-User-ID": "user-1"}
	admin := map[string]string{"X-User-ID": "ops", "X-User-Role": "admin"}

	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusUnauthorized, do(h, http.MethodGet, "/api/v1/agenda", nil))
	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/api/v1/agenda", user))
	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/api/v1/updates", user))
	assert.Equal(t, http.StatusForbidden, do(h, http.MethodGet, "/api/v1/jobs", user))
	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/api/v1/jobs", admin))
	assert.Equal(t, http.StatusNotFound, do(h, http.MethodPost, "/api/v1/jobs/unknown", admin))
	assert.Equal(t, http.StatusNotFound, do(h, http.MethodGet, "/api/v1/nothing", user))
}
