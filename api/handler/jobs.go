package handler

import (
	"net/http"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/planner/api/transport"
	"github.com/fastygo/planner/pkg/httpcontext"
	"github.com/fastygo/planner/usecase"
	"github.com/fastygo/planner/usecase/jobs"
)

// JobHandler lets operators trigger dispatcher jobs by name.
type JobHandler struct {
	baseHandler
	dispatcher *usecase.Dispatcher
	timeout    time.Duration
}

func NewJobHandler(dispatcher *usecase.Dispatcher, timeout time.Duration, adapter *httpcontext.Adapter, logger *zap.Logger) *JobHandler {
	return &JobHandler{
		baseHandler: newBaseHandler(adapter, logger),
		dispatcher:  dispatcher,
		timeout:     timeout,
	}
}

// @Summary List registered jobs
// @Tags jobs
// @Router /api/v1/jobs [get]
func (h *JobHandler) List(ctx *fasthttp.RequestCtx) {
	h.respondSuccess(ctx, http.StatusOK, h.dispatcher.Commands())
}

// @Summary Run a job
// @Tags jobs
// @Router /api/v1/jobs/{name} [post]
func (h *JobHandler) Run(ctx *fasthttp.RequestCtx) {
	name, _ := ctx.UserValue("name").(string)
	if name == "" {
		h.respondInvalid(ctx, "missing job name")
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	if h.adapter != nil && h.timeout > 0 {
		cancel()
		stdCtx, cancel = h.adapter.AttachWithTimeout(ctx, h.timeout)
	}
	defer cancel()

	var req transport.JobRequest
	if !h.decode(ctx, stdCtx, &req) {
		return
	}

	out, err := h.dispatcher.ExecuteCommand(stdCtx, name, jobs.UserPayload{
		UserID:      req.UserID,
		HorizonDays: req.HorizonDays,
	})
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, out)
}
