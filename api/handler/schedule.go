package handler

import (
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/planner/api/transport"
	"github.com/fastygo/planner/domain"
	"github.com/fastygo/planner/pkg/httpcontext"
	"github.com/fastygo/planner/usecase/materialize"
	"github.com/fastygo/planner/usecase/sweep"
)

type ScheduleHandler struct {
	baseHandler
	materializer *materialize.UseCase
	sweeper      *sweep.UseCase
}

func NewScheduleHandler(materializer *materialize.UseCase, sweeper *sweep.UseCase, adapter *httpcontext.Adapter, logger *zap.Logger) *ScheduleHandler {
	return &ScheduleHandler{
		baseHandler:  newBaseHandler(adapter, logger),
		materializer: materializer,
		sweeper:      sweeper,
	}
}

// @Summary Materialize upcoming updates for the caller
// @Tags schedule
// @Router /api/v1/schedule/materialize [post]
func (h *ScheduleHandler) Materialize(ctx *fasthttp.RequestCtx) {
	userID := h.userID(ctx)
	if userID == "" {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	var req transport.MaterializeRequest
	if !h.decode(ctx, stdCtx, &req) {
		return
	}
	horizon := -1
	if req.HorizonDays != nil {
		horizon = *req.HorizonDays
		if horizon < 0 || horizon > domain.MaxHorizonDays {
			h.respondError(ctx, domain.ErrInvalidHorizon)
			return
		}
	}

	var (
		res materialize.Result
		err error
	)
	if req.Activities != nil {
		res, err = h.materializer.EnsureWithActivities(stdCtx, userID, req.Activities, horizon)
	} else {
		res, err = h.materializer.EnsureForUser(stdCtx, userID, horizon)
	}
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, res)
}

// @Summary Mark the caller's past pending updates as missed
// @Tags schedule
// @Router /api/v1/schedule/sweep [post]
func (h *ScheduleHandler) Sweep(ctx *fasthttp.RequestCtx) {
	userID := h.userID(ctx)
	if userID == "" {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	res, err := h.sweeper.MarkMissedForUser(stdCtx, userID)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, res)
}
