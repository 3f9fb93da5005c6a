package handler

import (
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/planner/api/transport"
	"github.com/fastygo/planner/domain"
	"github.com/fastygo/planner/pkg/httpcontext"
	"github.com/fastygo/planner/repository"
	"github.com/fastygo/planner/usecase/agenda"
)

// UpdateHandler serves the calendar read model and the day agenda.
type UpdateHandler struct {
	baseHandler
	uc *agenda.UseCase
}

func NewUpdateHandler(uc *agenda.UseCase, adapter *httpcontext.Adapter, logger *zap.Logger) *UpdateHandler {
	return &UpdateHandler{
		baseHandler: newBaseHandler(adapter, logger),
		uc:          uc,
	}
}

// @Summary List updates in a date range
// @Tags updates
// @Router /api/v1/updates [get]
func (h *UpdateHandler) List(ctx *fasthttp.RequestCtx) {
	userID := h.userID(ctx)
	if userID == "" {
		return
	}

	from, err := parseDateArg(ctx, "from")
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	to, err := parseDateArg(ctx, "to")
	if err != nil {
		h.respondError(ctx, err)
		return
	}

	filter := repository.UpdateFilter{
		UserID: userID,
		From:   from,
		To:     to,
		Status: domain.UpdateStatus(ctx.QueryArgs().Peek("status")),
		Limit:  parseInt(string(ctx.QueryArgs().Peek("limit")), 200),
		Offset: parseInt(string(ctx.QueryArgs().Peek("offset")), 0),
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	updates, err := h.uc.Calendar(stdCtx, filter)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	if updates == nil {
		updates = []domain.Update{}
	}
	meta := transport.NewListMeta(filter.From, filter.To, filter.Status, filter.Limit, filter.Offset, len(updates))
	h.respondSuccessMeta(ctx, http.StatusOK, updates, meta)
}

// @Summary Change an update's status
// @Tags updates
// @Router /api/v1/updates/{id}/status [put]
func (h *UpdateHandler) SetStatus(ctx *fasthttp.RequestCtx) {
	userID := h.userID(ctx)
	if userID == "" {
		return
	}

	id, _ := ctx.UserValue("id").(string)
	if id == "" {
		h.respondInvalid(ctx, "missing update id")
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	var req transport.StatusRequest
	if !h.decode(ctx, stdCtx, &req) {
		return
	}
	status, err := domain.ParseUpdateStatus(req.Status)
	if err != nil {
		h.respondError(ctx, err)
		return
	}

	updated, err := h.uc.SetStatus(stdCtx, userID, id, status)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, updated)
}

// @Summary Day agenda
// @Tags agenda
// @Router /api/v1/agenda [get]
func (h *UpdateHandler) Agenda(ctx *fasthttp.RequestCtx) {
	userID := h.userID(ctx)
	if userID == "" {
		return
	}

	date, err := parseDateArg(ctx, "date")
	if err != nil {
		h.respondError(ctx, err)
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	if date.IsZero() {
		if date, _, err = h.uc.Today(stdCtx, userID); err != nil {
			h.respondError(ctx, err)
			return
		}
	}

	tasks, err := h.uc.ForDate(stdCtx, userID, date)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	if tasks == nil {
		tasks = []domain.Task{}
	}
	h.respondSuccessMeta(ctx, http.StatusOK, tasks, transport.AgendaMeta{Date: date, Count: len(tasks)})
}
