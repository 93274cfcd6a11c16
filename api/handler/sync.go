package handler

import (
	"net/http"
	"strconv"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/taskmarket/backend/api/transport"
	"github.com/taskmarket/backend/domain"
	"github.com/taskmarket/backend/pkg/httpcontext"
	syncUC "github.com/taskmarket/backend/usecase/sync"
)

type SyncHandler struct {
	baseHandler
	uc *syncUC.UseCase
}

func NewSyncHandler(uc *syncUC.UseCase, adapter *httpcontext.Adapter, logger *zap.Logger) *SyncHandler {
	return &SyncHandler{
		baseHandler: newBaseHandler(adapter, logger),
		uc:          uc,
	}
}

// @Summary Incremental sync of task changes
// @Tags sync
// @Router /api/v1/sync [get]
func (h *SyncHandler) Sync(ctx *fasthttp.RequestCtx) {
	userID := h.userID(ctx)
	if userID == "" {
		return
	}

	since := int64(0)
	if raw := string(ctx.QueryArgs().Peek("since")); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed < 0 {
			h.respondJSON(ctx, http.StatusBadRequest, transport.NewError(string(domain.ErrCodeInvalid), "since must be a non-negative timestamp", nil))
			return
		}
		since = parsed
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	result, err := h.uc.Sync(stdCtx, since)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, result)
}
