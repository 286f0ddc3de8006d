package handler

import (
	"encoding/json"
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/taskbot/api/transport"
	"github.com/fastygo/taskbot/pkg/httpcontext"
	assistantUC "github.com/fastygo/taskbot/usecase/assistant"
)

const (
	actionParseTask = "parse_task"
	actionAnalyze   = "analyze"
)

type AssistantHandler struct {
	baseHandler
	uc *assistantUC.UseCase
}

func NewAssistantHandler(uc *assistantUC.UseCase, adapter *httpcontext.Adapter, logger *zap.Logger) *AssistantHandler {
	return &AssistantHandler{
		baseHandler: newBaseHandler(adapter, logger),
		uc:          uc,
	}
}

// @Summary Run an assistant action (parse_task, analyze)
// @Tags ai
// @Router /api/v1/ai [post]
func (h *AssistantHandler) Handle(ctx *fasthttp.RequestCtx) {
	userID, ok := h.userID(ctx)
	if !ok {
		return
	}

	var req transport.AssistantRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		h.respondInvalid(ctx, "invalid payload")
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	switch req.Action {
	case actionParseTask:
		suggestion, err := h.uc.ParseTask(stdCtx, userID, req.Input())
		if err != nil {
			h.respondError(stdCtx, ctx, err)
			return
		}
		h.respondSuccess(ctx, http.StatusOK, suggestion)
	case actionAnalyze:
		answer, decision, err := h.uc.Analyze(stdCtx, userID, req.Input())
		if err != nil {
			h.respondError(stdCtx, ctx, err)
			return
		}
		h.respondSuccess(ctx, http.StatusOK, map[string]interface{}{
			"analysis":  answer,
			"remaining": decision.Remaining,
		})
	default:
		h.respondInvalid(ctx, "invalid action")
	}
}
