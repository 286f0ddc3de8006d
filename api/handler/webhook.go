package handler

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/taskbot/internal/infrastructure/telegram"
	"github.com/fastygo/taskbot/pkg/httpcontext"
	appLogger "github.com/fastygo/taskbot/pkg/logger"
	chatUC "github.com/fastygo/taskbot/usecase/chat"
)

// HeaderWebhookSecret carries the secret registered with setWebhook.
const HeaderWebhookSecret = "X-Telegram-Bot-Api-Secret-Token"

// MessageHandler consumes incoming chat messages.
type MessageHandler interface {
	Handle(ctx context.Context, in chatUC.Incoming) error
}

type WebhookHandler struct {
	baseHandler
	chat   MessageHandler
	secret string
}

func NewWebhookHandler(chat MessageHandler, secret string, adapter *httpcontext.Adapter, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		baseHandler: newBaseHandler(adapter, logger),
		chat:        chat,
		secret:      secret,
	}
}

// @Summary Telegram webhook
// @Tags telegram
// @Router /telegram/webhook [post]
func (h *WebhookHandler) Receive(ctx *fasthttp.RequestCtx) {
	if h.secret != "" {
		got := ctx.Request.Header.Peek(HeaderWebhookSecret)
		if subtle.ConstantTimeCompare(got, []byte(h.secret)) != 1 {
			ctx.SetStatusCode(http.StatusUnauthorized)
			return
		}
	}

	var update telegram.Update
	if err := json.Unmarshal(ctx.PostBody(), &update); err != nil {
		h.respondInvalid(ctx, "invalid update")
		return
	}

	// Telegram redelivers on non-2xx, so handling failures are logged and acknowledged.
	defer ctx.SetStatusCode(http.StatusOK)

	msg := update.Message
	if msg == nil || msg.From == nil || msg.From.IsBot || msg.Text == "" {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	err := h.chat.Handle(stdCtx, chatUC.Incoming{
		UserID: msg.From.ID,
		ChatID: msg.Chat.ID,
		Text:   msg.Text,
	})
	if err != nil {
		appLogger.WithRequestID(stdCtx, h.logger).Error("webhook update failed",
			zap.Int64("update_id", update.UpdateID),
			zap.Int64("user_id", msg.From.ID),
			zap.Error(err))
	}
}
