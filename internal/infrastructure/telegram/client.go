// Package telegram is a minimal Bot API client: it sends chat messages and
// registers the webhook. Sends are throttled to the bot-wide rate Telegram allows.
package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fastygo/taskbot/domain"
	"github.com/fastygo/taskbot/usecase"
)

const defaultBaseURL = "https://api.telegram.org"

type Config struct {
	Token         string
	BaseURL       string
	Timeout       time.Duration
	RatePerSecond float64
}

// Client implements usecase.Messenger over the Bot API.
type Client struct {
	cfg     Config
	http    *fasthttp.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

var _ usecase.Messenger = (*Client)(nil)

func New(cfg Config, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = 30
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		cfg: cfg,
		http: &fasthttp.Client{
			Name:         "taskbot",
			ReadTimeout:  cfg.Timeout,
			WriteTimeout: cfg.Timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), int(cfg.RatePerSecond)),
		logger:  logger,
	}
}

// Send delivers msg as an HTML-formatted chat message.
func (c *Client) Send(ctx context.Context, msg domain.OutboundMessage) error {
	if msg.ChatID == 0 || strings.TrimSpace(msg.Text) == "" {
		return domain.ErrInvalidPayload
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return domain.Upstream("telegram throttle", err)
	}

	req := sendMessageRequest{
		ChatID:                msg.ChatID,
		Text:                  msg.Text,
		ParseMode:             "HTML",
		DisableWebPagePreview: true,
		ReplyMarkup:           keyboard(msg.Buttons),
	}
	return c.call(ctx, "sendMessage", req)
}

// SetWebhook points the bot's updates at url. Telegram echoes secret in the
// X-Telegram-Bot-Api-Secret-Token header of every update.
func (c *Client) SetWebhook(ctx context.Context, url, secret string) error {
	return c.call(ctx, "setWebhook", setWebhookRequest{
		URL:            url,
		SecretToken:    secret,
		AllowedUpdates: []string{"message"},
	})
}

func (c *Client) call(ctx context.Context, method string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(fmt.Sprintf("%s/bot%s/%s", c.cfg.BaseURL, c.cfg.Token, method))
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.SetBody(body)

	if err := c.http.DoDeadline(req, resp, deadline(ctx, c.cfg.Timeout)); err != nil {
		return domain.Upstream("telegram "+method, err)
	}

	var out apiResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return domain.Upstream("telegram "+method, fmt.Errorf("status %d: %w", resp.StatusCode(), err))
	}
	if out.OK {
		return nil
	}

	c.logger.Warn("telegram call rejected",
		zap.String("method", method),
		zap.Int("code", out.ErrorCode),
		zap.String("description", out.Description))
	return classify(method, resp.StatusCode(), out)
}

func classify(method string, status int, out apiResponse) error {
	code := out.ErrorCode
	if code == 0 {
		code = status
	}
	message := fmt.Sprintf("telegram %s: %s", method, out.Description)
	switch {
	case code == fasthttp.StatusTooManyRequests:
		if out.Parameters != nil && out.Parameters.RetryAfter > 0 {
			message = fmt.Sprintf("%s (retry after %ds)", message, out.Parameters.RetryAfter)
		}
		return domain.NewError(domain.ErrCodeRateLimited, message)
	case code == fasthttp.StatusForbidden:
		return domain.NewError(domain.ErrCodeForbidden, message)
	case code == fasthttp.StatusUnauthorized:
		return domain.NewError(domain.ErrCodeUnauthorized, message)
	case code >= 400 && code < 500:
		return domain.NewError(domain.ErrCodeInvalid, message)
	default:
		return domain.WrapError(domain.ErrCodeUpstream, message, fmt.Errorf("status %d", code))
	}
}

func keyboard(rows [][]domain.Button) *replyMarkup {
	if len(rows) == 0 {
		return nil
	}
	markup := &replyMarkup{InlineKeyboard: make([][]inlineButton, 0, len(rows))}
	for _, row := range rows {
		buttons := make([]inlineButton, 0, len(row))
		for _, b := range row {
			btn := inlineButton{Text: b.Text, URL: b.URL, CallbackData: b.CallbackData}
			if b.WebAppURL != "" {
				btn.WebApp = &webAppInfo{URL: b.WebAppURL}
			}
			buttons = append(buttons, btn)
		}
		markup.InlineKeyboard = append(markup.InlineKeyboard, buttons)
	}
	return markup
}

func deadline(ctx context.Context, timeout time.Duration) time.Time {
	limit := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(limit) {
		return d
	}
	return limit
}
