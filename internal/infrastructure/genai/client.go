// Package genai calls the Gemini generateContent REST endpoint.
package genai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/taskbot/domain"
	"github.com/fastygo/taskbot/usecase"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com"
	defaultModel   = "gemini-2.0-flash"
)

// ErrNotConfigured is returned when no API key was provided.
var ErrNotConfigured = domain.NewError(domain.ErrCodeUpstream, "text generation is not configured")

type Config struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

type Client struct {
	cfg    Config
	http   *fasthttp.Client
	logger *zap.Logger
}

var _ usecase.TextGenerator = (*Client)(nil)

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error,omitempty"`
}

func New(cfg Config, logger *zap.Logger) *Client {
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		cfg:    cfg,
		http:   &fasthttp.Client{Name: "taskbot", ReadTimeout: cfg.Timeout, WriteTimeout: cfg.Timeout},
		logger: logger,
	}
}

// Generate returns the concatenated text of the first candidate.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if c.cfg.APIKey == "" {
		return "", ErrNotConfigured
	}
	body, err := json.Marshal(generateRequest{Contents: []content{{Role: "user", Parts: []part{{Text: prompt}}}}})
	if err != nil {
		return "", err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		c.cfg.BaseURL, c.cfg.Model, url.QueryEscape(c.cfg.APIKey)))
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.SetBody(body)

	start := time.Now()
	if err := c.http.DoDeadline(req, resp, deadline(ctx, c.cfg.Timeout)); err != nil {
		return "", domain.Upstream("generate content", err)
	}

	var out generateResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return "", domain.Upstream("generate content", fmt.Errorf("status %d: %w", resp.StatusCode(), err))
	}
	if out.Error != nil || resp.StatusCode() != fasthttp.StatusOK {
		msg := fmt.Sprintf("status %d", resp.StatusCode())
		if out.Error != nil {
			msg = fmt.Sprintf("%s: %s", out.Error.Status, out.Error.Message)
		}
		return "", domain.Upstream("generate content", errors.New(msg))
	}
	if len(out.Candidates) == 0 {
		return "", domain.Upstream("generate content", errors.New("no candidates returned"))
	}

	var sb strings.Builder
	for _, p := range out.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	c.logger.Debug("content generated", zap.String("model", c.cfg.Model), zap.Duration("took", time.Since(start)))
	return strings.TrimSpace(sb.String()), nil
}

func deadline(ctx context.Context, timeout time.Duration) time.Time {
	limit := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(limit) {
		return d
	}
	return limit
}
