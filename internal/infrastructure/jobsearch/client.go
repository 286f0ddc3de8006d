// Package jobsearch queries the RapidAPI LinkedIn job search endpoint.
package jobsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/taskbot/domain"
	"github.com/fastygo/taskbot/usecase"
)

const (
	defaultHost     = "linkedin-job-search-api.p.rapidapi.com"
	defaultLocation = "United States"
	maxResults      = 5
)

var ErrNotConfigured = domain.NewError(domain.ErrCodeUpstream, "job search is not configured")

type Config struct {
	APIKey  string
	Host    string
	BaseURL string
	Timeout time.Duration
}

type Client struct {
	cfg    Config
	http   *fasthttp.Client
	logger *zap.Logger
}

var _ usecase.JobSearcher = (*Client)(nil)

type posting struct {
	JobTitle    string `json:"job_title"`
	CompanyName string `json:"company_name"`
	JobURL      string `json:"job_url"`
}

func New(cfg Config, logger *zap.Logger) *Client {
	if cfg.Host == "" {
		cfg.Host = defaultHost
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://" + cfg.Host
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
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

// Search returns at most five postings for "<role> in <location>".
func (c *Client) Search(ctx context.Context, query domain.JobQuery) ([]domain.JobPosting, error) {
	if c.cfg.APIKey == "" {
		return nil, ErrNotConfigured
	}
	role := strings.TrimSpace(query.Role)
	if role == "" {
		return nil, domain.Invalid("job role is required")
	}
	location := strings.TrimSpace(query.Location)
	if location == "" {
		location = defaultLocation
	}

	args := fasthttp.AcquireArgs()
	defer fasthttp.ReleaseArgs(args)
	args.Set("query", role+" in "+location)
	args.Set("page", "1")
	args.Set("num_pages", "1")
	args.Set("date_posted", "any_time")

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.cfg.BaseURL + "/search?" + args.String())
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("x-rapidapi-key", c.cfg.APIKey)
	req.Header.Set("x-rapidapi-host", c.cfg.Host)

	if err := c.http.DoDeadline(req, resp, deadline(ctx, c.cfg.Timeout)); err != nil {
		return nil, domain.Upstream("job search", err)
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		return nil, domain.Upstream("job search", fmt.Errorf("status %d", resp.StatusCode()))
	}

	raw, err := decode(resp.Body())
	if err != nil {
		return nil, domain.Upstream("job search", err)
	}

	out := make([]domain.JobPosting, 0, maxResults)
	for _, p := range raw {
		if len(out) == maxResults {
			break
		}
		out = append(out, domain.JobPosting{Title: p.JobTitle, Company: p.CompanyName, URL: p.JobURL})
	}
	c.logger.Debug("job search done", zap.String("role", role), zap.Int("results", len(out)))
	return out, nil
}

// decode accepts either a bare list or an object with a data list.
func decode(body []byte) ([]posting, error) {
	body = bytes.TrimSpace(body)
	if len(body) > 0 && body[0] == '[' {
		var list []posting
		err := json.Unmarshal(body, &list)
		return list, err
	}
	var wrapped struct {
		Data []posting `json:"data"`
	}
	err := json.Unmarshal(body, &wrapped)
	return wrapped.Data, err
}

func deadline(ctx context.Context, timeout time.Duration) time.Time {
	limit := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(limit) {
		return d
	}
	return limit
}
