package jobsearch

import (
	"context"
	"fmt"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"

	"github.com/fastygo/taskbot/domain"
)

func serve(t *testing.T, handler fasthttp.RequestHandler) *Client {
	t.Helper()
	ln := fasthttputil.NewInmemoryListener()
	go func() { _ = (&fasthttp.Server{Handler: handler}).Serve(ln) }()
	t.Cleanup(func() { _ = ln.Close() })

	c := New(Config{APIKey: "rk", BaseURL: "http://jobs.test", Timeout: time.Second}, nil)
	c.http.Dial = func(string) (net.Conn, error) { return ln.Dial() }
	return c
}

func postings(n int) string {
	items := make([]string, 0, n)
	for i := 0; i < n; i++ {
		items = append(items, fmt.Sprintf(`{"job_title":"Go dev %d","company_name":"Acme","job_url":"https://jobs/%d"}`, i, i))
	}
	return "[" + strings.Join(items, ",") + "]"
}

func TestSearch_TopFiveFromList(t *testing.T) {
	var query, key, host string
	c := serve(t, func(ctx *fasthttp.RequestCtx) {
		query = string(ctx.QueryArgs().Peek("query"))
		key = string(ctx.Request.Header.Peek("x-rapidapi-key"))
		host = string(ctx.Request.Header.Peek("x-rapidapi-host"))
		ctx.SetBodyString(postings(8))
	})

	jobs, err := c.Search(context.Background(), domain.JobQuery{Role: "golang developer", Location: "Berlin"})
	require.NoError(t, err)
	require.Len(t, jobs, 5)
	assert.Equal(t, domain.JobPosting{Title: "Go dev 0", Company: "Acme", URL: "https://jobs/0"}, jobs[0])
	assert.Equal(t, "golang developer in Berlin", query)
	assert.Equal(t, "rk", key)
	assert.Equal(t, defaultHost, host)
}

func TestSearch_WrappedDataAndDefaultLocation(t *testing.T) {
	var query string
	c := serve(t, func(ctx *fasthttp.RequestCtx) {
		query = string(ctx.QueryArgs().Peek("query"))
		ctx.SetBodyString(`{"data":` + postings(2) + `}`)
	})

	jobs, err := c.Search(context.Background(), domain.JobQuery{Role: "sre"})
	require.NoError(t, err)
	assert.Len(t, jobs, 2)
	assert.Equal(t, "sre in United States", query)
}

func TestSearch_Failures(t *testing.T) {
	c := serve(t, func(ctx *fasthttp.RequestCtx) {
		ctx.SetStatusCode(fasthttp.StatusForbidden)
	})
	_, err := c.Search(context.Background(), domain.JobQuery{Role: "sre"})
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeUpstream))

	_, err = c.Search(context.Background(), domain.JobQuery{Role: " "})
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeInvalid))

	_, err = New(Config{}, nil).Search(context.Background(), domain.JobQuery{Role: "sre"})
	assert.ErrorIs(t, err, ErrNotConfigured)
}
