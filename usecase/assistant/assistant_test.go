package assistant

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/taskbot/domain"
	"github.com/fastygo/taskbot/repository/memory"
	"github.com/fastygo/taskbot/usecase/ratelimit"
)

type stubGenerator struct {
	answer  string
	err     error
	prompts []string
}

func (g *stubGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.prompts = append(g.prompts, prompt)
	return g.answer, g.err
}

type stubJobs struct {
	queries []domain.JobQuery
	result  []domain.JobPosting
}

func (j *stubJobs) Search(_ context.Context, q domain.JobQuery) ([]domain.JobPosting, error) {
	j.queries = append(j.queries, q)
	return j.result, nil
}

func newUseCase(gen *stubGenerator, jobs *stubJobs, limit int) *UseCase {
	limiter := ratelimit.New(memory.NewCounterRepository(), ratelimit.Config{DailyLimit: limit}, nil)
	return New(gen, jobs, limiter, nil)
}

func TestAnalyze_ConsumesBudget(t *testing.T) {
	gen := &stubGenerator{answer: "High priority, 30 minutes."}
	uc := newUseCase(gen, &stubJobs{}, 2)
	ctx := context.Background()

	answer, decision, err := uc.Analyze(ctx, 1, "prepare slides")
	require.NoError(t, err)
	assert.Equal(t, "High priority, 30 minutes.", answer)
	assert.Equal(t, 1, decision.Remaining)
	assert.Contains(t, gen.prompts[0], "prepare slides")

	_, _, err = uc.Analyze(ctx, 1, "again")
	require.NoError(t, err)

	_, _, err = uc.Analyze(ctx, 1, "third")
	assert.ErrorIs(t, err, domain.ErrRateLimited)
	assert.Len(t, gen.prompts, 2)
}

func TestAnalyze_EmptyTextIsFree(t *testing.T) {
	gen := &stubGenerator{}
	uc := newUseCase(gen, &stubJobs{}, 1)

	_, _, err := uc.Analyze(context.Background(), 1, "  ")
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeInvalid))

	_, _, err = uc.Analyze(context.Background(), 1, "real")
	assert.NoError(t, err)
}

func TestAnalyze_GeneratorFailureIsUpstream(t *testing.T) {
	uc := newUseCase(&stubGenerator{err: errors.New("quota")}, &stubJobs{}, 5)

	_, _, err := uc.Analyze(context.Background(), 1, "x")
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeUpstream))
}

func TestParseTask_StripsCodeFence(t *testing.T) {
	gen := &stubGenerator{answer: "```json\n{\"text\":\"Call mom\",\"priority\":\"HIGH\",\"due_date\":\"2026-10-15T18:00:00Z\"}\n```"}
	uc := newUseCase(gen, &stubJobs{}, 5)

	suggestion, err := uc.ParseTask(context.Background(), 1, "call mom tomorrow evening, important")
	require.NoError(t, err)
	assert.Equal(t, "Call mom", suggestion.Text)
	assert.Equal(t, domain.PriorityHigh, suggestion.Priority)
	assert.Equal(t, "2026-10-15T18:00:00Z", suggestion.DueDate)
}

func TestParseTask_GarbageIsUpstream(t *testing.T) {
	uc := newUseCase(&stubGenerator{answer: "sorry, I can't"}, &stubJobs{}, 5)

	_, err := uc.ParseTask(context.Background(), 1, "x")
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeUpstream))
}

func TestFindJobs(t *testing.T) {
	jobs := &stubJobs{result: []domain.JobPosting{{Title: "Go Engineer"}}}
	uc := newUseCase(&stubGenerator{}, jobs, 5)

	postings, err := uc.FindJobs(context.Background(), 1, "Go engineer in Berlin")
	require.NoError(t, err)
	assert.Len(t, postings, 1)
	assert.Equal(t, domain.JobQuery{Role: "Go engineer", Location: "Berlin"}, jobs.queries[0])
}

func TestParseJobQuery(t *testing.T) {
	assert.Equal(t, domain.JobQuery{Role: "data engineer"}, ParseJobQuery(" data engineer "))
	assert.Equal(t, domain.JobQuery{Role: "engineer in test", Location: "New York"}, ParseJobQuery("engineer in test in New York"))
	assert.Equal(t, domain.JobQuery{Role: "in"}, ParseJobQuery("in"))
}
