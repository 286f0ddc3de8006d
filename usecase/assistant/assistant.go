// Package assistant wraps the generative-text and job-search backends behind
// the per-user daily budget.
package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/fastygo/taskbot/domain"
	"github.com/fastygo/taskbot/usecase"
	"github.com/fastygo/taskbot/usecase/ratelimit"
)

const maxInputLength = 2000

// Limiter charges one unit of the daily budget.
type Limiter interface {
	Consume(ctx context.Context, userID int64) (ratelimit.Decision, error)
}

type UseCase struct {
	generator usecase.TextGenerator
	jobs      usecase.JobSearcher
	limiter   Limiter
	logger    *zap.Logger
}

func New(generator usecase.TextGenerator, jobs usecase.JobSearcher, limiter Limiter, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{generator: generator, jobs: jobs, limiter: limiter, logger: logger}
}

// Analyze returns free-form advice about a task description.
func (uc *UseCase) Analyze(ctx context.Context, userID int64, text string) (string, ratelimit.Decision, error) {
	text, err := clean(text)
	if err != nil {
		return "", ratelimit.Decision{}, err
	}
	decision, err := uc.limiter.Consume(ctx, userID)
	if err != nil {
		return "", decision, err
	}

	answer, err := uc.generator.Generate(ctx, analyzePrompt(text))
	if err != nil {
		uc.logger.Warn("task analysis failed", zap.Int64("user_id", userID), zap.Error(err))
		return "", decision, domain.Upstream("analyze task", err)
	}
	return answer, decision, nil
}

// ParseTask asks the generator for a structured task and decodes it.
func (uc *UseCase) ParseTask(ctx context.Context, userID int64, text string) (*domain.TaskSuggestion, error) {
	text, err := clean(text)
	if err != nil {
		return nil, err
	}
	if _, err := uc.limiter.Consume(ctx, userID); err != nil {
		return nil, err
	}

	answer, err := uc.generator.Generate(ctx, parsePrompt(text))
	if err != nil {
		uc.logger.Warn("task parse failed", zap.Int64("user_id", userID), zap.Error(err))
		return nil, domain.Upstream("parse task", err)
	}

	suggestion, err := decodeSuggestion(answer)
	if err != nil {
		return nil, domain.Upstream("parse task", err)
	}
	if suggestion.Text == "" {
		suggestion.Text = text
	}
	suggestion.Priority = domain.ParsePriority(strings.ToLower(string(suggestion.Priority)))
	return suggestion, nil
}

// FindJobs searches postings for a "<role> [in <location>]" query.
func (uc *UseCase) FindJobs(ctx context.Context, userID int64, query string) ([]domain.JobPosting, error) {
	q := ParseJobQuery(query)
	if q.Role == "" {
		return nil, domain.Invalid("job role is required")
	}
	if _, err := uc.limiter.Consume(ctx, userID); err != nil {
		return nil, err
	}

	postings, err := uc.jobs.Search(ctx, q)
	if err != nil {
		uc.logger.Warn("job search failed", zap.Int64("user_id", userID), zap.Error(err))
		return nil, domain.Upstream("job search", err)
	}
	return postings, nil
}

// ParseJobQuery splits "<role> in <location>" on the last " in ".
func ParseJobQuery(text string) domain.JobQuery {
	text = strings.TrimSpace(text)
	lower := strings.ToLower(text)
	if i := strings.LastIndex(lower, " in "); i > 0 {
		return domain.JobQuery{
			Role:     strings.TrimSpace(text[:i]),
			Location: strings.TrimSpace(text[i+4:]),
		}
	}
	return domain.JobQuery{Role: text}
}

func clean(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", domain.Invalid("text is required")
	}
	if len(text) > maxInputLength {
		return "", domain.Invalid("text is too long")
	}
	return text, nil
}

func analyzePrompt(text string) string {
	return fmt.Sprintf(`You are a productivity assistant. Analyze this task and answer briefly:
1. Priority (low, medium or high) and why
2. Estimated time to complete
3. Suggested tags
4. One practical tip to get it done

Task: %s`, text)
}

func parsePrompt(text string) string {
	return fmt.Sprintf(`Extract a task from the text below. Reply with JSON only, no commentary:
{"text": "<task without time words>", "priority": "low|medium|high", "due_date": "<ISO 8601 or empty>", "tags": ["..."], "estimated_minutes": 0}

Text: %s`, text)
}

// decodeSuggestion parses a JSON object that may be wrapped in a markdown code fence.
func decodeSuggestion(answer string) (*domain.TaskSuggestion, error) {
	answer = strings.TrimSpace(answer)
	answer = strings.TrimPrefix(answer, "```json")
	answer = strings.TrimPrefix(answer, "```")
	answer = strings.TrimSuffix(answer, "```")
	answer = strings.TrimSpace(answer)

	if start, end := strings.Index(answer, "{"), strings.LastIndex(answer, "}"); start >= 0 && end > start {
		answer = answer[start : end+1]
	}

	var suggestion domain.TaskSuggestion
	if err := json.Unmarshal([]byte(answer), &suggestion); err != nil {
		return nil, fmt.Errorf("decode suggestion: %w", err)
	}
	return &suggestion, nil
}
