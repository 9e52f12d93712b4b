// internal/plan/parser.go
package plan

import (
	"context"
	"fmt"

	json "github.com/json-iterator/go"

	"go.uber.org/zap"

	"github.com/xkilldash9x/pilot-cli/api/schemas"
)

// Token budgets grow on retry attempts; a truncated plan is the most common
// first-attempt failure.
const (
	planMaxTokensFirst   = 1024
	planMaxTokensRetry   = 1536
	replanMaxTokensFirst = 768
	replanMaxTokensRetry = 1024
)

// Planner turns the planning oracle's raw text into validated, typed plans
// with a bounded retry loop. Each attempt after the first switches to a
// strict "JSON only" prompt and appends the previous attempt's validator
// errors as corrective feedback.
type Planner struct {
	oracle   schemas.LLMClient
	logger   *zap.Logger
	attempts int
}

// Result is a successfully parsed plan plus the raw oracle output that
// produced it and the token usage across all attempts.
type Result struct {
	Plan      schemas.Plan
	RawOutput string
	Usage     schemas.TokenUsage
}

// NewPlanner wires the planning oracle. attempts is the per-call extraction
// budget; values below 1 are clamped to 1.
func NewPlanner(oracle schemas.LLMClient, attempts int, logger *zap.Logger) *Planner {
	if attempts < 1 {
		attempts = 1
	}
	return &Planner{
		oracle:   oracle,
		logger:   logger.Named("planner"),
		attempts: attempts,
	}
}

// CreatePlan requests an initial plan for the task.
func (p *Planner) CreatePlan(ctx context.Context, task string) (Result, error) {
	build := func(strict bool, schemaErrors string) (string, string) {
		return BuildPlannerPrompt(task, strict, schemaErrors)
	}
	return p.request(ctx, build, planMaxTokensFirst, planMaxTokensRetry)
}

// Replan requests a corrective plan covering only the remaining work, given
// execution feedback from the failed step.
func (p *Planner) Replan(ctx context.Context, task, feedback string) (Result, error) {
	build := func(strict bool, schemaErrors string) (string, string) {
		return BuildReplanPrompt(task, feedback, strict, schemaErrors)
	}
	return p.request(ctx, build, replanMaxTokensFirst, replanMaxTokensRetry)
}

func (p *Planner) request(
	ctx context.Context,
	buildPrompt func(strict bool, schemaErrors string) (string, string),
	maxTokensFirst, maxTokensRetry int,
) (Result, error) {
	var (
		usage      schemas.TokenUsage
		lastRaw    string
		lastErr    error
		lastErrors []string
	)

	for attempt := 1; attempt <= p.attempts; attempt++ {
		maxTokens := maxTokensFirst
		if attempt > 1 {
			maxTokens = maxTokensRetry
		}
		system, user := buildPrompt(attempt > 1, FormatErrorList(lastErrors))

		resp, err := p.oracle.Generate(ctx, schemas.GenerationRequest{
			SystemPrompt: system,
			UserPrompt:   user,
			Options: schemas.GenerationOptions{
				Temperature:     0,
				MaxOutputTokens: maxTokens,
				ForceJSONFormat: attempt > 1,
			},
		})
		if err != nil {
			return Result{Usage: usage}, fmt.Errorf("planning oracle call failed: %w", err)
		}
		usage.Add(resp.Usage)
		lastRaw = resp.Content

		jsonText, err := ExtractJSON(resp.Content)
		if err != nil {
			p.logger.Warn("No JSON object in planner output", zap.Int("attempt", attempt))
			lastErr = err
			continue
		}

		var raw RawPlan
		if err := json.Unmarshal([]byte(jsonText), &raw); err != nil {
			p.logger.Warn("Planner JSON does not parse", zap.Int("attempt", attempt), zap.Error(err))
			lastErr = fmt.Errorf("planner JSON does not parse: %w", err)
			continue
		}

		raw = Normalize(raw)
		if errs := Validate(raw); len(errs) > 0 {
			p.logger.Warn("Planner output failed schema validation",
				zap.Int("attempt", attempt),
				zap.Int("error_count", len(errs)),
			)
			lastErrors = errs
			continue
		}

		typed, err := decode(raw)
		if err != nil {
			lastErr = err
			continue
		}
		p.logger.Info("Plan accepted",
			zap.Int("attempt", attempt),
			zap.Int("steps", len(typed.Steps)),
		)
		return Result{Plan: typed, RawOutput: resp.Content, Usage: usage}, nil
	}

	if len(lastErrors) > 0 {
		return Result{Usage: usage}, &ValidationError{
			Attempts:  p.attempts,
			RawOutput: lastRaw,
			Errors:    lastErrors,
		}
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no usable planner output")
	}
	return Result{Usage: usage}, &ParseError{
		Attempts:  p.attempts,
		RawOutput: lastRaw,
		Err:       lastErr,
	}
}

// decode converts a validated raw plan into the typed schema via a JSON round
// trip, so predicate args survive as raw messages.
func decode(raw RawPlan) (schemas.Plan, error) {
	body, err := json.Marshal(raw)
	if err != nil {
		return schemas.Plan{}, fmt.Errorf("re-encoding validated plan: %w", err)
	}
	var typed schemas.Plan
	if err := json.Unmarshal(body, &typed); err != nil {
		return schemas.Plan{}, fmt.Errorf("decoding validated plan: %w", err)
	}
	return typed, nil
}
