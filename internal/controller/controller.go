// Package controller drives a run: it obtains a plan, executes its steps in
// order, and replans on required-step failures until the replan budget is
// spent.
package controller

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/pilot-cli/api/schemas"
	"github.com/xkilldash9x/pilot-cli/internal/config"
	"github.com/xkilldash9x/pilot-cli/internal/journal"
	"github.com/xkilldash9x/pilot-cli/internal/plan"
)

// State is the controller's phase for the current run.
type State string

const (
	StateRunning    State = "RUNNING"
	StateReplanning State = "REPLANNING"
	StateDone       State = "DONE"
	StateAborted    State = "ABORTED"
)

// RunState is the mutable per-run cursor. It is owned exclusively by the
// controller; nothing else mutates it.
type RunState struct {
	State       State
	StepIndex   int
	ReplansUsed int
	Results     []schemas.StepResult
}

// ReplanBudgetExhaustedError terminates a run whose required steps keep
// failing after every allowed replan.
type ReplanBudgetExhaustedError struct {
	ReplansUsed int
	FailedStep  schemas.StepResult
}

func (e *ReplanBudgetExhaustedError) Error() string {
	return fmt.Sprintf("replan budget exhausted after %d replans (step %d failed: %s)",
		e.ReplansUsed, e.FailedStep.ID, e.FailedStep.Note)
}

// Planner produces and revises plans.
type Planner interface {
	CreatePlan(ctx context.Context, task string) (plan.Result, error)
	Replan(ctx context.Context, task, feedback string) (plan.Result, error)
}

// StepRunner executes individual steps and their optional substeps.
type StepRunner interface {
	ExecuteStep(ctx context.Context, step schemas.Step) schemas.StepResult
	RunOptionalSubsteps(ctx context.Context, step schemas.Step) []schemas.SubstepOutcome
	Usage() schemas.TokenUsage
}

type planCreatedPayload struct {
	Task      string       `json:"task"`
	RawOutput string       `json:"raw_output"`
	Plan      schemas.Plan `json:"plan"`
}

type replanPayload struct {
	Feedback  string       `json:"feedback"`
	RawOutput string       `json:"raw_output"`
	Plan      schemas.Plan `json:"plan"`
}

type stepResultPayload struct {
	Step      schemas.Step `json:"step"`
	Success   bool         `json:"success"`
	Note      string       `json:"note"`
	URL       string       `json:"url"`
	StartedAt time.Time    `json:"started_at"`
	EndedAt   time.Time    `json:"ended_at"`
	DurationS float64      `json:"duration_s"`
	ParentID  int          `json:"parent_id,omitempty"`
}

// Controller owns the run loop.
type Controller struct {
	runID   string
	planner Planner
	runner  StepRunner
	journal schemas.Journal
	cfg     config.RunConfig
	logger  *zap.Logger
}

func New(runID string, planner Planner, runner StepRunner, jrnl schemas.Journal, cfg config.RunConfig, logger *zap.Logger) *Controller {
	return &Controller{
		runID:   runID,
		planner: planner,
		runner:  runner,
		journal: jrnl,
		cfg:     cfg,
		logger:  logger.Named("controller"),
	}
}

// Run executes the task end to end and always returns a summary, even on
// abort. The error is non-nil only for terminal conditions: an unusable
// initial plan, an unusable replan, or an exhausted replan budget.
func (c *Controller) Run(ctx context.Context, task string) (schemas.RunSummary, error) {
	summary := schemas.RunSummary{RunID: c.runID, Task: task, StartedAt: time.Now()}
	state := &RunState{State: StateRunning}

	c.logger.Info("Run starting", zap.String("run_id", c.runID), zap.String("task", task))

	created, err := c.planner.CreatePlan(ctx, task)
	if err != nil {
		state.State = StateAborted
		c.finalize(&summary, state, false)
		return summary, fmt.Errorf("initial plan failed: %w", err)
	}
	summary.Tokens.Add(created.Usage)
	c.journal.Record(journal.EventPlanCreated, planCreatedPayload{
		Task:      task,
		RawOutput: created.RawOutput,
		Plan:      created.Plan,
	})

	steps := created.Plan.Steps
	for state.StepIndex < len(steps) {
		step := steps[state.StepIndex]
		c.logger.Info("Running step",
			zap.Int("step_id", step.ID),
			zap.String("goal", step.Goal),
			zap.Int("step_index", state.StepIndex))

		result := c.runner.ExecuteStep(ctx, step)
		state.Results = append(state.Results, result)
		c.recordStepResult(step, result, 0)

		for _, sub := range c.runner.RunOptionalSubsteps(ctx, step) {
			// Substep outcomes are journaled for audit but never count
			// toward the run verdict and never trigger a replan.
			c.recordStepResult(sub.Step, sub.Result, step.ID)
		}

		if !result.Success && step.Required {
			if state.ReplansUsed >= c.cfg.MaxReplans {
				state.State = StateAborted
				c.finalize(&summary, state, false)
				return summary, &ReplanBudgetExhaustedError{ReplansUsed: state.ReplansUsed, FailedStep: result}
			}
			state.State = StateReplanning
			state.ReplansUsed++
			feedback := buildFeedback(step, result)
			c.logger.Warn("Required step failed, replanning",
				zap.Int("step_id", step.ID),
				zap.Int("replans_used", state.ReplansUsed))

			revised, err := c.planner.Replan(ctx, task, feedback)
			if err != nil {
				state.State = StateAborted
				c.finalize(&summary, state, false)
				return summary, fmt.Errorf("replan failed: %w", err)
			}
			summary.Tokens.Add(revised.Usage)
			c.journal.Record(journal.EventReplan, replanPayload{
				Feedback:  feedback,
				RawOutput: revised.RawOutput,
				Plan:      revised.Plan,
			})

			// The revised plan covers the remaining work wholesale; no
			// splicing against the old step list.
			steps = revised.Plan.Steps
			state.StepIndex = 0
			state.State = StateRunning
			continue
		}

		if result.Success && step.StopIfTrue {
			c.logger.Info("Stop condition reached", zap.Int("step_id", step.ID))
			break
		}
		state.StepIndex++
	}

	state.State = StateDone
	c.finalize(&summary, state, true)
	return summary, nil
}

func (c *Controller) recordStepResult(step schemas.Step, result schemas.StepResult, parentID int) {
	c.journal.Record(journal.EventStepResult, stepResultPayload{
		Step:      step,
		Success:   result.Success,
		Note:      result.Note,
		URL:       result.URL,
		StartedAt: result.StartedAt,
		EndedAt:   result.EndedAt,
		DurationS: result.Duration().Seconds(),
		ParentID:  parentID,
	})
}

func (c *Controller) finalize(summary *schemas.RunSummary, state *RunState, success bool) {
	summary.Success = success
	summary.EndedAt = time.Now()
	summary.Steps = state.Results
	summary.ReplansUsed = state.ReplansUsed
	summary.Tokens.Add(c.runner.Usage())
	summary.ComputeMetrics()
	if err := c.journal.WriteSummary(*summary); err != nil {
		c.logger.Warn("Failed to write run summary", zap.Error(err))
	}
	c.logger.Info("Run finished",
		zap.String("state", string(state.State)),
		zap.Bool("success", success),
		zap.Int("steps", len(summary.Steps)),
		zap.Int("replans_used", summary.ReplansUsed))
}

// buildFeedback renders the structured failure block fed back to the planning
// oracle on a replan.
func buildFeedback(step schemas.Step, result schemas.StepResult) string {
	feedback := fmt.Sprintf("Step failed: id=%d, goal=%s\nURL: %s\nNote: %s\n",
		step.ID, step.Goal, result.URL, result.Note)
	if len(step.Verify) > 0 {
		feedback += "Assertions:\n"
		for _, spec := range step.Verify {
			feedback += "- " + spec.String() + "\n"
		}
	}
	return feedback
}
