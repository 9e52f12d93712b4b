package schemas

import "time"

// TokenUsage accumulates oracle token counts across a run.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Add folds another usage record into the receiver.
func (u *TokenUsage) Add(other TokenUsage) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
}

// StepResult records the outcome of one executed step. Verification timeouts
// land here as Success=false with a note; they are never surfaced as errors.
type StepResult struct {
	ID        int       `json:"id"`
	Goal      string    `json:"goal"`
	Success   bool      `json:"success"`
	Note      string    `json:"note"`
	URL       string    `json:"url"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
}

// Duration is the wall-clock time the step took.
func (r StepResult) Duration() time.Duration {
	return r.EndedAt.Sub(r.StartedAt)
}

// SubstepOutcome pairs an executed optional substep with its result. Substeps
// may carry no id, so the result alone is not enough to recover the step.
type SubstepOutcome struct {
	Step   Step       `json:"step"`
	Result StepResult `json:"result"`
}

// RunMetrics summarizes a finished run for the journal.
type RunMetrics struct {
	StepsTotal    int     `json:"steps_total"`
	StepsPassed   int     `json:"steps_passed"`
	StepsFailed   int     `json:"steps_failed"`
	TotalSeconds  float64 `json:"total_duration_s"`
	AvgStepSecond float64 `json:"avg_step_duration_s"`
	ReplansUsed   int     `json:"replans_used"`
}

// RunSummary is the final record written for a run.
type RunSummary struct {
	RunID       string       `json:"run_id"`
	Task        string       `json:"task"`
	Success     bool         `json:"success"`
	StartedAt   time.Time    `json:"started_at"`
	EndedAt     time.Time    `json:"ended_at"`
	Steps       []StepResult `json:"steps"`
	ReplansUsed int          `json:"replans_used"`
	Metrics     RunMetrics   `json:"metrics"`
	Tokens      TokenUsage   `json:"token_usage"`
}

// ComputeMetrics derives the metrics block from the recorded step results.
func (s *RunSummary) ComputeMetrics() {
	m := RunMetrics{StepsTotal: len(s.Steps), ReplansUsed: s.ReplansUsed}
	var total float64
	for _, r := range s.Steps {
		if r.Success {
			m.StepsPassed++
		} else {
			m.StepsFailed++
		}
		total += r.Duration().Seconds()
	}
	m.TotalSeconds = total
	if len(s.Steps) > 0 {
		m.AvgStepSecond = total / float64(len(s.Steps))
	}
	s.Metrics = m
}
