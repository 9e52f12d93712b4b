// Package executor runs individual plan steps against an action backend,
// consulting the executor oracle for click targets and falling back to the
// vision oracle when the text oracle cannot resolve one.
package executor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/pilot-cli/api/schemas"
	"github.com/xkilldash9x/pilot-cli/internal/config"
	"github.com/xkilldash9x/pilot-cli/internal/journal"
	"github.com/xkilldash9x/pilot-cli/internal/predicate"
)

const (
	clickResponseMaxTokens = 24

	// Element caps for the compact snapshot fed to the oracle. Result pages
	// get a larger window so the first real product link is never clipped.
	snapshotLimitDefault = 60
	snapshotLimitResults = 160

	// The search input sometimes surfaces under a different role than the
	// plan asked for; the recheck window is deliberately short.
	altRoleTimeout  = 3 * time.Second
	altRoleInterval = 300 * time.Millisecond

	substepGateInterval = 400 * time.Millisecond
)

// drawerSelectors gate optional substeps: any one of these appearing in the
// observation means the post-action overlay is up.
var drawerSelectors = []predicate.Selector{
	{TextSub: "Add to Your Order"},
	{TextSub: "No thanks"},
	{TextSub: "Add protection"},
}

// visionSelectPayload is the journal record written whenever the vision
// oracle picks a click target.
type visionSelectPayload struct {
	Step           schemas.Step `json:"step"`
	Reason         string       `json:"reason"`
	VisionResponse string       `json:"vision_response"`
	SelectedID     int          `json:"selected_id"`
}

// Executor executes single steps. It never returns an error for step-level
// failures; backend and oracle problems are folded into a failed StepResult
// so the controller can decide whether to replan.
type Executor struct {
	backend schemas.ActionBackend
	oracle  schemas.LLMClient
	vision  schemas.VisionLLMClient // nil when no vision model is configured
	journal schemas.Journal
	cfg     config.RunConfig
	logger  *zap.Logger

	usage schemas.TokenUsage
}

func New(backend schemas.ActionBackend, oracle schemas.LLMClient, vision schemas.VisionLLMClient, jrnl schemas.Journal, cfg config.RunConfig, logger *zap.Logger) *Executor {
	return &Executor{
		backend: backend,
		oracle:  oracle,
		vision:  vision,
		journal: jrnl,
		cfg:     cfg,
		logger:  logger.Named("executor"),
	}
}

// Usage returns the oracle token usage accumulated across executed steps.
func (e *Executor) Usage() schemas.TokenUsage { return e.usage }

// ExecuteStep dispatches on the step action and returns a populated result.
func (e *Executor) ExecuteStep(ctx context.Context, step schemas.Step) schemas.StepResult {
	result := schemas.StepResult{ID: step.ID, Goal: step.Goal, StartedAt: time.Now()}
	log := e.logger.With(zap.Int("step_id", step.ID), zap.String("action", string(step.Action)))
	log.Info("Executing step", zap.String("goal", step.Goal))

	var ok bool
	var note, url string
	switch step.Action {
	case schemas.ActionNavigate:
		ok, note, url = e.executeNavigate(ctx, step)
	case schemas.ActionTypeAndSubmit:
		ok, note, url = e.executeTypeAndSubmit(ctx, step)
	case schemas.ActionClick:
		ok, note, url = e.executeClick(ctx, step)
	default:
		ok, note = false, fmt.Sprintf("unsupported_action:%s", step.Action)
	}

	result.Success = ok
	result.Note = note
	result.URL = url
	result.EndedAt = time.Now()
	log.Info("Step finished",
		zap.Bool("success", result.Success),
		zap.String("note", result.Note),
		zap.Duration("duration", result.Duration()))
	return result
}

func (e *Executor) executeNavigate(ctx context.Context, step schemas.Step) (bool, string, string) {
	if err := e.backend.Navigate(ctx, step.Target); err != nil {
		e.logger.Warn("Navigation failed", zap.String("target", step.Target), zap.Error(err))
		return false, "navigate_failed", ""
	}
	obs, err := e.backend.Snapshot(ctx)
	if err != nil {
		return false, "snapshot_missing", ""
	}
	ok, obs := e.applyVerifications(ctx, step, obs)
	return ok, "navigated", obs.URL
}

func (e *Executor) executeTypeAndSubmit(ctx context.Context, step schemas.Step) (bool, string, string) {
	// Best-effort focus: ask the oracle which element is the search input
	// and click it first. Many pages already have it focused, so a missing
	// or unparseable answer is not a failure.
	if obs, err := e.backend.Snapshot(ctx); err == nil {
		focusGoal := "Click the search input box (role=searchbox or role=textbox) before typing."
		sys, user := buildExecutorPrompt(focusGoal, "search_box", obs.Compact(snapshotLimitDefault))
		if id, found := e.askClickID(ctx, e.oracle, sys, user); found {
			if err := e.backend.Click(ctx, id); err != nil {
				e.logger.Debug("Pre-type focus click failed", zap.Int("element_id", id), zap.Error(err))
			}
		}
	}

	if err := e.backend.TypeText(ctx, step.Input); err != nil {
		e.logger.Warn("Typing failed", zap.Error(err))
		return false, "type_failed", ""
	}

	obs, err := e.backend.Snapshot(ctx)
	if err != nil {
		return false, "snapshot_missing", ""
	}
	if !IsResultsURL(obs.URL, step.Input) {
		e.logger.Warn("Could not verify search results page", zap.String("url", obs.URL))
		return false, "search_results_not_verified", obs.URL
	}
	ok, obs := e.applyVerifications(ctx, step, obs)
	return ok, "typed_and_submitted", obs.URL
}

func (e *Executor) executeClick(ctx context.Context, step schemas.Step) (bool, string, string) {
	snapLimit := snapshotLimitDefault
	var obs schemas.Observation
	var err error

	if firstResultIntent(step.Intent) {
		snapLimit = snapshotLimitResults
		obs, err = e.awaitProductLinks(ctx)
		if err != nil {
			return false, "product_links_not_found", obs.URL
		}
	} else {
		obs, err = e.backend.Snapshot(ctx)
		if err != nil {
			return false, "snapshot_missing", ""
		}
	}

	compact := obs.Compact(snapLimit)
	sys, user := buildExecutorPrompt(step.Goal, step.Intent, compact)
	clickID, found := e.askClickID(ctx, e.oracle, sys, user)
	if !found {
		clickID, found = e.visionSelect(ctx, step, compact, "executor_missing_click_id")
		if !found {
			return false, "llm_click_id_missing", obs.URL
		}
	}

	if err := e.backend.Click(ctx, clickID); err != nil {
		e.logger.Warn("Click failed", zap.Int("element_id", clickID), zap.Error(err))
		return false, "click_failed", obs.URL
	}

	after, err := e.backend.Snapshot(ctx)
	if err != nil {
		return false, "snapshot_missing", ""
	}
	ok, after := e.applyVerifications(ctx, step, after)

	if !ok && step.Required && strings.EqualFold(step.Intent, "search_box") {
		// Some pages report the search input as searchbox or combobox
		// instead of textbox; recheck before escalating to vision.
		if found, fresh := e.awaitAnyRole(ctx, []string{"searchbox", "textbox", "combobox"}, after); found {
			return true, "search_box_detected_alt", fresh.URL
		}
	}

	if !ok && step.Required {
		if overrideID, found := e.visionSelect(ctx, step, after.Compact(snapLimit), "verification_failed"); found {
			if overrideID != clickID {
				if err := e.backend.Click(ctx, overrideID); err != nil {
					e.logger.Warn("Vision override click failed", zap.Int("element_id", overrideID), zap.Error(err))
					return false, "clicked", after.URL
				}
			}
			fresh, err := e.backend.Snapshot(ctx)
			if err != nil {
				return false, "snapshot_missing", after.URL
			}
			ok, fresh = e.applyVerifications(ctx, step, fresh)
			if ok {
				return true, "vision_override_pass", fresh.URL
			}
			after = fresh
		}
	}

	return ok, "clicked", after.URL
}

// askClickID issues one oracle call and parses its CLICK(<id>) answer.
func (e *Executor) askClickID(ctx context.Context, oracle schemas.LLMClient, system, user string) (int, bool) {
	resp, err := oracle.Generate(ctx, schemas.GenerationRequest{
		SystemPrompt: system,
		UserPrompt:   user,
		Options:      schemas.GenerationOptions{Temperature: 0, MaxOutputTokens: clickResponseMaxTokens},
	})
	if err != nil {
		e.logger.Warn("Executor oracle call failed", zap.Error(err))
		return 0, false
	}
	e.usage.Add(resp.Usage)
	return ParseClickID(resp.Content)
}

// visionSelect asks the vision oracle to pick an element from the compact
// snapshot given a screenshot. Each failure case gets at most one call.
func (e *Executor) visionSelect(ctx context.Context, step schemas.Step, compact, reason string) (int, bool) {
	if e.vision == nil {
		return 0, false
	}
	png, err := e.backend.Screenshot(ctx)
	if err != nil {
		e.logger.Warn("Screenshot for vision fallback failed", zap.Error(err))
		return 0, false
	}
	sys, user := buildVisionSelectPrompt(step.Goal, compact, reason)
	resp, err := e.vision.GenerateWithImage(ctx, schemas.GenerationRequest{
		SystemPrompt: sys,
		UserPrompt:   user,
		Options:      schemas.GenerationOptions{Temperature: 0, MaxOutputTokens: clickResponseMaxTokens},
	}, png)
	if err != nil {
		e.logger.Warn("Vision oracle call failed", zap.String("reason", reason), zap.Error(err))
		return 0, false
	}
	e.usage.Add(resp.Usage)
	id, found := ParseClickID(resp.Content)
	if !found {
		e.logger.Warn("Vision oracle returned no usable id", zap.String("response", resp.Content))
		return 0, false
	}
	e.journal.Record(journal.EventVisionSelect, visionSelectPayload{
		Step:           step,
		Reason:         reason,
		VisionResponse: strings.TrimSpace(resp.Content),
		SelectedID:     id,
	})
	e.logger.Info("Vision oracle selected element", zap.Int("element_id", id), zap.String("reason", reason))
	return id, true
}

// awaitProductLinks polls until the observation contains at least one product
// detail link, guarding against clicking into a page that has not hydrated.
func (e *Executor) awaitProductLinks(ctx context.Context) (schemas.Observation, error) {
	deadline := time.Now().Add(e.cfg.HydrationTimeout)
	var obs schemas.Observation
	for {
		fresh, err := e.backend.Snapshot(ctx)
		if err == nil {
			obs = fresh
			if hasProductLinks(obs) {
				return obs, nil
			}
		}
		if time.Now().After(deadline) {
			return obs, fmt.Errorf("no product links after %s", e.cfg.HydrationTimeout)
		}
		if !sleepCtx(ctx, e.cfg.HydrationInterval) {
			return obs, ctx.Err()
		}
	}
}

func hasProductLinks(obs schemas.Observation) bool {
	for _, el := range obs.Elements {
		if strings.Contains(el.Href, "/dp/") || strings.Contains(el.Href, "/gp/product/") {
			return true
		}
	}
	return false
}

// awaitAnyRole polls briefly for an element with one of the given roles.
func (e *Executor) awaitAnyRole(ctx context.Context, roles []string, obs schemas.Observation) (bool, schemas.Observation) {
	deadline := time.Now().Add(altRoleTimeout)
	for {
		for _, role := range roles {
			if (predicate.Selector{Role: role}).Count(obs) > 0 {
				return true, obs
			}
		}
		if time.Now().After(deadline) {
			return false, obs
		}
		if !sleepCtx(ctx, altRoleInterval) {
			return false, obs
		}
		if fresh, err := e.backend.Snapshot(ctx); err == nil {
			obs = fresh
		}
	}
}

// applyVerifications evaluates the step's verify list against the given
// observation. Required steps get a bounded poll per predicate that
// re-snapshots until it holds or the budget runs out; non-required steps get
// a single evaluation whose outcome is recorded but never fails the step.
// The returned observation is the freshest one taken during polling.
func (e *Executor) applyVerifications(ctx context.Context, step schemas.Step, obs schemas.Observation) (bool, schemas.Observation) {
	if len(step.Verify) == 0 {
		return true, obs
	}
	okAll := true
	for i, spec := range step.Verify {
		if step.Required {
			var ok bool
			ok, obs = e.eventually(ctx, spec, obs)
			if !ok {
				e.logger.Warn("Required verification failed",
					zap.Int("step_id", step.ID),
					zap.Int("verify_index", i),
					zap.String("predicate", spec.String()))
			}
			okAll = okAll && ok
			continue
		}
		if !predicate.Evaluate(spec, obs) {
			e.logger.Warn("Verification predicate failed (non-blocking)",
				zap.Int("step_id", step.ID),
				zap.Int("verify_index", i),
				zap.String("predicate", spec.String()))
		}
	}
	return okAll, obs
}

// eventually re-evaluates a predicate under the configured verify budget,
// taking a fresh snapshot between attempts up to the snapshot cap.
func (e *Executor) eventually(ctx context.Context, spec schemas.PredicateSpec, obs schemas.Observation) (bool, schemas.Observation) {
	deadline := time.Now().Add(e.cfg.VerifyTimeout)
	snapshots := 0
	for {
		if predicate.Evaluate(spec, obs) {
			return true, obs
		}
		if time.Now().After(deadline) || snapshots >= e.cfg.VerifySnapshotCap {
			return false, obs
		}
		if !sleepCtx(ctx, e.cfg.VerifyInterval) {
			return false, obs
		}
		snapshots++
		if fresh, err := e.backend.Snapshot(ctx); err == nil {
			obs = fresh
		}
	}
}

// RunOptionalSubsteps executes a step's attached substeps when the drawer
// gate becomes visible within the substep window. A gate that never appears
// is silently skipped; substep failures are returned but are not failures of
// the parent step.
func (e *Executor) RunOptionalSubsteps(ctx context.Context, step schemas.Step) []schemas.SubstepOutcome {
	if len(step.OptionalSubsteps) == 0 {
		return nil
	}
	if !e.awaitDrawer(ctx) {
		e.logger.Debug("Optional substeps skipped, drawer never appeared", zap.Int("step_id", step.ID))
		return nil
	}
	outcomes := make([]schemas.SubstepOutcome, 0, len(step.OptionalSubsteps))
	for _, sub := range step.OptionalSubsteps {
		outcomes = append(outcomes, schemas.SubstepOutcome{Step: sub, Result: e.ExecuteStep(ctx, sub)})
	}
	return outcomes
}

func (e *Executor) awaitDrawer(ctx context.Context) bool {
	deadline := time.Now().Add(e.cfg.SubstepWindow)
	for {
		if obs, err := e.backend.Snapshot(ctx); err == nil {
			for _, sel := range drawerSelectors {
				if sel.Count(obs) > 0 {
					return true
				}
			}
		}
		if time.Now().After(deadline) {
			return false
		}
		if !sleepCtx(ctx, substepGateInterval) {
			return false
		}
	}
}

// sleepCtx sleeps for d unless the context is cancelled first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
