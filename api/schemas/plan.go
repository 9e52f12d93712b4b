package schemas

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Action defines the kind of browser action a step performs.
type Action string

const (
	ActionNavigate      Action = "NAVIGATE"
	ActionClick         Action = "CLICK"
	ActionTypeAndSubmit Action = "TYPE_AND_SUBMIT"
)

// AllowedActions lists every action the executor can dispatch.
var AllowedActions = []Action{ActionNavigate, ActionClick, ActionTypeAndSubmit}

// IsValid reports whether the action is one of the supported kinds.
func (a Action) IsValid() bool {
	switch a {
	case ActionNavigate, ActionClick, ActionTypeAndSubmit:
		return true
	}
	return false
}

// PredicateKind names a node type in the verification predicate DSL.
type PredicateKind string

const (
	PredURLContains  PredicateKind = "url_contains"
	PredURLMatches   PredicateKind = "url_matches"
	PredExists       PredicateKind = "exists"
	PredNotExists    PredicateKind = "not_exists"
	PredElementCount PredicateKind = "element_count"
	PredAnyOf        PredicateKind = "any_of"
	PredAllOf        PredicateKind = "all_of"
)

// PredicateSpec is one node of the recursive predicate tree attached to a
// step's verify list. Leaf predicates carry string/integer literals in Args;
// any_of/all_of carry nested PredicateSpec objects.
//
// Args stays json.RawMessage so that a spec survives a round trip through the
// audit journal byte for byte, and so the validator can report exact arity and
// type violations instead of whatever encoding/json coerced them into.
type PredicateSpec struct {
	Predicate PredicateKind     `json:"predicate"`
	Args      []json.RawMessage `json:"args"`
}

// StringArg decodes Args[i] as a string literal.
func (p PredicateSpec) StringArg(i int) (string, bool) {
	if i >= len(p.Args) {
		return "", false
	}
	var s string
	if err := json.Unmarshal(p.Args[i], &s); err != nil {
		return "", false
	}
	return s, true
}

// IntArg decodes Args[i] as an integer literal.
func (p PredicateSpec) IntArg(i int) (int, bool) {
	if i >= len(p.Args) {
		return 0, false
	}
	var n int
	if err := json.Unmarshal(p.Args[i], &n); err != nil {
		return 0, false
	}
	return n, true
}

// SpecArg decodes Args[i] as a nested predicate spec.
func (p PredicateSpec) SpecArg(i int) (PredicateSpec, bool) {
	if i >= len(p.Args) {
		return PredicateSpec{}, false
	}
	var sub PredicateSpec
	if err := json.Unmarshal(p.Args[i], &sub); err != nil {
		return PredicateSpec{}, false
	}
	return sub, true
}

// IsComposite reports whether the node nests further predicate specs.
func (p PredicateSpec) IsComposite() bool {
	return p.Predicate == PredAnyOf || p.Predicate == PredAllOf
}

// String renders the spec compactly for feedback prompts and log lines.
func (p PredicateSpec) String() string {
	parts := make([]string, 0, len(p.Args))
	for _, raw := range p.Args {
		parts = append(parts, string(raw))
	}
	return fmt.Sprintf("%s(%s)", p.Predicate, strings.Join(parts, ", "))
}

// Step is a single unit of action in a plan.
type Step struct {
	ID     int    `json:"id"`
	Goal   string `json:"goal"`
	Action Action `json:"action"`
	// Target is the destination URL; only meaningful for NAVIGATE.
	Target string `json:"target,omitempty"`
	// Intent is a semantic hint for CLICK steps (e.g. "first_product_link").
	Intent string `json:"intent,omitempty"`
	// Input is the literal text for TYPE_AND_SUBMIT.
	Input  string          `json:"input,omitempty"`
	Verify []PredicateSpec `json:"verify,omitempty"`
	// Required steps trigger replanning when verification fails.
	Required bool `json:"required,omitempty"`
	// StopIfTrue halts the run successfully after this step passes.
	StopIfTrue bool `json:"stop_if_true,omitempty"`
	// OptionalSubsteps run only when the drawer/overlay gate is observed.
	OptionalSubsteps []Step `json:"optional_substeps,omitempty"`
}

// Plan is a validated, ordered list of steps describing a multi-step task.
// A plan is never mutated in place: replanning replaces it wholesale.
type Plan struct {
	Task  string   `json:"task"`
	Notes []string `json:"notes,omitempty"`
	Steps []Step   `json:"steps"`
}
