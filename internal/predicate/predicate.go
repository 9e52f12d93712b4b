// internal/predicate/predicate.go
//
// Pure evaluation of verification predicate trees against an Observation.
// Evaluation never snapshots the page itself; the caller decides when to
// observe and feeds the result in.
package predicate

import (
	"regexp"
	"strings"

	"github.com/xkilldash9x/pilot-cli/api/schemas"
)

// evalHook, when non-nil, is invoked once per evaluated node. Tests use it to
// assert that composite predicates short-circuit.
var evalHook func(schemas.PredicateSpec)

// Evaluate reports whether the predicate holds for the observation.
//
// Arity and type violations are the validator's job; a spec that slips
// through malformed simply evaluates to false rather than erroring mid-run.
// any_of stops at the first true child, all_of at the first false one.
func Evaluate(spec schemas.PredicateSpec, obs schemas.Observation) bool {
	if evalHook != nil {
		evalHook(spec)
	}

	switch spec.Predicate {
	case schemas.PredURLContains:
		// Case-sensitive substring match by contract.
		needle, ok := spec.StringArg(0)
		return ok && needle != "" && strings.Contains(obs.URL, needle)

	case schemas.PredURLMatches:
		pattern, ok := spec.StringArg(0)
		if !ok {
			return false
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return false
		}
		return re.MatchString(obs.URL)

	case schemas.PredExists:
		return countSelector(spec, obs) >= 1

	case schemas.PredNotExists:
		sel, ok := selectorArg(spec)
		if !ok {
			return false
		}
		return sel.Count(obs) == 0

	case schemas.PredElementCount:
		sel, ok := selectorArg(spec)
		if !ok {
			return false
		}
		n := sel.Count(obs)
		min := 0
		if v, ok := spec.IntArg(1); ok {
			min = v
		}
		if n < min {
			return false
		}
		if max, ok := spec.IntArg(2); ok && n > max {
			return false
		}
		return true

	case schemas.PredAnyOf:
		for i := range spec.Args {
			child, ok := spec.SpecArg(i)
			if ok && Evaluate(child, obs) {
				return true
			}
		}
		return false

	case schemas.PredAllOf:
		if len(spec.Args) == 0 {
			return false
		}
		for i := range spec.Args {
			child, ok := spec.SpecArg(i)
			if !ok || !Evaluate(child, obs) {
				return false
			}
		}
		return true
	}

	return false
}

func selectorArg(spec schemas.PredicateSpec) (Selector, bool) {
	expr, ok := spec.StringArg(0)
	if !ok {
		return Selector{}, false
	}
	sel, err := ParseSelector(expr)
	if err != nil {
		return Selector{}, false
	}
	return sel, true
}

func countSelector(spec schemas.PredicateSpec, obs schemas.Observation) int {
	sel, ok := selectorArg(spec)
	if !ok {
		return 0
	}
	return sel.Count(obs)
}

