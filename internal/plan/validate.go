// internal/plan/validate.go
package plan

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/xkilldash9x/pilot-cli/internal/predicate"
)

var allowedActions = map[string]bool{
	"NAVIGATE":        true,
	"CLICK":           true,
	"TYPE_AND_SUBMIT": true,
}

var allowedStepKeys = map[string]bool{
	"id":                true,
	"goal":              true,
	"action":            true,
	"target":            true,
	"intent":            true,
	"input":             true,
	"verify":            true,
	"required":          true,
	"stop_if_true":      true,
	"optional_substeps": true,
}

// Validate statically checks a normalized plan against the schema and returns
// every violation found. An empty slice means the plan is valid.
//
// The check is exhaustive on purpose: the whole error list is fed back to the
// planning oracle as one correction prompt, so stopping at the first defect
// would cost an extra round trip per defect.
func Validate(plan RawPlan) []string {
	var errors []string

	if plan == nil {
		return []string{"plan: must be an object"}
	}
	if _, ok := plan["task"].(string); !ok {
		errors = append(errors, "plan.task must be a string")
	}
	if notes, present := plan["notes"]; present && !isStringList(notes) {
		errors = append(errors, "plan.notes must be a list of strings")
	}

	steps, ok := plan["steps"].([]any)
	if !ok || len(steps) == 0 {
		errors = append(errors, "plan.steps must be a non-empty list")
		return errors
	}

	expectedID := 1
	for i, raw := range steps {
		path := fmt.Sprintf("plan.steps[%d]", i)
		step, ok := raw.(map[string]any)
		if !ok {
			errors = append(errors, path+" must be an object")
			continue
		}
		errors = append(errors, unknownKeyErrors(step, path)...)

		if id, ok := asInt(step["id"]); !ok {
			errors = append(errors, path+".id must be int")
		} else {
			if id != expectedID {
				errors = append(errors, fmt.Sprintf("%s.id must be contiguous starting at 1 (expected=%d)", path, expectedID))
			}
			expectedID++
		}

		errors = append(errors, validateStepBody(step, path)...)

		if truthy(step["required"]) && emptyVerify(step) {
			errors = append(errors, path+".verify is required when step.required is true")
		}

		if subsRaw, present := step["optional_substeps"]; present {
			subs, ok := subsRaw.([]any)
			if !ok {
				errors = append(errors, path+".optional_substeps must be a list")
				continue
			}
			errors = append(errors, validateSubsteps(subs, path)...)
		}
	}
	return errors
}

// validateStepBody checks the fields shared by steps and substeps: goal,
// action, flags, and the verify predicate tree.
func validateStepBody(step map[string]any, path string) []string {
	var errors []string

	if _, ok := step["goal"].(string); !ok {
		errors = append(errors, path+".goal must be string")
	}
	if action, ok := step["action"].(string); !ok {
		errors = append(errors, path+".action must be string")
	} else if !allowedActions[strings.ToUpper(action)] {
		errors = append(errors, path+".action must be one of [CLICK NAVIGATE TYPE_AND_SUBMIT]")
	}
	if v, present := step["required"]; present {
		if _, ok := v.(bool); !ok {
			errors = append(errors, path+".required must be bool")
		}
	}
	if v, present := step["stop_if_true"]; present {
		if _, ok := v.(bool); !ok {
			errors = append(errors, path+".stop_if_true must be bool")
		}
	}
	if verifyRaw, present := step["verify"]; present {
		verify, ok := verifyRaw.([]any)
		if !ok {
			errors = append(errors, path+".verify must be a list")
		} else {
			for j, v := range verify {
				errors = append(errors, validatePredicateSpec(v, fmt.Sprintf("%s.verify[%d]", path, j))...)
			}
		}
	}
	return errors
}

// validateSubsteps applies the step rules to optional substeps. Substep ids
// are optional as a group: either none carry one, or they start at 1 and
// strictly increase.
func validateSubsteps(subs []any, parentPath string) []string {
	var errors []string

	expectedID := 0 // 0 until the first id is seen
	sawID := false
	for k, raw := range subs {
		path := fmt.Sprintf("%s.optional_substeps[%d]", parentPath, k)
		sub, ok := raw.(map[string]any)
		if !ok {
			errors = append(errors, path+" must be an object")
			continue
		}
		errors = append(errors, unknownKeyErrors(sub, path)...)

		if idRaw, present := sub["id"]; present {
			if id, ok := asInt(idRaw); !ok {
				errors = append(errors, path+".id must be int when provided")
			} else {
				if !sawID {
					sawID = true
					expectedID = 1
					if id != 1 {
						errors = append(errors, fmt.Sprintf("%s.id must start at 1 (got=%d)", path, id))
					}
				}
				if id != expectedID {
					errors = append(errors, fmt.Sprintf("%s.id must be contiguous (expected=%d)", path, expectedID))
				}
				expectedID++
			}
		} else if sawID {
			errors = append(errors, path+".id required once any optional_substeps have ids")
		}

		errors = append(errors, validateStepBody(sub, path)...)

		if truthy(sub["required"]) && emptyVerify(sub) {
			errors = append(errors, path+".verify is required when step.required is true")
		}
	}
	return errors
}

func validatePredicateSpec(raw any, path string) []string {
	var errors []string

	spec, ok := raw.(map[string]any)
	if !ok {
		return []string{path + ": predicate spec must be object"}
	}
	name, ok := spec["predicate"].(string)
	if !ok {
		return []string{path + ": missing or invalid 'predicate'"}
	}
	args, _ := spec["args"].([]any)

	switch name {
	case "url_contains", "url_matches", "exists", "not_exists":
		if len(args) != 1 {
			errors = append(errors, fmt.Sprintf("%s: '%s' expects args: [string]", path, name))
			break
		}
		arg, ok := args[0].(string)
		if !ok {
			errors = append(errors, fmt.Sprintf("%s: '%s' expects args: [string]", path, name))
			break
		}
		switch name {
		case "url_contains":
			if arg == "" {
				errors = append(errors, path+": 'url_contains' needle must be non-empty")
			}
		case "url_matches":
			if _, err := regexp.Compile(arg); err != nil {
				errors = append(errors, fmt.Sprintf("%s: 'url_matches' pattern does not compile: %v", path, err))
			}
		case "exists", "not_exists":
			if _, err := predicate.ParseSelector(arg); err != nil {
				errors = append(errors, fmt.Sprintf("%s: %v", path, err))
			}
		}

	case "element_count":
		if len(args) < 1 {
			errors = append(errors, path+": 'element_count' expects args: [selector, min?, max?]")
			break
		}
		selector, ok := args[0].(string)
		if !ok {
			errors = append(errors, path+": 'element_count' expects args: [selector, min?, max?]")
			break
		}
		if _, err := predicate.ParseSelector(selector); err != nil {
			errors = append(errors, fmt.Sprintf("%s: %v", path, err))
		}
		for i := 1; i < len(args) && i <= 2; i++ {
			if _, ok := asInt(args[i]); !ok {
				errors = append(errors, fmt.Sprintf("%s: 'element_count' bound args[%d] must be int", path, i))
			}
		}

	case "any_of", "all_of":
		if len(args) == 0 {
			errors = append(errors, fmt.Sprintf("%s: '%s' expects args: [predicate_spec, ...]", path, name))
			break
		}
		for i, sub := range args {
			errors = append(errors, validatePredicateSpec(sub, fmt.Sprintf("%s.args[%d]", path, i))...)
		}

	default:
		errors = append(errors, fmt.Sprintf("%s: unsupported predicate '%s'", path, name))
	}
	return errors
}

func unknownKeyErrors(step map[string]any, path string) []string {
	var extra []string
	for key := range step {
		if !allowedStepKeys[key] {
			extra = append(extra, key)
		}
	}
	if len(extra) == 0 {
		return nil
	}
	sort.Strings(extra)
	return []string{fmt.Sprintf("%s has unsupported keys: %v", path, extra)}
}

func isStringList(v any) bool {
	list, ok := v.([]any)
	if !ok {
		return false
	}
	return allStrings(list)
}

// asInt accepts both native ints and the float64 form encoding/json produces,
// as long as the value is integral.
func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case float64:
		if n == float64(int(n)) {
			return int(n), true
		}
	}
	return 0, false
}

func truthy(v any) bool {
	b, ok := v.(bool)
	return ok && b
}

func emptyVerify(step map[string]any) bool {
	verify, ok := step["verify"].([]any)
	return !ok || len(verify) == 0
}
