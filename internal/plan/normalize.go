// internal/plan/normalize.go
package plan

import "strings"

// RawPlan is the loosely-typed form of a plan between JSON extraction and
// validation. Normalization and validation both operate on it; only a plan
// that validates cleanly is decoded into the typed schema.
type RawPlan = map[string]any

// Normalize rewrites predictable oracle deviations in place and returns the
// plan. It is a best-effort repair pass, not a substitute for validation:
//
//   - a step's "url" key becomes "target"
//   - action strings are upper-cased; "TYPE" becomes "TYPE_AND_SUBMIT"
//   - url_contains with several string args becomes an any_of of
//     single-arg url_contains nodes
//   - url_matches whose pattern is a bare product-path fragment becomes
//     url_contains on that fragment
//   - a target holding a placeholder product URL is dropped and the step is
//     rewritten to CLICK with a first_product_link intent
func Normalize(plan RawPlan) RawPlan {
	steps, ok := plan["steps"].([]any)
	if !ok {
		return plan
	}
	for _, raw := range steps {
		step, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		normalizeStep(step)
	}
	return plan
}

func normalizeStep(step map[string]any) {
	if url, ok := step["url"]; ok {
		if _, has := step["target"]; !has {
			step["target"] = url
		}
		delete(step, "url")
	}

	if action, ok := step["action"].(string); ok {
		upper := strings.ToUpper(strings.TrimSpace(action))
		if upper == "TYPE" {
			upper = "TYPE_AND_SUBMIT"
		}
		step["action"] = upper
	}

	if verify, ok := step["verify"].([]any); ok {
		for _, raw := range verify {
			if spec, ok := raw.(map[string]any); ok {
				normalizePredicate(spec)
			}
		}
	}

	if target, ok := step["target"].(string); ok && strings.Contains(target, "product-url") {
		// Placeholder product URLs cannot be navigated; click the first
		// result instead.
		delete(step, "target")
		step["action"] = "CLICK"
		if intent, _ := step["intent"].(string); intent == "" {
			step["intent"] = "first_product_link"
		}
		if goal, _ := step["goal"].(string); goal == "" {
			step["goal"] = "Click the FIRST product link in search results"
		}
		step["verify"] = []any{
			map[string]any{"predicate": "url_contains", "args": []any{"/dp/"}},
		}
	}

	if subs, ok := step["optional_substeps"].([]any); ok {
		for _, raw := range subs {
			if sub, ok := raw.(map[string]any); ok {
				normalizeStep(sub)
			}
		}
	}
}

func normalizePredicate(spec map[string]any) {
	name, _ := spec["predicate"].(string)
	args, ok := spec["args"].([]any)
	if !ok {
		return
	}

	switch name {
	case "url_contains":
		// Oracles conflate "any of these substrings" with multi-arg calls.
		if len(args) > 1 && allStrings(args) {
			children := make([]any, 0, len(args))
			for _, a := range args {
				children = append(children, map[string]any{
					"predicate": "url_contains",
					"args":      []any{a},
				})
			}
			spec["predicate"] = "any_of"
			spec["args"] = children
		}

	case "url_matches":
		// A product-path fragment is substring intent, not a regex.
		if len(args) > 0 {
			if pattern, ok := args[0].(string); ok &&
				strings.Contains(pattern, "/dp/") && !strings.HasPrefix(pattern, "http") {
				spec["predicate"] = "url_contains"
				spec["args"] = []any{"/dp/"}
			}
		}

	case "any_of", "all_of":
		for _, raw := range args {
			if sub, ok := raw.(map[string]any); ok {
				normalizePredicate(sub)
			}
		}
	}
}

func allStrings(values []any) bool {
	for _, v := range values {
		if _, ok := v.(string); !ok {
			return false
		}
	}
	return true
}
