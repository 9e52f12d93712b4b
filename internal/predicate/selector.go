// internal/predicate/selector.go
package predicate

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/xkilldash9x/pilot-cli/api/schemas"
)

// Selector is the parsed form of the small element selector grammar used by
// exists / not_exists / element_count:
//
//	role=textbox
//	text~'Add to Cart'
//	id=42
//	href~'/dp/'
//	role=link[href*='/dp/']
//
// The optional [href*='...'] suffix narrows a role match by href substring.
type Selector struct {
	Role    string
	HasID   bool
	ID      int
	TextSub string
	HrefSub string
}

// ParseSelector parses a selector expression. The validator calls this ahead
// of any execution so malformed selectors are plan defects, not runtime ones.
func ParseSelector(expr string) (Selector, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return Selector{}, fmt.Errorf("empty selector")
	}

	var sel Selector

	// Split off an attribute suffix like [href*='/dp/'] first.
	if open := strings.Index(expr, "["); open >= 0 {
		if !strings.HasSuffix(expr, "]") {
			return Selector{}, fmt.Errorf("selector %q: unterminated attribute suffix", expr)
		}
		attr := expr[open+1 : len(expr)-1]
		expr = expr[:open]
		sub, ok := strings.CutPrefix(attr, "href*=")
		if !ok {
			return Selector{}, fmt.Errorf("selector attribute %q: only href*='...' is supported", attr)
		}
		val, err := unquote(sub)
		if err != nil {
			return Selector{}, fmt.Errorf("selector attribute %q: %w", attr, err)
		}
		sel.HrefSub = val
	}

	switch {
	case strings.HasPrefix(expr, "role="):
		sel.Role = strings.TrimPrefix(expr, "role=")
		if sel.Role == "" {
			return Selector{}, fmt.Errorf("selector %q: empty role", expr)
		}
	case strings.HasPrefix(expr, "id="):
		id, err := strconv.Atoi(strings.TrimPrefix(expr, "id="))
		if err != nil {
			return Selector{}, fmt.Errorf("selector %q: id must be an integer", expr)
		}
		sel.HasID = true
		sel.ID = id
	case strings.HasPrefix(expr, "text~"):
		val, err := unquote(strings.TrimPrefix(expr, "text~"))
		if err != nil {
			return Selector{}, fmt.Errorf("selector %q: %w", expr, err)
		}
		sel.TextSub = val
	case strings.HasPrefix(expr, "href~"):
		val, err := unquote(strings.TrimPrefix(expr, "href~"))
		if err != nil {
			return Selector{}, fmt.Errorf("selector %q: %w", expr, err)
		}
		sel.HrefSub = val
	default:
		return Selector{}, fmt.Errorf("selector %q: expected role=, id=, text~'...' or href~'...'", expr)
	}

	return sel, nil
}

// Matches reports whether the element satisfies every populated term.
func (s Selector) Matches(el schemas.Element) bool {
	if s.Role != "" && !strings.EqualFold(el.Role, s.Role) {
		return false
	}
	if s.HasID && el.ID != s.ID {
		return false
	}
	if s.TextSub != "" && !strings.Contains(el.Text, s.TextSub) {
		return false
	}
	if s.HrefSub != "" && !strings.Contains(el.Href, s.HrefSub) {
		return false
	}
	return true
}

// Count returns how many elements of the observation match.
func (s Selector) Count(obs schemas.Observation) int {
	n := 0
	for _, el := range obs.Elements {
		if s.Matches(el) {
			n++
		}
	}
	return n
}

// unquote strips the single quotes around a text~/href~ operand.
func unquote(v string) (string, error) {
	if len(v) < 2 || !strings.HasPrefix(v, "'") || !strings.HasSuffix(v, "'") {
		return "", fmt.Errorf("operand %q must be single-quoted", v)
	}
	return v[1 : len(v)-1], nil
}
