// internal/plan/errors.go
package plan

import (
	"fmt"
	"strings"
)

// ParseError means the oracle never produced text that yields a JSON object
// within the attempt budget. It carries the last raw output so an operator
// can see what the oracle actually said.
type ParseError struct {
	Attempts  int
	RawOutput string
	Err       error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("planner failed to return JSON after %d attempts: %v\nraw output:\n%s", e.Attempts, e.Err, e.RawOutput)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ValidationError means the oracle's JSON parsed but kept violating the plan
// schema across every attempt. Errors holds the full validator output of the
// final attempt.
type ValidationError struct {
	Attempts  int
	RawOutput string
	Errors    []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("planner output failed schema validation after %d attempts:\n%s\nraw output:\n%s",
		e.Attempts, FormatErrorList(e.Errors), e.RawOutput)
}

// FormatErrorList renders validator errors as the bullet list fed back to the
// oracle in correction prompts.
func FormatErrorList(errors []string) string {
	if len(errors) == 0 {
		return ""
	}
	return "- " + strings.Join(errors, "\n- ")
}
