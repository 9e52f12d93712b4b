// internal/plan/extract.go
//
// Raw oracle text is rarely clean JSON: models wrap the object in markdown
// fences or surround it with prose. Extraction is deliberately forgiving;
// schema enforcement happens later in the validator.
package plan

import (
	"fmt"
	"regexp"
	"strings"
)

// fencedJSONRegex extracts a JSON object wrapped in a markdown code block.
// \x60 is a backtick; Go raw strings cannot contain them.
var fencedJSONRegex = regexp.MustCompile("(?is)\x60\x60\x60(?:json)?\\s*({[\\s\\S]+?})\\s*\x60\x60\x60")

// ExtractJSON pulls the first plausible JSON object out of raw oracle text.
// A fenced block wins when present; otherwise the span from the first '{' to
// the last '}' is taken. The returned string is not guaranteed to parse.
func ExtractJSON(text string) (string, error) {
	text = strings.TrimSpace(text)

	if matches := fencedJSONRegex.FindStringSubmatch(text); len(matches) > 1 {
		return matches[1], nil
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end <= start {
		return "", fmt.Errorf("no JSON object found in planner output")
	}
	return text[start : end+1], nil
}
