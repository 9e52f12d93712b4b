package schemas

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Element is one interactive element surfaced by a snapshot.
type Element struct {
	ID   int    `json:"id"`
	Role string `json:"role"`
	Text string `json:"text"`
	Href string `json:"href,omitempty"`
}

// Observation is a point-in-time view of the page: the current URL plus the
// visible interactive elements. It is produced fresh on every Snapshot call
// and never cached across steps.
type Observation struct {
	URL      string    `json:"url"`
	Elements []Element `json:"elements"`
}

// FindElement returns the element with the given snapshot id.
func (o Observation) FindElement(id int) (Element, bool) {
	for _, el := range o.Elements {
		if el.ID == id {
			return el, true
		}
	}
	return Element{}, false
}

// Compact renders the element list in the ID|role|text|href form fed to the
// executor oracle. Text is clipped so a noisy page cannot blow up the prompt.
func (o Observation) Compact(maxElements int) string {
	var b strings.Builder
	n := len(o.Elements)
	if maxElements > 0 && n > maxElements {
		n = maxElements
	}
	for i := 0; i < n; i++ {
		el := o.Elements[i]
		fmt.Fprintf(&b, "%d|%s|%s|%s\n", el.ID, el.Role, clip(el.Text, 120), clip(el.Href, 200))
	}
	return b.String()
}

// clip truncates s to at most max bytes without splitting a rune, so clipped
// non-ASCII text stays valid UTF-8 in prompts.
func clip(s string, max int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "…"
}
