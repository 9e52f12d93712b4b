// File: internal/predicate/selector_test.go
package predicate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/pilot-cli/api/schemas"
)

func TestParseSelector(t *testing.T) {
	tests := []struct {
		name string
		expr string
		want Selector
	}{
		{"role", "role=textbox", Selector{Role: "textbox"}},
		{"id", "id=42", Selector{HasID: true, ID: 42}},
		{"text substring", "text~'Add to Cart'", Selector{TextSub: "Add to Cart"}},
		{"href substring", "href~'/dp/'", Selector{HrefSub: "/dp/"}},
		{"role with href suffix", "role=link[href*='/dp/']", Selector{Role: "link", HrefSub: "/dp/"}},
		{"surrounding whitespace", "  role=button  ", Selector{Role: "button"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			sel, err := ParseSelector(tc.expr)
			require.NoError(t, err)
			assert.Equal(t, tc.want, sel)
		})
	}
}

func TestParseSelectorRejectsMalformed(t *testing.T) {
	exprs := []string{
		"",
		"button",              // no term prefix
		"class=foo",           // unsupported term
		"role=",               // empty role
		"id=abc",              // non-integer id
		"text~Add to Cart",    // operand not quoted
		"href~'/dp/",          // unterminated quote
		"role=link[href*='x'", // unterminated suffix
		"role=link[id*='x']",  // only href*= is allowed in the suffix
	}

	for _, expr := range exprs {
		t.Run(expr, func(t *testing.T) {
			_, err := ParseSelector(expr)
			assert.Error(t, err)
		})
	}
}

func TestSelectorMatches(t *testing.T) {
	link := schemas.Element{ID: 7, Role: "link", Text: "Anker USB C Hub", Href: "/dp/B08C9HZ5YT"}

	assert.True(t, Selector{Role: "link"}.Matches(link))
	assert.True(t, Selector{Role: "LINK"}.Matches(link), "role comparison is case-insensitive")
	assert.True(t, Selector{HasID: true, ID: 7}.Matches(link))
	assert.False(t, Selector{HasID: true, ID: 8}.Matches(link))
	assert.True(t, Selector{TextSub: "USB C"}.Matches(link))
	assert.False(t, Selector{TextSub: "usb c"}.Matches(link), "text comparison is case-sensitive")
	assert.True(t, Selector{Role: "link", HrefSub: "/dp/"}.Matches(link))
	assert.False(t, Selector{Role: "button", HrefSub: "/dp/"}.Matches(link))
}

func TestSelectorCount(t *testing.T) {
	obs := schemas.Observation{Elements: []schemas.Element{
		{ID: 1, Role: "link", Href: "/dp/A"},
		{ID: 2, Role: "link", Href: "/deals"},
		{ID: 3, Role: "link", Href: "/dp/B"},
		{ID: 4, Role: "button"},
	}}

	assert.Equal(t, 3, Selector{Role: "link"}.Count(obs))
	assert.Equal(t, 2, Selector{Role: "link", HrefSub: "/dp/"}.Count(obs))
	assert.Equal(t, 0, Selector{Role: "dialog"}.Count(obs))
}
