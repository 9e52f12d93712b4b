package schemas

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestCompactRendersElementLines(t *testing.T) {
	obs := Observation{
		URL: "https://www.example.com/s?k=usb+c+hub",
		Elements: []Element{
			{ID: 1, Role: "link", Text: "USB C Hub\n7-in-1", Href: "/dp/B08C9HZ5YT"},
			{ID: 2, Role: "button", Text: "Add to Cart"},
			{ID: 3, Role: "link", Text: "Deals", Href: "/deals"},
		},
	}

	out := obs.Compact(2)
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")

	assert.Len(t, lines, 2, "maxElements bounds the rendered window")
	assert.Equal(t, "1|link|USB C Hub 7-in-1|/dp/B08C9HZ5YT", lines[0])
	assert.Equal(t, "2|button|Add to Cart|", lines[1])

	assert.Len(t, strings.Split(strings.TrimRight(obs.Compact(0), "\n"), "\n"), 3,
		"zero means no element limit")
}

func TestClipDoesNotSplitRunes(t *testing.T) {
	// 120 bytes of ASCII followed by a multibyte rune straddling the cut.
	long := strings.Repeat("a", 118) + "héllo"
	clipped := clip(long, 120)

	assert.True(t, utf8.ValidString(clipped))
	assert.True(t, strings.HasSuffix(clipped, "…"))
	assert.LessOrEqual(t, len(clipped)-len("…"), 120)

	// Purely multibyte text stays valid too.
	kana := strings.Repeat("ワイヤレスイヤホン", 20)
	assert.True(t, utf8.ValidString(clip(kana, 120)))

	assert.Equal(t, "short", clip("short", 120), "under the limit passes through")
}
