package executor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseClickID(t *testing.T) {
	testCases := []struct {
		name   string
		input  string
		want   int
		wantOK bool
	}{
		{"canonical", "CLICK(12)", 12, true},
		{"lowercase", "click(3)", 3, true},
		{"whitespace", "CLICK ( 42 )", 42, true},
		{"embedded in prose", "Sure, I would go with CLICK(7) here.", 7, true},
		{"first match wins", "CLICK(1) or maybe CLICK(2)", 1, true},
		{"no action", "I am not sure which element to pick.", 0, false},
		{"negative id", "CLICK(-4)", 0, false},
		{"empty", "", 0, false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			id, ok := ParseClickID(tc.input)
			assert.Equal(t, tc.wantOK, ok)
			assert.Equal(t, tc.want, id)
		})
	}
}

func TestIsResultsURL(t *testing.T) {
	testCases := []struct {
		name  string
		url   string
		query string
		want  bool
	}{
		{"keyword in url", "https://www.example.com/s?k=usb+c+hub", "usb c hub", true},
		{"results path without keyword", "https://www.example.com/s?field-keywords=other", "usb c hub", true},
		{"keyword on odd path", "https://www.example.com/search?k=usb+c+hub", "usb c hub", true},
		{"product detail page", "https://www.example.com/dp/B08C9HZ5YT?k=usb+c+hub", "usb c hub", false},
		{"gp product page", "https://www.example.com/gp/product/B0C2M8RR4P", "usb c hub", false},
		{"homepage", "https://www.example.com/", "usb c hub", false},
		{"homepage without slash", "https://www.example.com", "usb c hub", false},
		{"unrelated page", "https://www.example.com/help/contact", "usb c hub", false},
		{"empty url", "", "usb c hub", false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsResultsURL(tc.url, tc.query))
		})
	}
}

func TestBuildExecutorPrompt(t *testing.T) {
	t.Run("plain goal", func(t *testing.T) {
		system, user := buildExecutorPrompt("Open the deals page", "", "1|link|Deals|/deals\n")
		assert.Equal(t, executorSystemPrompt, system)
		assert.Contains(t, user, "Goal: Open the deals page")
		assert.Contains(t, user, "1|link|Deals|/deals")
		assert.NotContains(t, user, "Intent:")
		assert.NotContains(t, user, "CRITICAL RULES")
	})

	t.Run("first result intent adds guard rails", func(t *testing.T) {
		_, user := buildExecutorPrompt("Click the first product", "first_product_link", "")
		assert.Contains(t, user, "Intent: first_product_link")
		assert.Contains(t, user, "CRITICAL RULES FOR SEARCH RESULTS")
		assert.Contains(t, user, "'/dp/' or '/gp/product/'")
	})

	t.Run("first search result synonym", func(t *testing.T) {
		_, user := buildExecutorPrompt("Click it", "First_Search_Result", "")
		assert.Contains(t, user, "CRITICAL RULES FOR SEARCH RESULTS")
	})
}

func TestBuildVisionSelectPrompt(t *testing.T) {
	system, user := buildVisionSelectPrompt("Click the first product", "2|link|Anker|/dp/B08C9HZ5YT\n", "verification_failed")
	assert.Equal(t, visionSystemPrompt, system)
	assert.Contains(t, user, "Reason: verification_failed")
	assert.Contains(t, user, "2|link|Anker|/dp/B08C9HZ5YT")
	assert.Contains(t, user, "Return ONLY: CLICK(<id>)")
}
