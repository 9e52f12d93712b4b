package executor

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// clickIDRegex matches the oracle's single-action response contract,
// tolerating whitespace and case drift ("click ( 12 )").
var clickIDRegex = regexp.MustCompile(`(?i)click\s*\(\s*(\d+)\s*\)`)

// ParseClickID extracts the element id from a CLICK(<id>) oracle response.
func ParseClickID(text string) (int, bool) {
	m := clickIDRegex.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	id, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return id, true
}

const (
	executorSystemPrompt = "You are a careful web agent. Output only CLICK(<id>)."
	visionSystemPrompt   = "You are a visual selector. Output only CLICK(<id>)."

	snapshotFormatLine = "SNAPSHOT FORMAT: ID|role|text|href"
)

// firstResultIntent reports whether the intent asks for the first item in a
// results list, which gets extra guard rails in the prompt and a hydration
// wait before snapshotting.
func firstResultIntent(intent string) bool {
	switch strings.ToLower(intent) {
	case "first_product_link", "first_search_result":
		return true
	}
	return false
}

func buildExecutorPrompt(goal, intent, compact string) (string, string) {
	var b strings.Builder
	b.WriteString("You are controlling a browser via element IDs.\n\n")
	b.WriteString("You must respond with exactly ONE action in this format:\n- CLICK(<id>)\n\n")
	fmt.Fprintf(&b, "Goal: %s\n", goal)
	if intent != "" {
		fmt.Fprintf(&b, "Intent: %s\n", intent)
	}
	if firstResultIntent(intent) {
		b.WriteString(
			"CRITICAL RULES FOR SEARCH RESULTS:\n" +
				"1) ONLY click product links whose href contains '/dp/' or '/gp/product/'.\n" +
				"2) Ignore menu items or top nav links.\n" +
				"3) If multiple matches, choose the FIRST product link in the main results list.\n\n")
	}
	b.WriteString(snapshotFormatLine + "\n\n")
	b.WriteString(compact)
	b.WriteString("\n")
	return executorSystemPrompt, b.String()
}

func buildVisionSelectPrompt(goal, compact, reason string) (string, string) {
	var b strings.Builder
	b.WriteString("Select the best element ID from the snapshot list based on the screenshot.\n")
	fmt.Fprintf(&b, "Goal: %s\n", goal)
	fmt.Fprintf(&b, "Reason: %s\n\n", reason)
	b.WriteString("Snapshot list (ID|role|text|href):\n")
	b.WriteString(compact)
	b.WriteString("\n\nReturn ONLY: CLICK(<id>)")
	return visionSystemPrompt, b.String()
}

// IsResultsURL reports whether url looks like a search results page for the
// typed query: the keyword appears in the URL or the path follows the results
// shape, and the page is neither an item detail page nor the site root.
func IsResultsURL(rawURL, query string) bool {
	current := strings.ToLower(rawURL)

	keyword := "k=" + strings.ReplaceAll(strings.ToLower(strings.TrimSpace(query)), " ", "+")
	keywordInURL := query != "" && strings.Contains(current, keyword)

	resultsPattern := strings.Contains(current, "/s?") ||
		strings.Contains(current, "/s/") ||
		strings.Contains(current, "s?k=") ||
		strings.HasSuffix(current, "/s")

	notDetailPage := !strings.Contains(current, "/dp/") && !strings.Contains(current, "/gp/product/")

	notHomepage := true
	if u, err := url.Parse(current); err == nil {
		notHomepage = !((u.Path == "" || u.Path == "/") && u.RawQuery == "")
	}

	return (keywordInURL || resultsPattern) && notDetailPage && notHomepage
}
