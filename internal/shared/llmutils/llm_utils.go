package llmutils

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/bookrag/bookrag/internal/schema"
)

var reThink = regexp.MustCompile(`(?s)<think>.*?</think>`)

// hintKeys are the argument names shown in tool hints, in preference order.
var hintKeys = []string{"query", "keyword", "isbn"}

// Truncate shortens s to at most n runes, adding "..." if it was truncated.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// StripThink removes <think>…</think> blocks that some models embed.
func StripThink(s string) string {
	return strings.TrimSpace(reThink.ReplaceAllString(s, ""))
}

// ToolHint generates a short hint string for a list of tool calls, e.g. `keyword_search("Dune")`.
func ToolHint(tcs []schema.ToolCallResponse) string {
	parts := make([]string, 0, len(tcs))
	for _, tc := range tcs {
		var firstVal string
		for _, k := range hintKeys {
			if s, ok := tc.Arguments[k].(string); ok && s != "" {
				firstVal = s
				break
			}
		}
		if firstVal == "" {
			parts = append(parts, tc.Name)
			continue
		}
		parts = append(parts, fmt.Sprintf("%s(%q)", tc.Name, Truncate(firstVal, 40)))
	}
	return strings.Join(parts, ", ")
}
