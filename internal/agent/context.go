package agent

import (
	"fmt"
	"strings"
	"time"

	"github.com/bookrag/bookrag/internal/filter"
	"github.com/bookrag/bookrag/internal/schema"
)

const basePrompt = `# bookrag

You are a helpful bookstore assistant. You can search the store's catalog with tools, but only use them when the question needs catalog data.
If the user asks a general question or just says hello, answer directly without using tools.

## Tools
- context_search: recommendations by theme, mood, genre or description.
- keyword_search: exact titles, authors or keywords.
- detail_lookup: details for one book by ISBN-13.

When you present books, keep the prices, popularity badges and availability exactly as the tools reported them.
Entries marked [indexed] come from a catalog snapshot and may be out of date; entries marked [live] are current.`

// ContextBuilder assembles the system prompt and message list for one request.
type ContextBuilder struct {
	historyWindow int
	now           func() time.Time
}

// NewContextBuilder creates a ContextBuilder that keeps at most historyWindow
// prior turns; zero keeps all.
func NewContextBuilder(historyWindow int) *ContextBuilder {
	return &ContextBuilder{historyWindow: historyWindow, now: time.Now}
}

// BuildSystemPrompt returns the base prompt plus a summary of active filters.
func (cb *ContextBuilder) BuildSystemPrompt(filters map[string]any) string {
	parts := []string{
		basePrompt,
		"## Current Time\n" + cb.now().Format("2006-01-02 15:04 (Monday)"),
	}
	if summary := summarizeFilters(filter.Parse(filters)); summary != "" {
		parts = append(parts, "## Active Filters\nThe user set these filters. They are applied to catalog searches automatically.\n"+summary)
	}
	return strings.Join(parts, "\n\n")
}

// BuildMessages builds the complete message list for the first LLM call:
// system prompt, windowed history and the current query.
func (cb *ContextBuilder) BuildMessages(history []schema.Turn, query string, filters map[string]any) schema.Messages {
	messages := schema.NewMessages()
	messages.AddSystem(cb.BuildSystemPrompt(filters))

	for _, turn := range cb.window(history) {
		switch turn.Role {
		case "user":
			messages.AddUser(turn.Content)
		case "assistant":
			content := turn.Content
			messages.AddAssistant(&content, nil, nil)
		}
	}

	messages.AddUser(query)
	return messages
}

// window drops empty and non-conversational turns, then keeps the newest ones.
func (cb *ContextBuilder) window(history []schema.Turn) []schema.Turn {
	kept := make([]schema.Turn, 0, len(history))
	for _, t := range history {
		if (t.Role == "user" || t.Role == "assistant") && strings.TrimSpace(t.Content) != "" {
			kept = append(kept, t)
		}
	}
	if cb.historyWindow > 0 && len(kept) > cb.historyWindow {
		kept = kept[len(kept)-cb.historyWindow:]
	}
	return kept
}

func summarizeFilters(f filter.Filters) string {
	if f.Empty() {
		return ""
	}
	var lines []string
	if f.MaxPrice > 0 {
		lines = append(lines, fmt.Sprintf("- Maximum price: %d won", f.MaxPrice))
	}
	if f.CategoryName != "" {
		lines = append(lines, "- Category: "+f.CategoryName)
	}
	if f.MinRating > 0 {
		lines = append(lines, fmt.Sprintf("- Minimum rating: %.1f", f.MinRating))
	}
	if f.MinPublicationDate > 0 {
		d := f.MinPublicationDate
		lines = append(lines, fmt.Sprintf("- Published on or after: %04d-%02d-%02d", d/10000, d/100%100, d%100))
	}
	return strings.Join(lines, "\n")
}
