// Package compaction implements the Context Compactor (C6): building the
// final-answer context from a run's tool results within a fixed token
// budget, choosing between full results and model-generated summaries.
package compaction

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// TokenBudget is the fixed budget the final-answer context is built
// against; a run never varies this by model or context window.
const TokenBudget = 8000

// CharsPerToken is the character-to-token approximation: tokens(text) ≈
// len(text)/4.
const CharsPerToken = 4

// NoDataMessage is returned when every tool result failed.
const NoDataMessage = "No data was successfully gathered."

const errorResultPrefix = "Error:"

// EstimateTokens approximates the token count of text.
func EstimateTokens(text string) int {
	return (len(text) + CharsPerToken - 1) / CharsPerToken
}

// Entry is one tool result available for inclusion in the final context.
// It mirrors agent.FullContextEntry's fields without importing the agent
// package, the same local-seam pattern the tool-context store uses for
// its selector.
type Entry struct {
	Tool        string
	Description string
	Result      string
	Summary     string
}

// Selector is the minimal seam the selection step (§4.6 step 4) needs from
// a model capability: a structured call that returns the indices of
// entries worth including in full.
type Selector interface {
	GenerateStructured(system, prompt string, schema json.RawMessage, out any) error
}

// FilterErrors drops entries whose Result starts with "Error:", per §4.6
// step 1.
func FilterErrors(entries []Entry) []Entry {
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if strings.HasPrefix(e.Result, errorResultPrefix) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// BuildFinalContext assembles the final-answer context for query from
// entries, following §4.6: drop failed results, return the full set
// verbatim if it fits TokenBudget, otherwise ask selector which entries
// merit full inclusion and render the rest as summaries. Any failure
// selecting (nil selector, transport error, malformed response) falls back
// to an all-summaries rendering rather than losing the run.
func BuildFinalContext(entries []Entry, query string, selector Selector) string {
	entries = FilterErrors(entries)
	if len(entries) == 0 {
		return NoDataMessage
	}

	total := 0
	for _, e := range entries {
		total += EstimateTokens(e.Result)
	}
	if total <= TokenBudget {
		return renderFull(entries)
	}

	full, ok := selectFullEntries(entries, query, selector)
	if !ok {
		return renderSummaries(entries)
	}
	return renderSplit(entries, full)
}

func renderFull(entries []Entry) string {
	var b strings.Builder
	for i, e := range entries {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "### %s\n%s", e.Description, prettyPrint(e.Result))
	}
	return b.String()
}

func renderSummaries(entries []Entry) string {
	var b strings.Builder
	for i, e := range entries {
		if i > 0 {
			b.WriteString("\n\n")
		}
		summary := e.Summary
		if summary == "" {
			summary = e.Result
		}
		fmt.Fprintf(&b, "### %s\n%s", e.Description, summary)
	}
	return b.String()
}

// renderSplit builds the "## Full Data" / "## Summary Data" two-section
// context: entries in full (as long as the running token count stays
// within budget) take the first section, everything else is summarized
// in the second, per §4.6 step 4.
func renderSplit(entries []Entry, full map[int]bool) string {
	var fullSection, summarySection strings.Builder
	budget := TokenBudget
	used := 0

	for i, e := range entries {
		if full[i] && used+EstimateTokens(e.Result) <= budget {
			if fullSection.Len() > 0 {
				fullSection.WriteString("\n\n")
			}
			fmt.Fprintf(&fullSection, "### %s\n%s", e.Description, prettyPrint(e.Result))
			used += EstimateTokens(e.Result)
			continue
		}
		summary := e.Summary
		if summary == "" {
			summary = e.Result
		}
		if summarySection.Len() > 0 {
			summarySection.WriteString("\n\n")
		}
		fmt.Fprintf(&summarySection, "### %s\n%s", e.Description, summary)
	}

	var b strings.Builder
	if fullSection.Len() > 0 {
		b.WriteString("## Full Data\n\n")
		b.WriteString(fullSection.String())
	}
	if summarySection.Len() > 0 {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString("## Summary Data\n\n")
		b.WriteString(summarySection.String())
	}
	return b.String()
}

var selectionSchema = json.RawMessage(`{
	"type": "object",
	"properties": {"indices": {"type": "array", "items": {"type": "integer"}}},
	"required": ["indices"]
}`)

// selectFullEntries asks selector which entries (by index into entries)
// should be included in full rather than as a summary. Returns ok=false on
// any failure so the caller can fall back to an all-summaries rendering.
func selectFullEntries(entries []Entry, query string, selector Selector) (map[int]bool, bool) {
	if selector == nil {
		return nil, false
	}

	type candidate struct {
		Index     int    `json:"index"`
		Tool      string `json:"tool_name"`
		Summary   string `json:"summary"`
		TokenCost int    `json:"token_cost"`
	}
	candidates := make([]candidate, len(entries))
	for i, e := range entries {
		summary := e.Summary
		if summary == "" {
			summary = e.Result
		}
		candidates[i] = candidate{Index: i, Tool: e.Tool, Summary: summary, TokenCost: EstimateTokens(e.Result)}
	}
	listing, err := json.Marshal(candidates)
	if err != nil {
		return nil, false
	}
	prompt := fmt.Sprintf(
		"Query: %s\n\nThe full results below exceed the token budget. Candidates:\n%s\n\nReturn the indices of the entries most relevant to the query that should be included in full.",
		query, string(listing),
	)

	var out struct {
		Indices []int `json:"indices"`
	}
	if err := selector.GenerateStructured(
		"You select which tool results are worth including in full for a final answer.",
		prompt, selectionSchema, &out,
	); err != nil {
		return nil, false
	}

	full := make(map[int]bool, len(out.Indices))
	for _, idx := range out.Indices {
		if idx >= 0 && idx < len(entries) {
			full[idx] = true
		}
	}
	return full, true
}

func prettyPrint(result string) string {
	var v any
	if err := json.Unmarshal([]byte(result), &v); err != nil {
		return result
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return result
	}
	return strings.TrimRight(buf.String(), "\n")
}
