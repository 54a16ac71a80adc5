package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// HeuristicProvider is a rule-based fallback that needs no model or network.
// It emits a JSON document in the same shape the prompted models are asked
// for: leading sentences as the summary, keyword-matched sentences as
// action items.
type HeuristicProvider struct{}

// NewHeuristicProvider creates the rule-based provider.
func NewHeuristicProvider() *HeuristicProvider { return &HeuristicProvider{} }

func (p *HeuristicProvider) Name() string { return "heuristic" }

// Available always reports true; this backend is the last resort.
func (p *HeuristicProvider) Available() bool { return true }

// actionKeywords mark sentences that likely describe follow-up work.
var actionKeywords = []string{
	"fix", "complete", "implement", "create", "update", "assign",
	"test", "review", "prepare", "set up", "ensure",
}

// Generate extracts the transcript section of the prompt and produces a
// JSON summary from sentence heuristics. The ctx and limits parameters are
// ignored; no I/O happens here.
func (p *HeuristicProvider) Generate(_ context.Context, prompt string, _ Limits) (string, error) {
	text := prompt
	// Prompts place the transcript after a TRANSCRIPT: marker; raw text
	// passed directly is used as-is.
	if i := strings.LastIndex(prompt, "TRANSCRIPT:"); i >= 0 {
		text = prompt[i+len("TRANSCRIPT:"):]
	}

	sentences := splitSentences(text)

	var summary, actions []string
	for _, s := range sentences {
		lower := strings.ToLower(s)
		matched := false
		for _, k := range actionKeywords {
			if strings.Contains(lower, k) {
				actions = append(actions, s)
				matched = true
				break
			}
		}
		if !matched && len(summary) < 5 {
			summary = append(summary, s)
		}
	}
	if len(summary) == 0 && len(sentences) > 0 {
		summary = sentences[:1]
	}

	draft := struct {
		Summary     []string `json:"summary"`
		ActionItems []string `json:"action_items"`
	}{Summary: summary, ActionItems: actions}
	if draft.Summary == nil {
		draft.Summary = []string{}
	}
	if draft.ActionItems == nil {
		draft.ActionItems = []string{}
	}
	out, err := json.Marshal(draft)
	if err != nil {
		return "", fmt.Errorf("heuristic: marshal draft: %w", err)
	}
	return string(out), nil
}

// splitSentences breaks text on sentence punctuation, trimming empties.
func splitSentences(text string) []string {
	replaced := strings.NewReplacer("\n", ". ", "!", ".", "?", ".").Replace(text)
	var out []string
	for _, part := range strings.Split(replaced, ".") {
		if s := strings.TrimSpace(part); s != "" {
			out = append(out, s)
		}
	}
	return out
}

