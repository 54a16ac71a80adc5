package summarize

import (
	"encoding/json"
	"strings"

	"github.com/GoCodeAlone/followup/task"
)

// draft mirrors the JSON shape the prompt asks backends for. summary may
// come back as a single string or a list; action items as strings or
// objects with loosely-named keys.
type draft struct {
	Summary     any   `json:"summary"`
	ActionItems []any `json:"action_items"`
}

// parseDraft turns raw backend output into summary lines and raw action
// items. The chain: last balanced JSON object, then bullet/numbered
// lines, then the whole raw text as the summary. Placeholder output from
// weakly-instructed models is filtered at every step.
func parseDraft(raw string) ([]string, []task.RawItem) {
	if jsonStr := extractLastJSON(raw); jsonStr != "" {
		var d draft
		if err := json.Unmarshal([]byte(jsonStr), &d); err == nil {
			summary := filterSummary(coerceStrings(d.Summary))
			items := filterItems(d.ActionItems)
			if len(summary) > 0 || len(items) > 0 {
				return summary, items
			}
		}
	}

	if lines := bulletLines(raw); len(lines) > 0 {
		return filterSummary(lines), nil
	}

	if s := strings.TrimSpace(raw); s != "" {
		return []string{s}, nil
	}
	return nil, nil
}

// extractLastJSON returns the last top-level brace-balanced JSON object
// in text, or "" if none closes. Depth counting skips braces inside
// string literals so nested and quoted braces don't break the scan.
func extractLastJSON(text string) string {
	depth := 0
	start := -1
	last := ""
	inString := false
	escaped := false

	for i, c := range text {
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			if depth > 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth > 0 {
				depth--
				if depth == 0 && start >= 0 {
					last = text[start : i+1]
					start = -1
				}
			}
		}
	}
	return last
}

// bulletLines collects lines that start with a bullet or number marker.
// Unmarked lines, trailing prose included, are skipped.
func bulletLines(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		l := strings.TrimSpace(line)
		if strings.HasPrefix(l, "-") || strings.HasPrefix(l, "•") || startsNumbered(l) {
			out = append(out, l)
		}
	}
	return out
}

func startsNumbered(s string) bool {
	if len(s) < 2 {
		return false
	}
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	return i > 0 && i < len(s) && (s[i] == '.' || s[i] == ')')
}

// coerceStrings accepts a string or a list of values and returns the
// string members.
func coerceStrings(v any) []string {
	switch t := v.(type) {
	case string:
		return []string{t}
	case []any:
		var out []string
		for _, e := range t {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// placeholderTokens are exact (lowercased) values models emit when they
// echo the prompt template instead of real content.
var placeholderTokens = map[string]struct{}{
	"": {}, "-": {},
	"point 1": {}, "point 2": {}, "point1": {}, "point2": {},
	"point one": {}, "point two": {},
	"<summary bullet 1>": {}, "<summary bullet 2>": {},
}

func isPlaceholder(s string) bool {
	t := strings.ToLower(strings.TrimSpace(s))
	if _, ok := placeholderTokens[t]; ok {
		return true
	}
	if strings.HasPrefix(t, "point ") || strings.HasPrefix(t, "<summary") {
		return true
	}
	return strings.Contains(t, "<") && strings.Contains(t, ">")
}

func filterSummary(lines []string) []string {
	var out []string
	for _, l := range lines {
		if !isPlaceholder(l) {
			out = append(out, l)
		}
	}
	return out
}

// filterItems converts raw action item values into task.RawItem records,
// discarding placeholder leakage. Object items are rejected whole if any
// value is empty or a template marker.
func filterItems(items []any) []task.RawItem {
	var out []task.RawItem
	for _, item := range items {
		switch t := item.(type) {
		case string:
			if !isPlaceholder(t) {
				out = append(out, task.RawItem{Text: t})
			}
		case map[string]any:
			fields := make(map[string]string, len(t))
			valid := true
			for k, v := range t {
				s, ok := v.(string)
				if !ok {
					continue
				}
				s = strings.TrimSpace(s)
				if s == "" || strings.HasPrefix(s, "<") {
					valid = false
					break
				}
				fields[k] = s
			}
			if valid && len(fields) > 0 {
				out = append(out, task.RawItem{Fields: fields})
			}
		}
	}
	return out
}
