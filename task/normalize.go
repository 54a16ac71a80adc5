package task

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// RawItem is one action item as produced by a summarization backend:
// either a structured record with unnormalized keys or a plain line of
// text. Exactly one of Fields and Text is set.
type RawItem struct {
	Fields map[string]string `json:"fields,omitempty"`
	Text   string            `json:"text,omitempty"`
}

// Alias priority per canonical field. Models and trackers disagree on
// key names; first present non-empty alias wins.
var (
	titleAliases       = []string{"task", "title", "Summary", "summary", "description"}
	ownerAliases       = []string{"owner", "assignee", "Assignee"}
	dueAliases         = []string{"due", "due_date", "Due Date", "deadline"}
	descriptionAliases = []string{"description", "Description"}
)

// Normalize converts raw action items into canonical tasks for meetingID.
// Invalid records (no usable title) are dropped; the returned reasons
// slice carries one message per dropped record for the caller to log.
func Normalize(items []RawItem, meetingID string) (tasks []*Task, dropped []string) {
	for i, item := range items {
		var title, owner, due, description string
		if item.Fields != nil {
			title = firstAlias(item.Fields, titleAliases)
			owner = firstAlias(item.Fields, ownerAliases)
			due = firstAlias(item.Fields, dueAliases)
			description = firstAlias(item.Fields, descriptionAliases)
		} else {
			title = item.Text
			owner = ownerFromText(item.Text)
			due = dueFromText(item.Text)
		}

		title = CleanTitle(title)
		if title == "" {
			dropped = append(dropped, fmt.Sprintf("item %d: no title", i))
			continue
		}

		tasks = append(tasks, &Task{
			MeetingID:   meetingID,
			Title:       title,
			Owner:       strings.TrimSpace(owner),
			Due:         NormalizeDueDate(due),
			Description: strings.TrimSpace(description),
			Status:      StatusOpen,
		})
	}
	return tasks, dropped
}

func firstAlias(fields map[string]string, aliases []string) string {
	for _, k := range aliases {
		if v := strings.TrimSpace(fields[k]); v != "" && !strings.EqualFold(v, "none") {
			return v
		}
	}
	return ""
}

// ParseTrackerBlock parses line-oriented tracker-formatted text into raw
// items. "- Summary:" starts a new record, flushing any open one; leading
// lines before the first delimiter are dropped.
func ParseTrackerBlock(text string) []RawItem {
	var items []RawItem
	var current map[string]string

	flush := func() {
		if current != nil {
			items = append(items, RawItem{Fields: current})
			current = nil
		}
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "- Summary:"):
			flush()
			current = map[string]string{
				"Summary": strings.TrimSpace(strings.TrimPrefix(line, "- Summary:")),
			}
		case current == nil:
			// no open record to attach to
		case strings.HasPrefix(line, "- Description:"):
			current["Description"] = strings.TrimSpace(strings.TrimPrefix(line, "- Description:"))
		case strings.HasPrefix(line, "- Assignee:"):
			current["Assignee"] = strings.TrimSpace(strings.TrimPrefix(line, "- Assignee:"))
		case strings.HasPrefix(line, "- Due Date:"):
			current["Due Date"] = strings.TrimSpace(strings.TrimPrefix(line, "- Due Date:"))
		}
	}
	flush()
	return items
}

// fallbackKeywords mark sentences that likely describe follow-up work.
// Used only when a summarizer yielded no action items at all.
var fallbackKeywords = []string{
	"fix", "complete", "implement", "create", "update", "assign",
	"test", "review", "prepare", "set up", "ensure",
}

// FallbackItems derives candidate action items from free text by keyword
// matching over sentences. It never overrides a populated extraction; the
// caller invokes it only when normal extraction produced nothing.
func FallbackItems(text string) []RawItem {
	replaced := strings.ReplaceAll(text, "\n", ". ")
	var items []RawItem
	for _, part := range strings.Split(replaced, ".") {
		s := strings.TrimSpace(part)
		if s == "" {
			continue
		}
		lower := strings.ToLower(s)
		for _, k := range fallbackKeywords {
			if strings.Contains(lower, k) {
				items = append(items, RawItem{Text: s})
				break
			}
		}
	}
	return items
}

var ownerPattern = regexp.MustCompile(`(?i)\b(?:owner|assignee)\b[:,]?\s+([A-Za-z][A-Za-z'-]*)`)

// ownerFromText pulls an owner name out of a free-text action item, as
// in "fix the login bug, owner Alice".
func ownerFromText(text string) string {
	m := ownerPattern.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return m[1]
}

// deadlineKeywords introduce a due-date phrase in free text.
var deadlineKeywords = []string{"by", "before", "due", "deadline", "on", "until"}

// dueFromText scans a free-text action item for a date phrase following
// a deadline keyword, such as "by 14 Dec 2025". The longest parseable
// phrase after the keyword wins.
func dueFromText(text string) string {
	cleaned := strings.Map(func(r rune) rune {
		if r == ',' || r == '.' {
			return ' '
		}
		return r
	}, text)
	words := strings.Fields(cleaned)

	for i, w := range words {
		keyword := false
		for _, k := range deadlineKeywords {
			if strings.EqualFold(w, k) {
				keyword = true
				break
			}
		}
		if !keyword {
			continue
		}
		for length := 4; length >= 1; length-- {
			if i+1+length > len(words) {
				continue
			}
			candidate := strings.Join(words[i+1:i+1+length], " ")
			if normalized := NormalizeDueDate(candidate); normalized != "" {
				return normalized
			}
		}
	}
	return ""
}

// dueLayouts are the non-ISO date forms accepted from model output.
var dueLayouts = []string{
	"2 Jan 2006",
	"2 January 2006",
	"02/01/2006",
	"01/02/2006",
}

// NormalizeDueDate converts a free-form due date to YYYY-MM-DD. An
// ISO-prefixed value passes through unchanged (normalization is
// idempotent); unparseable values become "" rather than flowing through
// unvalidated.
func NormalizeDueDate(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if len(raw) >= 10 {
		if _, err := time.Parse("2006-01-02", raw[:10]); err == nil {
			return raw[:10]
		}
	}
	for _, layout := range dueLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return ""
}

// CleanTitle collapses newlines to spaces, trims, and truncates to the
// tracker's summary field limit.
func CleanTitle(title string) string {
	title = strings.ReplaceAll(title, "\r", " ")
	title = strings.ReplaceAll(title, "\n", " ")
	title = strings.Join(strings.Fields(title), " ")
	if len(title) > MaxTitleLen {
		title = title[:MaxTitleLen]
	}
	return title
}
