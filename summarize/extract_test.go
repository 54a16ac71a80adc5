package summarize

import (
	"strings"
	"testing"
)

func TestExtractLastJSON_ReturnsLastObject(t *testing.T) {
	text := `Here is an example: {"summary": ["draft"]} and the real answer:
{"summary": ["final point"], "action_items": [{"task": "ship it", "owner": "Bob", "deadline": "2026-01-01"}]}`

	got := extractLastJSON(text)
	if !strings.Contains(got, "final point") {
		t.Errorf("extractLastJSON returned %q, want the last object", got)
	}
	if strings.Contains(got, "draft") {
		t.Error("extractLastJSON returned an earlier object")
	}
	// brace-count invariance
	if strings.Count(got, "{") != strings.Count(got, "}") {
		t.Errorf("unbalanced braces in %q", got)
	}
}

func TestExtractLastJSON_NestedBraces(t *testing.T) {
	text := `noise {"outer": {"inner": {"deep": 1}}} trailing`
	got := extractLastJSON(text)
	if got != `{"outer": {"inner": {"deep": 1}}}` {
		t.Errorf("got %q", got)
	}
}

func TestExtractLastJSON_BracesInsideStrings(t *testing.T) {
	text := `{"summary": ["uses { and } inside"], "action_items": []}`
	got := extractLastJSON(text)
	if got != text {
		t.Errorf("got %q, want the full object", got)
	}
}

func TestExtractLastJSON_NoObject(t *testing.T) {
	if got := extractLastJSON("no json here at all"); got != "" {
		t.Errorf("got %q, want empty", got)
	}
	if got := extractLastJSON(`{"unclosed": true`); got != "" {
		t.Errorf("got %q for unclosed object, want empty", got)
	}
}

func TestParseDraft_JSONPath(t *testing.T) {
	summary, items := parseDraft(`{"summary": ["we agreed on the plan"], "action_items": ["fix the login bug"]}`)
	if len(summary) != 1 || summary[0] != "we agreed on the plan" {
		t.Errorf("summary = %v", summary)
	}
	if len(items) != 1 || items[0].Text != "fix the login bug" {
		t.Errorf("items = %v", items)
	}
}

func TestParseDraft_SummaryAsSingleString(t *testing.T) {
	summary, _ := parseDraft(`{"summary": "one flat string", "action_items": []}`)
	if len(summary) != 1 || summary[0] != "one flat string" {
		t.Errorf("summary = %v", summary)
	}
}

func TestParseDraft_FiltersPlaceholders(t *testing.T) {
	raw := `{"summary": ["point 1", "real insight", "<summary bullet 2>"],
		"action_items": ["<task>", {"task": "", "owner": "x", "deadline": "y"}, {"task": "review the doc", "owner": "Ann", "deadline": "tomorrow"}]}`
	summary, items := parseDraft(raw)
	if len(summary) != 1 || summary[0] != "real insight" {
		t.Errorf("summary = %v", summary)
	}
	if len(items) != 1 {
		t.Fatalf("items = %v, want one surviving item", items)
	}
	if items[0].Fields["task"] != "review the doc" {
		t.Errorf("item = %v", items[0])
	}
}

func TestParseDraft_BulletFallback(t *testing.T) {
	raw := "The model rambled first.\n- first finding\n- second finding\n1. numbered item"
	summary, items := parseDraft(raw)
	if len(items) != 0 {
		t.Errorf("items = %v", items)
	}
	want := []string{"- first finding", "- second finding", "1. numbered item"}
	if len(summary) != len(want) {
		t.Fatalf("summary = %v, want %v", summary, want)
	}
	for i := range want {
		if summary[i] != want[i] {
			t.Errorf("summary[%d] = %q, want %q", i, summary[i], want[i])
		}
	}
}

func TestParseDraft_BulletFallbackSkipsUnmarkedLines(t *testing.T) {
	raw := "Preamble.\n- first finding\nAs an AI I hope this helps.\n- second finding\nLet me know if you need more."
	summary, _ := parseDraft(raw)
	want := []string{"- first finding", "- second finding"}
	if len(summary) != len(want) {
		t.Fatalf("summary = %v, want %v", summary, want)
	}
	for i := range want {
		if summary[i] != want[i] {
			t.Errorf("summary[%d] = %q, want %q", i, summary[i], want[i])
		}
	}
}

func TestParseDraft_RawFallback(t *testing.T) {
	summary, _ := parseDraft("just a blob of prose with no structure")
	if len(summary) != 1 || summary[0] != "just a blob of prose with no structure" {
		t.Errorf("summary = %v", summary)
	}
}
