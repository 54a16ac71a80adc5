package summarize

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/GoCodeAlone/followup/provider"
	"github.com/GoCodeAlone/followup/provider/mock"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// unavailable is a provider that is configured out.
type unavailable struct{ name string }

func (u unavailable) Name() string    { return u.name }
func (u unavailable) Available() bool { return false }
func (u unavailable) Generate(context.Context, string, provider.Limits) (string, error) {
	return "", errors.New("not configured")
}

func TestSummarize_ShortInputSentinel(t *testing.T) {
	m := mock.New()
	d := NewDispatcher(testLogger(), []provider.Provider{m})

	for _, mode := range []Mode{ModeAuto, ModeLLM, ModeLocal, ModeHeuristic} {
		res, err := d.Summarize(context.Background(), "m-1", "too short to bother", mode)
		if err != nil {
			t.Fatalf("mode %s: %v", mode, err)
		}
		if len(res.Summary) != 1 || res.Summary[0] != SentinelSummary {
			t.Errorf("mode %s: summary = %v", mode, res.Summary)
		}
		if len(res.ActionItems) != 0 {
			t.Errorf("mode %s: action items = %v", mode, res.ActionItems)
		}
	}
	if m.Calls() != 0 {
		t.Errorf("backend invoked %d times for short input, want 0", m.Calls())
	}
}

func TestResolve_AutoPrefersFirstAvailable(t *testing.T) {
	m := mock.New()
	d := NewDispatcher(testLogger(), []provider.Provider{
		unavailable{name: "openai"},
		m,
		provider.NewHeuristicProvider(),
	})
	p, err := d.Resolve(ModeAuto)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if p.Name() != "mock" {
		t.Errorf("resolved %q, want first available", p.Name())
	}
}

func TestResolve_NamedModeRequiresConfigured(t *testing.T) {
	d := NewDispatcher(testLogger(), []provider.Provider{unavailable{name: "openai"}})
	if _, err := d.Resolve(ModeLLM); err == nil {
		t.Fatal("expected error resolving unconfigured backend")
	}
	if _, err := d.Resolve(Mode("bogus")); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}

func TestSummarize_ChunksLongInput(t *testing.T) {
	m := mock.New(`{"summary": ["chunk summary"], "action_items": []}`)
	d := NewDispatcher(testLogger(), []provider.Provider{m}, WithChunkWords(50))

	transcript := strings.Repeat("word ", 120) // 3 chunks at 50 words
	res, err := d.Summarize(context.Background(), "m-2", transcript, ModeAuto)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if m.Calls() != 3 {
		t.Errorf("backend called %d times, want 3", m.Calls())
	}
	if len(res.Summary) != 3 {
		t.Errorf("summary = %v, want one line per chunk", res.Summary)
	}
}

func TestSummarize_PartialChunkFailureDegrades(t *testing.T) {
	m := mock.New(`{"summary": ["good chunk"], "action_items": []}`)
	d := NewDispatcher(testLogger(), []provider.Provider{m}, WithChunkWords(1000))

	transcript := strings.Repeat("word ", 20)
	res, err := d.Summarize(context.Background(), "m-3", transcript, ModeAuto)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if res.Backend != "mock" {
		t.Errorf("backend = %q", res.Backend)
	}
}

func TestSummarize_AllChunksFailing(t *testing.T) {
	m := mock.NewFailing(errors.New("backend down"))
	d := NewDispatcher(testLogger(), []provider.Provider{m})
	if _, err := d.Summarize(context.Background(), "m-4", strings.Repeat("word ", 20), ModeAuto); err == nil {
		t.Fatal("expected error when every chunk fails")
	}
}

func TestChunkWords(t *testing.T) {
	words := strings.Fields("a b c d e")
	chunks := chunkWords(words, 2)
	want := []string{"a b", "c d", "e"}
	if len(chunks) != len(want) {
		t.Fatalf("chunks = %v", chunks)
	}
	for i := range want {
		if chunks[i] != want[i] {
			t.Errorf("chunk %d = %q, want %q", i, chunks[i], want[i])
		}
	}
}
