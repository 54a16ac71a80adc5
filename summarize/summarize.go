// Package summarize dispatches transcripts to summarization backends and
// turns their free-form output into structured summaries.
//
// Long transcripts are split into fixed-size word chunks that are
// summarized independently and concatenated in chunk order. The combined
// result is therefore a per-chunk approximation, not a global summary of
// the whole transcript.
package summarize

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/GoCodeAlone/followup/provider"
	"github.com/GoCodeAlone/followup/task"
)

// Mode selects a summarization backend.
type Mode string

const (
	ModeAuto      Mode = "auto"
	ModeLLM       Mode = "llm"
	ModeLocal     Mode = "local"
	ModeHeuristic Mode = "heuristic"
)

// ShortInputWords is the hard floor below which no backend is invoked.
const ShortInputWords = 10

// SentinelSummary is returned for transcripts under ShortInputWords.
const SentinelSummary = "Transcript too short for summarization."

// DefaultChunkWords is the per-chunk word budget for long transcripts.
const DefaultChunkWords = 900

// Result is the structured outcome of summarizing one transcript.
// It is immutable once returned.
type Result struct {
	MeetingID   string         `json:"meeting_id"`
	Summary     []string       `json:"summary_text"`
	ActionItems []task.RawItem `json:"action_items"`
	Note        string         `json:"note,omitempty"` // diagnostic, e.g. backend degradation
	Backend     string         `json:"backend,omitempty"`
}

// Dispatcher routes transcripts to the first usable backend for a mode.
type Dispatcher struct {
	providers  []provider.Provider // fixed preference order for auto
	chunkWords int
	timeout    time.Duration
	log        *slog.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithChunkWords overrides the per-chunk word budget.
func WithChunkWords(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.chunkWords = n
		}
	}
}

// WithTimeout sets the per-backend-call timeout.
func WithTimeout(t time.Duration) Option {
	return func(d *Dispatcher) {
		if t > 0 {
			d.timeout = t
		}
	}
}

// NewDispatcher creates a Dispatcher over providers. Order fixes the
// auto-mode preference, so resolution is deterministic for identical
// configuration.
func NewDispatcher(logger *slog.Logger, providers []provider.Provider, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		providers:  providers,
		chunkWords: DefaultChunkWords,
		timeout:    60 * time.Second,
		log:        logger,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Resolve returns the backend for mode. Auto picks the first available
// provider in preference order; a named mode requires that provider to
// be configured.
func (d *Dispatcher) Resolve(mode Mode) (provider.Provider, error) {
	if mode == "" {
		mode = ModeAuto
	}
	if mode == ModeAuto {
		for _, p := range d.providers {
			if p.Available() {
				return p, nil
			}
		}
		return nil, fmt.Errorf("no summarization backend available")
	}
	name := modeProviderName(mode)
	for _, p := range d.providers {
		if p.Name() == name {
			if !p.Available() {
				return nil, fmt.Errorf("backend %q is not configured", name)
			}
			return p, nil
		}
	}
	return nil, fmt.Errorf("unknown summarization mode %q", mode)
}

func modeProviderName(mode Mode) string {
	switch mode {
	case ModeLLM:
		return "openai"
	case ModeLocal:
		return "local"
	case ModeHeuristic:
		return "heuristic"
	default:
		return string(mode)
	}
}

// Summarize produces a structured summary for one transcript. Inputs
// under ShortInputWords return the fixed sentinel without touching any
// backend, regardless of mode.
func (d *Dispatcher) Summarize(ctx context.Context, meetingID, transcript string, mode Mode) (*Result, error) {
	words := strings.Fields(transcript)
	if len(words) < ShortInputWords {
		return &Result{
			MeetingID:   meetingID,
			Summary:     []string{SentinelSummary},
			ActionItems: []task.RawItem{},
		}, nil
	}

	backend, err := d.Resolve(mode)
	if err != nil {
		return nil, err
	}

	chunks := chunkWords(words, d.chunkWords)
	d.log.Debug("summarizing transcript",
		"meeting_id", meetingID, "backend", backend.Name(), "chunks", len(chunks))

	result := &Result{MeetingID: meetingID, Backend: backend.Name()}
	var notes []string
	for i, chunk := range chunks {
		raw, err := d.generate(ctx, backend, buildPrompt(chunk))
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("summarize chunk %d/%d: %w", i+1, len(chunks), err)
			}
			notes = append(notes, fmt.Sprintf("chunk %d/%d: %v", i+1, len(chunks), err))
			continue
		}
		summary, items := parseDraft(raw)
		result.Summary = append(result.Summary, summary...)
		result.ActionItems = append(result.ActionItems, items...)
	}
	if len(result.Summary) == 0 && len(result.ActionItems) == 0 && len(notes) == len(chunks) {
		return nil, fmt.Errorf("summarize %s: all %d chunk(s) failed: %s",
			meetingID, len(chunks), notes[0])
	}
	result.Note = strings.Join(notes, "; ")
	if result.ActionItems == nil {
		result.ActionItems = []task.RawItem{}
	}
	return result, nil
}

func (d *Dispatcher) generate(ctx context.Context, backend provider.Provider, prompt string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	return backend.Generate(callCtx, prompt, provider.Limits{MaxTokens: 512})
}

// chunkWords groups words into chunks of at most size words, in order.
func chunkWords(words []string, size int) []string {
	if size <= 0 {
		size = DefaultChunkWords
	}
	var chunks []string
	for i := 0; i < len(words); i += size {
		end := min(i+size, len(words))
		chunks = append(chunks, strings.Join(words[i:end], " "))
	}
	return chunks
}

const promptTemplate = `You are an AI specialized in analyzing meeting transcripts.
Your task is to produce:
1. A clear and concise SUMMARY of the meeting.
2. A list of ACTION ITEMS with owners and deadlines if mentioned.

INSTRUCTIONS:
- Read the provided meeting transcript thoroughly.
- Do NOT invent information. Only extract what is explicitly or implicitly present.
- If some sections have no information, return an empty list.
- Keep summary short but complete (5-8 bullet points).
- Use simple, business-friendly language.
- DO NOT use placeholder text like 'point 1' or '<task>'. Fill with real meeting content.

RETURN THE OUTPUT IN THIS EXACT JSON FORMAT:
{
  "summary": ["point one", "point two"],
  "action_items": [ {"task": "", "owner": "", "deadline": ""} ]
}

TRANSCRIPT:
%s
`

func buildPrompt(chunk string) string {
	return fmt.Sprintf(promptTemplate, chunk)
}
