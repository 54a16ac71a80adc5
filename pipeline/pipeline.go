// Package pipeline sequences the meeting follow-up stages: ingest,
// preprocess, summarize, extract, tracker sync, and notification scan.
// A stage failure never aborts the run; it is recorded on the Result and
// downstream stages that depend on the failed output are skipped.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/GoCodeAlone/followup/events"
	"github.com/GoCodeAlone/followup/ingest"
	"github.com/GoCodeAlone/followup/jira"
	"github.com/GoCodeAlone/followup/notify"
	"github.com/GoCodeAlone/followup/registry"
	"github.com/GoCodeAlone/followup/summarize"
	"github.com/GoCodeAlone/followup/task"
)

// Stage names, in execution order.
const (
	StageIngest     = "ingest"
	StagePreprocess = "preprocess"
	StageSummarize  = "summarize"
	StageExtract    = "extract"
	StageSync       = "sync"
	StageNotify     = "notify"
)

// Request describes one pipeline run.
type Request struct {
	Query string `json:"query"`
	User  string `json:"user"`
	// Date restricts ingestion to one day (YYYY-MM-DD). Empty means the
	// default lookback window.
	Date string `json:"date,omitempty"`
	// SelectedIndices picks transcripts by position after preprocessing.
	// Nil or empty selects all.
	SelectedIndices []int          `json:"selected_indices,omitempty"`
	Mode            summarize.Mode `json:"mode,omitempty"`
	// ApproveSync gates the tracker sync stage. It never runs implicitly.
	ApproveSync bool `json:"approve_sync"`
	WindowDays  int  `json:"window_days,omitempty"`
}

// Result aggregates per-stage outputs and per-stage errors. It is always
// returned in full; a failed stage leaves its output empty and its error
// field set, and downstream fields empty.
type Result struct {
	RunID     string `json:"run_id"`
	SessionID string `json:"session_id,omitempty"`
	Intent    string `json:"intent"`

	Transcripts []ingest.Transcript `json:"transcripts,omitempty"`
	Selected    []ingest.Transcript `json:"selected,omitempty"`
	Summaries   []*summarize.Result `json:"summaries,omitempty"`
	Tasks       []*task.Task        `json:"tasks,omitempty"`
	Dropped     []string            `json:"dropped,omitempty"`
	Sync        *jira.SyncResult    `json:"sync,omitempty"`
	AlertsFired int                 `json:"alerts_fired"`
	Notes       []string            `json:"notes,omitempty"`

	IngestError     string `json:"ingest_error,omitempty"`
	PreprocessError string `json:"preprocess_error,omitempty"`
	SummarizeError  string `json:"summarize_error,omitempty"`
	ExtractError    string `json:"extract_error,omitempty"`
	SyncError       string `json:"sync_error,omitempty"`
	NotifyError     string `json:"notify_error,omitempty"`
}

// Config wires the orchestrator's collaborators. Source, Dispatcher and
// Store are required; the rest degrade their stage when nil.
type Config struct {
	Source     ingest.Source
	Dispatcher *summarize.Dispatcher
	Records    *summarize.RecordStore
	Store      task.Store
	Syncer     *jira.Engine
	Notifier   *notify.Engine
	Registry   *registry.InMemoryRegistry
	Bus        events.Bus
	Project    string
	Mode       summarize.Mode // default when a request names none
	Workers    int
	WindowDays int
}

// Orchestrator runs the pipeline.
type Orchestrator struct {
	cfg Config
	log *slog.Logger
}

const orchestratorAgent = "orchestrator"

// New creates an orchestrator and registers its agent identity.
func New(logger *slog.Logger, cfg Config) *Orchestrator {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.WindowDays <= 0 {
		cfg.WindowDays = 2
	}
	if cfg.Registry != nil {
		if _, ok := cfg.Registry.Get(orchestratorAgent); !ok {
			_ = cfg.Registry.Register(&registry.Agent{
				Name:         orchestratorAgent,
				Endpoint:     "internal",
				Capabilities: []string{StageIngest, StageSummarize, StageSync, StageNotify},
			})
		}
	}
	return &Orchestrator{cfg: cfg, log: logger}
}

var datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// Run executes the pipeline for req. Stage failures are reported in the
// Result, not as the returned error; Run errs only on an invalid request
// or a cancelled context.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Result, error) {
	if req.Query == "" || req.User == "" {
		return nil, fmt.Errorf("pipeline: query and user are required")
	}
	if req.Date != "" && !datePattern.MatchString(req.Date) {
		return nil, fmt.Errorf("pipeline: invalid date %q, want YYYY-MM-DD", req.Date)
	}
	if req.WindowDays <= 0 {
		req.WindowDays = o.cfg.WindowDays
	}
	if req.Mode == "" {
		req.Mode = o.cfg.Mode
	}

	res := &Result{
		RunID:  uuid.New().String(),
		Intent: detectIntent(req.Query),
	}
	o.log.Info("pipeline run started", "run_id", res.RunID, "user", req.User, "intent", res.Intent)

	if o.cfg.Registry != nil {
		if session, err := o.cfg.Registry.CreateSession(orchestratorAgent); err == nil {
			res.SessionID = session.ID
			defer func() { _ = o.cfg.Registry.EndSession(session.ID) }()
		}
	}

	o.runIngest(ctx, req, res)
	if res.IngestError == "" && res.PreprocessError == "" {
		o.runSummarize(ctx, req, res)
	}
	if res.SummarizeError == "" && res.IngestError == "" && res.PreprocessError == "" {
		o.runExtract(ctx, res)
	}
	if res.ExtractError == "" && res.SummarizeError == "" && res.IngestError == "" && res.PreprocessError == "" {
		o.runSync(ctx, req, res)
		o.runNotify(ctx, req, res)
	}

	if err := ctx.Err(); err != nil {
		return res, err
	}
	o.log.Info("pipeline run finished", "run_id", res.RunID,
		"transcripts", len(res.Selected), "tasks", len(res.Tasks), "alerts", res.AlertsFired)
	return res, nil
}

func (o *Orchestrator) runIngest(ctx context.Context, req Request, res *Result) {
	from, to := ingestRange(req.Date)
	transcripts, err := o.cfg.Source.FetchTranscripts(ctx, from, to)
	if err != nil {
		res.IngestError = err.Error()
		o.finishStage(ctx, res, StageIngest, err)
		return
	}
	res.Transcripts = transcripts
	o.finishStage(ctx, res, StageIngest, nil)

	res.Selected = selectTranscripts(ingest.Preprocess(transcripts), req.SelectedIndices)
	o.finishStage(ctx, res, StagePreprocess, nil)
}

// ingestRange returns the fetch window: the named day, or the default
// one-week lookback.
func ingestRange(date string) (time.Time, time.Time) {
	now := time.Now().UTC()
	if date != "" {
		if day, err := time.Parse("2006-01-02", date); err == nil {
			return day, day.AddDate(0, 0, 1)
		}
	}
	return now.AddDate(0, 0, -7), now.AddDate(0, 0, 1)
}

func selectTranscripts(transcripts []ingest.Transcript, indices []int) []ingest.Transcript {
	if len(indices) == 0 {
		return transcripts
	}
	selected := make([]ingest.Transcript, 0, len(indices))
	for _, i := range indices {
		if i >= 0 && i < len(transcripts) {
			selected = append(selected, transcripts[i])
		}
	}
	return selected
}

// runSummarize fans the selected transcripts out over a bounded worker
// pool. Items fail independently; the stage fails only when every item
// failed.
func (o *Orchestrator) runSummarize(ctx context.Context, req Request, res *Result) {
	if len(res.Selected) == 0 {
		o.finishStage(ctx, res, StageSummarize, nil)
		return
	}

	results := make([]*summarize.Result, len(res.Selected))
	errs := make([]error, len(res.Selected))
	sem := make(chan struct{}, o.cfg.Workers)
	var wg sync.WaitGroup

	for i, tr := range res.Selected {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, tr ingest.Transcript) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i], errs[i] = o.cfg.Dispatcher.Summarize(ctx, tr.MeetingID, tr.Text, req.Mode)
		}(i, tr)
	}
	wg.Wait()

	failed := 0
	for i, r := range results {
		if errs[i] != nil {
			failed++
			res.Notes = append(res.Notes, fmt.Sprintf("summarize %s: %v", res.Selected[i].MeetingID, errs[i]))
			o.log.Warn("transcript summarization failed", "meeting_id", res.Selected[i].MeetingID, "error", errs[i])
			continue
		}
		res.Summaries = append(res.Summaries, r)
		if o.cfg.Records != nil {
			if err := o.cfg.Records.Save(r); err != nil {
				o.log.Warn("summary record save failed", "meeting_id", r.MeetingID, "error", err)
			}
		}
	}

	if failed == len(res.Selected) {
		err := fmt.Errorf("all %d transcripts failed summarization", failed)
		res.SummarizeError = err.Error()
		o.finishStage(ctx, res, StageSummarize, err)
		return
	}
	o.finishStage(ctx, res, StageSummarize, nil)
}

// runExtract normalizes action items into tasks and appends them to the
// store. A summary with no structured items falls back to tracker-block
// parsing, then keyword scanning over the summary, then the transcript.
func (o *Orchestrator) runExtract(ctx context.Context, res *Result) {
	transcriptByMeeting := make(map[string]string, len(res.Selected))
	for _, tr := range res.Selected {
		transcriptByMeeting[tr.MeetingID] = tr.Text
	}

	var all []*task.Task
	for _, summary := range res.Summaries {
		items := summary.ActionItems
		summaryText := strings.Join(summary.Summary, "\n")
		if len(items) == 0 {
			items = task.ParseTrackerBlock(summaryText)
		}
		if len(items) == 0 {
			items = task.FallbackItems(summaryText)
		}
		if len(items) == 0 {
			items = task.FallbackItems(transcriptByMeeting[summary.MeetingID])
		}

		tasks, dropped := task.Normalize(items, summary.MeetingID)
		for _, reason := range dropped {
			res.Dropped = append(res.Dropped, fmt.Sprintf("%s: %s", summary.MeetingID, reason))
			o.log.Warn("action item dropped", "meeting_id", summary.MeetingID, "reason", reason)
		}
		all = append(all, tasks...)
	}

	saved, err := o.cfg.Store.Append(all)
	if err != nil {
		res.ExtractError = err.Error()
		o.finishStage(ctx, res, StageExtract, err)
		return
	}
	res.Tasks = saved
	o.finishStage(ctx, res, StageExtract, nil)
}

func (o *Orchestrator) runSync(ctx context.Context, req Request, res *Result) {
	if !req.ApproveSync {
		o.log.Info("tracker sync not approved, skipping", "run_id", res.RunID)
		return
	}
	if o.cfg.Syncer == nil {
		res.SyncError = "tracker sync not configured"
		o.finishStage(ctx, res, StageSync, fmt.Errorf("tracker sync not configured"))
		return
	}

	res.Sync = o.cfg.Syncer.Sync(ctx, res.Tasks, o.cfg.Project)
	if len(res.Sync.Errors) > 0 && len(res.Sync.Created) == 0 && len(res.Sync.Updated) == 0 {
		err := fmt.Errorf("sync failed: %s", strings.Join(res.Sync.Errors, "; "))
		res.SyncError = err.Error()
		o.finishStage(ctx, res, StageSync, err)
		return
	}
	o.finishStage(ctx, res, StageSync, nil)
}

func (o *Orchestrator) runNotify(ctx context.Context, req Request, res *Result) {
	if o.cfg.Notifier == nil {
		return
	}
	fired, err := o.cfg.Notifier.ScanDueTasks(ctx, req.WindowDays)
	if err != nil {
		res.NotifyError = err.Error()
		o.finishStage(ctx, res, StageNotify, err)
		return
	}
	res.AlertsFired += fired

	fired, err = o.cfg.Notifier.ScanEndingSprints(ctx, req.WindowDays)
	if err != nil {
		res.NotifyError = err.Error()
		o.finishStage(ctx, res, StageNotify, err)
		return
	}
	res.AlertsFired += fired
	o.finishStage(ctx, res, StageNotify, nil)
}

// finishStage publishes one stage event on the run's topic.
func (o *Orchestrator) finishStage(ctx context.Context, res *Result, stage string, stageErr error) {
	if o.cfg.Bus == nil {
		return
	}
	content := "ok"
	status := "ok"
	if stageErr != nil {
		content = stageErr.Error()
		status = "error"
	}
	_ = o.cfg.Bus.Publish(ctx, &events.Event{
		ID:        uuid.New().String(),
		Type:      events.TypeStage,
		Topic:     res.RunID,
		Subject:   stage,
		Content:   content,
		Metadata:  map[string]string{"status": status},
		Timestamp: time.Now().UTC(),
	})
}

// detectIntent routes a query to the pipeline capability it names.
// Unrecognized queries run the full pipeline.
func detectIntent(query string) string {
	q := strings.ToLower(query)
	switch {
	case strings.Contains(q, "calendar") || strings.Contains(q, "event") || strings.Contains(q, "fetch transcript"):
		return "ingest"
	case strings.Contains(q, "summary") || strings.Contains(q, "summarize"):
		return "summarize"
	case strings.Contains(q, "jira") || strings.Contains(q, "sync"):
		return "sync"
	default:
		return "full"
	}
}
