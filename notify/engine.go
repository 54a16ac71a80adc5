package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/GoCodeAlone/followup/events"
	"github.com/GoCodeAlone/followup/jira"
	"github.com/GoCodeAlone/followup/task"
)

// DueLister exposes the slice of the task store the engine scans.
type DueLister interface {
	DueWithin(days int) ([]*task.Task, error)
}

// SprintSource lists active iterations from the tracker.
type SprintSource interface {
	ActiveSprints(ctx context.Context) ([]jira.Sprint, error)
}

// Engine scans for due tasks and ending sprints and fires each alert at
// most once per (subject, kind), regardless of scan frequency.
type Engine struct {
	tasks    DueLister
	sprints  SprintSource // nil when the tracker has no board configured
	ledger   *Ledger
	notifier Notifier
	bus      events.Bus
	log      *slog.Logger

	// fireMu serializes the ledger check, delivery, and ledger write so
	// overlapping scans (the watcher ticker and a pipeline run) cannot
	// both deliver the same alert.
	fireMu sync.Mutex

	titleCaser cases.Caser
}

// NewEngine creates a notification engine. sprints and bus may be nil.
func NewEngine(logger *slog.Logger, tasks DueLister, sprints SprintSource, ledger *Ledger, notifier Notifier, bus events.Bus) *Engine {
	return &Engine{
		tasks:      tasks,
		sprints:    sprints,
		ledger:     ledger,
		notifier:   notifier,
		bus:        bus,
		log:        logger,
		titleCaser: cases.Title(language.English),
	}
}

// ScanDueTasks fires one alert per open task due within windowDays.
// Returns how many new alerts fired this scan.
func (e *Engine) ScanDueTasks(ctx context.Context, windowDays int) (int, error) {
	due, err := e.tasks.DueWithin(windowDays)
	if err != nil {
		return 0, fmt.Errorf("scan due tasks: %w", err)
	}

	fired := 0
	for _, t := range due {
		message := fmt.Sprintf("Task '%s' is due soon: %s", t.Title, t.Due)
		if t.Owner != "" {
			message = fmt.Sprintf("Task '%s' (owner %s) is due soon: %s",
				t.Title, e.titleCaser.String(t.Owner), t.Due)
		}
		if e.fire(ctx, t.ID, KindTaskDue, message) {
			fired++
		}
	}
	return fired, nil
}

// ScanEndingSprints fires one alert per active sprint ending within
// windowDays.
func (e *Engine) ScanEndingSprints(ctx context.Context, windowDays int) (int, error) {
	if e.sprints == nil {
		return 0, nil
	}
	sprints, err := e.sprints.ActiveSprints(ctx)
	if err != nil {
		if errors.Is(err, jira.ErrNotConfigured) {
			return 0, nil
		}
		return 0, fmt.Errorf("scan sprints: %w", err)
	}

	now := time.Now().UTC()
	soon := now.AddDate(0, 0, windowDays)
	fired := 0
	for _, s := range sprints {
		if s.EndDate.IsZero() || !s.EndDate.After(now) || s.EndDate.After(soon) {
			continue
		}
		subject := fmt.Sprintf("sprint-%d", s.ID)
		message := fmt.Sprintf("Sprint '%s' is ending soon: %s", s.Name, s.EndDate.Format("2006-01-02"))
		if e.fire(ctx, subject, KindSprintEnding, message) {
			fired++
		}
	}
	return fired, nil
}

// fire emits one alert if (subjectID, kind) has not fired before. A
// delivery failure leaves the ledger untouched so the next scan retries.
func (e *Engine) fire(ctx context.Context, subjectID string, kind Kind, message string) bool {
	e.fireMu.Lock()
	defer e.fireMu.Unlock()

	already, err := e.ledger.Fired(subjectID, kind)
	if err != nil {
		e.log.Error("notification ledger lookup failed", "subject", subjectID, "error", err)
		return false
	}
	if already {
		return false
	}

	if err := e.notifier.Send(ctx, message); err != nil {
		e.log.Warn("notification delivery failed, will retry next scan",
			"subject", subjectID, "kind", kind, "error", err)
		return false
	}

	if err := e.ledger.MarkFired(subjectID, kind); err != nil {
		e.log.Error("failed to record fired notification", "subject", subjectID, "error", err)
		return false
	}

	if e.bus != nil {
		_ = e.bus.Publish(ctx, &events.Event{
			ID:        uuid.New().String(),
			Type:      events.TypeNotification,
			Topic:     "watcher",
			Subject:   subjectID,
			Content:   message,
			Metadata:  map[string]string{"kind": string(kind)},
			Timestamp: time.Now().UTC(),
		})
	}
	e.log.Info("notification fired", "subject", subjectID, "kind", kind)
	return true
}

// Watch runs both scans on every tick until ctx is cancelled. Scan
// errors are logged and do not stop the watcher.
func (e *Engine) Watch(ctx context.Context, interval time.Duration, windowDays int) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := e.ScanDueTasks(ctx, windowDays); err != nil {
				e.log.Error("due-task scan failed", "error", err)
			}
			if _, err := e.ScanEndingSprints(ctx, windowDays); err != nil {
				e.log.Error("sprint scan failed", "error", err)
			}
		}
	}
}
