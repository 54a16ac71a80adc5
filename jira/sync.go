package jira

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/GoCodeAlone/followup/task"
)

// Tracker is the issue tracker surface the sync engine needs. *Client
// implements it; tests substitute fakes.
type Tracker interface {
	Configured() bool
	CreateIssue(ctx context.Context, f IssueFields) (string, error)
	UpdateIssue(ctx context.Context, key string, f IssueFields) error
}

// SyncResult aggregates one sync pass.
type SyncResult struct {
	Created []string `json:"created"` // external refs assigned this pass
	Updated []string `json:"updated"` // refs refreshed this pass
	Errors  []string `json:"errors"`
}

// Engine pushes tasks into the tracker. Each task syncs independently;
// one failure is recorded on that task and never blocks its siblings.
type Engine struct {
	tracker Tracker
	store   task.Store
	log     *slog.Logger
}

// NewEngine creates a sync engine over tracker and store.
func NewEngine(logger *slog.Logger, tracker Tracker, store task.Store) *Engine {
	return &Engine{tracker: tracker, store: store, log: logger}
}

// Sync creates or updates one tracker issue per task in project. Tasks
// that already carry an ExternalRef are updated in place, never
// duplicated; re-running Sync over the same tasks is safe.
func (e *Engine) Sync(ctx context.Context, tasks []*task.Task, project string) *SyncResult {
	res := &SyncResult{}
	if !e.tracker.Configured() {
		res.Errors = append(res.Errors, ErrNotConfigured.Error())
		return res
	}

	for _, t := range tasks {
		fields := IssueFields{
			Project:     project,
			Summary:     task.CleanTitle(t.Title),
			Description: t.Description,
			Assignee:    t.Owner,
			DueDate:     t.Due,
		}
		if fields.Description == "" {
			fields.Description = fmt.Sprintf("Auto-created from meeting %s", t.MeetingID)
		}

		if t.ExternalRef != "" {
			if err := e.tracker.UpdateIssue(ctx, t.ExternalRef, fields); err != nil {
				e.recordFailure(res, t, err)
				continue
			}
			t.ExternalError = ""
			res.Updated = append(res.Updated, t.ExternalRef)
		} else {
			key, err := e.tracker.CreateIssue(ctx, fields)
			if err != nil {
				e.recordFailure(res, t, err)
				continue
			}
			t.ExternalRef = key
			t.ExternalError = ""
			res.Created = append(res.Created, key)
		}

		if err := e.store.Update(t); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("persist task %s: %v", t.ID, err))
		}
	}
	return res
}

func (e *Engine) recordFailure(res *SyncResult, t *task.Task, err error) {
	e.log.Warn("issue sync failed", "task_id", t.ID, "error", err)
	t.ExternalError = err.Error()
	if uerr := e.store.Update(t); uerr != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("persist task %s: %v", t.ID, uerr))
	}
	res.Errors = append(res.Errors, fmt.Sprintf("task %s: %v", t.ID, err))
}
