package jira

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/GoCodeAlone/followup/task"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeTracker scripts per-summary outcomes.
type fakeTracker struct {
	created []IssueFields
	updated map[string]IssueFields
	failOn  map[string]error // keyed by summary
	nextKey int
}

func newFakeTracker() *fakeTracker {
	return &fakeTracker{updated: map[string]IssueFields{}, failOn: map[string]error{}}
}

func (f *fakeTracker) Configured() bool { return true }

func (f *fakeTracker) CreateIssue(_ context.Context, fields IssueFields) (string, error) {
	if err := f.failOn[fields.Summary]; err != nil {
		return "", err
	}
	f.created = append(f.created, fields)
	f.nextKey++
	return fmt.Sprintf("PROJ-%d", f.nextKey), nil
}

func (f *fakeTracker) UpdateIssue(_ context.Context, key string, fields IssueFields) error {
	if err := f.failOn[fields.Summary]; err != nil {
		return err
	}
	f.updated[key] = fields
	return nil
}

func newSyncStore(t *testing.T) *task.SQLiteStore {
	t.Helper()
	f, err := os.CreateTemp("", "followup-sync-*.db")
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })
	store, err := task.NewSQLiteStore(f.Name())
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestEngine_SyncCreatesAndPersists(t *testing.T) {
	store := newSyncStore(t)
	tracker := newFakeTracker()
	engine := NewEngine(testLogger(), tracker, store)

	tasks, err := store.Append([]*task.Task{
		{MeetingID: "m-1", Title: "Fix the login bug", Owner: "alice", Due: "2025-12-14"},
	})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}

	res := engine.Sync(context.Background(), tasks, "PROJ")
	if len(res.Created) != 1 || len(res.Errors) != 0 {
		t.Fatalf("result = %+v", res)
	}

	got, err := store.Get(tasks[0].ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ExternalRef != res.Created[0] {
		t.Errorf("ExternalRef = %q, want %q", got.ExternalRef, res.Created[0])
	}
	if tracker.created[0].Description == "" {
		t.Error("description not defaulted")
	}
}

func TestEngine_SyncIsIdempotent(t *testing.T) {
	store := newSyncStore(t)
	tracker := newFakeTracker()
	engine := NewEngine(testLogger(), tracker, store)

	tasks, err := store.Append([]*task.Task{{MeetingID: "m-1", Title: "Ship release"}})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}

	first := engine.Sync(context.Background(), tasks, "PROJ")
	if len(first.Created) != 1 {
		t.Fatalf("first sync = %+v", first)
	}
	ref := tasks[0].ExternalRef

	second := engine.Sync(context.Background(), tasks, "PROJ")
	if len(second.Created) != 0 {
		t.Fatalf("re-sync created new issues: %+v", second)
	}
	if len(second.Updated) != 1 || second.Updated[0] != ref {
		t.Errorf("re-sync = %+v, want update of %s", second, ref)
	}
	if tasks[0].ExternalRef != ref {
		t.Errorf("ExternalRef changed on re-sync: %q", tasks[0].ExternalRef)
	}
	if len(tracker.created) != 1 {
		t.Errorf("tracker holds %d created issues, want 1", len(tracker.created))
	}
}

func TestEngine_SyncFailureIsolation(t *testing.T) {
	store := newSyncStore(t)
	tracker := newFakeTracker()
	tracker.failOn["Broken item"] = errors.New("tracker rejected it")
	engine := NewEngine(testLogger(), tracker, store)

	tasks, err := store.Append([]*task.Task{
		{MeetingID: "m-1", Title: "Broken item"},
		{MeetingID: "m-1", Title: "Good item"},
	})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}

	res := engine.Sync(context.Background(), tasks, "PROJ")
	if len(res.Created) != 1 {
		t.Errorf("created = %v, want sibling to survive", res.Created)
	}
	if len(res.Errors) != 1 {
		t.Errorf("errors = %v", res.Errors)
	}

	broken, _ := store.Get(tasks[0].ID)
	if broken.ExternalError == "" {
		t.Error("failure not recorded on task")
	}
	good, _ := store.Get(tasks[1].ID)
	if good.ExternalRef == "" {
		t.Error("sibling task did not sync")
	}
}

type unconfiguredTracker struct{ *fakeTracker }

func (unconfiguredTracker) Configured() bool { return false }

func TestEngine_SyncNotConfigured(t *testing.T) {
	store := newSyncStore(t)
	engine := NewEngine(testLogger(), unconfiguredTracker{newFakeTracker()}, store)
	res := engine.Sync(context.Background(), []*task.Task{{ID: "x", MeetingID: "m", Title: "t"}}, "PROJ")
	if len(res.Errors) != 1 {
		t.Fatalf("result = %+v", res)
	}
}
