package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/GoCodeAlone/followup/jira"
	"github.com/GoCodeAlone/followup/summarize"
	"github.com/GoCodeAlone/followup/task"
)

func authedRequest(t *testing.T, s *Server, method, target string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	token := loginToken(t, s)
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)
	return rec
}

func TestStatusIsPublic(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if resp["version"] != "test" {
		t.Errorf("version = %v, want test", resp["version"])
	}
}

func TestTasksEndpointListsAndFilters(t *testing.T) {
	s := newTestServer(t)
	store, err := task.NewSQLiteStore(filepath.Join(t.TempDir(), "tasks.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	s.SetTaskStore(store)

	if _, err := store.Append([]*task.Task{
		{MeetingID: "m1", Title: "fix login"},
		{MeetingID: "m2", Title: "review notes"},
	}); err != nil {
		t.Fatalf("append: %v", err)
	}

	rec := authedRequest(t, s, http.MethodGet, "/api/tasks?meeting_id=m1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Tasks []*task.Task `json:"tasks"`
		Count int          `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if resp.Count != 1 || resp.Tasks[0].Title != "fix login" {
		t.Errorf("got %d tasks, first %+v", resp.Count, resp.Tasks)
	}

	rec = authedRequest(t, s, http.MethodGet, "/api/tasks?status=bogus", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad status filter = %d, want 400", rec.Code)
	}
}

func TestSummaryEndpoint(t *testing.T) {
	s := newTestServer(t)
	records, err := summarize.NewRecordStore(t.TempDir())
	if err != nil {
		t.Fatalf("record store: %v", err)
	}
	s.SetRecordStore(records)

	if err := records.Save(&summarize.Result{
		MeetingID: "standup",
		Summary:   []string{"Discussed the release."},
		Backend:   "heuristic",
	}); err != nil {
		t.Fatalf("save: %v", err)
	}

	rec := authedRequest(t, s, http.MethodGet, "/api/summaries/standup", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body %s", rec.Code, rec.Body.String())
	}
	var got summarize.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got.MeetingID != "standup" || len(got.Summary) != 1 {
		t.Errorf("record = %+v", got)
	}

	rec = authedRequest(t, s, http.MethodGet, "/api/summaries/missing", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing summary status = %d, want 404", rec.Code)
	}
}

type stubSearcher struct {
	issues  []jira.Issue
	err     error
	gotDays int
}

func (s *stubSearcher) SearchDue(_ context.Context, _ string, days int) ([]jira.Issue, error) {
	s.gotDays = days
	return s.issues, s.err
}

func TestDueIssuesEndpoint(t *testing.T) {
	s := newTestServer(t)
	searcher := &stubSearcher{issues: []jira.Issue{
		{Key: "PROJ-42", Summary: "Fix the login bug", DueDate: "2025-12-14"},
	}}
	s.SetTracker(searcher, "PROJ")

	rec := authedRequest(t, s, http.MethodGet, "/api/issues/due?days=3", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body %s", rec.Code, rec.Body.String())
	}
	if searcher.gotDays != 3 {
		t.Errorf("days = %d, want 3", searcher.gotDays)
	}
	var resp struct {
		Issues []jira.Issue `json:"issues"`
		Count  int          `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if resp.Count != 1 || resp.Issues[0].Key != "PROJ-42" {
		t.Errorf("response = %+v", resp)
	}

	rec = authedRequest(t, s, http.MethodGet, "/api/issues/due?days=zero", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad days status = %d, want 400", rec.Code)
	}
}

func TestDueIssuesEndpointUnconfigured(t *testing.T) {
	s := newTestServer(t)
	rec := authedRequest(t, s, http.MethodGet, "/api/issues/due", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}

	s.SetTracker(&stubSearcher{err: jira.ErrNotConfigured}, "PROJ")
	rec = authedRequest(t, s, http.MethodGet, "/api/issues/due", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("unconfigured tracker status = %d, want 503", rec.Code)
	}
}

func TestRunEndpointUnconfigured(t *testing.T) {
	s := newTestServer(t)
	rec := authedRequest(t, s, http.MethodPost, "/api/run", []byte(`{"query":"summarize"}`))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}
