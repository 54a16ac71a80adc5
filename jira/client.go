// Package jira talks to the issue tracker and keeps canonical tasks
// synchronized with it.
package jira

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// ErrNotConfigured is returned when the tracker connection details are
// missing. Callers treat it as a degraded stage, not a crash.
var ErrNotConfigured = errors.New("jira: connection not configured")

// ClientConfig holds the tracker connection details.
type ClientConfig struct {
	BaseURL    string
	User       string
	Token      string
	BoardID    string // optional, enables sprint queries
	HTTPClient *http.Client
}

// Client is a minimal issue tracker REST client. Every call takes a
// context and surfaces tracker failures as wrapped errors; retry policy
// belongs to the caller.
type Client struct {
	config ClientConfig
}

// NewClient creates a tracker client. Configured() reports whether it
// can actually be used.
func NewClient(cfg ClientConfig) *Client {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{config: cfg}
}

// Configured reports whether base URL and credentials are present.
func (c *Client) Configured() bool {
	return c.config.BaseURL != "" && c.config.User != "" && c.config.Token != ""
}

// IssueFields is the subset of tracker fields this service writes.
type IssueFields struct {
	Project     string // project key
	Summary     string
	Description string
	Assignee    string // optional
	DueDate     string // optional, YYYY-MM-DD
}

type issuePayload struct {
	Fields map[string]any `json:"fields"`
}

func buildPayload(f IssueFields) issuePayload {
	fields := map[string]any{
		"project":   map[string]string{"key": f.Project},
		"summary":   f.Summary,
		"issuetype": map[string]string{"name": "Task"},
	}
	if f.Description != "" {
		fields["description"] = f.Description
	}
	if f.Assignee != "" {
		fields["assignee"] = map[string]string{"name": f.Assignee}
	}
	if f.DueDate != "" {
		fields["duedate"] = f.DueDate
	}
	return issuePayload{Fields: fields}
}

// CreateIssue creates a tracker issue and returns its key.
func (c *Client) CreateIssue(ctx context.Context, f IssueFields) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}
	var resp struct {
		Key string `json:"key"`
	}
	if err := c.do(ctx, http.MethodPost, "/rest/api/2/issue", buildPayload(f), &resp); err != nil {
		return "", fmt.Errorf("create issue: %w", err)
	}
	if resp.Key == "" {
		return "", fmt.Errorf("create issue: tracker returned no key")
	}
	return resp.Key, nil
}

// UpdateIssue overwrites the writable fields of an existing issue.
func (c *Client) UpdateIssue(ctx context.Context, key string, f IssueFields) error {
	if !c.Configured() {
		return ErrNotConfigured
	}
	payload := buildPayload(f)
	// project and issuetype are immutable after create
	delete(payload.Fields, "project")
	delete(payload.Fields, "issuetype")
	if err := c.do(ctx, http.MethodPut, "/rest/api/2/issue/"+url.PathEscape(key), payload, nil); err != nil {
		return fmt.Errorf("update issue %s: %w", key, err)
	}
	return nil
}

// Issue is a tracker search result.
type Issue struct {
	Key     string `json:"key"`
	Summary string `json:"summary"`
	DueDate string `json:"duedate"`
}

// SearchDue returns tracker issues in project due within the next days.
func (c *Client) SearchDue(ctx context.Context, project string, days int) ([]Issue, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	jql := fmt.Sprintf("project=%s AND duedate >= now() AND duedate <= %dd order by duedate asc", project, days)
	var resp struct {
		Issues []struct {
			Key    string `json:"key"`
			Fields struct {
				Summary string `json:"summary"`
				DueDate string `json:"duedate"`
			} `json:"fields"`
		} `json:"issues"`
	}
	path := "/rest/api/2/search?jql=" + url.QueryEscape(jql)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("search due issues: %w", err)
	}
	out := make([]Issue, 0, len(resp.Issues))
	for _, i := range resp.Issues {
		out = append(out, Issue{Key: i.Key, Summary: i.Fields.Summary, DueDate: i.Fields.DueDate})
	}
	return out, nil
}

// Sprint is an active iteration on the configured board.
type Sprint struct {
	ID      int       `json:"id"`
	Name    string    `json:"name"`
	EndDate time.Time `json:"endDate"`
}

// ActiveSprints lists active sprints on the configured board. Returns
// ErrNotConfigured when no board is set.
func (c *Client) ActiveSprints(ctx context.Context) ([]Sprint, error) {
	if !c.Configured() || c.config.BoardID == "" {
		return nil, ErrNotConfigured
	}
	var resp struct {
		Values []struct {
			ID      int    `json:"id"`
			Name    string `json:"name"`
			EndDate string `json:"endDate"`
		} `json:"values"`
	}
	path := "/rest/agile/1.0/board/" + url.PathEscape(c.config.BoardID) + "/sprint?state=active"
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("list active sprints: %w", err)
	}
	out := make([]Sprint, 0, len(resp.Values))
	for _, v := range resp.Values {
		s := Sprint{ID: v.ID, Name: v.Name}
		if v.EndDate != "" {
			if end, err := time.Parse(time.RFC3339, v.EndDate); err == nil {
				s.EndDate = end
			}
		}
		out = append(out, s)
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.SetBasicAuth(c.config.User, c.config.Token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.config.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("tracker error (status %d): %s", resp.StatusCode, string(respBody))
	}
	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}
