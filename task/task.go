// Package task defines the canonical task model, normalization from
// heterogeneous action-item shapes, and SQLite persistence.
package task

import "time"

// Status represents the lifecycle state of a task.
type Status string

const (
	StatusOpen Status = "open"
	StatusDone Status = "done"
)

// MaxTitleLen is the issue tracker's summary field limit. Titles are
// truncated to this length before any external sync.
const MaxTitleLen = 255

// Task is one follow-up work item extracted from a meeting.
type Task struct {
	ID            string    `json:"id"`
	MeetingID     string    `json:"meeting_id"`
	Title         string    `json:"title"`
	Owner         string    `json:"owner,omitempty"`
	Due           string    `json:"due,omitempty"` // always YYYY-MM-DD once set
	Description   string    `json:"description,omitempty"`
	Status        Status    `json:"status"`
	ExternalRef   string    `json:"external_ref,omitempty"`   // issue tracker key
	ExternalError string    `json:"external_error,omitempty"` // last sync failure
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Store persists and retrieves tasks.
type Store interface {
	// Append persists tasks, assigning IDs to new records. Records whose
	// (meeting_id, title, due) key already exists are left untouched and
	// returned with their stored identity, so re-running the same
	// transcript never duplicates tasks.
	Append(tasks []*Task) ([]*Task, error)

	// Get retrieves a task by ID.
	Get(id string) (*Task, error)

	// Update saves changes to an existing task.
	Update(t *Task) error

	// List returns tasks matching the given filter.
	List(filter Filter) ([]*Task, error)

	// DueWithin returns open tasks whose due date falls inside
	// [today, today+days].
	DueWithin(days int) ([]*Task, error)
}

// Filter controls which tasks are returned by List.
type Filter struct {
	MeetingID string  `json:"meeting_id,omitempty"`
	Status    *Status `json:"status,omitempty"`
	Owner     string  `json:"owner,omitempty"`
	Limit     int     `json:"limit,omitempty"`
	Offset    int     `json:"offset,omitempty"`
}
