package task

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver
)

const schema = `
CREATE TABLE IF NOT EXISTS tasks (
	id             TEXT PRIMARY KEY,
	meeting_id     TEXT NOT NULL,
	title          TEXT NOT NULL,
	owner          TEXT NOT NULL DEFAULT '',
	due            TEXT NOT NULL DEFAULT '',
	description    TEXT NOT NULL DEFAULT '',
	status         TEXT NOT NULL,
	external_ref   TEXT NOT NULL DEFAULT '',
	external_error TEXT NOT NULL DEFAULT '',
	created_at     DATETIME NOT NULL,
	updated_at     DATETIME NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS tasks_content_key
	ON tasks (meeting_id, title, due);
`

// SQLiteStore persists tasks in a SQLite database.
//
// The tasks_content_key index makes Append idempotent: re-running the
// pipeline over the same transcript maps extracted items onto the rows
// already stored for that meeting instead of inserting duplicates.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and ensures
// the tasks table exists. The caller is responsible for calling Close.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	db.SetMaxOpenConns(1) // prevent SQLITE_BUSY
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close releases the underlying database connection.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// DB exposes the underlying handle so sibling stores (the notification
// ledger) can share one database file.
func (s *SQLiteStore) DB() *sql.DB { return s.db }

// Append inserts new tasks and resolves content-key collisions to the
// already-stored row. The insert claims the content key atomically, so
// concurrent appends of the same item converge on one row instead of
// surfacing a constraint error. Each returned task carries its
// persistent ID.
func (s *SQLiteStore) Append(tasks []*Task) ([]*Task, error) {
	out := make([]*Task, 0, len(tasks))
	for _, t := range tasks {
		t.ID = uuid.New().String()
		now := time.Now().UTC()
		t.CreatedAt = now
		t.UpdatedAt = now
		if t.Status == "" {
			t.Status = StatusOpen
		}

		res, err := s.db.Exec(`
			INSERT INTO tasks
				(id, meeting_id, title, owner, due, description, status,
				 external_ref, external_error, created_at, updated_at)
			VALUES (?,?,?,?,?,?,?,?,?,?,?)
			ON CONFLICT (meeting_id, title, due) DO NOTHING`,
			t.ID, t.MeetingID, t.Title, t.Owner, t.Due, t.Description,
			string(t.Status), t.ExternalRef, t.ExternalError,
			t.CreatedAt, t.UpdatedAt,
		)
		if err != nil {
			return out, fmt.Errorf("insert task: %w", err)
		}
		inserted, err := res.RowsAffected()
		if err != nil {
			return out, fmt.Errorf("insert task: %w", err)
		}
		if inserted == 0 {
			existing, err := s.findByContentKey(t.MeetingID, t.Title, t.Due)
			if err != nil {
				return out, err
			}
			if existing == nil {
				return out, fmt.Errorf("task (%s, %s, %s) vanished after conflict", t.MeetingID, t.Title, t.Due)
			}
			out = append(out, existing)
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (s *SQLiteStore) findByContentKey(meetingID, title, due string) (*Task, error) {
	row := s.db.QueryRow(
		`SELECT * FROM tasks WHERE meeting_id=? AND title=? AND due=?`,
		meetingID, title, due,
	)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup task by content key: %w", err)
	}
	return t, nil
}

// Get retrieves a task by ID.
func (s *SQLiteStore) Get(id string) (*Task, error) {
	row := s.db.QueryRow(`SELECT * FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("task %s not found", id)
	}
	return t, err
}

// Update saves changes to an existing task, updating UpdatedAt automatically.
func (s *SQLiteStore) Update(t *Task) error {
	t.UpdatedAt = time.Now().UTC()
	res, err := s.db.Exec(`
		UPDATE tasks SET
			meeting_id=?, title=?, owner=?, due=?, description=?, status=?,
			external_ref=?, external_error=?, updated_at=?
		WHERE id=?`,
		t.MeetingID, t.Title, t.Owner, t.Due, t.Description, string(t.Status),
		t.ExternalRef, t.ExternalError, t.UpdatedAt,
		t.ID,
	)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("task %s not found", t.ID)
	}
	return nil
}

// List returns tasks matching the filter.
func (s *SQLiteStore) List(filter Filter) ([]*Task, error) {
	q := strings.Builder{}
	q.WriteString("SELECT * FROM tasks WHERE 1=1")
	args := []any{}

	if filter.MeetingID != "" {
		q.WriteString(" AND meeting_id=?")
		args = append(args, filter.MeetingID)
	}
	if filter.Status != nil {
		q.WriteString(" AND status=?")
		args = append(args, string(*filter.Status))
	}
	if filter.Owner != "" {
		q.WriteString(" AND owner=?")
		args = append(args, filter.Owner)
	}
	q.WriteString(" ORDER BY created_at ASC")
	if filter.Limit > 0 {
		q.WriteString(fmt.Sprintf(" LIMIT %d", filter.Limit))
		if filter.Offset > 0 {
			q.WriteString(fmt.Sprintf(" OFFSET %d", filter.Offset))
		}
	}

	rows, err := s.db.Query(q.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// DueWithin returns open tasks due on or before today+days. Overdue
// open tasks are included; they still need attention. Due dates are
// normalized ISO strings, so lexical comparison is safe.
func (s *SQLiteStore) DueWithin(days int) ([]*Task, error) {
	to := time.Now().UTC().AddDate(0, 0, days).Format("2006-01-02")

	rows, err := s.db.Query(
		`SELECT * FROM tasks WHERE status=? AND due != '' AND due <= ? ORDER BY due ASC`,
		string(StatusOpen), to,
	)
	if err != nil {
		return nil, fmt.Errorf("query due tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// scanner abstracts sql.Row and sql.Rows for scanTask.
type scanner interface {
	Scan(dest ...any) error
}

func scanTask(s scanner) (*Task, error) {
	var t Task
	var status string

	err := s.Scan(
		&t.ID, &t.MeetingID, &t.Title, &t.Owner, &t.Due, &t.Description,
		&status, &t.ExternalRef, &t.ExternalError,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.Status = Status(status)
	return &t, nil
}
