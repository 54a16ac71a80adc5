package notify

import (
	"database/sql"
	"fmt"
	"time"
)

// Kind classifies an alert condition.
type Kind string

const (
	KindTaskDue      Kind = "task-due"
	KindSprintEnding Kind = "sprint-ending"
)

const ledgerSchema = `
CREATE TABLE IF NOT EXISTS notification_events (
	subject_id TEXT NOT NULL,
	kind       TEXT NOT NULL,
	fired_at   DATETIME NOT NULL,
	PRIMARY KEY (subject_id, kind)
);
`

// Ledger records which (subject, kind) alerts have already fired, making
// repeated scans idempotent. It shares the task store's database handle.
type Ledger struct {
	db *sql.DB
}

// NewLedger ensures the events table exists on db.
func NewLedger(db *sql.DB) (*Ledger, error) {
	if _, err := db.Exec(ledgerSchema); err != nil {
		return nil, fmt.Errorf("create notification schema: %w", err)
	}
	return &Ledger{db: db}, nil
}

// Fired reports whether an alert for (subjectID, kind) was already
// recorded.
func (l *Ledger) Fired(subjectID string, kind Kind) (bool, error) {
	var n int
	err := l.db.QueryRow(
		`SELECT COUNT(*) FROM notification_events WHERE subject_id=? AND kind=?`,
		subjectID, string(kind),
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("query notification event: %w", err)
	}
	return n > 0, nil
}

// MarkFired records the alert. Recording twice is an error surfaced to
// the caller; the engine always checks Fired first.
func (l *Ledger) MarkFired(subjectID string, kind Kind) error {
	_, err := l.db.Exec(
		`INSERT INTO notification_events (subject_id, kind, fired_at) VALUES (?,?,?)`,
		subjectID, string(kind), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("record notification event: %w", err)
	}
	return nil
}
