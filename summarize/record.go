package summarize

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"
)

// RecordStore persists one summary record per meeting as a JSON file
// under dir. Files are replaced atomically so a crashed write never
// leaves a truncated record behind.
type RecordStore struct {
	dir string
}

// NewRecordStore creates the store directory if needed.
func NewRecordStore(dir string) (*RecordStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create summary dir %s: %w", dir, err)
	}
	return &RecordStore{dir: dir}, nil
}

func (s *RecordStore) path(meetingID string) string {
	return filepath.Join(s.dir, meetingID+".json")
}

// Save writes the summary record for result.MeetingID.
func (s *RecordStore) Save(result *Result) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal summary %s: %w", result.MeetingID, err)
	}
	if err := atomic.WriteFile(s.path(result.MeetingID), bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write summary %s: %w", result.MeetingID, err)
	}
	return nil
}

// Load returns the stored summary for meetingID, or os.ErrNotExist.
func (s *RecordStore) Load(meetingID string) (*Result, error) {
	data, err := os.ReadFile(s.path(meetingID))
	if err != nil {
		return nil, fmt.Errorf("read summary %s: %w", meetingID, err)
	}
	var r Result
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse summary %s: %w", meetingID, err)
	}
	return &r, nil
}
