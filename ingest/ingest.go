// Package ingest fetches raw meeting transcripts from a source and
// prepares them for summarization.
package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Transcript is one meeting's raw text. The text is never mutated after
// fetch; preprocessing returns a cleaned copy.
type Transcript struct {
	MeetingID string
	Text      string
	Date      time.Time
}

// Source fetches transcripts for a time range.
type Source interface {
	FetchTranscripts(ctx context.Context, from, to time.Time) ([]Transcript, error)
}

// DirSource reads transcripts from .txt files in a directory. The file
// name without extension becomes the meeting ID and the file's
// modification time its date.
type DirSource struct {
	dir string
}

// NewDirSource creates a source over dir.
func NewDirSource(dir string) *DirSource {
	return &DirSource{dir: dir}
}

// FetchTranscripts returns every .txt transcript whose modification time
// falls inside [from, to], ordered by date.
func (s *DirSource) FetchTranscripts(ctx context.Context, from, to time.Time) ([]Transcript, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read transcript dir: %w", err)
	}

	var transcripts []Transcript
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".txt") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("stat transcript %s: %w", entry.Name(), err)
		}
		modified := info.ModTime()
		if modified.Before(from) || modified.After(to) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read transcript %s: %w", entry.Name(), err)
		}
		transcripts = append(transcripts, Transcript{
			MeetingID: strings.TrimSuffix(entry.Name(), ".txt"),
			Text:      string(data),
			Date:      modified,
		})
	}

	sort.Slice(transcripts, func(i, j int) bool {
		return transcripts[i].Date.Before(transcripts[j].Date)
	})
	return transcripts, nil
}

// Preprocess trims and normalizes whitespace within each transcript and
// drops transcripts left empty afterwards.
func Preprocess(transcripts []Transcript) []Transcript {
	cleaned := make([]Transcript, 0, len(transcripts))
	for _, t := range transcripts {
		t.Text = cleanText(t.Text)
		if t.Text == "" {
			continue
		}
		cleaned = append(cleaned, t)
	}
	return cleaned
}

// cleanText collapses runs of blanks within each line and removes empty
// lines, keeping line structure intact for the tracker block parser.
func cleanText(text string) string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}
