package summarize

import (
	"testing"

	"github.com/GoCodeAlone/followup/task"
)

func TestRecordStore_SaveAndLoad(t *testing.T) {
	store, err := NewRecordStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewRecordStore: %v", err)
	}

	in := &Result{
		MeetingID:   "m-7",
		Summary:     []string{"first", "second"},
		ActionItems: []task.RawItem{{Text: "fix the bug"}},
		Backend:     "mock",
	}
	if err := store.Save(in); err != nil {
		t.Fatalf("Save: %v", err)
	}

	out, err := store.Load("m-7")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if out.MeetingID != "m-7" || len(out.Summary) != 2 || len(out.ActionItems) != 1 {
		t.Errorf("round-trip mismatch: %+v", out)
	}
}

func TestRecordStore_LoadMissing(t *testing.T) {
	store, err := NewRecordStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewRecordStore: %v", err)
	}
	if _, err := store.Load("nope"); err == nil {
		t.Fatal("expected error for missing record")
	}
}
