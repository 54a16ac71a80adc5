package notify

import (
	"path/filepath"
	"testing"

	"github.com/GoCodeAlone/followup/task"
)

func TestLedgerFiredPerKind(t *testing.T) {
	store, err := task.NewSQLiteStore(filepath.Join(t.TempDir(), "tasks.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	ledger, err := NewLedger(store.DB())
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}

	fired, err := ledger.Fired("t1", KindTaskDue)
	if err != nil {
		t.Fatalf("fired lookup: %v", err)
	}
	if fired {
		t.Fatal("fresh ledger reported fired")
	}

	if err := ledger.MarkFired("t1", KindTaskDue); err != nil {
		t.Fatalf("mark fired: %v", err)
	}
	fired, err = ledger.Fired("t1", KindTaskDue)
	if err != nil {
		t.Fatalf("fired lookup after mark: %v", err)
	}
	if !fired {
		t.Fatal("marked event not reported fired")
	}

	fired, err = ledger.Fired("t1", KindSprintEnding)
	if err != nil {
		t.Fatalf("other-kind lookup: %v", err)
	}
	if fired {
		t.Fatal("different kind reported fired")
	}
}
