package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSlackNotifierSendsPayload(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode payload: %v", err)
		}
	}))
	defer srv.Close()

	notifier := NewSlackNotifier(srv.URL)
	if err := notifier.Send(context.Background(), "Task 'x' is due soon"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if got["text"] != "Task 'x' is due soon" {
		t.Fatalf("text = %q", got["text"])
	}
}

func TestSlackNotifierReportsServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid_payload", http.StatusBadRequest)
	}))
	defer srv.Close()

	notifier := NewSlackNotifier(srv.URL)
	if err := notifier.Send(context.Background(), "hello"); err == nil {
		t.Fatal("expected error for non-200 response")
	}
}

func TestSlackNotifierUnconfigured(t *testing.T) {
	notifier := NewSlackNotifier("")
	if err := notifier.Send(context.Background(), "hello"); err == nil {
		t.Fatal("expected error when webhook URL missing")
	}
}
