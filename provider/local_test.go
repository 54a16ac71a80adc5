package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestLocalProvider_Generate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/completion" {
			t.Errorf("path = %q, want /completion", r.URL.Path)
		}
		var req localRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Prompt != "hello" {
			t.Errorf("prompt = %q", req.Prompt)
		}
		if req.NPredict != 64 {
			t.Errorf("n_predict = %d, want 64", req.NPredict)
		}
		_, _ = w.Write([]byte(`{"content":"model output"}`))
	}))
	defer srv.Close()

	p := NewLocalProvider(LocalConfig{BaseURL: srv.URL})
	out, err := p.Generate(context.Background(), "hello", Limits{MaxTokens: 64})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out != "model output" {
		t.Errorf("output = %q", out)
	}
}

func TestLocalProvider_GenerateServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := NewLocalProvider(LocalConfig{BaseURL: srv.URL})
	if _, err := p.Generate(context.Background(), "x", Limits{}); err == nil {
		t.Fatal("expected error for 500 response")
	}
}
