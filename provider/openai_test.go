package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestOpenAIProvider_Generate(t *testing.T) {
	var gotAuth, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","choices":[{"message":{"role":"assistant","content":"- point one"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	p := NewOpenAIProvider(OpenAIConfig{APIKey: "test-key", BaseURL: srv.URL})
	out, err := p.Generate(context.Background(), "summarize this", Limits{})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out != "- point one" {
		t.Errorf("output = %q, want %q", out, "- point one")
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotPath != "/v1/chat/completions" {
		t.Errorf("path = %q", gotPath)
	}
}

func TestOpenAIProvider_GenerateAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limited","type":"rate_limit_error"}}`))
	}))
	defer srv.Close()

	p := NewOpenAIProvider(OpenAIConfig{APIKey: "k", BaseURL: srv.URL})
	_, err := p.Generate(context.Background(), "x", Limits{})
	if err == nil {
		t.Fatal("expected error for non-200 status")
	}
	if !strings.Contains(err.Error(), "429") {
		t.Errorf("error = %v, want status in message", err)
	}
}

func TestOpenAIProvider_Available(t *testing.T) {
	if NewOpenAIProvider(OpenAIConfig{}).Available() {
		t.Error("Available() = true without API key")
	}
	if !NewOpenAIProvider(OpenAIConfig{APIKey: "k"}).Available() {
		t.Error("Available() = false with API key")
	}
}
