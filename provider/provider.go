// Package provider defines the summarization backend interface.
package provider

import "context"

// Limits bounds a single generation call.
type Limits struct {
	MaxTokens int `json:"max_tokens"`
}

// Provider is a text-generation backend that powers summarization.
// Implementations own transport and authentication; prompt construction
// and output parsing belong to the caller.
type Provider interface {
	// Name returns the backend identifier (e.g., "openai", "local", "heuristic").
	Name() string

	// Available reports whether the backend is configured and usable.
	// It must be cheap and must not perform network I/O.
	Available() bool

	// Generate sends prompt to the backend and returns the raw output text.
	Generate(ctx context.Context, prompt string, limits Limits) (string, error)
}
