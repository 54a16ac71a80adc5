// Package mock provides a scripted summarization provider for testing.
package mock

import (
	"context"
	"sync"

	"github.com/GoCodeAlone/followup/provider"
)

const defaultResponse = `{"summary": ["Scripted summary."], "action_items": []}`

// MockProvider implements provider.Provider for testing.
// It returns scripted responses in order, cycling through the queue,
// and records every prompt it receives.
type MockProvider struct {
	mu        sync.Mutex
	responses []string
	idx       int
	prompts   []string
	err       error
}

// New creates a MockProvider that cycles through the given responses.
func New(responses ...string) *MockProvider {
	return &MockProvider{responses: responses}
}

// NewFailing creates a MockProvider whose Generate always returns err.
func NewFailing(err error) *MockProvider {
	return &MockProvider{err: err}
}

// Name returns the provider identifier.
func (m *MockProvider) Name() string { return "mock" }

// Available always reports true.
func (m *MockProvider) Available() bool { return true }

// Generate records prompt and returns the next scripted response.
func (m *MockProvider) Generate(_ context.Context, prompt string, _ provider.Limits) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	m.prompts = append(m.prompts, prompt)
	if len(m.responses) == 0 {
		return defaultResponse, nil
	}
	resp := m.responses[m.idx%len(m.responses)]
	m.idx++
	return resp, nil
}

// Prompts returns a copy of all prompts seen so far.
func (m *MockProvider) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.prompts))
	copy(out, m.prompts)
	return out
}

// Calls returns how many Generate calls succeeded.
func (m *MockProvider) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}
