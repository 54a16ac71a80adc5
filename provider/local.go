package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const (
	defaultLocalBaseURL   = "http://localhost:8080"
	defaultLocalMaxTokens = 512
)

// LocalConfig holds configuration for a local inference server
// (llama.cpp-compatible /completion endpoint).
type LocalConfig struct {
	BaseURL    string
	Model      string
	MaxTokens  int
	HTTPClient *http.Client
}

// LocalProvider implements Provider against a self-hosted model server.
type LocalProvider struct {
	config LocalConfig
}

// NewLocalProvider creates a new local-model provider with the given config.
func NewLocalProvider(cfg LocalConfig) *LocalProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultLocalBaseURL
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultLocalMaxTokens
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	return &LocalProvider{config: cfg}
}

func (p *LocalProvider) Name() string { return "local" }

// Available reports whether a server URL is configured. Reachability is
// only discovered at Generate time.
func (p *LocalProvider) Available() bool { return p.config.BaseURL != "" }

// localRequest is the request body for the /completion endpoint.
type localRequest struct {
	Prompt   string `json:"prompt"`
	Model    string `json:"model,omitempty"`
	NPredict int    `json:"n_predict"`
}

// localResponse is the completion response.
type localResponse struct {
	Content string      `json:"content"`
	Error   *localError `json:"error,omitempty"`
}

type localError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Generate posts prompt to the completion endpoint and returns the raw text.
func (p *LocalProvider) Generate(ctx context.Context, prompt string, limits Limits) (string, error) {
	maxTokens := p.config.MaxTokens
	if limits.MaxTokens > 0 {
		maxTokens = limits.MaxTokens
	}
	reqBody := localRequest{
		Prompt:   prompt,
		Model:    p.config.Model,
		NPredict: maxTokens,
	}

	data, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("local: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.BaseURL+"/completion", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("local: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.config.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("local: send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("local: read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("local: server error (status %d): %s", resp.StatusCode, string(body))
	}

	var apiResp localResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return "", fmt.Errorf("local: unmarshal response: %w", err)
	}
	if apiResp.Error != nil {
		return "", fmt.Errorf("local: %s", apiResp.Error.Message)
	}
	return apiResp.Content, nil
}
