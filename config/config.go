// Package config defines the Followup application configuration.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the top-level Followup configuration.
type Config struct {
	Server     ServerConfig     `json:"server" yaml:"server"`
	Auth       AuthConfig       `json:"auth" yaml:"auth"`
	Summarizer SummarizerConfig `json:"summarizer" yaml:"summarizer"`
	Jira       JiraConfig       `json:"jira" yaml:"jira"`
	Notify     NotifyConfig     `json:"notify" yaml:"notify"`
	DataDir    string           `json:"data_dir" yaml:"data_dir"`
	LogLevel   string           `json:"log_level" yaml:"log_level"`
	Workers    int              `json:"workers" yaml:"workers"` // ingest fan-out pool size
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Addr string `json:"addr" yaml:"addr"` // listen address, e.g., ":9090"
}

// AuthConfig controls API authentication.
type AuthConfig struct {
	JWTSecret string `json:"jwt_secret" yaml:"jwt_secret"`
	AdminUser string `json:"admin_user" yaml:"admin_user"`
	AdminPass string `json:"admin_pass" yaml:"admin_pass"` // bcrypt hash
}

// SummarizerConfig selects and configures summarization backends.
type SummarizerConfig struct {
	Mode           string `json:"mode" yaml:"mode"` // "auto", "llm", "local", "heuristic"
	TimeoutSeconds int    `json:"timeout_seconds" yaml:"timeout_seconds"`
	ChunkWords     int    `json:"chunk_words" yaml:"chunk_words"`

	OpenAI OpenAIConfig `json:"openai" yaml:"openai"`
	Local  LocalConfig  `json:"local" yaml:"local"`
}

// OpenAIConfig configures the hosted LLM backend.
type OpenAIConfig struct {
	APIKey  string `json:"api_key" yaml:"api_key"`
	Model   string `json:"model,omitempty" yaml:"model"`
	BaseURL string `json:"base_url,omitempty" yaml:"base_url"`
}

// LocalConfig configures the local inference server backend.
type LocalConfig struct {
	BaseURL string `json:"base_url" yaml:"base_url"` // e.g., "http://localhost:8080"
	Model   string `json:"model,omitempty" yaml:"model"`
}

// JiraConfig configures the issue tracker collaborator.
type JiraConfig struct {
	BaseURL string `json:"base_url" yaml:"base_url"`
	User    string `json:"user" yaml:"user"`
	Token   string `json:"token" yaml:"token"`
	Project string `json:"project" yaml:"project"`
	BoardID string `json:"board_id,omitempty" yaml:"board_id"` // for sprint queries
}

// NotifyConfig controls the due-date watcher.
type NotifyConfig struct {
	SlackWebhookURL     string `json:"slack_webhook_url" yaml:"slack_webhook_url"`
	WindowDays          int    `json:"window_days" yaml:"window_days"`
	ScanIntervalSeconds int    `json:"scan_interval_seconds" yaml:"scan_interval_seconds"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr: ":9090",
		},
		Auth: AuthConfig{
			AdminUser: "admin",
		},
		Summarizer: SummarizerConfig{
			Mode:           "auto",
			TimeoutSeconds: 60,
			ChunkWords:     900,
		},
		Jira: JiraConfig{
			Project: "PROJ",
		},
		Notify: NotifyConfig{
			WindowDays:          2,
			ScanIntervalSeconds: 300,
		},
		DataDir:  "./data",
		LogLevel: "info",
		Workers:  4,
	}
}

// Load reads a YAML config file and returns the parsed configuration.
// Secrets left empty in the file fall back to environment variables.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if c.Summarizer.OpenAI.APIKey == "" {
		c.Summarizer.OpenAI.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if c.Jira.Token == "" {
		c.Jira.Token = os.Getenv("FOLLOWUP_JIRA_TOKEN")
	}
	if c.Notify.SlackWebhookURL == "" {
		c.Notify.SlackWebhookURL = os.Getenv("SLACK_WEBHOOK_URL")
	}
}
