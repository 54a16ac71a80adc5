// Command followupd is the followup server daemon. It wires the meeting
// pipeline, the notification watcher, and the HTTP API from one YAML
// config file.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/GoCodeAlone/followup/config"
	"github.com/GoCodeAlone/followup/events"
	"github.com/GoCodeAlone/followup/ingest"
	"github.com/GoCodeAlone/followup/internal/version"
	"github.com/GoCodeAlone/followup/jira"
	"github.com/GoCodeAlone/followup/notify"
	"github.com/GoCodeAlone/followup/pipeline"
	"github.com/GoCodeAlone/followup/provider"
	"github.com/GoCodeAlone/followup/registry"
	"github.com/GoCodeAlone/followup/server"
	"github.com/GoCodeAlone/followup/summarize"
	"github.com/GoCodeAlone/followup/task"
)

var configPath = flag.String("config", "followup.yaml", "path to config file")

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config %s: %v", *configPath, err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.LogLevel),
	}))
	logger.Info("starting followupd",
		"version", version.Version,
		"commit", version.Commit,
	)

	transcriptDir := filepath.Join(cfg.DataDir, "transcripts")
	summaryDir := filepath.Join(cfg.DataDir, "summaries")
	for _, dir := range []string{cfg.DataDir, transcriptDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Fatalf("Failed to create %s: %v", dir, err)
		}
	}

	store, err := task.NewSQLiteStore(filepath.Join(cfg.DataDir, "tasks.db"))
	if err != nil {
		log.Fatalf("Failed to open task store: %v", err)
	}
	defer store.Close() //nolint:errcheck

	records, err := summarize.NewRecordStore(summaryDir)
	if err != nil {
		log.Fatalf("Failed to open summary record store: %v", err)
	}

	ledger, err := notify.NewLedger(store.DB())
	if err != nil {
		log.Fatalf("Failed to open notification ledger: %v", err)
	}

	// Fixed preference order: hosted model, local model, rule-based.
	providers := []provider.Provider{
		provider.NewOpenAIProvider(provider.OpenAIConfig{
			APIKey:  cfg.Summarizer.OpenAI.APIKey,
			Model:   cfg.Summarizer.OpenAI.Model,
			BaseURL: cfg.Summarizer.OpenAI.BaseURL,
		}),
		provider.NewLocalProvider(provider.LocalConfig{
			BaseURL: cfg.Summarizer.Local.BaseURL,
			Model:   cfg.Summarizer.Local.Model,
		}),
		provider.NewHeuristicProvider(),
	}
	dispatcher := summarize.NewDispatcher(logger, providers,
		summarize.WithChunkWords(cfg.Summarizer.ChunkWords),
		summarize.WithTimeout(time.Duration(cfg.Summarizer.TimeoutSeconds)*time.Second),
	)

	tracker := jira.NewClient(jira.ClientConfig{
		BaseURL: cfg.Jira.BaseURL,
		User:    cfg.Jira.User,
		Token:   cfg.Jira.Token,
		BoardID: cfg.Jira.BoardID,
	})

	bus := events.NewInMemoryBus()
	reg := registry.New()
	notifier := notify.NewEngine(logger, store, tracker, ledger,
		notify.NewSlackNotifier(cfg.Notify.SlackWebhookURL), bus)

	orchestrator := pipeline.New(logger, pipeline.Config{
		Source:     ingest.NewDirSource(transcriptDir),
		Dispatcher: dispatcher,
		Records:    records,
		Store:      store,
		Syncer:     jira.NewEngine(logger, tracker, store),
		Notifier:   notifier,
		Registry:   reg,
		Bus:        bus,
		Project:    cfg.Jira.Project,
		Mode:       summarize.Mode(cfg.Summarizer.Mode),
		Workers:    cfg.Workers,
		WindowDays: cfg.Notify.WindowDays,
	})

	srv := server.New(*cfg, version.Version, logger)
	srv.SetOrchestrator(orchestrator)
	srv.SetTaskStore(store)
	srv.SetRecordStore(records)
	srv.SetRegistry(reg)
	srv.SetTracker(tracker, cfg.Jira.Project)
	srv.SetBus(bus)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	interval := time.Duration(cfg.Notify.ScanIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	go notifier.Watch(ctx, interval, cfg.Notify.WindowDays)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig.String())
	case err := <-errCh:
		logger.Error("server failed", "error", err)
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		logger.Error("server stop error", "error", err)
	}
	logger.Info("shutdown complete")
}

func logLevel(name string) slog.Level {
	switch name {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
