package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"iocviewer/internal/config"
	"iocviewer/internal/feedclient"
	"iocviewer/internal/threat"
	"iocviewer/internal/tui"
	"iocviewer/internal/view"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, "iocviewer:", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, closeLog, err := newLogger(cfg.LogFile)
	if err != nil {
		return err
	}
	defer closeLog()
	slog.SetDefault(logger)

	client, err := feedclient.New(cfg.Endpoint,
		feedclient.WithHTTPClient(&http.Client{Timeout: cfg.RequestTimeout}),
		feedclient.WithRetry(cfg.MaxAttempts, 500*time.Millisecond),
		feedclient.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	ctrl, err := view.NewController(view.Options{
		Fetcher:       client,
		DefaultSource: cfg.DefaultSource,
		DebounceDelay: cfg.Debounce,
		Overscan:      cfg.Overscan,
		Logger:        logger,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		if err := ctrl.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("controller stopped", "err", err)
		}
	}()

	box, unsubscribe := tui.Attach(ctrl)
	defer unsubscribe()
	if err := ctrl.SelectSource(cfg.DefaultSource); err != nil {
		return err
	}

	logger.Info("starting viewer", "endpoint", cfg.Endpoint, "source", cfg.DefaultSource)
	model := tui.New(ctrl, box, threat.ListSources())
	_, err = tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion()).Run()
	return err
}

// newLogger writes to path, or discards when path is empty, so log output
// never lands on the alternate screen.
func newLogger(path string) (*slog.Logger, func(), error) {
	if path == "" {
		return slog.New(slog.NewTextHandler(io.Discard, nil)), func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}
	logger := slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return logger, func() { f.Close() }, nil
}
