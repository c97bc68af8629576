package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"focus-flow/app"
	"focus-flow/assist"
	"focus-flow/config"
	"focus-flow/focus"
	"focus-flow/store"
	"focus-flow/tui"
)

// env is everything a command needs to work on the saved state.
type env struct {
	cfg     *config.Config
	session *app.Session
	logger  *slog.Logger
	// status collects recovery notes from opening the store
	status  string
	logFile *os.File
	feed    tui.FocusFeed
}

func (e *env) Close() error {
	err := e.session.Close()
	if e.logFile != nil {
		err = errors.Join(err, e.logFile.Close())
	}
	return err
}

// openEnv loads config, opens the store and builds the session. In
// interactive mode logs go to the configured file and cues ring the bell.
func openEnv(ctx context.Context, cmd *cli.Command, interactive bool) (*env, error) {
	configPath := cmd.String("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", configPath, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", configPath, err)
	}

	e := &env{cfg: cfg}
	e.logger, e.logFile, err = newLogger(cfg.Log, cmd.Bool("debug"), interactive)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(e.logger)

	kv, openStatus, err := store.Open(cfg.Storage)
	if err != nil {
		e.closeLog()
		return nil, fmt.Errorf("open store: %w", err)
	}
	state, loadStatus, err := store.LoadWithRecovery(kv, e.logger)
	if err != nil {
		_ = kv.Close()
		e.closeLog()
		return nil, fmt.Errorf("load state: %w", err)
	}
	e.status = joinStatus(openStatus, loadStatus)

	assistant, err := assist.New(ctx, assist.Config{
		APIKey:  cfg.Assistant.APIKey,
		Model:   cfg.Assistant.Model,
		Timeout: cfg.Assistant.Timeout,
	}, e.logger)
	if err != nil {
		e.logger.Warn("assistant unavailable, using fallback messages", "error", err)
		assistant = assist.Fallback{}
	}

	engineOpts := []focus.Option{
		focus.WithLogger(e.logger),
		focus.WithDurations(focus.Durations{
			Work:    time.Duration(cfg.Focus.WorkMinutes) * time.Minute,
			Break:   time.Duration(cfg.Focus.BreakMinutes) * time.Minute,
			MinWork: time.Duration(cfg.Focus.MinWorkMinutes) * time.Minute,
			MaxWork: time.Duration(cfg.Focus.MaxWorkMinutes) * time.Minute,
		}),
	}
	if interactive {
		e.feed = tui.NewFocusFeed()
		engineOpts = append(engineOpts, focus.WithCues(bellCues()), focus.WithObserver(e.feed.Observe))
	}

	e.session = app.NewSession(state, kv,
		app.WithAssistant(assistant),
		app.WithEngine(focus.New(engineOpts...)),
		app.WithDailyLimit(cfg.Tasks.DailyLimit),
		app.WithLogger(e.logger),
	)
	return e, nil
}

func (e *env) closeLog() {
	if e.logFile != nil {
		_ = e.logFile.Close()
	}
}

// newLogger writes to the log file in interactive mode so the terminal stays
// clean. One-shot commands log warnings to stderr.
func newLogger(cfg config.Log, debug, interactive bool) (*slog.Logger, *os.File, error) {
	level, err := config.ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}
	if debug {
		level = slog.LevelDebug
	}

	if !interactive {
		if !debug && level < slog.LevelWarn {
			level = slog.LevelWarn
		}
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})), nil, nil
	}

	if cfg.File == "" {
		return slog.New(slog.NewTextHandler(io.Discard, nil)), nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: level})), f, nil
}

func joinStatus(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "; ")
}
