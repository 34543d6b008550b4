package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"github.com/sandeepkv93/multitimer/internal/backend"
	"github.com/sandeepkv93/multitimer/internal/config"
	"github.com/sandeepkv93/multitimer/internal/persist"
	"github.com/sandeepkv93/multitimer/internal/storage"
	"github.com/sandeepkv93/multitimer/internal/tracker"
	"github.com/sandeepkv93/multitimer/internal/update"
)

var (
	_ tracker.Repository = (*storage.SQLiteRepository)(nil)
	_ tracker.Backend    = (*backend.Client)(nil)
	_ update.Tracker     = (*tracker.Controller)(nil)
	_ reportSource       = (*tracker.Controller)(nil)
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	global := flag.NewFlagSet("multitimer", flag.ContinueOnError)
	global.SetOutput(stderr)
	configPath := global.String("config", "", "path to config.yaml")
	envPath := global.String("env", ".env", "path to a .env file")
	global.Usage = func() {
		fmt.Fprintln(stderr, "usage: multitimer [--config FILE] [--env FILE] [status|history|insights] [flags]")
		global.PrintDefaults()
	}
	if err := global.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if err := godotenv.Load(*envPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(stderr, "multitimer: load %s: %v\n", *envPath, err)
		return 1
	}
	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "multitimer: %v\n", err)
		return 1
	}

	log, closeLog, err := openLogger(cfg)
	if err != nil {
		fmt.Fprintf(stderr, "multitimer: %v\n", err)
		return 1
	}
	defer closeLog()

	repo, err := storage.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Error("open database", "path", cfg.DBPath, "err", err)
		fmt.Fprintf(stderr, "multitimer: open database: %v\n", err)
		return 1
	}
	defer repo.Close()

	writes := persist.NewWriter(log, 5*time.Second)
	writes.Start()
	defer writes.Stop()

	ctrl := tracker.New(tracker.Config{
		Repo:          repo,
		Backend:       backend.NewClient(cfg.APIBaseURL, cfg.AuthToken, backend.WithLogger(log), backend.WithTimeout(cfg.RequestTimeout)),
		Writes:        writes,
		Location:      cfg.Location(),
		Logger:        log,
		UserID:        resolveUserID(cfg, log),
		RetentionDays: cfg.RetentionDays,
	})
	ctx := context.Background()
	ctrl.Rehydrate(ctx)

	var code int
	rest := global.Args()
	if len(rest) == 0 {
		code = runTUI(ctx, ctrl, cfg, log, stderr)
	} else {
		code = runReport(ctrl, rest[0], rest[1:], stdout, stderr)
	}

	flushCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := writes.Flush(flushCtx); err != nil {
		log.Error("flush pending writes", "err", err)
	}
	return code
}

func loadConfig(path string) (config.RuntimeConfig, error) {
	cfg := config.DefaultRuntimeConfig()
	if path == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return config.RuntimeConfigFromEnv(cfg), nil
		}
		path = p
	}
	cfg, err := config.LoadFile(path, cfg)
	if err != nil {
		return cfg, err
	}
	return config.RuntimeConfigFromEnv(cfg), nil
}

func openLogger(cfg config.RuntimeConfig) (*slog.Logger, func(), error) {
	path := cfg.LogPath
	if filepath.Base(path) == path {
		path = filepath.Join(filepath.Dir(cfg.DBPath), path)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	log := slog.New(slog.NewJSONHandler(f, &slog.HandlerOptions{Level: cfg.Level()}))
	return log, func() { _ = f.Close() }, nil
}

func resolveUserID(cfg config.RuntimeConfig, log *slog.Logger) int64 {
	if cfg.UserID > 0 || cfg.AuthToken == "" {
		return cfg.UserID
	}
	id, err := backend.UserIDFromToken(cfg.AuthToken)
	if err != nil {
		log.Warn("no user id in auth token, backend lookups disabled", "err", err)
		return 0
	}
	return id
}

func runTUI(ctx context.Context, ctrl *tracker.Controller, cfg config.RuntimeConfig, log *slog.Logger, stderr io.Writer) int {
	go func() {
		refreshCtx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout)
		defer cancel()
		if err := ctrl.RefreshFromBackend(refreshCtx); err != nil {
			log.Warn("refresh from backend", "err", err)
		}
	}()

	m := update.NewModel(ctrl, update.Options{
		TickInterval: cfg.TickInterval,
		OpTimeout:    3 * cfg.RequestTimeout,
	})
	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		log.Error("ui stopped", "err", err)
		fmt.Fprintf(stderr, "multitimer failed: %v\n", err)
		return 1
	}
	return 0
}
