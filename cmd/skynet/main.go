package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/pauljones0/skynet-bot/internal/actions"
	"github.com/pauljones0/skynet-bot/internal/captcha"
	"github.com/pauljones0/skynet-bot/internal/config"
	"github.com/pauljones0/skynet-bot/internal/notifier"
	"github.com/pauljones0/skynet-bot/internal/scheduler"
	"github.com/pauljones0/skynet-bot/internal/scraper"
	"github.com/pauljones0/skynet-bot/internal/session"
	"github.com/pauljones0/skynet-bot/internal/storage"
)

const (
	eventLogName = "bot_log.out"
	crashLogName = "crash_log.out"
)

func main() {
	debug := flag.Bool("debug", false, "start immediately instead of after a random delay")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Critical error loading configuration", "error", err)
		os.Exit(1)
	}

	eventLog, crashLog, err := openLogs(cfg.LogDir)
	if err != nil {
		slog.Error("Critical error opening log files", "error", err)
		os.Exit(1)
	}
	defer eventLog.Close()
	defer crashLog.Close()
	slog.SetDefault(slog.New(slog.NewTextHandler(io.MultiWriter(os.Stdout, eventLog), nil)))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	jitter := startupJitter
	if *debug {
		jitter = func() time.Duration { return 0 }
	}

	slog.Info("Starting skynet bot", "debug", *debug, "session_store", cfg.SessionStore)
	supervise(ctx, func(ctx context.Context) error { return run(ctx, cfg) }, crashLog, jitter)
	slog.Info("Bot stopped.")
}

func openLogs(dir string) (eventLog, crashLog *os.File, err error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	flags := os.O_CREATE | os.O_WRONLY | os.O_APPEND
	eventLog, err = os.OpenFile(filepath.Join(dir, eventLogName), flags, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open event log: %w", err)
	}
	crashLog, err = os.OpenFile(filepath.Join(dir, crashLogName), flags, 0o644)
	if err != nil {
		eventLog.Close()
		return nil, nil, fmt.Errorf("failed to open crash log: %w", err)
	}
	return eventLog, crashLog, nil
}

// startupJitter spreads restarts over 1 to 301 seconds.
func startupJitter() time.Duration {
	return time.Duration(1+rand.IntN(301)) * time.Second
}

// run builds the whole stack from scratch and drives it until ctx is done or
// a tick fails.
func run(ctx context.Context, cfg *config.Config) error {
	store, err := storage.Open(ctx, storage.Options{
		Backend:         cfg.SessionStore,
		Dir:             cfg.SessionDir,
		SQLitePath:      cfg.SQLitePath,
		ProjectID:       cfg.ProjectID,
		CredentialsFile: cfg.FirestoreCredentialsFile,
		SessionID:       cfg.SessionID,
	})
	if err != nil {
		return fmt.Errorf("failed to open session store: %w", err)
	}
	defer store.Close()

	var providers []captcha.Provider
	if cfg.AntigateKey != "" {
		providers = append(providers, captcha.NewAntiCaptcha(cfg.AntigateKey, cfg.AntigateURL))
	}
	if cfg.RucaptchaKey != "" {
		providers = append(providers, captcha.NewRuCaptcha(cfg.RucaptchaKey, cfg.RucaptchaURL, cfg.RucaptchaMaxPolls))
	}
	if len(providers) == 0 {
		slog.Warn("No captcha provider configured, challenges will fail")
	}
	solver := captcha.NewResolver(cfg.BaseURL, providers...)

	parser := scraper.New(scraper.LoadConfig())
	manager, err := session.New(session.Config{
		BaseURL:      cfg.BaseURL,
		LoginURL:     cfg.LoginURL,
		Username:     cfg.Username,
		Password:     cfg.Password,
		RequestDelay: cfg.RequestDelay,
		ProxyURL:     cfg.ProxyURL,
	}, store, solver, parser)
	if err != nil {
		return fmt.Errorf("failed to create session manager: %w", err)
	}
	if err := manager.Init(ctx); err != nil {
		return fmt.Errorf("failed to initialize session: %w", err)
	}

	bot := actions.New(manager, solver, notifier.New(manager), parser, cfg)
	sched := scheduler.New(bot, scheduler.NewGate(scheduler.DefaultCooldowns), scheduler.Options{
		TickInterval:        cfg.TickInterval,
		AwakeFromHour:       cfg.AwakeFromHour,
		AwakeToHour:         cfg.AwakeToHour,
		StatHour:            cfg.StatHour,
		RandomResharePeriod: cfg.RandomResharePeriod,
	})
	return sched.Run(ctx)
}
