// Entry point for the marketplace intelligence service: scraping pipelines,
// job queue workers, cron scheduler, and the admin API.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/appmetry/appmetry/internal/api"
	"github.com/appmetry/appmetry/internal/config"
	"github.com/appmetry/appmetry/internal/dbopen"
	"github.com/appmetry/appmetry/internal/fetch"
	"github.com/appmetry/appmetry/internal/mail"
	"github.com/appmetry/appmetry/internal/pipeline"
	"github.com/appmetry/appmetry/internal/queue"
	"github.com/appmetry/appmetry/internal/scheduler"
	"github.com/appmetry/appmetry/internal/store"
	_ "modernc.org/sqlite"
)

func main() {
	configPath := env("CONFIG_FILE", "")
	logLevel := env("LOG_LEVEL", "info")

	// Logging.
	var lvl slog.Level
	switch logLevel {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	if v := os.Getenv("BASE_URL"); v != "" {
		cfg.BaseURL = v
	}
	if v := os.Getenv("DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("ADDR"); v != "" {
		cfg.Addr = v
	}
	if cfg.BaseURL == "" {
		slog.Error("base_url is required (config file or BASE_URL)")
		os.Exit(1)
	}

	// Signal context.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	db, err := dbopen.Open(cfg.DBPath, dbopen.WithMkdirAll())
	if err != nil {
		slog.Error("open db", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := store.ApplySchema(db); err != nil {
		slog.Error("apply schema", "error", err)
		os.Exit(1)
	}

	st := store.NewStore(db)

	// Seed the tracked set from config. Additions only; disabling entries
	// stays a manual operation.
	for _, slug := range cfg.Tracking.Apps {
		if err := st.UpsertTrackedApp(ctx, slug, ""); err != nil {
			slog.Error("seed tracked app", "app", slug, "error", err)
			os.Exit(1)
		}
	}
	for _, kw := range cfg.Tracking.Keywords {
		if err := st.UpsertTrackedKeyword(ctx, kw); err != nil {
			slog.Error("seed tracked keyword", "keyword", kw, "error", err)
			os.Exit(1)
		}
	}

	fetcher := fetch.New(fetch.Config{
		Delay:          cfg.FetchDelay(),
		MaxRetries:     cfg.Fetch.MaxRetries,
		MaxConcurrency: cfg.Fetch.MaxConcurrency,
		Timeout:        cfg.FetchTimeout(),
	}, logger)

	var mailer mail.Sender
	if cfg.Mail.SMTPHost != "" {
		mailer = mail.NewSMTPSender(mail.SMTPConfig{
			Host:     cfg.Mail.SMTPHost,
			Port:     cfg.Mail.SMTPPort,
			Username: cfg.Mail.SMTPUser,
			Password: cfg.Mail.SMTPPass,
			From:     cfg.Mail.FromAddr,
		})
	}

	pipe := pipeline.New(fetcher, st, mailer, pipeline.Config{
		BaseURL:          cfg.BaseURL,
		Categories:       cfg.Tracking.Categories,
		DigestRecipients: cfg.Mail.Recipients,
	}, logger)

	q := queue.New(db, queue.Config{
		MaxAttempts:  cfg.Queue.MaxAttempts,
		RetryBackoff: cfg.RetryBackoff(),
	}, logger)

	// One worker per logical queue: interactive lookups never wait behind
	// a batch run.
	var wg sync.WaitGroup
	for _, name := range []string{queue.Background, queue.Interactive} {
		w := queue.NewWorker(q, st, pipe, name, cfg.PollInterval(), logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.Run(ctx)
		}()
	}

	sched := scheduler.New(q, st, logger)
	for _, sc := range cfg.Schedules {
		if err := sched.Register(scheduler.Schedule{Name: sc.Name, Cron: sc.Cron, JobType: sc.JobType}); err != nil {
			slog.Error("register schedule", "name", sc.Name, "error", err)
			os.Exit(1)
		}
	}
	sched.Start()
	defer sched.Stop()

	server := api.NewServer(st, q, logger)
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("api: listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("api: server stopped", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("api: shutdown", "error", err)
	}
	wg.Wait()
	slog.Info("stopped")
}

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
