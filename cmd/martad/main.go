package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"marta-relay/internal/cdr"
	"marta-relay/internal/clock"
	"marta-relay/internal/config"
	"marta-relay/internal/db"
	"marta-relay/internal/extract"
	"marta-relay/internal/httpapi"
	"marta-relay/internal/notify"
	"marta-relay/internal/realtime"
	"marta-relay/internal/session"
)

var version = "dev"

func main() {
	// A .env file is optional; real environment variables win.
	_ = godotenv.Load()

	cfgPath := flag.String("config", "/etc/martad.yaml", "config file path")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fatal("load config", err)
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)})))

	warnings, err := cfg.Validate()
	if err != nil {
		fatal("invalid config", err)
	}
	for _, w := range warnings {
		slog.Warn("config", "warning", w)
	}

	resolver, err := clock.NewResolver(cfg.TimeZone)
	if err != nil {
		fatal("time zone", err)
	}

	rootCtx, cancelRoot := context.WithCancel(context.Background())
	defer cancelRoot()

	deps := httpapi.Deps{Config: cfg, Version: version}
	var recorder session.Recorder
	if cfg.DBDSN != "" {
		pool, err := db.NewPool(rootCtx, cfg.DBDSN)
		if err != nil {
			fatal("db connect", err)
		}
		defer pool.Close()
		if err := cdr.EnsureSchema(rootCtx, pool); err != nil {
			fatal("db schema", err)
		}
		calls := cdr.NewRecorder(pool)
		recorder = calls
		deps.DB = pool
		deps.Calls = calls
	}

	dialer := &realtime.Dialer{
		URL:    cfg.OpenAI.RealtimeURL,
		Model:  cfg.OpenAI.RealtimeModel,
		APIKey: cfg.OpenAI.APIKey,
	}
	sessions, err := session.NewFactory(session.Config{
		BusinessName:    cfg.BusinessName,
		Voice:           cfg.OpenAI.Voice,
		TurnMode:        cfg.OpenAI.TurnMode,
		ReadyFallback:   cfg.OpenAI.ReadyFallback,
		OnModelLoss:     cfg.OpenAI.OnModelLoss,
		ReconnectDelay:  cfg.OpenAI.ReconnectDelay,
		FinalizeTimeout: cfg.FinalizeTimeout,
	}, session.Deps{
		Dial: func(ctx context.Context) (session.Conn, error) {
			conn, err := dialer.Dial(ctx)
			if err != nil {
				return nil, err
			}
			return conn, nil
		},
		Extractor: extract.NewOpenAI(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.ExtractionModel, &http.Client{Timeout: cfg.FinalizeTimeout}),
		Notifier:  notify.New(notify.NewTwilioSender(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken), cfg.Twilio.SMSFrom, cfg.Twilio.SMSTo),
		Recorder:  recorder,
		Clock:     resolver.Resolve,
		Logger:    slog.Default(),
	})
	if err != nil {
		fatal("session factory", err)
	}
	deps.Sessions = sessions

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           httpapi.NewRouter(deps),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return rootCtx },
	}

	go func() {
		slog.Info("martad listening", "addr", cfg.ListenAddr, "version", version, "business", cfg.BusinessName)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal("listen", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	slog.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.FinalizeTimeout+10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}
	// Hijacked media streams outlive Shutdown; ending the root context
	// makes each session finalize and report.
	cancelRoot()
	if err := sessions.Wait(ctx); err != nil {
		slog.Error("sessions did not finish", "error", err)
	}
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func fatal(msg string, err error) {
	slog.Error(msg, "error", err)
	os.Exit(1)
}
