package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"marta-relay/internal/clock"
)

// Config is the read-only per-process session configuration.
type Config struct {
	BusinessName    string
	Voice           string
	Language        string
	TurnMode        string
	ReadyFallback   time.Duration
	OnModelLoss     string
	ReconnectDelay  time.Duration
	FinalizeTimeout time.Duration
	// StartWait bounds how long a session whose model dial failed waits
	// for Twilio's start event before reporting.
	StartWait time.Duration
}

func (c *Config) applyDefaults() {
	if c.Language == "" {
		c.Language = "es"
	}
	if c.ReadyFallback <= 0 {
		c.ReadyFallback = time.Second
	}
	if c.OnModelLoss == "" {
		c.OnModelLoss = OnModelLossHangup
	}
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = 500 * time.Millisecond
	}
	if c.FinalizeTimeout <= 0 {
		c.FinalizeTimeout = 30 * time.Second
	}
	if c.StartWait <= 0 {
		c.StartWait = 2 * time.Second
	}
}

// Deps are the collaborators shared by every session.
type Deps struct {
	Dial      DialFunc
	Extractor Extractor
	Notifier  Notifier
	Recorder  Recorder
	Clock     func() clock.Context
	Logger    *slog.Logger
}

// Factory creates sessions and tracks the ones still running.
type Factory struct {
	cfg   Config
	deps  Deps
	turns TurnStrategy
	wg    sync.WaitGroup
}

func NewFactory(cfg Config, deps Deps) (*Factory, error) {
	if deps.Dial == nil || deps.Extractor == nil || deps.Notifier == nil {
		return nil, errors.New("session: dial, extractor and notifier are required")
	}
	switch cfg.OnModelLoss {
	case "", OnModelLossHangup, OnModelLossReconnectOnce:
	default:
		return nil, errors.New("session: unknown model loss policy " + cfg.OnModelLoss)
	}
	turns, err := NewTurnStrategy(cfg.TurnMode)
	if err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if deps.Clock == nil {
		deps.Clock = func() clock.Context { return clock.At(time.Now()) }
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Factory{cfg: cfg, deps: deps, turns: turns}, nil
}

// New builds a session around an accepted Twilio connection.
func (f *Factory) New(twilio Conn) *Session {
	return newSession(f.cfg, f.deps, f.turns, twilio)
}

// Serve runs a session for twilio and blocks until it is closed.
func (f *Factory) Serve(ctx context.Context, twilio Conn) error {
	f.wg.Add(1)
	defer f.wg.Done()
	return f.New(twilio).Run(ctx)
}

// Wait blocks until every session started by Serve has closed or ctx ends.
func (f *Factory) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		f.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
