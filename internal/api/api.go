package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ah3edsaad3-bit/clinic-bot/internal/bot"
	"github.com/ah3edsaad3-bit/clinic-bot/internal/messenger"
	"github.com/ah3edsaad3-bit/clinic-bot/internal/relay"
	"github.com/ah3edsaad3-bit/clinic-bot/internal/scheduler"
	"github.com/ah3edsaad3-bit/clinic-bot/internal/session"
	"github.com/ah3edsaad3-bit/clinic-bot/internal/store"
)

// Defaults for the HTTP server and recurring jobs.
const (
	DefaultAddr            = ":8080"
	DefaultSweepSchedule   = "*/5 * * * *"
	DefaultShutdownTimeout = 10 * time.Second
)

// Opts holds configuration options for the API server.
type Opts struct {
	Addr            string
	VerifyToken     string
	AppSecret       string
	SweepSchedule   string
	SummarySchedule string
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) {
		if addr != "" {
			o.Addr = addr
		}
	}
}

// WithVerifyToken sets the Meta webhook verify token.
func WithVerifyToken(token string) Option {
	return func(o *Opts) { o.VerifyToken = token }
}

// WithAppSecret enables webhook signature verification with the given app
// secret.
func WithAppSecret(secret string) Option {
	return func(o *Opts) { o.AppSecret = secret }
}

// WithSweepSchedule sets the cron expression for the session sweep.
func WithSweepSchedule(expr string) Option {
	return func(o *Opts) {
		if expr != "" {
			o.SweepSchedule = expr
		}
	}
}

// WithSummarySchedule enables the daily booking summary at the given cron
// expression.
func WithSummarySchedule(expr string) Option {
	return func(o *Opts) { o.SummarySchedule = expr }
}

// Server wires the webhook, the conversation engine and the operator
// endpoints into one HTTP server with its recurring jobs.
type Server struct {
	engine   *bot.Engine
	sessions *session.Manager
	store    store.Store
	notifier relay.Notifier
	webhook  *messenger.WebhookHandler
	sched    *scheduler.Scheduler
	httpSrv  *http.Server
	opts     Opts
}

// NewServer creates the API server.
func NewServer(engine *bot.Engine, sessions *session.Manager, st store.Store, notifier relay.Notifier, opts ...Option) *Server {
	cfg := Opts{
		Addr:          DefaultAddr,
		SweepSchedule: DefaultSweepSchedule,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	s := &Server{
		engine:   engine,
		sessions: sessions,
		store:    st,
		notifier: notifier,
		opts:     cfg,
	}
	s.webhook = messenger.NewWebhookHandler(cfg.VerifyToken, cfg.AppSecret, func(msg messenger.ParsedMessage) {
		engine.HandleMessage(context.Background(), msg)
	})

	mux := http.NewServeMux()
	s.registerRoutes(mux)
	s.httpSrv = &http.Server{
		Addr:    cfg.Addr,
		Handler: mux,
	}
	return s
}

// registerRoutes attaches all HTTP handlers to the mux.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/", s.rootHandler)
	mux.HandleFunc("/webhook", s.webhookHandler)
	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/sessions", s.sessionsHandler)
	mux.HandleFunc("/bookings", s.bookingsHandler)
}

// Run starts the recurring jobs and serves HTTP until ctx is cancelled, then
// shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.sched = scheduler.NewScheduler()
	defer s.sched.Stop()

	if err := s.sched.AddJob(s.opts.SweepSchedule, func() {
		removed := s.sessions.Sweep()
		slog.Debug("Session sweep completed", "removed", removed)
	}); err != nil {
		return fmt.Errorf("failed to schedule session sweep: %w", err)
	}

	if s.opts.SummarySchedule != "" && s.notifier != nil {
		if err := s.sched.AddJob(s.opts.SummarySchedule, s.sendDailySummary); err != nil {
			return fmt.Errorf("failed to schedule daily summary: %w", err)
		}
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server listening", "addr", s.opts.Addr)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("API server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
	defer cancel()
	return s.httpSrv.Shutdown(shutdownCtx)
}

// sendDailySummary relays the day's booking count to the operator.
func (s *Server) sendDailySummary() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	now := time.Now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	count, err := s.store.CountBookingsSince(ctx, midnight)
	if err != nil {
		slog.Error("Daily summary booking count failed", "error", err)
		return
	}

	text := fmt.Sprintf("ملخص اليوم 🦷: %d حجز جديد", count)
	if err := s.notifier.Notify(ctx, text); err != nil {
		slog.Error("Daily summary relay failed", "error", err)
		return
	}
	slog.Info("Daily summary sent", "bookings", count)
}
