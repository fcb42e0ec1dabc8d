package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"reflectcall-platform/internal/attempt"
	"reflectcall-platform/internal/audit"
	"reflectcall-platform/internal/auth"
	"reflectcall-platform/internal/calls"
	"reflectcall-platform/internal/config"
	"reflectcall-platform/internal/dispatch"
	"reflectcall-platform/internal/httpapi"
	"reflectcall-platform/internal/journal"
	"reflectcall-platform/internal/prompts"
	"reflectcall-platform/internal/queue"
	"reflectcall-platform/internal/reporting"
	"reflectcall-platform/internal/schedule"
	"reflectcall-platform/internal/session"
	"reflectcall-platform/internal/telephony"
	"reflectcall-platform/pkg/logger"
	"reflectcall-platform/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
)

const liveCallSlotKey = "reflectcall:live_calls"

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	// Core services.
	callQueue, err := queue.NewRedisQueue(rdb, "reflectcall:dispatch")
	if err != nil {
		log.Error("queue init failed", "err", err)
		os.Exit(1)
	}
	attemptRepo := attempt.NewPostgresRepo(db)
	attempts := attempt.NewService(attemptRepo, callQueue)
	sessions := session.NewMemoryStore()
	entries := journal.NewPostgresStore(db)
	journalSvc := journal.NewService(entries)
	auditSvc := audit.NewService(audit.NewMemoryRepo())
	promptProvider := prompts.NewMemoryProvider(defaultPrompts())
	windowProvider := newEnvWindowProvider()
	directory := dispatch.NewMemoryDirectory()

	// Telephony plane.
	provider := telephony.NewTwilioProvider(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken)
	hub := telephony.NewChannelHub(provider)
	hub.Recording = &telephony.RecordParams{
		SilenceTimeoutSeconds: int(cfg.Call.SilenceThreshold.Seconds()),
		MaxLengthSeconds:      int(cfg.Call.CaptureTimeout.Seconds()),
		CallbackURL:           cfg.Twilio.RecordingCallbackURL,
	}
	registry := calls.NewRegistry()

	orch := calls.NewOrchestrator(calls.OrchestratorDeps{
		Attempts:    attempts,
		Sessions:    sessions,
		Prompts:     promptProvider,
		Journal:     journalSvc,
		Audit:       auditSvc,
		Transcriber: calls.SegmentTranscriber{},
		Registry:    registry,
		Policy: calls.Policy{
			CaptureTimeout: cfg.Call.CaptureTimeout,
			IdleTimeout:    cfg.Call.IdleTimeout,
			RepromptLimit:  cfg.Call.RepromptLimit,
		},
		Logger: log,
	})

	dispatcher := dispatch.NewDispatcher(dispatch.DispatcherDeps{
		Attempts:  attempts,
		Queue:     callQueue,
		Provider:  provider,
		Orch:      orch,
		Opener:    hub,
		Directory: directory,
		Slots:     dispatch.NewRedisSlotLimiter(rdb, liveCallSlotKey, cfg.Call.MaxLiveCalls, cfg.Call.IdleTimeout*2),
		Audit:     auditSvc,
		Policy: dispatch.RetryPolicy{
			MaxRetries: cfg.Call.MaxRetries,
			Mode:       cfg.Call.BackoffMode,
			BaseDelay:  cfg.Call.BackoffBase,
		},
		Config: dispatch.Config{
			FromNumber:        cfg.Twilio.FromNumber,
			StatusCallbackURL: cfg.Twilio.StatusCallbackURL,
		},
		Logger: log,
	})

	planner := dispatch.NewPlanner(schedule.NewResolver(windowProvider), attempts, directory, auditSvc, log)

	go planner.RunLoop(rootCtx, cfg.Call.DispatchInterval)
	go dispatcher.RunLoop(rootCtx, cfg.Call.DispatchInterval)

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	handlers := httpapi.Handlers{
		Auth:      authManager,
		Attempts:  attempts,
		Sessions:  sessions,
		Entries:   entries,
		Reporting: reporting.NewService(reporting.NewStoreRepo(attemptRepo, sessions)),
		Live:      registry,
		Audit:     auditSvc,
	}
	registerRoutes(r, handlers, dispatcher, hub, auth.RequireAccessToken(authManager))

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}

	_ = logger.ShutdownFlush(shutdownCtx, 2*time.Second)
}

// defaultPrompts is the fallback interview used until per-user templates
// have a persistence story.
func defaultPrompts() []session.Prompt {
	return []session.Prompt{
		{ID: "highlight", Text: "What stood out about your day?"},
		{ID: "gratitude", Text: "What are you grateful for today?"},
		{ID: "rating", Text: "On a scale from minus two to plus two, how was your day?", IsRating: true},
	}
}

// envWindowProvider serves one shared recurring window until per-user
// window persistence lands. Every weekday evening, 19:00 to 21:00.
type envWindowProvider struct {
	cfg schedule.Config
}

func newEnvWindowProvider() *envWindowProvider {
	rec := make(map[time.Weekday][]schedule.ClockSpan)
	for d := time.Sunday; d <= time.Saturday; d++ {
		rec[d] = []schedule.ClockSpan{{StartMinute: 19 * 60, EndMinute: 21 * 60}}
	}
	return &envWindowProvider{cfg: schedule.Config{Recurring: rec}}
}

func (p *envWindowProvider) WindowConfig(ctx context.Context, userID string) (schedule.Config, error) {
	return p.cfg, nil
}
