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

	"sms-relay/internal/audit"
	"sms-relay/internal/auth"
	"sms-relay/internal/config"
	"sms-relay/internal/conversations"
	"sms-relay/internal/dispatch"
	"sms-relay/internal/events"
	"sms-relay/internal/httpapi"
	"sms-relay/internal/ingest"
	"sms-relay/internal/telephony"
	"sms-relay/internal/translation"
	"sms-relay/internal/volunteers"
	"sms-relay/pkg/logger"
	"sms-relay/pkg/tracing"
	"sms-relay/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := config.LoadDotEnv(); err != nil {
		slog.Error("env file load failed", "err", err)
		os.Exit(1)
	}
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	shutdownTracing, err := tracing.Setup(rootCtx, tracing.Config{
		Enabled:      cfg.Tracing.Enabled,
		Exporter:     cfg.Tracing.Exporter,
		OTLPEndpoint: cfg.Tracing.OTLPEndpoint,
		SampleRate:   cfg.Tracing.SampleRate,
		ServiceName:  "sms-relay",
		Environment:  cfg.App.Env,
	}, log)
	if err != nil {
		log.Error("tracing init failed", "err", err)
		os.Exit(1)
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

	// Domain wiring
	bus := events.NewRedisBus(rdb, events.DefaultChannel, log)
	store := events.NewNotifyingStore(conversations.NewPostgresStore(db), bus, log)
	auditor := audit.NewService(audit.NewPostgresRepo(db))

	model := translation.NewAnthropicClient(&http.Client{Timeout: cfg.Translation.Timeout}, translation.AnthropicConfig{
		BaseURL:   cfg.Translation.BaseURL,
		APIKey:    cfg.Translation.APIKey,
		Model:     cfg.Translation.Model,
		MaxTokens: cfg.Translation.MaxTokens,
	})
	gateway := translation.NewGateway(model, translation.NewLanguages(cfg.Translation.Languages), cfg.Translation.Timeout)

	carrier := telephony.NewTwilioClient(telephony.TwilioConfig{
		AccountSID: cfg.Twilio.AccountSID,
		AuthToken:  cfg.Twilio.AuthToken,
		BaseURL:    cfg.Twilio.APIBaseURL,
		Timeout:    cfg.Twilio.Timeout,
	})

	inbound := ingest.NewService(
		telephony.NewRequestValidator(cfg.Twilio.AuthToken),
		gateway,
		store,
		ingest.WithDeduper(ingest.NewRedisDeduper(rdb, cfg.Inbound.DedupeTTL)),
	)
	outbound := dispatch.NewService(store, gateway, carrier, auditor, dispatch.Config{
		MaxAttempts: cfg.Dispatch.MaxAttempts,
		BaseDelay:   cfg.Dispatch.BaseDelay,
		FromNumber:  cfg.Twilio.PhoneNumber,
	})

	handlers := httpapi.Handlers{
		Volunteers:    volunteers.NewService(volunteers.NewPostgresRepo(db), authManager, cfg.Presence.Timeout, volunteers.WithPublisher(bus)),
		Conversations: conversations.NewService(store, auditor),
		Dispatch:      outbound,
		Feed:          bus,
		Checks: map[string]func(ctx context.Context) error{
			"postgres": func(ctx context.Context) error { return utils.HealthCheck(ctx, db, time.Second) },
			"redis":    func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		},
	}
	webhook := telephony.TwilioSMSWebhookHandler{Ingest: inbound, PublicBaseURL: cfg.Twilio.WebhookBaseURL}

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerRoutes(r, handlers, webhook, auth.RequireAccessToken(authManager))

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Sends may spend several backoff periods in the carrier; /v1/events
		// is long-lived and keeps its own keep-alives.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
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
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error("tracing shutdown failed", "err", err)
	}
}
