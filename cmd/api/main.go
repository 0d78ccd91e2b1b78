package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/tuition-notify/internal/application/dispatch"
	"github.com/tuition-notify/internal/application/notification"
	"github.com/tuition-notify/internal/application/preference"
	"github.com/tuition-notify/internal/application/recipient"
	"github.com/tuition-notify/internal/config"
	jwtinfra "github.com/tuition-notify/internal/infrastructure/jwt"
	redisinfra "github.com/tuition-notify/internal/infrastructure/redis"
	"github.com/tuition-notify/internal/pkg/logging"
	"github.com/tuition-notify/internal/platform"
	transporthttp "github.com/tuition-notify/internal/transport/http"
	"github.com/tuition-notify/internal/transport/kafka"
)

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "No .env file found, reading from environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logging.Setup("info", false)
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	logging.Setup(cfg.LogLevel, cfg.Production())
	log.Info().Str("env", cfg.AppEnv).Str("store", cfg.Store).Msg("starting tuition-notify")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ── Storage ──────────────────────────────────────────────────────────────
	stores, err := platform.OpenStores(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open notification store")
	}

	// ── JWT (optional: without a public key only health checks are served) ───
	var jwtProvider *jwtinfra.Provider
	if p, err := jwtinfra.NewProvider(cfg); err == nil {
		jwtProvider = p
	} else {
		log.Warn().Err(err).Msg("JWT provider not available")
	}

	// ── Channels & dispatch ──────────────────────────────────────────────────
	channels := platform.BuildChannels(cfg)
	notifSvc := notification.NewService(stores.Notifications)

	deps := dispatch.Deps{
		Resolver:    recipient.NewResolver(stores.Users),
		Store:       notifSvc,
		Channels:    channels.Senders,
		TaskTimeout: cfg.Dispatch.TaskTimeout,
	}
	if cfg.Redis.URL != "" {
		rdb, err := redisinfra.Connect(ctx, cfg.Redis)
		if err != nil {
			log.Warn().Err(err).Msg("redis unavailable, duplicate events will be dispatched again")
		} else {
			defer rdb.Close()
			deps.Claimer = redisinfra.NewClaimer(rdb, cfg.Redis.ClaimTTL)
			stores.HealthChecks = withCheck(stores.HealthChecks, "redis", func(ctx context.Context) error {
				return rdb.Ping(ctx).Err()
			})
		}
	}
	runner := dispatch.NewRunner(dispatch.NewDispatcher(deps), cfg.Dispatch.Workers, cfg.Dispatch.QueueSize)
	runner.Start()

	prefDeps := preference.ServiceDeps{Users: stores.Users}
	if channels.Telegram != nil {
		prefDeps.Telegram = channels.Telegram
	}

	// ── Kafka (optional) ─────────────────────────────────────────────────────
	consumerDone := make(chan struct{})
	if len(cfg.Kafka.Brokers) > 0 {
		consumer, err := kafka.New(cfg.Kafka, runner)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create kafka consumer")
		}
		go func() {
			consumer.Start(ctx)
			close(consumerDone)
		}()
		log.Info().Strs("topics", cfg.Kafka.Topics).Msg("kafka consumer started")
	} else {
		close(consumerDone)
	}

	// ── HTTP ─────────────────────────────────────────────────────────────────
	router := transporthttp.NewRouter(cfg, &transporthttp.Deps{
		Notifications: notifSvc,
		Preferences:   preference.NewService(prefDeps),
		Runner:        runner,
		JWTProvider:   jwtProvider,
		HealthChecks:  stores.HealthChecks,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.AppPort).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// ── Graceful shutdown ────────────────────────────────────────────────────
	<-ctx.Done()
	log.Info().Msg("shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Dispatch.ShutdownGrace)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}
	<-consumerDone
	if err := runner.Stop(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("dispatch runner did not drain in time")
	}
	if err := stores.Close(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("store close error")
	}
	log.Info().Msg("tuition-notify stopped")
}

func withCheck(checks map[string]func(context.Context) error, name string, fn func(context.Context) error) map[string]func(context.Context) error {
	if checks == nil {
		checks = make(map[string]func(context.Context) error)
	}
	checks[name] = fn
	return checks
}
