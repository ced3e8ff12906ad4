package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/Shivanand-hulikatti/tigertix/internal/auth"
	"github.com/Shivanand-hulikatti/tigertix/internal/cache"
	"github.com/Shivanand-hulikatti/tigertix/internal/config"
	"github.com/Shivanand-hulikatti/tigertix/internal/handler"
	"github.com/Shivanand-hulikatti/tigertix/internal/notify"
	"github.com/Shivanand-hulikatti/tigertix/internal/purchase"
	"github.com/Shivanand-hulikatti/tigertix/internal/service"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
}

func runServe(ctx context.Context, opts *rootOptions) error {
	cfg, log, err := opts.load()
	if err != nil {
		return err
	}
	if err := cfg.RequireAuth(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── 1. Connect to the store ──────────────────────────────────────────
	b, err := openBackend(ctx, cfg.DB, log, true)
	if err != nil {
		return err
	}
	defer b.close()
	log.Info().Str("driver", cfg.DB.Driver).Msg("connected to database")

	// ── 2. Optional read cache and purchase notifications ───────────────
	var (
		events      service.EventStore = b.events
		engineOpts                     = []purchase.Option{purchase.WithLogger(log.With().Str("component", "purchase").Logger())}
	)

	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis unreachable, reads fall through until it recovers")
		}
		cached := cache.NewEvents(b.events, rdb, cfg.Redis.TTL, log.With().Str("component", "cache").Logger())
		events = cached
		engineOpts = append(engineOpts, purchase.WithCommitHook("cache", func(ctx context.Context, res *purchase.Result) error {
			return cached.Invalidate(ctx, res.Purchase.EventID)
		}))
		log.Info().Str("addr", cfg.Redis.Addr).Msg("event cache enabled")
	}

	pub, err := openPublisher(ctx, cfg.Broker, log)
	if err != nil {
		return err
	}
	defer pub.Close()
	if cfg.Broker.Kind != config.BrokerNone && cfg.Broker.Kind != "" {
		engineOpts = append(engineOpts, purchase.WithAsyncCommitHook("notify", notify.Hook(notify.Counting{Publisher: pub})))
		log.Info().Str("broker", cfg.Broker.Kind).Msg("purchase notifications enabled")
	}

	// ── 3. Wire up layers ────────────────────────────────────────────────
	engine := purchase.NewEngine(b.purchases, engineOpts...)
	eventSvc := service.NewEventService(events)
	bookingSvc := service.NewBookingService(engine, b.purchases)

	router := handler.NewRouter(handler.Router{
		Events:        handler.NewEventHandler(eventSvc, log),
		Booking:       handler.NewBookingHandler(bookingSvc),
		Authenticate:  auth.NewVerifier(cfg.Auth.JWTSecret, log).Middleware,
		Ping:          b.ping,
		Log:           log,
		AllowedOrigin: cfg.Server.AllowedOrigin,
	})

	// ── 4. Start server with graceful shutdown ────────────────────────────
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	// Let in-flight notifications finish before the publisher closes.
	engine.Wait()
	log.Info().Msg("server stopped")
	return nil
}

func openPublisher(ctx context.Context, cfg config.BrokerConfig, log zerolog.Logger) (notify.Publisher, error) {
	switch cfg.Kind {
	case config.BrokerKafka:
		return notify.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic), nil
	case config.BrokerAMQP:
		return notify.DialAMQP(ctx, cfg.AMQPURL, log)
	default:
		return notify.Nop{}, nil
	}
}
