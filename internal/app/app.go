// Package app wires configuration, storage, cache, and the click stream into
// the two runnable processes: the API server and the analytics consumer.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/httplog/v2"
	"golang.org/x/sync/errgroup"

	"github.com/linkcut/linkcut/internal/adapter/cache/redis"
	"github.com/linkcut/linkcut/internal/adapter/repository/postgres"
	"github.com/linkcut/linkcut/internal/adapter/stream/kafka"
	"github.com/linkcut/linkcut/internal/analytics"
	api "github.com/linkcut/linkcut/internal/api/http"
	"github.com/linkcut/linkcut/internal/config"
	"github.com/linkcut/linkcut/internal/service"
	pkgpostgres "github.com/linkcut/linkcut/pkg/postgres"
	pkgredis "github.com/linkcut/linkcut/pkg/redis"
)

// NewLogger builds the request logger the router and services share. Dev
// environments get concise text output, everything else structured JSON.
func NewLogger(env string) *httplog.Logger {
	opts := httplog.Options{
		LogLevel: slog.LevelInfo,
		JSON:     true,
	}

	if env == config.EnvDev {
		opts.LogLevel = slog.LevelDebug
		opts.JSON = false
		opts.Concise = true
	}

	return httplog.NewLogger("linkcut", opts)
}

// RunServer starts the API server: shorten, redirect, deactivate, and stats
// endpoints backed by Postgres with the Redis cache and the click emitter.
// It blocks until ctx is canceled or a component fails.
func RunServer(ctx context.Context, cfg *config.Config) error {
	const op = "app.RunServer"

	logger := NewLogger(cfg.Env)

	db, err := pkgpostgres.New(
		ctx,
		cfg.Postgres.DSN(),
		pkgpostgres.WithConnMaxIdleTime(cfg.Postgres.ConnMaxIdleTime),
		pkgpostgres.WithConnMaxLifetime(cfg.Postgres.ConnMaxLifetime),
		pkgpostgres.WithMaxIdleConns(cfg.Postgres.MaxIdleConns),
		pkgpostgres.WithMaxOpenConns(cfg.Postgres.MaxOpenConns),
	)
	if err != nil {
		return fmt.Errorf("%s: failed to connect to database: %w", op, err)
	}
	defer db.Close()

	if err := pkgpostgres.RunMigrations("file://migrations", cfg.Postgres.DSN()); err != nil {
		return fmt.Errorf("%s: failed to run migrations: %w", op, err)
	}

	redisClient, err := pkgredis.New(ctx, cfg.Redis.Addr(), cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return fmt.Errorf("%s: failed to connect to redis: %w", op, err)
	}
	defer redisClient.Close()

	writer := kafka.NewWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	defer writer.Close()

	emitter := kafka.NewClickEmitter(writer, logger.Logger)
	defer emitter.Close()

	urlRepo := postgres.NewURLRepository(db)
	clickRepo := postgres.NewClickRepository(db)
	urlCache := redis.NewURLCache(redisClient, cfg.Redis.URLTTL)

	urlSvc := service.NewURLService(urlRepo, clickRepo, urlCache, emitter, logger.Logger, cfg.ShortCodeLength)

	server := &http.Server{
		Addr:           cfg.HTTPServer.Addr(),
		Handler:        api.NewRouter(logger, urlSvc),
		ReadTimeout:    cfg.HTTPServer.ReadTimeout,
		WriteTimeout:   cfg.HTTPServer.WriteTimeout,
		IdleTimeout:    cfg.HTTPServer.IdleTimeout,
		MaxHeaderBytes: cfg.HTTPServer.MaxHeaderBytes,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error

		switch cfg.Env {
		case config.EnvProd:
			err = server.ListenAndServeTLS(cfg.HTTPServer.CertFile, cfg.HTTPServer.KeyFile)
		default:
			err = server.ListenAndServe()
		}

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("%s: server error occurred: %w", op, err)
		}

		return nil
	})

	g.Go(func() error {
		<-ctx.Done()

		if err := server.Shutdown(context.Background()); err != nil {
			return fmt.Errorf("%s: failed to shutdown server: %w", op, err)
		}

		return nil
	})

	return g.Wait()
}

// RunConsumer starts the analytics consumer: it reads click events from the
// stream, persists them, and maintains the real-time counters. It blocks
// until ctx is canceled or the consumer fails.
func RunConsumer(ctx context.Context, cfg *config.Config) error {
	const op = "app.RunConsumer"

	logger := NewLogger(cfg.Env)

	db, err := pkgpostgres.New(
		ctx,
		cfg.Postgres.DSN(),
		pkgpostgres.WithConnMaxIdleTime(cfg.Postgres.ConnMaxIdleTime),
		pkgpostgres.WithConnMaxLifetime(cfg.Postgres.ConnMaxLifetime),
		pkgpostgres.WithMaxIdleConns(cfg.Postgres.MaxIdleConns),
		pkgpostgres.WithMaxOpenConns(cfg.Postgres.MaxOpenConns),
	)
	if err != nil {
		return fmt.Errorf("%s: failed to connect to database: %w", op, err)
	}
	defer db.Close()

	redisClient, err := pkgredis.New(ctx, cfg.Redis.Addr(), cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return fmt.Errorf("%s: failed to connect to redis: %w", op, err)
	}
	defer redisClient.Close()

	reader := kafka.NewReader(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.ConsumerGroup)
	defer reader.Close()

	aggregator := analytics.NewAggregator(
		postgres.NewClickRepository(db),
		redis.NewClickCounters(redisClient),
		logger.Logger,
	)

	consumer := kafka.NewClickConsumer(reader, aggregator, logger.Logger)

	if err := consumer.Run(ctx); err != nil {
		return fmt.Errorf("%s: consumer error occurred: %w", op, err)
	}

	return nil
}
