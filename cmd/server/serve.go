package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/and161185/userauth/internal/cache"
	"github.com/and161185/userauth/internal/config"
	pkgcrypto "github.com/and161185/userauth/internal/crypto"
	"github.com/and161185/userauth/internal/limiter"
	"github.com/and161185/userauth/internal/metrics"
	"github.com/and161185/userauth/internal/migrate"
	"github.com/and161185/userauth/internal/repository"
	"github.com/and161185/userauth/internal/repository/memory"
	"github.com/and161185/userauth/internal/repository/postgres"
	httpserver "github.com/and161185/userauth/internal/server/http"
	"github.com/and161185/userauth/internal/service"
	"github.com/and161185/userauth/internal/token"
)

var migrateUp = migrate.Up

func newLogger(dev bool) (*zap.Logger, error) {
	if dev {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// app holds the wired handler and the resources to release on shutdown.
type app struct {
	handler http.Handler
	closers []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// build wires store, cache, limiter and services according to cfg.
func build(ctx context.Context, cfg *config.Config, log *zap.Logger, reg *prometheus.Registry) (*app, error) {
	a := &app{}
	fail := func(err error) (*app, error) {
		a.close()
		return nil, err
	}

	var (
		users  repository.UserRepository
		lim    limiter.Limiter
		health func(context.Context) error
	)
	limSet := limiter.Settings{Window: cfg.Limiter.Window, MaxFails: cfg.Limiter.MaxFails, BlockFor: cfg.Limiter.BlockFor}

	switch cfg.Store.Driver {
	case config.DriverPostgres:
		if cfg.Store.Migrate {
			if err := migrateUp(ctx, cfg.Store.DSN, log); err != nil {
				return fail(fmt.Errorf("migrate up: %w", err))
			}
		}
		db, err := postgres.New(ctx, cfg.Store.DSN, cfg.Store.MaxConns)
		if err != nil {
			return fail(fmt.Errorf("connect postgres: %w", err))
		}
		a.closers = append(a.closers, db.Close)
		users = postgres.NewUserRepo(db)
		lim = limiter.NewPGWithQuerier(db.Pool, limSet)
		health = db.Ping
	default:
		users = memory.NewUserRepo()
		lim = limiter.NewMemory(limiter.DefaultMemorySize, limSet)
	}

	var ic cache.IdentityCache
	switch cfg.Cache.Backend {
	case config.BackendRedis:
		rc, err := cache.DialRedis(ctx, cfg.Cache.RedisAddr, cfg.Cache.RedisPassword, cfg.Cache.RedisDB)
		if err != nil {
			return fail(fmt.Errorf("connect redis: %w", err))
		}
		a.closers = append(a.closers, func() { _ = rc.Close() })
		ic = rc
	default:
		mc, err := cache.NewMemory(cfg.Cache.Size)
		if err != nil {
			return fail(err)
		}
		ic = mc
	}

	algo, err := pkgcrypto.ParseAlgorithm(cfg.Auth.HashAlgo)
	if err != nil {
		return fail(err)
	}
	hasher := pkgcrypto.NewHasher(
		pkgcrypto.WithAlgorithm(algo),
		pkgcrypto.WithBcryptCost(cfg.Auth.BcryptCost),
		pkgcrypto.WithArgonParams(cfg.Auth.ArgonTime, cfg.Auth.ArgonMemory, cfg.Auth.ArgonThreads),
		pkgcrypto.WithConcurrency(cfg.Auth.HashConcurrency),
	)
	tokens, err := token.New([]byte(cfg.Auth.Secret))
	if err != nil {
		return fail(err)
	}

	m := metrics.New(reg)
	authSvc := service.NewAuthService(users, hasher, tokens, cfg.Auth.AccessTTL, lim, ic, log)
	userSvc := service.NewUserService(users, ic, cfg.Cache.TTL, m, log)

	opts := []httpserver.Option{httpserver.WithMetrics(m, reg)}
	if health != nil {
		opts = append(opts, httpserver.WithHealthCheck(health))
	}
	a.handler = httpserver.New(authSvc, userSvc, tokens, log, opts...).Handler()
	return a, nil
}

// serve runs the HTTP server until ctx is cancelled, then drains in-flight requests.
func serve(ctx context.Context, cfg *config.Config) error {
	logger, err := newLogger(cfg.Log.Dev)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", cfg.HTTP.Addr),
		zap.String("store", cfg.Store.Driver),
		zap.String("cache", cfg.Cache.Backend),
	)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	a, err := build(ctx, cfg, logger, reg)
	if err != nil {
		return err
	}
	defer a.close()

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           a.handler,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		ReadHeaderTimeout: cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.HTTP.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown timed out", zap.Duration("timeout", cfg.HTTP.ShutdownTimeout), zap.Error(err))
		_ = srv.Close()
	}
	logger.Info("shutdown complete")
	return nil
}
