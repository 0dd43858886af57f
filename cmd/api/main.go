package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/discount-engine/internal/audit"
	"github.com/noah-isme/discount-engine/internal/auth"
	"github.com/noah-isme/discount-engine/internal/checkout"
	"github.com/noah-isme/discount-engine/internal/config"
	"github.com/noah-isme/discount-engine/internal/definition"
	"github.com/noah-isme/discount-engine/internal/health"
	"github.com/noah-isme/discount-engine/internal/obs"
	"github.com/noah-isme/discount-engine/internal/ratelimit"
	"github.com/noah-isme/discount-engine/internal/resilience"
)

func main() {
	cfg := config.MustLoad()
	logger := obs.NewLogger(cfg.Obs.LogFormat, cfg.Obs.LogLevel).With().
		Str("service", cfg.Obs.ServiceName).
		Str("env", cfg.AppEnv).
		Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("server exited")
	}
}

func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	if cfg.Obs.EnableTracing {
		shutdown, err := obs.InitTracer(ctx, obs.TracingConfig{
			ServiceName:   cfg.Obs.ServiceName,
			Endpoint:      cfg.Obs.OTLPEndpoint,
			SamplingRatio: cfg.Obs.TracingSamplingRatio,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			cfg.Obs.EnableTracing = false
		} else {
			defer func() {
				flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(flushCtx); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := obs.NewDiscountMetrics(cfg.Obs.MetricsNamespace, registry)
	var httpMetrics *obs.HTTPMetrics
	if cfg.Obs.EnablePrometheus {
		httpMetrics = obs.NewHTTPMetrics(cfg.Obs.MetricsNamespace, obs.ParseBucketsCSV(cfg.Obs.HTTPBucketsMS), registry)
	}

	healthHandler := &health.Handler{}

	var repo definition.Repository = definition.NewMemoryRepository()
	if cfg.DatabaseURL != "" {
		pool, err := openDatabase(ctx, cfg)
		if err != nil {
			return err
		}
		defer pool.Close()
		repo = definition.PostgresRepository{DB: pool}
		healthHandler.Probes = append(healthHandler.Probes, health.Probe{Name: "postgres", Timeout: 500 * time.Millisecond, Check: pool.Ping})
	} else {
		logger.Warn().Msg("DATABASE_URL not set, stored discounts live in memory")
	}

	var limiter ratelimit.Allower = ratelimit.NewMemoryLimiter(cfg.RateLimit.Window, cfg.RateLimit.Max)
	var cache *definition.Cache
	if cfg.RedisURL != "" {
		client, err := openRedis(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer func() {
			if err := client.Close(); err != nil {
				logger.Error().Err(err).Msg("close redis")
			}
		}()
		cache = definition.NewCache(client, cfg.Cache.DefinitionTTL)
		limiter = ratelimit.RedisLimiter{Client: client, Prefix: "ratelimit:run:", Window: cfg.RateLimit.Window, Max: cfg.RateLimit.Max}
		healthHandler.Probes = append(healthHandler.Probes, health.Probe{
			Name:    "redis",
			Timeout: 300 * time.Millisecond,
			Check:   func(ctx context.Context) error { return client.Ping(ctx).Err() },
		})
	}
	if cfg.RateLimit.Max == 0 {
		limiter = nil
	}

	definitions := definition.NewService(definition.ServiceConfig{
		Repo:           repo,
		Cache:          cache,
		Metrics:        metrics,
		Logger:         &logger,
		MaxConfigBytes: cfg.Engine.MaxConfigBytes,
	})
	breaker := resilience.NewBreaker(resilience.BreakerConfig{
		Target:       "definitions",
		MinRequests:  10,
		FailureRatio: 0.5,
		OpenFor:      15 * time.Second,
		Logger:       &logger,
		Metrics:      resilience.NewMetrics(cfg.Obs.MetricsNamespace, registry),
	})
	evaluator := checkout.NewService(checkout.ServiceConfig{
		Resolver:       definitions,
		Breaker:        breaker,
		Metrics:        metrics,
		Logger:         &logger,
		MaxCartLines:   cfg.Engine.MaxCartLines,
		MaxConfigBytes: cfg.Engine.MaxConfigBytes,
	})

	verifier := auth.NewVerifier(auth.VerifierConfig{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer, Audience: cfg.JWTAudience})
	if !verifier.Enabled() {
		logger.Warn().Msg("JWT_SECRET not set, admin API rejects every request")
	}

	trail := audit.NewRingSink(cfg.Audit.RetainEntries)
	auditService := &audit.Service{
		Sink:         audit.MultiSink{audit.LogSink{Logger: logger.With().Str("component", "audit").Logger()}, trail},
		Enabled:      cfg.Audit.Enabled,
		SamplingRate: cfg.Audit.SamplingRate,
		TrustProxy:   cfg.TrustProxyHeaders,
	}

	handler := newRouter(routerDeps{
		Config:      cfg,
		Logger:      logger,
		Gatherer:    registry,
		HTTPMetrics: httpMetrics,
		Metrics:     metrics,
		Health:      healthHandler,
		Limiter:     limiter,
		Verifier:    verifier,
		Checkout:    checkout.NewHandler(checkout.HandlerConfig{Evaluator: evaluator, Logger: &logger}),
		Definitions: definition.NewHandler(definition.HandlerConfig{Store: definitions, Logger: &logger}),
		Audit: audit.HTTPRecorder{
			Service: auditService,
			OnError: func(err error) { logger.Warn().Err(err).Msg("audit record failed") },
		},
		AuditTrail: audit.Handler{Store: trail},
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           handler,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		ReadHeaderTimeout: cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	healthHandler.SetDraining(true)
	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

func openDatabase(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	if cfg.DatabaseMigrate {
		if err := definition.Migrate(cfg.DatabaseURL); err != nil {
			return nil, err
		}
	}
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = cfg.Obs.ServiceName

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	pool, err := pgxpool.NewWithConfig(connectCtx, poolConfig)
	if err != nil {
		return nil, err
	}
	if err := resilience.Retry(connectCtx, 4, 250*time.Millisecond, pool.Ping); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

func openRedis(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	if cfg.Obs.EnableTracing {
		if err := redisotel.InstrumentTracing(client); err != nil {
			logger.Error().Err(err).Msg("instrument redis tracing")
		}
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	ping := func(ctx context.Context) error { return client.Ping(ctx).Err() }
	if err := resilience.Retry(pingCtx, 3, 200*time.Millisecond, ping); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}
