package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"

	"github.com/noah-isme/b2b-pricing/internal/cache"
	"github.com/noah-isme/b2b-pricing/internal/config"
	"github.com/noah-isme/b2b-pricing/internal/erp"
	"github.com/noah-isme/b2b-pricing/internal/health"
	"github.com/noah-isme/b2b-pricing/internal/lock"
	"github.com/noah-isme/b2b-pricing/internal/obs"
	"github.com/noah-isme/b2b-pricing/internal/quote"
	"github.com/noah-isme/b2b-pricing/internal/report"
	"github.com/noah-isme/b2b-pricing/internal/settings"
)

const serviceName = "b2b-pricing-api"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("env", cfg.AppEnv).Logger()

	obs.MustRegisterDomainMetrics("pricing", nil)
	httpMetrics := obs.NewHTTPMetrics("pricing", nil, nil)

	tracingEnabled := cfg.TracingEnabled
	if tracingEnabled {
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   serviceName,
			Endpoint:      cfg.OTLPEndpoint,
			SamplingRatio: cfg.TraceSamplingRatio,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse database config")
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = serviceName

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		logger.Fatal().Err(err).Msg("ping database")
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if err := redisotel.InstrumentMetrics(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis metrics")
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis client")
		}
	}()

	settingsStore, err := settings.NewStore(settings.StoreConfig{
		DB:    pool,
		Cache: cache.NewJSON(redisClient, cfg.SettingsCacheTTL),
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise settings store")
	}
	settingsHandler := settings.NewHandler(settingsStore)

	erpStore, err := erp.NewStore(erp.StoreConfig{
		DB:    pool,
		Cache: cache.NewJSON(redisClient, cfg.SnapshotCacheTTL),
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise erp store")
	}

	quoteSvc, err := quote.NewService(quote.ServiceConfig{
		Settings: settingsStore,
		ERP:      erpStore,
		Logger:   logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise quote service")
	}
	quoteHandler := quote.NewHandler(quote.HandlerConfig{Service: quoteSvc})

	redisConn, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url for task queue")
	}
	asynqClient := asynq.NewClient(redisConn)
	defer func() {
		if err := asynqClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close task queue client")
		}
	}()

	reportSvc, err := report.NewService(report.ServiceConfig{
		Settings:         settingsStore,
		Products:         erpStore,
		Results:          cache.NewJSON(redisClient, cfg.ReportResultTTL),
		Locker:           lock.Locker{R: redisClient},
		LockTTL:          cfg.ReportLockTTL,
		MinMarginPercent: cfg.ReportMinMarginPercent,
		Logger:           logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise report service")
	}
	reportHandler := report.NewHandler(report.HandlerConfig{
		Service:  reportSvc,
		Enqueuer: asynqClient,
	})

	healthHandler := health.Handler{
		Checker:    readinessChecker{db: pool, redis: redisClient},
		Sync:       erpStore,
		StaleAfter: cfg.ErpStaleAfter,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Get("/customers/{code}/products/{sku}/quote", quoteHandler.Single)
		v.Post("/quotes", quoteHandler.Batch)

		v.Route("/admin", func(admin chi.Router) {
			admin.Get("/settings/pricing", settingsHandler.Show)
			admin.Post("/settings/pricing/refresh", settingsHandler.Refresh)
			admin.Post("/reports/margin", reportHandler.Trigger)
			admin.Get("/reports/margin/latest", reportHandler.Latest)
		})
	})

	srv := &http.Server{
		Addr:    cfg.HTTPAddr(),
		Handler: r,
	}

	stopCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server exited unexpectedly")
		}
	}()

	<-stopCtx.Done()
	health.SetReady(false)
	logger.Info().Msg("shutdown signal received, draining")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

type readinessChecker struct {
	db    *pgxpool.Pool
	redis *redis.Client
}

func (c readinessChecker) PingDB(ctx context.Context, timeout time.Duration) error {
	if c.db == nil {
		return errors.New("db not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.db.Ping(ctx)
}

func (c readinessChecker) PingRedis(ctx context.Context, timeout time.Duration) error {
	if c.redis == nil {
		return errors.New("redis not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.redis.Ping(ctx).Err()
}
