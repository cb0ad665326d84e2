package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/b2b-pricing/internal/cache"
	"github.com/noah-isme/b2b-pricing/internal/config"
	"github.com/noah-isme/b2b-pricing/internal/erp"
	"github.com/noah-isme/b2b-pricing/internal/lock"
	"github.com/noah-isme/b2b-pricing/internal/obs"
	"github.com/noah-isme/b2b-pricing/internal/report"
	"github.com/noah-isme/b2b-pricing/internal/settings"
)

const serviceName = "b2b-pricing-worker"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("component", "worker").Logger()

	obs.MustRegisterDomainMetrics("pricing", nil)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool := mustInitDatabase(ctx, cfg, logger)
	defer pool.Close()

	redisClient := mustInitRedis(ctx, cfg, logger)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()

	settingsStore, err := settings.NewStore(settings.StoreConfig{
		DB:    pool,
		Cache: cache.NewJSON(redisClient, cfg.SettingsCacheTTL),
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise settings store")
	}
	erpStore, err := erp.NewStore(erp.StoreConfig{
		DB:    pool,
		Cache: cache.NewJSON(redisClient, cfg.SnapshotCacheTTL),
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise erp store")
	}

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

	redisConn, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url for task queue")
	}

	mux := asynq.NewServeMux()
	mux.Handle(report.TypeMarginReport, report.TaskHandler{Service: reportSvc, Logger: logger})

	srv := asynq.NewServer(redisConn, asynq.Config{
		Concurrency:     2,
		ShutdownTimeout: 30 * time.Second,
	})
	if err := srv.Start(mux); err != nil {
		logger.Fatal().Err(err).Msg("start task server")
	}

	scheduler := asynq.NewScheduler(redisConn, &asynq.SchedulerOpts{})
	if _, err := scheduler.Register(cfg.ReportCron, report.NewMarginReportTask()); err != nil {
		logger.Fatal().Err(err).Msg("register report schedule")
	}
	if err := scheduler.Start(); err != nil {
		logger.Fatal().Err(err).Msg("start scheduler")
	}

	logger.Info().Str("cron", cfg.ReportCron).Msg("worker started")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")
	scheduler.Shutdown()
	srv.Shutdown()
}

func mustInitDatabase(ctx context.Context, cfg *config.Config, logger zerolog.Logger) *pgxpool.Pool {
	initCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
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

	pool, err := pgxpool.NewWithConfig(initCtx, poolConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	if err := pool.Ping(initCtx); err != nil {
		logger.Fatal().Err(err).Msg("ping database")
	}
	return pool
}

func mustInitRedis(ctx context.Context, cfg *config.Config, logger zerolog.Logger) *redis.Client {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	client := redis.NewClient(opts)
	if err := redisotel.InstrumentTracing(client); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}
	return client
}
