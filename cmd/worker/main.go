package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-sales-stats/internal/app"
	"github.com/noah-isme/toko-sales-stats/internal/config"
	"github.com/noah-isme/toko-sales-stats/internal/health"
	"github.com/noah-isme/toko-sales-stats/internal/lock"
	"github.com/noah-isme/toko-sales-stats/internal/obs"
	"github.com/noah-isme/toko-sales-stats/internal/queue"
	"github.com/noah-isme/toko-sales-stats/internal/ratelimit"
	"github.com/noah-isme/toko-sales-stats/internal/runlog"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.RequireRedis(); err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("component", "worker").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := obs.InitTracer(ctx, obs.TracingConfig{
		ServiceName:   "sales-stats-worker",
		Endpoint:      cfg.TracingEndpoint,
		SamplingRatio: cfg.TracingSamplingRatio,
		Environment:   cfg.AppEnv,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("init tracer")
	}

	deps, err := app.New(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("init dependencies")
	}
	rdb, err := app.NewRedis(ctx, cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect redis")
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()
	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis uri")
	}

	runs := runlog.Store{R: rdb}
	handler := &queue.Handler{
		Runner:  deps.Job(),
		Locker:  lock.Locker{R: rdb},
		LockTTL: cfg.RunLockTTL,
		Reports: runs,
		Metrics: queue.NewMetrics(app.MetricsNamespace, deps.Registry),
		Logger:  logger,
	}

	taskLogger := asynqLogger{logger: logger.With().Str("subsystem", "asynq").Logger()}
	server := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency:     1,
		Queues:          map[string]int{queue.QueueName: 1},
		Logger:          taskLogger,
		ShutdownTimeout: 30 * time.Second,
	})
	scheduler := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{
		Logger:   taskLogger,
		Location: time.UTC,
		PostEnqueueFunc: func(info *asynq.TaskInfo, err error) {
			switch {
			case errors.Is(err, asynq.ErrDuplicateTask):
				logger.Info().Msg("scheduled_run_already_pending")
			case err != nil:
				logger.Error().Err(err).Msg("schedule_enqueue_failed")
			default:
				logger.Info().Str("task_id", info.ID).Msg("run_scheduled")
			}
		},
	})
	entryID, err := queue.RegisterSchedule(scheduler, cfg.WorkerSchedule, cfg.RunLockTTL)
	if err != nil {
		logger.Fatal().Err(err).Msg("register schedule")
	}
	client := asynq.NewClient(redisOpt)
	defer func() { _ = client.Close() }()

	var triggerLimit func(http.Handler) http.Handler
	if store, err := ratelimit.NewRedisStore(rdb, "sales-stats:ratelimit"); err != nil {
		logger.Error().Err(err).Msg("init trigger rate limit store")
	} else if lim, err := ratelimit.New(store, cfg.OpsTriggerRate); err != nil {
		logger.Error().Err(err).Msg("init trigger rate limit")
	} else {
		triggerLimit = ratelimit.Handler{
			Limiter: lim,
			Key:     ratelimit.StaticKey("runs:trigger"),
			OnError: func(err error) { logger.Error().Err(err).Msg("trigger rate limit") },
		}.Middleware
	}

	opsServer := &http.Server{
		Addr: cfg.WorkerAddr,
		Handler: health.NewRouter(health.RouterConfig{
			Handler: health.Handler{
				Probes: map[string]health.Probe{
					"redis":   health.RedisProbe(rdb),
					"shopify": health.BreakerProbe(deps.Breaker),
				},
				Runs:    runs,
				Trigger: queue.Trigger{Client: client, UniqueFor: cfg.RunLockTTL},
			},
			Logger:         logger,
			Gatherer:       deps.Registry,
			AllowedOrigins: cfg.OpsCORSOrigins,
			TriggerLimit:   triggerLimit,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	if err := server.Start(queue.NewServeMux(handler)); err != nil {
		logger.Fatal().Err(err).Msg("start task server")
	}
	if err := scheduler.Start(); err != nil {
		logger.Fatal().Err(err).Msg("start scheduler")
	}
	go func() {
		if err := opsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("ops server stopped")
			stop()
		}
	}()
	logger.Info().
		Str("addr", cfg.WorkerAddr).
		Str("schedule", cfg.WorkerSchedule).
		Str("entry_id", entryID).
		Msg("worker starting")

	<-ctx.Done()
	health.SetReady(false)
	logger.Info().Msg("worker shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	scheduler.Shutdown()
	server.Shutdown()
	if err := opsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("ops server shutdown")
	}
	if err := shutdownTracer(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown tracer")
	}
	logger.Info().Msg("worker shutdown complete")
}

// asynqLogger routes asynq's internal logging through zerolog.
type asynqLogger struct {
	logger zerolog.Logger
}

func (l asynqLogger) Debug(args ...interface{}) { l.logger.Debug().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Info(args ...interface{})  { l.logger.Info().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Warn(args ...interface{})  { l.logger.Warn().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Error(args ...interface{}) { l.logger.Error().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Fatal(args ...interface{}) { l.logger.Fatal().Msg(fmt.Sprint(args...)) }
