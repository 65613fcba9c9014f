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
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"leadpath/internal/config"
	"leadpath/internal/db"
	"leadpath/internal/notify"
	"leadpath/internal/scheduler"
)

func main() {
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("LEADPATH_CONFIG_PATH"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	database, err := db.NewDB(cfg.Database.Path)
	if err != nil {
		logger.Fatal().Err(err).Msg("open db error")
	}
	defer database.Close()

	var rdb *redis.Client
	var dedupe scheduler.DedupeStore
	if cfg.Redis.Address != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		dedupe = scheduler.NewRedisDedupe(rdb, cfg.DedupeTTL())
	} else {
		logger.Warn().Msg("redis not configured, reminder dedupe disabled")
	}

	email := notify.NewSMTPGateway(cfg.SMTP, logger)
	sms := notify.NewRESTSMSGateway(cfg.SMS, logger)
	gateway := notify.NewDispatcher(email, sms, cfg.Scheduler.NotifyRatePerSecond, cfg.Scheduler.NotifyBurst, logger)

	metrics := scheduler.NewMetrics("leadpath")
	unlock := scheduler.NewUnlockEngine(database, database, database, metrics, logger)
	reminder := scheduler.NewReminderEngine(database, database, database, database, gateway, dedupe, metrics, logger)
	support := scheduler.NewSupportEngine(database, database, database, gateway, dedupe,
		cfg.Scheduler.SupportMinMisses, metrics, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Monitoring.HealthCheckPort == 0 {
		cfg.Monitoring.HealthCheckPort = 8090
	}
	go startHealthServer(ctx, cfg.Monitoring.HealthCheckPort, database, rdb, &logger)

	if cfg.Monitoring.PrometheusEnabled {
		if cfg.Monitoring.PrometheusPort == 0 {
			cfg.Monitoring.PrometheusPort = 9090
		}
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	runner := scheduler.NewRunner(cfg.Scheduler.MaxConcurrentTicks, logger)

	c := cron.New()
	if _, err := c.AddFunc(cfg.Scheduler.CronSpec, func() {
		runner.Go(ctx, "unlock", unlock.RunUnlockTick)
		runner.Go(ctx, "reminder", reminder.RunReminderTick)
	}); err != nil {
		logger.Fatal().Err(err).Str("spec", cfg.Scheduler.CronSpec).Msg("invalid cron spec")
	}
	if _, err := c.AddFunc(cfg.Scheduler.SupportCronSpec, func() {
		runner.Go(ctx, "support", support.RunSupportTick)
	}); err != nil {
		logger.Fatal().Err(err).Str("spec", cfg.Scheduler.SupportCronSpec).Msg("invalid support cron spec")
	}
	c.Start()

	logger.Info().
		Str("cron", cfg.Scheduler.CronSpec).
		Str("support_cron", cfg.Scheduler.SupportCronSpec).
		Msg("lesson scheduler started")

	<-ctx.Done()
	logger.Info().Msg("shutting down")
	<-c.Stop().Done()
	// In-flight ticks must drain before the deferred DB close runs.
	runner.Wait()
}

func startHealthServer(ctx context.Context, port int, database *db.DB, rdb *redis.Client, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		ctxPing, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		if err := database.PingContext(ctxPing); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		if rdb != nil {
			if err := rdb.Ping(ctxPing).Err(); err != nil {
				http.Error(w, "redis not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("health server error")
	}
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
