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

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/seawatch/threat-monitor/backend/internal/auditlog"
	"github.com/seawatch/threat-monitor/backend/internal/config"
	"github.com/seawatch/threat-monitor/backend/internal/discovery"
	"github.com/seawatch/threat-monitor/backend/internal/logger"
	"github.com/seawatch/threat-monitor/backend/internal/notify"
	"github.com/seawatch/threat-monitor/backend/internal/outbound"
	"github.com/seawatch/threat-monitor/backend/internal/persist"
	"github.com/seawatch/threat-monitor/backend/internal/pipeline"
	"github.com/seawatch/threat-monitor/backend/internal/scheduler"
	"github.com/seawatch/threat-monitor/backend/internal/store"
)

func main() {
	_ = godotenv.Load()

	log := logger.New("server")
	cfg, err := config.LoadServer()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	primary, err := store.NewPostgres(ctx, cfg.PostgresDSN, log)
	if err != nil {
		log.Error("init postgres", slog.Any("err", err))
		os.Exit(1)
	}
	defer primary.Close()

	if err := primary.EnsureSchema(ctx); err != nil {
		log.Error("ensure schema", slog.Any("err", err))
		os.Exit(1)
	}

	audit, err := auditlog.New(cfg.ElasticsearchAddr, cfg.AuditIndex, log)
	if err != nil {
		log.Error("init audit store", slog.Any("err", err))
		os.Exit(1)
	}

	agent, err := discovery.NewAgent(cfg.OpenAIAPIKey, cfg.OpenAIModel, log)
	if err != nil {
		log.Error("init discovery agent", slog.Any("err", err))
		os.Exit(1)
	}

	var notifiers []outbound.Notifier
	if cfg.WebhookURL != "" {
		notifiers = append(notifiers, outbound.NewWebhook(cfg.WebhookURL))
	}
	var kafkaNotifier *outbound.Kafka
	if len(cfg.KafkaBrokers) > 0 {
		kafkaNotifier = outbound.NewKafka(cfg.KafkaBrokers, cfg.KafkaTopic)
		notifiers = append(notifiers, kafkaNotifier)
		defer kafkaNotifier.Close()
	}

	queue := notify.NewQueue()
	coordinator := persist.NewCoordinator(primary, audit, log)
	pipe := pipeline.New(agent, coordinator, queue, notifiers, log)

	// A bad cron spec aborts startup.
	sched, err := scheduler.New(pipe, cfg.CronSpec, cfg.APISecretKey, log)
	if err != nil {
		log.Error("init scheduler", slog.Any("err", err))
		os.Exit(1)
	}
	sched.Start()

	srv := &server{log: log, cfg: cfg, threats: primary, queue: queue, sched: sched}
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/", srv.handleRoot)
	r.Get("/health", srv.handleHealth)
	r.Get("/api/threats", srv.handleListThreats)
	r.Get("/api/notifications", srv.handleNotifications)
	r.Get("/api/discover-threats", srv.handleDiscover)
	r.Get("/api/scheduler/status", srv.handleSchedulerStatus)

	httpServer := &http.Server{
		Addr:              cfg.BindAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		// No WriteTimeout: /api/notifications streams indefinitely.
	}

	go func() {
		log.Info("server starting", slog.String("addr", cfg.BindAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped", slog.Any("err", err))
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	log.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", slog.Any("err", err))
	}
	if err := sched.Shutdown(shutdownCtx); err != nil {
		log.Error("scheduler shutdown", slog.Any("err", err))
	}
}
