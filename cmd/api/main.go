package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/your-org/attendo/internal/api"
	"github.com/your-org/attendo/internal/api/ws"
	"github.com/your-org/attendo/internal/auth"
	"github.com/your-org/attendo/internal/config"
	"github.com/your-org/attendo/internal/email"
	"github.com/your-org/attendo/internal/models"
	"github.com/your-org/attendo/internal/observability"
	"github.com/your-org/attendo/internal/queue"
	"github.com/your-org/attendo/internal/storage"
	"github.com/your-org/attendo/pkg/dto"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("starting attendo API service", "port", cfg.Server.Port)

	lateHour, lateMinute, err := cfg.Workday.LateCutoff()
	if err != nil {
		slog.Error("invalid workday config", "error", err)
		os.Exit(1)
	}

	// Run migrations before opening the pool
	if err := storage.Migrate(cfg.Database.DSN()); err != nil {
		slog.Error("run migrations", "error", err)
		os.Exit(1)
	}

	// Connect to Postgres
	db, err := storage.NewPostgresStore(cfg.Database)
	if err != nil {
		slog.Error("connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Connect to MinIO
	minioStore, err := storage.NewMinIOStore(cfg.MinIO)
	if err != nil {
		slog.Error("connect to minio", "error", err)
		os.Exit(1)
	}
	if err := minioStore.EnsureBucket(context.Background()); err != nil {
		slog.Warn("ensure minio bucket", "error", err)
	}

	// Email service
	mail, err := email.NewService(cfg.Email)
	if err != nil {
		slog.Error("init email service", "error", err)
		os.Exit(1)
	}

	// Token managers: sessions signed here, assertions signed by the
	// face service and only verified here.
	tokens := auth.NewTokenManager([]byte(cfg.Auth.AccessSecret), cfg.Auth.Issuer, cfg.Auth.AccessTTL.Std())
	assertions := auth.NewTokenManager([]byte(cfg.Auth.AssertionSecret), cfg.Auth.Issuer, cfg.Auth.AssertionTTL.Std())

	// WebSocket hub
	hub := ws.NewHub()
	go hub.Run()

	// Consume face events from the face service: persist and broadcast.
	consumer, err := queue.NewConsumer(cfg.NATS.URL)
	if err != nil {
		slog.Error("create face event consumer", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err = consumer.ConsumeFaceEvents(ctx, "api-face-events", func(ctx context.Context, msg jetstream.Msg) error {
		var ev models.FaceEvent
		if err := json.Unmarshal(msg.Data(), &ev); err != nil {
			return err
		}

		if err := db.CreateFaceEvent(ctx, &ev); err != nil {
			slog.Error("store face event", "error", err)
		}

		hub.Broadcast(&dto.WSMessage{
			Type:       string(ev.Type),
			Identity:   ev.Identity,
			Match:      ev.Match,
			Confidence: ev.Confidence,
			OccurredAt: ev.OccurredAt.Format(time.RFC3339),
		})

		return nil
	})
	if err != nil {
		slog.Warn("start face event consumer", "error", err)
	}

	// Daily absence reconciliation: employees with no mark for the
	// previous day get their absent counter bumped, once per day.
	go runAbsenceReconciler(ctx, db)

	router := api.NewRouter(api.RouterConfig{
		Config:     cfg,
		DB:         db,
		MinIO:      minioStore,
		NATS:       consumer,
		Hub:        hub,
		Tokens:     tokens,
		Assertions: assertions,
		Mail:       mail,
		LateHour:   lateHour,
		LateMinute: lateMinute,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("API server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down API server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("API server stopped")
}

// runAbsenceReconciler settles yesterday's absences at startup and then
// once an hour. Reconciliation is idempotent, so restarts and multiple
// replicas are safe.
func runAbsenceReconciler(ctx context.Context, db *storage.PostgresStore) {
	reconcile := func() {
		day := time.Now().AddDate(0, 0, -1)
		n, err := db.ReconcileAbsences(ctx, day)
		if err != nil {
			slog.Error("reconcile absences", "error", err)
			return
		}
		if n > 0 {
			slog.Info("reconciled absences", "day", day.Format("2006-01-02"), "absent", n)
		}
	}

	reconcile()

	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			reconcile()
		}
	}
}
