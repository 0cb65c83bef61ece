package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/your-org/attendo/internal/api/handlers"
	"github.com/your-org/attendo/internal/auth"
	"github.com/your-org/attendo/internal/config"
	"github.com/your-org/attendo/internal/face"
	"github.com/your-org/attendo/internal/faceapi"
	"github.com/your-org/attendo/internal/observability"
	"github.com/your-org/attendo/internal/queue"
	"github.com/your-org/attendo/internal/storage"
	"github.com/your-org/attendo/internal/vision"
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

	slog.Info("starting attendo face service",
		"port", cfg.FaceServer.Port,
		"cpu_cores", runtime.NumCPU(),
	)

	// Initialize ONNX Runtime
	ort.SetSharedLibraryPath(getONNXLibPath())
	if err := ort.InitializeEnvironment(); err != nil {
		slog.Error("init onnx runtime", "error", err)
		os.Exit(1)
	}
	defer ort.DestroyEnvironment()

	extractor, err := vision.NewExtractor(cfg.Vision)
	if err != nil {
		slog.Error("init vision extractor", "error", err)
		os.Exit(1)
	}
	defer extractor.Close()

	// Connect to Postgres (credential store)
	db, err := storage.NewPostgresStore(cfg.Database)
	if err != nil {
		slog.Error("connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Connect to MinIO (enrollment snapshots)
	minioStore, err := storage.NewMinIOStore(cfg.MinIO)
	if err != nil {
		slog.Error("connect to minio", "error", err)
		os.Exit(1)
	}
	if err := minioStore.EnsureBucket(context.Background()); err != nil {
		slog.Warn("ensure minio bucket", "error", err)
	}

	// Connect to NATS (face event stream)
	producer, err := queue.NewProducer(cfg.NATS.URL)
	if err != nil {
		slog.Error("connect to nats", "error", err)
		os.Exit(1)
	}
	defer producer.Close()

	if err := producer.EnsureStreams(context.Background()); err != nil {
		slog.Warn("ensure nats streams", "error", err)
	}

	assertions := auth.NewTokenManager([]byte(cfg.Auth.AssertionSecret), cfg.Auth.Issuer, cfg.Auth.AssertionTTL.Std())

	engine := face.NewEngine(db, func(imageData []byte) ([]float32, error) {
		embedding, _, err := extractor.ExtractFace(imageData)
		if err != nil {
			if errors.Is(err, vision.ErrNoFace) {
				return nil, face.ErrNoFaceDetected
			}
			return nil, err
		}
		return embedding, nil
	})

	handler := faceapi.NewFaceHandler(engine, assertions, producer, minioStore,
		cfg.FaceServer.MaxUploadMB, cfg.Vision.MaxInFlight)
	system := handlers.NewSystemHandler(db, minioStore, producer)
	router := faceapi.NewRouter(handler, system)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.FaceServer.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("face server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down face server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("face server stopped")
}

// getONNXLibPath returns the ONNX Runtime shared library path.
func getONNXLibPath() string {
	switch runtime.GOOS {
	case "windows":
		return "onnxruntime.dll"
	case "linux":
		return "libonnxruntime.so"
	case "darwin":
		return "libonnxruntime.dylib"
	default:
		return "onnxruntime.dll"
	}
}
