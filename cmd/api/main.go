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

	"github.com/bryanwahyu/apr-reconciler/internal/application"
	appreview "github.com/bryanwahyu/apr-reconciler/internal/application/review"
	"github.com/bryanwahyu/apr-reconciler/internal/config"
	"github.com/bryanwahyu/apr-reconciler/internal/domain/review"
	"github.com/bryanwahyu/apr-reconciler/internal/infra/ai/prompt"
	"github.com/bryanwahyu/apr-reconciler/internal/infra/clients"
	"github.com/bryanwahyu/apr-reconciler/internal/infra/executor"
	"github.com/bryanwahyu/apr-reconciler/internal/infra/extract/sheet"
	"github.com/bryanwahyu/apr-reconciler/internal/infra/httpserver"
	"github.com/bryanwahyu/apr-reconciler/internal/infra/session"
	"github.com/bryanwahyu/apr-reconciler/internal/infra/storage"
	"github.com/bryanwahyu/apr-reconciler/internal/logger"
	"github.com/bryanwahyu/apr-reconciler/internal/middleware"
)

func main() {
	cfg, err := config.Load(config.Path())
	if err != nil {
		slog.Error("config.load.failed", "error", err)
		os.Exit(1)
	}

	log := logger.Init(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	ctx := context.Background()

	sessions, err := session.NewStore(cfg.Session.Capacity, log)
	if err != nil {
		log.Error("session.store.failed", "error", err)
		os.Exit(1)
	}

	health := map[string]middleware.HealthChecker{
		"mistral": &middleware.CredentialHealthChecker{Setting: "MISTRAL_API_KEY", Credential: cfg.Mistral.APIKey},
	}

	// staging opsional: tanpa MinIO dokumen dikirim sebagai data URL
	var stager review.DocumentStager
	if cfg.Minio.Enabled {
		store, err := storage.New(ctx, storage.Config{
			Endpoint:  cfg.Minio.Endpoint,
			Region:    cfg.Minio.Region,
			Bucket:    cfg.Minio.BucketName,
			AccessKey: cfg.Minio.AccessKey,
			SecretKey: cfg.Minio.SecretKey,
			UseSSL:    cfg.Minio.UseSSL,
			URLExpiry: cfg.Minio.URLExpiry,
		}, log)
		if err != nil {
			log.Error("minio.init.failed", "error", err)
			os.Exit(1)
		}
		stager = store
		health["storage"] = &middleware.StorageHealthChecker{Store: store}
	}
	if bins := clients.Binaries(cfg); len(bins) > 0 {
		health["binaries"] = &middleware.BinaryHealthChecker{Binaries: bins}
	}

	metrics := middleware.Global()
	limiter := middleware.NewRateLimiter(cfg.RateLimit.Capacity, cfg.RateLimit.RefillPerMinute)
	defer limiter.Close()

	svc := &appreview.Service{
		Clients:      clients.Factory(cfg, stager, executor.NewRunner(log), log),
		Requests:     prompt.NewRequest,
		Credential:   cfg.Mistral.APIKey,
		Sheets:       sheet.NewReader(cfg.Extraction.PreviewRows, log),
		PrimaryLabel: clients.PrimaryLabel(cfg, appreview.LabelPrimaryOCR, appreview.LabelPrimaryLocal),
		Timeout:      cfg.Mistral.RunTimeout,
		Clock:        application.SystemClock{},
		Logger:       log,
		Observer:     metrics,
	}

	mux := chi.NewRouter()
	mux.Mount("/", httpserver.NewRouter(sessions, svc, metrics, limiter, httpserver.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		APIKeys:        cfg.Auth.APIKeys,
		Health:         health,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
	}))

	srv := &http.Server{
		Addr:        cfg.Addr(),
		Handler:     mux,
		ReadTimeout: cfg.Server.ReadTimeout,
		// analysis runs in the background; writes stay short except websocket
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Info("server.listening", "addr", srv.Addr, "strategy", cfg.Extraction.Strategy, "staging", stager != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server.failed", "error", err)
			os.Exit(1)
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Info("server.shutdown")

	ctx2, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx2); err != nil {
		log.Error("server.shutdown.failed", "error", err)
	}
}
