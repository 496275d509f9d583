package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	exportapp "github.com/invoicer/backend/internal/application/export"
	identityapp "github.com/invoicer/backend/internal/application/identity"
	"github.com/invoicer/backend/internal/application/invoicing"
	"github.com/invoicer/backend/internal/infrastructure/auth"
	"github.com/invoicer/backend/internal/infrastructure/config"
	"github.com/invoicer/backend/internal/infrastructure/logger"
	"github.com/invoicer/backend/internal/infrastructure/persistence"
	"github.com/invoicer/backend/internal/infrastructure/printing"
	"github.com/invoicer/backend/internal/infrastructure/storage"
	"github.com/invoicer/backend/internal/interfaces/http/handler"
	"github.com/invoicer/backend/internal/interfaces/http/middleware"
	"github.com/invoicer/backend/internal/interfaces/http/router"
	"go.uber.org/zap"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(logger.ForService(cfg.Log, cfg.App.Name))
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer logger.Sync(log)

	log.Info("Starting invoice API",
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.NewDatabase(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	ctx := context.Background()

	// Sessions
	jwtService := auth.NewJWTService(cfg.JWT)
	blacklist := auth.NewTokenBlacklist(ctx, cfg.Redis, log)
	sessions := identityapp.NewSessionService(persistence.NewGormUserRepository(db.DB), jwtService, blacklist, log)
	unsubscribe := sessions.Subscribe(func(ev identityapp.SessionEvent) {
		log.Info("Session changed", zap.String("event", string(ev.Type)), zap.String("user_id", ev.UserID.String()))
	})
	defer unsubscribe()

	// Invoices
	invoices := invoicing.NewService(
		persistence.NewGormInvoiceRepository(db.DB),
		invoicing.RetryPolicyFromConfig(cfg.Invoicing),
		log,
	)

	// Export pipeline
	layout, err := printing.NewLayout(cfg.Branding)
	if err != nil {
		log.Fatal("Failed to load invoice layout", zap.Error(err))
	}
	renderClient := printing.NewRenderClient(cfg.Renderer, cfg.App, log)
	log.Info("Rendering service", zap.String("endpoint", renderClient.Endpoint()))

	exportOpts := []exportapp.Option{exportapp.WithAssetBaseURL(cfg.Renderer.AssetBaseURL)}
	if cfg.Storage.Enabled {
		archive, err := storage.NewS3Archive(ctx, &cfg.Storage, storage.WithLogger(log))
		if err != nil {
			log.Fatal("Failed to configure PDF archive", zap.Error(err))
		}
		if err := archive.EnsureBucket(ctx); err != nil {
			log.Fatal("Failed to prepare PDF archive bucket", zap.Error(err), zap.String("bucket", archive.Bucket()))
		}
		exportOpts = append(exportOpts, exportapp.WithArchive(archive))
		log.Info("PDF archive enabled", zap.String("bucket", archive.Bucket()))
	}
	exporter := exportapp.NewExporter(invoices, layout, printing.NewCapturer(cfg.Renderer, log), renderClient, log, exportOpts...)

	loginLimiter := middleware.NewRateLimiter(cfg.HTTP.LoginRateLimit, cfg.HTTP.LoginRateWindow)
	defer loginLimiter.Stop()

	jwtConfig := middleware.DefaultJWTConfig(jwtService)
	jwtConfig.TokenBlacklist = blacklist
	jwtConfig.Logger = log

	engine, err := router.NewAPIEngine(router.APIConfig{
		HTTP:         cfg.HTTP,
		JWT:          jwtConfig,
		LoginLimiter: loginLimiter,
		Logger:       log,
	}, router.APIHandlers{
		Auth:    handler.NewAuthHandler(sessions),
		Invoice: handler.NewInvoiceHandler(invoices),
		Export:  handler.NewExportHandler(exporter),
		System:  handler.NewSystemHandler(db, version),
	})
	if err != nil {
		log.Fatal("Failed to build HTTP engine", zap.Error(err))
	}

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
		return
	}
	log.Info("Server exited gracefully")
}
