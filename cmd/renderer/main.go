package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/invoicer/backend/internal/infrastructure/config"
	"github.com/invoicer/backend/internal/infrastructure/logger"
	"github.com/invoicer/backend/internal/infrastructure/printing"
	"github.com/invoicer/backend/internal/interfaces/http/handler"
	"github.com/invoicer/backend/internal/interfaces/http/router"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.LoadRender()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(logger.ForService(cfg.Log, "pdf-renderer"))
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer logger.Sync(log)

	renderer := printing.NewChromedpRenderer(printing.ChromedpConfigFromRender(cfg.Render, log))
	engine := router.NewRenderEngine(handler.NewRenderHandler(renderer, cfg.Render.Base64Response, log), log)

	// A render may wait up to the load timeout plus image waits and printing
	srv := &http.Server{
		Addr:              ":" + cfg.Render.Port,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.Render.LoadTimeout + cfg.Render.ImageTimeout + 30*time.Second,
		IdleTimeout:       cfg.HTTP.IdleTimeout,
	}

	go func() {
		log.Info("Rendering service starting",
			zap.String("addr", srv.Addr),
			zap.Bool("base64_response", cfg.Render.Base64Response),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start rendering service", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down rendering service...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Rendering service forced to shutdown", zap.Error(err))
		return
	}
	log.Info("Rendering service exited gracefully")
}
