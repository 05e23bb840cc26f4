package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Brownie44l1/ferplus/internal/config"
	"github.com/Brownie44l1/ferplus/internal/handlers"
	"github.com/Brownie44l1/ferplus/internal/log"
	"github.com/Brownie44l1/ferplus/internal/model"
	"github.com/Brownie44l1/ferplus/internal/plugin"
	"github.com/Brownie44l1/ferplus/internal/task"
)

func main() {
	logger := log.NewLogger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(log.Fields{"error": err.Error()}, "Failed to load configuration")
	}

	factory := &plugin.Factory{
		LabelsPath: cfg.LabelsPath,
		HubURL:     cfg.HubURL,
		Loader:     &model.ONNXLoader{LibraryPath: cfg.LibraryPath},
	}
	adapter, err := factory.NewAdapter(cfg.Settings())
	if err != nil {
		log.Fatal(log.Fields{"error": err.Error()}, "Failed to initialize adapter")
	}
	defer adapter.Close()

	logger.Infof("Loading model from: %s", cfg.ModelPath)
	if err := adapter.Load(context.Background()); err != nil {
		// the first request retries; a missing hub or model only fails requests
		logger.Warnf("Model not loaded at startup: %v", err)
	}

	handler := handlers.NewHandler(adapter, task.New(adapter, cfg.Params()), factory.Info())

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Infof("Server starting on port %s", cfg.Port)
	logger.Infof("Backend: %s, target: %s", cfg.Backend, cfg.Target)
	logger.Infof("Classes: %v", adapter.Labels())
	logger.Info("Endpoints:")
	logger.Info("  GET  /health         - Health check")
	logger.Info("  GET  /info           - Plugin metadata and classes")
	logger.Info("  GET  /backends       - Valid backend/target pairs")
	logger.Info("  POST /predict        - Raw 64x64 blob prediction")
	logger.Info("  POST /predict/image  - Predict from image upload (optional regions)")

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(log.Fields{"error": err.Error()}, "Server failed")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Shutdown failed: %v", err)
	}
}
