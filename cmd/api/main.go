package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/xavierca1/dataverse-contacts/internal/app"
	"github.com/xavierca1/dataverse-contacts/internal/config"
	"github.com/xavierca1/dataverse-contacts/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("failed to load configuration: %v", err)
	}

	log := logger.New(cfg.Logging)
	log.WithFields(logrus.Fields{
		"version":   app.Version,
		"dataverse": cfg.Dataverse.String(),
	}).Info("starting contacts service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	application, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatalf("failed to initialize application: %v", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	errCh := application.Start(ctx)

	select {
	case <-sigChan:
		log.Info("shutdown signal received")
	case err, ok := <-errCh:
		if ok {
			log.WithError(err).Error("HTTP server failed")
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := application.Stop(shutdownCtx); err != nil {
		log.Errorf("error during shutdown: %v", err)
	}
}
