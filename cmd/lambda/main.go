package main

import (
	"context"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/sirupsen/logrus"

	"github.com/xavierca1/dataverse-contacts/internal/app"
	"github.com/xavierca1/dataverse-contacts/internal/config"
	"github.com/xavierca1/dataverse-contacts/internal/infra/serverless"
	"github.com/xavierca1/dataverse-contacts/pkg/logger"
)

// The application is built once per execution environment and reused by
// every invocation. Background workers are not started here.
func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("failed to load configuration: %v", err)
	}

	log := logger.New(cfg.Logging)
	log.WithField("dataverse", cfg.Dataverse.String()).Info("starting contacts lambda")

	application, err := app.New(context.Background(), cfg, log)
	if err != nil {
		log.Fatalf("failed to initialize application: %v", err)
	}

	lambda.Start(serverless.NewHandler(application.Handler()))
}
