// Package main is the Lambda entrypoint for the Telegram webhook. It verifies
// each update, stores the message and enqueues it for processing.
package main

import (
	"context"
	"log"

	"brain2-assistant/internal/di"

	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"
)

var (
	app     *di.WebhookApp
	cleanup func()
)

func init() {
	var err error
	app, cleanup, err = di.InitializeWebhook(context.Background())
	if err != nil {
		log.Fatalf("Failed to initialize webhook: %v", err)
	}
	app.Logger.Info("Webhook handler initialized",
		zap.String("table", app.Config.Database.TableName),
		zap.String("event_bus", app.Config.Events.EventBusName),
		zap.String("bucket", app.Config.Storage.BucketName))
}

func main() {
	defer cleanup()
	lambda.Start(app.Handler)
}
