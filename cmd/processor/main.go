// Package main is the Lambda entrypoint for the message processor. EventBridge
// delivers one processing job per invocation.
package main

import (
	"context"
	"log"

	"brain2-assistant/internal/di"

	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"
)

var (
	app     *di.ProcessorApp
	cleanup func()
)

func init() {
	var err error
	app, cleanup, err = di.InitializeProcessor(context.Background())
	if err != nil {
		log.Fatalf("Failed to initialize processor: %v", err)
	}
	app.Logger.Info("Processor handler initialized",
		zap.String("table", app.Config.Database.TableName),
		zap.String("agent_runtime", app.Config.Agent.RuntimeARN),
		zap.Duration("agent_timeout", app.Config.Agent.Timeout))
}

func main() {
	defer cleanup()
	lambda.Start(app.Handler)
}
