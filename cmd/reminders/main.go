// Package main is the Lambda entrypoint for the reminder dispatcher, invoked by
// an EventBridge schedule.
package main

import (
	"context"
	"log"

	"brain2-assistant/internal/di"

	"github.com/aws/aws-lambda-go/lambda"
)

var (
	app     *di.ReminderApp
	cleanup func()
)

func init() {
	var err error
	app, cleanup, err = di.InitializeReminders(context.Background())
	if err != nil {
		log.Fatalf("Failed to initialize reminder dispatcher: %v", err)
	}
	app.Logger.Info("Reminder dispatcher initialized")
}

func main() {
	defer cleanup()
	lambda.Start(app.Handler)
}
