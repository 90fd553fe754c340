//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"github.com/google/wire"
)

// InitializeWebhook builds the webhook function.
func InitializeWebhook(ctx context.Context) (*WebhookApp, func(), error) {
	wire.Build(
		ConfigProviders,
		InfrastructureProviders,
		ApplicationProviders,
		provideWebhookHandler,
		newWebhookApp,
	)
	return nil, nil, nil
}

// InitializeProcessor builds the queue consumer.
func InitializeProcessor(ctx context.Context) (*ProcessorApp, func(), error) {
	wire.Build(
		ConfigProviders,
		InfrastructureProviders,
		ApplicationProviders,
		provideQueueHandler,
		newProcessorApp,
	)
	return nil, nil, nil
}

// InitializeReminders builds the reminder dispatcher.
func InitializeReminders(ctx context.Context) (*ReminderApp, func(), error) {
	wire.Build(
		ConfigProviders,
		InfrastructureProviders,
		ApplicationProviders,
		provideReminderHandler,
		newReminderApp,
	)
	return nil, nil, nil
}
