// Package di wires the assistant's Lambda functions with Google Wire.
// Providers are grouped by layer; wire.go declares one injector per function
// and wire_gen.go holds the generated code.
package di

import (
	"context"
	"fmt"
	"os"

	"brain2-assistant/internal/agent"
	"brain2-assistant/internal/application/services"
	"brain2-assistant/internal/config"
	"brain2-assistant/internal/domain"
	"brain2-assistant/internal/handlers"
	"brain2-assistant/internal/infrastructure/messaging"
	"brain2-assistant/internal/infrastructure/observability"
	dynamo "brain2-assistant/internal/infrastructure/persistence/dynamodb"
	"brain2-assistant/internal/infrastructure/storage"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	awsAgentcore "github.com/aws/aws-sdk-go-v2/service/bedrockagentcore"
	awsDynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsEventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	awsS3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/wire"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ============================================================================
// PROVIDER SETS
// ============================================================================

// ConfigProviders provides configuration, logging and tracing.
var ConfigProviders = wire.NewSet(
	provideConfig,
	provideLogLevel,
	provideLogger,
	provideTracing,
)

// InfrastructureProviders provides AWS clients, the store, the queue and the
// raw-event archive.
var InfrastructureProviders = wire.NewSet(
	provideAWSConfig,
	provideDynamoDBClient,
	provideEventBridgeClient,
	provideS3Client,
	provideAgentCoreClient,
	provideCollector,
	provideEventLogger,
	provideStoreHooks,
	provideMessageStore,
	provideTaskStore,
	provideTodoStore,
	provideReminderStore,
	providePublisher,
	provideArchive,
	wire.Bind(new(services.JobQueue), new(*messaging.EventBridgePublisher)),
	wire.Bind(new(services.Archiver), new(*storage.S3Archive)),
	wire.Bind(new(handlers.Notifier), new(*messaging.EventBridgePublisher)),
)

// ApplicationProviders provides the application services.
var ApplicationProviders = wire.NewSet(
	services.NewMessageIntake,
	services.NewTaskService,
	services.NewTodoService,
	services.NewReminderService,
	services.NewMessageProcessor,
	provideAgentInvoker,
	provideAgentBreaker,
	wire.Bind(new(agent.Invoker), new(*agent.BreakerInvoker)),
	wire.Bind(new(handlers.Receiver), new(*services.MessageIntake)),
	wire.Bind(new(handlers.Processor), new(*services.MessageProcessor)),
	wire.Bind(new(handlers.ReminderStore), new(*services.ReminderService)),
)

// ============================================================================
// CONFIGURATION PROVIDERS
// ============================================================================

func provideConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// provideLogLevel returns the level shared by every logger of the process so
// a config reload can change it.
func provideLogLevel(cfg *config.Config) (zap.AtomicLevel, error) {
	level, err := zap.ParseAtomicLevel(cfg.Logging.Level)
	if err != nil {
		return zap.AtomicLevel{}, fmt.Errorf("invalid log level: %w", err)
	}
	return level, nil
}

// provideLogger builds a JSON logger in production and a console logger
// elsewhere. The returned cleanup flushes buffered entries.
func provideLogger(cfg *config.Config, level zap.AtomicLevel) (*zap.Logger, func(), error) {
	var zc zap.Config
	switch cfg.Environment {
	case config.Production, config.Staging:
		zc = zap.NewProductionConfig()
	default:
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = level
	zc.EncoderConfig.TimeKey = "timestamp"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := zc.Build(zap.Fields(
		zap.String("service", cfg.ServiceName),
		zap.String("environment", string(cfg.Environment)),
	))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}

	stopWatch := watchLogLevel(cfg, level, logger)
	return logger, func() {
		stopWatch()
		_ = logger.Sync()
	}, nil
}

// watchLogLevel follows logging.level in CONFIG_DIR during development so the
// level can be changed without a redeploy.
func watchLogLevel(cfg *config.Config, level zap.AtomicLevel, logger *zap.Logger) func() {
	dir := os.Getenv("CONFIG_DIR")
	if cfg.Environment != config.Development || dir == "" {
		return func() {}
	}
	watcher, err := config.NewWatcher(config.NewLoader(dir, cfg.Environment), cfg, logger)
	if err != nil {
		logger.Warn("Configuration hot reloading disabled", zap.Error(err))
		return func() {}
	}
	watcher.OnChange(func(next *config.Config) {
		if err := level.UnmarshalText([]byte(next.Logging.Level)); err != nil {
			logger.Warn("Ignoring invalid log level", zap.String("level", next.Logging.Level))
		}
	})
	return watcher.Stop
}

// provideTracing installs the OTLP exporter when tracing is enabled. With
// tracing off the provider is nil and spans go to the global no-op tracer.
func provideTracing(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*observability.TracerProvider, func(), error) {
	if !cfg.Tracing.Enabled {
		return nil, func() {}, nil
	}
	tp, err := observability.InitTracing(observability.TracingConfig{
		ServiceName: cfg.ServiceName,
		Environment: string(cfg.Environment),
		Endpoint:    cfg.Tracing.Endpoint,
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	cleanup := func() {
		if err := tp.Shutdown(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("Tracer shutdown failed", zap.Error(err))
		}
	}
	return tp, cleanup, nil
}

// ============================================================================
// INFRASTRUCTURE PROVIDERS
// ============================================================================

func provideAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	awsCfg, err := awsConfig.LoadDefaultConfig(ctx, awsConfig.WithRegion(cfg.Region))
	if err != nil {
		return aws.Config{}, fmt.Errorf("unable to load SDK config: %w", err)
	}
	return awsCfg, nil
}

func provideDynamoDBClient(awsCfg aws.Config) *awsDynamodb.Client {
	return awsDynamodb.NewFromConfig(awsCfg)
}

func provideEventBridgeClient(awsCfg aws.Config) *awsEventbridge.Client {
	return awsEventbridge.NewFromConfig(awsCfg)
}

func provideS3Client(awsCfg aws.Config) *awsS3.Client {
	return awsS3.NewFromConfig(awsCfg)
}

func provideAgentCoreClient(awsCfg aws.Config) *awsAgentcore.Client {
	return awsAgentcore.NewFromConfig(awsCfg)
}

func provideCollector(cfg *config.Config) *observability.Collector {
	return observability.NewCollector(cfg.Metrics.Namespace)
}

func provideEventLogger(logger *zap.Logger) *observability.EventLogger {
	return observability.NewEventLogger(logger)
}

func provideStoreHooks(collector *observability.Collector, logger *zap.Logger) dynamo.Hooks {
	return observability.NewStoreHooks(collector, logger)
}

// newStore builds one typed repository over the shared table.
func newStore[T any](client *awsDynamodb.Client, cfg *config.Config, codec dynamo.Codec[T], hooks dynamo.Hooks, logger *zap.Logger) *dynamo.Repository[T] {
	repo := dynamo.NewRepository[T](client, cfg.Database.TableName, cfg.Database.IndexName, codec, logger)
	repo.SetHooks(hooks)
	return repo
}

func provideMessageStore(client *awsDynamodb.Client, cfg *config.Config, hooks dynamo.Hooks, logger *zap.Logger) services.Store[domain.Message] {
	return newStore[domain.Message](client, cfg, dynamo.MessageCodec{}, hooks, logger)
}

func provideTaskStore(client *awsDynamodb.Client, cfg *config.Config, hooks dynamo.Hooks, logger *zap.Logger) services.Store[domain.Task] {
	return newStore[domain.Task](client, cfg, dynamo.TaskCodec{}, hooks, logger)
}

func provideTodoStore(client *awsDynamodb.Client, cfg *config.Config, hooks dynamo.Hooks, logger *zap.Logger) services.Store[domain.Todo] {
	return newStore[domain.Todo](client, cfg, dynamo.TodoCodec{}, hooks, logger)
}

func provideReminderStore(client *awsDynamodb.Client, cfg *config.Config, hooks dynamo.Hooks, logger *zap.Logger) services.Store[domain.Reminder] {
	return newStore[domain.Reminder](client, cfg, dynamo.ReminderCodec{}, hooks, logger)
}

func providePublisher(client *awsEventbridge.Client, cfg *config.Config, logger *zap.Logger) *messaging.EventBridgePublisher {
	return messaging.NewEventBridgePublisher(client, cfg.Events.EventBusName, cfg.Events.Source, logger)
}

func provideArchive(client *awsS3.Client, cfg *config.Config, logger *zap.Logger) *storage.S3Archive {
	return storage.NewS3Archive(client, cfg.Storage.BucketName, logger)
}

func provideAgentInvoker(cfg *config.Config, client *awsAgentcore.Client) (*agent.AgentCoreInvoker, error) {
	if err := cfg.ValidateProcessor(); err != nil {
		return nil, err
	}
	return agent.NewAgentCoreInvoker(client, cfg.Agent.RuntimeARN,
		agent.WithQualifier(cfg.Agent.Qualifier),
		agent.WithTimeout(cfg.Agent.Timeout),
	)
}

func provideAgentBreaker(invoker *agent.AgentCoreInvoker, logger *zap.Logger) *agent.BreakerInvoker {
	return agent.NewBreakerInvoker(invoker, agent.DefaultBreakerConfig(), logger)
}

// ============================================================================
// FUNCTION PROVIDERS
// ============================================================================

// WebhookHandler is the instrumented entrypoint of the webhook function.
type WebhookHandler = observability.Handler[events.APIGatewayV2HTTPRequest, events.APIGatewayV2HTTPResponse]

// QueueHandler is the instrumented entrypoint of the processor function.
type QueueHandler = observability.Handler[events.EventBridgeEvent, handlers.QueueResult]

// ReminderHandler is the instrumented entrypoint of the reminder function.
type ReminderHandler = observability.Handler[events.EventBridgeEvent, handlers.DispatchResult]

func provideWebhookHandler(cfg *config.Config, receiver handlers.Receiver, el *observability.EventLogger, collector *observability.Collector) (WebhookHandler, error) {
	if err := cfg.ValidateWebhook(); err != nil {
		return nil, err
	}
	webhook := handlers.NewWebhook(receiver, cfg.Webhook.SecretToken, el)
	return observability.Instrument(el, observability.KindHTTP, webhook.Handle, observability.WithCollector(collector)), nil
}

func provideQueueHandler(processor handlers.Processor, el *observability.EventLogger, collector *observability.Collector) QueueHandler {
	queue := handlers.NewQueueHandler(processor, el)
	return observability.Instrument(el, observability.KindQueue, queue.Handle, observability.WithCollector(collector))
}

func provideReminderHandler(reminders handlers.ReminderStore, notifier handlers.Notifier, el *observability.EventLogger, collector *observability.Collector) ReminderHandler {
	dispatcher := handlers.NewReminderDispatcher(reminders, notifier, el)
	return observability.Instrument(el, observability.KindQueue, dispatcher.Handle, observability.WithCollector(collector))
}
