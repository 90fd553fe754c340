// Package config loads the configuration of the assistant's functions.
//
// Values are layered: defaults, then base.yaml and <environment>.yaml from
// CONFIG_DIR when it is set, then environment variables.
//
// # Environment Variables
//
//	ENVIRONMENT                  development | staging | production
//	CONFIG_DIR                   directory holding the YAML files
//	AWS_REGION                   region of the table, bus, bucket and runtime
//	TABLE_NAME, INDEX_NAME       single table and its GSI1 index
//	EVENT_BUS_NAME, EVENT_SOURCE EventBridge bus for jobs and reminders
//	S3_BUCKET_NAME               raw-event archive bucket (webhook)
//	BEDROCK_AGENT_RUNTIME_ARN    AgentCore runtime of the agent (processor)
//	AGENT_QUALIFIER              runtime endpoint qualifier, default endpoint when empty
//	AGENT_TIMEOUT                bound on one agent invocation
//	TELEGRAM_WEBHOOK_SECRET      webhook secret token (webhook)
//	LOG_LEVEL                    zap level name
//	METRICS_NAMESPACE            Prometheus namespace
//	TRACING_ENABLED              export spans over OTLP
//	OTEL_EXPORTER_OTLP_ENDPOINT  OTLP gRPC collector address
//	TRACE_SAMPLE_RATE            root span sampling ratio
//
// # Hot Reload (Development Only)
//
// Watcher re-runs the loader when a file in the config directory changes
// and hands the new configuration to registered callbacks. The log level is
// the only setting applied live.
package config
