package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws/arn"
	"go.uber.org/zap/zapcore"
)

// Environment names a deployment stage.
type Environment string

const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Production  Environment = "production"
)

// Config is the configuration shared by every function of the assistant.
type Config struct {
	Environment Environment `yaml:"environment"`
	ServiceName string      `yaml:"service_name"`
	Region      string      `yaml:"region"`

	Database Database `yaml:"database"`
	Events   Events   `yaml:"events"`
	Storage  Storage  `yaml:"storage"`
	Agent    Agent    `yaml:"agent"`
	Webhook  Webhook  `yaml:"webhook"`
	Logging  Logging  `yaml:"logging"`
	Metrics  Metrics  `yaml:"metrics"`
	Tracing  Tracing  `yaml:"tracing"`

	// LoadedFrom lists the sources applied, lowest priority first.
	LoadedFrom []string `yaml:"-"`
}

// Database locates the single table and its secondary index.
type Database struct {
	TableName string `yaml:"table_name"`
	IndexName string `yaml:"index_name"`
}

// Events configures the EventBridge bus carrying jobs and reminders.
type Events struct {
	EventBusName string `yaml:"event_bus_name"`
	Source       string `yaml:"source"`
}

// Storage locates the bucket holding the raw-event archive.
type Storage struct {
	BucketName string `yaml:"bucket_name"`
}

// Agent locates the Bedrock AgentCore runtime hosting the agent.
type Agent struct {
	RuntimeARN string        `yaml:"runtime_arn"`
	Qualifier  string        `yaml:"qualifier"`
	Timeout    time.Duration `yaml:"timeout"`
}

// Webhook holds the secret token Telegram sends with every update.
type Webhook struct {
	SecretToken string `yaml:"secret_token"`
}

type Logging struct {
	Level string `yaml:"level"`
}

type Metrics struct {
	Namespace string `yaml:"namespace"`
}

type Tracing struct {
	Enabled    bool    `yaml:"enabled"`
	Endpoint   string  `yaml:"endpoint"`
	SampleRate float64 `yaml:"sample_rate"`
}

// Default returns the configuration used before any file or variable is
// applied.
func Default(env Environment) *Config {
	return &Config{
		Environment: env,
		ServiceName: "brain2-assistant",
		Region:      "us-east-1",
		Database: Database{
			TableName: "brain2-assistant-" + string(env),
			IndexName: "GSI1",
		},
		Events: Events{
			EventBusName: "default",
			Source:       "brain2.assistant",
		},
		Agent: Agent{
			Timeout: 60 * time.Second,
		},
		Logging: Logging{
			Level: "info",
		},
		Metrics: Metrics{
			Namespace: "brain2",
		},
		Tracing: Tracing{
			Endpoint:   "localhost:4317",
			SampleRate: 0.1,
		},
	}
}

// Validate checks the settings every function needs.
func (c *Config) Validate() error {
	var errs []error
	switch c.Environment {
	case Development, Staging, Production:
	default:
		errs = append(errs, fmt.Errorf("environment: unknown value %q", c.Environment))
	}
	if strings.TrimSpace(c.Database.TableName) == "" {
		errs = append(errs, errors.New("database.table_name: is required"))
	}
	if strings.TrimSpace(c.Database.IndexName) == "" {
		errs = append(errs, errors.New("database.index_name: is required"))
	}
	if strings.TrimSpace(c.Region) == "" {
		errs = append(errs, errors.New("region: is required"))
	}
	if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, fmt.Errorf("logging.level: %w", err))
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		errs = append(errs, fmt.Errorf("tracing.sample_rate: %v is outside [0, 1]", c.Tracing.SampleRate))
	}
	if c.Agent.Timeout < 0 {
		errs = append(errs, errors.New("agent.timeout: must not be negative"))
	}
	return errors.Join(errs...)
}

// ValidateWebhook checks the settings of the webhook function.
func (c *Config) ValidateWebhook() error {
	var errs []error
	if c.Webhook.SecretToken == "" {
		errs = append(errs, errors.New("webhook.secret_token: is required"))
	}
	if strings.TrimSpace(c.Storage.BucketName) == "" {
		errs = append(errs, errors.New("storage.bucket_name: is required"))
	}
	return errors.Join(errs...)
}

// ValidateProcessor checks the settings of the processor function.
func (c *Config) ValidateProcessor() error {
	if c.Agent.RuntimeARN == "" {
		return errors.New("agent.runtime_arn: is required")
	}
	parsed, err := arn.Parse(c.Agent.RuntimeARN)
	if err != nil {
		return fmt.Errorf("agent.runtime_arn: %w", err)
	}
	if parsed.Service != "bedrock-agentcore" || !strings.HasPrefix(parsed.Resource, "runtime/") {
		return fmt.Errorf("agent.runtime_arn: %q is not an AgentCore runtime", c.Agent.RuntimeARN)
	}
	return nil
}

// IsProduction reports whether c describes the production stage.
func (c *Config) IsProduction() bool {
	return c.Environment == Production
}

func getEnvironment() Environment {
	env := strings.ToLower(strings.TrimSpace(os.Getenv("ENVIRONMENT")))
	if env == "" {
		return Development
	}
	return Environment(env)
}
