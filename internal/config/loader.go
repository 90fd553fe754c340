package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ============================================================================
// CONFIGURATION LOADER
// ============================================================================

// Loader builds a Config from layered sources. From lowest to highest
// priority:
//  1. Default values
//  2. base.yaml in the config directory
//  3. <environment>.yaml
//  4. Environment variables
type Loader struct {
	basePath    string
	environment Environment
	lookupEnv   func(string) (string, bool)
	sources     []string
}

// NewLoader creates a loader reading files from basePath. A missing
// directory is not an error.
func NewLoader(basePath string, env Environment) *Loader {
	return &Loader{
		basePath:    basePath,
		environment: env,
		lookupEnv:   os.LookupEnv,
	}
}

// Load applies every source and validates the result.
func (l *Loader) Load() (*Config, error) {
	l.sources = l.sources[:0]
	cfg := Default(l.environment)
	l.sources = append(l.sources, "defaults")

	if l.basePath != "" {
		for _, name := range []string{"base", string(l.environment)} {
			if err := l.loadFile(name, cfg); err != nil && !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed to load %s config: %w", name, err)
			}
		}
	}

	if err := l.loadEnvironmentVariables(cfg); err != nil {
		return nil, err
	}
	l.sources = append(l.sources, "environment")
	cfg.LoadedFrom = append([]string(nil), l.sources...)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// loadFile decodes <name>.yaml or <name>.yml over cfg.
func (l *Loader) loadFile(name string, cfg *Config) error {
	for _, ext := range []string{"yaml", "yml"} {
		path := filepath.Join(l.basePath, name+"."+ext)
		file, err := os.Open(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return err
		}
		defer file.Close()

		if err := yaml.NewDecoder(file).Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("failed to parse %s: %w", path, err)
		}
		l.sources = append(l.sources, path)
		return nil
	}
	return os.ErrNotExist
}

// loadEnvironmentVariables overlays the variables set by the deployment.
func (l *Loader) loadEnvironmentVariables(cfg *Config) error {
	strs := map[string]*string{
		"SERVICE_NAME":                &cfg.ServiceName,
		"AWS_REGION":                  &cfg.Region,
		"TABLE_NAME":                  &cfg.Database.TableName,
		"INDEX_NAME":                  &cfg.Database.IndexName,
		"EVENT_BUS_NAME":              &cfg.Events.EventBusName,
		"EVENT_SOURCE":                &cfg.Events.Source,
		"S3_BUCKET_NAME":              &cfg.Storage.BucketName,
		"BEDROCK_AGENT_RUNTIME_ARN":   &cfg.Agent.RuntimeARN,
		"AGENT_QUALIFIER":             &cfg.Agent.Qualifier,
		"TELEGRAM_WEBHOOK_SECRET":     &cfg.Webhook.SecretToken,
		"LOG_LEVEL":                   &cfg.Logging.Level,
		"METRICS_NAMESPACE":           &cfg.Metrics.Namespace,
		"OTEL_EXPORTER_OTLP_ENDPOINT": &cfg.Tracing.Endpoint,
	}
	for name, target := range strs {
		if val, ok := l.lookupEnv(name); ok && val != "" {
			*target = val
		}
	}

	var errs []error
	if val, ok := l.lookupEnv("AGENT_TIMEOUT"); ok && val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			errs = append(errs, fmt.Errorf("AGENT_TIMEOUT: %w", err))
		}
		cfg.Agent.Timeout = d
	}
	if val, ok := l.lookupEnv("TRACING_ENABLED"); ok && val != "" {
		b, err := strconv.ParseBool(val)
		if err != nil {
			errs = append(errs, fmt.Errorf("TRACING_ENABLED: %w", err))
		}
		cfg.Tracing.Enabled = b
	}
	if val, ok := l.lookupEnv("TRACE_SAMPLE_RATE"); ok && val != "" {
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("TRACE_SAMPLE_RATE: %w", err))
		}
		cfg.Tracing.SampleRate = f
	}
	return errors.Join(errs...)
}

// Load reads the configuration of the current process. The stage comes from
// ENVIRONMENT and the file directory from CONFIG_DIR.
func Load() (*Config, error) {
	return NewLoader(os.Getenv("CONFIG_DIR"), getEnvironment()).Load()
}

// MustLoad loads configuration and panics on error.
// Use this only in main() or init() functions.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}
