package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func envFrom(vars map[string]string) func(string) (string, bool) {
	return func(name string) (string, bool) {
		v, ok := vars[name]
		return v, ok
	}
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
}

func TestLoad(t *testing.T) {
	t.Run("Should use defaults without files or variables", func(t *testing.T) {
		l := NewLoader("", Development)
		l.lookupEnv = envFrom(nil)

		cfg, err := l.Load()
		require.NoError(t, err)
		assert.Equal(t, "brain2-assistant-development", cfg.Database.TableName)
		assert.Equal(t, "GSI1", cfg.Database.IndexName)
		assert.Equal(t, 60*time.Second, cfg.Agent.Timeout)
		assert.Equal(t, []string{"defaults", "environment"}, cfg.LoadedFrom)
	})

	t.Run("Should layer files under environment variables", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "base.yaml", "region: eu-west-1\ndatabase:\n  table_name: base-table\nlogging:\n  level: debug\n")
		writeFile(t, dir, "production.yaml", "database:\n  table_name: prod-table\nagent:\n  timeout: 30s\n")

		l := NewLoader(dir, Production)
		l.lookupEnv = envFrom(map[string]string{
			"TABLE_NAME":                "env-table",
			"TRACING_ENABLED":           "true",
			"TRACE_SAMPLE_RATE":         "0.5",
			"S3_BUCKET_NAME":            "brain2-data",
			"BEDROCK_AGENT_RUNTIME_ARN": "arn:aws:bedrock-agentcore:eu-west-1:123456789012:runtime/agent-1",
		})

		cfg, err := l.Load()
		require.NoError(t, err)
		assert.Equal(t, "eu-west-1", cfg.Region)
		assert.Equal(t, "env-table", cfg.Database.TableName)
		assert.Equal(t, "debug", cfg.Logging.Level)
		assert.Equal(t, 30*time.Second, cfg.Agent.Timeout)
		assert.Equal(t, "brain2-data", cfg.Storage.BucketName)
		assert.Equal(t, "arn:aws:bedrock-agentcore:eu-west-1:123456789012:runtime/agent-1", cfg.Agent.RuntimeARN)
		assert.True(t, cfg.Tracing.Enabled)
		assert.Equal(t, 0.5, cfg.Tracing.SampleRate)
		assert.Len(t, cfg.LoadedFrom, 4)
		assert.True(t, cfg.IsProduction())
	})

	t.Run("Should fail on malformed variables", func(t *testing.T) {
		l := NewLoader("", Development)
		l.lookupEnv = envFrom(map[string]string{"AGENT_TIMEOUT": "soon"})

		_, err := l.Load()
		assert.ErrorContains(t, err, "AGENT_TIMEOUT")
	})

	t.Run("Should fail on a malformed file", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "base.yaml", "database: [")

		l := NewLoader(dir, Development)
		l.lookupEnv = envFrom(nil)
		_, err := l.Load()
		assert.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"valid", func(*Config) {}, ""},
		{"unknown environment", func(c *Config) { c.Environment = "qa" }, "environment"},
		{"missing table", func(c *Config) { c.Database.TableName = " " }, "database.table_name"},
		{"missing index", func(c *Config) { c.Database.IndexName = "" }, "database.index_name"},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"sample rate out of range", func(c *Config) { c.Tracing.SampleRate = 2 }, "tracing.sample_rate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default(Staging)
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.errMsg)
		})
	}
}

func TestFunctionValidation(t *testing.T) {
	t.Run("Should require the webhook secret and archive bucket", func(t *testing.T) {
		cfg := Default(Production)
		err := cfg.ValidateWebhook()
		assert.ErrorContains(t, err, "webhook.secret_token")
		assert.ErrorContains(t, err, "storage.bucket_name")

		cfg.Webhook.SecretToken = "s3cret"
		cfg.Storage.BucketName = "brain2-data"
		assert.NoError(t, cfg.ValidateWebhook())
	})

	t.Run("Should require an AgentCore runtime ARN", func(t *testing.T) {
		cfg := Default(Production)
		assert.ErrorContains(t, cfg.ValidateProcessor(), "agent.runtime_arn: is required")

		for _, bad := range []string{
			"https://agent.example.com/invoke",
			"arn:aws:lambda:us-east-1:123456789012:function:agent",
			"arn:aws:bedrock-agentcore:us-east-1:123456789012:memory/m1",
		} {
			cfg.Agent.RuntimeARN = bad
			assert.Error(t, cfg.ValidateProcessor(), bad)
		}

		cfg.Agent.RuntimeARN = "arn:aws:bedrock-agentcore:us-east-1:123456789012:runtime/brain2-agent-abc123"
		assert.NoError(t, cfg.ValidateProcessor())
	})
}

func TestWatcher(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", "logging:\n  level: info\n")

	l := NewLoader(dir, Development)
	l.lookupEnv = envFrom(nil)
	initial, err := l.Load()
	require.NoError(t, err)

	w, err := NewWatcher(l, initial, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer w.Stop()

	levels := make(chan string, 4)
	w.OnChange(func(cfg *Config) { levels <- cfg.Logging.Level })

	writeFile(t, dir, "base.yaml", "logging:\n  level: debug\n")

	select {
	case level := <-levels:
		assert.Equal(t, "debug", level)
	case <-time.After(5 * time.Second):
		t.Fatal("configuration was not reloaded")
	}
	assert.Equal(t, "debug", w.Config().Logging.Level)
}
