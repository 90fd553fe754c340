package di

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"brain2-assistant/internal/config"
	"brain2-assistant/internal/infrastructure/observability"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestColdStart(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	el := observability.NewEventLogger(zap.New(core))
	tracker := NewColdStartTracker()
	assert.True(t, tracker.IsColdStart())

	calls := 0
	h := withColdStart(tracker, el, func(ctx context.Context, n int) (int, error) {
		calls++
		return n * 2, nil
	})

	for i := 1; i <= 3; i++ {
		out, err := h(context.Background(), i)
		require.NoError(t, err)
		assert.Equal(t, i*2, out)
	}

	assert.Equal(t, 3, calls)
	assert.False(t, tracker.IsColdStart())
	assert.Equal(t, 1, logs.FilterMessage("cold_start").Len())
}

func TestProvideLogger(t *testing.T) {
	t.Run("Should honour the configured level", func(t *testing.T) {
		cfg := config.Default(config.Production)
		cfg.Logging.Level = "warn"

		level, err := provideLogLevel(cfg)
		require.NoError(t, err)
		logger, cleanup, err := provideLogger(cfg, level)
		require.NoError(t, err)
		defer cleanup()

		assert.False(t, logger.Core().Enabled(zap.InfoLevel))
		assert.True(t, logger.Core().Enabled(zap.WarnLevel))

		level.SetLevel(zap.DebugLevel)
		assert.True(t, logger.Core().Enabled(zap.DebugLevel))
	})

	t.Run("Should reject an unknown level", func(t *testing.T) {
		cfg := config.Default(config.Development)
		cfg.Logging.Level = "loud"
		_, err := provideLogLevel(cfg)
		assert.Error(t, err)
	})
}

func TestProvidersRejectIncompleteConfig(t *testing.T) {
	cfg := config.Default(config.Staging)
	el := observability.NewEventLogger(nil)

	_, err := provideWebhookHandler(cfg, nil, el, nil)
	assert.ErrorContains(t, err, "webhook.secret_token")
	assert.ErrorContains(t, err, "storage.bucket_name")

	client := provideAgentCoreClient(aws.Config{Region: "us-east-1"})
	_, err = provideAgentInvoker(cfg, client)
	assert.ErrorContains(t, err, "agent.runtime_arn")

	cfg.Agent.RuntimeARN = "arn:aws:bedrock-agentcore:us-east-1:123456789012:runtime/brain2-agent-abc123"
	invoker, err := provideAgentInvoker(cfg, client)
	require.NoError(t, err)
	assert.NotNil(t, provideAgentBreaker(invoker, zap.NewNop()))
}

func TestProvideArchive(t *testing.T) {
	cfg := config.Default(config.Staging)
	cfg.Storage.BucketName = "brain2-data"
	archive := provideArchive(provideS3Client(aws.Config{Region: "us-east-1"}), cfg, zap.NewNop())
	assert.NotNil(t, archive)
}

type countingFlusher struct {
	calls    int
	canceled bool
	err      error
}

func (f *countingFlusher) ForceFlush(ctx context.Context) error {
	f.calls++
	f.canceled = ctx.Err() != nil
	return f.err
}

func TestWithFlush(t *testing.T) {
	t.Run("Should flush spans after every invocation", func(t *testing.T) {
		f := &countingFlusher{}
		h := withFlush(f, zap.NewNop(), func(ctx context.Context, n int) (int, error) {
			assert.Equal(t, 0, f.calls)
			return n + 1, nil
		})

		for i := 0; i < 2; i++ {
			out, err := h(context.Background(), i)
			require.NoError(t, err)
			assert.Equal(t, i+1, out)
		}
		assert.Equal(t, 2, f.calls)
	})

	t.Run("Should flush even when the invocation context is cancelled", func(t *testing.T) {
		f := &countingFlusher{}
		ctx, cancel := context.WithCancel(context.Background())
		h := withFlush(f, zap.NewNop(), func(context.Context, int) (int, error) {
			cancel()
			return 0, context.Canceled
		})

		_, err := h(ctx, 1)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, f.calls)
		assert.False(t, f.canceled)
	})

	t.Run("Should keep the handler result when flushing fails", func(t *testing.T) {
		core, logs := observer.New(zap.WarnLevel)
		f := &countingFlusher{err: errors.New("collector unreachable")}
		h := withFlush(f, zap.New(core), func(context.Context, int) (int, error) { return 7, nil })

		out, err := h(context.Background(), 0)
		require.NoError(t, err)
		assert.Equal(t, 7, out)
		assert.Equal(t, 1, logs.FilterMessage("Span flush failed").Len())
	})

	t.Run("Should accept a disabled tracer provider", func(t *testing.T) {
		var tp *observability.TracerProvider
		h := withFlush(tp, zap.NewNop(), func(context.Context, int) (int, error) { return 1, nil })
		out, err := h(context.Background(), 0)
		require.NoError(t, err)
		assert.Equal(t, 1, out)
	})
}

func TestTracingDisabled(t *testing.T) {
	cfg := config.Default(config.Development)
	tp, cleanup, err := provideTracing(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	assert.Nil(t, tp)
	cleanup()
}

func TestWatchLogLevel(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "base.yaml")
	require.NoError(t, os.WriteFile(base, []byte("logging:\n  level: info\n"), 0o600))
	t.Setenv("CONFIG_DIR", dir)

	cfg := config.Default(config.Development)
	level := zap.NewAtomicLevelAt(zap.InfoLevel)
	stop := watchLogLevel(cfg, level, zap.NewNop())
	defer stop()

	require.NoError(t, os.WriteFile(base, []byte("logging:\n  level: debug\n"), 0o600))
	assert.Eventually(t, func() bool {
		return level.Level() == zap.DebugLevel
	}, 5*time.Second, 50*time.Millisecond)
}
