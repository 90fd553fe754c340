package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/smithy-go"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type scriptedInvoker struct {
	errs  []error
	calls int
}

func (s *scriptedInvoker) Invoke(context.Context, Request) (Result, error) {
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return Result{}, s.errs[i]
	}
	return Result{Reply: "ok"}, nil
}

func TestBreakerInvoker(t *testing.T) {
	outage := &smithy.GenericAPIError{Code: "ThrottlingException", Message: "rate exceeded", Fault: smithy.FaultClient}

	t.Run("Should open after repeated outages", func(t *testing.T) {
		next := &scriptedInvoker{errs: []error{outage, outage, outage}}
		b := NewBreakerInvoker(next, DefaultBreakerConfig(), zaptest.NewLogger(t))

		for i := 0; i < 3; i++ {
			_, err := b.Invoke(context.Background(), Request{Prompt: "hi"})
			require.ErrorAs(t, err, new(*smithy.GenericAPIError))
		}
		assert.Equal(t, gobreaker.StateOpen, b.State())

		_, err := b.Invoke(context.Background(), Request{Prompt: "hi"})
		assert.ErrorIs(t, err, ErrUnavailable)
		assert.Equal(t, 3, next.calls)
	})

	t.Run("Should count timeouts and server faults", func(t *testing.T) {
		fault := &smithy.GenericAPIError{Code: "RuntimeFailure", Fault: smithy.FaultServer}
		next := &scriptedInvoker{errs: []error{context.DeadlineExceeded, fault, context.DeadlineExceeded}}
		b := NewBreakerInvoker(next, DefaultBreakerConfig(), nil)

		for i := 0; i < 3; i++ {
			_, err := b.Invoke(context.Background(), Request{})
			assert.Error(t, err)
		}
		assert.Equal(t, gobreaker.StateOpen, b.State())
	})

	t.Run("Should not count rejected requests", func(t *testing.T) {
		bad := &smithy.GenericAPIError{Code: "ValidationException", Message: "payload too large", Fault: smithy.FaultClient}
		next := &scriptedInvoker{errs: []error{bad, bad, bad, bad}}
		b := NewBreakerInvoker(next, DefaultBreakerConfig(), nil)

		for i := 0; i < 4; i++ {
			_, err := b.Invoke(context.Background(), Request{})
			assert.Error(t, err)
		}
		assert.Equal(t, gobreaker.StateClosed, b.State())
		assert.Equal(t, 4, next.calls)
	})

	t.Run("Should pass results through", func(t *testing.T) {
		b := NewBreakerInvoker(&scriptedInvoker{}, DefaultBreakerConfig(), nil)
		res, err := b.Invoke(context.Background(), Request{})
		require.NoError(t, err)
		assert.Equal(t, "ok", res.Reply)
	})

	t.Run("Should ignore cancellation", func(t *testing.T) {
		next := &scriptedInvoker{errs: []error{context.Canceled, context.Canceled, context.Canceled}}
		b := NewBreakerInvoker(next, DefaultBreakerConfig(), nil)
		for i := 0; i < 3; i++ {
			_, err := b.Invoke(context.Background(), Request{})
			assert.True(t, errors.Is(err, context.Canceled))
		}
		assert.Equal(t, gobreaker.StateClosed, b.State())
	})
}
