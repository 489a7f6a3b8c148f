package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lifeplan-ai/lifeplan/pkg/chaos"
)

func stubSleep(t *testing.T) *[]time.Duration {
	t.Helper()
	var delays []time.Duration
	orig := sleepFn
	sleepFn = func(_ context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}
	t.Cleanup(func() { sleepFn = orig })
	return &delays
}

func TestLLMCall_SuccessNoChaos(t *testing.T) {
	inj := chaos.NewInjector(chaos.Config{})
	got, meta, err := LLMCall(context.Background(), inj, func(context.Context) (string, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Zero(t, meta.Retries)
	assert.Empty(t, meta.LastError)
	assert.False(t, meta.HardFailure)
}

func TestLLMCall_ProviderErrorNotRetried(t *testing.T) {
	stubSleep(t)
	inj := chaos.NewInjector(chaos.Config{})
	calls := 0
	provErr := errors.New("provider exploded")

	_, meta, err := LLMCall(context.Background(), inj, func(context.Context) (string, error) {
		calls++
		return "", provErr
	})
	require.ErrorIs(t, err, provErr)
	assert.Equal(t, 1, calls, "provider errors must not be retried")
	assert.Equal(t, provErr.Error(), meta.LastError)
	assert.False(t, meta.HardFailure)
}

func TestLLMCall_ChaosExhaustion(t *testing.T) {
	delays := stubSleep(t)
	inj := chaos.NewInjector(chaos.Config{Enabled: true, NetworkFailProb: 1})
	calls := 0

	got, meta, err := LLMCall(context.Background(), inj, func(context.Context) (string, error) {
		calls++
		return "never", nil
	})
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Zero(t, calls, "fn must not run when chaos fails every attempt")
	assert.True(t, meta.HardFailure)
	assert.Equal(t, MaxRetries, meta.Retries)
	assert.Contains(t, meta.LastError, "network")

	// Delays follow 2^n + U(0, 0.5) seconds.
	require.Len(t, *delays, MaxRetries)
	for n, d := range *delays {
		base := time.Duration(1<<n) * time.Second
		assert.GreaterOrEqual(t, d, base)
		assert.Less(t, d, base+500*time.Millisecond)
	}
}

func TestToolCall_RetriesRealErrors(t *testing.T) {
	stubSleep(t)
	inj := chaos.NewInjector(chaos.Config{})
	calls := 0

	got, meta, err := ToolCall(context.Background(), inj, func(context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, errors.New("transient tool error")
		}
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.Equal(t, 2, meta.Retries)
	assert.False(t, meta.HardFailure)
}

func TestToolCall_ToolChaosExhaustion(t *testing.T) {
	stubSleep(t)
	inj := chaos.NewInjector(chaos.Config{Enabled: true, ToolFailProb: 1})

	got, meta, err := ToolCall(context.Background(), inj, func(context.Context) ([]string, error) {
		t.Fatal("fn should never run under p_tool=1.0")
		return nil, nil
	})
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.True(t, meta.HardFailure)
	assert.Equal(t, MaxRetries, meta.Retries)
	assert.Contains(t, meta.LastError, "tool")
}

func TestToolCall_ContextCancelledDuringBackoff(t *testing.T) {
	orig := sleepFn
	sleepFn = func(ctx context.Context, _ time.Duration) error { return context.Canceled }
	t.Cleanup(func() { sleepFn = orig })

	inj := chaos.NewInjector(chaos.Config{Enabled: true, ToolFailProb: 1})
	_, meta, err := ToolCall(context.Background(), inj, func(context.Context) (string, error) {
		return "", nil
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.True(t, meta.HardFailure)
}
