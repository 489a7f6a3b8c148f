// Package resilience wraps LLM and tool calls with chaos injection and
// bounded exponential-backoff retries. Callers receive the result plus a Meta
// describing how many retries were spent and whether the call hard-failed.
package resilience

import (
	"context"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"

	"github.com/lifeplan-ai/lifeplan/pkg/chaos"
)

// MaxRetries bounds retry attempts: a call is tried at most MaxRetries+1 times.
const MaxRetries = 3

// Meta reports the retry outcome of a wrapped call.
type Meta struct {
	Retries     int    `json:"retries"`
	LastError   string `json:"last_error,omitempty"`
	HardFailure bool   `json:"hard_failure,omitempty"`
}

// LLMCall invokes fn behind network chaos. Only chaos-raised failures are
// retried; real provider errors propagate immediately with their Meta.
// On retry exhaustion the zero value is returned with Meta.HardFailure set.
func LLMCall[T any](ctx context.Context, inj *chaos.Injector, fn func(context.Context) (T, error)) (T, Meta, error) {
	var zero T
	meta := Meta{}
	for {
		if err := inj.ApplyNetworkChaos(); err != nil {
			meta.LastError = err.Error()
			if done, ctxErr := backoff(ctx, &meta); done {
				return zero, meta, ctxErr
			}
			continue
		}
		result, err := fn(ctx)
		if err != nil {
			// Real provider error: no retry in the LLM wrapper.
			meta.LastError = err.Error()
			return zero, meta, err
		}
		return result, meta, nil
	}
}

// ToolCall invokes fn behind tool chaos then network chaos. Every failure is
// retried (the chaos error class is a superset of tool errors here).
// On retry exhaustion the zero value is returned with Meta.HardFailure set.
func ToolCall[T any](ctx context.Context, inj *chaos.Injector, fn func(context.Context) (T, error)) (T, Meta, error) {
	var zero T
	meta := Meta{}
	for {
		err := inj.ApplyToolChaos()
		if err == nil {
			err = inj.ApplyNetworkChaos()
		}
		if err == nil {
			var result T
			result, err = fn(ctx)
			if err == nil {
				return result, meta, nil
			}
		}
		meta.LastError = err.Error()
		if done, ctxErr := backoff(ctx, &meta); done {
			return zero, meta, ctxErr
		}
	}
}

// sleepFn is stubbed in tests to avoid multi-second backoff waits.
var sleepFn = func(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	select {
	case <-ctx.Done():
		timer.Stop()
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// backoff sleeps 2^retries + U(0, 0.5) seconds and advances the retry count.
// It returns done=true when the retry budget is exhausted or ctx expired.
func backoff(ctx context.Context, meta *Meta) (bool, error) {
	if meta.Retries == MaxRetries {
		meta.HardFailure = true
		return true, nil
	}
	delay := time.Duration((math.Pow(2, float64(meta.Retries)) + rand.Float64()*0.5) * float64(time.Second))
	slog.Debug("Retrying after chaos failure", "retries", meta.Retries, "delay", delay, "last_error", meta.LastError)

	if err := sleepFn(ctx, delay); err != nil {
		meta.HardFailure = true
		return true, err
	}
	meta.Retries++
	return false, nil
}
