package agentrt

import (
	"context"
	"time"
)

// defaultMaxHookRetries bounds the hook-driven retry loop (§4.2.6): "a
// hard cap (default 10 retries after the first attempt) even if hooks
// keep asking."
const defaultMaxHookRetries = 10

// runWithHookRetry wraps a single operation F (model generation or tool
// execution) with the hook-driven retry loop: on failure, dispatch
// failureEvent hooks and retry only if their aggregated RetryDecision
// says so, up to maxRetries beyond the first attempt (§4.2.6).
func runWithHookRetry[T any](
	ctx context.Context,
	hooks *HookRegistry,
	failureEvent HookEventName,
	baseInput HookInput,
	maxRetries int,
	f func(attempt int) (T, error),
) (T, error) {
	if maxRetries <= 0 {
		maxRetries = defaultMaxHookRetries
	}
	var attempt int
	for {
		result, err := f(attempt)
		if err == nil {
			return result, nil
		}

		input := baseInput
		input.HookEventName = failureEvent
		input.Attempt = attempt
		input.Error = err.Error()
		outputs := hooks.Dispatch(ctx, input)
		decision := aggregateRetryDecision(outputs)

		if decision == nil || !decision.Retry || attempt >= maxRetries {
			var zero T
			return zero, err
		}
		if decision.RetryDelayMs > 0 {
			timer := time.NewTimer(time.Duration(decision.RetryDelayMs) * time.Millisecond)
			select {
			case <-ctx.Done():
				timer.Stop()
				var zero T
				return zero, ctx.Err()
			case <-timer.C:
			}
		}
		attempt++
	}
}
