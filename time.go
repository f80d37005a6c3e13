package auth

import (
	"context"
	"time"
)

// IsWithinThresholdPeriod checks if t happened less than period ago
func IsWithinThresholdPeriod(t time.Time, period time.Duration) bool {
	return t.After(time.Now().Add(-period))
}

// IsOutsideThresholdPeriod is the negation of IsWithinThresholdPeriod
func IsOutsideThresholdPeriod(t time.Time, period time.Duration) bool {
	return !IsWithinThresholdPeriod(t, period)
}

// withTimeout applies d to ctx unless ctx already ends sooner
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < d {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
