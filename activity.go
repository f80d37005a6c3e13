package auth

import (
	"context"
	"time"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityLogin                  ActivityEventType = "auth.session.login"
	ActivityLogout                 ActivityEventType = "auth.session.logout"
	ActivityLoginSuccess           ActivityEventType = "auth.login.success"
	ActivityLoginFailure           ActivityEventType = "auth.login.failure"
	ActivitySignup                 ActivityEventType = "auth.signup"
	ActivityPasswordResetRequested ActivityEventType = "auth.password.reset_requested"
	ActivityPasswordResetSuccess   ActivityEventType = "auth.password.reset"
	ActivityAccessDenied           ActivityEventType = "auth.access.denied"
)

// ActivityEvent captures audit-friendly information about an action.
// Secrets never go in here.
type ActivityEvent struct {
	Type       ActivityEventType
	Username   string
	Role       Role
	Reason     string
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

// MultiActivitySink fans events out to every sink, returning the first error
type MultiActivitySink []ActivitySink

// Record implements ActivitySink.
func (m MultiActivitySink) Record(ctx context.Context, event ActivityEvent) error {
	var first error
	for _, sink := range m {
		if sink == nil {
			continue
		}
		if err := sink.Record(ctx, event); err != nil && first == nil {
			first = err
		}
	}
	return first
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return stampedSink{s}
}

// stampedSink fills OccurredAt when the caller left it empty
type stampedSink struct {
	next ActivitySink
}

func (s stampedSink) Record(ctx context.Context, event ActivityEvent) error {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	return s.next.Record(ctx, event)
}

// recordActivity is best effort, a failing sink never fails the operation
func recordActivity(ctx context.Context, sink ActivitySink, logger Logger, event ActivityEvent) {
	if err := sink.Record(ctx, event); err != nil {
		logger.Warn("failed to record activity", "type", event.Type, "error", err)
	}
}
