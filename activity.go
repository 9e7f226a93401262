package auth

import (
	"context"
	"time"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventRegisterSuccess ActivityEventType = "auth.register.success"
	ActivityEventLoginSuccess    ActivityEventType = "auth.login.success"
	ActivityEventLoginFailure    ActivityEventType = "auth.login.failure"
)

// ActivityEvent captures audit-friendly information about an action.
// It never carries a password or hash.
type ActivityEvent struct {
	EventType  ActivityEventType
	Subject    string
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

type loggerActivitySink struct {
	logger Logger
}

// NewLoggerActivitySink writes events to logger, failures at warn level
func NewLoggerActivitySink(logger Logger) ActivitySink {
	return loggerActivitySink{logger: normalizeLogger(logger)}
}

func (s loggerActivitySink) Record(_ context.Context, event ActivityEvent) error {
	args := []any{"event", string(event.EventType), "subject", event.Subject}
	for k, v := range event.Metadata {
		args = append(args, k, v)
	}
	if event.EventType == ActivityEventLoginFailure {
		s.logger.Warn("auth activity", args...)
		return nil
	}
	s.logger.Info("auth activity", args...)
	return nil
}
