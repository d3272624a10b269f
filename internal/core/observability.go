package core

import (
	"context"
	"time"

	"orchidcore/pkg/domain"
)

// Logger is the minimal structured logging surface the service emits to.
// Implementations receive alternating key/value pairs.
type Logger interface {
	Debug(msg string, keyvals ...any)
	Info(msg string, keyvals ...any)
	Warn(msg string, keyvals ...any)
	Error(msg string, keyvals ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// AuditStatus marks an audit entry as a success or failure outcome.
type AuditStatus string

// Audit entry statuses.
const (
	AuditStatusSuccess AuditStatus = "success"
	AuditStatusError   AuditStatus = "error"
)

// AuditEntry captures one service operation outcome for compliance trails.
type AuditEntry struct {
	Operation string
	Entity    domain.EntityType
	EntityID  string
	Status    AuditStatus
	Error     string
	Duration  time.Duration
	Timestamp time.Time
}

// AuditRecorder receives audit entries emitted after every instrumented
// operation.
type AuditRecorder interface {
	Record(ctx context.Context, entry AuditEntry)
}

// MetricsRecorder observes operation timing and outcome.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

// TraceSpan finishes a single traced operation.
type TraceSpan interface {
	End(err error)
}

// Tracer starts spans around service operations.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, TraceSpan)
}

// Clock supplies the current time to the service. Injectable for tests.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() time.Time

// Now returns the function's reading.
func (f ClockFunc) Now() time.Time { return f() }

// Option configures optional service collaborators.
type Option func(*Service)

// WithLogger installs a logger. Nil restores the noop default.
func WithLogger(logger Logger) Option {
	return func(s *Service) {
		if logger == nil {
			logger = noopLogger{}
		}
		s.logger = logger
	}
}

// WithAuditRecorder installs an audit recorder.
func WithAuditRecorder(recorder AuditRecorder) Option {
	return func(s *Service) { s.audit = recorder }
}

// WithMetricsRecorder installs a metrics recorder.
func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(s *Service) { s.metrics = recorder }
}

// WithTracer installs a tracer.
func WithTracer(tracer Tracer) Option {
	return func(s *Service) { s.tracer = tracer }
}

// WithClock overrides the service clock. The override also propagates to the
// store's transaction clock when the store supports it, so derived reads and
// transactional writes share one notion of now.
func WithClock(clock Clock) Option {
	return func(s *Service) {
		if clock == nil {
			return
		}
		s.clock = clock
		if setter, ok := s.store.(interface{ SetNowFunc(func() time.Time) }); ok {
			setter.SetNowFunc(clock.Now)
		}
	}
}

// instrument wraps an operation with tracing, metrics, audit, and logging.
// It returns the operation error unchanged.
func (s *Service) instrument(ctx context.Context, operation string, entity domain.EntityType, entityID string, fn func(context.Context) error) error {
	var span TraceSpan
	if s.tracer != nil {
		ctx, span = s.tracer.Start(ctx, operation)
	}
	started := s.clock.Now()
	err := fn(ctx)
	duration := s.clock.Now().Sub(started)

	if span != nil {
		span.End(err)
	}
	if s.metrics != nil {
		s.metrics.Observe(ctx, operation, err == nil, duration)
	}
	if s.audit != nil {
		entry := AuditEntry{
			Operation: operation,
			Entity:    entity,
			EntityID:  entityID,
			Status:    AuditStatusSuccess,
			Duration:  duration,
			Timestamp: s.clock.Now(),
		}
		if err != nil {
			entry.Status = AuditStatusError
			entry.Error = err.Error()
		}
		s.audit.Record(ctx, entry)
	}
	if err != nil {
		s.logger.Error("operation failed", "operation", operation, "entity", string(entity), "entity_id", entityID, "error", err.Error())
	} else {
		s.logger.Debug("operation completed", "operation", operation, "entity", string(entity), "entity_id", entityID, "duration_ms", float64(duration)/float64(time.Millisecond))
	}
	return err
}
