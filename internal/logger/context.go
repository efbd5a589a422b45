package logger

import (
	"context"
	"time"
)

// contextKey is a private type for context keys to avoid collisions
type contextKey struct{}

// logContextKey is the key for LogContext in context.Context
var logContextKey = contextKey{}

// LogContext holds run-scoped logging fields for one pipeline invocation
// (a scan, backup, restore, or gc run), so every log line emitted during
// that run carries the same correlation fields without threading them
// through every function call.
type LogContext struct {
	TraceID   string    // OpenTelemetry trace ID
	SpanID    string    // OpenTelemetry span ID
	Operation string    // scan, backup, restore, gc
	RootPath  string    // backup root or restore destination
	WorkerID  int       // backup pool lane index, -1 when not applicable
	StartTime time.Time // for duration calculation
}

// WithContext returns a new context with the given LogContext.
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, logContextKey, lc)
}

// FromContext retrieves the LogContext from context, or nil if not present.
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(logContextKey).(*LogContext)
	return lc
}

// NewLogContext creates a new LogContext for operation, e.g. "backup".
func NewLogContext(operation string) *LogContext {
	return &LogContext{
		Operation: operation,
		WorkerID:  -1,
		StartTime: time.Now(),
	}
}

// Clone creates a copy of the LogContext.
func (lc *LogContext) Clone() *LogContext {
	if lc == nil {
		return nil
	}
	clone := *lc
	return &clone
}

// WithRootPath returns a copy with the backup root / restore destination set.
func (lc *LogContext) WithRootPath(path string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.RootPath = path
	}
	return clone
}

// WithWorkerID returns a copy identifying the backup pool lane handling a batch.
func (lc *LogContext) WithWorkerID(id int) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.WorkerID = id
	}
	return clone
}

// WithTrace returns a copy with trace info set.
func (lc *LogContext) WithTrace(traceID, spanID string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.TraceID = traceID
		clone.SpanID = spanID
	}
	return clone
}

// DurationMs returns the duration since StartTime in milliseconds.
func (lc *LogContext) DurationMs() float64 {
	if lc == nil || lc.StartTime.IsZero() {
		return 0
	}
	return float64(time.Since(lc.StartTime).Microseconds()) / 1000.0
}
