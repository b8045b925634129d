package logging

import (
	"context"
	"log/slog"
	"strings"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldJobID is the standardized structured logging key for job identifiers.
	FieldJobID = "job_id"
	// FieldBatchID is the standardized structured logging key for batch identifiers.
	FieldBatchID = "batch_id"
	// FieldWorkerID is the standardized structured logging key for worker slot indexes.
	FieldWorkerID = "worker_id"
	// FieldCallerID is the standardized structured logging key for submitting caller identities.
	FieldCallerID = "caller_id"
	// FieldMode is the standardized structured logging key for recognition modes.
	FieldMode = "mode"
	// FieldEngine is the standardized structured logging key for engine names.
	FieldEngine = "engine"
	// FieldFingerprint is the standardized structured logging key for content fingerprints.
	FieldFingerprint = "fingerprint"
	// FieldAttempt is the standardized structured logging key for execution attempt counters.
	FieldAttempt = "attempt"
	// FieldCorrelationID is the standardized structured logging key for request correlation identifiers.
	FieldCorrelationID = "correlation_id"
)

type contextKey string

const (
	ctxKeyJobID         contextKey = "job_id"
	ctxKeyBatchID       contextKey = "batch_id"
	ctxKeyCorrelationID contextKey = "correlation_id"
)

// WithJobID stamps a job identifier onto the context for downstream log lines.
func WithJobID(ctx context.Context, id string) context.Context {
	if strings.TrimSpace(id) == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxKeyJobID, id)
}

// JobIDFromContext recovers a job identifier previously stamped with WithJobID.
func JobIDFromContext(ctx context.Context) (string, bool) {
	return stringFromContext(ctx, ctxKeyJobID)
}

// WithBatchID stamps a batch identifier onto the context.
func WithBatchID(ctx context.Context, id string) context.Context {
	if strings.TrimSpace(id) == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxKeyBatchID, id)
}

// BatchIDFromContext recovers a batch identifier previously stamped with WithBatchID.
func BatchIDFromContext(ctx context.Context) (string, bool) {
	return stringFromContext(ctx, ctxKeyBatchID)
}

// WithCorrelationID stamps a request correlation identifier onto the context.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	if strings.TrimSpace(id) == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxKeyCorrelationID, id)
}

// CorrelationIDFromContext recovers a correlation identifier previously stamped
// with WithCorrelationID.
func CorrelationIDFromContext(ctx context.Context) (string, bool) {
	return stringFromContext(ctx, ctxKeyCorrelationID)
}

func stringFromContext(ctx context.Context, key contextKey) (string, bool) {
	if ctx == nil {
		return "", false
	}
	value, ok := ctx.Value(key).(string)
	if !ok || strings.TrimSpace(value) == "" {
		return "", false
	}
	return value, true
}

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 3)
	if id, ok := JobIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldJobID, id))
	}
	if id, ok := BatchIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldBatchID, id))
	}
	if rid, ok := CorrelationIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCorrelationID, rid))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(Args(fields...)...)
}
