package logger

import (
	"context"

	"go.uber.org/zap"
)

// Standard field names for structured logging across the pipeline.
const (
	// Identity
	FieldJobID         = "job_id"
	FieldRunID         = "run_id"
	FieldIntegrationID = "integration_id"
	FieldAccountID     = "account_id"
	FieldListingCode   = "listing_code"
	FieldListingID     = "listing_id"

	// Components
	FieldComponent = "component"
	FieldProvider  = "provider"
	FieldQueue     = "queue"
	FieldStep      = "step"

	// Timing
	FieldDurationMS = "duration_ms"
	FieldAttempt    = "attempt"

	// Errors
	FieldError     = "error"
	FieldErrorCode = "error_code"
	FieldReason    = "reason"

	// Counts
	FieldCount      = "count"
	FieldTotalCount = "total_count"

	// Status
	FieldStatus = "status"
	FieldAction = "action"

	// Network and storage
	FieldURL = "url"
	FieldKey = "key"

	FieldSymbol = "symbol" // subsystem glyph, see package sym
)

type contextKey string

const (
	jobIDKey         contextKey = "logger_job_id"
	runIDKey         contextKey = "logger_run_id"
	integrationIDKey contextKey = "logger_integration_id"
	componentKey     contextKey = "logger_component"
)

// WithJobID adds a job ID to the context for logging
func WithJobID(ctx context.Context, jobID string) context.Context {
	return context.WithValue(ctx, jobIDKey, jobID)
}

// WithRunID adds a run ID to the context for logging
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// WithIntegrationID adds the integration being processed to the context
func WithIntegrationID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, integrationIDKey, id)
}

// WithComponent adds a component name to the context for logging
func WithComponent(ctx context.Context, component string) context.Context {
	return context.WithValue(ctx, componentKey, component)
}

// FieldsFromContext extracts logging fields from context as key-value pairs
// suitable for Infow/Errorw.
func FieldsFromContext(ctx context.Context) []interface{} {
	var fields []interface{}

	if jobID, ok := ctx.Value(jobIDKey).(string); ok && jobID != "" {
		fields = append(fields, FieldJobID, jobID)
	}
	if runID, ok := ctx.Value(runIDKey).(string); ok && runID != "" {
		fields = append(fields, FieldRunID, runID)
	}
	if id, ok := ctx.Value(integrationIDKey).(int64); ok && id != 0 {
		fields = append(fields, FieldIntegrationID, id)
	}
	if component, ok := ctx.Value(componentKey).(string); ok && component != "" {
		fields = append(fields, FieldComponent, component)
	}

	return fields
}

// FromContext returns base enriched with the fields carried by ctx.
// A nil base falls back to the global Logger.
func FromContext(ctx context.Context, base *zap.SugaredLogger) *zap.SugaredLogger {
	if base == nil {
		base = Logger
	}
	fields := FieldsFromContext(ctx)
	if len(fields) == 0 {
		return base
	}
	return base.With(fields...)
}

// ComponentLogger returns a named logger for a specific component.
//
//	pool := &WorkerPool{logger: logger.ComponentLogger("pulse.worker")}
func ComponentLogger(name string) *zap.SugaredLogger {
	return Logger.Named(name)
}
