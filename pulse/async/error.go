package async

import (
	"context"
	"fmt"
	"strings"

	"github.com/matheusluizig/imovelguide-integracao-sub000/errors"
)

// ErrorCode represents the classification of an error
type ErrorCode string

const (
	ErrorCodeInvalidFeed        ErrorCode = "invalid_feed"
	ErrorCodeFeedUnavailable    ErrorCode = "feed_unavailable"
	ErrorCodeStorageUnavailable ErrorCode = "storage_unavailable"
	ErrorCodeDatabaseError      ErrorCode = "database_error"
	ErrorCodeNotFound           ErrorCode = "not_found"
	ErrorCodeTimeout            ErrorCode = "timeout"
	ErrorCodeUnknown            ErrorCode = "unknown"
)

// ErrorContext provides structured error information for job failures
type ErrorContext struct {
	Stage     string    // Where the error occurred
	Code      ErrorCode // Error classification
	Message   string    // Human-readable message
	Retryable bool      // Would a later run plausibly succeed?
}

// Summary is the one-line error stored on the job and shown to the account owner.
func (c ErrorContext) Summary() string {
	if c.Stage == "" {
		return fmt.Sprintf("[%s] %s", c.Code, c.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", c.Code, c.Stage, c.Message)
}

// ClassifyError categorizes a run failure by sentinel first, then by its message
func ClassifyError(stage string, err error) ErrorContext {
	if err == nil {
		return ErrorContext{Stage: stage, Code: ErrorCodeUnknown, Message: "unknown error"}
	}

	msg := err.Error()
	if prefix := stage + ": "; stage != "" && strings.HasPrefix(msg, prefix) {
		msg = strings.TrimPrefix(msg, prefix)
	}
	ctx := ErrorContext{Stage: stage, Message: msg}

	switch {
	case errors.Is(err, errors.ErrInvalidFeed):
		ctx.Code = ErrorCodeInvalidFeed
		ctx.Retryable = false
	case errors.Is(err, errors.ErrStorageUnavailable):
		ctx.Code = ErrorCodeStorageUnavailable
		ctx.Retryable = true
	case errors.Is(err, errors.ErrNotFound):
		ctx.Code = ErrorCodeNotFound
		ctx.Retryable = false
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, errors.ErrTimeout):
		ctx.Code = ErrorCodeTimeout
		ctx.Retryable = true
	default:
		lower := strings.ToLower(msg)
		switch {
		case strings.Contains(lower, "timeout") || strings.Contains(lower, "deadline exceeded"):
			ctx.Code = ErrorCodeTimeout
			ctx.Retryable = true
		case stage == "fetch" || strings.Contains(lower, "connection") || strings.Contains(lower, "no such host"):
			ctx.Code = ErrorCodeFeedUnavailable
			ctx.Retryable = true
		case strings.Contains(lower, "database") || strings.Contains(lower, "sql"):
			ctx.Code = ErrorCodeDatabaseError
			ctx.Retryable = true
		default:
			ctx.Code = ErrorCodeUnknown
			ctx.Retryable = true
		}
	}
	return ctx
}
