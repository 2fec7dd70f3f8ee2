package report

import (
	"context"

	"go.uber.org/zap"
)

// Notifier delivers a finished run report to whoever tells the account owner
// about it (e-mail, dashboard feed). Delivery failures never fail the run.
type Notifier interface {
	Deliver(ctx context.Context, r *RunReport) error
}

// LogNotifier writes the report as one structured log line.
type LogNotifier struct {
	logger *zap.SugaredLogger
}

// NewLogNotifier creates a notifier that logs reports.
func NewLogNotifier(logger *zap.SugaredLogger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Deliver logs r, at warn level when it carries warnings.
func (n *LogNotifier) Deliver(_ context.Context, r *RunReport) error {
	fields := []interface{}{
		"integration_id", r.IntegrationID,
		"provider", r.Provider,
		"total", r.Total,
		"processed", r.Processed,
		"skipped", r.Skipped,
		"inserted", r.Inserted,
		"updated", r.Updated,
		"removed", r.Removed,
		"images_inserted", r.ImagesInserted,
		"image_failures", r.ImageFailures,
		"skips_by_reason", r.SkipsByReason(),
		"diagnostics_by_reason", r.DiagnosticsByReason(),
		"duration_ms", r.Duration().Milliseconds(),
	}
	if len(r.Warnings) > 0 {
		n.logger.Warnw("Run report", append(fields, "warnings", r.Warnings)...)
		return nil
	}
	n.logger.Infow("Run report", fields...)
	return nil
}

// MultiNotifier fans a report out to several notifiers and returns the first error.
type MultiNotifier []Notifier

// Deliver calls every notifier even when one fails.
func (m MultiNotifier) Deliver(ctx context.Context, r *RunReport) error {
	var first error
	for _, n := range m {
		if err := n.Deliver(ctx, r); err != nil && first == nil {
			first = err
		}
	}
	return first
}
