package orchestrator

import (
	"context"

	"github.com/matheusluizig/imovelguide-integracao-sub000/logger"
	"github.com/matheusluizig/imovelguide-integracao-sub000/pulse/async"
)

// Executor adapts the orchestrator to the worker pool.
type Executor struct {
	o *Orchestrator
}

// NewExecutor returns an async.JobExecutor running jobs through o.
func NewExecutor(o *Orchestrator) *Executor {
	return &Executor{o: o}
}

// Execute runs the job's integration. A run deferred by coordination pushes
// the job back by the outcome's delay; every other outcome has already
// been recorded on the job by Run.
func (e *Executor) Execute(ctx context.Context, job *async.Job) error {
	ctx = logger.WithComponent(ctx, "worker")
	out, err := e.o.Run(ctx, job.IntegrationID, job.NextAttempt())
	if err != nil {
		return err
	}

	log := logger.FromContext(logger.WithIntegrationID(logger.WithJobID(ctx, job.ID), job.IntegrationID), e.o.logger)
	switch {
	case out.Action == ActionRetryLater && (out.Reason == ReasonSlotUnavailable || out.Reason == ReasonLockHeld):
		if err := e.o.Queue.Defer(ctx, job.ID, out.RetryAfter); err != nil {
			return err
		}
		log.Debugw("Run deferred", logger.FieldReason, out.Reason, "retry_after", out.RetryAfter)
	case out.Reason == ReasonIntegrationNotFound || out.Reason == ReasonQueueNotFound:
		logger.PulseWarnw(log, "Job cannot run", logger.FieldReason, out.Reason)
	}
	return nil
}

var _ async.JobExecutor = (*Executor)(nil)
