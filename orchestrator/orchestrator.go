// Package orchestrator runs one integration end to end: it coordinates with
// other workers through execution slots and a TTL lock, drives the feed
// pipeline and records the outcome on the job and the integration.
//
// Run never blocks on coordination. Anything held elsewhere yields a
// retry_later outcome and leaves the job untouched, so the caller decides
// when to try again.
package orchestrator

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/matheusluizig/imovelguide-integracao-sub000/am"
	"github.com/matheusluizig/imovelguide-integracao-sub000/errors"
	"github.com/matheusluizig/imovelguide-integracao-sub000/integration"
	"github.com/matheusluizig/imovelguide-integracao-sub000/ixgest"
	"github.com/matheusluizig/imovelguide-integracao-sub000/logger"
	"github.com/matheusluizig/imovelguide-integracao-sub000/metrics"
	"github.com/matheusluizig/imovelguide-integracao-sub000/normalize"
	"github.com/matheusluizig/imovelguide-integracao-sub000/pulse"
	"github.com/matheusluizig/imovelguide-integracao-sub000/pulse/async"
	"github.com/matheusluizig/imovelguide-integracao-sub000/pulse/coord"
	"github.com/matheusluizig/imovelguide-integracao-sub000/report"
	"github.com/matheusluizig/imovelguide-integracao-sub000/upsert"
)

// Action tells the caller what to do with the job after a run.
type Action string

const (
	ActionNone       Action = "none"
	ActionRetryLater Action = "retry_later"
	ActionRetryNow   Action = "retry_now"
	ActionMarkFailed Action = "mark_failed"
)

// Outcome reasons that are not error codes.
const (
	ReasonIntegrationNotFound = "integration_not_found"
	ReasonQueueNotFound       = "queue_not_found"
	ReasonDisabled            = "integration_disabled"
	ReasonAlreadyRunning      = "already_running"
	ReasonStuckReset          = "stuck_reset"
	ReasonSlotUnavailable     = "slot_unavailable"
	ReasonLockHeld            = "lock_held"
	ReasonRetriesExhausted    = "retries_exhausted"
)

// Outcome is the result of one Run.
type Outcome struct {
	Success    bool
	Action     Action
	Reason     string
	RetryAfter time.Duration
	Metrics    integration.RunMetrics
	Report     *report.RunReport // nil when the pipeline did not start
}

// Config holds the coordination tuning values.
type Config struct {
	StuckThreshold time.Duration
	LockTTL        time.Duration
	LockRenewal    time.Duration // how often a running run extends its lock; defaults to LockTTL/3
	DeferDelay     time.Duration
	GlobalSlots    int // 0 disables the fleet-wide slot
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		StuckThreshold: 120 * time.Minute,
		LockTTL:        6 * time.Hour,
		DeferDelay:     time.Minute,
	}
}

// ConfigFromAm builds the configuration from pulse settings.
func ConfigFromAm(p am.PulseConfig) Config {
	cfg := DefaultConfig()
	if p.StuckThresholdMin > 0 {
		cfg.StuckThreshold = p.StuckThreshold()
	}
	if p.LockTTLMinutes > 0 {
		cfg.LockTTL = p.LockTTL()
	}
	if p.DeferSeconds > 0 {
		cfg.DeferDelay = p.DeferDelay()
	}
	cfg.GlobalSlots = p.GlobalSlots
	return cfg
}

// Deps are the collaborators of an Orchestrator. Notifier and Metrics are optional.
type Deps struct {
	Integrations *integration.Store
	Queue        *async.Queue
	Coordinator  *coord.Coordinator
	Fetcher      ixgest.Fetcher // reads stored feed URLs; must not serve local files
	Adapters     *ixgest.Registry
	Normalizer   *normalize.Engine
	Upserter     *upsert.Engine
	Notifier     report.Notifier
	Metrics      *metrics.Recorder
}

// Orchestrator runs integrations.
type Orchestrator struct {
	Deps
	cfg    Config
	logger *zap.SugaredLogger
}

// New creates an orchestrator.
func New(deps Deps, cfg Config, log *zap.SugaredLogger) *Orchestrator {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	def := DefaultConfig()
	if cfg.StuckThreshold <= 0 {
		cfg.StuckThreshold = def.StuckThreshold
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = def.LockTTL
	}
	if cfg.LockRenewal <= 0 || cfg.LockRenewal >= cfg.LockTTL {
		cfg.LockRenewal = cfg.LockTTL / 3
	}
	return &Orchestrator{Deps: deps, cfg: cfg, logger: log.Named("orchestrator")}
}

// RunOptions adjust a single run.
type RunOptions struct {
	// Source replaces the integration's feed URL, e.g. a local file.
	Source string
	// Fetcher reads Source. Nil uses Deps.Fetcher.
	Fetcher ixgest.Fetcher
	// Progress receives stage updates. Nil discards them.
	Progress pulse.ProgressEmitter
}

// Run executes the integration's pipeline as run number attempt. An attempt
// of 0 means the job's next attempt. The returned error is reserved for
// bookkeeping failures; pipeline failures are reported in the Outcome.
func (o *Orchestrator) Run(ctx context.Context, integrationID int64, attempt int) (Outcome, error) {
	return o.RunWith(ctx, integrationID, attempt, RunOptions{})
}

// RunWith is Run with options.
func (o *Orchestrator) RunWith(ctx context.Context, integrationID int64, attempt int, opts RunOptions) (Outcome, error) {
	ctx = logger.WithRunID(ctx, uuid.NewString())
	log := logger.FromContext(ctx, o.logger).With(logger.FieldIntegrationID, integrationID)
	if opts.Progress == nil {
		opts.Progress = pulse.NopEmitter{}
	}

	it, err := o.Integrations.Get(ctx, integrationID)
	if err != nil {
		if errors.IsNotFoundError(err) {
			logger.PulseWarnw(log, "Integration not found")
			return o.observe("", Outcome{Action: ActionMarkFailed, Reason: ReasonIntegrationNotFound}), nil
		}
		return Outcome{}, errors.Wrapf(err, "load integration %d", integrationID)
	}
	log = log.With(logger.FieldAccountID, it.AccountID, logger.FieldProvider, it.System)

	job, err := o.Queue.GetByIntegration(ctx, integrationID)
	if err != nil {
		if errors.IsNotFoundError(err) {
			logger.PulseWarnw(log, "Integration has no job record")
			return o.observe(it.System, Outcome{Action: ActionMarkFailed, Reason: ReasonQueueNotFound}), nil
		}
		return Outcome{}, errors.Wrapf(err, "load job of integration %d", integrationID)
	}
	log = log.With(logger.FieldJobID, job.ID)
	if attempt <= 0 {
		attempt = job.NextAttempt()
	}

	if job.Status == async.JobStatusInProcess {
		return o.handleRunning(ctx, it, job, log)
	}

	if it.Status == integration.StatusDisabled {
		if _, err := o.Queue.MarkDone(ctx, job.ID); err != nil {
			return Outcome{}, err
		}
		logger.PulseInfow(log, "Integration disabled, job closed without running")
		return o.observe(it.System, Outcome{Action: ActionNone, Reason: ReasonDisabled}), nil
	}

	lock, release, reason, err := o.acquire(ctx, it.ID, log)
	if err != nil {
		return Outcome{}, err
	}
	if release == nil {
		return o.observe(it.System, Outcome{Action: ActionRetryLater, Reason: reason, RetryAfter: o.cfg.DeferDelay}), nil
	}
	defer release()
	defer o.renewLock(ctx, lock, log)()

	startedAt, err := o.Queue.MarkInProcess(ctx, job.ID, attempt, o.cfg.StuckThreshold)
	if err != nil {
		if errors.Is(err, errors.ErrConflict) {
			return o.observe(it.System, Outcome{Action: ActionRetryLater, Reason: ReasonAlreadyRunning, RetryAfter: o.cfg.DeferDelay}), nil
		}
		return Outcome{}, err
	}
	if err := o.Integrations.MarkRunStarted(ctx, it.ID, startedAt); err != nil {
		return o.fail(ctx, it, job, attempt, startedAt, nil, report.NewAbort(report.StepLoad, err), opts.Progress, log)
	}

	done := o.Metrics.RunStarted()
	defer done()
	logger.PulseOpenInfow(log, "Integration run started", logger.FieldAttempt, attempt)

	src := feedSource{fetcher: o.Fetcher, location: it.FeedURL, stored: true}
	if opts.Source != "" {
		src = feedSource{fetcher: opts.Fetcher, location: opts.Source}
		if src.fetcher == nil {
			src.fetcher = o.Fetcher
		}
	}
	rep, runErr := o.pipeline(ctx, it, src, opts.Progress, log)
	rep.StartedAt = startedAt
	rep.FinishedAt = o.Queue.Now()

	if runErr != nil {
		return o.fail(ctx, it, job, attempt, startedAt, rep, runErr, opts.Progress, log)
	}
	return o.succeed(ctx, it, job, startedAt, rep, opts.Progress, log)
}

// handleRunning deals with a job another run holds. Past the stuck threshold
// the job is reset to pending together with the integration status, once.
func (o *Orchestrator) handleRunning(ctx context.Context, it *integration.Integration, job *async.Job, log *zap.SugaredLogger) (Outcome, error) {
	elapsed := job.Elapsed(o.Queue.Now())
	if elapsed <= o.cfg.StuckThreshold {
		logger.PulseInfow(log, "Integration already running elsewhere",
			"elapsed_minutes", int(elapsed.Minutes()))
		return o.observe(it.System, Outcome{Action: ActionRetryLater, Reason: ReasonAlreadyRunning, RetryAfter: o.cfg.DeferDelay}), nil
	}

	reset, err := o.Queue.ResetStuck(ctx, job, func(ctx context.Context, tx *sql.Tx) error {
		return o.Integrations.SetStatusTx(ctx, tx, it.ID, integration.StatusInAnalysis)
	})
	if err != nil {
		return Outcome{}, errors.Wrapf(err, "reset stuck job %s", job.ID)
	}
	if !reset {
		return o.observe(it.System, Outcome{Action: ActionRetryLater, Reason: ReasonAlreadyRunning, RetryAfter: o.cfg.DeferDelay}), nil
	}
	logger.PulseOpenInfow(log, "Reset stuck integration run",
		"elapsed_minutes", int(elapsed.Minutes()),
		"threshold_minutes", int(o.cfg.StuckThreshold.Minutes()))
	return o.observe(it.System, Outcome{Action: ActionRetryNow, Reason: ReasonStuckReset}), nil
}

// acquire takes the integration slot, the global slot when configured, and
// the integration lock, in that order. A nil release with a reason means
// something is held elsewhere and nothing was kept.
func (o *Orchestrator) acquire(ctx context.Context, integrationID int64, log *zap.SugaredLogger) (lock *coord.Lock, release func(), reason string, err error) {
	key := coord.IntegrationKey(integrationID)
	var held []interface{ Release(context.Context) error }
	undo := func() {
		cleanup := context.WithoutCancel(ctx)
		for i := len(held) - 1; i >= 0; i-- {
			if err := held[i].Release(cleanup); err != nil {
				logger.PulseWarnw(log, "Failed to release coordination", logger.FieldError, err)
			}
		}
	}

	slot, err := o.Coordinator.AcquireSlot(ctx, key, 1, o.cfg.LockTTL)
	if err != nil {
		return nil, nil, ReasonSlotUnavailable, coordErr(err)
	}
	held = append(held, slot)

	if o.cfg.GlobalSlots > 0 {
		global, err := o.Coordinator.AcquireSlot(ctx, coord.GlobalSlotKey, o.cfg.GlobalSlots, o.cfg.LockTTL)
		if err != nil {
			undo()
			return nil, nil, ReasonSlotUnavailable, coordErr(err)
		}
		held = append(held, global)
	}

	lock, err = o.Coordinator.AcquireLock(ctx, key, o.cfg.LockTTL)
	if err != nil {
		undo()
		return nil, nil, ReasonLockHeld, coordErr(err)
	}
	held = append(held, lock)
	return lock, undo, "", nil
}

// renewLock extends lock every LockRenewal until the returned stop is
// called, so image-heavy runs outlasting LockTTL keep their exclusivity.
func (o *Orchestrator) renewLock(ctx context.Context, lock *coord.Lock, log *zap.SugaredLogger) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(o.cfg.LockRenewal)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			err := lock.Extend(ctx, o.cfg.LockTTL)
			switch {
			case err == nil:
			case errors.Is(err, errors.ErrLockHeld):
				logger.PulseWarnw(log, "Integration lock lost during run", "lock", lock.Name)
				return
			case ctx.Err() == nil:
				log.Warnw("Failed to extend integration lock", logger.FieldError, err)
			}
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

// coordErr hides the expected unavailability errors.
func coordErr(err error) error {
	if errors.IsCoordinationError(err) {
		return nil
	}
	return errors.Wrap(err, "coordinate integration run")
}

func (o *Orchestrator) succeed(ctx context.Context, it *integration.Integration, job *async.Job, startedAt time.Time, rep *report.RunReport, progress pulse.ProgressEmitter, log *zap.SugaredLogger) (Outcome, error) {
	m := integration.RunMetrics{
		StartedAt:      startedAt,
		EndedAt:        rep.FinishedAt,
		ProcessedItems: rep.Processed,
		TotalItems:     rep.Total,
	}
	if _, err := o.Queue.MarkDone(ctx, job.ID); err != nil {
		return Outcome{}, err
	}
	if err := o.Integrations.MarkRunSucceeded(ctx, it.ID, m); err != nil {
		return Outcome{}, err
	}
	o.deliver(ctx, rep, log)
	progress.EmitComplete(summary(rep))

	logger.PulseCloseInfow(log, "Integration run finished",
		logger.FieldStatus, async.JobStatusDone,
		logger.FieldDurationMS, m.ExecutionMS(),
		"processed", rep.Processed,
		"total", rep.Total)

	o.Metrics.ObserveReport(rep)
	o.Metrics.ObserveRun(it.System, metrics.OutcomeSuccess, rep.Duration())
	return Outcome{Success: true, Action: ActionNone, Metrics: m, Report: rep}, nil
}

func (o *Orchestrator) fail(ctx context.Context, it *integration.Integration, job *async.Job, attempt int, startedAt time.Time, rep *report.RunReport, runErr error, progress pulse.ProgressEmitter, log *zap.SugaredLogger) (Outcome, error) {
	step := report.StepLoad
	var abort *report.Abort
	if errors.As(runErr, &abort) {
		step = abort.Step
	}
	ec := async.ClassifyError(string(step), runErr)
	summary := ec.Summary()
	progress.EmitError(string(step), runErr)

	// Bookkeeping must land even when the run was cancelled.
	ctx = context.WithoutCancel(ctx)
	failed, err := o.Queue.MarkFailed(ctx, job.ID, attempt, string(step), summary)
	if err != nil {
		return Outcome{}, err
	}
	endedAt := o.Queue.Now()
	if err := o.Integrations.MarkRunFailed(ctx, it.ID, endedAt, summary); err != nil {
		return Outcome{}, err
	}

	out := Outcome{
		Action:  ActionRetryLater,
		Reason:  string(ec.Code),
		Metrics: integration.RunMetrics{StartedAt: startedAt, EndedAt: endedAt},
		Report:  rep,
	}
	if rep != nil {
		out.Metrics.ProcessedItems, out.Metrics.TotalItems = rep.Processed, rep.Total
		rep.Warn("run failed at %s: %s", step, summary)
		o.deliver(ctx, rep, log)
	}
	if failed.Status == async.JobStatusError {
		out.Action = ActionMarkFailed
		out.Reason = ReasonRetriesExhausted
	} else {
		out.RetryAfter = failed.AvailableAt.Sub(endedAt)
	}

	logger.PulseErrorw(log, "Integration run failed",
		logger.FieldStep, step,
		logger.FieldErrorCode, ec.Code,
		logger.FieldError, runErr,
		logger.FieldAttempt, attempt,
		logger.FieldStatus, failed.Status,
		logger.FieldAction, out.Action,
		logger.FieldDurationMS, endedAt.Sub(startedAt).Milliseconds(),
		"retry_after", out.RetryAfter)

	o.Metrics.ObserveRun(it.System, metrics.OutcomeFailed, endedAt.Sub(startedAt))
	if rep != nil {
		o.Metrics.ObserveReport(rep)
	}
	return out, nil
}

func (o *Orchestrator) deliver(ctx context.Context, rep *report.RunReport, log *zap.SugaredLogger) {
	if o.Notifier == nil {
		return
	}
	if err := o.Notifier.Deliver(ctx, rep); err != nil {
		log.Warnw("Failed to deliver run report", logger.FieldError, err)
	}
}

// observe counts runs that never reached the pipeline.
func (o *Orchestrator) observe(provider string, out Outcome) Outcome {
	switch out.Action {
	case ActionRetryNow:
		o.Metrics.ObserveRun(provider, metrics.OutcomeReset, 0)
	case ActionMarkFailed:
		o.Metrics.ObserveRun(provider, metrics.OutcomeFailed, 0)
	default:
		o.Metrics.ObserveRun(provider, metrics.OutcomeDeferred, 0)
	}
	return out
}

func summary(rep *report.RunReport) map[string]interface{} {
	return map[string]interface{}{
		"total":           rep.Total,
		"processed":       rep.Processed,
		"skipped":         rep.Skipped,
		"inserted":        rep.Inserted,
		"updated":         rep.Updated,
		"unchanged":       rep.Unchanged,
		"protected":       rep.Protected,
		"removed":         rep.Removed,
		"images_inserted": rep.ImagesInserted,
		"images_removed":  rep.ImagesRemoved,
		"image_failures":  rep.ImageFailures,
		"skips":           rep.SkipsByReason(),
		"warnings":        rep.Warnings,
	}
}
