package async

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/matheusluizig/imovelguide-integracao-sub000/am"
	"github.com/matheusluizig/imovelguide-integracao-sub000/db"
	"github.com/matheusluizig/imovelguide-integracao-sub000/errors"
	"github.com/matheusluizig/imovelguide-integracao-sub000/sym"
)

// pulseLogger wraps zap.SugaredLogger with special methods for Pulse operations
// Uses different log levels to create visual distinction:
// - DEBUG level → STARTING (✿ Opening operations)
// - WARN level → CLOSING (❀ Closing operations)
// - INFO level → PULSE (general worker operations)
type pulseLogger struct {
	*zap.SugaredLogger
}

// Starting logs an Opening (✿) event
func (l pulseLogger) Starting(msg string, keysAndValues ...interface{}) {
	l.Debugw("✿ "+msg, keysAndValues...)
}

// Closing logs a Closing (❀) event
func (l pulseLogger) Closing(msg string, keysAndValues ...interface{}) {
	l.Warnw("❀ "+msg, keysAndValues...)
}

// Pulse logs general worker operations
func (l pulseLogger) Pulse(msg string, keysAndValues ...interface{}) {
	l.Infow(msg, keysAndValues...)
}

// JobExecutor runs one dequeued job. Execute owns every state transition of
// the job; a returned error means the executor itself failed, not the run.
type JobExecutor interface {
	Execute(ctx context.Context, job *Job) error
}

// ExecutorFunc adapts a function to JobExecutor.
type ExecutorFunc func(ctx context.Context, job *Job) error

// Execute calls f.
func (f ExecutorFunc) Execute(ctx context.Context, job *Job) error {
	return f(ctx, job)
}

// WorkerPool manages a pool of workers that pull integration jobs
type WorkerPool struct {
	queue         *Queue
	executor      JobExecutor
	poolConfig    WorkerPoolConfig
	classes       []QueueClass
	workers       int
	parentCtx     context.Context
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
	jobsProcessed int
	activeWorkers int
	startTime     time.Time
	memoryStats   func() (total, available uint64, err error)
	logger        pulseLogger
	mu            sync.Mutex
}

// WorkerPoolConfig contains configuration for the worker pool
type WorkerPoolConfig struct {
	Workers              int           `json:"workers"`                 // Number of concurrent workers
	Classes              []QueueClass  `json:"classes"`                 // Queue classes served, highest priority first
	PollInterval         time.Duration `json:"poll_interval"`           // How often an idle worker checks for jobs
	MinAvailableMemoryMB int           `json:"min_available_memory_mb"` // Skip dequeue below this (0 = disabled)
	StopTimeout          time.Duration `json:"stop_timeout"`            // How long Stop waits for running jobs
}

// DefaultWorkerPoolConfig returns sensible defaults
func DefaultWorkerPoolConfig() WorkerPoolConfig {
	return WorkerPoolConfig{
		Workers:      1,
		Classes:      AllClasses,
		PollInterval: time.Second,
		StopTimeout:  30 * time.Second,
	}
}

// PoolConfigFromAm builds the pool configuration from pulse settings.
func PoolConfigFromAm(cfg am.PulseConfig) (WorkerPoolConfig, error) {
	classes, err := ParseClasses(cfg.Queues)
	if err != nil {
		return WorkerPoolConfig{}, err
	}
	pc := DefaultWorkerPoolConfig()
	pc.Workers = cfg.Workers
	pc.Classes = classes
	if cfg.PollIntervalMS > 0 {
		pc.PollInterval = cfg.PollInterval()
	}
	pc.MinAvailableMemoryMB = cfg.MinAvailableMemoryMB
	if cfg.StopTimeoutMinutes > 0 {
		pc.StopTimeout = cfg.StopTimeout()
	}
	return pc, nil
}

// NewWorkerPool creates a worker pool that hands dequeued jobs to executor.
// Cancelling ctx stops the workers after their current job; the job itself
// is never cancelled.
func NewWorkerPool(ctx context.Context, queue *Queue, executor JobExecutor, poolCfg WorkerPoolConfig, logger *zap.SugaredLogger) *WorkerPool {
	workerCtx, cancel := context.WithCancel(ctx)
	if len(poolCfg.Classes) == 0 {
		poolCfg.Classes = AllClasses
	}
	if poolCfg.PollInterval <= 0 {
		poolCfg.PollInterval = time.Second
	}
	if poolCfg.StopTimeout <= 0 {
		poolCfg.StopTimeout = 30 * time.Second
	}
	return &WorkerPool{
		queue:       queue,
		executor:    executor,
		poolConfig:  poolCfg,
		classes:     poolCfg.Classes,
		workers:     poolCfg.Workers,
		parentCtx:   ctx,
		ctx:         workerCtx,
		cancel:      cancel,
		memoryStats: getMemoryStats,
		logger:      pulseLogger{logger.Named("pulse").With("symbol", sym.Pulse)},
	}
}

// Start begins processing jobs with the worker pool
func (wp *WorkerPool) Start() {
	wp.mu.Lock()
	select {
	case <-wp.ctx.Done():
		wp.ctx, wp.cancel = context.WithCancel(wp.parentCtx)
		wp.logger.Starting("Recreated worker context after previous shutdown")
	default:
	}
	wp.startTime = time.Now()
	wp.jobsProcessed = 0
	ctx := wp.ctx
	wp.mu.Unlock()

	// In-process jobs left by a crash become due at their stuck re-check time
	// and are reset by the next run that observes them.
	if _, running, err := wp.queue.GetJobCounts(ctx); err == nil && running > 0 {
		wp.logger.Starting("Found in-process jobs from a previous run; they recover after the stuck threshold",
			"count", running)
	}

	if warning := wp.checkMemoryPressure(); warning != "" {
		wp.logger.Warnw("Memory pressure warning", "warning", warning, "workers", wp.workers)
	}

	wp.logger.Starting("Starting worker pool", "workers", wp.workers, "classes", wp.classes)
	for i := 0; i < wp.workers; i++ {
		wp.wg.Add(1)
		go wp.worker(ctx, i)
	}
}

// Stop gracefully stops the worker pool, waiting up to StopTimeout for
// running jobs to finish.
func (wp *WorkerPool) Stop() {
	wp.mu.Lock()
	wp.cancel()
	wp.mu.Unlock()

	done := make(chan struct{})
	go func() {
		wp.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		wp.logger.Pulse("❀ WorkerPool.Stop() complete - all workers exited cleanly")
	case <-time.After(wp.poolConfig.StopTimeout):
		wp.logger.Closing("WorkerPool.Stop() timeout - runs still in flight will be recovered as stuck",
			"timeout", wp.poolConfig.StopTimeout)
	}
}

// worker processes jobs from the queue
func (wp *WorkerPool) worker(ctx context.Context, id int) {
	defer wp.wg.Done()

	ticker := time.NewTicker(wp.poolConfig.PollInterval)
	defer ticker.Stop()

	errorCount := 0
	const maxConsecutiveErrors = 5
	backoffDuration := time.Second
	const maxBackoff = 30 * time.Second

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		// Drain due jobs back to back; wait for the ticker only when idle.
		for {
			processed, err := wp.processNextJob(ctx)
			if err == nil {
				if errorCount > 0 {
					wp.logger.Infow("Worker recovered from errors",
						"worker_id", id,
						"previous_error_count", errorCount)
				}
				errorCount = 0
				backoffDuration = time.Second
				if processed && ctx.Err() == nil {
					continue
				}
				break
			}

			if ctx.Err() != nil || errors.Is(err, sql.ErrConnDone) || db.IsDatabaseClosed(err) {
				return
			}
			errorCount++
			wp.logger.Errorw("Worker error processing job",
				"worker_id", id,
				"error", err,
				"consecutive_errors", errorCount)
			if errorCount >= maxConsecutiveErrors {
				wp.logger.Warnw("Worker backing off due to consecutive errors",
					"worker_id", id,
					"backoff", backoffDuration,
					"consecutive_errors", errorCount)
				select {
				case <-ctx.Done():
					return
				case <-time.After(backoffDuration):
				}
				backoffDuration = min(backoffDuration*2, maxBackoff)
			}
			break
		}
	}
}

// processNextJob dequeues one job and executes it. It reports whether a job ran.
func (wp *WorkerPool) processNextJob(ctx context.Context) (bool, error) {
	if ctx.Err() != nil {
		return false, nil
	}
	if wp.lowMemory() {
		return false, nil
	}

	job, err := wp.queue.Dequeue(ctx, wp.classes)
	if err != nil {
		return false, errors.Wrap(err, "failed to dequeue job")
	}
	if job == nil {
		return false, nil
	}

	wp.mu.Lock()
	wp.jobsProcessed++
	wp.activeWorkers++
	wp.mu.Unlock()
	defer func() {
		wp.mu.Lock()
		wp.activeWorkers--
		wp.mu.Unlock()
	}()

	// A started run completes or fails on its own. Shutdown waits for it in
	// Stop, and a run outliving StopTimeout is recovered as stuck.
	if err := wp.executor.Execute(context.WithoutCancel(ctx), job); err != nil {
		return true, errors.Wrapf(err, "failed to execute job %s", job.ID)
	}
	return true, nil
}

// lowMemory reports whether available memory is under the configured floor.
func (wp *WorkerPool) lowMemory() bool {
	if wp.poolConfig.MinAvailableMemoryMB <= 0 || wp.memoryStats == nil {
		return false
	}
	_, available, err := wp.memoryStats()
	if err != nil {
		return false
	}
	if available/(1024*1024) < uint64(wp.poolConfig.MinAvailableMemoryMB) {
		wp.logger.Warnw("Skipping dequeue under memory pressure",
			"available_mb", available/(1024*1024),
			"min_available_mb", wp.poolConfig.MinAvailableMemoryMB)
		return true
	}
	return false
}

// Queue returns the job queue
func (wp *WorkerPool) Queue() *Queue {
	return wp.queue
}

// Workers returns the number of concurrent workers configured for this pool
func (wp *WorkerPool) Workers() int {
	return wp.workers
}

// JobsProcessed returns how many jobs this pool has executed since Start.
func (wp *WorkerPool) JobsProcessed() int {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	return wp.jobsProcessed
}
