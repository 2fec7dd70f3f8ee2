// Package schedule re-enqueues integrations whose feeds are due for another
// run. Retries of failed runs are driven by the job queue itself; the ticker
// only covers the periodic refresh.
package schedule

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/matheusluizig/imovelguide-integracao-sub000/am"
	"github.com/matheusluizig/imovelguide-integracao-sub000/errors"
	"github.com/matheusluizig/imovelguide-integracao-sub000/integration"
	"github.com/matheusluizig/imovelguide-integracao-sub000/logger"
	"github.com/matheusluizig/imovelguide-integracao-sub000/pulse/async"
	"github.com/matheusluizig/imovelguide-integracao-sub000/sym"
)

// DueLister lists integrations whose last run ended before a cutoff.
type DueLister interface {
	Due(ctx context.Context, cutoff time.Time, limit int) ([]*integration.Integration, error)
}

// Ticker periodically enqueues due integrations
type Ticker struct {
	integrations    DueLister
	queue           *async.Queue
	workerPool      *async.WorkerPool // For system metrics in ticker display
	interval        time.Duration
	runEvery        time.Duration
	batchSize       int
	ctx             context.Context
	cancel          context.CancelFunc
	wg              sync.WaitGroup
	pulseLog        *zap.SugaredLogger
	mu              sync.Mutex
	lastTickAt      time.Time
	ticksSinceStart int64
	enqueued        int64
	lastActiveWork  int
}

// TickerConfig contains configuration for the Pulse ticker
type TickerConfig struct {
	Interval  time.Duration // How often to look for due integrations
	RunEvery  time.Duration // Minimum time between two runs of one integration
	BatchSize int           // Integrations enqueued per tick at most
}

// DefaultTickerConfig returns sensible defaults
func DefaultTickerConfig() TickerConfig {
	return TickerConfig{
		Interval:  time.Minute,
		RunEvery:  6 * time.Hour,
		BatchSize: 200,
	}
}

// TickerConfigFromAm builds the ticker configuration from schedule settings.
func TickerConfigFromAm(cfg am.ScheduleConfig) TickerConfig {
	tc := DefaultTickerConfig()
	if cfg.TickSeconds > 0 {
		tc.Interval = time.Duration(cfg.TickSeconds) * time.Second
	}
	if cfg.IntervalMinutes > 0 {
		tc.RunEvery = time.Duration(cfg.IntervalMinutes) * time.Minute
	}
	return tc
}

// NewTicker creates a ticker. workerPool may be nil; it only feeds the
// activity log line.
func NewTicker(ctx context.Context, integrations DueLister, queue *async.Queue, workerPool *async.WorkerPool, cfg TickerConfig, log *zap.SugaredLogger) *Ticker {
	tickerCtx, cancel := context.WithCancel(ctx)
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultTickerConfig().BatchSize
	}
	return &Ticker{
		integrations: integrations,
		queue:        queue,
		workerPool:   workerPool,
		interval:     cfg.Interval,
		runEvery:     cfg.RunEvery,
		batchSize:    cfg.BatchSize,
		ctx:          tickerCtx,
		cancel:       cancel,
		pulseLog:     log.With(logger.FieldSymbol, sym.Pulse),
	}
}

// Start begins the ticker loop
func (t *Ticker) Start() {
	t.wg.Add(1)
	go t.run()
	t.pulseLog.Infow("Pulse ticker started", "interval", t.interval, "run_every", t.runEvery)
}

// Stop gracefully stops the ticker
func (t *Ticker) Stop() {
	t.cancel()
	t.wg.Wait()
	t.pulseLog.Infow("Pulse ticker stopped")
}

func (t *Ticker) run() {
	defer t.wg.Done()

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-t.ctx.Done():
			return
		case tickTime := <-ticker.C:
			t.mu.Lock()
			t.lastTickAt = tickTime
			t.ticksSinceStart++
			t.mu.Unlock()

			if _, err := t.Tick(t.ctx, tickTime.UTC()); err != nil {
				t.pulseLog.Warnw("Pulse tick error", "error", err, "tick", t.ticksSinceStart)
			}
			t.logActivity()
		}
	}
}

// Tick enqueues every integration due at now and returns how many were
// enqueued. One failing integration does not stop the others.
func (t *Ticker) Tick(ctx context.Context, now time.Time) (int, error) {
	due, err := t.integrations.Due(ctx, now.Add(-t.runEvery), t.batchSize)
	if err != nil {
		return 0, errors.Wrap(err, "failed to list due integrations")
	}

	n := 0
	for _, it := range due {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		job, err := t.queue.Enqueue(ctx, it.ID, it.QueueClass, 0)
		if err != nil {
			t.pulseLog.Errorw("Failed to enqueue due integration",
				logger.FieldIntegrationID, it.ID,
				logger.FieldError, err)
			continue
		}
		n++
		t.pulseLog.Debugw("Enqueued due integration",
			logger.FieldIntegrationID, it.ID,
			logger.FieldJobID, job.ID,
			logger.FieldQueue, job.Class,
			logger.FieldStatus, job.Status)
	}

	t.mu.Lock()
	t.enqueued += int64(n)
	t.mu.Unlock()
	return n, nil
}

// logActivity logs queue activity when it changed since the last tick
func (t *Ticker) logActivity() {
	queued, running, err := t.queue.GetJobCounts(t.ctx)
	if err != nil {
		t.pulseLog.Warnw("Failed to get queue stats", "error", err)
		return
	}
	activeWork := queued + running

	t.mu.Lock()
	hasChanged := activeWork != t.lastActiveWork
	t.lastActiveWork = activeWork
	t.mu.Unlock()
	if !hasChanged {
		return
	}

	indicator := ""
	if activeWork > 0 {
		numSymbols := min(activeWork/5+1, 60)
		indicator = strings.Repeat(sym.Pulse+" ", numSymbols)
	}

	msg := fmt.Sprintf("%sPulse - %d queued, %d running", indicator, queued, running)
	if t.workerPool != nil {
		m := t.workerPool.GetSystemMetrics(t.ctx)
		msg += fmt.Sprintf(" │ Workers: %d/%d active │ Mem: %.1f/%.1fGB (%.0f%%)",
			m.WorkersActive, m.WorkersTotal, m.MemoryUsedGB, m.MemoryTotalGB, m.MemoryPercent)
	}
	t.pulseLog.Infow(msg)
}

// GetStats returns ticker statistics
func (t *Ticker) GetStats() map[string]interface{} {
	t.mu.Lock()
	defer t.mu.Unlock()

	return map[string]interface{}{
		"last_tick_at":      t.lastTickAt,
		"ticks_since_start": t.ticksSinceStart,
		"enqueued":          t.enqueued,
		"interval":          t.interval,
	}
}
