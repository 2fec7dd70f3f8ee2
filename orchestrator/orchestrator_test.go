package orchestrator

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/matheusluizig/imovelguide-integracao-sub000/am"
	"github.com/matheusluizig/imovelguide-integracao-sub000/errors"
	"github.com/matheusluizig/imovelguide-integracao-sub000/integration"
	igtest "github.com/matheusluizig/imovelguide-integracao-sub000/internal/testing"
	"github.com/matheusluizig/imovelguide-integracao-sub000/ixgest/providers"
	"github.com/matheusluizig/imovelguide-integracao-sub000/listing"
	"github.com/matheusluizig/imovelguide-integracao-sub000/normalize"
	"github.com/matheusluizig/imovelguide-integracao-sub000/pulse/async"
	"github.com/matheusluizig/imovelguide-integracao-sub000/pulse/coord"
	"github.com/matheusluizig/imovelguide-integracao-sub000/report"
	"github.com/matheusluizig/imovelguide-integracao-sub000/upsert"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// feeds serves documents by source; unknown sources fail like an HTTP 503.
type feeds struct {
	mu   sync.Mutex
	docs map[string]string
}

func (f *feeds) Set(source, doc string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs[source] = doc
}

func (f *feeds) Fetch(_ context.Context, source string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[source]
	if !ok {
		return nil, errors.Newf("GET %s: 503 Service Unavailable", source)
	}
	return io.NopCloser(strings.NewReader(doc)), nil
}

type recordingNotifier struct {
	mu      sync.Mutex
	reports []*report.RunReport
}

func (n *recordingNotifier) Deliver(_ context.Context, r *report.RunReport) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reports = append(n.reports, r)
	return nil
}

type env struct {
	db           *sql.DB
	clk          *clock
	feeds        *feeds
	notifier     *recordingNotifier
	integrations *integration.Store
	queue        *async.Queue
	coord        *coord.Coordinator
	listings     *listing.Store
	orch         *Orchestrator
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := igtest.CreateMigratedDB(t)
	log := zaptest.NewLogger(t).Sugar()
	clk := &clock{t: time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)}

	lookups, err := normalize.DefaultLookups()
	require.NoError(t, err)

	e := &env{
		db:           db,
		clk:          clk,
		feeds:        &feeds{docs: map[string]string{}},
		notifier:     &recordingNotifier{},
		integrations: integration.NewStore(db).WithClock(clk.Now),
		queue:        async.NewQueue(db).WithClock(clk.Now),
		coord:        coord.New(db, log).WithClock(clk.Now),
		listings:     listing.NewStore(db).WithClock(clk.Now),
	}
	e.orch = New(Deps{
		Integrations: e.integrations,
		Queue:        e.queue,
		Coordinator:  e.coord,
		Fetcher:      e.feeds,
		Adapters:     providers.NewRegistry(),
		Normalizer:   normalize.NewEngine(normalize.NewLookupSet(lookups), normalize.NewLocationStore(db), log),
		Upserter:     upsert.NewEngine(e.listings, nil, log),
		Notifier:     e.notifier,
	}, DefaultConfig(), log)
	return e
}

var feedSeq atomic.Int64

// addIntegration creates an integration with a pending job.
func (e *env) addIntegration(t *testing.T, feed string) *integration.Integration {
	t.Helper()
	it := &integration.Integration{AccountID: 21, System: "vrsync", FeedURL: fmt.Sprintf("https://feeds.example/%d.xml", feedSeq.Add(1))}
	require.NoError(t, e.integrations.Create(testContext(t), it))
	_, err := e.queue.Enqueue(testContext(t), it.ID, async.ClassNormal, 0)
	require.NoError(t, err)
	if feed != "" {
		e.feeds.Set(it.FeedURL, feed)
	}
	return it
}

func (e *env) job(t *testing.T, integrationID int64) *async.Job {
	t.Helper()
	job, err := e.queue.GetByIntegration(testContext(t), integrationID)
	require.NoError(t, err)
	return job
}

func vrsyncFeed(listings ...string) string {
	return `<?xml version="1.0" encoding="UTF-8"?>
<ListingDataFeed xmlns="http://www.vivareal.com/schemas/1.0/VRSync"><Listings>` +
		strings.Join(listings, "\n") +
		`</Listings></ListingDataFeed>`
}

func vrsyncListing(code, transaction string, price int) string {
	return fmt.Sprintf(`<Listing>
  <ListingID>%s</ListingID>
  <Title>Casa %s</Title>
  <TransactionType>%s</TransactionType>
  <Details>
    <PropertyType>Residential / Home</PropertyType>
    <ListPrice currency="BRL">%d</ListPrice>
    <LivingArea unit="square metres">90</LivingArea>
  </Details>
  <Location><State abbreviation="PR">Paraná</State><City>Curitiba</City></Location>
</Listing>`, code, code, transaction, price)
}

func TestRunEndToEnd(t *testing.T) {
	e := newEnv(t)
	ctx := testContext(t)
	it := e.addIntegration(t, vrsyncFeed(
		vrsyncListing("X1", "For Sale", 100000),
		vrsyncListing("X1", "For Sale", 120000),
		vrsyncListing("Y", "Permuta", 90000),
		vrsyncListing("Z", "For Sale", 300000),
	))

	out, err := e.orch.Run(ctx, it.ID, 0)
	require.NoError(t, err)
	require.True(t, out.Success, "reason: %s", out.Reason)
	assert.Equal(t, ActionNone, out.Action)

	rep := out.Report
	require.NotNil(t, rep)
	assert.Equal(t, "vrsync", rep.Provider)
	assert.Equal(t, 4, rep.Total)
	assert.Equal(t, 1, rep.Processed)
	assert.Equal(t, 2, rep.Skipped)
	assert.Equal(t, 1, rep.Inserted)
	assert.Equal(t, map[report.Reason]int{
		report.ReasonDuplicateCode:       1,
		report.ReasonUnresolvedOfferType: 1,
	}, rep.SkipsByReason())

	stored, err := e.listings.ListByAccount(ctx, 21)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, listing.OfferSale, stored["Z"].OfferType)

	job := e.job(t, it.ID)
	assert.Equal(t, async.JobStatusDone, job.Status)

	got, err := e.integrations.Get(ctx, it.ID)
	require.NoError(t, err)
	assert.Equal(t, integration.StatusIntegrated, got.Status)
	assert.Equal(t, 1, got.ProcessedItems)
	assert.Equal(t, 4, got.TotalItems)
	require.NotNil(t, got.LastSuccessAt)

	require.Len(t, e.notifier.reports, 1)
	assert.Same(t, rep, e.notifier.reports[0])

	n, err := e.coord.InUse(ctx, coord.IntegrationKey(it.ID))
	require.NoError(t, err)
	assert.Zero(t, n, "slot released")
}

func TestRunReconcilesAgainstLatestFeed(t *testing.T) {
	e := newEnv(t)
	ctx := testContext(t)
	it := e.addIntegration(t, vrsyncFeed(
		vrsyncListing("A", "For Sale", 100000),
		vrsyncListing("B", "For Sale", 200000),
	))

	out, err := e.orch.Run(ctx, it.ID, 0)
	require.NoError(t, err)
	require.True(t, out.Success)
	assert.Equal(t, 2, out.Report.Inserted)

	e.clk.Advance(6 * time.Hour)
	e.feeds.Set(it.FeedURL, vrsyncFeed(vrsyncListing("A", "For Sale", 100000)))
	_, err = e.queue.Enqueue(ctx, it.ID, async.ClassNormal, 0)
	require.NoError(t, err)

	out, err = e.orch.Run(ctx, it.ID, 0)
	require.NoError(t, err)
	require.True(t, out.Success)
	assert.Equal(t, 1, out.Report.Unchanged)
	assert.Equal(t, 1, out.Report.Removed)

	stored, err := e.listings.ListByAccount(ctx, 21)
	require.NoError(t, err)
	assert.Len(t, stored, 1)
	assert.Contains(t, stored, "A")
}

func TestRunFailureFollowsBackoffThenFails(t *testing.T) {
	e := newEnv(t)
	ctx := testContext(t)
	it := e.addIntegration(t, "")

	for i, want := range []time.Duration{time.Minute, 5 * time.Minute, 15 * time.Minute, time.Hour, 2 * time.Hour} {
		out, err := e.orch.Run(ctx, it.ID, 0)
		require.NoError(t, err)
		assert.False(t, out.Success)
		assert.Equal(t, ActionRetryLater, out.Action, "attempt %d", i+1)
		assert.Equal(t, string(async.ErrorCodeFeedUnavailable), out.Reason)
		assert.Equal(t, want, out.RetryAfter, "attempt %d", i+1)

		job := e.job(t, it.ID)
		assert.Equal(t, async.JobStatusStopped, job.Status)
		assert.Equal(t, i+1, job.Attempts)
		assert.Equal(t, string(report.StepFetch), job.FailedStep)
		e.clk.Advance(want)
	}

	out, err := e.orch.Run(ctx, it.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, ActionMarkFailed, out.Action)
	assert.Equal(t, ReasonRetriesExhausted, out.Reason)
	assert.Equal(t, async.JobStatusError, e.job(t, it.ID).Status)

	got, err := e.integrations.Get(ctx, it.ID)
	require.NoError(t, err)
	assert.Equal(t, integration.StatusInAnalysis, got.Status)
	assert.True(t, strings.HasPrefix(got.LastError, "[feed_unavailable] fetch: GET "), got.LastError)
	assert.Nil(t, got.LastSuccessAt)
}

func TestRunInvalidFeedAbortsAtExtract(t *testing.T) {
	e := newEnv(t)
	it := e.addIntegration(t, `<ListingDataFeed><Header/></ListingDataFeed>`)

	out, err := e.orch.Run(testContext(t), it.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, string(async.ErrorCodeInvalidFeed), out.Reason)

	job := e.job(t, it.ID)
	assert.Equal(t, string(report.StepExtract), job.FailedStep)
	assert.Contains(t, job.LastError, "[invalid_feed] extract:")

	require.Len(t, e.notifier.reports, 1)
	assert.NotEmpty(t, e.notifier.reports[0].Warnings)
}

func TestRunDefersWhenCoordinationHeld(t *testing.T) {
	e := newEnv(t)
	ctx := testContext(t)
	it := e.addIntegration(t, vrsyncFeed(vrsyncListing("A", "For Sale", 1)))
	key := coord.IntegrationKey(it.ID)

	lock, err := e.coord.AcquireLock(ctx, key, time.Hour)
	require.NoError(t, err)

	out, err := e.orch.Run(ctx, it.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, ActionRetryLater, out.Action)
	assert.Equal(t, ReasonLockHeld, out.Reason)
	assert.Equal(t, time.Minute, out.RetryAfter)
	assert.Equal(t, async.JobStatusPending, e.job(t, it.ID).Status, "no state change")

	n, err := e.coord.InUse(ctx, key)
	require.NoError(t, err)
	assert.Zero(t, n, "slot released when the lock is held")
	require.NoError(t, lock.Release(ctx))

	slot, err := e.coord.AcquireSlot(ctx, key, 1, time.Hour)
	require.NoError(t, err)
	out, err = e.orch.Run(ctx, it.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, ReasonSlotUnavailable, out.Reason)
	require.NoError(t, slot.Release(ctx))

	out, err = e.orch.Run(ctx, it.ID, 0)
	require.NoError(t, err)
	assert.True(t, out.Success)
}

func TestGlobalSlotLimit(t *testing.T) {
	e := newEnv(t)
	ctx := testContext(t)
	e.orch.cfg.GlobalSlots = 1
	it := e.addIntegration(t, vrsyncFeed(vrsyncListing("A", "For Sale", 1)))

	other, err := e.coord.AcquireSlot(ctx, coord.GlobalSlotKey, 1, time.Hour)
	require.NoError(t, err)

	out, err := e.orch.Run(ctx, it.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, ReasonSlotUnavailable, out.Reason)

	n, err := e.coord.InUse(ctx, coord.IntegrationKey(it.ID))
	require.NoError(t, err)
	assert.Zero(t, n, "integration slot released when the global slot is full")

	require.NoError(t, other.Release(ctx))
	out, err = e.orch.Run(ctx, it.ID, 0)
	require.NoError(t, err)
	assert.True(t, out.Success)
}

func TestStuckRunIsResetOnce(t *testing.T) {
	e := newEnv(t)
	ctx := testContext(t)
	log := zaptest.NewLogger(t).Sugar()
	it := e.addIntegration(t, "")
	job := e.job(t, it.ID)

	_, err := e.queue.MarkInProcess(ctx, job.ID, 1, e.orch.cfg.StuckThreshold)
	require.NoError(t, err)

	e.clk.Advance(30 * time.Minute)
	out, err := e.orch.Run(ctx, it.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, ActionRetryLater, out.Action)
	assert.Equal(t, ReasonAlreadyRunning, out.Reason)

	e.clk.Advance(91 * time.Minute)
	stale := e.job(t, it.ID)
	require.Equal(t, async.JobStatusInProcess, stale.Status)

	first, err := e.orch.handleRunning(ctx, it, stale, log)
	require.NoError(t, err)
	second, err := e.orch.handleRunning(ctx, it, stale, log)
	require.NoError(t, err)

	assert.Equal(t, ActionRetryNow, first.Action)
	assert.Equal(t, ReasonStuckReset, first.Reason)
	assert.Equal(t, ActionRetryLater, second.Action, "only the first observer resets")

	reset := e.job(t, it.ID)
	assert.Equal(t, async.JobStatusPending, reset.Status)
	got, err := e.integrations.Get(ctx, it.ID)
	require.NoError(t, err)
	assert.Equal(t, integration.StatusInAnalysis, got.Status)
}

func TestRunMissingRecords(t *testing.T) {
	e := newEnv(t)
	ctx := testContext(t)

	out, err := e.orch.Run(ctx, 404, 0)
	require.NoError(t, err)
	assert.Equal(t, ActionMarkFailed, out.Action)
	assert.Equal(t, ReasonIntegrationNotFound, out.Reason)

	it := &integration.Integration{AccountID: 1, System: "vrsync", FeedURL: "https://feeds.example/x.xml"}
	require.NoError(t, e.integrations.Create(ctx, it))
	out, err = e.orch.Run(ctx, it.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, ActionMarkFailed, out.Action)
	assert.Equal(t, ReasonQueueNotFound, out.Reason)
}

func TestRunDisabledIntegrationClosesJob(t *testing.T) {
	e := newEnv(t)
	ctx := testContext(t)
	it := e.addIntegration(t, vrsyncFeed(vrsyncListing("A", "For Sale", 1)))
	require.NoError(t, e.integrations.SetStatus(ctx, it.ID, integration.StatusDisabled))

	out, err := e.orch.Run(ctx, it.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, ReasonDisabled, out.Reason)
	assert.Equal(t, async.JobStatusDone, e.job(t, it.ID).Status)

	stored, err := e.listings.ListByAccount(ctx, 21)
	require.NoError(t, err)
	assert.Empty(t, stored)
}

// blockingFetcher holds the first fetch until released.
type blockingFetcher struct {
	inner   *feeds
	entered chan struct{}
	release chan struct{}
	calls   atomic.Int32
}

func (b *blockingFetcher) Fetch(ctx context.Context, source string) (io.ReadCloser, error) {
	if b.calls.Add(1) == 1 {
		close(b.entered)
		<-b.release
	}
	return b.inner.Fetch(ctx, source)
}

func TestConcurrentRunsOfOneIntegration(t *testing.T) {
	e := newEnv(t)
	ctx := testContext(t)
	it := e.addIntegration(t, vrsyncFeed(vrsyncListing("A", "For Sale", 1)))

	bf := &blockingFetcher{inner: e.feeds, entered: make(chan struct{}), release: make(chan struct{})}
	e.orch.Fetcher = bf

	var wg sync.WaitGroup
	results := make(chan Outcome, 6)
	run := func() {
		defer wg.Done()
		out, err := e.orch.Run(ctx, it.ID, 0)
		assert.NoError(t, err)
		results <- out
	}

	wg.Add(1)
	go run()
	<-bf.entered

	for i := 0; i < 5; i++ {
		wg.Add(1)
		go run()
	}
	// Contenders finish while the first run is parked in fetch.
	require.Eventually(t, func() bool { return len(results) == 5 }, 5*time.Second, 5*time.Millisecond)
	close(bf.release)
	wg.Wait()
	close(results)

	var succeeded, deferred int
	for out := range results {
		switch {
		case out.Success:
			succeeded++
		case out.Action == ActionRetryLater:
			deferred++
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 5, deferred)
	assert.Equal(t, int32(1), bf.calls.Load())
}

type panicFetcher struct{}

func (panicFetcher) Fetch(context.Context, string) (io.ReadCloser, error) {
	panic("nil feed client")
}

func TestRunRecoversFromPanic(t *testing.T) {
	e := newEnv(t)
	ctx := testContext(t)
	it := e.addIntegration(t, "")
	e.orch.Fetcher = panicFetcher{}

	out, err := e.orch.Run(ctx, it.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, ActionRetryLater, out.Action)

	job := e.job(t, it.ID)
	assert.Equal(t, async.JobStatusStopped, job.Status)
	assert.Contains(t, job.LastError, "panic: nil feed client")

	n, err := e.coord.InUse(ctx, coord.IntegrationKey(it.ID))
	require.NoError(t, err)
	assert.Zero(t, n)
	_, err = e.coord.AcquireLock(ctx, coord.IntegrationKey(it.ID), time.Hour)
	assert.NoError(t, err, "lock released after panic")
}

func TestExecutorDefersCoordinationConflicts(t *testing.T) {
	e := newEnv(t)
	ctx := testContext(t)
	it := e.addIntegration(t, vrsyncFeed(vrsyncListing("A", "For Sale", 1)))

	_, err := e.coord.AcquireLock(ctx, coord.IntegrationKey(it.ID), time.Hour)
	require.NoError(t, err)

	job := e.job(t, it.ID)
	require.NoError(t, NewExecutor(e.orch).Execute(ctx, job))

	deferred := e.job(t, it.ID)
	assert.Equal(t, async.JobStatusPending, deferred.Status)
	assert.Equal(t, e.clk.Now().Add(time.Minute), deferred.AvailableAt)
	assert.Zero(t, deferred.Attempts, "deferral consumes no attempt")
}

func TestConfigFromAm(t *testing.T) {
	cfg := ConfigFromAm(am.PulseConfig{StuckThresholdMin: 90, LockTTLMinutes: 240, DeferSeconds: 30, GlobalSlots: 8})
	assert.Equal(t, 90*time.Minute, cfg.StuckThreshold)
	assert.Equal(t, 4*time.Hour, cfg.LockTTL)
	assert.Equal(t, 30*time.Second, cfg.DeferDelay)
	assert.Equal(t, 8, cfg.GlobalSlots)

	assert.Equal(t, DefaultConfig(), ConfigFromAm(am.PulseConfig{}))
}

// cancellableFetcher parks the fetch until released or until ctx ends.
type cancellableFetcher struct {
	inner   *feeds
	entered chan struct{}
	release chan struct{}
}

func (c *cancellableFetcher) Fetch(ctx context.Context, source string) (io.ReadCloser, error) {
	close(c.entered)
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.release:
	}
	return c.inner.Fetch(ctx, source)
}

func TestPoolShutdownDoesNotFailRunningIntegration(t *testing.T) {
	e := newEnv(t)
	it := e.addIntegration(t, vrsyncFeed(vrsyncListing("A", "For Sale", 1)))
	cf := &cancellableFetcher{inner: e.feeds, entered: make(chan struct{}), release: make(chan struct{})}
	e.orch.Fetcher = cf

	ctx, cancel := context.WithCancel(testContext(t))
	cfg := async.DefaultWorkerPoolConfig()
	cfg.PollInterval = 10 * time.Millisecond
	cfg.StopTimeout = 5 * time.Second
	pool := async.NewWorkerPool(ctx, e.queue, NewExecutor(e.orch), cfg, zaptest.NewLogger(t).Sugar())
	pool.Start()
	<-cf.entered

	cancel()
	stopped := make(chan struct{})
	go func() {
		pool.Stop()
		close(stopped)
	}()
	close(cf.release)
	<-stopped

	job := e.job(t, it.ID)
	assert.Equal(t, async.JobStatusDone, job.Status)
	assert.Equal(t, 1, job.Attempts)
	assert.Empty(t, job.LastError)

	got, err := e.integrations.Get(testContext(t), it.ID)
	require.NoError(t, err)
	assert.Equal(t, integration.StatusIntegrated, got.Status)
	assert.Empty(t, got.LastError)
}

func TestLongRunKeepsExtendingItsLock(t *testing.T) {
	e := newEnv(t)
	ctx := testContext(t)
	e.orch.cfg.LockTTL = time.Hour
	e.orch.cfg.LockRenewal = 10 * time.Millisecond
	it := e.addIntegration(t, vrsyncFeed(vrsyncListing("A", "For Sale", 1)))
	key := coord.IntegrationKey(it.ID)

	bf := &blockingFetcher{inner: e.feeds, entered: make(chan struct{}), release: make(chan struct{})}
	e.orch.Fetcher = bf

	done := make(chan Outcome, 1)
	go func() {
		out, err := e.orch.Run(ctx, it.ID, 0)
		assert.NoError(t, err)
		done <- out
	}()
	<-bf.entered

	expiry := func() int64 {
		var ms int64
		_ = e.db.QueryRowContext(ctx, `SELECT expires_at FROM coord_locks WHERE name = ?`, key).Scan(&ms)
		return ms
	}
	acquiredUntil := expiry()

	// Past the original expiry the lock is still held, because it was renewed.
	e.clk.Advance(50 * time.Minute)
	require.Eventually(t, func() bool { return expiry() > acquiredUntil }, 5*time.Second, 5*time.Millisecond)
	e.clk.Advance(20 * time.Minute)
	_, err := e.coord.AcquireLock(ctx, key, time.Hour)
	assert.True(t, errors.Is(err, errors.ErrLockHeld), "lock still held: %v", err)

	close(bf.release)
	out := <-done
	assert.True(t, out.Success)
	_, err = e.coord.AcquireLock(ctx, key, time.Hour)
	assert.NoError(t, err, "lock released after the run")
}

func TestStoredFeedURLMustBeRemote(t *testing.T) {
	e := newEnv(t)
	ctx := testContext(t)
	it := e.addIntegration(t, "")
	local := "/etc/imovelguide/feed.xml"
	_, err := e.db.ExecContext(ctx, `UPDATE integrations SET feed_url = ? WHERE id = ?`, local, it.ID)
	require.NoError(t, err)
	e.feeds.Set(local, vrsyncFeed(vrsyncListing("A", "For Sale", 1)))

	out, err := e.orch.Run(ctx, it.ID, 0)
	require.NoError(t, err)
	assert.False(t, out.Success)

	job := e.job(t, it.ID)
	assert.Equal(t, string(report.StepFetch), job.FailedStep)
	assert.Contains(t, job.LastError, "not an http(s) URL")
	stored, err := e.listings.ListByAccount(ctx, 21)
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestRunSourceUsesItsOwnFetcher(t *testing.T) {
	e := newEnv(t)
	ctx := testContext(t)
	it := e.addIntegration(t, "")

	local := &feeds{docs: map[string]string{"./feed.xml": vrsyncFeed(vrsyncListing("A", "For Sale", 1))}}
	out, err := e.orch.RunWith(ctx, it.ID, 0, RunOptions{Source: "./feed.xml", Fetcher: local})
	require.NoError(t, err)
	assert.True(t, out.Success, "reason: %s", out.Reason)
	assert.Equal(t, 1, out.Report.Inserted)
}
