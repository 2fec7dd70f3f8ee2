package async

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matheusluizig/imovelguide-integracao-sub000/errors"
	igtest "github.com/matheusluizig/imovelguide-integracao-sub000/internal/testing"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func createIntegration(t *testing.T, db *sql.DB, accountID int64) int64 {
	t.Helper()
	now := time.Now().UTC()
	res, err := db.Exec(`INSERT INTO integrations (account_id, system, created_at, updated_at) VALUES (?, 'vrsync', ?, ?)`,
		accountID, now, now)
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return id
}

func setupQueue(t *testing.T) (*Queue, *sql.DB, *fakeClock) {
	t.Helper()
	db := igtest.CreateMigratedDB(t)
	clock := newFakeClock()
	return NewQueue(db).WithClock(clock.Now), db, clock
}

func TestEnqueueCreatesOneJobPerIntegration(t *testing.T) {
	q, db, clock := setupQueue(t)
	ctx := testContext(t)
	id := createIntegration(t, db, 1)

	first, err := q.Enqueue(ctx, id, ClassNormal, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, JobStatusPending, first.Status)
	assert.Equal(t, clock.Now().Add(time.Minute), first.AvailableAt)

	second, err := q.Enqueue(ctx, id, ClassNormal, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	jobs, err := q.ListJobs(ctx, ListFilter{})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, clock.Now().Add(time.Minute), jobs[0].AvailableAt, "earliest availability is kept")
}

func TestEnqueueRejectsUnknownClass(t *testing.T) {
	q, db, _ := setupQueue(t)
	_, err := q.Enqueue(testContext(t), createIntegration(t, db, 1), QueueClass("vip"), 0)
	assert.ErrorIs(t, err, errors.ErrInvalidRequest)
}

func TestEnqueueReopenRules(t *testing.T) {
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	later := base.Add(10 * time.Minute)

	tests := []struct {
		name         string
		job          Job
		class        QueueClass
		at           time.Time
		wantChanged  bool
		wantStatus   JobStatus
		wantClass    QueueClass
		wantAttempts int
		wantAt       time.Time
	}{
		{
			name:         "done reopens with attempts reset",
			job:          Job{Status: JobStatusDone, Class: ClassPlan, Attempts: 2, AvailableAt: base},
			class:        ClassNormal,
			at:           later,
			wantChanged:  true,
			wantStatus:   JobStatusPending,
			wantClass:    ClassNormal,
			wantAttempts: 0,
			wantAt:       later,
		},
		{
			name:         "error reopens with attempts reset",
			job:          Job{Status: JobStatusError, Class: ClassNormal, Attempts: 6, AvailableAt: base},
			class:        ClassLevel,
			at:           later,
			wantChanged:  true,
			wantStatus:   JobStatusPending,
			wantClass:    ClassLevel,
			wantAttempts: 0,
			wantAt:       later,
		},
		{
			name:         "stopped keeps attempts and backoff",
			job:          Job{Status: JobStatusStopped, Class: ClassNormal, Attempts: 3, AvailableAt: later},
			class:        ClassPlan,
			at:           base,
			wantChanged:  true,
			wantStatus:   JobStatusPending,
			wantClass:    ClassPlan,
			wantAttempts: 3,
			wantAt:       later,
		},
		{
			name:         "pending upgrades class",
			job:          Job{Status: JobStatusPending, Class: ClassNormal, AvailableAt: base},
			class:        ClassLevel,
			at:           later,
			wantChanged:  true,
			wantStatus:   JobStatusPending,
			wantClass:    ClassLevel,
			wantAt:       base,
		},
		{
			name:        "pending never downgrades",
			job:         Job{Status: JobStatusPending, Class: ClassPlan, AvailableAt: base},
			class:       ClassNormal,
			at:          later,
			wantChanged: false,
			wantStatus:  JobStatusPending,
			wantClass:   ClassPlan,
			wantAt:      base,
		},
		{
			name:         "in_process is untouched",
			job:          Job{Status: JobStatusInProcess, Class: ClassNormal, Attempts: 1, AvailableAt: later},
			class:        ClassPlan,
			at:           base,
			wantChanged:  false,
			wantStatus:   JobStatusInProcess,
			wantClass:    ClassNormal,
			wantAttempts: 1,
			wantAt:       later,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := tt.job
			assert.Equal(t, tt.wantChanged, reopen(&job, tt.class, tt.at))
			assert.Equal(t, tt.wantStatus, job.Status)
			assert.Equal(t, tt.wantClass, job.Class)
			assert.Equal(t, tt.wantAttempts, job.Attempts)
			assert.Equal(t, tt.wantAt, job.AvailableAt)
		})
	}
}

func TestDequeueHonoursPriorityAndAvailability(t *testing.T) {
	q, db, clock := setupQueue(t)
	ctx := testContext(t)

	normal := createIntegration(t, db, 1)
	plan := createIntegration(t, db, 2)
	delayed := createIntegration(t, db, 3)

	_, err := q.Enqueue(ctx, normal, ClassNormal, 0)
	require.NoError(t, err)
	_, err = q.Enqueue(ctx, plan, ClassPlan, 0)
	require.NoError(t, err)
	_, err = q.Enqueue(ctx, delayed, ClassPlan, time.Hour)
	require.NoError(t, err)

	clock.Advance(time.Second)

	job, err := q.Dequeue(ctx, AllClasses)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, plan, job.IntegrationID)
	assert.Equal(t, clock.Now().Add(DefaultClaimLease), job.AvailableAt)

	job, err = q.Dequeue(ctx, AllClasses)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, normal, job.IntegrationID)

	job, err = q.Dequeue(ctx, AllClasses)
	require.NoError(t, err)
	assert.Nil(t, job, "claimed jobs stay hidden for the lease; delayed job not due")

	clock.Advance(time.Hour)
	job, err = q.Dequeue(ctx, []QueueClass{ClassNormal})
	require.NoError(t, err)
	require.NotNil(t, job, "lease expired")
	assert.Equal(t, normal, job.IntegrationID)
}

func TestMarkInProcessConflict(t *testing.T) {
	q, db, clock := setupQueue(t)
	ctx := testContext(t)
	job, err := q.Enqueue(ctx, createIntegration(t, db, 1), ClassNormal, 0)
	require.NoError(t, err)

	started, err := q.MarkInProcess(ctx, job.ID, 1, 2*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, clock.Now(), started)

	_, err = q.MarkInProcess(ctx, job.ID, 2, 2*time.Hour)
	assert.ErrorIs(t, err, errors.ErrConflict)

	got, err := q.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobStatusInProcess, got.Status)
	assert.Equal(t, 1, got.Attempts)
	require.NotNil(t, got.StartedAt)
	assert.Equal(t, started, *got.StartedAt)
	assert.Equal(t, started.Add(2*time.Hour), got.AvailableAt, "stuck re-check time")
}

func TestRetryBackoffSequenceThenPermanentFailure(t *testing.T) {
	q, db, clock := setupQueue(t)
	ctx := testContext(t)
	job, err := q.Enqueue(ctx, createIntegration(t, db, 1), ClassNormal, 0)
	require.NoError(t, err)

	want := []time.Duration{60 * time.Second, 300 * time.Second, 900 * time.Second, 3600 * time.Second, 7200 * time.Second}
	for i, delay := range want {
		attempt := i + 1
		_, err := q.MarkInProcess(ctx, job.ID, attempt, 2*time.Hour)
		require.NoError(t, err)

		failed, err := q.MarkFailed(ctx, job.ID, attempt, "fetch", "connection refused")
		require.NoError(t, err)
		assert.Equal(t, JobStatusStopped, failed.Status, "attempt %d", attempt)
		assert.Equal(t, clock.Now().Add(delay), failed.AvailableAt, "attempt %d", attempt)
		assert.Equal(t, attempt, failed.Attempts)
		assert.Equal(t, "fetch", failed.FailedStep)
		assert.Equal(t, attempt+1, failed.NextAttempt())
	}

	_, err = q.MarkInProcess(ctx, job.ID, 6, 2*time.Hour)
	require.NoError(t, err)
	final, err := q.MarkFailed(ctx, job.ID, 6, "fetch", "connection refused")
	require.NoError(t, err)
	assert.Equal(t, JobStatusError, final.Status)
	assert.True(t, final.IsTerminal())

	got, err := q.Dequeue(ctx, AllClasses)
	require.NoError(t, err)
	assert.Nil(t, got, "error jobs are never dequeued")
}

func TestRetryPolicyAfter(t *testing.T) {
	p := RetryPolicy{MaxRetries: 3, Schedule: []time.Duration{time.Second, time.Minute}}

	delay, final := p.After(1)
	assert.False(t, final)
	assert.Equal(t, time.Second, delay)

	delay, final = p.After(3)
	assert.False(t, final)
	assert.Equal(t, time.Minute, delay, "last entry repeats")

	_, final = p.After(4)
	assert.True(t, final)

	_, final = RetryPolicy{MaxRetries: 0}.After(1)
	assert.True(t, final)
}

func TestDeferDoesNotConsumeAttempts(t *testing.T) {
	q, db, clock := setupQueue(t)
	ctx := testContext(t)
	job, err := q.Enqueue(ctx, createIntegration(t, db, 1), ClassNormal, 0)
	require.NoError(t, err)

	require.NoError(t, q.Defer(ctx, job.ID, time.Minute))

	got, err := q.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobStatusPending, got.Status)
	assert.Equal(t, 0, got.Attempts)
	assert.Equal(t, clock.Now().Add(time.Minute), got.AvailableAt)

	assert.True(t, errors.IsNotFoundError(q.Defer(ctx, "missing", time.Minute)))
}

func TestResetStuckHappensOnce(t *testing.T) {
	q, db, clock := setupQueue(t)
	ctx := testContext(t)
	integrationID := createIntegration(t, db, 1)
	job, err := q.Enqueue(ctx, integrationID, ClassNormal, 0)
	require.NoError(t, err)
	_, err = q.MarkInProcess(ctx, job.ID, 1, 2*time.Hour)
	require.NoError(t, err)

	clock.Advance(121 * time.Minute)
	stuck, err := q.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Greater(t, stuck.Elapsed(clock.Now()), 120*time.Minute)

	calls := 0
	mark := func(ctx context.Context, tx *sql.Tx) error {
		calls++
		_, err := tx.ExecContext(ctx, `UPDATE integrations SET status = 'in_analysis' WHERE id = ?`, integrationID)
		return err
	}

	reset, err := q.ResetStuck(ctx, stuck, mark)
	require.NoError(t, err)
	assert.True(t, reset)

	again, err := q.ResetStuck(ctx, stuck, mark)
	require.NoError(t, err)
	assert.False(t, again, "second observer of the same run loses")
	assert.Equal(t, 1, calls)

	got, err := q.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobStatusPending, got.Status)
	assert.Equal(t, 1, got.Attempts)
	assert.Equal(t, clock.Now(), got.AvailableAt)

	var status string
	require.NoError(t, db.QueryRow(`SELECT status FROM integrations WHERE id = ?`, integrationID).Scan(&status))
	assert.Equal(t, "in_analysis", status)
}

func TestResetStuckRollsBackWhenCallbackFails(t *testing.T) {
	q, db, clock := setupQueue(t)
	ctx := testContext(t)
	job, err := q.Enqueue(ctx, createIntegration(t, db, 1), ClassNormal, 0)
	require.NoError(t, err)
	_, err = q.MarkInProcess(ctx, job.ID, 1, 2*time.Hour)
	require.NoError(t, err)
	clock.Advance(3 * time.Hour)

	stuck, err := q.GetJob(ctx, job.ID)
	require.NoError(t, err)

	reset, err := q.ResetStuck(ctx, stuck, func(context.Context, *sql.Tx) error {
		return errors.New("integration update failed")
	})
	require.Error(t, err)
	assert.False(t, reset)

	got, err := q.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobStatusInProcess, got.Status)
}

func TestMarkDoneClearsFailure(t *testing.T) {
	q, db, _ := setupQueue(t)
	ctx := testContext(t)
	job, err := q.Enqueue(ctx, createIntegration(t, db, 1), ClassNormal, 0)
	require.NoError(t, err)
	_, err = q.MarkInProcess(ctx, job.ID, 1, time.Hour)
	require.NoError(t, err)
	_, err = q.MarkFailed(ctx, job.ID, 1, "parse", "bad xml")
	require.NoError(t, err)
	_, err = q.MarkInProcess(ctx, job.ID, 2, time.Hour)
	require.NoError(t, err)

	done, err := q.MarkDone(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobStatusDone, done.Status)
	assert.Empty(t, done.LastError)
	assert.NotNil(t, done.EndedAt)

	queued, running, err := q.GetJobCounts(ctx)
	require.NoError(t, err)
	assert.Zero(t, queued)
	assert.Zero(t, running)
}

func TestParseClasses(t *testing.T) {
	classes, err := ParseClasses(nil)
	require.NoError(t, err)
	assert.Equal(t, AllClasses, classes)

	classes, err = ParseClasses([]string{"level", "normal"})
	require.NoError(t, err)
	assert.Equal(t, []QueueClass{ClassLevel, ClassNormal}, classes)

	_, err = ParseClasses([]string{"gold"})
	assert.ErrorIs(t, err, errors.ErrInvalidRequest)
}
