package async

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/matheusluizig/imovelguide-integracao-sub000/errors"
)

const (
	// DefaultClaimLease hides a dequeued job from other workers until the run marks it in_process
	DefaultClaimLease = 5 * time.Minute

	// claimAttempts bounds how often Dequeue retries after losing a claim race
	claimAttempts = 3
)

// Queue implements the integration job state machine on top of Store.
//
//	pending ──Dequeue+MarkInProcess──▶ in_process ──MarkDone──▶ done
//	   ▲                                   │
//	   │                                   └──MarkFailed──▶ stopped (retry at backoff) | error (retries exhausted)
//	   └──────────── Enqueue / ResetStuck ──────────────────────┘
type Queue struct {
	store  *Store
	policy RetryPolicy
	lease  time.Duration
	now    func() time.Time
	mu     sync.Mutex // serializes read-modify-write Enqueue within this process
}

// NewQueue creates a job queue with the default retry policy
func NewQueue(db *sql.DB) *Queue {
	return &Queue{
		store:  NewStore(db),
		policy: DefaultRetryPolicy(),
		lease:  DefaultClaimLease,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithPolicy replaces the retry policy.
func (q *Queue) WithPolicy(p RetryPolicy) *Queue {
	q.policy = p
	return q
}

// WithClaimLease replaces the dequeue lease.
func (q *Queue) WithClaimLease(d time.Duration) *Queue {
	if d > 0 {
		q.lease = d
	}
	return q
}

// WithClock replaces the time source (tests).
func (q *Queue) WithClock(now func() time.Time) *Queue {
	q.now = now
	return q
}

// Store exposes the underlying store.
func (q *Queue) Store() *Store {
	return q.store
}

// Policy returns the retry policy.
func (q *Queue) Policy() RetryPolicy {
	return q.policy
}

// Now returns the queue clock's current time.
func (q *Queue) Now() time.Time {
	return q.now()
}

// Enqueue schedules a run of an integration after delay. The integration's
// single job row is created on first use. A done or error job reopens with
// its attempts reset; a stopped job reopens keeping its attempts and backoff;
// a pending job keeps its earliest availability and takes the higher-priority
// class; an in_process job is left alone.
func (q *Queue) Enqueue(ctx context.Context, integrationID int64, class QueueClass, delay time.Duration) (*Job, error) {
	if !IsValidClass(string(class)) {
		return nil, errors.NewInvalidRequestError("unknown queue class %q", class)
	}
	if delay < 0 {
		delay = 0
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	at := now.Add(delay)

	job, err := q.store.GetByIntegration(ctx, integrationID)
	if errors.IsNotFoundError(err) {
		job = &Job{
			ID:            uuid.NewString(),
			IntegrationID: integrationID,
			Status:        JobStatusPending,
			Class:         class,
			AvailableAt:   at,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		createErr := q.store.CreateJob(ctx, job)
		if createErr == nil {
			return job, nil
		}
		// Another process may have created the row first.
		job, err = q.store.GetByIntegration(ctx, integrationID)
		if err != nil {
			err = errors.WithSecondaryError(errors.Wrap(createErr, "failed to enqueue job"), err)
			return nil, errors.WithDetailf(err, "Integration: %d", integrationID)
		}
	} else if err != nil {
		return nil, errors.Wrapf(err, "failed to enqueue integration %d", integrationID)
	}

	if !reopen(job, class, at) {
		return job, nil
	}
	job.UpdatedAt = now
	if err := q.store.UpdateJob(ctx, job); err != nil {
		err = errors.Wrap(err, "failed to enqueue job")
		err = errors.WithDetailf(err, "Job ID: %s", job.ID)
		return nil, errors.WithDetailf(err, "Status: %s", job.Status)
	}
	return job, nil
}

// reopen applies enqueue semantics to job and reports whether it changed.
func reopen(job *Job, class QueueClass, at time.Time) bool {
	switch job.Status {
	case JobStatusInProcess:
		return false
	case JobStatusDone, JobStatusError:
		job.Status = JobStatusPending
		job.Attempts = 0
		job.Class = class
		job.AvailableAt = at
		return true
	case JobStatusStopped:
		job.Status = JobStatusPending
		if class.Priority() < job.Class.Priority() {
			job.Class = class
		}
		return true
	default:
		changed := false
		if class.Priority() < job.Class.Priority() {
			job.Class = class
			changed = true
		}
		if at.Before(job.AvailableAt) {
			job.AvailableAt = at
			changed = true
		}
		return changed
	}
}

// Dequeue claims the next due job of the given classes, highest priority
// first. It returns nil when nothing is due. The claim only hides the job
// for the lease; the run itself decides the state transition.
func (q *Queue) Dequeue(ctx context.Context, classes []QueueClass) (*Job, error) {
	for i := 0; i < claimAttempts; i++ {
		now := q.now()
		job, err := q.store.NextAvailable(ctx, classes, now)
		if err != nil {
			return nil, errors.Wrap(err, "failed to dequeue job")
		}
		if job == nil {
			return nil, nil
		}

		until := now.Add(q.lease)
		ok, err := q.store.Claim(ctx, job.ID, now, until)
		if err != nil {
			return nil, err
		}
		if ok {
			job.AvailableAt = until
			job.UpdatedAt = now
			return job, nil
		}
	}
	return nil, nil
}

// Defer postpones a job without consuming an attempt.
func (q *Queue) Defer(ctx context.Context, jobID string, delay time.Duration) error {
	now := q.now()
	return q.store.SetAvailableAt(ctx, jobID, now.Add(delay), now)
}

// MarkInProcess starts run number attempt. The job becomes visible again to
// dequeue at start+stuckThreshold so a crashed run is eventually observed.
// A job already in_process yields ErrConflict.
func (q *Queue) MarkInProcess(ctx context.Context, jobID string, attempt int, stuckThreshold time.Duration) (time.Time, error) {
	now := q.now()
	ok, err := q.store.StartRun(ctx, jobID, attempt, now, now.Add(stuckThreshold))
	if err != nil {
		return time.Time{}, err
	}
	if !ok {
		return time.Time{}, errors.Wrapf(errors.ErrConflict, "job %s is already in process", jobID)
	}
	return now, nil
}

// MarkDone records a successful run.
func (q *Queue) MarkDone(ctx context.Context, jobID string) (*Job, error) {
	job, err := q.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to complete job %s", jobID)
	}
	now := q.now()
	job.Status = JobStatusDone
	job.EndedAt = &now
	job.AvailableAt = now
	job.LastError = ""
	job.FailedStep = ""
	job.UpdatedAt = now
	if err := q.store.UpdateJob(ctx, job); err != nil {
		return nil, errors.Wrap(err, "failed to mark job done")
	}
	return job, nil
}

// MarkFailed records a failed run number attempt. The job is stopped with
// the policy's backoff, or marked error when no retry remains.
func (q *Queue) MarkFailed(ctx context.Context, jobID string, attempt int, step, message string) (*Job, error) {
	job, err := q.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fail job %s", jobID)
	}

	now := q.now()
	delay, final := q.policy.After(attempt)
	job.Status = JobStatusStopped
	if final {
		job.Status = JobStatusError
	}
	job.Attempts = attempt
	job.EndedAt = &now
	job.AvailableAt = now.Add(delay)
	job.LastError = message
	job.FailedStep = step
	job.UpdatedAt = now

	if err := q.store.UpdateJob(ctx, job); err != nil {
		err = errors.Wrap(err, "failed to mark job failed")
		return nil, errors.WithDetailf(err, "Job ID: %s", jobID)
	}
	return job, nil
}

// ResetStuck returns a crashed in_process job to pending and runs fn in the
// same transaction. Only the first caller observing a given run wins.
func (q *Queue) ResetStuck(ctx context.Context, job *Job, fn func(ctx context.Context, tx *sql.Tx) error) (bool, error) {
	if job.Status != JobStatusInProcess || job.StartedAt == nil {
		return false, nil
	}
	return q.store.ResetStuck(ctx, job.ID, *job.StartedAt, q.now(), fn)
}

// GetJob retrieves a job by ID
func (q *Queue) GetJob(ctx context.Context, id string) (*Job, error) {
	return q.store.GetJob(ctx, id)
}

// GetByIntegration retrieves the job of an integration
func (q *Queue) GetByIntegration(ctx context.Context, integrationID int64) (*Job, error) {
	return q.store.GetByIntegration(ctx, integrationID)
}

// ListJobs lists jobs matching f
func (q *Queue) ListJobs(ctx context.Context, f ListFilter) ([]*Job, error) {
	return q.store.ListJobs(ctx, f)
}

// GetJobCounts returns counts of pending (including stopped) and in_process jobs
func (q *Queue) GetJobCounts(ctx context.Context) (queued, running int, err error) {
	counts, err := q.store.GetJobCounts(ctx)
	if err != nil {
		return 0, 0, err
	}
	return counts[JobStatusPending] + counts[JobStatusStopped], counts[JobStatusInProcess], nil
}
