package async

import (
	"time"

	"github.com/matheusluizig/imovelguide-integracao-sub000/errors"
)

// JobStatus represents the state of an integration job
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"    // waiting for available_at
	JobStatusInProcess JobStatus = "in_process" // a run holds the integration
	JobStatusDone      JobStatus = "done"       // last run succeeded
	JobStatusError     JobStatus = "error"      // retries exhausted; needs a new enqueue
	JobStatusStopped   JobStatus = "stopped"    // run failed; retried at available_at
)

// IsValidStatus checks if a status string is a valid job status
func IsValidStatus(status string) bool {
	switch JobStatus(status) {
	case JobStatusPending, JobStatusInProcess, JobStatusDone, JobStatusError, JobStatusStopped:
		return true
	default:
		return false
	}
}

// QueueClass partitions jobs by account tier. Workers always drain plan before
// level before normal.
type QueueClass string

const (
	ClassPlan   QueueClass = "plan"
	ClassLevel  QueueClass = "level"
	ClassNormal QueueClass = "normal"
)

// AllClasses lists the queue classes in priority order.
var AllClasses = []QueueClass{ClassPlan, ClassLevel, ClassNormal}

// Priority orders classes; lower runs first.
func (c QueueClass) Priority() int {
	switch c {
	case ClassPlan:
		return 0
	case ClassLevel:
		return 1
	default:
		return 2
	}
}

// IsValidClass checks if s names a queue class
func IsValidClass(s string) bool {
	switch QueueClass(s) {
	case ClassPlan, ClassLevel, ClassNormal:
		return true
	}
	return false
}

// ParseClasses converts configured class names, rejecting unknown ones.
// An empty list means every class.
func ParseClasses(names []string) ([]QueueClass, error) {
	if len(names) == 0 {
		return AllClasses, nil
	}
	out := make([]QueueClass, 0, len(names))
	for _, n := range names {
		if !IsValidClass(n) {
			return nil, errors.NewInvalidRequestError("unknown queue class %q", n)
		}
		out = append(out, QueueClass(n))
	}
	return out, nil
}

// Job is the queue record of one integration. There is exactly one row per
// integration; each run reuses it.
type Job struct {
	ID            string     `json:"id"`
	IntegrationID int64      `json:"integration_id"`
	Status        JobStatus  `json:"status"`
	Class         QueueClass `json:"queue_class"`
	Attempts      int        `json:"attempts"` // runs since the last successful enqueue reset

	// AvailableAt is when the job may be dequeued next. It carries the enqueue
	// delay, retry backoff and claim lease; for in_process jobs it is the
	// stuck re-check time.
	AvailableAt time.Time `json:"available_at"`

	StartedAt  *time.Time `json:"started_at,omitempty"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`
	LastError  string     `json:"last_error,omitempty"`
	FailedStep string     `json:"failed_step,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsTerminal reports whether the job waits for a new enqueue before running again.
func (j *Job) IsTerminal() bool {
	return j.Status == JobStatusDone || j.Status == JobStatusError
}

// Elapsed is how long an in_process job has been running at now.
func (j *Job) Elapsed(now time.Time) time.Duration {
	if j.StartedAt == nil {
		return 0
	}
	return now.Sub(*j.StartedAt)
}

// NextAttempt is the attempt number the next run of j will carry.
func (j *Job) NextAttempt() int {
	return j.Attempts + 1
}
