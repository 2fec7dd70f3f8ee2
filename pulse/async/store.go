package async

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/matheusluizig/imovelguide-integracao-sub000/errors"
)

// Store handles persistence of integration jobs
type Store struct {
	db *sql.DB
}

// NewStore creates a new integration job store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying handle for callers composing transactions.
func (s *Store) DB() *sql.DB {
	return s.db
}

// CreateJob inserts a new job into the database
func (s *Store) CreateJob(ctx context.Context, job *Job) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO integration_jobs (
			id, integration_id, status, queue_class, attempts, available_at,
			started_at, ended_at, last_error, failed_step, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID,
		job.IntegrationID,
		job.Status,
		job.Class,
		job.Attempts,
		job.AvailableAt.UTC(),
		nullTime(job.StartedAt),
		nullTime(job.EndedAt),
		nullString(job.LastError),
		nullString(job.FailedStep),
		job.CreatedAt.UTC(),
		job.UpdatedAt.UTC(),
	)
	if err != nil {
		return errors.Wrapf(err, "failed to create job for integration %d", job.IntegrationID)
	}
	return nil
}

// UpdateJob writes every mutable column of job
func (s *Store) UpdateJob(ctx context.Context, job *Job) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE integration_jobs SET
			status = ?, queue_class = ?, attempts = ?, available_at = ?,
			started_at = ?, ended_at = ?, last_error = ?, failed_step = ?, updated_at = ?
		WHERE id = ?`,
		job.Status,
		job.Class,
		job.Attempts,
		job.AvailableAt.UTC(),
		nullTime(job.StartedAt),
		nullTime(job.EndedAt),
		nullString(job.LastError),
		nullString(job.FailedStep),
		job.UpdatedAt.UTC(),
		job.ID,
	)
	if err != nil {
		return errors.Wrapf(err, "failed to update job %s", job.ID)
	}
	return requireRow(res, job.ID)
}

// GetJob retrieves a job by ID
func (s *Store) GetJob(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+StandardJobSelectColumns()+` FROM integration_jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewNotFoundError("job %s", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get job")
	}
	return job, nil
}

// GetByIntegration retrieves the job row of an integration
func (s *Store) GetByIntegration(ctx context.Context, integrationID int64) (*Job, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+StandardJobSelectColumns()+` FROM integration_jobs WHERE integration_id = ?`, integrationID)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewNotFoundError("job for integration %d", integrationID)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get job for integration %d", integrationID)
	}
	return job, nil
}

// ListFilter narrows ListJobs. Zero fields match everything.
type ListFilter struct {
	Status JobStatus
	Class  QueueClass
	Limit  int
}

// ListJobs returns jobs ordered by class priority then availability
func (s *Store) ListJobs(ctx context.Context, f ListFilter) ([]*Job, error) {
	var where []string
	var args []interface{}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, f.Status)
	}
	if f.Class != "" {
		where = append(where, "queue_class = ?")
		args = append(args, f.Class)
	}
	query := `SELECT ` + StandardJobSelectColumns() + ` FROM integration_jobs`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY ` + classOrder + `, available_at, id`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list jobs")
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan job")
		}
		jobs = append(jobs, job)
	}
	return jobs, errors.Wrap(rows.Err(), "failed to iterate jobs")
}

const classOrder = `CASE queue_class WHEN 'plan' THEN 0 WHEN 'level' THEN 1 ELSE 2 END`

// NextAvailable returns the highest-priority runnable job of the given
// classes, or nil when none is due.
func (s *Store) NextAvailable(ctx context.Context, classes []QueueClass, now time.Time) (*Job, error) {
	if len(classes) == 0 {
		return nil, nil
	}
	args := []interface{}{JobStatusPending, JobStatusStopped, JobStatusInProcess, now.UTC()}
	marks := make([]string, len(classes))
	for i, c := range classes {
		marks[i] = "?"
		args = append(args, c)
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT `+StandardJobSelectColumns()+` FROM integration_jobs
		WHERE status IN (?, ?, ?) AND available_at <= ?
		  AND queue_class IN (`+strings.Join(marks, ", ")+`)
		ORDER BY `+classOrder+`, available_at, id
		LIMIT 1`, args...)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to select next job")
	}
	return job, nil
}

// Claim hides a runnable job until leaseUntil. It reports false when another
// worker claimed or changed it first.
func (s *Store) Claim(ctx context.Context, id string, now, leaseUntil time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE integration_jobs SET available_at = ?, updated_at = ?
		WHERE id = ? AND available_at <= ? AND status IN (?, ?, ?)`,
		leaseUntil.UTC(), now.UTC(), id, now.UTC(),
		JobStatusPending, JobStatusStopped, JobStatusInProcess)
	if err != nil {
		return false, errors.Wrapf(err, "failed to claim job %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "failed to read claim result")
	}
	return n == 1, nil
}

// SetAvailableAt moves the next availability of a job without touching its status
func (s *Store) SetAvailableAt(ctx context.Context, id string, at, now time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE integration_jobs SET available_at = ?, updated_at = ? WHERE id = ?`,
		at.UTC(), now.UTC(), id)
	if err != nil {
		return errors.Wrapf(err, "failed to reschedule job %s", id)
	}
	return requireRow(res, id)
}

// StartRun moves a job to in_process unless it already is. It reports false
// when another run holds the job.
func (s *Store) StartRun(ctx context.Context, id string, attempt int, startedAt, recheckAt time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE integration_jobs SET
			status = ?, attempts = ?, started_at = ?, ended_at = NULL, available_at = ?,
			last_error = NULL, failed_step = NULL, updated_at = ?
		WHERE id = ? AND status != ?`,
		JobStatusInProcess, attempt, startedAt.UTC(), recheckAt.UTC(), startedAt.UTC(),
		id, JobStatusInProcess)
	if err != nil {
		return false, errors.Wrapf(err, "failed to start job %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "failed to read start result")
	}
	return n == 1, nil
}

// ResetStuck atomically returns an in_process job that started at startedAt
// to pending, running fn in the same transaction. It reports false when the
// job was already reset or restarted by someone else.
func (s *Store) ResetStuck(ctx context.Context, id string, startedAt, now time.Time, fn func(ctx context.Context, tx *sql.Tx) error) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, errors.Wrap(err, "failed to begin stuck reset")
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE integration_jobs SET status = ?, available_at = ?, ended_at = ?, last_error = ?, updated_at = ?
		WHERE id = ? AND status = ? AND started_at = ?`,
		JobStatusPending, now.UTC(), now.UTC(), "reset after stuck run", now.UTC(),
		id, JobStatusInProcess, startedAt.UTC())
	if err != nil {
		return false, errors.Wrapf(err, "failed to reset stuck job %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "failed to read reset result")
	}
	if n == 0 {
		return false, nil
	}
	if fn != nil {
		if err := fn(ctx, tx); err != nil {
			return false, err
		}
	}
	if err := tx.Commit(); err != nil {
		return false, errors.Wrap(err, "failed to commit stuck reset")
	}
	return true, nil
}

// GetJobCounts returns the number of jobs per status
func (s *Store) GetJobCounts(ctx context.Context) (map[JobStatus]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM integration_jobs GROUP BY status`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to count jobs")
	}
	defer rows.Close()

	counts := make(map[JobStatus]int)
	for rows.Next() {
		var status JobStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, errors.Wrap(err, "failed to scan job count")
		}
		counts[status] = n
	}
	return counts, errors.Wrap(rows.Err(), "failed to iterate job counts")
}

func requireRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to read rows affected")
	}
	if n == 0 {
		return errors.NewNotFoundError("job %s", id)
	}
	return nil
}
