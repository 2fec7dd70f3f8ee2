package async

import (
	"database/sql"
	"time"
)

// JobScanArgs holds the nullable columns of an integration_jobs row.
type JobScanArgs struct {
	StartedAt  sql.NullTime
	EndedAt    sql.NullTime
	LastError  sql.NullString
	FailedStep sql.NullString
}

// GetJobScanTargets returns the scan destinations in StandardJobSelectColumns order.
func GetJobScanTargets(job *Job, args *JobScanArgs) []interface{} {
	return []interface{}{
		&job.ID,
		&job.IntegrationID,
		&job.Status,
		&job.Class,
		&job.Attempts,
		&job.AvailableAt,
		&args.StartedAt,
		&args.EndedAt,
		&args.LastError,
		&args.FailedStep,
		&job.CreatedAt,
		&job.UpdatedAt,
	}
}

// ProcessJobScanArgs copies the scanned nullable columns into job and
// normalizes timestamps to UTC.
func ProcessJobScanArgs(job *Job, args *JobScanArgs) {
	if args.StartedAt.Valid {
		t := args.StartedAt.Time.UTC()
		job.StartedAt = &t
	}
	if args.EndedAt.Valid {
		t := args.EndedAt.Time.UTC()
		job.EndedAt = &t
	}
	job.LastError = args.LastError.String
	job.FailedStep = args.FailedStep.String
	job.AvailableAt = job.AvailableAt.UTC()
	job.CreatedAt = job.CreatedAt.UTC()
	job.UpdatedAt = job.UpdatedAt.UTC()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row rowScanner) (*Job, error) {
	var job Job
	var args JobScanArgs
	if err := row.Scan(GetJobScanTargets(&job, &args)...); err != nil {
		return nil, err
	}
	ProcessJobScanArgs(&job, &args)
	return &job, nil
}

// StandardJobSelectColumns returns the standard column list for job SELECT queries
func StandardJobSelectColumns() string {
	return `id, integration_id, status, queue_class, attempts, available_at,
		started_at, ended_at, last_error, failed_step, created_at, updated_at`
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
