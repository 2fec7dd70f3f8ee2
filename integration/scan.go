package integration

import (
	"database/sql"
	"time"
)

const selectColumns = `id, account_id, system, feed_url, status, queue_class, highlight_limit,
	last_run_started_at, last_run_ended_at, last_success_at, last_error,
	execution_ms, processed_items, total_items, created_at, updated_at`

// scanArgs holds the nullable columns of an integration row.
type scanArgs struct {
	LastRunStartedAt sql.NullTime
	LastRunEndedAt   sql.NullTime
	LastSuccessAt    sql.NullTime
	LastError        sql.NullString
}

func scanTargets(it *Integration, args *scanArgs) []interface{} {
	return []interface{}{
		&it.ID,
		&it.AccountID,
		&it.System,
		&it.FeedURL,
		&it.Status,
		&it.QueueClass,
		&it.HighlightLimit,
		&args.LastRunStartedAt,
		&args.LastRunEndedAt,
		&args.LastSuccessAt,
		&args.LastError,
		&it.ExecutionMS,
		&it.ProcessedItems,
		&it.TotalItems,
		&it.CreatedAt,
		&it.UpdatedAt,
	}
}

func (args *scanArgs) apply(it *Integration) {
	it.LastRunStartedAt = timePtr(args.LastRunStartedAt)
	it.LastRunEndedAt = timePtr(args.LastRunEndedAt)
	it.LastSuccessAt = timePtr(args.LastSuccessAt)
	it.LastError = args.LastError.String
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanIntegration(row rowScanner) (*Integration, error) {
	var it Integration
	var args scanArgs
	if err := row.Scan(scanTargets(&it, &args)...); err != nil {
		return nil, err
	}
	args.apply(&it)
	it.CreatedAt = it.CreatedAt.UTC()
	it.UpdatedAt = it.UpdatedAt.UTC()
	return &it, nil
}
