package integration

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/matheusluizig/imovelguide-integracao-sub000/errors"
	"github.com/matheusluizig/imovelguide-integracao-sub000/pulse/async"
)

// Store persists integrations.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore creates an integration store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// WithClock replaces the timestamp source (tests).
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// Create inserts it and sets its id and timestamps.
func (s *Store) Create(ctx context.Context, it *Integration) error {
	if it.AccountID == 0 || it.System == "" {
		return errors.NewInvalidRequestError("integration needs an account and a system")
	}
	if it.Status == "" {
		it.Status = StatusPending
	}
	if it.QueueClass == "" {
		it.QueueClass = async.ClassNormal
	}
	if !IsValidStatus(string(it.Status)) {
		return errors.NewInvalidRequestError("invalid integration status %q", it.Status)
	}
	if !async.IsValidClass(string(it.QueueClass)) {
		return errors.NewInvalidRequestError("invalid queue class %q", it.QueueClass)
	}
	if it.FeedURL != "" {
		if err := ValidateFeedURL(it.FeedURL); err != nil {
			return err
		}
	}

	now := s.now()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO integrations (account_id, system, feed_url, status, queue_class, highlight_limit, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		it.AccountID, it.System, it.FeedURL, it.Status, it.QueueClass, it.HighlightLimit, now, now)
	if err != nil {
		return errors.Wrap(err, "insert integration")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return errors.Wrap(err, "read integration id")
	}
	it.ID, it.CreatedAt, it.UpdatedAt = id, now, now
	return nil
}

// Get loads an integration. A missing id is ErrNotFound.
func (s *Store) Get(ctx context.Context, id int64) (*Integration, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM integrations WHERE id = ?`, id)
	it, err := scanIntegration(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewNotFoundError("integration %d", id)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get integration %d", id)
	}
	return it, nil
}

// Filter narrows List. Zero fields match everything.
type Filter struct {
	AccountID int64
	Status    Status
	Limit     int
}

// List returns integrations ordered by id.
func (s *Store) List(ctx context.Context, f Filter) ([]*Integration, error) {
	var where []string
	var args []interface{}
	if f.AccountID != 0 {
		where = append(where, "account_id = ?")
		args = append(args, f.AccountID)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, f.Status)
	}
	query := `SELECT ` + selectColumns + ` FROM integrations`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY id`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}
	return s.query(ctx, query, args...)
}

// Due returns enabled integrations not currently updating whose last run
// ended before cutoff (or never ran), oldest first.
func (s *Store) Due(ctx context.Context, cutoff time.Time, limit int) ([]*Integration, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.query(ctx, `
		SELECT `+selectColumns+` FROM integrations
		WHERE status NOT IN (?, ?)
		  AND (last_run_ended_at IS NULL OR last_run_ended_at <= ?)
		ORDER BY last_run_ended_at IS NOT NULL, last_run_ended_at, id
		LIMIT ?`,
		StatusDisabled, StatusUpdating, cutoff.UTC(), limit)
}

func (s *Store) query(ctx context.Context, query string, args ...interface{}) ([]*Integration, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query integrations")
	}
	defer rows.Close()

	var out []*Integration
	for rows.Next() {
		it, err := scanIntegration(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan integration")
		}
		out = append(out, it)
	}
	return out, errors.Wrap(rows.Err(), "iterate integrations")
}

// SetStatus changes the lifecycle status.
func (s *Store) SetStatus(ctx context.Context, id int64, status Status) error {
	return s.exec(ctx, s.db, id, `UPDATE integrations SET status = ?, updated_at = ? WHERE id = ?`,
		status, s.now(), id)
}

// SetStatusTx changes the status inside tx, so it commits or rolls back
// together with a job transition.
func (s *Store) SetStatusTx(ctx context.Context, tx *sql.Tx, id int64, status Status) error {
	return s.exec(ctx, tx, id, `UPDATE integrations SET status = ?, updated_at = ? WHERE id = ?`,
		status, s.now(), id)
}

// MarkRunStarted moves the integration to updating.
func (s *Store) MarkRunStarted(ctx context.Context, id int64, at time.Time) error {
	return s.exec(ctx, s.db, id, `
		UPDATE integrations SET status = ?, last_run_started_at = ?, updated_at = ? WHERE id = ?`,
		StatusUpdating, at.UTC(), s.now(), id)
}

// MarkRunSucceeded moves the integration to integrated and stores the run metrics.
func (s *Store) MarkRunSucceeded(ctx context.Context, id int64, m RunMetrics) error {
	return s.exec(ctx, s.db, id, `
		UPDATE integrations SET
			status = ?, last_run_started_at = ?, last_run_ended_at = ?, last_success_at = ?,
			last_error = NULL, execution_ms = ?, processed_items = ?, total_items = ?, updated_at = ?
		WHERE id = ?`,
		StatusIntegrated, m.StartedAt.UTC(), m.EndedAt.UTC(), m.EndedAt.UTC(),
		m.ExecutionMS(), m.ProcessedItems, m.TotalItems, s.now(), id)
}

// MarkRunFailed moves the integration back to in_analysis with the error summary
// shown to the account owner. Metrics of the last successful run are kept.
func (s *Store) MarkRunFailed(ctx context.Context, id int64, endedAt time.Time, lastError string) error {
	return s.exec(ctx, s.db, id, `
		UPDATE integrations SET status = ?, last_run_ended_at = ?, last_error = ?, updated_at = ? WHERE id = ?`,
		StatusInAnalysis, endedAt.UTC(), lastError, s.now(), id)
}

// Delete removes an integration; its job row cascades and its listings are
// detached.
func (s *Store) Delete(ctx context.Context, id int64) error {
	return s.exec(ctx, s.db, id, `DELETE FROM integrations WHERE id = ?`, id)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func (s *Store) exec(ctx context.Context, db execer, id int64, query string, args ...interface{}) error {
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return errors.Wrapf(err, "update integration %d", id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NewNotFoundError("integration %d", id)
	}
	return nil
}
