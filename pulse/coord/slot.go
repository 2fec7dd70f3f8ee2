package coord

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/matheusluizig/imovelguide-integracao-sub000/errors"
)

// Slot is a held execution permit.
type Slot struct {
	c      *Coordinator
	Key    string
	Holder string
}

// AcquireSlot takes one of limit permits under key for ttl. When limit
// unexpired permits are already held it yields ErrSlotUnavailable.
func (c *Coordinator) AcquireSlot(ctx context.Context, key string, limit int, ttl time.Duration) (*Slot, error) {
	if limit <= 0 {
		return nil, errors.NewInvalidRequestError("slot %s needs a positive limit", key)
	}
	now := millis(c.now())
	holder := uuid.NewString()

	if _, err := c.db.ExecContext(ctx,
		`DELETE FROM coord_slots WHERE slot_key = ? AND expires_at <= ?`, key, now); err != nil {
		return nil, errors.Wrapf(err, "purge expired slots %s", key)
	}

	// Count and insert in one statement so concurrent acquirers cannot both
	// see a free permit.
	res, err := c.db.ExecContext(ctx, `
		INSERT INTO coord_slots (slot_key, holder, expires_at)
		SELECT ?, ?, ?
		WHERE (SELECT COUNT(*) FROM coord_slots WHERE slot_key = ? AND expires_at > ?) < ?`,
		key, holder, now+ttl.Milliseconds(), key, now, limit)
	if err != nil {
		return nil, errors.Wrapf(err, "acquire slot %s", key)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, errors.Wrapf(err, "acquire slot %s", key)
	}
	if n != 1 {
		return nil, errors.Wrapf(errors.ErrSlotUnavailable, "slot %s (limit %d)", key, limit)
	}

	c.logger.Debugw("Slot acquired", "slot", key, "holder", holder)
	return &Slot{c: c, Key: key, Holder: holder}, nil
}

// Release returns the permit.
func (s *Slot) Release(ctx context.Context) error {
	_, err := s.c.db.ExecContext(ctx, `DELETE FROM coord_slots WHERE slot_key = ? AND holder = ?`, s.Key, s.Holder)
	if err != nil {
		return errors.Wrapf(err, "release slot %s", s.Key)
	}
	return nil
}

// InUse counts unexpired permits under key.
func (c *Coordinator) InUse(ctx context.Context, key string) (int, error) {
	var n int
	err := c.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM coord_slots WHERE slot_key = ? AND expires_at > ?`, key, millis(c.now())).Scan(&n)
	if err != nil {
		return 0, errors.Wrapf(err, "count slots %s", key)
	}
	return n, nil
}
