package coord

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/matheusluizig/imovelguide-integracao-sub000/errors"
)

// Lock is a held mutual-exclusion lock.
type Lock struct {
	c         *Coordinator
	Name      string
	Owner     string
	ExpiresAt time.Time
}

// AcquireLock takes the named lock for ttl. An unexpired lock of another
// owner yields ErrLockHeld.
func (c *Coordinator) AcquireLock(ctx context.Context, name string, ttl time.Duration) (*Lock, error) {
	now := c.now()
	owner := uuid.NewString()
	expires := now.Add(ttl)

	res, err := c.db.ExecContext(ctx, `
		INSERT INTO coord_locks (name, owner, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET owner = excluded.owner, expires_at = excluded.expires_at
		WHERE coord_locks.expires_at <= ?`,
		name, owner, millis(expires), millis(now))
	if err != nil {
		return nil, errors.Wrapf(err, "acquire lock %s", name)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, errors.Wrapf(err, "acquire lock %s", name)
	}
	if n != 1 {
		return nil, errors.Wrapf(errors.ErrLockHeld, "lock %s", name)
	}

	c.logger.Debugw("Lock acquired", "lock", name, "owner", owner, "expires_at", expires)
	return &Lock{c: c, Name: name, Owner: owner, ExpiresAt: expires}, nil
}

// Release frees the lock if this owner still holds it. Releasing a lock that
// expired and was taken over is not an error.
func (l *Lock) Release(ctx context.Context) error {
	_, err := l.c.db.ExecContext(ctx, `DELETE FROM coord_locks WHERE name = ? AND owner = ?`, l.Name, l.Owner)
	if err != nil {
		return errors.Wrapf(err, "release lock %s", l.Name)
	}
	return nil
}

// Extend pushes the expiry of a lock this owner still holds. It yields
// ErrLockHeld when the lock was lost.
func (l *Lock) Extend(ctx context.Context, ttl time.Duration) error {
	expires := l.c.now().Add(ttl)
	res, err := l.c.db.ExecContext(ctx, `UPDATE coord_locks SET expires_at = ? WHERE name = ? AND owner = ?`,
		millis(expires), l.Name, l.Owner)
	if err != nil {
		return errors.Wrapf(err, "extend lock %s", l.Name)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.Wrapf(errors.ErrLockHeld, "lock %s lost", l.Name)
	}
	l.ExpiresAt = expires
	return nil
}
