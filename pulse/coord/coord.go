// Package coord provides the cross-process primitives that keep two workers
// off the same integration: bounded execution slots and TTL locks, both kept
// in the shared database so every worker process sees them.
//
// Acquisition never blocks. A held slot or lock yields ErrSlotUnavailable or
// ErrLockHeld and the caller defers the job. Expired entries are taken over,
// so a crashed holder frees its slot and lock after the TTL.
package coord

import (
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// GlobalSlotKey is the slot shared by every run in the fleet.
const GlobalSlotKey = "global"

// IntegrationKey is the slot key and lock name of one integration.
func IntegrationKey(integrationID int64) string {
	return fmt.Sprintf("integration:%d", integrationID)
}

// Coordinator hands out slots and locks backed by the coord_* tables.
type Coordinator struct {
	db     *sql.DB
	now    func() time.Time
	logger *zap.SugaredLogger
}

// New creates a coordinator.
func New(db *sql.DB, logger *zap.SugaredLogger) *Coordinator {
	return &Coordinator{
		db:     db,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger,
	}
}

// WithClock replaces the time source (tests).
func (c *Coordinator) WithClock(now func() time.Time) *Coordinator {
	c.now = now
	return c
}

func millis(t time.Time) int64 {
	return t.UnixMilli()
}
