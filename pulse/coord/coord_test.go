package coord

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/matheusluizig/imovelguide-integracao-sub000/errors"
	igtest "github.com/matheusluizig/imovelguide-integracao-sub000/internal/testing"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func setup(t *testing.T) (*Coordinator, *clock) {
	t.Helper()
	clk := &clock{t: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
	c := New(igtest.CreateMigratedDB(t), zaptest.NewLogger(t).Sugar()).WithClock(clk.Now)
	return c, clk
}

func TestLockIsExclusiveUntilReleased(t *testing.T) {
	c, _ := setup(t)
	ctx := testContext(t)
	name := IntegrationKey(42)
	assert.Equal(t, "integration:42", name)

	first, err := c.AcquireLock(ctx, name, time.Hour)
	require.NoError(t, err)

	_, err = c.AcquireLock(ctx, name, time.Hour)
	assert.ErrorIs(t, err, errors.ErrLockHeld)
	assert.True(t, errors.IsCoordinationError(err))

	require.NoError(t, first.Release(ctx))
	second, err := c.AcquireLock(ctx, name, time.Hour)
	require.NoError(t, err)
	assert.NotEqual(t, first.Owner, second.Owner)
}

func TestExpiredLockIsTakenOver(t *testing.T) {
	c, clk := setup(t)
	ctx := testContext(t)

	stale, err := c.AcquireLock(ctx, "integration:1", time.Hour)
	require.NoError(t, err)

	clk.Advance(time.Hour)
	fresh, err := c.AcquireLock(ctx, "integration:1", time.Hour)
	require.NoError(t, err)

	// The stale owner's release must not free the new owner's lock.
	require.NoError(t, stale.Release(ctx))
	_, err = c.AcquireLock(ctx, "integration:1", time.Hour)
	assert.ErrorIs(t, err, errors.ErrLockHeld)

	assert.ErrorIs(t, stale.Extend(ctx, time.Hour), errors.ErrLockHeld)
	require.NoError(t, fresh.Extend(ctx, 2*time.Hour))
	assert.Equal(t, clk.Now().Add(2*time.Hour), fresh.ExpiresAt)
}

func TestSlotLimit(t *testing.T) {
	c, _ := setup(t)
	ctx := testContext(t)

	a, err := c.AcquireSlot(ctx, GlobalSlotKey, 2, time.Hour)
	require.NoError(t, err)
	_, err = c.AcquireSlot(ctx, GlobalSlotKey, 2, time.Hour)
	require.NoError(t, err)

	_, err = c.AcquireSlot(ctx, GlobalSlotKey, 2, time.Hour)
	assert.ErrorIs(t, err, errors.ErrSlotUnavailable)

	n, err := c.InUse(ctx, GlobalSlotKey)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, a.Release(ctx))
	_, err = c.AcquireSlot(ctx, GlobalSlotKey, 2, time.Hour)
	assert.NoError(t, err)

	_, err = c.AcquireSlot(ctx, GlobalSlotKey, 0, time.Hour)
	assert.ErrorIs(t, err, errors.ErrInvalidRequest)
}

func TestExpiredSlotIsReclaimed(t *testing.T) {
	c, clk := setup(t)
	ctx := testContext(t)
	key := IntegrationKey(7)

	_, err := c.AcquireSlot(ctx, key, 1, 30*time.Minute)
	require.NoError(t, err)
	_, err = c.AcquireSlot(ctx, key, 1, 30*time.Minute)
	assert.ErrorIs(t, err, errors.ErrSlotUnavailable)

	clk.Advance(31 * time.Minute)
	_, err = c.AcquireSlot(ctx, key, 1, 30*time.Minute)
	assert.NoError(t, err)
}

func TestConcurrentSlotAcquisition(t *testing.T) {
	c, _ := setup(t)
	ctx := testContext(t)
	key := IntegrationKey(9)

	var won, lost atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.AcquireSlot(ctx, key, 1, time.Hour)
			switch {
			case err == nil:
				won.Add(1)
			case errors.Is(err, errors.ErrSlotUnavailable):
				lost.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), won.Load())
	assert.Equal(t, int32(9), lost.Load())
}
