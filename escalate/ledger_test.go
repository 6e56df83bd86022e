package escalate

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisLedger(t *testing.T) *RedisLedger {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisLedger(client)
}

func TestMemoryLedger_MarkAndQuery(t *testing.T) {
	ledger, err := NewMemoryLedger(16)
	require.NoError(t, err)
	ctx := context.Background()

	notified, err := ledger.Notified(ctx, "alert-1", "critical")
	require.NoError(t, err)
	assert.False(t, notified)

	require.NoError(t, ledger.MarkNotified(ctx, "alert-1", "critical"))

	notified, err = ledger.Notified(ctx, "alert-1", "critical")
	require.NoError(t, err)
	assert.True(t, notified)

	// Tiers are independent per alert.
	notified, err = ledger.Notified(ctx, "alert-1", "high")
	require.NoError(t, err)
	assert.False(t, notified)
}

func TestMemoryLedger_Forget(t *testing.T) {
	ledger, err := NewMemoryLedger(16)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, ledger.MarkNotified(ctx, "alert-1", "critical"))
	require.NoError(t, ledger.Forget(ctx, "alert-1"))

	notified, err := ledger.Notified(ctx, "alert-1", "critical")
	require.NoError(t, err)
	assert.False(t, notified)
	assert.Equal(t, 0, ledger.Len())
}

func TestMemoryLedger_BoundedByCapacity(t *testing.T) {
	ledger, err := NewMemoryLedger(2)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, ledger.MarkNotified(ctx, "alert-1", "critical"))
	require.NoError(t, ledger.MarkNotified(ctx, "alert-2", "critical"))
	require.NoError(t, ledger.MarkNotified(ctx, "alert-3", "critical"))

	assert.Equal(t, 2, ledger.Len(), "oldest entry evicted")
	notified, err := ledger.Notified(ctx, "alert-1", "critical")
	require.NoError(t, err)
	assert.False(t, notified)
}

func TestRedisLedger_MarkAndQuery(t *testing.T) {
	ledger := newRedisLedger(t)
	ctx := context.Background()

	notified, err := ledger.Notified(ctx, "alert-1", "critical")
	require.NoError(t, err)
	assert.False(t, notified)

	require.NoError(t, ledger.MarkNotified(ctx, "alert-1", "critical"))

	notified, err = ledger.Notified(ctx, "alert-1", "critical")
	require.NoError(t, err)
	assert.True(t, notified)

	notified, err = ledger.Notified(ctx, "alert-1", "high")
	require.NoError(t, err)
	assert.False(t, notified)
}

func TestRedisLedger_Forget(t *testing.T) {
	ledger := newRedisLedger(t)
	ctx := context.Background()

	require.NoError(t, ledger.MarkNotified(ctx, "alert-1", "critical"))
	require.NoError(t, ledger.MarkNotified(ctx, "alert-1", "high"))
	require.NoError(t, ledger.Forget(ctx, "alert-1"))

	for _, tier := range []string{"critical", "high"} {
		notified, err := ledger.Notified(ctx, "alert-1", tier)
		require.NoError(t, err)
		assert.False(t, notified)
	}
}

func TestRedisLedger_SharedAcrossInstances(t *testing.T) {
	mr := miniredis.RunT(t)
	clientA := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	clientB := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = clientA.Close()
		_ = clientB.Close()
	})

	ctx := context.Background()
	first := NewRedisLedger(clientA)
	second := NewRedisLedger(clientB)

	require.NoError(t, first.MarkNotified(ctx, "alert-1", "critical"))

	notified, err := second.Notified(ctx, "alert-1", "critical")
	require.NoError(t, err)
	assert.True(t, notified, "a second engine instance sees the escalation")
}
