package redisclient

import (
	"context"
	"os"
	"testing"
	"time"

	"export-import-service/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeys(t *testing.T) {
	assert.Equal(t, "dashboard:a@example.com", dashboardKey("a@example.com"))
	assert.Equal(t, "dashboard:version:a@example.com", dashboardVersionKey("a@example.com"))
	assert.Equal(t, "idempotency:import:k1", idempotencyKey("k1"))
}

func newTestClient(t *testing.T) *Client {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	c, err := NewClient(addr, "", 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestDashboardCacheRoundTrip(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	identity := uuid.New().String() + "@example.com"

	_, version, found, err := c.GetDashboard(ctx, identity)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, int64(0), version)

	dash := &models.Dashboard{Stats: models.DashboardStats{Imports: 1, Exports: 2, Balance: 40}}
	require.NoError(t, c.SetDashboard(ctx, identity, version, dash, time.Minute))

	cached, _, found, err := c.GetDashboard(ctx, identity)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 40.0, cached.Stats.Balance)

	require.NoError(t, c.InvalidateDashboard(ctx, identity))
	_, version, found, err = c.GetDashboard(ctx, identity)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, int64(1), version)
}

func TestStaleDashboardWriteIsNotServed(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	identity := uuid.New().String() + "@example.com"

	_, before, _, err := c.GetDashboard(ctx, identity)
	require.NoError(t, err)

	// An import lands while the dashboard is being computed.
	require.NoError(t, c.InvalidateDashboard(ctx, identity))
	stale := &models.Dashboard{Stats: models.DashboardStats{Balance: 1}}
	require.NoError(t, c.SetDashboard(ctx, identity, before, stale, time.Minute))

	_, _, found, err := c.GetDashboard(ctx, identity)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestIdempotencyClaimLifecycle(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	key := uuid.New().String()

	claimed, err := c.ClaimIdempotencyKey(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = c.ClaimIdempotencyKey(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.False(t, claimed)

	_, pending, err := c.GetImportReceipt(ctx, key)
	require.NoError(t, err)
	assert.True(t, pending)

	require.NoError(t, c.StoreImportReceipt(ctx, key, &models.ImportReceipt{Success: true, ImportID: "imp-1"}, time.Minute))
	receipt, pending, err := c.GetImportReceipt(ctx, key)
	require.NoError(t, err)
	assert.False(t, pending)
	assert.Equal(t, "imp-1", receipt.ImportID)

	require.NoError(t, c.ReleaseIdempotencyKey(ctx, key))
}
