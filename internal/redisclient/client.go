package redisclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"export-import-service/internal/models"

	"github.com/go-redis/redis/v8"
)

const idempotencyPending = "pending"

type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client and checks the connection
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

func dashboardKey(identity string) string {
	return fmt.Sprintf("dashboard:%s", identity)
}

func dashboardVersionKey(identity string) string {
	return fmt.Sprintf("dashboard:version:%s", identity)
}

func idempotencyKey(key string) string {
	return fmt.Sprintf("idempotency:import:%s", key)
}

// dashboardVersionTTL keeps the version counter well past any cached entry,
// so a reset counter can never match a stale entry.
const dashboardVersionTTL = 7 * 24 * time.Hour

// dashboardEntry is a cached dashboard stamped with the version it was computed under
type dashboardEntry struct {
	Version   int64             `json:"version"`
	Dashboard *models.Dashboard `json:"dashboard"`
}

// GetDashboard returns the cached dashboard of identity and the current cache
// version. An entry stamped with an older version is a miss.
func (c *Client) GetDashboard(ctx context.Context, identity string) (*models.Dashboard, int64, bool, error) {
	vals, err := c.rdb.MGet(ctx, dashboardKey(identity), dashboardVersionKey(identity)).Result()
	if err != nil {
		return nil, 0, false, fmt.Errorf("get cached dashboard: %w", err)
	}

	var version int64
	if raw, ok := vals[1].(string); ok {
		if version, err = strconv.ParseInt(raw, 10, 64); err != nil {
			return nil, 0, false, fmt.Errorf("parse dashboard version: %w", err)
		}
	}

	raw, ok := vals[0].(string)
	if !ok {
		return nil, version, false, nil
	}

	var entry dashboardEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil || entry.Dashboard == nil {
		// A corrupt entry is treated as a miss and dropped.
		_ = c.rdb.Del(ctx, dashboardKey(identity)).Err()
		return nil, version, false, nil
	}
	if entry.Version != version {
		return nil, version, false, nil
	}
	return entry.Dashboard, version, true, nil
}

// SetDashboard caches the dashboard of identity for ttl, stamped with the
// version read before it was computed
func (c *Client) SetDashboard(ctx context.Context, identity string, version int64, dash *models.Dashboard, ttl time.Duration) error {
	raw, err := json.Marshal(dashboardEntry{Version: version, Dashboard: dash})
	if err != nil {
		return fmt.Errorf("marshal dashboard: %w", err)
	}
	return c.rdb.Set(ctx, dashboardKey(identity), raw, ttl).Err()
}

// InvalidateDashboard bumps the version of identity and drops its cached
// dashboard. A computation that started before the bump can no longer be served.
func (c *Client) InvalidateDashboard(ctx context.Context, identity string) error {
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, dashboardVersionKey(identity))
		pipe.Expire(ctx, dashboardVersionKey(identity), dashboardVersionTTL)
		pipe.Del(ctx, dashboardKey(identity))
		return nil
	})
	if err != nil {
		return fmt.Errorf("invalidate dashboard: %w", err)
	}
	return nil
}

// ClaimIdempotencyKey marks key as in flight. It returns false when the key
// was already claimed or completed.
func (c *Client) ClaimIdempotencyKey(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, idempotencyKey(key), idempotencyPending, ttl).Result()
}

// GetImportReceipt returns the receipt stored under key. pending is true when
// the key is claimed but the import has not completed yet.
func (c *Client) GetImportReceipt(ctx context.Context, key string) (receipt *models.ImportReceipt, pending bool, err error) {
	raw, err := c.rdb.Get(ctx, idempotencyKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get idempotency key: %w", err)
	}
	if raw == idempotencyPending {
		return nil, true, nil
	}

	var r models.ImportReceipt
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return nil, false, fmt.Errorf("decode import receipt: %w", err)
	}
	return &r, false, nil
}

// StoreImportReceipt replaces the claim on key with the completed receipt
func (c *Client) StoreImportReceipt(ctx context.Context, key string, receipt *models.ImportReceipt, ttl time.Duration) error {
	raw, err := json.Marshal(receipt)
	if err != nil {
		return fmt.Errorf("marshal import receipt: %w", err)
	}
	return c.rdb.Set(ctx, idempotencyKey(key), raw, ttl).Err()
}

// ReleaseIdempotencyKey removes a claim so the request can be retried
func (c *Client) ReleaseIdempotencyKey(ctx context.Context, key string) error {
	return c.rdb.Del(ctx, idempotencyKey(key)).Err()
}
