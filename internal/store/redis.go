package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/itanishqshelar/milesconnect-demo/internal/fleet"
)

// SnapshotCache keeps the latest simulated fix per vehicle in Redis so
// tracking pages read positions without touching Postgres. Entries carry a
// TTL, so a crashed simulator leaves no stale markers behind.
type SnapshotCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewSnapshotCache(rdb *redis.Client, ttl time.Duration) *SnapshotCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &SnapshotCache{rdb: rdb, ttl: ttl}
}

func snapshotKey(vehicleID string) string { return "fleet:position:" + vehicleID }

func (c *SnapshotCache) SetPosition(ctx context.Context, snap fleet.PositionSnapshot) error {
	b, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, snapshotKey(snap.VehicleID), b, c.ttl).Err()
}

func (c *SnapshotCache) DeletePosition(ctx context.Context, vehicleID string) error {
	return c.rdb.Del(ctx, snapshotKey(vehicleID)).Err()
}

// GetPosition returns the cached fix for a vehicle, or nil on a cache miss.
func (c *SnapshotCache) GetPosition(ctx context.Context, vehicleID string) (*fleet.PositionSnapshot, error) {
	b, err := c.rdb.Get(ctx, snapshotKey(vehicleID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var snap fleet.PositionSnapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &snap, nil
}

func (c *SnapshotCache) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return c.rdb.Ping(ctx).Err()
}

func (c *SnapshotCache) Close() error { return c.rdb.Close() }
