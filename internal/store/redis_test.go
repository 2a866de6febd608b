package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/itanishqshelar/milesconnect-demo/internal/fleet"
)

func testCache(t *testing.T, ttl time.Duration) (*SnapshotCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewSnapshotCache(rdb, ttl), mr
}

func TestSnapshotCacheRoundTrip(t *testing.T) {
	cache, _ := testCache(t, time.Minute)
	ctx := context.Background()

	at := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	snap := fleet.PositionSnapshot{
		VehicleID:  "v1",
		ShipmentID: "s1",
		Lon:        73.8567,
		Lat:        18.5204,
		BearingDeg: 271.5,
		RouteIndex: 42,
		Progress:   0.42,
		ETA:        at.Add(10 * time.Minute),
		UpdatedAt:  at,
	}
	if err := cache.SetPosition(ctx, snap); err != nil {
		t.Fatalf("SetPosition: %v", err)
	}

	got, err := cache.GetPosition(ctx, "v1")
	if err != nil {
		t.Fatalf("GetPosition: %v", err)
	}
	if got == nil {
		t.Fatal("GetPosition returned nil for a cached vehicle")
	}
	if got.VehicleID != snap.VehicleID || got.ShipmentID != snap.ShipmentID ||
		got.Lon != snap.Lon || got.Lat != snap.Lat ||
		got.BearingDeg != snap.BearingDeg || got.RouteIndex != snap.RouteIndex ||
		got.Progress != snap.Progress {
		t.Errorf("got %+v, want %+v", got, snap)
	}
	if !got.ETA.Equal(snap.ETA) || !got.UpdatedAt.Equal(snap.UpdatedAt) {
		t.Errorf("timestamps = %v / %v, want %v / %v", got.ETA, got.UpdatedAt, snap.ETA, snap.UpdatedAt)
	}
}

func TestSnapshotCacheMissReturnsNil(t *testing.T) {
	cache, _ := testCache(t, time.Minute)

	got, err := cache.GetPosition(context.Background(), "ghost")
	if err != nil {
		t.Fatalf("GetPosition: %v", err)
	}
	if got != nil {
		t.Errorf("got %+v, want nil on a miss", got)
	}
}

func TestSnapshotCacheAppliesTTL(t *testing.T) {
	cache, mr := testCache(t, 30*time.Second)
	ctx := context.Background()

	if err := cache.SetPosition(ctx, fleet.PositionSnapshot{VehicleID: "v1"}); err != nil {
		t.Fatalf("SetPosition: %v", err)
	}
	if ttl := mr.TTL("fleet:position:v1"); ttl != 30*time.Second {
		t.Errorf("ttl = %v, want 30s", ttl)
	}

	// Entries vanish once the TTL elapses.
	mr.FastForward(31 * time.Second)
	got, err := cache.GetPosition(ctx, "v1")
	if err != nil {
		t.Fatalf("GetPosition after expiry: %v", err)
	}
	if got != nil {
		t.Errorf("got %+v after expiry, want nil", got)
	}
}

func TestSnapshotCacheDefaultTTL(t *testing.T) {
	cache, mr := testCache(t, 0)

	if err := cache.SetPosition(context.Background(), fleet.PositionSnapshot{VehicleID: "v1"}); err != nil {
		t.Fatalf("SetPosition: %v", err)
	}
	if ttl := mr.TTL("fleet:position:v1"); ttl != time.Minute {
		t.Errorf("ttl = %v, want the 1m default", ttl)
	}
}

func TestSnapshotCacheDelete(t *testing.T) {
	cache, _ := testCache(t, time.Minute)
	ctx := context.Background()

	if err := cache.SetPosition(ctx, fleet.PositionSnapshot{VehicleID: "v1"}); err != nil {
		t.Fatalf("SetPosition: %v", err)
	}
	if err := cache.DeletePosition(ctx, "v1"); err != nil {
		t.Fatalf("DeletePosition: %v", err)
	}
	got, err := cache.GetPosition(ctx, "v1")
	if err != nil {
		t.Fatalf("GetPosition: %v", err)
	}
	if got != nil {
		t.Errorf("got %+v after delete, want nil", got)
	}

	// Deleting an absent key is not an error.
	if err := cache.DeletePosition(ctx, "v1"); err != nil {
		t.Errorf("DeletePosition on absent key: %v", err)
	}
}

func TestSnapshotCacheCorruptEntry(t *testing.T) {
	cache, mr := testCache(t, time.Minute)
	if err := mr.Set("fleet:position:v1", "{not json"); err != nil {
		t.Fatalf("seed corrupt entry: %v", err)
	}

	if _, err := cache.GetPosition(context.Background(), "v1"); err == nil {
		t.Fatal("GetPosition decoded a corrupt entry without error")
	}
}
