package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/epaproditus/geo-profile-dashboard/internal/models"
	"github.com/redis/go-redis/v9"
)

const deviceListKey = "simplemdm:devices"

// DeviceCache keeps the SimpleMDM device list in redis for a short TTL so the
// dashboard map and back-to-back executor runs don't refetch it every time.
// All failures degrade to a cache miss; redis being down never breaks a run.
type DeviceCache struct {
	rdb *redis.Client
	ttl time.Duration
	log *slog.Logger
}

// New returns a DeviceCache against the given redis address.
func New(addr string, ttl time.Duration, log *slog.Logger) *DeviceCache {
	return &DeviceCache{
		rdb: redis.NewClient(&redis.Options{Addr: addr}),
		ttl: ttl,
		log: log,
	}
}

// Get returns the cached device list, or ok=false on miss or error.
func (c *DeviceCache) Get(ctx context.Context) ([]models.Device, bool) {
	data, err := c.rdb.Get(ctx, deviceListKey).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		c.log.Warn("device cache get failed", "err", err)
		return nil, false
	}
	var devices []models.Device
	if err := json.Unmarshal(data, &devices); err != nil {
		c.log.Warn("device cache decode failed", "err", err)
		return nil, false
	}
	return devices, true
}

// Set stores the device list for the configured TTL.
func (c *DeviceCache) Set(ctx context.Context, devices []models.Device) {
	data, err := json.Marshal(devices)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, deviceListKey, data, c.ttl).Err(); err != nil {
		c.log.Warn("device cache set failed", "err", err)
	}
}

// Invalidate drops the cached list (call after anything that changes enrollment).
func (c *DeviceCache) Invalidate(ctx context.Context) {
	if err := c.rdb.Del(ctx, deviceListKey).Err(); err != nil {
		c.log.Warn("device cache invalidate failed", "err", err)
	}
}
