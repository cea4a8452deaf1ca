package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"flexi-posture/internal/posture"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// ErrSnapshotNotFound no cached snapshot for the device
var ErrSnapshotNotFound = errors.New("posture snapshot not found")

// SnapshotCache publishes the latest engine snapshot to Redis for dashboards
type SnapshotCache struct {
	redisClient *redis.Client
	keyPrefix   string
	ttl         time.Duration
	logger      *zap.Logger
}

// NewSnapshotCache keys are <keyPrefix><device>:snapshot
func NewSnapshotCache(redisClient *redis.Client, keyPrefix string, ttl time.Duration, logger *zap.Logger) *SnapshotCache {
	return &SnapshotCache{
		redisClient: redisClient,
		keyPrefix:   keyPrefix,
		ttl:         ttl,
		logger:      logger,
	}
}

// Key cache key for deviceID
func (c *SnapshotCache) Key(deviceID string) string {
	return fmt.Sprintf("%s%s:snapshot", c.keyPrefix, deviceID)
}

// Store writes snap with the configured TTL
func (c *SnapshotCache) Store(ctx context.Context, deviceID string, snap posture.Snapshot) error {
	jsonData, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	key := c.Key(deviceID)
	if err := c.redisClient.Set(ctx, key, jsonData, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set snapshot cache: %w", err)
	}

	c.logger.Debug("Updated snapshot cache",
		zap.String("device_id", deviceID),
		zap.String("key", key),
		zap.Float64("score", snap.CurrentScore),
	)
	return nil
}

// Load reads the cached snapshot
func (c *SnapshotCache) Load(ctx context.Context, deviceID string) (*posture.Snapshot, error) {
	val, err := c.redisClient.Get(ctx, c.Key(deviceID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: %s", ErrSnapshotNotFound, deviceID)
		}
		return nil, fmt.Errorf("failed to get snapshot cache: %w", err)
	}

	var snap posture.Snapshot
	if err := json.Unmarshal([]byte(val), &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return &snap, nil
}

// Run stores snapshot() every interval until ctx is done
func (c *SnapshotCache) Run(ctx context.Context, deviceID string, interval time.Duration, snapshot func() posture.Snapshot) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.Store(ctx, deviceID, snapshot()); err != nil && ctx.Err() == nil {
				c.logger.Error("Failed to store snapshot", zap.String("device_id", deviceID), zap.Error(err))
			}
		}
	}
}
