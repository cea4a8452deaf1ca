package notify

import (
	"context"

	rediscommon "flexi-posture/common/redis"
	"flexi-posture/internal/posture"

	"github.com/go-redis/redis/v8"
)

// StreamSink appends alerts to a Redis stream for downstream services
type StreamSink struct {
	redisClient *redis.Client
	stream      string
	deviceID    string
}

// NewStreamSink creates the sink
func NewStreamSink(redisClient *redis.Client, stream, deviceID string) *StreamSink {
	return &StreamSink{redisClient: redisClient, stream: stream, deviceID: deviceID}
}

func (s *StreamSink) Notify(ctx context.Context, alert posture.Alert) error {
	values := map[string]interface{}{
		"device_id":    s.deviceID,
		"kind":         alert.Kind,
		"title":        alert.Title,
		"body":         alert.Body,
		"score":        alert.Score,
		"status":       alert.Status.String(),
		"triggered_at": alert.TriggeredAt.UnixMilli(),
	}
	if alert.Kind == posture.AlertKindPoorPosture {
		values["reading_id"] = alert.ReadingID.String()
	}

	if _, err := rediscommon.PublishToStream(ctx, s.redisClient, s.stream, values); err != nil {
		return wrapErr("stream", err)
	}
	return nil
}
