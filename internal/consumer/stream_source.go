package consumer

import (
	"context"
	"fmt"
	"time"

	rediscommon "flexi-posture/common/redis"
	"flexi-posture/internal/posture"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// StreamSource reads orientation samples from a Redis stream through a consumer group
type StreamSource struct {
	redisClient *redis.Client
	stream      string
	group       string
	consumer    string
	batchSize   int64
	block       time.Duration
	deviceID    string
	now         func() time.Time
	logger      *zap.Logger
}

// NewStreamSource creates a stream-backed sample source
func NewStreamSource(redisClient *redis.Client, stream, group, consumer string, batchSize int64, deviceID string, logger *zap.Logger) *StreamSource {
	if batchSize <= 0 {
		batchSize = 10
	}
	return &StreamSource{
		redisClient: redisClient,
		stream:      stream,
		group:       group,
		consumer:    consumer,
		batchSize:   batchSize,
		block:       time.Second,
		deviceID:    deviceID,
		now:         time.Now,
		logger:      logger,
	}
}

// Subscribe creates the consumer group and starts the read loop
func (s *StreamSource) Subscribe(ctx context.Context) (<-chan posture.OrientationSample, error) {
	if err := rediscommon.CreateConsumerGroup(ctx, s.redisClient, s.stream, s.group); err != nil {
		return nil, fmt.Errorf("failed to create consumer group for %s: %w", s.stream, err)
	}

	s.logger.Info("Stream source started",
		zap.String("stream", s.stream),
		zap.String("consumer_group", s.group),
		zap.String("consumer_name", s.consumer),
	)

	out := make(chan posture.OrientationSample)
	go s.loop(ctx, out)
	return out, nil
}

func (s *StreamSource) loop(ctx context.Context, out chan<- posture.OrientationSample) {
	defer close(out)

	backoff := time.Second
	maxBackoff := 30 * time.Second

	for {
		if ctx.Err() != nil {
			return
		}

		if err := s.consume(ctx, out); err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Error("Failed to consume sample stream",
				zap.String("stream", s.stream),
				zap.Duration("backoff", backoff),
				zap.Error(err),
			)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
				backoff *= 2
				if backoff > maxBackoff {
					backoff = maxBackoff
				}
			}
			continue
		}
		backoff = time.Second
	}
}

func (s *StreamSource) consume(ctx context.Context, out chan<- posture.OrientationSample) error {
	messages, err := rediscommon.ReadFromStream(ctx, s.redisClient, s.stream, s.group, s.consumer, s.batchSize, s.block)
	if err != nil {
		return fmt.Errorf("failed to read from stream %s: %w", s.stream, err)
	}

	for _, msg := range messages {
		sample, deviceID, err := decodeStreamValues(msg.Values, s.now)
		switch {
		case err != nil:
			s.logger.Error("Failed to decode sample",
				zap.String("stream", s.stream),
				zap.String("message_id", msg.ID),
				zap.Error(err),
			)
		case s.deviceID != "" && deviceID != "" && deviceID != s.deviceID:
			// other device: ack and skip
		default:
			select {
			case out <- sample:
			case <-ctx.Done():
				// left pending for redelivery
				return nil
			}
		}

		if err := rediscommon.AckMessages(ctx, s.redisClient, s.stream, s.group, msg.ID); err != nil {
			s.logger.Warn("Failed to ack message", zap.String("message_id", msg.ID), zap.Error(err))
		}
	}

	return nil
}
