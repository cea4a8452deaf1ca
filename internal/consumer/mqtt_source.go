package consumer

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"flexi-posture/common/mqtt"
	"flexi-posture/internal/posture"

	"go.uber.org/zap"
)

// ErrDeviceRequired returned when a wildcard topic filter has no device to filter on;
// samples from several watches would otherwise interleave in one engine
var ErrDeviceRequired = errors.New("device id required for a wildcard topic filter")

// Subscriber subset of the MQTT client used by MQTTSource
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topics ...string) error
}

// MQTTSource delivers orientation samples published on an MQTT topic filter.
// Samples arriving while the channel is full are dropped.
type MQTTSource struct {
	subscriber Subscriber
	topic      string
	qos        byte
	deviceID   string
	bufferSize int
	now        func() time.Time
	logger     *zap.Logger
}

// NewMQTTSource deviceID filters out samples from other devices; it may only be empty
// when topic names a single device
func NewMQTTSource(subscriber Subscriber, topic string, qos byte, deviceID string, logger *zap.Logger) *MQTTSource {
	return &MQTTSource{
		subscriber: subscriber,
		topic:      topic,
		qos:        qos,
		deviceID:   deviceID,
		bufferSize: 64,
		now:        time.Now,
		logger:     logger,
	}
}

// Subscribe registers the topic handler; the channel closes after ctx is done
func (s *MQTTSource) Subscribe(ctx context.Context) (<-chan posture.OrientationSample, error) {
	if s.deviceID == "" && isWildcardTopic(s.topic) {
		return nil, ErrDeviceRequired
	}

	out := make(chan posture.OrientationSample, s.bufferSize)

	var mu sync.Mutex
	closed := false

	handler := func(topic string, payload []byte) error {
		sample, deviceID, err := DecodeSample(payload, s.now)
		if err != nil {
			return err
		}
		if deviceID == "" {
			deviceID = DeviceFromTopic(topic)
		}
		if s.deviceID != "" && deviceID != s.deviceID {
			return nil
		}

		mu.Lock()
		defer mu.Unlock()
		if closed {
			return nil
		}
		select {
		case out <- sample:
		default:
			s.logger.Warn("Sample buffer full, dropping sample",
				zap.String("device_id", deviceID),
				zap.String("topic", topic),
			)
		}
		return nil
	}

	if err := s.subscriber.Subscribe(s.topic, s.qos, handler); err != nil {
		return nil, err
	}

	s.logger.Info("Subscribed to orientation topic",
		zap.String("topic", s.topic),
		zap.String("device_id", s.deviceID),
	)

	go func() {
		<-ctx.Done()
		if err := s.subscriber.Unsubscribe(s.topic); err != nil {
			s.logger.Warn("Failed to unsubscribe orientation topic", zap.String("topic", s.topic), zap.Error(err))
		}
		mu.Lock()
		closed = true
		close(out)
		mu.Unlock()
	}()

	return out, nil
}

func isWildcardTopic(topic string) bool {
	return strings.ContainsAny(topic, "+#")
}
