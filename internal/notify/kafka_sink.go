package notify

import (
	"context"
	"encoding/json"
	"time"

	"flexi-posture/internal/posture"

	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes alert events keyed by device id
type KafkaSink struct {
	writer   messageWriter
	deviceID string
}

// NewKafkaSink synchronous writer acknowledged by all replicas
func NewKafkaSink(brokers []string, topic, deviceID string) *KafkaSink {
	return &KafkaSink{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			Compression:  kafka.Snappy,
			Async:        false,
		},
		deviceID: deviceID,
	}
}

func (s *KafkaSink) Notify(ctx context.Context, alert posture.Alert) error {
	value, err := json.Marshal(alertMessage{DeviceID: s.deviceID, Alert: alert})
	if err != nil {
		return wrapErr("kafka", err)
	}

	msg := kafka.Message{
		Key:   []byte(s.deviceID),
		Value: value,
		Time:  time.Now().UTC(),
		Headers: []kafka.Header{
			{Key: "kind", Value: []byte(alert.Kind)},
		},
	}
	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		return wrapErr("kafka", err)
	}
	return nil
}

// Close flushes and releases the writer
func (s *KafkaSink) Close() error {
	return s.writer.Close()
}
