package notify

import (
	"context"
	"encoding/json"

	"flexi-posture/internal/posture"
)

// Publisher subset of the MQTT client used by MQTTSink
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
}

// MQTTSink publishes alerts on the device's alert topic for the watch app
type MQTTSink struct {
	publisher Publisher
	topic     string
	qos       byte
	deviceID  string
}

// NewMQTTSink creates the sink
func NewMQTTSink(publisher Publisher, topic string, qos byte, deviceID string) *MQTTSink {
	return &MQTTSink{publisher: publisher, topic: topic, qos: qos, deviceID: deviceID}
}

func (s *MQTTSink) Notify(_ context.Context, alert posture.Alert) error {
	payload, err := json.Marshal(alertMessage{DeviceID: s.deviceID, Alert: alert})
	if err != nil {
		return wrapErr("mqtt", err)
	}
	if err := s.publisher.Publish(s.topic, s.qos, false, payload); err != nil {
		return wrapErr("mqtt", err)
	}
	return nil
}
