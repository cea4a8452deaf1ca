package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, SourceMQTT, cfg.Posture.Source)
	assert.Equal(t, "default", cfg.Posture.DeviceID)
	assert.Equal(t, "flexi/default/orientation", cfg.OrientationTopic(cfg.Posture.DeviceID))
	assert.Equal(t, "posture:samples", cfg.Posture.Streams.Samples)
	assert.Equal(t, 100, cfg.Posture.BufferCapacity)
	assert.Equal(t, 5*time.Minute, cfg.Posture.Alerts.Cooldown)
	assert.Equal(t, "0 */30 * * * *", cfg.Posture.Alerts.ReminderSchedule)
	assert.False(t, cfg.Posture.Alerts.RecorderEnabled)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "posture.alerts", cfg.Kafka.Topic)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("SOURCE", "STREAM")
	t.Setenv("DEVICE_ID", "watch-7")
	t.Setenv("ALERT_COOLDOWN", "90s")
	t.Setenv("ALERT_RECORDER_ENABLED", "true")
	t.Setenv("SNAPSHOT_TTL", "2m")
	t.Setenv("POSTURE_BUFFER_CAPACITY", "25")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("DB_PORT", "6543")
	t.Setenv("MQTT_QOS", "0")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, SourceStream, cfg.Posture.Source)
	assert.Equal(t, "watch-7", cfg.Posture.DeviceID)
	assert.Equal(t, 90*time.Second, cfg.Posture.Alerts.Cooldown)
	assert.True(t, cfg.Posture.Alerts.RecorderEnabled)
	assert.Equal(t, 2*time.Minute, cfg.Posture.Cache.SnapshotTTL)
	assert.Equal(t, 25, cfg.Posture.BufferCapacity)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 6543, cfg.Database.Port)
	assert.Equal(t, byte(0), cfg.MQTT.QoS)
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("ALERT_COOLDOWN", "soon")
	t.Setenv("POSTURE_BUFFER_CAPACITY", "many")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, cfg.Posture.Alerts.Cooldown)
	assert.Equal(t, 100, cfg.Posture.BufferCapacity)
}

func TestLoad_RejectsUnknownSource(t *testing.T) {
	t.Setenv("SOURCE", "bluetooth")

	_, err := Load()
	assert.Error(t, err)
}

func TestConfig_AlertTopic(t *testing.T) {
	cfg := &Config{}
	cfg.Posture.Topics.Alerts = "flexi/{device}/alerts"
	assert.Equal(t, "flexi/watch-7/alerts", cfg.AlertTopic("watch-7"))
}

func TestConfig_OrientationTopic(t *testing.T) {
	cfg := &Config{}
	cfg.Posture.Topics.Orientation = "flexi/{device}/orientation"
	assert.Equal(t, "flexi/watch-7/orientation", cfg.OrientationTopic("watch-7"))

	cfg.Posture.Topics.Orientation = "flexi/+/orientation"
	assert.Equal(t, "flexi/+/orientation", cfg.OrientationTopic("watch-7"))
}

func TestConfig_ValidateDeviceID(t *testing.T) {
	tests := []struct {
		name     string
		deviceID string
		wantErr  bool
	}{
		{"set", "watch-7", false},
		{"empty", "", true},
		{"single-level wildcard", "+", true},
		{"multi-level wildcard", "#", true},
		{"topic separator", "a/b", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			cfg.Posture.Source = SourceMQTT
			cfg.Posture.Cache.Interval = time.Second
			cfg.Posture.DeviceID = tt.deviceID

			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
