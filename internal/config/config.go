package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"flexi-posture/common/config"

	"github.com/joho/godotenv"
)

// Source kinds for orientation samples
const (
	SourceMQTT   = "mqtt"
	SourceStream = "stream"
)

// Config posture engine service settings
type Config struct {
	Database config.DatabaseConfig
	Redis    config.RedisConfig
	MQTT     config.MQTTConfig
	Kafka    config.KafkaConfig
	Webhook  config.WebhookConfig

	Posture struct {
		DeviceID       string
		Source         string // mqtt | stream
		BufferCapacity int

		Topics struct {
			Orientation string // subscribe filter, e.g. "flexi/+/orientation"
			Alerts      string // publish topic, "{device}" is replaced with the device id
		}

		Streams struct {
			Samples       string
			ConsumerGroup string
			ConsumerName  string
			Alerts        string
			BatchSize     int64
		}

		Cache struct {
			SnapshotKeyPrefix string // e.g. "flexi:posture:"
			SnapshotTTL       time.Duration
			Interval          time.Duration
		}

		Alerts struct {
			Cooldown         time.Duration
			RecorderEnabled  bool
			ReminderSchedule string // cron expression with seconds, empty disables reminders
		}
	}

	Metrics struct {
		Addr string
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load reads .env when present, then the environment
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = 5432
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "flexi")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxConns = 10
	cfg.Database.MaxIdle = 2
	cfg.Database.LoadFromEnv("DB")

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = 0
	cfg.Redis.LoadFromEnv("REDIS")

	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "tcp://localhost:1883")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "flexi-posture-engine")
	cfg.MQTT.QoS = 1
	cfg.MQTT.LoadFromEnv("MQTT")

	cfg.Kafka.Topic = "posture.alerts"
	cfg.Kafka.LoadFromEnv("KAFKA")

	cfg.Webhook.Timeout = 5 * time.Second
	cfg.Webhook.RetryCount = 3
	cfg.Webhook.LoadFromEnv("WEBHOOK")

	p := &cfg.Posture
	p.DeviceID = getEnv("DEVICE_ID", "default")
	p.Source = strings.ToLower(getEnv("SOURCE", SourceMQTT))
	p.BufferCapacity = getEnvInt("POSTURE_BUFFER_CAPACITY", 100)

	p.Topics.Orientation = getEnv("POSTURE_TOPIC_ORIENTATION", "flexi/{device}/orientation")
	p.Topics.Alerts = getEnv("POSTURE_TOPIC_ALERTS", "flexi/{device}/alerts")

	p.Streams.Samples = getEnv("POSTURE_STREAM_SAMPLES", "posture:samples")
	p.Streams.ConsumerGroup = getEnv("POSTURE_CONSUMER_GROUP", "posture-engine-group")
	p.Streams.ConsumerName = getEnv("POSTURE_CONSUMER_NAME", "posture-engine-1")
	p.Streams.Alerts = getEnv("POSTURE_STREAM_ALERTS", "posture:alerts")
	p.Streams.BatchSize = int64(getEnvInt("POSTURE_STREAM_BATCH", 10))

	p.Cache.SnapshotKeyPrefix = getEnv("CACHE_SNAPSHOT_PREFIX", "flexi:posture:")
	p.Cache.SnapshotTTL = getEnvDuration("SNAPSHOT_TTL", 60*time.Second)
	p.Cache.Interval = getEnvDuration("SNAPSHOT_INTERVAL", 5*time.Second)

	p.Alerts.Cooldown = getEnvDuration("ALERT_COOLDOWN", 5*time.Minute)
	p.Alerts.RecorderEnabled = getEnvBool("ALERT_RECORDER_ENABLED", false)
	p.Alerts.ReminderSchedule = getEnv("REMINDER_SCHEDULE", "0 */30 * * * *")

	cfg.Metrics.Addr = getEnv("METRICS_ADDR", ":9102")

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings that have no usable default
func (c *Config) Validate() error {
	switch c.Posture.Source {
	case SourceMQTT, SourceStream:
	default:
		return fmt.Errorf("invalid SOURCE %q: want %q or %q", c.Posture.Source, SourceMQTT, SourceStream)
	}
	// one engine tracks one watch; the id also fills MQTT topic placeholders
	if c.Posture.DeviceID == "" {
		return fmt.Errorf("DEVICE_ID is required")
	}
	if strings.ContainsAny(c.Posture.DeviceID, "+#/") {
		return fmt.Errorf("invalid DEVICE_ID %q: must not contain MQTT topic separators or wildcards", c.Posture.DeviceID)
	}
	if c.Posture.Cache.Interval <= 0 {
		return fmt.Errorf("SNAPSHOT_INTERVAL must be positive, got %s", c.Posture.Cache.Interval)
	}
	return nil
}

// OrientationTopic subscribe filter for deviceID
func (c *Config) OrientationTopic(deviceID string) string {
	return strings.ReplaceAll(c.Posture.Topics.Orientation, "{device}", deviceID)
}

// AlertTopic publish topic for deviceID
func (c *Config) AlertTopic(deviceID string) string {
	return strings.ReplaceAll(c.Posture.Topics.Alerts, "{device}", deviceID)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
