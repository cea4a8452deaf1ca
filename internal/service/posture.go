package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"flexi-posture/common/database"
	"flexi-posture/common/mqtt"
	rediscommon "flexi-posture/common/redis"
	"flexi-posture/internal/config"
	"flexi-posture/internal/consumer"
	"flexi-posture/internal/export"
	"flexi-posture/internal/models"
	"flexi-posture/internal/notify"
	"flexi-posture/internal/observability"
	"flexi-posture/internal/posture"
	"flexi-posture/internal/repository"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

type connectionChecker interface {
	IsConnected() bool
}

// PostureService wires the engine to its sample source, alert sinks, snapshot cache
// and reminders
type PostureService struct {
	config      *config.Config
	logger      *zap.Logger
	deviceID    string
	db          *sql.DB
	redisClient *redis.Client
	mqttClient  *mqtt.Client
	kafkaSink   *notify.KafkaSink
	broker      connectionChecker

	engine        *posture.Engine
	snapshotCache *consumer.SnapshotCache
	reminders     *Reminders
	alertsRepo    *repository.AlertEventsRepository

	stopOnce sync.Once
}

// NewPostureService connects Redis, and MQTT, Postgres and Kafka as configured
func NewPostureService(cfg *config.Config, logger *zap.Logger, reg prometheus.Registerer) (*PostureService, error) {
	s := &PostureService{
		config:   cfg,
		logger:   logger,
		deviceID: cfg.Posture.DeviceID,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	ctx := context.Background()

	// 1. Redis
	redisClient, err := rediscommon.Connect(ctx, &cfg.Redis, 5*time.Second)
	if err != nil {
		return nil, err
	}
	s.redisClient = redisClient

	// 2. MQTT, needed for the mqtt source and the watch alert topic
	if cfg.Posture.Source == config.SourceMQTT {
		client, err := mqtt.NewClient(&cfg.MQTT, logger)
		if err != nil {
			s.Stop()
			return nil, err
		}
		s.mqttClient = client
		s.broker = client
	}

	// 3. Postgres alert audit log
	if cfg.Posture.Alerts.RecorderEnabled {
		db, err := database.NewPostgresDB(&cfg.Database)
		if err != nil {
			s.Stop()
			return nil, err
		}
		s.db = db
		s.alertsRepo = repository.NewAlertEventsRepository(db, logger)
		if err := s.alertsRepo.EnsureSchema(ctx); err != nil {
			s.Stop()
			return nil, err
		}
	}

	// 4. Kafka
	if len(cfg.Kafka.Brokers) > 0 {
		s.kafkaSink = notify.NewKafkaSink(cfg.Kafka.Brokers, cfg.Kafka.Topic, s.deviceID)
	}

	// 5. engine
	var source posture.SampleSource
	switch cfg.Posture.Source {
	case config.SourceMQTT:
		source = consumer.NewMQTTSource(s.mqttClient, cfg.OrientationTopic(s.deviceID), cfg.MQTT.QoS, s.deviceID, logger)
	case config.SourceStream:
		source = consumer.NewStreamSource(
			s.redisClient,
			cfg.Posture.Streams.Samples,
			cfg.Posture.Streams.ConsumerGroup,
			cfg.Posture.Streams.ConsumerName,
			cfg.Posture.Streams.BatchSize,
			s.deviceID,
			logger,
		)
	}

	if err := s.assemble(source, s.buildDispatcher(), reg); err != nil {
		s.Stop()
		return nil, err
	}
	return s, nil
}

func (s *PostureService) buildDispatcher() posture.AlertDispatcher {
	sinks := notify.Multi{notify.LogSink{Logger: s.logger}}

	if s.mqttClient != nil && s.config.Posture.Topics.Alerts != "" {
		sinks = append(sinks, notify.NewMQTTSink(s.mqttClient, s.config.AlertTopic(s.deviceID), s.config.MQTT.QoS, s.deviceID))
	}
	if s.redisClient != nil && s.config.Posture.Streams.Alerts != "" {
		sinks = append(sinks, notify.NewStreamSink(s.redisClient, s.config.Posture.Streams.Alerts, s.deviceID))
	}
	if s.config.Webhook.URL != "" {
		sinks = append(sinks, notify.NewWebhookSink(&s.config.Webhook, s.deviceID, s.logger))
	}
	if s.kafkaSink != nil {
		sinks = append(sinks, s.kafkaSink)
	}
	if s.alertsRepo != nil {
		sinks = append(sinks, notify.NewRecorderSink(s.alertsRepo, s.deviceID))
	}

	s.logger.Info("Alert sinks configured", zap.Int("sink_count", len(sinks)))
	return notify.NewThrottle(sinks, s.config.Posture.Alerts.Cooldown, s.logger)
}

// assemble builds the engine and the components that read from it
func (s *PostureService) assemble(source posture.SampleSource, dispatcher posture.AlertDispatcher, reg prometheus.Registerer) error {
	opts := []posture.Option{posture.WithBufferCapacity(s.config.Posture.BufferCapacity)}
	if reg != nil {
		opts = append(opts, posture.WithObserver(observability.NewMetrics(reg)))
	}
	s.engine = posture.NewEngine(source, dispatcher, s.logger.With(zap.String("device_id", s.deviceID)), opts...)

	if s.redisClient != nil {
		s.snapshotCache = consumer.NewSnapshotCache(s.redisClient, s.config.Posture.Cache.SnapshotKeyPrefix, s.config.Posture.Cache.SnapshotTTL, s.logger)
	}

	if schedule := s.config.Posture.Alerts.ReminderSchedule; schedule != "" {
		reminders, err := NewReminders(schedule, s.engine, dispatcher, s.logger)
		if err != nil {
			return err
		}
		s.reminders = reminders
	}
	return nil
}

// Engine exposes the posture engine
func (s *PostureService) Engine() *posture.Engine {
	return s.engine
}

// Start begins tracking and blocks until ctx is done
func (s *PostureService) Start(ctx context.Context) error {
	s.logger.Info("Starting posture service",
		zap.String("device_id", s.deviceID),
		zap.String("source", s.config.Posture.Source),
	)

	if err := s.engine.StartContinuousTracking(ctx); err != nil {
		return fmt.Errorf("failed to start tracking: %w", err)
	}

	if s.snapshotCache != nil {
		go s.snapshotCache.Run(ctx, s.deviceID, s.config.Posture.Cache.Interval, s.engine.Snapshot)
	}
	if s.reminders != nil {
		s.reminders.Start()
	}

	<-ctx.Done()
	s.engine.StopTracking()
	return nil
}

// ExportReport renders the current snapshot as an .xlsx workbook
func (s *PostureService) ExportReport() ([]byte, error) {
	return export.WriteWorkbook(s.deviceID, s.engine.Snapshot(), time.Now())
}

// Health reports each configured dependency as "ok" or the failure; healthy is false
// when any of them failed
func (s *PostureService) Health(ctx context.Context) (checks map[string]string, healthy bool) {
	checks = make(map[string]string)
	healthy = true
	record := func(name string, err error) {
		if err != nil {
			checks[name] = err.Error()
			healthy = false
			return
		}
		checks[name] = "ok"
	}

	if s.redisClient != nil {
		record("redis", rediscommon.Ping(ctx, s.redisClient))
	}
	if s.broker != nil {
		var err error
		if !s.broker.IsConnected() {
			err = errors.New("not connected")
		}
		record("mqtt", err)
	}
	if s.db != nil {
		record("postgres", s.db.PingContext(ctx))
	}
	checks["tracking"] = strconv.FormatBool(s.engine.Tracking())
	return checks, healthy
}

// ErrRecorderDisabled returned by RecentAlerts when no audit log is configured
var ErrRecorderDisabled = errors.New("alert recorder disabled")

// RecentAlerts newest recorded alerts for this device
func (s *PostureService) RecentAlerts(ctx context.Context, kinds []string, limit int) ([]*models.PostureAlertEvent, error) {
	if s.alertsRepo == nil {
		return nil, ErrRecorderDisabled
	}
	return s.alertsRepo.ListAlertEvents(ctx, repository.AlertEventFilters{
		DeviceID: s.deviceID,
		Kinds:    kinds,
		Limit:    limit,
	})
}

// Stop stops tracking and releases connections. Safe to call more than once.
func (s *PostureService) Stop() error {
	s.stopOnce.Do(s.stop)
	return nil
}

func (s *PostureService) stop() {
	s.logger.Info("Stopping posture service")

	if s.engine != nil {
		s.engine.StopTracking()
	}
	if s.reminders != nil {
		s.reminders.Stop()
	}
	if s.kafkaSink != nil {
		if err := s.kafkaSink.Close(); err != nil {
			s.logger.Error("Failed to close kafka writer", zap.Error(err))
		}
	}
	if s.mqttClient != nil {
		s.mqttClient.Disconnect()
	}
	if err := database.Close(s.db); err != nil {
		s.logger.Error("Failed to close database", zap.Error(err))
	}
	if s.redisClient != nil {
		if err := rediscommon.Close(s.redisClient); err != nil {
			s.logger.Error("Failed to close redis", zap.Error(err))
		}
	}
}
