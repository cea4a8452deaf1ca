package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"flexi-posture/internal/models"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

const createAlertEventsTable = `
	CREATE TABLE IF NOT EXISTS posture_alert_events (
		event_id     UUID PRIMARY KEY,
		device_id    TEXT NOT NULL,
		kind         TEXT NOT NULL,
		title        TEXT NOT NULL,
		body         TEXT NOT NULL,
		score        DOUBLE PRECISION NOT NULL,
		status       TEXT NOT NULL,
		reading_id   UUID,
		triggered_at TIMESTAMPTZ NOT NULL,
		metadata     JSONB,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS idx_posture_alert_events_device_time
		ON posture_alert_events (device_id, triggered_at DESC);`

// AlertEventsRepository posture alert audit log
type AlertEventsRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAlertEventsRepository creates the repository
func NewAlertEventsRepository(db *sql.DB, logger *zap.Logger) *AlertEventsRepository {
	return &AlertEventsRepository{
		db:     db,
		logger: logger,
	}
}

// AlertEventFilters list filters; nil or empty fields are ignored
type AlertEventFilters struct {
	DeviceID  string
	Kinds     []string
	StartTime *time.Time // triggered_at >= StartTime
	EndTime   *time.Time // triggered_at <= EndTime
	Limit     int
}

// EnsureSchema creates the table and index when missing
func (r *AlertEventsRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createAlertEventsTable); err != nil {
		return fmt.Errorf("failed to create posture_alert_events: %w", err)
	}
	return nil
}

// CreateAlertEvent inserts event
func (r *AlertEventsRepository) CreateAlertEvent(ctx context.Context, event *models.PostureAlertEvent) error {
	if event.EventID == "" {
		return fmt.Errorf("event_id is required")
	}
	if event.DeviceID == "" {
		return fmt.Errorf("device_id is required")
	}

	var metadata interface{}
	if len(event.Metadata) > 0 {
		metadata = []byte(event.Metadata)
	}

	query := `
		INSERT INTO posture_alert_events (
			event_id, device_id, kind, title, body, score, status, reading_id, triggered_at, metadata
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at`

	err := r.db.QueryRowContext(ctx, query,
		event.EventID,
		event.DeviceID,
		event.Kind,
		event.Title,
		event.Body,
		event.Score,
		event.Status,
		event.ReadingID,
		event.TriggeredAt,
		metadata,
	).Scan(&event.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert posture alert event: %w", err)
	}

	r.logger.Debug("Posture alert event recorded",
		zap.String("event_id", event.EventID),
		zap.String("device_id", event.DeviceID),
		zap.String("kind", event.Kind),
	)
	return nil
}

// ListAlertEvents newest first
func (r *AlertEventsRepository) ListAlertEvents(ctx context.Context, filters AlertEventFilters) ([]*models.PostureAlertEvent, error) {
	query := `
		SELECT event_id, device_id, kind, title, body, score, status, reading_id,
			triggered_at, metadata, created_at
		FROM posture_alert_events
		WHERE 1=1`

	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filters.DeviceID != "" {
		query += " AND device_id = " + arg(filters.DeviceID)
	}
	if len(filters.Kinds) > 0 {
		query += " AND kind = ANY(" + arg(pq.Array(filters.Kinds)) + ")"
	}
	if filters.StartTime != nil {
		query += " AND triggered_at >= " + arg(*filters.StartTime)
	}
	if filters.EndTime != nil {
		query += " AND triggered_at <= " + arg(*filters.EndTime)
	}
	query += " ORDER BY triggered_at DESC"
	if filters.Limit > 0 {
		query += " LIMIT " + arg(filters.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query posture alert events: %w", err)
	}
	defer rows.Close()

	var events []*models.PostureAlertEvent
	for rows.Next() {
		var (
			event     models.PostureAlertEvent
			readingID sql.NullString
			metadata  []byte
		)
		if err := rows.Scan(
			&event.EventID,
			&event.DeviceID,
			&event.Kind,
			&event.Title,
			&event.Body,
			&event.Score,
			&event.Status,
			&readingID,
			&event.TriggeredAt,
			&metadata,
			&event.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan posture alert event: %w", err)
		}
		if readingID.Valid {
			event.ReadingID = &readingID.String
		}
		if len(metadata) > 0 {
			event.Metadata = metadata
		}
		events = append(events, &event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate posture alert events: %w", err)
	}

	return events, nil
}

// CountSince number of alerts of kind raised on deviceID since t
func (r *AlertEventsRepository) CountSince(ctx context.Context, deviceID, kind string, t time.Time) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM posture_alert_events
		WHERE device_id = $1 AND kind = $2 AND triggered_at >= $3`,
		deviceID, kind, t,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count posture alert events: %w", err)
	}
	return count, nil
}
