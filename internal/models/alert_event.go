package models

import (
	"encoding/json"
	"time"

	"flexi-posture/internal/posture"

	"github.com/google/uuid"
)

// PostureAlertEvent one delivered posture alert, as persisted in posture_alert_events
type PostureAlertEvent struct {
	EventID     string          `json:"event_id"`
	DeviceID    string          `json:"device_id"`
	Kind        string          `json:"kind"`
	Title       string          `json:"title"`
	Body        string          `json:"body"`
	Score       float64         `json:"score"`
	Status      string          `json:"status"`
	ReadingID   *string         `json:"reading_id,omitempty"` // nil for reminders
	TriggeredAt time.Time       `json:"triggered_at"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// NewPostureAlertEvent builds an event record for alert raised on deviceID
func NewPostureAlertEvent(deviceID string, alert posture.Alert) *PostureAlertEvent {
	event := &PostureAlertEvent{
		EventID:     uuid.New().String(),
		DeviceID:    deviceID,
		Kind:        alert.Kind,
		Title:       alert.Title,
		Body:        alert.Body,
		Score:       alert.Score,
		Status:      alert.Status.String(),
		TriggeredAt: alert.TriggeredAt,
	}
	if alert.ReadingID != uuid.Nil {
		id := alert.ReadingID.String()
		event.ReadingID = &id
	}
	return event
}
