package notify

import (
	"context"

	"flexi-posture/internal/models"
	"flexi-posture/internal/posture"
)

// EventStore persists alert events
type EventStore interface {
	CreateAlertEvent(ctx context.Context, event *models.PostureAlertEvent) error
}

// RecorderSink writes every delivered alert to the audit log
type RecorderSink struct {
	store    EventStore
	deviceID string
}

// NewRecorderSink creates the sink
func NewRecorderSink(store EventStore, deviceID string) *RecorderSink {
	return &RecorderSink{store: store, deviceID: deviceID}
}

func (s *RecorderSink) Notify(ctx context.Context, alert posture.Alert) error {
	if err := s.store.CreateAlertEvent(ctx, models.NewPostureAlertEvent(s.deviceID, alert)); err != nil {
		return wrapErr("recorder", err)
	}
	return nil
}
