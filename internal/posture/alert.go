package posture

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Alert kinds
const (
	AlertKindPoorPosture = "poor_posture"
	AlertKindReminder    = "reminder"
)

const (
	poorPostureTitle = "Posture Alert"
	poorPostureBody  = "Time to adjust your position and stretch!"
	reminderTitle    = "Posture Check"
	reminderBody     = "Time to adjust your posture and stretch!"
)

// Alert a notification handed to an AlertDispatcher
type Alert struct {
	Kind        string    `json:"kind"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	Score       float64   `json:"score"`
	Status      Status    `json:"status"`
	ReadingID   uuid.UUID `json:"reading_id"`
	TriggeredAt time.Time `json:"triggered_at"`
}

// NewPoorPostureAlert alert raised on the transition into poor posture
func NewPoorPostureAlert(r Reading) Alert {
	return Alert{
		Kind:        AlertKindPoorPosture,
		Title:       poorPostureTitle,
		Body:        poorPostureBody,
		Score:       r.Score,
		Status:      r.Status(),
		ReadingID:   r.ID,
		TriggeredAt: r.Timestamp,
	}
}

// NewReminderAlert periodic nudge carrying the current snapshot figures
func NewReminderAlert(s Snapshot, at time.Time) Alert {
	return Alert{
		Kind:        AlertKindReminder,
		Title:       reminderTitle,
		Body:        reminderBody,
		Score:       s.CurrentScore,
		Status:      s.CurrentStatus,
		TriggeredAt: at,
	}
}

// AlertDispatcher delivers alerts. Delivery, retries and rate limiting are the
// dispatcher's concern; the engine only logs a returned error.
type AlertDispatcher interface {
	Notify(ctx context.Context, alert Alert) error
}

// DispatcherFunc adapts a function to AlertDispatcher
type DispatcherFunc func(ctx context.Context, alert Alert) error

func (f DispatcherFunc) Notify(ctx context.Context, alert Alert) error {
	return f(ctx, alert)
}

type nopDispatcher struct{}

func (nopDispatcher) Notify(context.Context, Alert) error { return nil }
