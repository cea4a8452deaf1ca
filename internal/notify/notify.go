// Package notify delivers posture alerts to the outside world. Every sink implements
// posture.AlertDispatcher; Multi fans out and Throttle rate-limits.
package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"flexi-posture/internal/posture"

	"go.uber.org/zap"
)

// DefaultCooldown minimum spacing between two alerts of the same kind
const DefaultCooldown = 5 * time.Minute

// PartialError some sinks failed while at least one delivered the alert
type PartialError struct {
	Delivered int
	Failed    int
	Err       error
}

func (e *PartialError) Error() string {
	return fmt.Sprintf("%d of %d sinks failed: %v", e.Failed, e.Delivered+e.Failed, e.Err)
}

func (e *PartialError) Unwrap() error { return e.Err }

// Multi delivers to every sink and joins their errors
type Multi []posture.AlertDispatcher

// Notify never stops at the first failing sink. Returns *PartialError when some sinks
// delivered, the joined errors when none did.
func (m Multi) Notify(ctx context.Context, alert posture.Alert) error {
	var errs []error
	for _, sink := range m {
		if err := sink.Notify(ctx, alert); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	if delivered := len(m) - len(errs); delivered > 0 {
		return &PartialError{Delivered: delivered, Failed: len(errs), Err: errors.Join(errs...)}
	}
	return errors.Join(errs...)
}

// Throttle drops alerts of a kind raised within Cooldown of the last delivered one.
// An alert counts as delivered when any sink behind a Multi took it.
type Throttle struct {
	next     posture.AlertDispatcher
	cooldown time.Duration
	now      func() time.Time
	logger   *zap.Logger

	mu   sync.Mutex
	last map[string]time.Time
}

// NewThrottle cooldown <= 0 uses DefaultCooldown
func NewThrottle(next posture.AlertDispatcher, cooldown time.Duration, logger *zap.Logger) *Throttle {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Throttle{
		next:     next,
		cooldown: cooldown,
		now:      time.Now,
		logger:   logger,
		last:     make(map[string]time.Time),
	}
}

// Notify forwards unless throttled. A failed delivery does not start a cooldown.
func (t *Throttle) Notify(ctx context.Context, alert posture.Alert) error {
	now := t.now()

	t.mu.Lock()
	if last, ok := t.last[alert.Kind]; ok && now.Sub(last) < t.cooldown {
		t.mu.Unlock()
		t.logger.Debug("Alert throttled",
			zap.String("kind", alert.Kind),
			zap.Duration("since_last", now.Sub(last)),
		)
		return nil
	}
	t.last[alert.Kind] = now
	t.mu.Unlock()

	err := t.next.Notify(ctx, alert)
	var partial *PartialError
	if err != nil && !errors.As(err, &partial) {
		t.mu.Lock()
		delete(t.last, alert.Kind)
		t.mu.Unlock()
	}
	return err
}

// LogSink writes alerts to the log; the fallback when no sink is configured
type LogSink struct {
	Logger *zap.Logger
}

func (s LogSink) Notify(_ context.Context, alert posture.Alert) error {
	s.Logger.Info(alert.Title,
		zap.String("kind", alert.Kind),
		zap.String("body", alert.Body),
		zap.Float64("score", alert.Score),
		zap.String("status", alert.Status.String()),
		zap.Time("triggered_at", alert.TriggeredAt),
	)
	return nil
}

// alertMessage wire form shared by the MQTT, stream, webhook and Kafka sinks
type alertMessage struct {
	DeviceID string `json:"device_id"`
	posture.Alert
}

func wrapErr(sink string, err error) error {
	return fmt.Errorf("%s sink: %w", sink, err)
}
