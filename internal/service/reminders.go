package service

import (
	"context"
	"fmt"
	"time"

	"flexi-posture/internal/posture"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

type snapshotter interface {
	Snapshot() posture.Snapshot
}

// Reminders sends a periodic "Posture Check" nudge while the engine is tracking
type Reminders struct {
	cron       *cron.Cron
	engine     snapshotter
	dispatcher posture.AlertDispatcher
	now        func() time.Time
	logger     *zap.Logger
}

// NewReminders schedule is a six-field cron expression ("0 */30 * * * *") or a descriptor ("@every 30m")
func NewReminders(schedule string, engine snapshotter, dispatcher posture.AlertDispatcher, logger *zap.Logger) (*Reminders, error) {
	r := &Reminders{
		cron:       cron.New(cron.WithSeconds()),
		engine:     engine,
		dispatcher: dispatcher,
		now:        time.Now,
		logger:     logger,
	}

	if _, err := r.cron.AddFunc(schedule, func() { r.Fire(context.Background()) }); err != nil {
		return nil, fmt.Errorf("invalid reminder schedule %q: %w", schedule, err)
	}

	logger.Info("Posture reminder registered", zap.String("schedule", schedule))
	return r, nil
}

// Start runs the schedule in the background
func (r *Reminders) Start() {
	r.cron.Start()
}

// Stop waits for a running reminder to finish
func (r *Reminders) Stop() {
	<-r.cron.Stop().Done()
}

// Fire sends one reminder now; skipped while the engine is not tracking
func (r *Reminders) Fire(ctx context.Context) bool {
	snap := r.engine.Snapshot()
	if !snap.Tracking {
		r.logger.Debug("Skipping posture reminder, not tracking")
		return false
	}

	alert := posture.NewReminderAlert(snap, r.now())
	if err := r.dispatcher.Notify(ctx, alert); err != nil {
		r.logger.Error("Failed to dispatch posture reminder", zap.Error(err))
		return false
	}

	r.logger.Debug("Posture reminder sent", zap.Float64("score", snap.CurrentScore))
	return true
}
