// Package posture scores wrist orientation samples, tracks time spent in poor posture
// and raises an alert each time posture turns poor.
package posture

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultAlertQueue alerts waiting for delivery before new ones are dropped
	DefaultAlertQueue = 16

	dispatchTimeout = 30 * time.Second
)

var (
	// ErrNonFiniteSample returned for samples carrying NaN or infinite angles
	ErrNonFiniteSample = errors.New("non-finite orientation sample")

	// ErrNoSource returned by StartContinuousTracking when the engine has no source
	ErrNoSource = errors.New("no sample source configured")
)

// Observer receives engine events, e.g. for metrics. Calls happen outside the engine lock.
type Observer interface {
	SampleProcessed(s Snapshot)
	SampleRejected()
	AlertRaised(a Alert)
}

type nopObserver struct{}

func (nopObserver) SampleProcessed(Snapshot) {}
func (nopObserver) SampleRejected()          {}
func (nopObserver) AlertRaised(Alert)        {}

// Option configures an Engine
type Option func(*Engine)

// WithObserver registers an observer
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		if o != nil {
			e.observer = o
		}
	}
}

// WithBufferCapacity overrides the number of recent readings retained
func WithBufferCapacity(capacity int) Option {
	return func(e *Engine) {
		e.buffer = NewReadingBuffer(capacity)
	}
}

// WithAlertQueue overrides the number of alerts buffered for delivery
func WithAlertQueue(size int) Option {
	return func(e *Engine) {
		if size > 0 {
			e.alerts = make(chan pendingAlert, size)
		}
	}
}

type pendingAlert struct {
	ctx   context.Context
	alert Alert
}

// Engine orchestrates scoring, duration tracking and alerting over a sample stream.
// All state sits behind mu so samples are processed one at a time, in arrival order.
type Engine struct {
	source     SampleSource
	dispatcher AlertDispatcher
	observer   Observer
	logger     *zap.Logger

	// lifecycle, held only by Start/StopTracking
	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	// alert delivery worker, started on demand and drained by StopTracking
	alerts       chan pendingAlert
	dispatchMu   sync.Mutex
	dispatchQuit chan struct{}
	dispatchDone chan struct{}

	mu          sync.Mutex
	buffer      *ReadingBuffer
	tracker     *DurationTracker
	score       float64
	status      Status
	inPoor      bool
	sampleCount uint64
	tracking    bool
}

// NewEngine source may be nil when samples are fed through ProcessReading only;
// dispatcher may be nil to drop alerts.
func NewEngine(source SampleSource, dispatcher AlertDispatcher, logger *zap.Logger, opts ...Option) *Engine {
	if dispatcher == nil {
		dispatcher = nopDispatcher{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	e := &Engine{
		source:     source,
		dispatcher: dispatcher,
		observer:   nopObserver{},
		logger:     logger,
		alerts:     make(chan pendingAlert, DefaultAlertQueue),
		buffer:     NewReadingBuffer(DefaultBufferCapacity),
		tracker:    NewDurationTracker(),
		score:      BaselineScore,
		status:     StatusNeedsImprovement,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// StartContinuousTracking subscribes to the sample source and processes samples until
// StopTracking is called or ctx is done. Calling it while already tracking is a no-op.
func (e *Engine) StartContinuousTracking(ctx context.Context) error {
	e.runMu.Lock()
	defer e.runMu.Unlock()

	if e.cancel != nil {
		return nil
	}
	if e.source == nil {
		return ErrNoSource
	}

	runCtx, cancel := context.WithCancel(ctx)
	samples, err := e.source.Subscribe(runCtx)
	if err != nil {
		cancel()
		return fmt.Errorf("failed to subscribe to sample source: %w", err)
	}

	e.startDispatch()

	done := make(chan struct{})
	e.cancel = cancel
	e.done = done

	e.mu.Lock()
	e.tracking = true
	e.mu.Unlock()

	go e.run(runCtx, samples, done)

	e.logger.Info("Posture tracking started")
	return nil
}

// StopTracking unsubscribes, waits for the processing goroutine and delivers alerts
// still queued. An open poor interval stays open. Safe to call at any time, including
// before Start.
func (e *Engine) StopTracking() {
	e.runMu.Lock()
	defer e.runMu.Unlock()
	defer e.stopDispatch()

	if e.cancel == nil {
		return
	}
	e.cancel()
	<-e.done
	e.cancel = nil
	e.done = nil

	e.mu.Lock()
	e.tracking = false
	e.mu.Unlock()

	e.logger.Info("Posture tracking stopped")
}

func (e *Engine) run(ctx context.Context, samples <-chan OrientationSample, done chan struct{}) {
	defer close(done)

	for {
		select {
		case <-ctx.Done():
			return
		case sample, ok := <-samples:
			if !ok {
				// source ended; the engine stays in tracking state until stopped
				e.logger.Info("Sample source closed")
				return
			}
			if _, err := e.ProcessReading(ctx, sample); err != nil {
				e.logger.Warn("Dropped orientation sample",
					zap.Time("timestamp", sample.Timestamp),
					zap.Error(err),
				)
			}
		}
	}
}

// ProcessReading ingests one sample and returns the updated snapshot.
// Non-finite samples are rejected with ErrNonFiniteSample and leave state untouched.
// A raised alert is queued for the dispatch worker; delivery never blocks the caller.
func (e *Engine) ProcessReading(ctx context.Context, sample OrientationSample) (Snapshot, error) {
	if !sample.IsFinite() {
		e.observer.SampleRejected()
		return Snapshot{}, fmt.Errorf("%w: pitch=%v roll=%v yaw=%v",
			ErrNonFiniteSample, sample.Pitch, sample.Roll, sample.Yaw)
	}

	reading := NewReading(sample)

	e.mu.Lock()
	// 1. buffer, evicting the oldest reading on overflow
	e.buffer.Push(reading)

	// 2. classify
	status := Classify(reading.Score)

	// 3. poor-posture duration
	e.tracker.Observe(status, reading.Timestamp)

	// 4. snapshot state
	e.score = reading.Score
	e.status = status
	e.sampleCount++

	// 5. edge-triggered: only the transition into poor raises an alert
	raise := status == StatusPoor && !e.inPoor
	e.inPoor = status == StatusPoor

	snap := e.snapshotLocked()
	e.mu.Unlock()

	e.observer.SampleProcessed(snap)

	if raise {
		e.raise(ctx, NewPoorPostureAlert(reading))
	}

	return snap, nil
}

func (e *Engine) raise(ctx context.Context, alert Alert) {
	e.observer.AlertRaised(alert)

	e.dispatchMu.Lock()
	defer e.dispatchMu.Unlock()

	if e.dispatchQuit == nil {
		e.startDispatchLocked()
	}
	select {
	case e.alerts <- pendingAlert{ctx: context.WithoutCancel(ctx), alert: alert}:
	default:
		e.logger.Warn("Alert queue full, dropping posture alert",
			zap.String("kind", alert.Kind),
			zap.String("reading_id", alert.ReadingID.String()),
		)
	}
}

func (e *Engine) startDispatch() {
	e.dispatchMu.Lock()
	defer e.dispatchMu.Unlock()
	if e.dispatchQuit == nil {
		e.startDispatchLocked()
	}
}

func (e *Engine) startDispatchLocked() {
	e.dispatchQuit = make(chan struct{})
	e.dispatchDone = make(chan struct{})
	go e.dispatchLoop(e.dispatchQuit, e.dispatchDone)
}

func (e *Engine) stopDispatch() {
	e.dispatchMu.Lock()
	defer e.dispatchMu.Unlock()

	if e.dispatchQuit == nil {
		return
	}
	close(e.dispatchQuit)
	<-e.dispatchDone
	e.dispatchQuit = nil
	e.dispatchDone = nil
}

func (e *Engine) dispatchLoop(quit <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	for {
		select {
		case p := <-e.alerts:
			e.deliver(p)
		case <-quit:
			// drain what was queued before the stop
			for {
				select {
				case p := <-e.alerts:
					e.deliver(p)
				default:
					return
				}
			}
		}
	}
}

func (e *Engine) deliver(p pendingAlert) {
	ctx, cancel := context.WithTimeout(p.ctx, dispatchTimeout)
	defer cancel()

	alert := p.alert
	if err := e.dispatcher.Notify(ctx, alert); err != nil {
		e.logger.Error("Failed to dispatch posture alert",
			zap.String("kind", alert.Kind),
			zap.String("reading_id", alert.ReadingID.String()),
			zap.Error(err),
		)
		return
	}

	e.logger.Info("Posture alert dispatched",
		zap.String("kind", alert.Kind),
		zap.Float64("score", alert.Score),
		zap.String("reading_id", alert.ReadingID.String()),
	)
}

// Snapshot current state
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// Tracking reports whether the engine is subscribed to its source
func (e *Engine) Tracking() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tracking
}

// Reset clears readings and duration, restores the baseline score and status and re-arms
// alerting. Tracking, if running, continues.
func (e *Engine) Reset() Snapshot {
	e.mu.Lock()
	e.buffer.Clear()
	e.tracker.Reset()
	e.score = BaselineScore
	e.status = StatusNeedsImprovement
	e.inPoor = false
	e.sampleCount = 0
	snap := e.snapshotLocked()
	e.mu.Unlock()

	e.logger.Info("Posture tracking reset")
	return snap
}

// Export summary of the current snapshot
func (e *Engine) Export() Summary {
	return e.Snapshot().Summarize()
}

func (e *Engine) snapshotLocked() Snapshot {
	readings := e.buffer.Readings()
	_, open := e.tracker.Open()

	snap := Snapshot{
		CurrentScore:               e.score,
		CurrentStatus:              e.status,
		StatusDescription:          analyzingDescription,
		RecentReadings:             readings,
		PoorPostureDurationMinutes: e.tracker.TotalMinutes(),
		PoorIntervalOpen:           open,
		AveragePitch:               AverageAbsPitch(readings),
		AverageRoll:                AverageAbsRoll(readings),
		SampleCount:                e.sampleCount,
		Tracking:                   e.tracking,
	}
	if e.sampleCount > 0 {
		snap.StatusDescription = e.status.Description()
	}
	if latest, ok := e.buffer.Latest(); ok {
		snap.LastReadingAt = latest.Timestamp
	}
	return snap
}
