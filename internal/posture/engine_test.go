package posture

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

// samples scoring into each bucket
var (
	goodSample = OrientationSample{Pitch: 0, Roll: 0}
	fairSample = OrientationSample{Pitch: 0.25, Roll: 0}
	poorSample = OrientationSample{Pitch: 0.5, Roll: 0.5}
)

func sampleAt(s OrientationSample, seconds int) OrientationSample {
	s.Timestamp = at(seconds)
	return s
}

type recordingDispatcher struct {
	mu     sync.Mutex
	alerts []Alert
	err    error
}

func (d *recordingDispatcher) Notify(_ context.Context, alert Alert) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.alerts = append(d.alerts, alert)
	return d.err
}

func (d *recordingDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.alerts)
}

type countingObserver struct {
	processed atomic.Int64
	rejected  atomic.Int64
	alerts    atomic.Int64
}

func (o *countingObserver) SampleProcessed(Snapshot) { o.processed.Add(1) }
func (o *countingObserver) SampleRejected()          { o.rejected.Add(1) }
func (o *countingObserver) AlertRaised(Alert)        { o.alerts.Add(1) }

func newTestEngine(t *testing.T, source SampleSource) (*Engine, *recordingDispatcher) {
	dispatcher := &recordingDispatcher{}
	engine := NewEngine(source, dispatcher, zap.NewNop())
	t.Cleanup(engine.StopTracking)
	return engine, dispatcher
}

func TestEngine_InitialState(t *testing.T) {
	engine, _ := newTestEngine(t, nil)

	snap := engine.Snapshot()
	assert.Equal(t, BaselineScore, snap.CurrentScore)
	assert.Equal(t, StatusNeedsImprovement, snap.CurrentStatus)
	assert.Equal(t, "Analyzing posture...", snap.StatusDescription)
	assert.Empty(t, snap.RecentReadings)
	assert.Zero(t, snap.AveragePitch)
	assert.Zero(t, snap.AverageRoll)
	assert.Zero(t, snap.PoorPostureDurationMinutes)
	assert.False(t, snap.Tracking)
}

func TestEngine_ProcessReadingUpdatesSnapshot(t *testing.T) {
	engine, _ := newTestEngine(t, nil)
	ctx := context.Background()

	snap, err := engine.ProcessReading(ctx, sampleAt(OrientationSample{Pitch: -0.2, Roll: 0.1, Yaw: 1}, 0))
	require.NoError(t, err)

	assert.Equal(t, Score(-0.2, 0.1), snap.CurrentScore)
	assert.Equal(t, Classify(snap.CurrentScore), snap.CurrentStatus)
	assert.Equal(t, snap.CurrentStatus.Description(), snap.StatusDescription)
	require.Len(t, snap.RecentReadings, 1)
	assert.InDelta(t, 0.2, snap.AveragePitch, 1e-12)
	assert.InDelta(t, 0.1, snap.AverageRoll, 1e-12)
	assert.Equal(t, uint64(1), snap.SampleCount)
	assert.Equal(t, at(0), snap.LastReadingAt)

	_, err = engine.ProcessReading(ctx, sampleAt(OrientationSample{Pitch: 0.4, Roll: -0.3}, 1))
	require.NoError(t, err)

	snap = engine.Snapshot()
	assert.InDelta(t, 0.3, snap.AveragePitch, 1e-12)
	assert.InDelta(t, 0.2, snap.AverageRoll, 1e-12)
}

func TestEngine_AlertIsEdgeTriggered(t *testing.T) {
	engine, dispatcher := newTestEngine(t, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := engine.ProcessReading(ctx, sampleAt(poorSample, i))
		require.NoError(t, err)
	}

	// drains the alert queue
	engine.StopTracking()

	require.Equal(t, 1, dispatcher.count())
	alert := dispatcher.alerts[0]
	assert.Equal(t, AlertKindPoorPosture, alert.Kind)
	assert.Equal(t, "Posture Alert", alert.Title)
	assert.Equal(t, "Time to adjust your position and stretch!", alert.Body)
	assert.Equal(t, StatusPoor, alert.Status)
	assert.Equal(t, at(0), alert.TriggeredAt)
	assert.Equal(t, engine.Snapshot().RecentReadings[0].ID, alert.ReadingID)
}

func TestEngine_AlertRearmsAfterLeavingPoor(t *testing.T) {
	engine, dispatcher := newTestEngine(t, nil)
	ctx := context.Background()

	for i, s := range []OrientationSample{poorSample, fairSample, poorSample} {
		_, err := engine.ProcessReading(ctx, sampleAt(s, i))
		require.NoError(t, err)
	}

	engine.StopTracking()
	assert.Equal(t, 2, dispatcher.count())
}

func TestEngine_DispatchErrorIsNotFatal(t *testing.T) {
	engine, dispatcher := newTestEngine(t, nil)
	dispatcher.err = errors.New("push gateway down")

	snap, err := engine.ProcessReading(context.Background(), sampleAt(poorSample, 0))

	require.NoError(t, err)
	assert.Equal(t, StatusPoor, snap.CurrentStatus)
	engine.StopTracking()
	assert.Equal(t, 1, dispatcher.count())
}

func TestEngine_SlowDispatcherDoesNotBlockProcessing(t *testing.T) {
	defer goleak.VerifyNone(t)

	release := make(chan struct{})
	var delivered atomic.Int32
	dispatcher := DispatcherFunc(func(ctx context.Context, _ Alert) error {
		select {
		case <-release:
		case <-ctx.Done():
		}
		delivered.Add(1)
		return nil
	})
	engine := NewEngine(nil, dispatcher, zap.NewNop())

	start := time.Now()
	for i, s := range []OrientationSample{poorSample, goodSample, poorSample, goodSample} {
		_, err := engine.ProcessReading(context.Background(), sampleAt(s, i))
		require.NoError(t, err)
	}
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Equal(t, uint64(4), engine.Snapshot().SampleCount)
	assert.Zero(t, delivered.Load())

	close(release)
	engine.StopTracking()
	assert.Equal(t, int32(2), delivered.Load())
}

func TestEngine_AlertQueueFullDropsAlert(t *testing.T) {
	defer goleak.VerifyNone(t)

	release := make(chan struct{})
	var delivered atomic.Int32
	dispatcher := DispatcherFunc(func(context.Context, Alert) error {
		<-release
		delivered.Add(1)
		return nil
	})
	observer := &countingObserver{}
	engine := NewEngine(nil, dispatcher, zap.NewNop(), WithAlertQueue(1), WithObserver(observer))

	for i := 0; i < 10; i++ {
		s := poorSample
		if i%2 == 1 {
			s = goodSample
		}
		_, err := engine.ProcessReading(context.Background(), sampleAt(s, i))
		require.NoError(t, err)
	}
	assert.Equal(t, int64(5), observer.alerts.Load())

	close(release)
	engine.StopTracking()
	// one in flight plus one queued; the rest were dropped
	assert.LessOrEqual(t, delivered.Load(), int32(2))
	assert.GreaterOrEqual(t, delivered.Load(), int32(1))
}

func TestEngine_DispatchWorkerStopsWithTracking(t *testing.T) {
	defer goleak.VerifyNone(t)

	in := make(chan OrientationSample)
	engine, dispatcher := newTestEngine(t, ChannelSource{In: in})

	require.NoError(t, engine.StartContinuousTracking(context.Background()))
	in <- sampleAt(poorSample, 0)
	require.Eventually(t, func() bool {
		return dispatcher.count() == 1
	}, time.Second, 5*time.Millisecond)

	engine.StopTracking()
}

func TestEngine_TracksPoorDuration(t *testing.T) {
	engine, _ := newTestEngine(t, nil)
	ctx := context.Background()

	steps := []struct {
		sample  OrientationSample
		seconds int
	}{
		{poorSample, 0},
		{poorSample, 60},
		{fairSample, 150},
		{poorSample, 200},
		{goodSample, 230},
		{poorSample, 300},
	}
	for _, s := range steps {
		_, err := engine.ProcessReading(ctx, sampleAt(s.sample, s.seconds))
		require.NoError(t, err)
	}

	// 150s + 30s closed; the interval opened at 300 is not credited
	snap := engine.Snapshot()
	assert.Equal(t, 3, snap.PoorPostureDurationMinutes)
	assert.True(t, snap.PoorIntervalOpen)
}

func TestEngine_RejectsNonFinite(t *testing.T) {
	observer := &countingObserver{}
	engine := NewEngine(nil, nil, zap.NewNop(), WithObserver(observer))
	ctx := context.Background()

	_, err := engine.ProcessReading(ctx, sampleAt(fairSample, 0))
	require.NoError(t, err)
	before := engine.Snapshot()

	for _, s := range []OrientationSample{
		{Pitch: math.NaN()},
		{Roll: math.Inf(1)},
		{Yaw: math.Inf(-1)},
	} {
		_, err := engine.ProcessReading(ctx, s)
		assert.ErrorIs(t, err, ErrNonFiniteSample)
	}

	assert.Equal(t, before, engine.Snapshot())
	assert.Equal(t, int64(3), observer.rejected.Load())
	assert.Equal(t, int64(1), observer.processed.Load())
}

func TestEngine_AcceptsOutOfRangeFiniteAngles(t *testing.T) {
	engine, _ := newTestEngine(t, nil)

	snap, err := engine.ProcessReading(context.Background(), sampleAt(OrientationSample{Pitch: 12, Roll: -40, Yaw: 99}, 0))

	require.NoError(t, err)
	assert.Equal(t, 0.0, snap.CurrentScore)
	assert.Equal(t, StatusPoor, snap.CurrentStatus)
}

func TestEngine_BufferBounded(t *testing.T) {
	engine, _ := newTestEngine(t, nil)
	ctx := context.Background()

	for i := 0; i < 250; i++ {
		_, err := engine.ProcessReading(ctx, sampleAt(goodSample, i))
		require.NoError(t, err)
	}

	snap := engine.Snapshot()
	assert.Len(t, snap.RecentReadings, DefaultBufferCapacity)
	assert.Equal(t, at(150), snap.RecentReadings[0].Timestamp)
	assert.Equal(t, uint64(250), snap.SampleCount)
}

func TestEngine_Reset(t *testing.T) {
	engine, dispatcher := newTestEngine(t, nil)
	ctx := context.Background()

	for i, s := range []OrientationSample{poorSample, goodSample, poorSample} {
		_, err := engine.ProcessReading(ctx, sampleAt(s, i*120))
		require.NoError(t, err)
	}
	require.Equal(t, 2, dispatcher.count())

	snap := engine.Reset()

	assert.Equal(t, 100.0, snap.CurrentScore)
	assert.Equal(t, StatusNeedsImprovement, snap.CurrentStatus)
	assert.Equal(t, "Analyzing posture...", snap.StatusDescription)
	assert.Empty(t, snap.RecentReadings)
	assert.Zero(t, snap.PoorPostureDurationMinutes)
	assert.False(t, snap.PoorIntervalOpen)
	assert.Zero(t, snap.AveragePitch)
	assert.Zero(t, snap.AverageRoll)

	// alerting is re-armed
	_, err := engine.ProcessReading(ctx, sampleAt(poorSample, 1000))
	require.NoError(t, err)
	assert.Equal(t, 3, dispatcher.count())
}

func TestEngine_ConcurrentProcessing(t *testing.T) {
	engine, _ := newTestEngine(t, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				_, _ = engine.ProcessReading(ctx, sampleAt(fairSample, w*100+i))
				_ = engine.Snapshot()
			}
		}(w)
	}
	wg.Wait()

	snap := engine.Snapshot()
	assert.Equal(t, uint64(400), snap.SampleCount)
	assert.Len(t, snap.RecentReadings, DefaultBufferCapacity)
}

type countingSource struct {
	subscriptions atomic.Int32
	in            chan OrientationSample
}

func (s *countingSource) Subscribe(ctx context.Context) (<-chan OrientationSample, error) {
	s.subscriptions.Add(1)
	return ChannelSource{In: s.in}.Subscribe(ctx)
}

func TestEngine_ContinuousTracking(t *testing.T) {
	defer goleak.VerifyNone(t)

	source := &countingSource{in: make(chan OrientationSample)}
	engine, dispatcher := newTestEngine(t, source)
	ctx := context.Background()

	require.NoError(t, engine.StartContinuousTracking(ctx))
	require.NoError(t, engine.StartContinuousTracking(ctx))
	assert.Equal(t, int32(1), source.subscriptions.Load())
	assert.True(t, engine.Tracking())

	for i := 0; i < 3; i++ {
		source.in <- sampleAt(poorSample, i)
	}

	require.Eventually(t, func() bool {
		return engine.Snapshot().SampleCount == 3 && dispatcher.count() == 1
	}, time.Second, 5*time.Millisecond)

	engine.StopTracking()
	assert.False(t, engine.Tracking())

	// interval opened at t=0 stays open across stop
	assert.True(t, engine.Snapshot().PoorIntervalOpen)

	// resume: a fresh subscription, state carried over
	require.NoError(t, engine.StartContinuousTracking(ctx))
	assert.Equal(t, int32(2), source.subscriptions.Load())

	source.in <- sampleAt(goodSample, 120)
	require.Eventually(t, func() bool {
		return engine.Snapshot().SampleCount == 4
	}, time.Second, 5*time.Millisecond)

	engine.StopTracking()
	snap := engine.Snapshot()
	assert.Equal(t, 2, snap.PoorPostureDurationMinutes)
	assert.Equal(t, 1, dispatcher.count())
}

func TestEngine_StopWithoutSamples(t *testing.T) {
	defer goleak.VerifyNone(t)

	source := &countingSource{in: make(chan OrientationSample)}
	engine, _ := newTestEngine(t, source)

	engine.StopTracking() // before start

	require.NoError(t, engine.StartContinuousTracking(context.Background()))
	snap := engine.Snapshot()
	assert.True(t, snap.Tracking)
	assert.Empty(t, snap.RecentReadings)
	assert.Equal(t, BaselineScore, snap.CurrentScore)

	engine.StopTracking()
	engine.StopTracking()
	assert.False(t, engine.Tracking())
}

func TestEngine_StartWithoutSource(t *testing.T) {
	engine, _ := newTestEngine(t, nil)
	assert.ErrorIs(t, engine.StartContinuousTracking(context.Background()), ErrNoSource)
	assert.False(t, engine.Tracking())
}

func TestEngine_StartSubscribeError(t *testing.T) {
	source := SourceFunc(func(context.Context) (<-chan OrientationSample, error) {
		return nil, errors.New("motion unavailable")
	})
	engine, _ := newTestEngine(t, source)

	err := engine.StartContinuousTracking(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "motion unavailable")
	assert.False(t, engine.Tracking())
}

func TestEngine_SourceClosedKeepsTracking(t *testing.T) {
	defer goleak.VerifyNone(t)

	in := make(chan OrientationSample, 1)
	engine, _ := newTestEngine(t, ChannelSource{In: in})

	require.NoError(t, engine.StartContinuousTracking(context.Background()))
	in <- sampleAt(goodSample, 0)
	close(in)

	require.Eventually(t, func() bool {
		return engine.Snapshot().SampleCount == 1
	}, time.Second, 5*time.Millisecond)
	assert.True(t, engine.Tracking())

	engine.StopTracking()
	assert.False(t, engine.Tracking())
}

func TestEngine_Export(t *testing.T) {
	engine, _ := newTestEngine(t, nil)
	ctx := context.Background()

	_, err := engine.ProcessReading(ctx, sampleAt(goodSample, 0))
	require.NoError(t, err)
	_, err = engine.ProcessReading(ctx, sampleAt(poorSample, 1))
	require.NoError(t, err)

	summary := engine.Export()
	assert.Equal(t, 2, summary.TotalReadings)
	assert.Equal(t, "Poor Posture", summary.OverallStatus)
	assert.Equal(t, "0 minutes", summary.PoorPostureDuration)
	assert.Equal(t, 50.0, summary.Scores.Mean)
	assert.Equal(t, 0.0, summary.Scores.Min)
	assert.Equal(t, 100.0, summary.Scores.Max)
}
