package posture

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// OrientationSample one attitude reading from the watch, radians
type OrientationSample struct {
	Timestamp time.Time `json:"timestamp"`
	Pitch     float64   `json:"pitch"`
	Roll      float64   `json:"roll"`
	Yaw       float64   `json:"yaw"`
}

// IsFinite reports whether every angle is a finite number
func (s OrientationSample) IsFinite() bool {
	return isFinite(s.Pitch) && isFinite(s.Roll) && isFinite(s.Yaw)
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Reading a scored sample. Score is fixed at construction.
type Reading struct {
	ID        uuid.UUID `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Pitch     float64   `json:"pitch"`
	Roll      float64   `json:"roll"`
	Yaw       float64   `json:"yaw"`
	Score     float64   `json:"score"`
}

// NewReading assigns a fresh ID and scores the sample
func NewReading(sample OrientationSample) Reading {
	return Reading{
		ID:        uuid.New(),
		Timestamp: sample.Timestamp,
		Pitch:     sample.Pitch,
		Roll:      sample.Roll,
		Yaw:       sample.Yaw,
		Score:     Score(sample.Pitch, sample.Roll),
	}
}

// Status classification of this reading's score
func (r Reading) Status() Status {
	return Classify(r.Score)
}

// IsGoodPosture both tilts strictly inside the acceptable range
func (r Reading) IsGoodPosture() bool {
	return math.Abs(r.Pitch) < MaxAcceptableTilt && math.Abs(r.Roll) < MaxAcceptableTilt
}

// Deviation combined tilt magnitude, radians
func (r Reading) Deviation() float64 {
	return math.Hypot(r.Pitch, r.Roll)
}
