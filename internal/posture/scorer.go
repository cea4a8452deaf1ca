package posture

import "math"

const (
	// MaxAcceptableTilt is the pitch/roll (radians, ~28.6°) at which a deviation saturates.
	MaxAcceptableTilt = 0.5

	// BaselineScore is the score before any reading is processed and after Reset.
	BaselineScore = 100.0

	maxDeviation  = 100.0
	scoreExponent = 1.5
)

// Score maps forward (pitch) and lateral (roll) tilt onto [0, 100].
// Yaw never contributes. The 1.5 exponent is applied to the normalised base so that
// moderate deviation is penalised harder than a linear scale while 100 and 0 stay fixed.
func Score(pitch, roll float64) float64 {
	pitchDeviation := math.Min(math.Abs(pitch)/MaxAcceptableTilt*100, maxDeviation)
	rollDeviation := math.Min(math.Abs(roll)/MaxAcceptableTilt*100, maxDeviation)

	baseScore := 100 - (pitchDeviation+rollDeviation)/2

	return 100 * math.Pow(math.Max(0, baseScore)/100, scoreExponent)
}
