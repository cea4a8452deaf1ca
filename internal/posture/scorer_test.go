package posture

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScore_Extremes(t *testing.T) {
	assert.Equal(t, 100.0, Score(0, 0))
	assert.Equal(t, 0.0, Score(0.5, 0.5))
	assert.Equal(t, 0.0, Score(-0.5, 0.5))
}

func TestScore_Saturates(t *testing.T) {
	// deviations clamp at 100 so anything past the threshold scores like the threshold
	assert.Equal(t, Score(0.5, 0), Score(3, 0))
	assert.Equal(t, Score(0, -0.5), Score(0, -math.Pi))
	assert.Equal(t, 0.0, Score(10, -10))
}

func TestScore_SymmetricInSign(t *testing.T) {
	assert.Equal(t, Score(0.2, 0.1), Score(-0.2, -0.1))
	assert.Equal(t, Score(0.3, 0), Score(0, 0.3))
}

func TestScore_PenalisesModerateDeviation(t *testing.T) {
	// pitch 0.25 → base 75; the exponent pushes the score below the linear value
	score := Score(0.25, 0)
	assert.InDelta(t, 100*math.Pow(0.75, 1.5), score, 1e-9)
	assert.Less(t, score, 75.0)
}

func TestScore_Monotonic(t *testing.T) {
	const steps = 50
	for i := 0; i <= steps; i++ {
		roll := MaxAcceptableTilt * float64(i) / steps
		prev := Score(0, roll)
		for j := 1; j <= steps; j++ {
			pitch := MaxAcceptableTilt * float64(j) / steps
			cur := Score(pitch, roll)
			assert.LessOrEqual(t, cur, prev, "pitch=%v roll=%v", pitch, roll)
			prev = cur
		}
	}
}

func TestScore_Range(t *testing.T) {
	for _, pitch := range []float64{-4, -math.Pi, -0.7, -0.1, 0, 0.05, 0.33, 1.2, 9} {
		for _, roll := range []float64{-3, -0.45, 0, 0.2, 0.5, 2} {
			s := Score(pitch, roll)
			assert.GreaterOrEqual(t, s, 0.0)
			assert.LessOrEqual(t, s, 100.0)
		}
	}
}
