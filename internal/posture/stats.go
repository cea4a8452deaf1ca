package posture

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// AverageAbsPitch mean |pitch| over readings, 0 when empty
func AverageAbsPitch(readings []Reading) float64 {
	return absMean(readings, func(r Reading) float64 { return r.Pitch })
}

// AverageAbsRoll mean |roll| over readings, 0 when empty
func AverageAbsRoll(readings []Reading) float64 {
	return absMean(readings, func(r Reading) float64 { return r.Roll })
}

func absMean(readings []Reading, field func(Reading) float64) float64 {
	if len(readings) == 0 {
		return 0
	}
	values := make([]float64, len(readings))
	for i, r := range readings {
		values[i] = math.Abs(field(r))
	}
	return stat.Mean(values, nil)
}

// ScoreStats distribution of scores across a window of readings
type ScoreStats struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// ComputeScoreStats zero value when readings is empty; StdDev is 0 for a single reading
func ComputeScoreStats(readings []Reading) ScoreStats {
	if len(readings) == 0 {
		return ScoreStats{}
	}
	scores := make([]float64, len(readings))
	for i, r := range readings {
		scores[i] = r.Score
	}

	stats := ScoreStats{
		Mean: stat.Mean(scores, nil),
		Min:  floats.Min(scores),
		Max:  floats.Max(scores),
	}
	if len(scores) > 1 {
		stats.StdDev = stat.StdDev(scores, nil)
	}
	return stats
}
