package posture

import (
	"fmt"
	"time"
)

const analyzingDescription = "Analyzing posture..."

// Snapshot read-only view of the engine after the last processed sample
type Snapshot struct {
	CurrentScore               float64   `json:"current_score"`
	CurrentStatus              Status    `json:"current_status"`
	StatusDescription          string    `json:"status_description"`
	RecentReadings             []Reading `json:"recent_readings"`
	PoorPostureDurationMinutes int       `json:"poor_posture_duration_minutes"`
	PoorIntervalOpen           bool      `json:"poor_interval_open"`
	AveragePitch               float64   `json:"average_pitch"`
	AverageRoll                float64   `json:"average_roll"`
	SampleCount                uint64    `json:"sample_count"`
	Tracking                   bool      `json:"tracking"`
	LastReadingAt              time.Time `json:"last_reading_at,omitempty"`
}

// Insights plain-language hints derived from the averages and the current status
func (s Snapshot) Insights() []string {
	var insights []string

	if s.AveragePitch > 0.7 {
		insights = append(insights, "Your head tends to tilt forward. Consider adjusting screen height.")
	}
	if s.AverageRoll > 0.6 {
		insights = append(insights, "Uneven shoulder alignment detected. Check your sitting position.")
	}

	switch s.CurrentStatus {
	case StatusGood:
		insights = append(insights, "Excellent posture maintenance!")
	case StatusNeedsImprovement:
		insights = append(insights, "Minor adjustments can help improve your posture.")
	case StatusPoor:
		insights = append(insights, "Significant posture issues require immediate attention.")
	}

	return insights
}

// Summary export record of a snapshot
type Summary struct {
	TotalReadings       int        `json:"total_readings"`
	AveragePitch        float64    `json:"average_pitch"`
	AverageRoll         float64    `json:"average_roll"`
	CurrentPostureScore float64    `json:"current_posture_score"`
	OverallStatus       string     `json:"overall_status"`
	PoorPostureDuration string     `json:"poor_posture_duration"`
	Scores              ScoreStats `json:"scores"`
	Insights            []string   `json:"insights"`
}

// Summarize builds the export record
func (s Snapshot) Summarize() Summary {
	return Summary{
		TotalReadings:       len(s.RecentReadings),
		AveragePitch:        s.AveragePitch,
		AverageRoll:         s.AverageRoll,
		CurrentPostureScore: s.CurrentScore,
		OverallStatus:       s.CurrentStatus.Label(),
		PoorPostureDuration: fmt.Sprintf("%d minutes", s.PoorPostureDurationMinutes),
		Scores:              ComputeScoreStats(s.RecentReadings),
		Insights:            s.Insights(),
	}
}
