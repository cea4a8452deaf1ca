package posture

import "fmt"

// Status posture quality bucket derived from a score
type Status int

const (
	StatusGood Status = iota
	StatusNeedsImprovement
	StatusPoor
)

const (
	goodThreshold             = 80.0
	needsImprovementThreshold = 50.0
)

// Classify buckets a score. Boundary values fall into the lower bucket.
func Classify(score float64) Status {
	switch {
	case score > goodThreshold:
		return StatusGood
	case score > needsImprovementThreshold:
		return StatusNeedsImprovement
	default:
		return StatusPoor
	}
}

func (s Status) String() string {
	switch s {
	case StatusGood:
		return "good"
	case StatusNeedsImprovement:
		return "needsImprovement"
	case StatusPoor:
		return "poor"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Label short human readable name
func (s Status) Label() string {
	switch s {
	case StatusGood:
		return "Good Posture"
	case StatusNeedsImprovement:
		return "Needs Improvement"
	case StatusPoor:
		return "Poor Posture"
	default:
		return "Unknown"
	}
}

// Description guidance line shown next to the score
func (s Status) Description() string {
	switch s {
	case StatusGood:
		return "Your posture looks great! Keep it up."
	case StatusNeedsImprovement:
		return "Minor posture adjustments recommended."
	case StatusPoor:
		return "Significant posture issues detected. Take action!"
	default:
		return ""
	}
}

// MarshalText encodes the status by name so cached snapshots stay readable.
func (s Status) MarshalText() ([]byte, error) {
	switch s {
	case StatusGood, StatusNeedsImprovement, StatusPoor:
		return []byte(s.String()), nil
	default:
		return nil, fmt.Errorf("invalid posture status: %d", int(s))
	}
}

// UnmarshalText accepts the names produced by MarshalText
func (s *Status) UnmarshalText(text []byte) error {
	switch string(text) {
	case "good":
		*s = StatusGood
	case "needsImprovement":
		*s = StatusNeedsImprovement
	case "poor":
		*s = StatusPoor
	default:
		return fmt.Errorf("invalid posture status: %q", string(text))
	}
	return nil
}
