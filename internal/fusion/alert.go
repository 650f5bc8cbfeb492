package fusion

import (
	"fmt"
)

// AlertLevel classifies a honesty score.
type AlertLevel int

const (
	AlertLow AlertLevel = iota
	AlertMedium
	AlertHigh
)

// Honesty below HighStressBelow is high stress; below MediumStressBelow it
// is medium stress.
const (
	HighStressBelow   = 40.0
	MediumStressBelow = 60.0
)

// Classify maps a honesty score to an alert level.
func Classify(honesty float64) AlertLevel {
	switch {
	case honesty < HighStressBelow:
		return AlertHigh
	case honesty < MediumStressBelow:
		return AlertMedium
	default:
		return AlertLow
	}
}

func (a AlertLevel) String() string {
	switch a {
	case AlertLow:
		return "low_stress"
	case AlertMedium:
		return "medium_stress"
	case AlertHigh:
		return "high_stress"
	}
	return fmt.Sprintf("AlertLevel(%d)", int(a))
}

func (a AlertLevel) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *AlertLevel) UnmarshalText(b []byte) error {
	switch string(b) {
	case "low_stress":
		*a = AlertLow
	case "medium_stress":
		*a = AlertMedium
	case "high_stress":
		*a = AlertHigh
	default:
		return fmt.Errorf("fusion: unknown alert level %q", b)
	}
	return nil
}

// Interpret renders a one-line reading of the score for display.
func Interpret(honesty float64, level AlertLevel) string {
	switch level {
	case AlertHigh:
		return fmt.Sprintf("HIGH STRESS DETECTED (Score: %.1f/100). Multiple deception indicators present. Subject may be withholding truth.", honesty)
	case AlertMedium:
		return fmt.Sprintf("MODERATE STRESS (Score: %.1f/100). Mixed signals detected. Possible nervousness or mild deception.", honesty)
	default:
		return fmt.Sprintf("LOW STRESS (Score: %.1f/100). Minimal deception indicators. Subject appears truthful.", honesty)
	}
}
