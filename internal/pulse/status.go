package pulse

import "fmt"

// Status is the estimator state for one frame.
type Status int

const (
	StatusNoSignal Status = iota
	StatusBuffering
	StatusActive
)

var statusNames = map[Status]string{
	StatusNoSignal:  "no_signal",
	StatusBuffering: "buffering",
	StatusActive:    "active",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(b []byte) error {
	for status, name := range statusNames {
		if name == string(b) {
			*s = status
			return nil
		}
	}
	return fmt.Errorf("pulse: unknown status %q", b)
}
