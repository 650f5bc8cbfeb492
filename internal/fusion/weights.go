package fusion

import (
	"errors"
	"fmt"
	"math"
)

var ErrInvalidWeights = errors.New("fusion: invalid modality weights")

// Weights is the share of each modality in the combined stress. A valid
// Weights is non-negative and sums to 1.
type Weights struct {
	Facial float64 `json:"facial" yaml:"facial"`
	Voice  float64 `json:"voice" yaml:"voice"`
	Pulse  float64 `json:"pulse" yaml:"pulse"`
}

func DefaultWeights() Weights {
	return Weights{Facial: 0.4, Voice: 0.3, Pulse: 0.3}
}

// DegradedWeights moves the facial share onto voice and pulse, for sessions
// without a landmark source.
func DegradedWeights() Weights {
	return Weights{Facial: 0, Voice: 0.6, Pulse: 0.4}
}

// Sum returns Facial + Voice + Pulse.
func (w Weights) Sum() float64 {
	return w.Facial + w.Voice + w.Pulse
}

// Normalize scales w to sum to 1. It fails if any share is negative or not
// finite, or if every share is zero.
func (w Weights) Normalize() (Weights, error) {
	for _, v := range []float64{w.Facial, w.Voice, w.Pulse} {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return Weights{}, fmt.Errorf("%+v: %w", w, ErrInvalidWeights)
		}
	}
	total := w.Sum()
	if total <= 0 {
		return Weights{}, fmt.Errorf("%+v sums to zero: %w", w, ErrInvalidWeights)
	}
	return Weights{Facial: w.Facial / total, Voice: w.Voice / total, Pulse: w.Pulse / total}, nil
}

// WeightOption overrides one share in an update.
type WeightOption func(*Weights)

func Facial(v float64) WeightOption { return func(w *Weights) { w.Facial = v } }
func Voice(v float64) WeightOption  { return func(w *Weights) { w.Voice = v } }
func Pulse(v float64) WeightOption  { return func(w *Weights) { w.Pulse = v } }
