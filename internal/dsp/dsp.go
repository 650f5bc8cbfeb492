// Package dsp holds the numeric building blocks of the pulse and voice
// pipelines: linear detrending, Butterworth band-pass design, zero-phase
// filtering and spectral peak search.
package dsp

import (
	"errors"
	"math"
)

// Epsilon guards ratio denominators.
const Epsilon = 1e-6

var (
	// ErrDegenerateBand is returned when a pass band collapses after
	// normalization against the Nyquist frequency.
	ErrDegenerateBand = errors.New("dsp: degenerate pass band")
	// ErrSignalTooShort is returned when a signal cannot be padded for
	// zero-phase filtering.
	ErrSignalTooShort = errors.New("dsp: signal too short")
)

// Clamp limits v to [lo, hi]. NaN maps to lo.
func Clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// RMS returns the root mean square of x, 0 for an empty slice.
func RMS(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	var s float64
	for _, v := range x {
		s += v * v
	}
	return math.Sqrt(s / float64(len(x)))
}

// FrameRMS returns the RMS of every full frame of frameLen samples taken
// hop samples apart.
func FrameRMS(x []float64, frameLen, hop int) []float64 {
	if frameLen <= 0 || hop <= 0 || len(x) < frameLen {
		return nil
	}
	out := make([]float64, 0, (len(x)-frameLen)/hop+1)
	for start := 0; start+frameLen <= len(x); start += hop {
		out = append(out, RMS(x[start:start+frameLen]))
	}
	return out
}

// PeakNormalize scales x so its largest absolute sample is 1. A silent
// signal is returned unchanged.
func PeakNormalize(x []float64) []float64 {
	var peak float64
	for _, v := range x {
		if a := math.Abs(v); a > peak {
			peak = a
		}
	}
	out := make([]float64, len(x))
	copy(out, x)
	if peak == 0 {
		return out
	}
	for i := range out {
		out[i] /= peak
	}
	return out
}

// MeanAbsDiffRatio returns mean(|x[i+1]-x[i]|) / mean(x) as a percentage.
// ok is false when fewer than two samples are given.
func MeanAbsDiffRatio(x []float64) (pct float64, ok bool) {
	if len(x) < 2 {
		return 0, false
	}
	var diff, sum float64
	for i, v := range x {
		sum += v
		if i > 0 {
			diff += math.Abs(v - x[i-1])
		}
	}
	meanDiff := diff / float64(len(x)-1)
	mean := sum / float64(len(x))
	return meanDiff / (mean + Epsilon) * 100, true
}
