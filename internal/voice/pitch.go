package voice

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// PitchTracker estimates the fundamental frequency of short overlapping
// frames with the YIN cumulative mean normalized difference.
type PitchTracker struct {
	SampleRate int
	FrameLen   int
	Hop        int
	MinHz      float64
	MaxHz      float64
	// Threshold is the largest normalized difference still counted as
	// voiced.
	Threshold float64
	// Silence is the frame RMS below which a frame is unvoiced outright.
	Silence float64
}

// NewPitchTracker covers C2 to C7 with 2048-sample frames every 512 samples.
func NewPitchTracker(sampleRate int) PitchTracker {
	return PitchTracker{
		SampleRate: sampleRate,
		FrameLen:   2048,
		Hop:        512,
		MinHz:      65.41,
		MaxHz:      2093.0,
		Threshold:  0.15,
		Silence:    1e-3,
	}
}

// Pitch is the estimate for one frame. F0 is 0 when Voiced is false.
type Pitch struct {
	F0     float64
	Voiced bool
}

// Track returns one Pitch per full frame of x.
func (t PitchTracker) Track(x []float64) []Pitch {
	minLag := int(math.Floor(float64(t.SampleRate) / t.MaxHz))
	maxLag := int(math.Ceil(float64(t.SampleRate) / t.MinHz))
	minLag = max(minLag, 2)
	if t.FrameLen <= 0 || t.Hop <= 0 || maxLag >= t.FrameLen || len(x) < t.FrameLen {
		return nil
	}

	width := t.FrameLen - maxLag
	diff := make([]float64, maxLag+1)
	var out []Pitch
	for start := 0; start+t.FrameLen <= len(x); start += t.Hop {
		frame := x[start : start+t.FrameLen]
		out = append(out, t.frame(frame, width, minLag, maxLag, diff))
	}
	return out
}

func (t PitchTracker) frame(frame []float64, width, minLag, maxLag int, diff []float64) Pitch {
	var energy float64
	for _, v := range frame {
		energy += v * v
	}
	if math.Sqrt(energy/float64(len(frame))) < t.Silence {
		return Pitch{}
	}

	for lag := 1; lag <= maxLag; lag++ {
		var d float64
		for j := 0; j < width; j++ {
			delta := frame[j] - frame[j+lag]
			d += delta * delta
		}
		diff[lag] = d
	}

	// Cumulative mean normalization, in place.
	diff[0] = 1
	var running float64
	for lag := 1; lag <= maxLag; lag++ {
		running += diff[lag]
		if running == 0 {
			diff[lag] = 1
			continue
		}
		diff[lag] *= float64(lag) / running
	}

	lag := -1
	for tau := minLag; tau <= maxLag; tau++ {
		if diff[tau] < t.Threshold {
			for tau+1 <= maxLag && diff[tau+1] < diff[tau] {
				tau++
			}
			lag = tau
			break
		}
	}
	if lag < 0 {
		return Pitch{}
	}

	f0 := float64(t.SampleRate) / refineLag(diff, lag, maxLag)
	if f0 < t.MinHz || f0 > t.MaxHz {
		return Pitch{}
	}
	return Pitch{F0: f0, Voiced: true}
}

// refineLag interpolates the minimum around lag with a parabola.
func refineLag(d []float64, lag, maxLag int) float64 {
	if lag < 1 || lag >= maxLag {
		return float64(lag)
	}
	a, b, c := d[lag-1], d[lag], d[lag+1]
	den := a - 2*b + c
	if den == 0 {
		return float64(lag)
	}
	shift := 0.5 * (a - c) / den
	if math.Abs(shift) > 1 {
		return float64(lag)
	}
	return float64(lag) + shift
}

// Voiced returns the F0 of every voiced frame, in order.
func Voiced(ps []Pitch) []float64 {
	var out []float64
	for _, p := range ps {
		if p.Voiced {
			out = append(out, p.F0)
		}
	}
	return out
}

// PitchStats returns the mean and population standard deviation of f0,
// both 0 when f0 is empty.
func PitchStats(f0 []float64) (mean, std float64) {
	if len(f0) == 0 {
		return 0, 0
	}
	return stat.Mean(f0, nil), stat.PopStdDev(f0, nil)
}
