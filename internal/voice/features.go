package voice

import (
	"liedar/internal/dsp"
)

// Shimmer frames.
const (
	shimmerFrame = 512
	shimmerHop   = 256
)

// maxPerturbation caps jitter and shimmer percentages.
const maxPerturbation = 100.0

// Jitter is the mean absolute difference of consecutive pitch periods as a
// percentage of the mean period. Fewer than two voiced frames give 0.
func Jitter(f0 []float64) float64 {
	if len(f0) < 2 {
		return 0
	}
	periods := make([]float64, len(f0))
	for i, f := range f0 {
		periods[i] = 1 / (f + dsp.Epsilon)
	}
	pct, ok := dsp.MeanAbsDiffRatio(periods)
	if !ok {
		return 0
	}
	return dsp.Clamp(pct, 0, maxPerturbation)
}

// Shimmer is the mean absolute difference of consecutive frame RMS
// amplitudes as a percentage of the mean amplitude. Silence gives 0.
func Shimmer(x []float64) float64 {
	rms := dsp.FrameRMS(x, shimmerFrame, shimmerHop)
	if len(rms) < 2 {
		return 0
	}
	var sum float64
	for _, v := range rms {
		sum += v
	}
	if sum/float64(len(rms)) < dsp.Epsilon {
		return 0
	}
	pct, ok := dsp.MeanAbsDiffRatio(rms)
	if !ok {
		return 0
	}
	return dsp.Clamp(pct, 0, maxPerturbation)
}

// Energy is the RMS of the whole window.
func Energy(x []float64) float64 {
	return dsp.RMS(x)
}
