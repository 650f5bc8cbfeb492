package dsp

import "gonum.org/v1/gonum/stat"

// Detrend removes the least-squares linear fit (and therefore the mean)
// from x.
func Detrend(x []float64) []float64 {
	out := make([]float64, len(x))
	if len(x) < 2 {
		return out
	}
	t := make([]float64, len(x))
	for i := range t {
		t[i] = float64(i)
	}
	alpha, beta := stat.LinearRegression(t, x, nil, false)
	for i, v := range x {
		out[i] = v - (alpha + beta*t[i])
	}
	return out
}
