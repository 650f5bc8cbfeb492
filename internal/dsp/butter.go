package dsp

import (
	"fmt"
	"math"
	"math/cmplx"
)

const (
	minNormalized = 0.001
	maxNormalized = 0.999
)

// Coefficients is a digital transfer function B(z)/A(z) with A[0] == 1.
type Coefficients struct {
	B []float64
	A []float64
}

// NormalizedBand converts a pass band in Hz into fractions of the Nyquist
// frequency, clamped to [0.001, 0.999]. It returns ErrDegenerateBand when the
// clamped edges do not form an interval.
func NormalizedBand(lowHz, highHz, sampleRate float64) (low, high float64, err error) {
	if sampleRate <= 0 {
		return 0, 0, fmt.Errorf("sample rate %v: %w", sampleRate, ErrDegenerateBand)
	}
	nyquist := sampleRate / 2
	low = Clamp(lowHz/nyquist, minNormalized, maxNormalized)
	high = Clamp(highHz/nyquist, minNormalized, maxNormalized)
	if low >= high {
		return low, high, fmt.Errorf("band [%.3f, %.3f]: %w", low, high, ErrDegenerateBand)
	}
	return low, high, nil
}

// ButterBandpass designs a digital Butterworth band-pass filter of the given
// prototype order. low and high are normalized to Nyquist. The result has
// 2*order+1 coefficients in each polynomial.
func ButterBandpass(order int, low, high float64) (Coefficients, error) {
	if order < 1 {
		return Coefficients{}, fmt.Errorf("dsp: filter order %d", order)
	}
	if !(low > 0 && high < 1 && low < high) {
		return Coefficients{}, fmt.Errorf("band [%.3f, %.3f]: %w", low, high, ErrDegenerateBand)
	}

	// Pre-warp the edges for the bilinear transform (fs = 2).
	const fs = 2.0
	wl := 2 * fs * math.Tan(math.Pi*low/fs)
	wh := 2 * fs * math.Tan(math.Pi*high/fs)
	bw := wh - wl
	wo := math.Sqrt(wl * wh)

	// Analog low-pass prototype poles on the left half of the unit circle.
	n := float64(order)
	poles := make([]complex128, 0, 2*order)
	for k := 0; k < order; k++ {
		m := float64(-order + 1 + 2*k)
		p := -cmplx.Exp(complex(0, math.Pi*m/(2*n)))

		// Low-pass to band-pass: every pole splits in two.
		lp := p * complex(bw/2, 0)
		root := cmplx.Sqrt(lp*lp - complex(wo*wo, 0))
		poles = append(poles, lp+root, lp-root)
	}
	gain := math.Pow(bw, n)

	// Bilinear transform. The order zeros at s=0 map to z=1, the order zeros
	// at infinity map to z=-1.
	const fs2 = 2 * fs
	zerosZ := make([]complex128, 0, 2*order)
	for i := 0; i < order; i++ {
		zerosZ = append(zerosZ, 1)
	}
	for i := 0; i < order; i++ {
		zerosZ = append(zerosZ, -1)
	}
	polesZ := make([]complex128, len(poles))
	num := complex(math.Pow(fs2, n), 0)
	den := complex(1, 0)
	for i, p := range poles {
		polesZ[i] = (fs2 + p) / (fs2 - p)
		den *= fs2 - p
	}
	k := gain * real(num/den)

	b := poly(zerosZ)
	for i := range b {
		b[i] *= k
	}
	return Coefficients{B: b, A: poly(polesZ)}, nil
}

// poly expands prod(x - r) and returns the real parts of its coefficients,
// highest power first.
func poly(roots []complex128) []float64 {
	c := make([]complex128, len(roots)+1)
	c[0] = 1
	for i, r := range roots {
		for j := i + 1; j > 0; j-- {
			c[j] -= r * c[j-1]
		}
	}
	out := make([]float64, len(c))
	for i, v := range c {
		out[i] = real(v)
	}
	return out
}
