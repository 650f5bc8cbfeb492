package dsp

import (
	"errors"
	"math"
	"math/cmplx"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sine(freq, rate float64, n int, amp float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = amp * math.Sin(2*math.Pi*freq*float64(i)/rate)
	}
	return out
}

func maxAbs(x []float64) float64 {
	var m float64
	for _, v := range x {
		m = math.Max(m, math.Abs(v))
	}
	return m
}

// response evaluates |H(e^jw)| at frequency f for sample rate fs.
func response(c Coefficients, f, fs float64) float64 {
	z := cmplx.Exp(complex(0, 2*math.Pi*f/fs))
	var num, den complex128
	for i, b := range c.B {
		num += complex(b, 0) * cmplx.Pow(z, complex(-float64(i), 0))
	}
	for i, a := range c.A {
		den += complex(a, 0) * cmplx.Pow(z, complex(-float64(i), 0))
	}
	return cmplx.Abs(num / den)
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 0.0, Clamp(-5, 0, 100))
	assert.Equal(t, 100.0, Clamp(150, 0, 100))
	assert.Equal(t, 42.0, Clamp(42, 0, 100))
	assert.Equal(t, 0.0, Clamp(math.NaN(), 0, 100))
}

func TestDetrend_RemovesLinearTrend(t *testing.T) {
	x := make([]float64, 50)
	for i := range x {
		x[i] = 3 + 2*float64(i)
	}

	for _, v := range Detrend(x) {
		assert.InDelta(t, 0, v, 1e-9)
	}
}

func TestDetrend_KeepsOscillation(t *testing.T) {
	osc := sine(1, 30, 300, 1)
	x := make([]float64, len(osc))
	for i := range x {
		x[i] = osc[i] + 100 + 0.5*float64(i)
	}

	d := Detrend(x)
	assert.InDelta(t, 1.0, maxAbs(d), 0.15)
}

func TestNormalizedBand(t *testing.T) {
	low, high, err := NormalizedBand(0.8, 3.0, 30)
	require.NoError(t, err)
	assert.InDelta(t, 0.8/15, low, 1e-12)
	assert.InDelta(t, 0.2, high, 1e-12)
}

func TestNormalizedBand_Degenerate(t *testing.T) {
	_, _, err := NormalizedBand(0.8, 3.0, 1)
	assert.True(t, errors.Is(err, ErrDegenerateBand))

	_, _, err = NormalizedBand(0.8, 3.0, 0)
	assert.True(t, errors.Is(err, ErrDegenerateBand))
}

func TestButterBandpass_Shape(t *testing.T) {
	low, high, err := NormalizedBand(0.8, 3.0, 30)
	require.NoError(t, err)

	c, err := ButterBandpass(3, low, high)
	require.NoError(t, err)
	require.Len(t, c.B, 7)
	require.Len(t, c.A, 7)
	assert.InDelta(t, 1.0, c.A[0], 1e-12)

	assert.InDelta(t, 1.0, response(c, math.Sqrt(0.8*3.0), 30), 0.02, "center of band")
	assert.InDelta(t, 1/math.Sqrt2, response(c, 0.8, 30), 0.02, "lower edge is -3dB")
	assert.InDelta(t, 1/math.Sqrt2, response(c, 3.0, 30), 0.02, "upper edge is -3dB")
	assert.Less(t, response(c, 0, 30), 1e-6, "DC blocked")
	assert.Less(t, response(c, 15, 30), 1e-6, "Nyquist blocked")
}

func TestButterBandpass_RejectsBadBand(t *testing.T) {
	_, err := ButterBandpass(3, 0.5, 0.2)
	assert.True(t, errors.Is(err, ErrDegenerateBand))

	_, err = ButterBandpass(0, 0.1, 0.2)
	assert.Error(t, err)
}

func TestLFilterZi_SteadyStateStep(t *testing.T) {
	low, high, _ := NormalizedBand(0.8, 3.0, 30)
	c, err := ButterBandpass(3, low, high)
	require.NoError(t, err)

	zi, err := LFilterZi(c)
	require.NoError(t, err)
	require.Len(t, zi, 6)

	ones := make([]float64, 20)
	for i := range ones {
		ones[i] = 1
	}
	dc := response(c, 0, 30)
	for _, v := range LFilter(c, ones, zi) {
		assert.InDelta(t, dc, v, 1e-9)
	}
}

func TestFiltFilt_PassesBandRejectsOutside(t *testing.T) {
	low, high, _ := NormalizedBand(0.8, 3.0, 30)
	c, err := ButterBandpass(3, low, high)
	require.NoError(t, err)

	in, err := FiltFilt(c, sine(1.5, 30, 300, 1))
	require.NoError(t, err)
	require.Len(t, in, 300)
	assert.InDelta(t, 1.0, maxAbs(in[100:200]), 0.05)

	out, err := FiltFilt(c, sine(8, 30, 300, 1))
	require.NoError(t, err)
	assert.Less(t, maxAbs(out[100:200]), 0.1)
}

func TestFiltFilt_ShortSignal(t *testing.T) {
	c := Coefficients{B: []float64{0.5, 0.5}, A: []float64{1, 0}}

	_, err := FiltFilt(c, []float64{1})
	assert.True(t, errors.Is(err, ErrSignalTooShort))

	y, err := FiltFilt(c, []float64{1, 1, 1})
	require.NoError(t, err)
	assert.Len(t, y, 3)
}

func TestDominantFrequency(t *testing.T) {
	x := sine(1.2, 30, 300, 1)
	for i := range x {
		x[i] += 0.3 * math.Sin(2*math.Pi*6*float64(i)/30)
	}

	f, ok := DominantFrequency(x, 30, 0.8, 3.0)
	require.True(t, ok)
	assert.InDelta(t, 1.2, f, 1e-9)
}

func TestDominantFrequency_NoBinInBand(t *testing.T) {
	_, ok := DominantFrequency(sine(1, 30, 4, 1), 30, 0.8, 3.0)
	assert.False(t, ok)

	_, ok = DominantFrequency(nil, 30, 0.8, 3.0)
	assert.False(t, ok)
}

func TestFrameRMS(t *testing.T) {
	x := make([]float64, 1024)
	for i := range x {
		x[i] = 0.5
	}

	frames := FrameRMS(x, 512, 256)
	require.Len(t, frames, 3)
	for _, v := range frames {
		assert.InDelta(t, 0.5, v, 1e-12)
	}
	assert.Nil(t, FrameRMS(x[:100], 512, 256))
}

func TestPeakNormalize(t *testing.T) {
	assert.Equal(t, []float64{0.5, -1, 0.25}, PeakNormalize([]float64{2, -4, 1}))
	assert.Equal(t, []float64{0, 0}, PeakNormalize([]float64{0, 0}))
}

func TestMeanAbsDiffRatio(t *testing.T) {
	pct, ok := MeanAbsDiffRatio([]float64{1, 1.1, 1, 1.1})
	require.True(t, ok)
	assert.InDelta(t, 0.1/1.05*100, pct, 1e-3)

	_, ok = MeanAbsDiffRatio([]float64{1})
	assert.False(t, ok)
}
