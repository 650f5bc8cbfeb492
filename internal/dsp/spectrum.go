package dsp

import "gonum.org/v1/gonum/dsp/fourier"

// DominantFrequency returns the positive frequency in [lowHz, highHz] with
// the largest spectral power of x sampled at sampleRate. ok is false when no
// frequency bin falls inside the band.
func DominantFrequency(x []float64, sampleRate, lowHz, highHz float64) (freq float64, ok bool) {
	if len(x) < 2 || sampleRate <= 0 {
		return 0, false
	}
	fft := fourier.NewFFT(len(x))
	coeffs := fft.Coefficients(nil, x)

	var best float64
	// Bins 1..(n-1)/2 are the strictly positive frequencies below Nyquist.
	for i := 1; i <= (len(x)-1)/2 && i < len(coeffs); i++ {
		f := fft.Freq(i) * sampleRate
		if f < lowHz || f > highHz {
			continue
		}
		c := coeffs[i]
		power := real(c)*real(c) + imag(c)*imag(c)
		if !ok || power > best {
			best = power
			freq = f
			ok = true
		}
	}
	return freq, ok
}
