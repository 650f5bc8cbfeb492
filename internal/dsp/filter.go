package dsp

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// LFilter runs x through the filter in direct form II transposed. zi holds
// the initial delay-line state (len(A)-1 values) and may be nil for a zero
// initial state.
func LFilter(c Coefficients, x, zi []float64) []float64 {
	b, a := c.padded()
	m := len(a) - 1
	z := make([]float64, m)
	copy(z, zi)

	y := make([]float64, len(x))
	for n, xn := range x {
		if m == 0 {
			y[n] = b[0] * xn
			continue
		}
		yn := b[0]*xn + z[0]
		for i := 0; i < m-1; i++ {
			z[i] = b[i+1]*xn + z[i+1] - a[i+1]*yn
		}
		z[m-1] = b[m]*xn - a[m]*yn
		y[n] = yn
	}
	return y
}

// LFilterZi returns the steady-state delay-line state for a unit step input,
// so that filtering can start without a transient.
func LFilterZi(c Coefficients) ([]float64, error) {
	b, a := c.padded()
	m := len(a) - 1
	if m == 0 {
		return nil, nil
	}

	// (I - companion(a)^T) zi = b[1:] - a[1:]*b[0]
	lhs := mat.NewDense(m, m, nil)
	rhs := mat.NewVecDense(m, nil)
	for i := 0; i < m; i++ {
		lhs.Set(i, 0, a[i+1])
		if i+1 < m {
			lhs.Set(i, i+1, -1)
		}
		rhs.SetVec(i, b[i+1]-a[i+1]*b[0])
	}
	for i := 0; i < m; i++ {
		lhs.Set(i, i, lhs.At(i, i)+1)
	}

	var zi mat.VecDense
	if err := zi.SolveVec(lhs, rhs); err != nil {
		return nil, fmt.Errorf("solve filter initial state: %w", err)
	}
	return zi.RawVector().Data, nil
}

// FiltFilt applies the filter forwards and backwards for zero phase
// distortion. The signal is extended at both ends by odd reflection of
// 3*len(A) samples (fewer for short signals).
func FiltFilt(c Coefficients, x []float64) ([]float64, error) {
	edge := 3 * max(len(c.A), len(c.B))
	if len(x) <= edge {
		edge = len(x) - 1
	}
	if edge < 1 {
		return nil, fmt.Errorf("%d samples: %w", len(x), ErrSignalTooShort)
	}

	zi, err := LFilterZi(c)
	if err != nil {
		return nil, err
	}

	ext := oddExtend(x, edge)

	y := LFilter(c, ext, scaled(zi, ext[0]))
	reverse(y)
	y = LFilter(c, y, scaled(zi, y[0]))
	reverse(y)

	return y[edge : len(y)-edge], nil
}

// padded returns B and A normalized so that A[0] == 1 and padded with zeros
// to the same length.
func (c Coefficients) padded() (b, a []float64) {
	n := max(len(c.A), len(c.B))
	b = make([]float64, n)
	a = make([]float64, n)
	copy(b, c.B)
	copy(a, c.A)
	if a[0] != 0 && a[0] != 1 {
		a0 := a[0]
		for i := range a {
			a[i] /= a0
			b[i] /= a0
		}
	}
	return b, a
}

func oddExtend(x []float64, edge int) []float64 {
	n := len(x)
	ext := make([]float64, 0, n+2*edge)
	for i := edge; i >= 1; i-- {
		ext = append(ext, 2*x[0]-x[i])
	}
	ext = append(ext, x...)
	for i := n - 2; i >= n-1-edge; i-- {
		ext = append(ext, 2*x[n-1]-x[i])
	}
	return ext
}

func scaled(v []float64, k float64) []float64 {
	out := make([]float64, len(v))
	for i := range v {
		out[i] = v[i] * k
	}
	return out
}

func reverse(x []float64) {
	for i, j := 0, len(x)-1; i < j; i, j = i+1, j-1 {
		x[i], x[j] = x[j], x[i]
	}
}
