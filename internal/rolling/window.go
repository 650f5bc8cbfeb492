// Package rolling provides the bounded sample histories every scorer builds its
// baselines on.
package rolling

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Number is the set of sample types a Window can hold.
type Number interface {
	~int | ~int32 | ~int64 | ~float32 | ~float64
}

// Window is a fixed-capacity FIFO of samples. Once full, every Push evicts the
// oldest sample, so Len never exceeds Cap.
type Window[T Number] struct {
	buf   []T
	start int
	size  int
}

// New creates an empty Window holding at most capacity samples.
func New[T Number](capacity int) *Window[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Window[T]{buf: make([]T, capacity)}
}

// Push appends v, evicting the oldest sample when the window is full.
func (w *Window[T]) Push(v T) {
	if w.size < len(w.buf) {
		w.buf[(w.start+w.size)%len(w.buf)] = v
		w.size++
		return
	}
	w.buf[w.start] = v
	w.start = (w.start + 1) % len(w.buf)
}

// Append pushes every value in order.
func (w *Window[T]) Append(vs ...T) {
	for _, v := range vs {
		w.Push(v)
	}
}

func (w *Window[T]) Len() int { return w.size }

func (w *Window[T]) Cap() int { return len(w.buf) }

// Values returns a copy of the samples, oldest first.
func (w *Window[T]) Values() []T {
	return w.Tail(w.size)
}

// Tail returns a copy of the n most recent samples, oldest first. If fewer
// than n samples are held, all of them are returned.
func (w *Window[T]) Tail(n int) []T {
	if n > w.size {
		n = w.size
	}
	if n <= 0 {
		return []T{}
	}
	out := make([]T, n)
	offset := w.size - n
	for i := 0; i < n; i++ {
		out[i] = w.buf[(w.start+offset+i)%len(w.buf)]
	}
	return out
}

// Float64s returns the samples converted to float64, oldest first.
func (w *Window[T]) Float64s() []float64 {
	out := make([]float64, w.size)
	for i := 0; i < w.size; i++ {
		out[i] = float64(w.buf[(w.start+i)%len(w.buf)])
	}
	return out
}

// Sum returns the sum of all samples, 0 when empty.
func (w *Window[T]) Sum() float64 {
	var s float64
	for i := 0; i < w.size; i++ {
		s += float64(w.buf[(w.start+i)%len(w.buf)])
	}
	return s
}

// Mean returns the arithmetic mean, 0 when empty.
func (w *Window[T]) Mean() float64 {
	if w.size == 0 {
		return 0
	}
	return stat.Mean(w.Float64s(), nil)
}

// Std returns the population standard deviation, 0 when empty.
func (w *Window[T]) Std() float64 {
	if w.size == 0 {
		return 0
	}
	return stat.PopStdDev(w.Float64s(), nil)
}

// Median returns the middle sample, averaging the two middle samples for an
// even count. 0 when empty.
func (w *Window[T]) Median() float64 {
	return Median(w.Float64s())
}

// Reset drops every sample; capacity is unchanged.
func (w *Window[T]) Reset() {
	w.start = 0
	w.size = 0
}

// Median returns the median of xs without modifying it. 0 for an empty slice.
func Median(xs []float64) float64 {
	n := len(xs)
	if n == 0 {
		return 0
	}
	sorted := make([]float64, n)
	copy(sorted, xs)
	sort.Float64s(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
