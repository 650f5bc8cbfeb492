package rolling

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWindow_EvictsOldestFirst(t *testing.T) {
	w := New[float64](3)
	w.Append(1, 2, 3, 4, 5)

	assert.Equal(t, 3, w.Len())
	assert.Equal(t, []float64{3, 4, 5}, w.Values())
}

func TestWindow_LenNeverExceedsCap(t *testing.T) {
	w := New[int](7)
	for i := 0; i < 100; i++ {
		w.Push(i)
		assert.LessOrEqual(t, w.Len(), w.Cap())
	}
}

func TestWindow_Tail(t *testing.T) {
	w := New[float32](5)
	w.Append(1, 2, 3, 4, 5, 6)

	assert.Equal(t, []float32{5, 6}, w.Tail(2))
	assert.Equal(t, []float32{2, 3, 4, 5, 6}, w.Tail(50))
	assert.Empty(t, w.Tail(0))
}

func TestWindow_Statistics(t *testing.T) {
	w := New[float64](10)
	w.Append(2, 4, 4, 4, 5, 5, 7, 9)

	assert.InDelta(t, 5.0, w.Mean(), 1e-12)
	assert.InDelta(t, 2.0, w.Std(), 1e-12)
	assert.InDelta(t, 4.5, w.Median(), 1e-12)
	assert.InDelta(t, 40.0, w.Sum(), 1e-12)
}

func TestWindow_EmptyStatisticsAreZero(t *testing.T) {
	w := New[float64](4)

	assert.Zero(t, w.Mean())
	assert.Zero(t, w.Std())
	assert.Zero(t, w.Median())
}

func TestWindow_Reset(t *testing.T) {
	w := New[int](3)
	w.Append(1, 2, 3)
	w.Reset()

	assert.Zero(t, w.Len())
	assert.Equal(t, 3, w.Cap())
	w.Push(9)
	assert.Equal(t, []int{9}, w.Values())
}

func TestMedian(t *testing.T) {
	tests := []struct {
		in       []float64
		expected float64
	}{
		{nil, 0},
		{[]float64{3}, 3},
		{[]float64{3, 1, 2}, 2},
		{[]float64{80, 70, 120, 75}, 77.5},
	}

	for _, tt := range tests {
		assert.InDelta(t, tt.expected, Median(tt.in), 1e-12, "median of %v", tt.in)
	}
}

func TestMedian_DoesNotReorderInput(t *testing.T) {
	in := []float64{3, 1, 2}
	Median(in)
	assert.Equal(t, []float64{3, 1, 2}, in)
}

func TestSyncWindow_ConcurrentAppendAndTail(t *testing.T) {
	s := NewSync[float32](1000)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		chunk := make([]float32, 100)
		for i := range chunk {
			chunk[i] = 1
		}
		for i := 0; i < 200; i++ {
			s.Append(chunk...)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			tail := s.Tail(100)
			for _, v := range tail {
				if v != 1 {
					t.Errorf("torn read: %v", v)
					return
				}
			}
		}
	}()
	wg.Wait()

	assert.Equal(t, 1000, s.Len())
	s.Reset()
	assert.Zero(t, s.Len())
	assert.Equal(t, 1000, s.Cap())
}
