package rolling

import "sync"

// SyncWindow is a Window safe for one producer appending while another
// goroutine reads trailing snapshots.
type SyncWindow[T Number] struct {
	mu sync.RWMutex
	w  *Window[T]
}

func NewSync[T Number](capacity int) *SyncWindow[T] {
	return &SyncWindow[T]{w: New[T](capacity)}
}

// Append pushes samples in order under a single lock, so a concurrent Tail
// sees either none or all of them.
func (s *SyncWindow[T]) Append(vs ...T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.w.Append(vs...)
}

// Tail returns a copy of the n most recent samples, oldest first.
func (s *SyncWindow[T]) Tail(n int) []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.w.Tail(n)
}

func (s *SyncWindow[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.w.Len()
}

func (s *SyncWindow[T]) Cap() int {
	return s.w.Cap()
}

func (s *SyncWindow[T]) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.w.Reset()
}
