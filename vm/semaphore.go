package vm

import "sync"

// Semaphore is a counting semaphore initialized to 1/1:
// RTOS_SEMAPHORE_CREATE always produces a binary semaphore; Take/Give move
// its count between 0 and Max.
type Semaphore struct {
	mu    sync.Mutex
	Count int
	Max   int
}

func NewSemaphore() *Semaphore {
	return &Semaphore{Count: 1, Max: 1}
}

// Take decrements the count and reports true if it was available,
// false (no-op) if the semaphore was already at zero.
func (s *Semaphore) Take() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Count <= 0 {
		return false
	}
	s.Count--
	return true
}

// Give increments the count up to Max.
func (s *Semaphore) Give() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Count < s.Max {
		s.Count++
	}
}
