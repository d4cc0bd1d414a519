package testutil

import (
	"sync"
	"time"
)

// RecordingSleeper satisfies the pacing Sleeper interfaces without spending
// wall time, recording every requested delay.
type RecordingSleeper struct {
	mu     sync.Mutex
	sleeps []time.Duration
}

// Sleep records d and returns immediately.
func (s *RecordingSleeper) Sleep(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sleeps = append(s.sleeps, d)
}

// Sleeps returns a copy of the recorded delays in call order.
func (s *RecordingSleeper) Sleeps() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]time.Duration, len(s.sleeps))
	copy(out, s.sleeps)
	return out
}

// Total returns the sum of all recorded delays.
func (s *RecordingSleeper) Total() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total time.Duration
	for _, d := range s.sleeps {
		total += d
	}
	return total
}
