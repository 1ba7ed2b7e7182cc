package testutil

import (
	"slices"
	"sync"
	"time"
)

// StubScheduler records periodic callbacks and runs them only when the test
// calls Tick. Safe for concurrent use.
type StubScheduler struct {
	mu     sync.Mutex
	nextID int
	jobs   map[int]*stubJob
}

type stubJob struct {
	interval time.Duration
	fn       func()
}

func NewStubScheduler() *StubScheduler {
	return &StubScheduler{jobs: make(map[int]*stubJob)}
}

func (s *StubScheduler) Every(interval time.Duration, fn func()) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := s.nextID
	s.jobs[id] = &stubJob{interval: interval, fn: fn}
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.jobs, id)
	}
}

// Tick runs every active callback once, in registration order.
// Callbacks may stop themselves or register new ones.
func (s *StubScheduler) Tick() {
	s.mu.Lock()
	ids := make([]int, 0, len(s.jobs))
	for id := range s.jobs {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	slices.Sort(ids)
	for _, id := range ids {
		s.mu.Lock()
		job, ok := s.jobs[id]
		s.mu.Unlock()
		if ok {
			job.fn()
		}
	}
}

// TickN advances clock by one second and ticks, n times.
func (s *StubScheduler) TickN(clock *StubClock, n int) {
	for range n {
		clock.Advance(time.Second)
		s.Tick()
	}
}

// Active returns the number of callbacks that have not been stopped.
func (s *StubScheduler) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}
