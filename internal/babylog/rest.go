package babylog

import (
	"sync"
	"time"
)

// RestDuration is the length of the pause between feedings.
const RestDuration = 180 * time.Second

// RestCountdown counts down the rest period after a feeding is logged.
// It lives only in memory; a restart of the process drops it.
type RestCountdown struct {
	mu        sync.Mutex
	clock     Clock
	scheduler Scheduler
	notifier  Notifier

	duration time.Duration
	endsAt   time.Time
	stop     func()
	onTick   func(remaining time.Duration)
	closed   bool
	done     chan struct{}
}

// NewRestCountdown creates a countdown of the given length. Call Start to run it.
func NewRestCountdown(clock Clock, scheduler Scheduler, notifier Notifier, duration time.Duration) *RestCountdown {
	return &RestCountdown{
		clock:     clock,
		scheduler: scheduler,
		notifier:  notifier,
		duration:  duration,
		done:      make(chan struct{}),
	}
}

// Start begins ticking once per second.
func (r *RestCountdown) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || r.stop != nil {
		return
	}
	r.endsAt = r.clock.Now().Add(r.duration)
	r.stop = r.scheduler.Every(time.Second, r.tick)
}

// OnTick registers a callback receiving the remaining time on every tick.
func (r *RestCountdown) OnTick(fn func(remaining time.Duration)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onTick = fn
}

// Remaining returns the time left, rounded to whole seconds.
func (r *RestCountdown) Remaining() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.remainingLocked()
}

// Closed reports whether the rest panel has been closed.
func (r *RestCountdown) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// Done is closed when the countdown is skipped, or after the rest-over
// notification when it completes.
func (r *RestCountdown) Done() <-chan struct{} {
	return r.done
}

// Skip closes the panel immediately without the rest-over notification.
func (r *RestCountdown) Skip() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closeLocked() {
		close(r.done)
	}
}

func (r *RestCountdown) tick() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	remaining := r.remainingLocked()
	fn := r.onTick
	finished := remaining <= 0
	if finished {
		r.closeLocked()
	}
	r.mu.Unlock()

	if fn != nil {
		fn(remaining)
	}
	if finished {
		r.notifier.Notify("Rest over")
		close(r.done)
	}
}

func (r *RestCountdown) remainingLocked() time.Duration {
	if r.closed {
		return 0
	}
	if r.endsAt.IsZero() {
		return r.duration
	}
	remaining := r.endsAt.Sub(r.clock.Now())
	if remaining <= 0 {
		return 0
	}
	return remaining.Round(time.Second)
}

// closeLocked marks the countdown closed and stops ticking. It reports
// whether this call closed it; that caller then owns closing done.
func (r *RestCountdown) closeLocked() bool {
	if r.closed {
		return false
	}
	r.closed = true
	if r.stop != nil {
		r.stop()
		r.stop = nil
	}
	return true
}
