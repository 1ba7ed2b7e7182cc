package babylog

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Clock abstracts time retrieval so business logic is deterministic in tests.
type Clock interface {
	Now() time.Time
}

// RealClock returns the actual current time.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// Scheduler runs fn every interval until the returned stop function is called.
// Stop is idempotent and may be called from inside fn.
type Scheduler interface {
	Every(interval time.Duration, fn func()) (stop func())
}

// RealScheduler drives callbacks from a time.Ticker on its own goroutine.
type RealScheduler struct{}

func (RealScheduler) Every(interval time.Duration, fn func()) func() {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-ticker.C:
				select {
				case <-done:
					return
				default:
				}
				fn()
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			ticker.Stop()
			close(done)
		})
	}
}

// IDGenerator abstracts unique ID generation so tests are deterministic.
type IDGenerator interface {
	New() string
}

// UUIDGenerator produces record IDs of the form "rec" + random UUID.
type UUIDGenerator struct{}

func (UUIDGenerator) New() string { return "rec" + uuid.New().String() }
