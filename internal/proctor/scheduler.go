package proctor

import (
	"sync"
	"time"
)

// Cancel stops a scheduled callback. It is safe to call more than once.
type Cancel func()

// Scheduler runs callbacks later. Callbacks of one periodic schedule are
// delivered in order.
type Scheduler interface {
	Every(d time.Duration, fn func()) Cancel
	After(d time.Duration, fn func()) Cancel
}

// WallScheduler schedules on the runtime timers.
type WallScheduler struct{}

// Every runs fn every d on a dedicated goroutine until cancelled.
func (WallScheduler) Every(d time.Duration, fn func()) Cancel {
	ticker := time.NewTicker(d)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-ticker.C:
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

// After runs fn once after d unless cancelled first.
func (WallScheduler) After(d time.Duration, fn func()) Cancel {
	t := time.AfterFunc(d, fn)
	return func() { t.Stop() }
}
