package encounter

import (
	"sync"
	"time"
)

// TurnTimer fires a callback after a configurable duration unless stopped or reset.
// It is safe for concurrent use.
type TurnTimer struct {
	mu         sync.Mutex
	timer      *time.Timer
	generation uint64
	stopped    bool
}

// NewTurnTimer creates and starts a timer that calls onFire after duration.
// onFire is called in a separate goroutine.
//
// Precondition: duration > 0; onFire must not be nil.
// Postcondition: Returns a running TurnTimer; onFire will be called unless Stop or Reset is called first.
func NewTurnTimer(duration time.Duration, onFire func()) *TurnTimer {
	tt := &TurnTimer{}
	tt.Reset(duration, onFire)
	return tt
}

// Reset cancels the pending callback and arms a new one.
//
// Precondition: duration > 0; onFire must not be nil.
// Postcondition: only the newest onFire can run, after duration from now unless Stop is called first.
func (tt *TurnTimer) Reset(duration time.Duration, onFire func()) {
	tt.mu.Lock()
	defer tt.mu.Unlock()
	if tt.timer != nil {
		tt.timer.Stop()
	}
	tt.generation++
	gen := tt.generation
	tt.stopped = false
	tt.timer = time.AfterFunc(duration, func() {
		tt.mu.Lock()
		live := !tt.stopped && tt.generation == gen
		tt.mu.Unlock()
		if live {
			onFire()
		}
	})
}

// Stop prevents the callback from firing. Safe to call multiple times.
//
// Postcondition: onFire will not be called after Stop returns.
func (tt *TurnTimer) Stop() {
	tt.mu.Lock()
	defer tt.mu.Unlock()
	tt.stopped = true
	if tt.timer != nil {
		tt.timer.Stop()
	}
}
