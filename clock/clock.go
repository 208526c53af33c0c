/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package clock lets room timers be driven by a fake clock in tests.
//
// Code that schedules work takes a Clock instead of calling time.Now,
// time.AfterFunc or time.NewTicker directly. Real() wraps the time
// package; Fake() returns a clock that only moves when Advance is called.
package clock

import "time"

type Clock interface {
	Now() time.Time

	// AfterFunc calls f in its own goroutine (real) or synchronously
	// during Advance (fake) once d has elapsed.
	AfterFunc(d time.Duration, f func()) *Timer

	// NewTicker panics if d <= 0.
	NewTicker(d time.Duration) *Ticker
}

type Timer struct {
	stopFunc func() bool
}

// Stop reports whether the call prevented the timer from firing.
func (t *Timer) Stop() bool {
	if t == nil || t.stopFunc == nil {
		return false
	}
	return t.stopFunc()
}

// Ticker delivers ticks on C, dropping them if the reader falls behind.
type Ticker struct {
	C <-chan time.Time

	stopFunc func()
}

func (t *Ticker) Stop() { t.stopFunc() }
