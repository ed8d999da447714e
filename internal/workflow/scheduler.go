package workflow

import "time"

// Scheduler schedules the delayed continuations auto-progress uses between
// steps. The delay exists so a driving UI can render intermediate state; it
// is not a correctness mechanism, and a scheduled continuation must re-check
// the auto-progress flag when it fires, not trust the decision made when it
// was scheduled.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func())
}

// TimerScheduler schedules on real timers.
type TimerScheduler struct{}

// AfterFunc implements Scheduler via time.AfterFunc.
func (TimerScheduler) AfterFunc(d time.Duration, fn func()) {
	time.AfterFunc(d, fn)
}

// ImmediateScheduler runs continuations synchronously, ignoring the delay.
// The CLI uses it so an auto-progressed publish drains deterministically
// without wall-clock waits.
type ImmediateScheduler struct{}

// AfterFunc implements Scheduler by calling fn inline.
func (ImmediateScheduler) AfterFunc(d time.Duration, fn func()) {
	fn()
}
