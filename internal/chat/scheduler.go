package chat

import (
	"math/rand/v2"
	"time"
)

// Scheduler runs f once after d. Tests swap in a manual implementation so
// reply delays do not cost wall-clock time.
type Scheduler interface {
	AfterFunc(d time.Duration, f func())
}

// Dispatcher runs an answer-service round trip off the caller's goroutine.
type Dispatcher interface {
	Dispatch(job func())
}

type timerScheduler struct{}

func (timerScheduler) AfterFunc(d time.Duration, f func()) {
	time.AfterFunc(d, f)
}

// TimerScheduler schedules with time.AfterFunc.
func TimerScheduler() Scheduler { return timerScheduler{} }

type goDispatcher struct{}

func (goDispatcher) Dispatch(job func()) { go job() }

// GoDispatcher starts one goroutine per job.
func GoDispatcher() Dispatcher { return goDispatcher{} }

// Delay is the artificial pause inserted before an agent reply is appended.
type Delay struct {
	Min     time.Duration
	Max     time.Duration
	Failure time.Duration
}

func DefaultDelay() Delay {
	return Delay{Min: time.Second, Max: 2 * time.Second, Failure: time.Second}
}

// Success picks a uniformly random delay in [Min, Max).
func (d Delay) Success() time.Duration {
	if d.Max <= d.Min {
		return d.Min
	}
	return d.Min + time.Duration(rand.Int64N(int64(d.Max-d.Min)))
}
