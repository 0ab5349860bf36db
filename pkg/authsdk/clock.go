package authsdk

import "time"

// Clock abstracts time so the activity monitor and token store are testable
// without sleeping.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, fn func()) Timer
}

// Timer is the stoppable handle returned by AfterFunc.
type Timer interface {
	Stop() bool
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}

// SystemClock is the Clock used when none is injected.
var SystemClock Clock = realClock{}
