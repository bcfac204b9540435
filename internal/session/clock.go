package session

import "time"

// Timer is a scheduled call that can be canceled.
type Timer interface {
	Stop() bool
}

// Clock schedules deferred work.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now()
}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
