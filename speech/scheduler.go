package speech

import "time"

type clock struct{}

// SystemScheduler returns a Scheduler backed by the runtime timer.
func SystemScheduler() Scheduler {
	return clock{}
}

func (clock) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}
