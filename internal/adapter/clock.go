package adapter

import "time"

// Clock abstracts time for the polling loops in Drain and Stop so tests
// can run them deterministically.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

type systemClock struct{}

func (systemClock) Now() time.Time        { return time.Now() }
func (systemClock) Sleep(d time.Duration) { time.Sleep(d) }
