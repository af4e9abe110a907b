package nower

import "time"

// Nower supplies the current instant so callers can pin it in tests.
type Nower interface {
	Now() time.Time
}

type systemNower struct{}

// New returns a Nower backed by the system clock.
func New() Nower {
	return systemNower{}
}

func (systemNower) Now() time.Time {
	return time.Now()
}

type fixedNower struct {
	at time.Time
}

// Fixed returns a Nower that always reports at.
func Fixed(at time.Time) Nower {
	return fixedNower{at: at}
}

func (f fixedNower) Now() time.Time {
	return f.at
}
