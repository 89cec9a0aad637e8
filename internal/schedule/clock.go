package schedule

import "time"

// Clock abstracts the current time so past-date checks are deterministic
// in tests. Production code uses RealClock.
type Clock interface {
	Now() time.Time
}

type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now().UTC() }
