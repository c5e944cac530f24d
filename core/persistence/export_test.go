package persistence

import "time"

// SetNow replaces the clock used for timestamps and returns a restore function
func SetNow(f func() time.Time) func() {
	old := now
	now = f
	return func() { now = old }
}
