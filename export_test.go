package vecql

import "time"

// SetNow overrides the clock used by TimeRange. It returns a restore
// function for tests to defer.
func SetNow(f func() time.Time) func() {
	prev := now
	now = f
	return func() { now = prev }
}
