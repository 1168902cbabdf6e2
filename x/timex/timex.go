package timex

import "time"

// Forever is the wait duration meaning "no deadline".
const Forever time.Duration = -1

// Deadline is a single overall expiry shared by a sequence of waits.
// The zero value has already expired.
type Deadline struct {
	at      time.Time
	forever bool
}

// After returns a deadline d from now. Negative d never expires; zero
// expires immediately.
func After(d time.Duration) Deadline {
	if d < 0 {
		return Deadline{forever: true}
	}
	return Deadline{at: time.Now().Add(d)}
}

// Forever reports whether the deadline never expires.
func (d Deadline) Forever() bool { return d.forever }

// Remaining returns the time left, or false once expired. For a deadline
// that never expires it returns (Forever, true).
func (d Deadline) Remaining() (time.Duration, bool) {
	if d.forever {
		return Forever, true
	}
	r := time.Until(d.at)
	if r <= 0 {
		return 0, false
	}
	return r, true
}

// ResetTimer stops, drains and re-arms t. Negative d fires immediately.
func ResetTimer(t *time.Timer, d time.Duration) {
	if d < 0 {
		d = 0
	}
	if !t.Stop() {
		DrainTimer(t)
	}
	t.Reset(d)
}

// DrainTimer discards a pending tick, if any.
func DrainTimer(t *time.Timer) {
	select {
	case <-t.C:
	default:
	}
}

// BytePeriod returns the time one 10-bit UART frame (8N1) occupies on the
// line at baud. baud==0 is coerced to 1.
func BytePeriod(baud uint32) time.Duration {
	if baud == 0 {
		baud = 1
	}
	return time.Duration(10 * uint64(time.Second) / uint64(baud))
}
