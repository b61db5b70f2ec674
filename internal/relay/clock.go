package relay

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// timestamp is the monotonic (seconds, microseconds) pair spec.md §4.2
// requires deadline arithmetic to be expressed in. It is derived from a
// clockwork.Clock rather than wall time, so NTP steps and DST changes
// cannot skew a scheduled deadline.
type timestamp struct {
	sec  int64
	usec int64
}

// monoEpoch is the fixed reference every timestamp is measured from. It
// carries a monotonic clock reading, so subtracting it from a real clock's
// Now() uses that reading rather than the wall clock. It is set once at
// package initialisation and never modified.
var monoEpoch = time.Now()

// now reads clk and converts it to a timestamp measured from monoEpoch:
// clockwork.NewRealClock() in production, clockwork.NewFakeClock() in
// tests, where deadlines are driven explicitly instead of by sleeping.
func now(clk clockwork.Clock) timestamp {
	d := clk.Now().Sub(monoEpoch)
	t := timestamp{sec: int64(d / time.Second), usec: int64(d%time.Second) / 1000}
	if t.usec < 0 {
		t.sec--
		t.usec += 1_000_000
	}
	return t
}

// greater reports whether a is strictly later than b.
func greater(a, b timestamp) bool {
	if a.sec != b.sec {
		return a.sec > b.sec
	}
	return a.usec > b.usec
}

// diff computes a - b, borrowing a second from the whole-second field
// whenever the microsecond subtraction underflows.
//
// The reference implementation (link_sim.c's timeval_diff) only performs
// this borrow when the resulting tv_sec is itself non-zero:
//
//	if (c->tv_usec < 0) { if (--c->tv_sec) c->tv_usec += 1000000; }
//
// which is a bug: when tv_sec decrements to exactly 0 the borrow is
// skipped and tv_usec is left negative. This implementation borrows
// unconditionally, per spec.md §4.2 and §9's resolution of that open
// question; it does not reproduce the original's skipped-borrow case.
func diff(a, b timestamp) timestamp {
	d := timestamp{sec: a.sec - b.sec, usec: a.usec - b.usec}
	if d.usec < 0 {
		d.sec--
		d.usec += 1_000_000
	}
	return d
}

// addMillis returns t advanced by ms milliseconds, carrying overflow from
// microseconds into seconds.
func addMillis(t timestamp, ms int64) timestamp {
	usec := t.usec + (ms%1000)*1000
	sec := t.sec + ms/1000
	if usec >= 1_000_000 {
		usec -= 1_000_000
		sec++
	}
	return timestamp{sec: sec, usec: usec}
}

// toDuration converts a timestamp difference to a time.Duration, clamping
// negative differences to zero (the caller applies its own minimum wait).
func toDuration(t timestamp) time.Duration {
	if t.sec < 0 || (t.sec == 0 && t.usec < 0) {
		return 0
	}
	return time.Duration(t.sec)*time.Second + time.Duration(t.usec)*time.Microsecond
}
