package relay

import (
	"testing"

	"github.com/xtaci/linksim/internal/rng"
)

func samplePayload(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i)
	}
	return b
}

func TestLossProbabilityConvergence(t *testing.T) {
	cfg := Config{LossPct: 30, DirectionMask: DirBoth}
	r := rng.New(99)
	const n = 50000
	dropped := 0
	for i := 0; i < n; i++ {
		res := impair(cfg, r, timestamp{}, DirForward, samplePayload(16))
		if res.outcome == outcomeDrop {
			dropped++
		}
	}
	// mod-101 bucketing: P(drop) = 30/101, not 30/100.
	want := float64(n) * 30.0 / 101.0
	tolerance := want * 0.1
	if got := float64(dropped); got < want-tolerance || got > want+tolerance {
		t.Fatalf("dropped = %d, want within %.0f of %.0f", dropped, tolerance, want)
	}
}

func TestZeroLossNeverDrops(t *testing.T) {
	cfg := Config{LossPct: 0, DirectionMask: DirBoth}
	r := rng.New(1)
	for i := 0; i < 1000; i++ {
		res := impair(cfg, r, timestamp{}, DirForward, samplePayload(16))
		if res.outcome == outcomeDrop {
			t.Fatalf("packet dropped with loss_pct == 0")
		}
	}
}

func TestTruncationAndCorruptionAreMutuallyExclusive(t *testing.T) {
	cfg := Config{TruncatePct: 60, CorruptPct: 60, DirectionMask: DirBoth}
	r := rng.New(7)
	for i := 0; i < 5000; i++ {
		payload := samplePayload(40)
		original0 := payload[0]
		res := impair(cfg, r, timestamp{}, DirForward, payload)
		if res.outcome == outcomeDrop {
			continue
		}
		if res.truncated && res.corrupted {
			t.Fatalf("trial %d: packet marked both truncated and corrupted", i)
		}
		if res.truncated {
			if len(res.payload) != MinPktLen {
				t.Fatalf("trial %d: truncated payload length = %d, want %d", i, len(res.payload), MinPktLen)
			}
			if res.payload[0]&truncatedBit == 0 {
				t.Fatalf("trial %d: truncated payload missing 0x20 marker on byte 0", i)
			}
		} else if !res.corrupted {
			// Neither fired: payload must be untouched.
			if len(res.payload) != 40 || res.payload[0] != original0 {
				t.Fatalf("trial %d: untouched payload was modified", i)
			}
		}
	}
}

func TestTruncationRequiresLongerThanMinPktLen(t *testing.T) {
	cfg := Config{TruncatePct: 100, DirectionMask: DirBoth}
	r := rng.New(3)
	payload := samplePayload(MinPktLen)
	res := impair(cfg, r, timestamp{}, DirForward, payload)
	if res.truncated {
		t.Fatalf("a MinPktLen-sized payload must never be reported as truncated")
	}
}

func TestDelayZeroForwardsImmediately(t *testing.T) {
	cfg := Config{DelayMS: 0, DirectionMask: DirBoth}
	r := rng.New(5)
	res := impair(cfg, r, timestamp{sec: 100}, DirForward, samplePayload(16))
	if res.outcome != outcomeForwardNow {
		t.Fatalf("outcome = %v, want outcomeForwardNow", res.outcome)
	}
}

func TestDelayWithoutJitterIsExact(t *testing.T) {
	cfg := Config{DelayMS: 50, DirectionMask: DirBoth}
	r := rng.New(5)
	start := timestamp{sec: 100, usec: 0}
	res := impair(cfg, r, start, DirForward, samplePayload(16))
	if res.outcome != outcomeDefer {
		t.Fatalf("outcome = %v, want outcomeDefer", res.outcome)
	}
	want := addMillis(start, 50)
	if res.deadline != want {
		t.Fatalf("deadline = %+v, want %+v", res.deadline, want)
	}
}

func TestDeterministicReplay(t *testing.T) {
	cfg := Config{LossPct: 20, CorruptPct: 20, TruncatePct: 20, DelayMS: 30, JitterMS: 10, DirectionMask: DirBoth}
	run := func(seed int32) []impairResult {
		r := rng.New(seed)
		var results []impairResult
		for i := 0; i < 200; i++ {
			results = append(results, impair(cfg, r, timestamp{sec: int64(i)}, DirForward, samplePayload(40)))
		}
		return results
	}

	a := run(42)
	b := run(42)
	if len(a) != len(b) {
		t.Fatalf("result length mismatch")
	}
	for i := range a {
		if a[i].outcome != b[i].outcome || a[i].deadline != b[i].deadline || a[i].truncated != b[i].truncated || a[i].corrupted != b[i].corrupted {
			t.Fatalf("draw %d diverged between replays with identical seed: %+v != %+v", i, a[i], b[i])
		}
	}
}

func TestJitterUnderflowClampsToZero(t *testing.T) {
	// SPEC_FULL.md §3.B item 3: jitter_ms > delay_ms must clamp to 0
	// instead of wrapping via unsigned underflow.
	cfg := Config{DelayMS: 5, JitterMS: 50, DirectionMask: DirBoth}
	r := rng.New(11)
	start := timestamp{sec: 0, usec: 0}
	for i := 0; i < 2000; i++ {
		res := impair(cfg, r, start, DirForward, samplePayload(16))
		if res.outcome != outcomeDefer {
			continue
		}
		d := diff(res.deadline, start)
		if d.sec < 0 || (d.sec == 0 && d.usec < 0) {
			t.Fatalf("trial %d: negative applied delay, underflow was not clamped: %+v", i, res.deadline)
		}
		ms := d.sec*1000 + d.usec/1000
		if ms >= 10_000 {
			t.Fatalf("trial %d: applied delay %dms exceeds the 10s cap", i, ms)
		}
		// A wrapped subtraction folds into the thousands of ms; a clamped
		// one stays within delay_ms + jitter_ms.
		if ms > int64(cfg.DelayMS+cfg.JitterMS) {
			t.Fatalf("trial %d: applied delay %dms exceeds delay+jitter, underflow wrapped instead of clamping", i, ms)
		}
	}
}
