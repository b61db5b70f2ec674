package relay

import (
	"time"

	"github.com/xtaci/linksim/internal/rng"
)

// truncatedBit marks byte 0 of a payload that was cut down to MinPktLen,
// matching the reference implementation's "buf[0] |= 0x20" marker.
const truncatedBit = 0x20

// impairOutcome is what the impairment pipeline decided to do with one
// datagram, per spec.md §4.4.
type impairOutcome int

const (
	outcomeDrop impairOutcome = iota
	outcomeForwardNow
	outcomeDefer
)

// impairResult carries the pipeline's decision. payload is only set for
// outcomeForwardNow and outcomeDefer, and is the caller's to transfer:
// the pipeline never retains a reference to it after returning.
type impairResult struct {
	outcome   impairOutcome
	payload   []byte
	deadline  timestamp
	applied   time.Duration // applied delay, for logging only
	truncated bool
	corrupted bool
}

// impair runs the ordered {loss, truncation, corruption, delay-scheduling}
// pipeline over payload, which the caller owns exclusively and which this
// function may mutate and re-slice in place. rng is the single shared
// pseudo-random stream: order of draws is part of the specification, and
// must not change, or replayed seeds stop reproducing past runs.
func impair(cfg Config, r *rng.Source, nowTS timestamp, direction Direction, payload []byte) impairResult {
	// 1. Loss.
	if cfg.LossPct > 0 && r.Percent() < cfg.LossPct {
		return impairResult{outcome: outcomeDrop}
	}

	// 2. Truncation, mutually exclusive with corruption.
	var truncated, corrupted bool
	if cfg.TruncatePct > 0 && r.Percent() < cfg.TruncatePct && len(payload) > MinPktLen {
		payload = payload[:MinPktLen]
		payload[0] |= truncatedBit
		truncated = true
	} else if cfg.CorruptPct > 0 && r.Percent() < cfg.CorruptPct {
		// 3. Corruption (only reached if truncation did not fire).
		idx := r.Intn(len(payload))
		payload[idx] = ^payload[idx]
		corrupted = true
	}

	// 4. Delay scheduling.
	if cfg.DelayMS == 0 {
		return impairResult{outcome: outcomeForwardNow, payload: payload, truncated: truncated, corrupted: corrupted}
	}

	applied := cfg.DelayMS
	if cfg.JitterMS != 0 {
		if r.Percent() > 49 {
			applied = cfg.DelayMS + uint32(r.Intn(int(cfg.JitterMS)))
		} else {
			j := uint32(r.Intn(int(cfg.JitterMS)))
			// Deviation from link_sim.c (SPEC_FULL.md §3.B item 3): the
			// reference relies on unsigned underflow here when j exceeds
			// delay_ms, producing a huge value that the subsequent
			// mod 10_000 happens to fold back into range. This clamps to
			// zero instead of wrapping.
			if j > cfg.DelayMS {
				applied = 0
			} else {
				applied = cfg.DelayMS - j
			}
		}
	}
	applied %= 10_000

	deadline := addMillis(nowTS, int64(applied))
	return impairResult{
		outcome:   outcomeDefer,
		payload:   payload,
		deadline:  deadline,
		applied:   time.Duration(applied) * time.Millisecond,
		truncated: truncated,
		corrupted: corrupted,
	}
}
