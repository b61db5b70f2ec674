package relay

import "sync/atomic"

// Stats is a plain-old-data snapshot of the relay's packet counters, in
// the spirit of kcp-go's DefaultSnmp: a cheap, lock-free structure a
// periodic logger can copy and format without touching the hot path's
// Prometheus vectors (which are comparatively expensive to enumerate).
type Stats struct {
	Sent       uint64
	Dropped    uint64
	Truncated  uint64
	Corrupted  uint64
	Deferred   uint64
	Alien      uint64
	Malformed  uint64
	QueueDepth uint64
}

// Header names Stats' fields in CSV column order, mirroring
// std/snmp.go's use of kcp.DefaultSnmp.Header().
func (Stats) Header() []string {
	return []string{"sent", "dropped", "truncated", "corrupted", "deferred", "alien", "malformed", "queue_depth"}
}

// counters is the atomic storage backing Stats snapshots.
type counters struct {
	sent, dropped, truncated, corrupted, deferred, alien, malformed atomic.Uint64
}

func (c *counters) snapshot(queueDepth int) Stats {
	return Stats{
		Sent:       c.sent.Load(),
		Dropped:    c.dropped.Load(),
		Truncated:  c.truncated.Load(),
		Corrupted:  c.corrupted.Load(),
		Deferred:   c.deferred.Load(),
		Alien:      c.alien.Load(),
		Malformed:  c.malformed.Load(),
		QueueDepth: uint64(queueDepth),
	}
}

// Stats returns a point-in-time snapshot of the relay's packet counters.
// Safe to call from any goroutine, including a concurrent statslog
// ticker, while Run is executing on its own.
func (r *Relay) Stats() Stats {
	return r.ctr.snapshot(r.queue.Len())
}
