// Package relay implements the impairment + delayed-delivery scheduler:
// the single-threaded event loop that is the subject of this repository
// (spec.md §1). Socket setup, CLI parsing and logging destinations are
// named only by the interfaces this package consumes.
package relay

import (
	"context"
	"net"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/xtaci/linksim/internal/heap"
	"github.com/xtaci/linksim/internal/metrics"
	"github.com/xtaci/linksim/internal/rng"
)

// socket is the non-blocking datagram endpoint the scheduler multiplexes
// against its deferred-packet heap. internal/sockudp.Endpoint satisfies
// this structurally; tests supply an in-memory fake.
type socket interface {
	Wait(timeoutMs int) (readable bool, err error)
	Recv(buf []byte) (n int, from *net.UDPAddr, ok bool, err error)
	SendTo(buf []byte, addr *net.UDPAddr) (ok bool, err error)
}

// Logger is the log sink named in spec.md §1. *log.Logger satisfies it.
type Logger interface {
	Printf(format string, args ...any)
}

// waitCap bounds how long a single iteration can block even when the
// deferred queue is empty, so Run can notice ctx cancellation promptly
// without weakening the ordering guarantees of spec.md §4.6: it only
// ever shortens the wait relative to what the spec computes, it never
// lengthens it.
const waitCap = time.Second

// Relay owns every piece of process-lifetime state spec.md §9 calls out
// to de-globalize: configuration, endpoints, socket, queue, clock and
// RNG. The event loop is a method on this value; no package-level
// mutable state exists anywhere in this package.
type Relay struct {
	cfg       Config
	sock      socket
	clock     clockwork.Clock
	rngSrc    *rng.Source
	endpoints *Endpoints
	queue     *heap.Heap[*deferredPacket]
	logger    Logger
	metrics   *metrics.Metrics
	ctr       counters

	nowTS timestamp
}

// New constructs a Relay ready to Run. destination is the fixed
// ([::1]:forward_port) peer address; sock is an already-bound,
// non-blocking datagram endpoint.
func New(cfg Config, destination *net.UDPAddr, sock socket, clock clockwork.Clock, logger Logger, m *metrics.Metrics) *Relay {
	return &Relay{
		cfg:       cfg,
		sock:      sock,
		clock:     clock,
		rngSrc:    rng.New(cfg.Seed),
		endpoints: NewEndpoints(destination),
		queue:     heap.New(deadlineGreater),
		logger:    logger,
		metrics:   m,
	}
}

func deadlineGreater(a, b *deferredPacket) bool {
	return greater(a.deadline, b.deadline)
}

func (r *Relay) logf(format string, args ...any) {
	if r.logger != nil {
		r.logger.Printf(format, args...)
	}
}

// QueueLen reports the number of packets still held in the deferred
// queue; used to log the residual-queue-size report on shutdown
// (spec.md §5).
func (r *Relay) QueueLen() int { return r.queue.Len() }

// Run executes the event loop until ctx is cancelled or a fatal error
// occurs. It implements spec.md §4.6 step by step:
//
//  1. compute the wait timeout from the queue and block on socket readiness
//  2. treat an interrupted wait as "restart the iteration"
//  3. refresh the cached now
//  4. drain every deferred packet whose deadline has passed
//  5. accept and process at most one new datagram
func (r *Relay) Run(ctx context.Context) error {
	r.nowTS = now(r.clock)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		timeoutMs := r.waitTimeoutMs()
		readable, err := r.sock.Wait(timeoutMs)
		if err != nil {
			return err
		}
		// A poll interruption (handled inside sock.Wait) surfaces here as
		// readable=false with no error; step 3-5 below are harmless to run
		// again immediately, so there is no special-cased "continue".

		r.nowTS = now(r.clock)

		if err := r.drainExpired(); err != nil {
			return err
		}

		if readable {
			if err := r.processIngress(); err != nil {
				return err
			}
		}
	}
}

// waitTimeoutMs computes spec.md §4.6 step 1's timeout: no later than
// the earliest deadline, floored at 1ms so a persistently full send
// buffer cannot spin the loop, and capped at waitCap so Run notices
// context cancellation without an unbounded indefinite block.
func (r *Relay) waitTimeoutMs() int {
	head, ok := r.queue.Peek()
	if !ok {
		return int(waitCap / time.Millisecond)
	}
	wait := toDuration(diff(head.deadline, r.nowTS))
	if wait < time.Millisecond {
		wait = time.Millisecond
	}
	if wait > waitCap {
		wait = waitCap
	}
	return int(wait / time.Millisecond)
}

// drainExpired sends every deferred packet whose deadline is <= now. It
// stops (without error) at the first transient send failure, leaving
// that packet at the head of the queue to retry on a later wake.
func (r *Relay) drainExpired() error {
	for {
		head, ok := r.queue.Peek()
		if !ok || greater(head.deadline, r.nowTS) {
			return nil
		}
		sent, err := r.send(head.payload, head.direction)
		if err != nil {
			return err
		}
		if !sent {
			return nil
		}
		r.queue.Pop()
		if r.metrics != nil {
			r.metrics.QueueDepth.Set(float64(r.queue.Len()))
		}
	}
}

// processIngress performs exactly one receive and, on success, runs the
// address-learning classifier followed by the impairment pipeline.
func (r *Relay) processIngress() error {
	buf := make([]byte, MaxPktLen)
	n, from, ok, err := r.sock.Recv(buf)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	result, learned := r.endpoints.classify(from)
	if learned {
		r.logf("@@ remote host is %s", from)
	}

	if result == classifyAlien {
		r.logf("@@ received %d bytes from %s, which is an alien to the connection; dropping it", n, from)
		r.ctr.alien.Add(1)
		if r.metrics != nil {
			r.metrics.AlienDropped.Inc()
		}
		return nil
	}

	if n < MinPktLen {
		r.logf("@@ received malformed data from %s, dropping (len %d < %d)", from, n, MinPktLen)
		r.ctr.malformed.Add(1)
		if r.metrics != nil {
			r.metrics.MalformedDropped.Inc()
		}
		return nil
	}

	direction := result.direction()
	payload := append([]byte(nil), buf[:n]...)

	if !r.cfg.DirectionMask.Selects(direction) {
		return r.sendOrRetry(payload, direction)
	}

	return r.applyImpairment(payload, direction)
}

func (r *Relay) applyImpairment(payload []byte, direction Direction) error {
	res := impair(r.cfg, r.rngSrc, r.nowTS, direction, payload)

	if res.truncated {
		r.logf("[SEQ %3d] truncating packet", seq(payload))
		r.ctr.truncated.Add(1)
		if r.metrics != nil {
			r.metrics.PacketsTruncated.WithLabelValues(direction.String()).Inc()
		}
	} else if res.corrupted {
		r.logf("[SEQ %3d] corrupting packet", seq(res.payload))
		r.ctr.corrupted.Add(1)
		if r.metrics != nil {
			r.metrics.PacketsCorrupted.WithLabelValues(direction.String()).Inc()
		}
	}

	switch res.outcome {
	case outcomeDrop:
		r.logf("[SEQ %3d] dropping packet", seq(payload))
		r.ctr.dropped.Add(1)
		if r.metrics != nil {
			r.metrics.PacketsDropped.WithLabelValues(direction.String()).Inc()
		}
		return nil
	case outcomeForwardNow:
		return r.sendOrRetry(res.payload, direction)
	case outcomeDefer:
		r.logf("[SEQ %3d] delayed packet by %s", seq(res.payload), res.applied)
		r.queue.Push(&deferredPacket{deadline: res.deadline, direction: direction, payload: res.payload})
		r.ctr.deferred.Add(1)
		if r.metrics != nil {
			r.metrics.PacketsDeferred.WithLabelValues(direction.String()).Inc()
			r.metrics.QueueDepth.Set(float64(r.queue.Len()))
		}
		return nil
	default:
		return nil
	}
}
