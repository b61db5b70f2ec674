package relay

import "net"

// seq extracts the unsigned sequence-number byte a protocol endpoint is
// expected to place at offset 1, used only for log lines (spec.md §6);
// the relay never interprets payload contents otherwise.
func seq(payload []byte) uint8 {
	if len(payload) < 2 {
		return 0
	}
	return payload[1]
}

// peerAddr resolves direction to the peer the relay should send towards:
// forward traffic goes to the fixed destination, reverse traffic goes
// back to whichever address was learned as the client.
func (r *Relay) peerAddr(direction Direction) *net.UDPAddr {
	if direction == DirForward {
		return r.endpoints.Destination
	}
	return r.endpoints.Client()
}

// send issues a single non-blocking send. ok is false on a transient
// failure (would-block, interrupted): the caller decides what to retry.
// A non-transient failure is always fatal, per spec.md §4.5.
func (r *Relay) send(payload []byte, direction Direction) (ok bool, err error) {
	addr := r.peerAddr(direction)
	ok, err = r.sock.SendTo(payload, addr)
	if err != nil {
		return false, err
	}
	if ok {
		r.logf("[SEQ %3d] sent packet (%s)", seq(payload), direction)
		r.ctr.sent.Add(1)
		if r.metrics != nil {
			r.metrics.PacketsSent.WithLabelValues(direction.String()).Inc()
		}
	}
	return ok, nil
}

// sendOrRetry is used for packets that are not already sitting in the
// deferred queue (an immediate no-delay forward, or a verbatim
// direction-gated passthrough). On a transient failure it enqueues the
// packet with a deadline of "now", so the very next drain retries it —
// the same retry-later contract spec.md §4.5/§4.6 describe for deferred
// packets, generalised to every egress path instead of only the queue's.
func (r *Relay) sendOrRetry(payload []byte, direction Direction) error {
	ok, err := r.send(payload, direction)
	if err != nil {
		return err
	}
	if !ok {
		r.queue.Push(&deferredPacket{deadline: r.nowTS, direction: direction, payload: payload})
		if r.metrics != nil {
			r.metrics.QueueDepth.Set(float64(r.queue.Len()))
		}
	}
	return nil
}
