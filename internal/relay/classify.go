package relay

import "net"

// Endpoints tracks the two parties the relay has observed: a fixed
// destination (the loopback target a protocol endpoint listens on) and a
// client learned from the first accepted datagram.
type Endpoints struct {
	Destination *net.UDPAddr

	client      *net.UDPAddr
	clientKnown bool
}

// NewEndpoints fixes the destination address for the run.
func NewEndpoints(destination *net.UDPAddr) *Endpoints {
	return &Endpoints{Destination: destination}
}

// Client returns the learned client address, or nil if none has been
// learned yet.
func (e *Endpoints) Client() *net.UDPAddr { return e.client }

// ClientKnown reports whether a client address has been learned.
func (e *Endpoints) ClientKnown() bool { return e.clientKnown }

func addrEqual(a, b *net.UDPAddr) bool {
	return a.IP.Equal(b.IP) && a.Port == b.Port
}

// classifyResult is the outcome of running the address-learning state
// machine against one received datagram.
type classifyResult int

const (
	classifyAlien classifyResult = iota
	classifyForward
	classifyReverse
)

// classify implements spec.md §4.3's state machine. Its order of checks
// is significant: destination equality is tested before client equality,
// so a client that happens to share an address with the destination is
// treated as reverse traffic, never as a tie.
//
// Deviation from link_sim.c (documented in SPEC_FULL.md §3.B item 2): the
// original learns client_addr from whichever address sends the very
// first datagram, even if that address is the destination itself —
// which silently wedges the session. Here, the first datagram is
// required to come from a non-destination source; a first datagram from
// the destination is treated as alien instead of being learned.
func (e *Endpoints) classify(from *net.UDPAddr) (result classifyResult, learned bool) {
	if !e.clientKnown {
		if addrEqual(from, e.Destination) {
			return classifyAlien, false
		}
		e.client = from
		e.clientKnown = true
		learned = true
	}

	switch {
	case addrEqual(from, e.Destination):
		return classifyReverse, learned
	case addrEqual(from, e.client):
		return classifyForward, learned
	default:
		return classifyAlien, learned
	}
}

func (r classifyResult) direction() Direction {
	switch r {
	case classifyForward:
		return DirForward
	case classifyReverse:
		return DirReverse
	default:
		return 0
	}
}
