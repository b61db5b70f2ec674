package relay

import (
	"net"
	"testing"
)

func udpAddr(ip string, port int) *net.UDPAddr {
	return &net.UDPAddr{IP: net.ParseIP(ip), Port: port}
}

func TestClassifyLearnsClientOnFirstNonDestinationDatagram(t *testing.T) {
	dest := udpAddr("::1", 12345)
	e := NewEndpoints(dest)
	client := udpAddr("::1", 55000)

	result, learned := e.classify(client)
	if !learned {
		t.Fatalf("expected the first datagram to learn the client")
	}
	if result != classifyForward {
		t.Fatalf("classify() = %v, want classifyForward", result)
	}
	if !e.ClientKnown() || !addrEqual(e.Client(), client) {
		t.Fatalf("client address not recorded correctly")
	}
}

func TestClassifyFirstDatagramFromDestinationIsAlien(t *testing.T) {
	// SPEC_FULL.md §3.B item 2: a first datagram from the destination must
	// not be learned as the client.
	dest := udpAddr("::1", 12345)
	e := NewEndpoints(dest)

	result, learned := e.classify(dest)
	if learned {
		t.Fatalf("a first datagram from the destination must not be learned as client")
	}
	if result != classifyAlien {
		t.Fatalf("classify() = %v, want classifyAlien", result)
	}
	if e.ClientKnown() {
		t.Fatalf("client must remain unknown")
	}
}

func TestClassifyReverseAfterClientKnown(t *testing.T) {
	dest := udpAddr("::1", 12345)
	e := NewEndpoints(dest)
	client := udpAddr("::1", 55000)
	e.classify(client)

	result, learned := e.classify(dest)
	if learned {
		t.Fatalf("client should already be known")
	}
	if result != classifyReverse {
		t.Fatalf("classify() = %v, want classifyReverse", result)
	}
}

func TestClassifyAlienDoesNotChangeClient(t *testing.T) {
	dest := udpAddr("::1", 12345)
	e := NewEndpoints(dest)
	client := udpAddr("::1", 55000)
	e.classify(client)

	alien := udpAddr("::1", 9999)
	result, _ := e.classify(alien)
	if result != classifyAlien {
		t.Fatalf("classify() = %v, want classifyAlien", result)
	}
	if !addrEqual(e.Client(), client) {
		t.Fatalf("alien datagram changed the learned client address")
	}

	// Subsequent datagram from the real client still classifies correctly.
	result, _ = e.classify(client)
	if result != classifyForward {
		t.Fatalf("classify() after alien = %v, want classifyForward", result)
	}
}
