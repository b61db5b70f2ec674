// The MIT License (MIT)
//
// # Copyright (c) 2016 xtaci
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

//go:build unix

// Package sockudp opens the single non-blocking IPv6 UDP socket the relay
// multiplexes against its deferred-packet heap. It is named only by the
// interface it exposes in spec.md §1 ("an opened non-blocking datagram
// endpoint") — the binding/option/non-blocking boilerplate itself is
// external to the core scheduler.
package sockudp

import (
	"fmt"
	"net"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Endpoint is a single non-blocking IPv6 UDP socket bound to ":: :port",
// with SO_REUSEADDR and IPV6_V6ONLY enabled.
type Endpoint struct {
	fd int
}

// Open creates, configures and binds the socket. Any failure here is a
// setup failure per spec.md §7: reported and fatal before the loop starts.
func Open(listenPort uint16) (*Endpoint, error) {
	fd, err := unix.Socket(unix.AF_INET6, unix.SOCK_DGRAM, 0)
	if err != nil {
		return nil, errors.Wrap(err, "create socket")
	}
	e := &Endpoint{fd: fd}

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		e.Close()
		return nil, errors.Wrap(err, "SO_REUSEADDR")
	}
	if err := unix.SetsockoptInt(fd, unix.IPPROTO_IPV6, unix.IPV6_V6ONLY, 1); err != nil {
		e.Close()
		return nil, errors.Wrap(err, "IPV6_V6ONLY")
	}

	addr := &unix.SockaddrInet6{Port: int(listenPort)}
	if err := unix.Bind(fd, addr); err != nil {
		e.Close()
		return nil, errors.Wrapf(err, "bind [::]:%d", listenPort)
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		e.Close()
		return nil, errors.Wrap(err, "set non-blocking")
	}
	return e, nil
}

// Close releases the underlying file descriptor.
func (e *Endpoint) Close() error {
	return unix.Close(e.fd)
}

// Wait blocks until the socket is readable or timeoutMs elapses.
// timeoutMs < 0 blocks indefinitely, matching a NULL timeval to select().
// Returns (false, nil) on an EINTR-equivalent poll interruption so the
// scheduler can simply restart its iteration, per spec.md §4.6 step 2.
func (e *Endpoint) Wait(timeoutMs int) (readable bool, err error) {
	fds := []unix.PollFd{{Fd: int32(e.fd), Events: unix.POLLIN}}
	n, err := unix.Poll(fds, timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return false, nil
		}
		return false, errors.Wrap(err, "poll")
	}
	if n == 0 {
		return false, nil
	}
	return fds[0].Revents&(unix.POLLIN|unix.POLLERR|unix.POLLHUP) != 0, nil
}

// Recv performs a single non-blocking receive into buf. ok is false (with
// a nil error) on a transient would-block/interrupted condition, which the
// caller treats as "nothing to do this tick" rather than an error.
func (e *Endpoint) Recv(buf []byte) (n int, from *net.UDPAddr, ok bool, err error) {
	nr, sa, rerr := unix.Recvfrom(e.fd, buf, 0)
	if rerr != nil {
		if isTransient(rerr) {
			return 0, nil, false, nil
		}
		return 0, nil, false, errors.Wrap(rerr, "recvfrom")
	}
	addr, aerr := udpAddrFromSockaddr(sa)
	if aerr != nil {
		return 0, nil, false, aerr
	}
	return nr, addr, true, nil
}

// SendTo issues a single non-blocking send to addr. ok is false (with a
// nil error) on a transient failure — the scheduler interprets that as
// "retry this packet on a later wake", per spec.md §4.5.
func (e *Endpoint) SendTo(buf []byte, addr *net.UDPAddr) (ok bool, err error) {
	sa, serr := sockaddrFromUDPAddr(addr)
	if serr != nil {
		return false, serr
	}
	serr = unix.Sendto(e.fd, buf, 0, sa)
	if serr != nil {
		if isTransient(serr) {
			return false, nil
		}
		return false, errors.Wrap(serr, "sendto")
	}
	return true, nil
}

func isTransient(err error) bool {
	return err == unix.EAGAIN || err == unix.EWOULDBLOCK || err == unix.EINTR
}

func sockaddrFromUDPAddr(addr *net.UDPAddr) (unix.Sockaddr, error) {
	var a16 [16]byte
	ip16 := addr.IP.To16()
	if ip16 == nil {
		return nil, fmt.Errorf("sockudp: address %v is not a valid IPv6/IPv4-mapped address", addr.IP)
	}
	copy(a16[:], ip16)
	return &unix.SockaddrInet6{Port: addr.Port, Addr: a16}, nil
}

func udpAddrFromSockaddr(sa unix.Sockaddr) (*net.UDPAddr, error) {
	switch s := sa.(type) {
	case *unix.SockaddrInet6:
		return &net.UDPAddr{IP: append([]byte(nil), s.Addr[:]...), Port: s.Port}, nil
	case *unix.SockaddrInet4:
		ip := make(net.IP, net.IPv6len)
		copy(ip[12:], s.Addr[:])
		ip[10], ip[11] = 0xff, 0xff
		return &net.UDPAddr{IP: ip, Port: s.Port}, nil
	default:
		return nil, fmt.Errorf("sockudp: unsupported sockaddr type %T", sa)
	}
}
