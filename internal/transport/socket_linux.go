//go:build linux
// +build linux

// File: internal/transport/socket_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package transport

import (
	"net/netip"

	"github.com/samber/oops"
	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-net/api"
)

func SetNonBlock(fd int) error {
	return unix.SetNonblock(fd, true)
}

func SetNoDelay(fd int) error {
	return unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
}

func SetReuseAddr(fd int) error {
	return unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
}

// SetBufferSizes adjusts kernel socket buffers. Zero leaves a side unchanged.
func SetBufferSizes(fd, recv, send int) error {
	if recv > 0 {
		if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_RCVBUF, recv); err != nil {
			return err
		}
	}
	if send > 0 {
		if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_SNDBUF, send); err != nil {
			return err
		}
	}
	return nil
}

// SockaddrFromAddrPort converts ap and returns the matching address family.
func SockaddrFromAddrPort(ap netip.AddrPort) (unix.Sockaddr, int, error) {
	addr := ap.Addr()
	switch {
	case addr.Is4() || addr.Is4In6():
		return &unix.SockaddrInet4{Port: int(ap.Port()), Addr: addr.Unmap().As4()}, unix.AF_INET, nil
	case addr.Is6():
		sa := &unix.SockaddrInet6{Port: int(ap.Port()), Addr: addr.As16()}
		return sa, unix.AF_INET6, nil
	default:
		return nil, 0, oops.Wrapf(api.ErrInvalidArgument, "address %v is not an IP endpoint", ap)
	}
}

// AddrPortFromSockaddr returns the zero AddrPort for non-IP sockaddrs.
func AddrPortFromSockaddr(sa unix.Sockaddr) netip.AddrPort {
	switch v := sa.(type) {
	case *unix.SockaddrInet4:
		return netip.AddrPortFrom(netip.AddrFrom4(v.Addr), uint16(v.Port))
	case *unix.SockaddrInet6:
		return netip.AddrPortFrom(netip.AddrFrom16(v.Addr).Unmap(), uint16(v.Port))
	default:
		return netip.AddrPort{}
	}
}

func newStreamSocket(family int) (int, error) {
	return unix.Socket(family, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, unix.IPPROTO_TCP)
}

func socketError(fd int) error {
	soerr, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return err
	}
	if soerr != 0 {
		return unix.Errno(soerr)
	}
	return nil
}

func localAddr(fd int) netip.AddrPort {
	sa, err := unix.Getsockname(fd)
	if err != nil {
		return netip.AddrPort{}
	}
	return AddrPortFromSockaddr(sa)
}

func isTemporary(err error) bool {
	return err == unix.EAGAIN || err == unix.EINTR
}

// CloseFD closes a raw descriptor handed out by a Listener that the caller
// decided not to attach.
func CloseFD(fd int) error {
	return unix.Close(fd)
}
