//go:build linux
// +build linux

// File: internal/transport/listener_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package transport

import (
	"net/netip"
	"time"

	"github.com/samber/oops"
	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"
	"golang.org/x/sys/unix"
	"golang.org/x/time/rate"

	"github.com/momentics/hioload-net/reactor"
)

// acceptBudget bounds accepts per readiness event so one busy listener
// cannot starve the rest of the loop.
const acceptBudget = 128

// AcceptFunc receives each accepted descriptor. The callee owns fd.
type AcceptFunc func(fd int, remote netip.AddrPort)

// FailFunc is called when accept fails for a reason other than an empty
// backlog or an aborted handshake.
type FailFunc func(err error)

// Listener is a non-blocking TCP acceptor registered with a reactor.
type Listener struct {
	r        *reactor.Reactor
	fd       int
	reg      *reactor.Registration
	addr     netip.AddrPort
	onAccept AcceptFunc
	onFail   FailFunc
	log      logrus.FieldLogger
	warn     rate.Sometimes
	closed   bool
}

// Listen binds addr and starts accepting on r. backlog <= 0 means SOMAXCONN.
func Listen(r *reactor.Reactor, addr netip.AddrPort, backlog int, onAccept AcceptFunc, onFail FailFunc, log logrus.FieldLogger) (*Listener, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	sa, family, err := SockaddrFromAddrPort(addr)
	if err != nil {
		return nil, err
	}
	if backlog <= 0 {
		backlog = unix.SOMAXCONN
	}
	fd, err := newStreamSocket(family)
	if err != nil {
		return nil, oops.In("transport").With("addr", addr.String()).Wrapf(err, "socket")
	}
	fail := func(op string, err error) (*Listener, error) {
		_ = unix.Close(fd)
		return nil, oops.In("transport").With("addr", addr.String()).Wrapf(err, "%s", op)
	}
	if err := SetReuseAddr(fd); err != nil {
		return fail("setsockopt SO_REUSEADDR", err)
	}
	if err := unix.Bind(fd, sa); err != nil {
		return fail("bind", err)
	}
	if err := unix.Listen(fd, backlog); err != nil {
		return fail("listen", err)
	}

	l := &Listener{
		r:        r,
		fd:       fd,
		addr:     localAddr(fd),
		onAccept: onAccept,
		onFail:   onFail,
		warn:     rate.Sometimes{First: 5, Interval: time.Second},
	}
	l.log = log.WithFields(logrus.Fields{"listen_addr": l.addr.String(), "fd": fd})
	l.reg = reactor.NewListenerRegistration(fd, l)
	if err := r.Register(l.reg); err != nil {
		return fail("register", err)
	}
	return l, nil
}

// Addr returns the bound address, with the kernel-chosen port when 0 was
// requested.
func (l *Listener) Addr() netip.AddrPort { return l.addr }

// FD returns the listening descriptor.
func (l *Listener) FD() int { return l.fd }

// OnAcceptReady implements reactor.AcceptHandler.
func (l *Listener) OnAcceptReady(ok bool) {
	if l.closed {
		return
	}
	if !ok {
		err := socketError(l.fd)
		if err == nil {
			err = unix.ECONNABORTED
		}
		l.fail(oops.In("transport").Wrapf(err, "listener error"))
		return
	}
	for i := 0; i < acceptBudget && !l.closed; i++ {
		nfd, sa, err := unix.Accept4(l.fd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
		if err != nil {
			switch err {
			case unix.EAGAIN:
				return
			case unix.EINTR, unix.ECONNABORTED:
				continue
			default:
				l.fail(oops.In("transport").Wrapf(err, "accept"))
				return
			}
		}
		_ = SetNoDelay(nfd)
		l.onAccept(nfd, AddrPortFromSockaddr(sa))
	}
}

func (l *Listener) fail(err error) {
	l.warn.Do(func() {
		l.log.WithError(err).Warn("accept failed")
	})
	if l.onFail != nil {
		l.onFail(err)
	}
}

// Close unregisters and closes the listening socket. Idempotent.
func (l *Listener) Close() error {
	if l.closed {
		return nil
	}
	l.closed = true
	err := multierr.Append(l.r.Unregister(l.reg), unix.Close(l.fd))
	if err != nil {
		return oops.In("transport").Wrapf(err, "close listener")
	}
	return nil
}
