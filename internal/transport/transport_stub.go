//go:build !linux
// +build !linux

// File: internal/transport/transport_stub.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Placeholders so dependent packages build on platforms without a backend.

package transport

import (
	"net/netip"

	"github.com/sirupsen/logrus"

	"github.com/momentics/hioload-net/api"
	"github.com/momentics/hioload-net/reactor"
)

type AcceptFunc func(fd int, remote netip.AddrPort)

type FailFunc func(err error)

type Listener struct{}

func Listen(r *reactor.Reactor, addr netip.AddrPort, backlog int, onAccept AcceptFunc, onFail FailFunc, log logrus.FieldLogger) (*Listener, error) {
	return nil, api.ErrNotSupported
}

func (l *Listener) Addr() netip.AddrPort { return netip.AddrPort{} }
func (l *Listener) FD() int              { return -1 }
func (l *Listener) Close() error         { return nil }

type Conn struct{}

func Dial(r *reactor.Reactor, remote netip.AddrPort, events ConnEvents, opts ConnOptions, log logrus.FieldLogger) (*Conn, error) {
	return nil, api.ErrNotSupported
}

func Attach(r *reactor.Reactor, fd int, remote netip.AddrPort, events ConnEvents, opts ConnOptions, log logrus.FieldLogger) (*Conn, error) {
	return nil, api.ErrNotSupported
}

func CloseFD(fd int) error { return api.ErrNotSupported }

func (c *Conn) FD() int                     { return -1 }
func (c *Conn) RemoteAddr() netip.AddrPort  { return netip.AddrPort{} }
func (c *Conn) LocalAddr() netip.AddrPort   { return netip.AddrPort{} }
func (c *Conn) State() api.LinkState        { return api.LinkClosed }
func (c *Conn) Stats() Counters             { return Counters{} }
func (c *Conn) QueuedBytes() int            { return 0 }
func (c *Conn) SetEvents(events ConnEvents) {}
func (c *Conn) Send(p []byte) error         { return api.ErrNotSupported }
func (c *Conn) Close(reason error)          {}
