//go:build linux
// +build linux

// File: internal/transport/conn_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package transport

import (
	"net/netip"
	"sync/atomic"

	"github.com/samber/oops"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-net/api"
	"github.com/momentics/hioload-net/pool"
	"github.com/momentics/hioload-net/reactor"
)

// Conn is one non-blocking TCP stream. All methods except State and Stats
// belong to the reactor goroutine.
type Conn struct {
	r      *reactor.Reactor
	fd     int
	reg    *reactor.Registration
	remote netip.AddrPort
	local  netip.AddrPort
	events ConnEvents
	opts   ConnOptions
	log    logrus.FieldLogger

	state atomic.Int32
	sendq *pool.Batch
	stats counters
}

func newConn(r *reactor.Reactor, fd int, remote netip.AddrPort, events ConnEvents, opts ConnOptions, log logrus.FieldLogger) *Conn {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Conn{
		r:      r,
		fd:     fd,
		remote: remote,
		events: events,
		opts:   opts.withDefaults(),
		log:    log.WithFields(logrus.Fields{"fd": fd, "remote": remote.String()}),
		sendq:  pool.NewBatch(8),
	}
}

// Dial starts a non-blocking connect to remote. The outcome arrives through
// events.OnConnected. An error is returned only when the attempt could not be
// started; no callback follows in that case.
func Dial(r *reactor.Reactor, remote netip.AddrPort, events ConnEvents, opts ConnOptions, log logrus.FieldLogger) (*Conn, error) {
	sa, family, err := SockaddrFromAddrPort(remote)
	if err != nil {
		return nil, err
	}
	fd, err := newStreamSocket(family)
	if err != nil {
		return nil, oops.In("transport").With("remote", remote.String()).Wrapf(err, "socket")
	}
	_ = SetNoDelay(fd)
	if err := unix.Connect(fd, sa); err != nil && err != unix.EINPROGRESS {
		_ = unix.Close(fd)
		return nil, oops.In("transport").With("remote", remote.String()).Wrapf(err, "connect")
	}

	c := newConn(r, fd, remote, events, opts, log)
	c.state.Store(int32(api.LinkConnecting))
	c.reg = reactor.NewStreamRegistration(fd, reactor.OpConnect, c)
	if err := r.Register(c.reg); err != nil {
		_ = unix.Close(fd)
		return nil, err
	}
	return c, nil
}

// Attach wraps an accepted descriptor. The Conn is established at once. On
// error the caller still owns fd.
func Attach(r *reactor.Reactor, fd int, remote netip.AddrPort, events ConnEvents, opts ConnOptions, log logrus.FieldLogger) (*Conn, error) {
	c := newConn(r, fd, remote, events, opts, log)
	c.local = localAddr(fd)
	c.state.Store(int32(api.LinkEstablished))
	c.reg = reactor.NewStreamRegistration(fd, reactor.OpRecv, c)
	if err := r.Register(c.reg); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Conn) FD() int                     { return c.fd }
func (c *Conn) RemoteAddr() netip.AddrPort  { return c.remote }
func (c *Conn) LocalAddr() netip.AddrPort   { return c.local }
func (c *Conn) State() api.LinkState        { return api.LinkState(c.state.Load()) }
func (c *Conn) Stats() Counters             { return c.stats.snapshot() }
func (c *Conn) QueuedBytes() int            { return c.sendq.Size() }
func (c *Conn) SetEvents(events ConnEvents) { c.events = events }

// Send writes p, queueing whatever the socket does not take. Bytes are
// copied before Send returns.
func (c *Conn) Send(p []byte) error {
	if c.State() != api.LinkEstablished {
		return api.ErrNotEstablished
	}
	if len(p) == 0 {
		return nil
	}
	c.stats.sendOps.Add(1)

	if c.sendq.Empty() {
		n, err := unix.Write(c.fd, p)
		if err != nil && err != unix.EAGAIN && err != unix.EINTR {
			err = oops.In("transport").Wrapf(err, "write")
			c.Close(err)
			return err
		}
		if n > 0 {
			c.stats.bytesSent.Add(uint64(n))
			p = p[n:]
		}
		if len(p) == 0 {
			return nil
		}
	}

	if c.sendq.Size()+len(p) > c.opts.MaxSendQueueBytes {
		c.log.WithField("queued", c.sendq.Size()).Warn("send queue overflow")
		c.Close(api.ErrSendOverflow)
		return api.ErrSendOverflow
	}
	c.sendq.Append(p)
	if c.reg.Pending&reactor.OpSend == 0 {
		c.reg.Pending |= reactor.OpSend
		if err := c.r.Modify(c.reg); err != nil {
			c.Close(err)
			return err
		}
	}
	return nil
}

// Close releases the descriptor now and posts OnClosed. Idempotent.
func (c *Conn) Close(reason error) {
	if !c.teardown() {
		return
	}
	events := c.events
	c.r.Post(func() error {
		events.OnClosed(reason)
		return nil
	})
}

// teardown reports false when the Conn was already closed.
func (c *Conn) teardown() bool {
	prev := api.LinkState(c.state.Swap(int32(api.LinkClosed)))
	if prev == api.LinkClosed {
		return false
	}
	if err := c.r.Unregister(c.reg); err != nil {
		c.log.WithError(err).Debug("unregister on close")
	}
	if err := unix.Close(c.fd); err != nil {
		c.log.WithError(err).Debug("close descriptor")
	}
	c.sendq.Reset()
	return true
}

// OnConnectReady implements reactor.StreamHandler.
func (c *Conn) OnConnectReady(failed bool) {
	err := socketError(c.fd)
	if err == nil && failed {
		err = unix.ECONNREFUSED
	}
	if err != nil {
		c.teardown()
		c.events.OnConnected(oops.In("transport").With("remote", c.remote.String()).Wrapf(err, "connect"))
		return
	}

	c.local = localAddr(c.fd)
	c.state.Store(int32(api.LinkEstablished))
	c.reg.Pending = reactor.OpRecv
	if err := c.r.Modify(c.reg); err != nil {
		c.teardown()
		c.events.OnConnected(err)
		return
	}
	c.events.OnConnected(nil)
}

// OnRecvReady implements reactor.StreamHandler. On failure whatever is still
// buffered is delivered before the connection closes.
func (c *Conn) OnRecvReady(failed bool) {
	bufp := recvBuffers.Get()
	defer recvBuffers.Put(bufp)
	buf := *bufp

	for i := 0; i < c.opts.RecvBudget || failed; i++ {
		n, err := unix.Read(c.fd, buf)
		switch {
		case n > 0:
			c.stats.recvOps.Add(1)
			c.stats.bytesRecv.Add(uint64(n))
			c.events.OnData(buf[:n])
			if c.State() == api.LinkClosed {
				return
			}
		case err == unix.EINTR:
		case err == unix.EAGAIN:
			if failed {
				reason := socketError(c.fd)
				if reason == nil {
					reason = api.ErrPeerClosed
				}
				c.Close(reason)
			}
			return
		case err != nil:
			c.Close(oops.In("transport").Wrapf(err, "read"))
			return
		default:
			c.Close(api.ErrPeerClosed)
			return
		}
	}
}

// OnSendReady implements reactor.StreamHandler.
func (c *Conn) OnSendReady(failed bool) {
	if failed {
		reason := socketError(c.fd)
		if reason == nil {
			reason = api.ErrPeerClosed
		}
		c.Close(reason)
		return
	}
	for !c.sendq.Empty() {
		n, err := unix.Writev(c.fd, c.sendq.Slices(pool.MaxIovecs))
		if n > 0 {
			c.stats.bytesSent.Add(uint64(n))
			c.sendq.Consume(n)
		}
		if err == unix.EINTR {
			continue
		}
		if err == unix.EAGAIN {
			return
		}
		if err != nil {
			c.Close(oops.In("transport").Wrapf(err, "writev"))
			return
		}
	}
	c.reg.Pending &^= reactor.OpSend
	if err := c.r.Modify(c.reg); err != nil {
		c.Close(err)
	}
}
