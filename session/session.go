// File: session/session.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package session

import (
	"net/netip"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/momentics/hioload-net/api"
	isession "github.com/momentics/hioload-net/internal/session"
	"github.com/momentics/hioload-net/internal/transport"
	"github.com/momentics/hioload-net/protocol"
)

// Values is the thread-safe key/value store attached to every session.
type Values = isession.Values

// Session is one accepted or outbound connection. The registry owns it;
// readiness callbacks only ever reach it through its current transport.
type Session struct {
	m          *Manager
	id         api.SessionID
	accepterID api.AccepterID
	remote     netip.AddrPort
	proto      api.ProtoType
	framer     api.Framer
	pulseEvery time.Duration
	log        logrus.FieldLogger

	conn  *transport.Conn
	state atomic.Int32
	rbuf  []byte
	pulse api.TimerID

	// announced is set once the handler saw OnAccept or OnConnect(true);
	// OnClose is only raised for announced sessions.
	announced bool

	values *Values
	prior  transport.Counters
}

func newSession(m *Manager, id api.SessionID, aID api.AccepterID, remote netip.AddrPort, proto api.ProtoType, framer api.Framer, maxFrame int, pulse time.Duration) *Session {
	if framer == nil {
		framer = protocol.ForProto(proto, maxFrame)
	}
	s := &Session{
		m:          m,
		id:         id,
		accepterID: aID,
		remote:     remote,
		proto:      proto,
		framer:     framer,
		pulseEvery: pulse,
		values:     isession.NewValues(m.clk),
	}
	s.log = m.log.WithFields(logrus.Fields{
		"session_id": id,
		"remote":     remote.String(),
	})
	return s
}

func (s *Session) ID() api.SessionID { return s.id }

// AccepterID is InvalidAccepterID for connector sessions.
func (s *Session) AccepterID() api.AccepterID { return s.accepterID }

func (s *Session) IsConnector() bool { return s.id.IsConnector() }

func (s *Session) State() api.LinkState { return api.LinkState(s.state.Load()) }

func (s *Session) RemoteAddr() netip.AddrPort { return s.remote }

func (s *Session) ProtoType() api.ProtoType { return s.proto }

// Values exposes application data attached to the session. Safe from any
// goroutine.
func (s *Session) Values() *Values { return s.values }

// Stats returns traffic counters accumulated across reconnects.
func (s *Session) Stats() transport.Counters {
	st := s.prior
	if c := s.conn; c != nil {
		cur := c.Stats()
		st.BytesSent += cur.BytesSent
		st.BytesRecv += cur.BytesRecv
		st.SendOps += cur.SendOps
		st.RecvOps += cur.RecvOps
	}
	return st
}

// Send queues raw bytes. It fails with ErrNotEstablished unless the session
// is established.
func (s *Session) Send(p []byte) error {
	if s.conn == nil || s.State() != api.LinkEstablished {
		return api.ErrNotEstablished
	}
	if err := s.conn.Send(p); err != nil {
		return err
	}
	s.m.stats.sendCount.Add(1)
	s.m.stats.sendBytes.Add(uint64(len(p)))
	return nil
}

// SendMessage frames body with the binary header and sends it.
func (s *Session) SendMessage(protoID api.ProtoID, body []byte) error {
	if err := s.Send(protocol.EncodeFrame(protoID, body)); err != nil {
		return err
	}
	s.m.stats.sendMessages.Add(1)
	return nil
}

// Close requests closure. Completion is reported through Handler.OnClose
// on a later loop iteration.
func (s *Session) Close() {
	s.m.kick(s)
}

func (s *Session) setState(st api.LinkState) {
	s.state.Store(int32(st))
}

// attach binds a fresh transport, folding the counters of the previous one.
func (s *Session) attach(c *transport.Conn) {
	s.detach()
	s.conn = c
}

func (s *Session) detach() {
	if s.conn == nil {
		return
	}
	cur := s.conn.Stats()
	s.prior.BytesSent += cur.BytesSent
	s.prior.BytesRecv += cur.BytesRecv
	s.prior.SendOps += cur.SendOps
	s.prior.RecvOps += cur.RecvOps
	s.conn = nil
	s.rbuf = s.rbuf[:0]
}

func (s *Session) startPulse() {
	if s.pulseEvery <= 0 || s.pulse != api.InvalidTimerID {
		return
	}
	s.pulse = s.m.r.CreateTimer(s.pulseEvery, s.onPulse)
}

func (s *Session) stopPulse() {
	if s.pulse == api.InvalidTimerID {
		return
	}
	s.m.r.CancelTimer(s.pulse)
	s.pulse = api.InvalidTimerID
}

func (s *Session) onPulse() {
	s.pulse = api.InvalidTimerID
	if s.State() != api.LinkEstablished {
		return
	}
	s.m.dispatch("pulse", s.id, func(h api.Handler) { h.OnPulse(s.id) })
	if s.State() == api.LinkEstablished {
		s.startPulse()
	}
}

// OnConnected implements transport.ConnEvents.
func (s *Session) OnConnected(err error) {
	s.m.onConnect(s, err)
}

// OnData implements transport.ConnEvents. Complete frames go to the handler;
// a partial tail is kept for the next read.
func (s *Session) OnData(p []byte) {
	s.m.stats.recvCount.Add(1)
	s.m.stats.recvBytes.Add(uint64(len(p)))

	buf := p
	if len(s.rbuf) > 0 {
		s.rbuf = append(s.rbuf, p...)
		buf = s.rbuf
	}
	conn := s.conn
	for len(buf) > 0 {
		n, err := s.framer.FrameLength(buf)
		if err != nil {
			s.log.WithError(err).Warn("malformed stream, closing session")
			conn.Close(err)
			return
		}
		if n == 0 {
			break
		}
		if n > len(buf) {
			n = len(buf)
		}
		frame := buf[:n]
		buf = buf[n:]
		if s.proto == api.ProtoHTTP {
			s.m.stats.recvHTTP.Add(1)
		} else {
			s.m.stats.recvMessages.Add(1)
		}
		s.m.dispatch("message", s.id, func(h api.Handler) { h.OnMessage(s.id, frame) })
		if s.conn != conn || conn.State() != api.LinkEstablished {
			return
		}
	}
	s.rbuf = append(s.rbuf[:0], buf...)
}

// OnClosed implements transport.ConnEvents.
func (s *Session) OnClosed(reason error) {
	s.m.onSessionClose(s, reason)
}
