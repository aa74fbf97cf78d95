// File: session/manager.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package session

import (
	"time"

	"github.com/benbjohnson/clock"
	"github.com/samber/oops"
	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"

	"github.com/momentics/hioload-net/api"
	isession "github.com/momentics/hioload-net/internal/session"
	"github.com/momentics/hioload-net/internal/transport"
	"github.com/momentics/hioload-net/reactor"
)

// Manager owns a reactor together with every listener and session on it.
type Manager struct {
	r        *reactor.Reactor
	clk      clock.Clock
	log      logrus.FieldLogger
	handler  api.Handler
	connOpts transport.ConnOptions

	sessions   map[api.SessionID]*Session
	acceptors  map[api.AccepterID]*acceptor
	connectors map[api.SessionID]*connector

	acceptIDs   *isession.RangeAllocator[api.SessionID]
	connectIDs  *isession.RangeAllocator[api.SessionID]
	accepterIDs *isession.RangeAllocator[api.AccepterID]

	stats    counters
	shutdown shutdown
	started  bool
	running  bool
}

// New builds a Manager. Call Start before anything else.
func New(opts ...Option) *Manager {
	m := &Manager{
		log:         logrus.StandardLogger().WithField("component", "session"),
		handler:     api.HandlerFuncs{},
		sessions:    make(map[api.SessionID]*Session),
		acceptors:   make(map[api.AccepterID]*acceptor),
		connectors:  make(map[api.SessionID]*connector),
		acceptIDs:   isession.NewAcceptIDs(),
		connectIDs:  isession.NewConnectIDs(),
		accepterIDs: isession.NewAccepterIDs(),
	}
	for _, o := range opts {
		o(m)
	}
	if m.r == nil {
		m.r = reactor.New(reactor.WithLogger(m.log), reactor.WithClock(m.clk))
	}
	return m
}

// Start initializes the reactor and records the open time. A failure is
// fatal for this Manager; the caller decides whether to retry or exit.
func (m *Manager) Start() error {
	if m.started {
		return api.ErrAlreadyInitialized
	}
	if err := m.r.Initialize(); err != nil {
		return oops.In("session").Wrapf(err, "start reactor")
	}
	m.started = true
	m.running = true
	m.stats.openTime.Store(m.r.Now().UnixNano())
	m.log.Info("session manager started")
	return nil
}

// Run blocks in the loop until Stop. It returns false when the manager was
// never started.
func (m *Manager) Run() bool {
	if !m.started {
		return false
	}
	for m.RunOnce(false) {
	}
	return true
}

// RunOnce applies pending stop requests and runs one reactor iteration. It
// returns false once the manager has stopped.
func (m *Manager) RunOnce(immediately bool) bool {
	if !m.running {
		return false
	}
	m.consumeStopFlags()
	if !m.running {
		return false
	}
	m.r.RunOnce(immediately)
	m.consumeStopFlags()
	return m.running
}

// Post hands task to the loop goroutine. Safe from any goroutine.
func (m *Manager) Post(task api.Task) { m.r.Post(task) }

// CreateTimer schedules fn on the loop after delay.
func (m *Manager) CreateTimer(delay time.Duration, fn func()) api.TimerID {
	return m.r.CreateTimer(delay, fn)
}

// CancelTimer fails for fired timers and from inside the timer's own
// callback.
func (m *Manager) CancelTimer(id api.TimerID) bool { return m.r.CancelTimer(id) }

// Reactor exposes the underlying loop for debug probes.
func (m *Manager) Reactor() *reactor.Reactor { return m.r }

// Stats returns a counter snapshot. Safe from any goroutine.
func (m *Manager) Stats() Stats { return m.stats.snapshot() }

// GetSession looks up a live or pending session.
func (m *Manager) GetSession(id api.SessionID) (*Session, bool) {
	s, ok := m.sessions[id]
	return s, ok
}

// SendSessionData sends raw bytes. Unknown or closed sessions are ignored.
func (m *Manager) SendSessionData(id api.SessionID, data []byte) {
	s, ok := m.sessions[id]
	if !ok {
		return
	}
	if err := s.Send(data); err != nil {
		s.log.WithError(err).Debug("send dropped")
	}
}

// SendSessionMessage frames body with protoID and sends it. Unknown or
// closed sessions are ignored.
func (m *Manager) SendSessionMessage(id api.SessionID, protoID api.ProtoID, body []byte) {
	s, ok := m.sessions[id]
	if !ok {
		return
	}
	if err := s.SendMessage(protoID, body); err != nil {
		s.log.WithError(err).Debug("send dropped")
	}
}

// KickSession forces closure. Connectors kicked this way do not reconnect.
// Unknown IDs are ignored.
func (m *Manager) KickSession(id api.SessionID) {
	if s, ok := m.sessions[id]; ok {
		m.kick(s)
	}
}

// RemoteIP returns the peer address of a session.
func (m *Manager) RemoteIP(id api.SessionID) (string, bool) {
	s, ok := m.sessions[id]
	if !ok {
		return "", false
	}
	return s.remote.Addr().String(), true
}

// RemotePort returns the peer port of a session.
func (m *Manager) RemotePort(id api.SessionID) (uint16, bool) {
	s, ok := m.sessions[id]
	if !ok {
		return 0, false
	}
	return s.remote.Port(), true
}

// SessionCount returns the number of registered sessions, pending
// connectors included.
func (m *Manager) SessionCount() int { return len(m.sessions) }

// Close releases every listener, session and the reactor without raising
// handler callbacks. Use the Stop* sequence for a graceful shutdown.
func (m *Manager) Close() error {
	var err error
	for _, a := range m.acceptors {
		err = multierr.Append(err, a.close())
	}
	for _, c := range m.connectors {
		c.cancelReconnect(m)
	}
	for _, s := range m.sessions {
		s.stopPulse()
		if s.conn != nil {
			s.conn.SetEvents(discard{})
			s.conn.Close(api.ErrStopping)
		}
		s.setState(api.LinkClosed)
	}
	clear(m.sessions)
	clear(m.connectors)
	clear(m.acceptors)
	m.stats.sessions.Store(0)
	m.stats.acceptors.Store(0)
	m.running = false
	err = multierr.Append(err, m.r.Close())
	if err != nil {
		return oops.In("session").Wrapf(err, "close manager")
	}
	return nil
}

func (m *Manager) addSession(s *Session) {
	m.sessions[s.id] = s
	m.stats.sessions.Add(1)
}

func (m *Manager) removeSession(s *Session) {
	if m.sessions[s.id] != s {
		return
	}
	delete(m.sessions, s.id)
	m.stats.sessions.Add(-1)
}

func (m *Manager) sessionInUse(id api.SessionID) bool {
	_, ok := m.sessions[id]
	return ok
}

func (m *Manager) kick(s *Session) {
	if m.sessions[s.id] != s {
		return
	}
	if s.IsConnector() {
		if c, ok := m.connectors[s.id]; ok {
			c.kicked = true
			if s.conn == nil {
				// waiting for a reconnect timer
				c.cancelReconnect(m)
				m.removeConnector(c)
				return
			}
		}
	}
	if s.conn != nil {
		s.setState(api.LinkClosing)
		s.conn.Close(api.ErrConnectionClosed)
	}
}

func (m *Manager) onSessionClose(s *Session, reason error) {
	if m.sessions[s.id] != s {
		return
	}
	s.stopPulse()
	s.detach()
	if s.IsConnector() {
		m.onConnectorClose(s, reason)
		return
	}

	s.setState(api.LinkClosed)
	m.removeSession(s)
	m.stats.acceptClosed.Add(1)
	if a, ok := m.acceptors[s.accepterID]; ok {
		a.info.CurrentLinked--
	}
	s.log.WithError(reason).Debug("session closed")
	if s.announced {
		m.dispatch("close", s.id, func(h api.Handler) { h.OnClose(s.id) })
	}
	m.checkStopClients()
}

// dispatch invokes the handler; panics are recovered and logged.
func (m *Manager) dispatch(event string, id api.SessionID, call func(api.Handler)) {
	defer func() {
		if p := recover(); p != nil {
			m.log.WithFields(logrus.Fields{
				"event":      event,
				"session_id": id,
				"panic":      p,
			}).Error("handler panicked")
		}
	}()
	call(m.handler)
}

type discard struct{}

func (discard) OnConnected(error) {}
func (discard) OnData([]byte)     {}
func (discard) OnClosed(error)    {}
