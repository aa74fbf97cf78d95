// File: session/connector.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package session

import (
	"net/netip"

	"github.com/samber/oops"
	"github.com/sirupsen/logrus"

	"github.com/momentics/hioload-net/api"
	"github.com/momentics/hioload-net/internal/transport"
)

// connector is the outbound policy attached to a connector session.
type connector struct {
	s      *Session
	cfg    api.ConnectConfig
	info   api.ConnectInfo
	addr   netip.AddrPort
	timer  api.TimerID
	kicked bool
}

func (c *connector) cancelReconnect(m *Manager) {
	if c.timer != api.InvalidTimerID {
		m.r.CancelTimer(c.timer)
		c.timer = api.InvalidTimerID
	}
}

// AddConnector registers an outbound session and starts connecting. The
// returned ID is valid immediately; the outcome arrives via
// Handler.OnConnect.
func (m *Manager) AddConnector(cfg api.ConnectConfig) (api.SessionID, error) {
	if !m.started {
		return api.InvalidSessionID, api.ErrNotInitialized
	}
	if m.shutdown.serversStopping() {
		return api.InvalidSessionID, oops.In("session").Wrapf(api.ErrStopping, "add connector")
	}
	addr, err := cfg.AddrPort()
	if err != nil {
		return api.InvalidSessionID, err
	}
	if !addr.Addr().IsValid() || addr.Port() == 0 || addr.Addr().IsUnspecified() {
		return api.InvalidSessionID, oops.In("session").Wrapf(api.ErrInvalidArgument, "connect target %v", addr)
	}
	id, ok := m.connectIDs.Next(m.sessionInUse)
	if !ok {
		return api.InvalidSessionID, oops.In("session").Errorf("connector session ids exhausted")
	}

	s := newSession(m, id, api.InvalidAccepterID, addr, cfg.ProtoType, cfg.Framer, cfg.MaxFrameSize, cfg.PulseInterval)
	s.setState(api.LinkConnecting)
	c := &connector{
		s:    s,
		cfg:  cfg,
		addr: addr,
		info: api.ConnectInfo{SessionID: id, State: api.LinkConnecting},
	}
	m.addSession(s)
	m.connectors[id] = c
	s.log.Info("connector added")
	m.connect(c)
	return id, nil
}

// GetConnectorConfig returns the config and runtime snapshot of a connector.
func (m *Manager) GetConnectorConfig(id api.SessionID) (api.ConnectConfig, api.ConnectInfo, bool) {
	c, ok := m.connectors[id]
	if !ok {
		return api.ConnectConfig{}, api.ConnectInfo{}, false
	}
	info := c.info
	info.State = c.s.State()
	return c.cfg, info, true
}

// connect makes one attempt of the current sequence.
func (m *Manager) connect(c *connector) {
	c.timer = api.InvalidTimerID
	if m.connectors[c.s.id] != c {
		return
	}
	if !m.mayReconnect(c) {
		m.removeConnector(c)
		return
	}
	c.info.Attempts++
	c.info.TotalConnectAttempts++
	c.s.setState(api.LinkConnecting)

	conn, err := transport.Dial(m.r, c.addr, c.s, m.connOpts, c.s.log)
	if err != nil {
		// Report on the next iteration, as an in-flight attempt would.
		s := c.s
		m.r.Post(func() error {
			m.onConnect(s, err)
			return nil
		})
		return
	}
	c.s.attach(conn)
}

func (m *Manager) onConnect(s *Session, err error) {
	c, ok := m.connectors[s.id]
	if !ok || c.s != s {
		return
	}
	log := s.log.WithFields(logrus.Fields{
		"attempt":      c.info.Attempts,
		"max_attempts": c.cfg.MaxAttempts(),
	})

	if err == nil {
		c.info.Attempts = 0
		c.info.TotalConnected++
		c.info.LastResult = nil
		s.setState(api.LinkEstablished)
		m.stats.connect.Add(1)
		if m.shutdown.serversStopping() || c.kicked {
			s.conn.Close(api.ErrStopping)
			return
		}
		s.announced = true
		s.startPulse()
		log.Info("connector established")
		m.dispatch("connect", s.id, func(h api.Handler) { h.OnConnect(s.id, true) })
		return
	}

	s.detach()
	c.info.LastResult = err
	m.stats.connectFail.Add(1)
	log.WithError(err).Warn("connect failed")
	m.dispatch("connect", s.id, func(h api.Handler) { h.OnConnect(s.id, false) })
	if m.connectors[s.id] != c {
		return
	}
	if c.info.Attempts < c.cfg.MaxAttempts() && m.mayReconnect(c) {
		s.setState(api.LinkConnecting)
		c.timer = m.r.CreateTimer(c.cfg.ReconnectInterval, func() { m.connect(c) })
		return
	}
	m.removeConnector(c)
}

func (m *Manager) onConnectorClose(s *Session, reason error) {
	c, ok := m.connectors[s.id]
	if !ok {
		m.removeSession(s)
		return
	}
	wasAnnounced := s.announced
	s.announced = false
	if wasAnnounced {
		m.stats.connectClosed.Add(1)
		s.log.WithError(reason).Info("connector session closed")
		m.dispatch("close", s.id, func(h api.Handler) { h.OnClose(s.id) })
		if m.connectors[s.id] != c {
			return
		}
	}

	// A dropped established session starts a fresh sequence when the policy
	// allows reconnects at all.
	if wasAnnounced && c.cfg.ReconnectMaxCount > 0 && m.mayReconnect(c) {
		c.info.Attempts = 0
		s.setState(api.LinkConnecting)
		c.timer = m.r.CreateTimer(c.cfg.ReconnectInterval, func() { m.connect(c) })
		return
	}
	m.removeConnector(c)
}

func (m *Manager) mayReconnect(c *connector) bool {
	return !c.kicked && !m.shutdown.serversStopping()
}

// removeConnector drops the connector and its session for good.
func (m *Manager) removeConnector(c *connector) {
	if m.connectors[c.s.id] != c {
		return
	}
	c.cancelReconnect(m)
	c.s.stopPulse()
	c.s.setState(api.LinkClosed)
	c.info.State = api.LinkClosed
	delete(m.connectors, c.s.id)
	m.removeSession(c.s)
	c.s.log.Debug("connector removed")
	m.checkStopServers()
}
