// File: session/acceptor.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package session

import (
	"errors"
	"net/netip"

	"github.com/samber/oops"
	"github.com/sirupsen/logrus"

	"github.com/momentics/hioload-net/api"
	"github.com/momentics/hioload-net/internal/transport"
)

type acceptor struct {
	id   api.AccepterID
	cfg  api.ListenConfig
	info api.ListenInfo
	ln   *transport.Listener
	log  logrus.FieldLogger
}

func (a *acceptor) close() error {
	if a.info.Closed {
		return nil
	}
	a.info.Closed = true
	if a.ln == nil {
		return nil
	}
	return a.ln.Close()
}

// AddAcceptor starts listening per cfg. It fails once StopAccept was
// requested.
func (m *Manager) AddAcceptor(cfg api.ListenConfig) (api.AccepterID, error) {
	if !m.started {
		return api.InvalidAccepterID, api.ErrNotInitialized
	}
	if m.shutdown.acceptStopped() {
		return api.InvalidAccepterID, oops.In("session").Wrapf(api.ErrStopping, "add acceptor")
	}
	addr, err := cfg.AddrPort()
	if err != nil {
		return api.InvalidAccepterID, err
	}
	id, ok := m.accepterIDs.Next(func(id api.AccepterID) bool {
		_, used := m.acceptors[id]
		return used
	})
	if !ok {
		return api.InvalidAccepterID, oops.In("session").Errorf("accepter ids exhausted")
	}

	a := &acceptor{
		id:   id,
		cfg:  cfg,
		info: api.ListenInfo{AccepterID: id},
		log:  m.log.WithField("accepter_id", id),
	}
	ln, err := transport.Listen(m.r, addr, cfg.Backlog,
		func(fd int, remote netip.AddrPort) { m.onAcceptNewClient(a, fd, remote) },
		func(err error) { m.onAcceptFailed(a, err) },
		a.log)
	if err != nil {
		return api.InvalidAccepterID, err
	}
	a.ln = ln
	a.info.Addr = ln.Addr()
	m.acceptors[id] = a
	m.stats.acceptors.Add(1)
	a.log.WithFields(logrus.Fields{
		"addr":  a.info.Addr.String(),
		"proto": cfg.ProtoType.String(),
	}).Info("acceptor listening")
	return id, nil
}

// RemoveAcceptor closes and forgets a listener. Sessions it accepted stay
// open.
func (m *Manager) RemoveAcceptor(id api.AccepterID) bool {
	a, ok := m.acceptors[id]
	if !ok {
		return false
	}
	if err := a.close(); err != nil {
		a.log.WithError(err).Warn("close listener")
	}
	delete(m.acceptors, id)
	m.stats.acceptors.Add(-1)
	return true
}

// GetAcceptorConfig returns the config and runtime snapshot of a listener.
func (m *Manager) GetAcceptorConfig(id api.AccepterID) (api.ListenConfig, api.ListenInfo, bool) {
	a, ok := m.acceptors[id]
	if !ok {
		return api.ListenConfig{}, api.ListenInfo{}, false
	}
	return a.cfg, a.info, true
}

// GetAccepterID maps an accepted session to its listener.
func (m *Manager) GetAccepterID(id api.SessionID) (api.AccepterID, bool) {
	s, ok := m.sessions[id]
	if !ok || s.IsConnector() {
		return api.InvalidAccepterID, false
	}
	return s.accepterID, true
}

func (m *Manager) onAcceptFailed(a *acceptor, err error) {
	if !errors.Is(err, api.ErrAcceptRefused) {
		a.log.WithError(err).Warn("accept failed")
	}
	a.info.TotalAcceptFailed++
	m.stats.acceptFail.Add(1)
}

func (m *Manager) refuse(a *acceptor, fd int, remote netip.AddrPort, why string) {
	a.log.WithFields(logrus.Fields{
		"remote": remote.String(),
		"reason": why,
	}).Debug("accept refused")
	_ = transport.CloseFD(fd)
	m.onAcceptFailed(a, api.ErrAcceptRefused)
}

func (m *Manager) onAcceptNewClient(a *acceptor, fd int, remote netip.AddrPort) {
	switch {
	case a.info.Closed || m.shutdown.acceptStopped():
		m.refuse(a, fd, remote, "accept stopped")
		return
	case m.shutdown.clientsStopping():
		m.refuse(a, fd, remote, "clients stopping")
		return
	case !a.cfg.Allowed(remote.Addr()):
		m.refuse(a, fd, remote, "not whitelisted")
		return
	case a.cfg.MaxSessions > 0 && a.info.CurrentLinked >= a.cfg.MaxSessions:
		m.refuse(a, fd, remote, "session limit reached")
		return
	}

	id, ok := m.acceptIDs.Next(m.sessionInUse)
	if !ok {
		m.refuse(a, fd, remote, "session ids exhausted")
		return
	}
	s := newSession(m, id, a.id, remote, a.cfg.ProtoType, a.cfg.Framer, a.cfg.MaxFrameSize, a.cfg.PulseInterval)
	conn, err := transport.Attach(m.r, fd, remote, s, m.connOpts, s.log)
	if err != nil {
		_ = transport.CloseFD(fd)
		a.log.WithError(err).Warn("attach accepted socket")
		m.onAcceptFailed(a, err)
		return
	}
	s.attach(conn)
	s.setState(api.LinkEstablished)
	m.addSession(s)
	a.info.TotalAccepted++
	a.info.CurrentLinked++
	m.stats.accept.Add(1)

	s.announced = true
	s.startPulse()
	s.log.WithField("accepter_id", a.id).Debug("session accepted")
	m.dispatch("accept", id, func(h api.Handler) { h.OnAccept(id, a.id) })
}
