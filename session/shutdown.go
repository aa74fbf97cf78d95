// File: session/shutdown.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Staged shutdown. The Stop* entry points only flip atomics and wake the
// reactor, so they are safe from signal-handling goroutines; the loop applies
// them on its next iteration. The intended order is StopAccept, StopClients,
// StopServers, Stop, each waiting for the previous completion handler. The
// order is not enforced.

package session

import (
	"sync/atomic"

	"github.com/momentics/hioload-net/api"
)

const (
	stageIdle int32 = iota
	stageRequested
	stageDraining
	stageDone
)

type shutdown struct {
	acceptRequested atomic.Bool
	acceptApplied   bool

	clients atomic.Int32
	servers atomic.Int32
	stop    atomic.Bool

	onClientsStopped atomic.Pointer[func()]
	onServersStopped atomic.Pointer[func()]
}

func (sd *shutdown) acceptStopped() bool   { return sd.acceptRequested.Load() }
func (sd *shutdown) clientsStopping() bool { return sd.clients.Load() != stageIdle }
func (sd *shutdown) serversStopping() bool { return sd.servers.Load() != stageIdle }

// StopAccept closes every listener on the next iteration. AddAcceptor fails
// afterwards.
func (m *Manager) StopAccept() {
	m.shutdown.acceptRequested.Store(true)
	m.r.Wakeup()
}

// StopClients closes every accepted session. The handler set with
// SetStopClientsHandler fires once no accepted session remains.
func (m *Manager) StopClients() {
	m.shutdown.clients.CompareAndSwap(stageIdle, stageRequested)
	m.r.Wakeup()
}

// SetStopClientsHandler registers the StopClients completion callback.
func (m *Manager) SetStopClientsHandler(fn func()) {
	m.shutdown.onClientsStopped.Store(&fn)
}

// StopServers closes every connector session and suppresses reconnects. The
// handler set with SetStopServersHandler fires once no connector remains.
func (m *Manager) StopServers() {
	m.shutdown.servers.CompareAndSwap(stageIdle, stageRequested)
	m.r.Wakeup()
}

// SetStopServersHandler registers the StopServers completion callback.
func (m *Manager) SetStopServersHandler(fn func()) {
	m.shutdown.onServersStopped.Store(&fn)
}

// Stop makes Run return after the current iteration.
func (m *Manager) Stop() {
	m.shutdown.stop.Store(true)
	m.r.Wakeup()
}

func (m *Manager) consumeStopFlags() {
	sd := &m.shutdown
	if sd.acceptRequested.Load() && !sd.acceptApplied {
		sd.acceptApplied = true
		for _, a := range m.acceptors {
			if err := a.close(); err != nil {
				a.log.WithError(err).Warn("close listener")
			}
		}
		m.log.WithField("acceptors", len(m.acceptors)).Info("accept stopped")
	}

	if sd.clients.CompareAndSwap(stageRequested, stageDraining) {
		var n int
		for _, s := range m.sessions {
			if s.IsConnector() || s.conn == nil {
				continue
			}
			s.setState(api.LinkClosing)
			s.conn.Close(api.ErrStopping)
			n++
		}
		m.log.WithField("sessions", n).Info("stopping accepted sessions")
		m.checkStopClients()
	}

	if sd.servers.CompareAndSwap(stageRequested, stageDraining) {
		pending := make([]*connector, 0, len(m.connectors))
		for _, c := range m.connectors {
			pending = append(pending, c)
		}
		for _, c := range pending {
			if c.s.conn == nil {
				m.removeConnector(c)
				continue
			}
			c.s.setState(api.LinkClosing)
			c.s.conn.Close(api.ErrStopping)
		}
		m.log.WithField("connectors", len(pending)).Info("stopping connectors")
		m.checkStopServers()
	}

	if sd.stop.Load() && m.running {
		m.running = false
		m.r.Stop()
		m.log.Info("session manager stopped")
	}
}

func (m *Manager) checkStopClients() {
	if m.shutdown.clients.Load() != stageDraining {
		return
	}
	for _, s := range m.sessions {
		if !s.IsConnector() {
			return
		}
	}
	if m.shutdown.clients.CompareAndSwap(stageDraining, stageDone) {
		m.fireStopHandler("clients", m.shutdown.onClientsStopped.Load())
	}
}

func (m *Manager) checkStopServers() {
	if m.shutdown.servers.Load() != stageDraining || len(m.connectors) > 0 {
		return
	}
	if m.shutdown.servers.CompareAndSwap(stageDraining, stageDone) {
		m.fireStopHandler("servers", m.shutdown.onServersStopped.Load())
	}
}

func (m *Manager) fireStopHandler(stage string, fn *func()) {
	m.log.WithField("stage", stage).Info("shutdown stage complete")
	if fn == nil || *fn == nil {
		return
	}
	defer func() {
		if p := recover(); p != nil {
			m.log.WithField("stage", stage).WithField("panic", p).Error("stop handler panicked")
		}
	}()
	(*fn)()
}
