// File: session/options.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package session

import (
	"github.com/benbjohnson/clock"
	"github.com/sirupsen/logrus"

	"github.com/momentics/hioload-net/api"
	"github.com/momentics/hioload-net/reactor"
)

// Option customizes a Manager.
type Option func(*Manager)

// WithHandler sets the upward event sink. Defaults to a no-op handler.
func WithHandler(h api.Handler) Option {
	return func(m *Manager) {
		if h != nil {
			m.handler = h
		}
	}
}

// WithLogger sets the logger for the manager and the reactor it creates.
func WithLogger(log logrus.FieldLogger) Option {
	return func(m *Manager) {
		if log != nil {
			m.log = log
		}
	}
}

// WithClock drives timers from clk. Ignored when WithReactor is used.
func WithClock(clk clock.Clock) Option {
	return func(m *Manager) {
		m.clk = clk
	}
}

// WithReactor supplies an uninitialized reactor instead of creating one.
func WithReactor(r *reactor.Reactor) Option {
	return func(m *Manager) {
		m.r = r
	}
}

// WithMaxSendQueueBytes bounds unsent bytes per session. Exceeding it closes
// the session.
func WithMaxSendQueueBytes(n int) Option {
	return func(m *Manager) {
		m.connOpts.MaxSendQueueBytes = n
	}
}
