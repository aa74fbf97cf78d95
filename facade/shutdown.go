// File: facade/shutdown.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package facade

import (
	"context"

	"github.com/samber/oops"

	"github.com/momentics/hioload-net/session"
)

// Shutdown drives StopAccept, StopClients, StopServers and Stop on a manager
// whose loop runs on another goroutine, waiting for each completion callback.
// When ctx expires first the manager is stopped anyway and the context error
// is returned.
func Shutdown(ctx context.Context, m *session.Manager) error {
	clients := make(chan struct{})
	servers := make(chan struct{})
	m.SetStopClientsHandler(func() { close(clients) })
	m.SetStopServersHandler(func() { close(servers) })

	m.StopAccept()
	m.StopClients()
	if err := await(ctx, clients, "clients"); err != nil {
		m.Stop()
		return err
	}
	m.StopServers()
	if err := await(ctx, servers, "servers"); err != nil {
		m.Stop()
		return err
	}
	m.Stop()
	return nil
}

func await(ctx context.Context, ch <-chan struct{}, stage string) error {
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return oops.In("facade").With("stage", stage).Wrapf(ctx.Err(), "shutdown")
	}
}
