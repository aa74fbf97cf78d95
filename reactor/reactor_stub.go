//go:build !linux
// +build !linux

// File: reactor/reactor_stub.go
// Author: momentics <momentics@gmail.com>
//
// Stub implementation for unsupported platforms.

package reactor

import "github.com/momentics/hioload-net/api"

type eventBuffer struct{}

// Initialize always fails on this platform.
func (r *Reactor) Initialize() error {
	return api.ErrNotSupported
}

func (r *Reactor) Wakeup() {}

func (r *Reactor) drainWakeup() {}

func (r *Reactor) Register(reg *Registration) error { return api.ErrNotSupported }

func (r *Reactor) Modify(reg *Registration) error { return api.ErrNotSupported }

func (r *Reactor) Unregister(reg *Registration) error { return nil }

// RunOnce only services timers and posted tasks.
func (r *Reactor) RunOnce(immediately bool) {
	r.timers.CheckTimer()
	r.runTasks()
}

func (r *Reactor) Close() error { return nil }
