// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package reactor provides the single-threaded readiness loop: an epoll
// instance, a socketpair wakeup channel for cross-goroutine task posting,
// one-shot timers, and registration records that route each readiness event
// to the listener, stream or datagram endpoint that owns the descriptor.
package reactor
