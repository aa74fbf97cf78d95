// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package session is the registry and state-machine authority for every
// listener and connection driven by one reactor.
//
// A Manager owns the reactor goroutine. Everything except Post, the Stop*
// functions, Manager.Stats and Session.Values must run on that goroutine:
// call it from Handler callbacks, timer callbacks, or posted tasks.
//
// Accepted sessions draw IDs from [0, MiddleSessionID); connectors draw from
// [MiddleSessionID, MaxSessionID). A connector's ID exists as soon as
// AddConnector returns, before the socket connects.
package session
