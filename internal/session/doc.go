// File: internal/session/doc.go
// Package session
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Building blocks for the session manager: half-range identity allocators
// that never hand out a live ID, and the per-session value store.

package session
