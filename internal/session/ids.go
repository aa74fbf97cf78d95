// File: internal/session/ids.go
// Package session
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package session

import "github.com/momentics/hioload-net/api"

// InUseFunc reports whether an ID is still held by a live entry.
type InUseFunc[T ~uint32] func(id T) bool

// RangeAllocator hands out IDs from [lo, hi) in increasing order, wrapping at
// hi and skipping IDs for which inUse reports true. Not safe for concurrent
// use.
type RangeAllocator[T ~uint32] struct {
	lo, hi T
	next   T
}

// NewRangeAllocator returns an allocator over [lo, hi). The first ID is lo.
func NewRangeAllocator[T ~uint32](lo, hi T) *RangeAllocator[T] {
	return &RangeAllocator[T]{lo: lo, hi: hi, next: lo}
}

// NewAcceptIDs covers the accepted-session half-range [0, MiddleSessionID).
func NewAcceptIDs() *RangeAllocator[api.SessionID] {
	return NewRangeAllocator(api.SessionID(0), api.MiddleSessionID)
}

// NewConnectIDs covers the connector half-range [MiddleSessionID, MaxSessionID).
func NewConnectIDs() *RangeAllocator[api.SessionID] {
	return NewRangeAllocator(api.MiddleSessionID, api.MaxSessionID)
}

// NewAccepterIDs starts at 1; InvalidAccepterID is never issued.
func NewAccepterIDs() *RangeAllocator[api.AccepterID] {
	return NewRangeAllocator(api.AccepterID(1), api.AccepterID(1<<32-1))
}

// Next returns the next free ID. ok is false only when every ID in the range
// is in use.
func (a *RangeAllocator[T]) Next(inUse InUseFunc[T]) (id T, ok bool) {
	span := uint64(a.hi) - uint64(a.lo)
	for i := uint64(0); i < span; i++ {
		id = a.next
		a.next++
		if a.next >= a.hi || a.next < a.lo {
			a.next = a.lo
		}
		if inUse == nil || !inUse(id) {
			return id, true
		}
	}
	return 0, false
}

// Contains reports whether id lies in the allocator's range.
func (a *RangeAllocator[T]) Contains(id T) bool {
	return id >= a.lo && id < a.hi
}

// seek moves the cursor so the next candidate is id. Out-of-range values are
// ignored.
func (a *RangeAllocator[T]) seek(id T) {
	if a.Contains(id) {
		a.next = id
	}
}
