// Package session
// Author: momentics <momentics@gmail.com>
//
// Thread-safe per-session value store with optional expiry.

package session

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

type entry struct {
	val    any
	expiry time.Time
}

// Values holds application data attached to a session.
type Values struct {
	clk   clock.Clock
	mu    sync.RWMutex
	store map[string]entry
}

// NewValues creates an empty store. A nil clock means wall time.
func NewValues(clk clock.Clock) *Values {
	if clk == nil {
		clk = clock.New()
	}
	return &Values{clk: clk, store: make(map[string]entry)}
}

// Set stores value under key with no expiry.
func (v *Values) Set(key string, value any) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.store[key] = entry{val: value}
}

// SetWithTTL stores value under key until ttl elapses.
func (v *Values) SetWithTTL(key string, value any, ttl time.Duration) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.store[key] = entry{val: value, expiry: v.clk.Now().Add(ttl)}
}

// Get fetches a live value.
func (v *Values) Get(key string) (any, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	e, ok := v.store[key]
	if !ok || v.expired(e) {
		return nil, false
	}
	return e.val, true
}

// Delete removes key.
func (v *Values) Delete(key string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.store, key)
}

// Keys returns every live key in no particular order.
func (v *Values) Keys() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	keys := make([]string, 0, len(v.store))
	for k, e := range v.store {
		if !v.expired(e) {
			keys = append(keys, k)
		}
	}
	return keys
}

// Clear drops everything.
func (v *Values) Clear() {
	v.mu.Lock()
	defer v.mu.Unlock()
	clear(v.store)
}

func (v *Values) expired(e entry) bool {
	return !e.expiry.IsZero() && !v.clk.Now().Before(e.expiry)
}
