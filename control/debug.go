// control/debug.go
// Author: momentics <momentics@gmail.com>
//
// Runtime debug probes for internal inspection.

package control

import (
	"runtime"
	"sort"
	"sync"

	"github.com/samber/oops"
	"gopkg.in/yaml.v3"
)

// DebugProbes holds registered probe functions. Probes run on the caller's
// goroutine and must be safe to call concurrently with the loop.
type DebugProbes struct {
	mu     sync.RWMutex
	probes map[string]func() any
}

// NewDebugProbes creates a probe registry.
func NewDebugProbes() *DebugProbes {
	return &DebugProbes{
		probes: make(map[string]func() any),
	}
}

// RegisterProbe inserts or replaces a named probe.
func (dp *DebugProbes) RegisterProbe(name string, fn func() any) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.probes[name] = fn
}

// Names lists registered probes in sorted order.
func (dp *DebugProbes) Names() []string {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	names := make([]string, 0, len(dp.probes))
	for k := range dp.probes {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// DumpState returns output of all probes.
func (dp *DebugProbes) DumpState() map[string]any {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	out := make(map[string]any, len(dp.probes))
	for k, fn := range dp.probes {
		out[k] = fn()
	}
	return out
}

// DumpYAML renders DumpState.
func (dp *DebugProbes) DumpYAML() ([]byte, error) {
	out, err := yaml.Marshal(dp.DumpState())
	if err != nil {
		return nil, oops.In("control").Wrapf(err, "render probes")
	}
	return out, nil
}

// RegisterRuntimeProbes adds Go runtime probes.
func RegisterRuntimeProbes(dp *DebugProbes) {
	dp.RegisterProbe("runtime.cpus", func() any { return runtime.NumCPU() })
	dp.RegisterProbe("runtime.gomaxprocs", func() any { return runtime.GOMAXPROCS(0) })
	dp.RegisterProbe("runtime.goroutines", func() any { return runtime.NumGoroutine() })
	dp.RegisterProbe("runtime.os", func() any { return runtime.GOOS })
}

// RegisterStatsProbes exposes the manager counters as probes.
func RegisterStatsProbes(dp *DebugProbes, src StatsSource) {
	dp.RegisterProbe("session.stats", func() any { return src.Stats() })
	dp.RegisterProbe("session.sessions", func() any { return src.Stats().Sessions })
	dp.RegisterProbe("session.acceptors", func() any { return src.Stats().Acceptors })
}
