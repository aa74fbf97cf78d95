//go:build linux
// +build linux

// File: internal/concurrency/pin_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// CPU pinning for the loop thread via sched_setaffinity, no cgo required.

package concurrency

import (
	"runtime"

	"github.com/samber/oops"
	"golang.org/x/sys/unix"
)

const maxCPUs = 1024

// PinCurrentThread locks the calling goroutine to its OS thread and binds
// that thread to cpu. The goroutine stays locked; when it exits the runtime
// discards the thread along with its mask.
func PinCurrentThread(cpu int) error {
	if cpu < 0 {
		return oops.In("concurrency").With("cpu", cpu).Errorf("cpu out of range")
	}
	runtime.LockOSThread()
	var set unix.CPUSet
	set.Set(cpu)
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		runtime.UnlockOSThread()
		return oops.In("concurrency").With("cpu", cpu).Wrapf(err, "sched_setaffinity")
	}
	return nil
}

// CurrentAffinity returns the CPUs the calling thread may run on.
func CurrentAffinity() ([]int, error) {
	var set unix.CPUSet
	if err := unix.SchedGetaffinity(0, &set); err != nil {
		return nil, oops.In("concurrency").Wrapf(err, "sched_getaffinity")
	}
	var cpus []int
	for i := 0; i < maxCPUs && len(cpus) < set.Count(); i++ {
		if set.IsSet(i) {
			cpus = append(cpus, i)
		}
	}
	return cpus, nil
}
