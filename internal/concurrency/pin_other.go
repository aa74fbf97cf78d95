//go:build !linux
// +build !linux

// File: internal/concurrency/pin_other.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package concurrency

import "github.com/momentics/hioload-net/api"

// PinCurrentThread is not supported off Linux.
func PinCurrentThread(cpu int) error { return api.ErrNotSupported }

// CurrentAffinity is not supported off Linux.
func CurrentAffinity() ([]int, error) { return nil, api.ErrNotSupported }
