//go:build linux
// +build linux

package concurrency

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPinCurrentThread(t *testing.T) {
	before, err := CurrentAffinity()
	require.NoError(t, err)
	require.NotEmpty(t, before)
	target := before[len(before)-1]

	done := make(chan []int, 1)
	go func() {
		// The goroutine exits while locked, so the pinned thread is discarded.
		if err := PinCurrentThread(target); err != nil {
			done <- nil
			return
		}
		cpus, _ := CurrentAffinity()
		done <- cpus
	}()
	assert.Equal(t, []int{target}, <-done)

	assert.Error(t, PinCurrentThread(-1))
	assert.Error(t, PinCurrentThread(maxCPUs+1))
}
