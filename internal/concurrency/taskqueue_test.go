package concurrency

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/momentics/hioload-net/api"
)

func TestTaskQueue_EmptyTransition(t *testing.T) {
	tq := NewTaskQueue()
	nop := func() error { return nil }

	assert.True(t, tq.Push(nop))
	assert.False(t, tq.Push(nop))
	assert.Len(t, tq.Swap(), 2)
	assert.Nil(t, tq.Swap())
	assert.True(t, tq.Push(nop), "queue is empty again after swap")
}

func TestTaskQueue_ConcurrentPushKeepsPerProducerOrder(t *testing.T) {
	const producers, perProducer = 8, 500
	tq := NewTaskQueue()
	seen := make([][]int, producers)

	var g errgroup.Group
	for p := 0; p < producers; p++ {
		g.Go(func() error {
			for i := 0; i < perProducer; i++ {
				tq.Push(func() error {
					seen[p] = append(seen[p], i)
					return nil
				})
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	require.Equal(t, producers*perProducer, tq.Len())

	for _, task := range tq.Swap() {
		require.NoError(t, task())
	}
	for p := 0; p < producers; p++ {
		require.Len(t, seen[p], perProducer)
		for i, v := range seen[p] {
			assert.Equal(t, i, v)
		}
	}
	assert.Equal(t, 0, tq.Len())
}

func TestTaskQueue_SwapPreservesTaskIdentity(t *testing.T) {
	tq := NewTaskQueue()
	var calls []string
	tq.Push(api.Task(func() error { calls = append(calls, "a"); return nil }))
	tq.Push(func() error { calls = append(calls, "b"); return nil })
	for _, task := range tq.Swap() {
		_ = task()
	}
	assert.Equal(t, []string{"a", "b"}, calls)
}
