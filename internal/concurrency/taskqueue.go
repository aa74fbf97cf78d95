// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Cross-goroutine task inbox for the reactor.

package concurrency

import (
	"sync"

	"github.com/eapache/queue"

	"github.com/momentics/hioload-net/api"
)

// TaskQueue is a mutex-protected FIFO of posted tasks. The lock covers only
// the append and the swap; tasks never run under it.
type TaskQueue struct {
	mu sync.Mutex
	q  *queue.Queue
}

// NewTaskQueue returns an empty queue.
func NewTaskQueue() *TaskQueue {
	return &TaskQueue{q: queue.New()}
}

// Push appends a task and reports whether the queue was empty beforehand.
func (tq *TaskQueue) Push(task api.Task) (wasEmpty bool) {
	tq.mu.Lock()
	wasEmpty = tq.q.Length() == 0
	tq.q.Add(task)
	tq.mu.Unlock()
	return wasEmpty
}

// Swap takes every queued task in posting order and leaves the queue empty.
func (tq *TaskQueue) Swap() []api.Task {
	tq.mu.Lock()
	old := tq.q
	if old.Length() == 0 {
		tq.mu.Unlock()
		return nil
	}
	tq.q = queue.New()
	tq.mu.Unlock()

	tasks := make([]api.Task, old.Length())
	for i := range tasks {
		tasks[i] = old.Get(i).(api.Task)
	}
	return tasks
}

// Len returns the number of queued tasks.
func (tq *TaskQueue) Len() int {
	tq.mu.Lock()
	defer tq.mu.Unlock()
	return tq.q.Length()
}
