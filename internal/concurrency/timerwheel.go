// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// One-shot timer queue driven by the reactor loop. Entries are ordered by
// expiry in a binary heap; the reactor asks for the next deadline to bound
// its poll timeout and fires due entries after each wake.

package concurrency

import (
	"container/heap"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/sirupsen/logrus"

	"github.com/momentics/hioload-net/api"
)

// NoTimer is returned by NextExpireTime when nothing is scheduled.
const NoTimer time.Duration = -1

type timerEntry struct {
	id     api.TimerID
	expiry time.Time
	seq    uint64
	fn     func()
	index  int
}

type timerHeap []*timerEntry

func (h timerHeap) Len() int { return len(h) }

func (h timerHeap) Less(i, j int) bool {
	if h[i].expiry.Equal(h[j].expiry) {
		return h[i].seq < h[j].seq
	}
	return h[i].expiry.Before(h[j].expiry)
}

func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timerHeap) Push(x any) {
	e := x.(*timerEntry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// TimerWheel holds pending one-shot callbacks. It is not safe for concurrent
// use; the owning reactor goroutine is the only caller.
type TimerWheel struct {
	clk     clock.Clock
	log     logrus.FieldLogger
	queue   timerHeap
	entries map[api.TimerID]*timerEntry
	lastID  api.TimerID
	seq     uint64
}

// NewTimerWheel creates an empty wheel. A nil clock means wall time.
func NewTimerWheel(clk clock.Clock, log logrus.FieldLogger) *TimerWheel {
	if clk == nil {
		clk = clock.New()
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &TimerWheel{
		clk:     clk,
		log:     log,
		entries: make(map[api.TimerID]*timerEntry),
	}
}

// CreateTimer schedules fn to run once after delay.
func (w *TimerWheel) CreateTimer(delay time.Duration, fn func()) api.TimerID {
	if delay < 0 {
		delay = 0
	}
	w.lastID++
	if w.lastID == api.InvalidTimerID {
		w.lastID++
	}
	w.seq++
	e := &timerEntry{
		id:     w.lastID,
		expiry: w.clk.Now().Add(delay),
		seq:    w.seq,
		fn:     fn,
	}
	heap.Push(&w.queue, e)
	w.entries[e.id] = e
	return e.id
}

// CancelTimer removes a pending timer. It fails for unknown, fired, or
// currently firing timers.
func (w *TimerWheel) CancelTimer(id api.TimerID) bool {
	e, ok := w.entries[id]
	if !ok {
		return false
	}
	delete(w.entries, id)
	heap.Remove(&w.queue, e.index)
	return true
}

// NextExpireTime returns the time left until the earliest expiry, zero if one
// is already due, or NoTimer when the wheel is empty.
func (w *TimerWheel) NextExpireTime() time.Duration {
	if len(w.queue) == 0 {
		return NoTimer
	}
	d := w.queue[0].expiry.Sub(w.clk.Now())
	if d < 0 {
		return 0
	}
	return d
}

// CheckTimer fires every entry that expired at or before now and returns how
// many ran. Entries are detached one at a time, so a callback may still
// cancel a later due timer. Timers created by the callbacks wait for the next
// call.
func (w *TimerWheel) CheckTimer() int {
	if len(w.queue) == 0 {
		return 0
	}
	now := w.clk.Now()
	lastSeq := w.seq
	fired := 0
	for len(w.queue) > 0 {
		e := w.queue[0]
		if e.expiry.After(now) || e.seq > lastSeq {
			break
		}
		heap.Pop(&w.queue)
		delete(w.entries, e.id)
		w.fire(e)
		fired++
	}
	return fired
}

func (w *TimerWheel) fire(e *timerEntry) {
	defer func() {
		if r := recover(); r != nil {
			w.log.WithFields(logrus.Fields{
				"timer_id": e.id,
				"panic":    r,
			}).Error("timer callback panicked")
		}
	}()
	e.fn()
}

// Len returns the number of pending timers.
func (w *TimerWheel) Len() int {
	return len(w.queue)
}
