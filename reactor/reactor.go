// File: reactor/reactor.go
// Author: momentics <momentics@gmail.com>
//
// Single-goroutine readiness reactor with cross-goroutine task posting and
// one-shot timers. Everything except Post, Wakeup and Stop must be called on
// the goroutine that drives RunOnce/Run.

package reactor

import (
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/samber/oops"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/momentics/hioload-net/api"
	"github.com/momentics/hioload-net/internal/concurrency"
)

const defaultMaxEvents = 256

// Option customizes a Reactor.
type Option func(*Reactor)

// WithLogger sets the logger used for loop diagnostics.
func WithLogger(log logrus.FieldLogger) Option {
	return func(r *Reactor) {
		r.log = log
	}
}

// WithClock replaces the timer clock.
func WithClock(clk clock.Clock) Option {
	return func(r *Reactor) {
		r.clk = clk
	}
}

// WithMaxEvents bounds the readiness events collected per poll.
func WithMaxEvents(n int) Option {
	return func(r *Reactor) {
		if n > 0 {
			r.maxEvents = n
		}
	}
}

// Stats is a point-in-time view of reactor internals.
type Stats struct {
	PendingTasks  int
	Timers        int
	Registrations int
}

// Reactor multiplexes descriptors, posted tasks and timers on one goroutine.
type Reactor struct {
	log       logrus.FieldLogger
	clk       clock.Clock
	maxEvents int

	tasks  *concurrency.TaskQueue
	timers *concurrency.TimerWheel

	regs      map[uint64]*Registration
	lastToken uint64
	wakeReg   *Registration

	epfd      int
	wakeRead  int
	wakeWrite atomic.Int32
	events    eventBuffer

	initialized bool
	stopped     atomic.Bool

	pollWarn rate.Sometimes
	taskWarn rate.Sometimes
}

// New constructs an uninitialized reactor. Call Initialize before use.
func New(opts ...Option) *Reactor {
	r := &Reactor{
		log:       logrus.StandardLogger().WithField("component", "reactor"),
		maxEvents: defaultMaxEvents,
		tasks:     concurrency.NewTaskQueue(),
		regs:      make(map[uint64]*Registration),
		epfd:      -1,
		wakeRead:  -1,
		pollWarn:  rate.Sometimes{First: 3, Interval: time.Second},
		taskWarn:  rate.Sometimes{First: 10, Interval: time.Second},
	}
	r.wakeWrite.Store(-1)
	for _, o := range opts {
		o(r)
	}
	r.timers = concurrency.NewTimerWheel(r.clk, r.log)
	return r
}

// Post queues a task for the reactor goroutine. Safe from any goroutine.
// The poller is woken only on the empty to non-empty transition.
func (r *Reactor) Post(task api.Task) {
	if task == nil {
		return
	}
	if r.tasks.Push(task) {
		r.Wakeup()
	}
}

// CreateTimer schedules fn after delay. Reactor goroutine only.
func (r *Reactor) CreateTimer(delay time.Duration, fn func()) api.TimerID {
	return r.timers.CreateTimer(delay, fn)
}

// CancelTimer cancels a pending timer. It fails from within the timer's own
// callback. Reactor goroutine only.
func (r *Reactor) CancelTimer(id api.TimerID) bool {
	return r.timers.CancelTimer(id)
}

// Run drives RunOnce until Stop is called. It returns at once on an
// uninitialized reactor.
func (r *Reactor) Run() {
	if !r.initialized {
		return
	}
	for !r.stopped.Load() {
		r.RunOnce(false)
	}
}

// Stop asks Run to return after the current iteration.
func (r *Reactor) Stop() {
	r.stopped.Store(true)
	r.Wakeup()
}

// Stopped reports whether Stop was called.
func (r *Reactor) Stopped() bool {
	return r.stopped.Load()
}

// Now returns the reactor clock time.
func (r *Reactor) Now() time.Time {
	if r.clk == nil {
		return time.Now()
	}
	return r.clk.Now()
}

// Stats reports queue, timer and registration counts.
func (r *Reactor) Stats() Stats {
	return Stats{
		PendingTasks:  r.tasks.Len(),
		Timers:        r.timers.Len(),
		Registrations: len(r.regs),
	}
}

func (r *Reactor) pollTimeout(immediately bool) int {
	if immediately {
		return 0
	}
	d := r.timers.NextExpireTime()
	if d < 0 {
		return -1
	}
	ms := (d + time.Millisecond - 1) / time.Millisecond
	if ms > 1<<31-1 {
		ms = 1<<31 - 1
	}
	return int(ms)
}

func (r *Reactor) nextToken() uint64 {
	r.lastToken++
	if r.lastToken == 0 {
		r.lastToken++
	}
	return r.lastToken
}

// runTasks executes every task queued so far. Tasks posted while this runs
// land in a fresh queue and wait for the next wake.
func (r *Reactor) runTasks() {
	for _, task := range r.tasks.Swap() {
		if err := r.runTask(task); err != nil {
			r.taskWarn.Do(func() {
				r.log.WithError(err).Warn("posted task failed")
			})
		}
	}
}

func (r *Reactor) runTask(task api.Task) error {
	var err error
	if perr := oops.In("reactor").Recover(func() { err = task() }); perr != nil {
		return perr
	}
	return err
}

func (r *Reactor) dispatch(reg *Registration, ev Events) {
	defer func() {
		if p := recover(); p != nil {
			r.log.WithFields(logrus.Fields{
				"fd":    reg.FD,
				"role":  reg.Role.String(),
				"panic": p,
			}).Error("readiness handler panicked")
		}
	}()
	switch reg.Role {
	case RoleWakeup:
		r.drainWakeup()
		r.runTasks()
	case RoleListener:
		dispatchListener(reg, ev)
	case RoleStream:
		dispatchStream(reg, ev)
	case RoleDatagram:
		reg.Datagram.OnDatagramReady(ev)
	default:
		r.log.WithFields(logrus.Fields{
			"fd":   reg.FD,
			"role": reg.Role,
		}).Error("registration with unknown role")
	}
}
