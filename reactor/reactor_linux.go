//go:build linux
// +build linux

// File: reactor/reactor_linux.go
// Author: momentics <momentics@gmail.com>
//
// Linux epoll(7) backend. The wakeup channel is a non-blocking AF_UNIX
// socket pair whose read end is registered like any other descriptor.

package reactor

import (
	"github.com/samber/oops"
	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"
	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-net/api"
)

type eventBuffer []unix.EpollEvent

// Initialize creates the epoll instance and the wakeup pair. Failures are
// fatal and leave no descriptor behind.
func (r *Reactor) Initialize() error {
	if r.initialized {
		return api.ErrAlreadyInitialized
	}
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return oops.In("reactor").Wrapf(err, "epoll create")
	}
	pair, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		_ = unix.Close(epfd)
		return oops.In("reactor").Wrapf(err, "create wakeup socketpair")
	}
	r.epfd = epfd
	r.wakeRead = pair[1]
	r.wakeReg = &Registration{FD: pair[1], Role: RoleWakeup}
	if err := r.Register(r.wakeReg); err != nil {
		_ = multierr.Combine(unix.Close(pair[0]), unix.Close(pair[1]), unix.Close(epfd))
		r.epfd, r.wakeRead, r.wakeReg = -1, -1, nil
		return oops.In("reactor").Wrapf(err, "register wakeup descriptor")
	}
	r.wakeWrite.Store(int32(pair[0]))
	r.events = make(eventBuffer, r.maxEvents)
	r.initialized = true

	// Tasks posted before Initialize had no descriptor to wake.
	if r.tasks.Len() > 0 {
		r.Wakeup()
	}
	r.log.WithFields(logrus.Fields{
		"epfd":      epfd,
		"wake_pair": pair,
	}).Debug("reactor initialized")
	return nil
}

// Wakeup forces a blocked poll to return. Safe from any goroutine.
func (r *Reactor) Wakeup() {
	fd := int(r.wakeWrite.Load())
	if fd < 0 {
		return
	}
	// EAGAIN means the pair already holds unread bytes.
	_, _ = unix.Write(fd, []byte{0})
}

func (r *Reactor) drainWakeup() {
	var buf [256]byte
	for {
		n, err := unix.Read(r.wakeRead, buf[:])
		if n <= 0 || err != nil {
			return
		}
	}
}

// Register adds reg to the interest set.
func (r *Reactor) Register(reg *Registration) error {
	if r.epfd < 0 {
		return api.ErrNotInitialized
	}
	if reg.token != 0 {
		return oops.In("reactor").With("fd", reg.FD).Wrapf(api.ErrInvalidArgument, "registration already active")
	}
	if !reg.hasHandler() {
		return oops.In("reactor").With("fd", reg.FD, "role", reg.Role.String()).Wrapf(api.ErrInvalidArgument, "no handler for role")
	}
	token := r.nextToken()
	ev := epollEvent(reg.interest(), token)
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_ADD, reg.FD, &ev); err != nil {
		return oops.In("reactor").With("fd", reg.FD).Wrapf(err, "epoll ctl add")
	}
	reg.token = token
	r.regs[token] = reg
	return nil
}

// Modify re-applies the interest set derived from reg.
func (r *Reactor) Modify(reg *Registration) error {
	if reg.token == 0 {
		return oops.In("reactor").With("fd", reg.FD).Wrapf(api.ErrNotFound, "registration not active")
	}
	ev := epollEvent(reg.interest(), reg.token)
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_MOD, reg.FD, &ev); err != nil {
		return oops.In("reactor").With("fd", reg.FD).Wrapf(err, "epoll ctl mod")
	}
	return nil
}

// Unregister removes reg. Events already collected for it in the current
// iteration are dropped. The descriptor must still be open.
func (r *Reactor) Unregister(reg *Registration) error {
	if reg.token == 0 {
		return nil
	}
	delete(r.regs, reg.token)
	reg.token = 0
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_DEL, reg.FD, nil); err != nil {
		return oops.In("reactor").With("fd", reg.FD).Wrapf(err, "epoll ctl del")
	}
	return nil
}

// RunOnce performs one poll, fires expired timers and dispatches readiness.
// With immediately set the poll does not block.
func (r *Reactor) RunOnce(immediately bool) {
	if r.epfd < 0 {
		return
	}
	events := r.events
	n, err := unix.EpollWait(r.epfd, events, r.pollTimeout(immediately))
	if err != nil {
		if err != unix.EINTR {
			r.pollWarn.Do(func() {
				r.log.WithError(err).Warn("epoll wait failed")
			})
		}
		return
	}

	r.timers.CheckTimer()
	if n == 0 {
		return
	}

	for i := 0; i < n; i++ {
		token := eventToken(&events[i])
		reg, ok := r.regs[token]
		if !ok {
			// unregistered earlier in this batch
			continue
		}
		r.dispatch(reg, fromEpoll(events[i].Events))
	}
}

// Close releases the epoll instance and the wakeup pair. Registered
// endpoints keep ownership of their own descriptors.
func (r *Reactor) Close() error {
	var err error
	if fd := int(r.wakeWrite.Swap(-1)); fd >= 0 {
		err = multierr.Append(err, unix.Close(fd))
	}
	if r.wakeRead >= 0 {
		err = multierr.Append(err, unix.Close(r.wakeRead))
		r.wakeRead = -1
	}
	if r.epfd >= 0 {
		err = multierr.Append(err, unix.Close(r.epfd))
		r.epfd = -1
	}
	r.regs = make(map[uint64]*Registration)
	r.wakeReg = nil
	if err != nil {
		return oops.In("reactor").Wrapf(err, "close")
	}
	return nil
}

func epollEvent(ev Events, token uint64) unix.EpollEvent {
	var mask uint32
	if ev&EventRead != 0 {
		mask |= unix.EPOLLIN
	}
	if ev&EventWrite != 0 {
		mask |= unix.EPOLLOUT
	}
	return unix.EpollEvent{
		Events: mask,
		Fd:     int32(uint32(token)),
		Pad:    int32(uint32(token >> 32)),
	}
}

func eventToken(ev *unix.EpollEvent) uint64 {
	return uint64(uint32(ev.Fd)) | uint64(uint32(ev.Pad))<<32
}

func fromEpoll(mask uint32) Events {
	var ev Events
	if mask&unix.EPOLLIN != 0 {
		ev |= EventRead
	}
	if mask&unix.EPOLLOUT != 0 {
		ev |= EventWrite
	}
	if mask&unix.EPOLLERR != 0 {
		ev |= EventError
	}
	if mask&unix.EPOLLHUP != 0 {
		ev |= EventHangup
	}
	return ev
}
