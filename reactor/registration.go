// File: reactor/registration.go
// Author: momentics <momentics@gmail.com>
//
// Registration records bind one watched descriptor to the endpoint that owns
// it. The reactor resolves every readiness event back to a record through an
// opaque token and dispatches on the record's role.

package reactor

// Events is a platform-neutral readiness bit set.
type Events uint32

const (
	EventRead Events = 1 << iota
	EventWrite
	EventError
	EventHangup
)

// Role tags what a registration stands for.
type Role uint8

const (
	RoleWakeup Role = iota + 1
	RoleListener
	RoleStream
	RoleDatagram
)

func (r Role) String() string {
	switch r {
	case RoleWakeup:
		return "wakeup"
	case RoleListener:
		return "listener"
	case RoleStream:
		return "stream"
	case RoleDatagram:
		return "datagram"
	default:
		return "unknown"
	}
}

// Op is a pending operation on a stream registration.
type Op uint8

const (
	OpConnect Op = 1 << iota
	OpRecv
	OpSend
)

// AcceptHandler is implemented by listening endpoints. ok is false when the
// descriptor reported an error or hangup.
type AcceptHandler interface {
	OnAcceptReady(ok bool)
}

// StreamHandler is implemented by connected or connecting endpoints. Each
// method corresponds to one pending Op; failed is set on error or hangup.
type StreamHandler interface {
	OnConnectReady(failed bool)
	OnRecvReady(failed bool)
	OnSendReady(failed bool)
}

// DatagramHandler is implemented by connectionless endpoints.
type DatagramHandler interface {
	OnDatagramReady(ev Events)
}

// Registration is the record for one descriptor. Exactly one handler field
// matching Role is set. Pending is only meaningful for RoleStream and decides
// both the interest set and which handler method receives an event.
type Registration struct {
	FD      int
	Role    Role
	Pending Op

	// Interest is used as-is for RoleDatagram.
	Interest Events

	Acceptor AcceptHandler
	Stream   StreamHandler
	Datagram DatagramHandler

	token uint64
}

// NewListenerRegistration builds a RoleListener record.
func NewListenerRegistration(fd int, h AcceptHandler) *Registration {
	return &Registration{FD: fd, Role: RoleListener, Acceptor: h}
}

// NewStreamRegistration builds a RoleStream record with the given pending ops.
func NewStreamRegistration(fd int, pending Op, h StreamHandler) *Registration {
	return &Registration{FD: fd, Role: RoleStream, Pending: pending, Stream: h}
}

// NewDatagramRegistration builds a RoleDatagram record.
func NewDatagramRegistration(fd int, interest Events, h DatagramHandler) *Registration {
	return &Registration{FD: fd, Role: RoleDatagram, Interest: interest, Datagram: h}
}

// Registered reports whether the record is currently active in a reactor.
func (reg *Registration) Registered() bool {
	return reg.token != 0
}

func (reg *Registration) hasHandler() bool {
	switch reg.Role {
	case RoleWakeup:
		return true
	case RoleListener:
		return reg.Acceptor != nil
	case RoleStream:
		return reg.Stream != nil
	case RoleDatagram:
		return reg.Datagram != nil
	default:
		return false
	}
}

func (reg *Registration) interest() Events {
	switch reg.Role {
	case RoleWakeup, RoleListener:
		return EventRead
	case RoleStream:
		var ev Events
		if reg.Pending&OpRecv != 0 {
			ev |= EventRead
		}
		if reg.Pending&(OpConnect|OpSend) != 0 {
			ev |= EventWrite
		}
		return ev
	default:
		return reg.Interest
	}
}

// dispatchStream routes a stream event. Error or hangup wins over writable,
// writable wins over readable; level-triggered polling re-reports whatever
// is left for the next iteration.
func dispatchStream(reg *Registration, ev Events) {
	h := reg.Stream
	if ev&(EventError|EventHangup) != 0 {
		switch {
		case reg.Pending&OpConnect != 0:
			h.OnConnectReady(true)
		case reg.Pending&OpRecv != 0:
			h.OnRecvReady(true)
		case reg.Pending&OpSend != 0:
			h.OnSendReady(true)
		}
		return
	}
	if ev&EventWrite != 0 {
		if reg.Pending&OpConnect != 0 {
			h.OnConnectReady(false)
			return
		}
		if reg.Pending&OpSend != 0 {
			h.OnSendReady(false)
			return
		}
	}
	if ev&EventRead != 0 && reg.Pending&OpRecv != 0 {
		h.OnRecvReady(false)
	}
}

func dispatchListener(reg *Registration, ev Events) {
	if ev&(EventError|EventHangup) != 0 {
		reg.Acceptor.OnAcceptReady(false)
		return
	}
	if ev&EventRead != 0 {
		reg.Acceptor.OnAcceptReady(true)
	}
}
