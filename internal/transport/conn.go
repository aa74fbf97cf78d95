// File: internal/transport/conn.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package transport

import (
	"sync/atomic"

	"github.com/momentics/hioload-net/pool"
)

const (
	// DefaultMaxSendQueueBytes caps bytes waiting for writability.
	DefaultMaxSendQueueBytes = 4 << 20
	// DefaultRecvBufferSize is the scratch buffer used per read call.
	DefaultRecvBufferSize = 64 << 10
	// DefaultRecvBudget bounds read calls per readiness event.
	DefaultRecvBudget = 16
)

var recvBuffers = pool.NewBytePool(DefaultRecvBufferSize)

// ConnEvents receives the lifecycle of a Conn on the reactor goroutine.
type ConnEvents interface {
	// OnConnected reports the outcome of Dial. It is not called for Attach.
	// After a non-nil err the Conn is already closed and OnClosed will not
	// follow.
	OnConnected(err error)
	// OnData delivers received bytes. p is only valid during the call.
	OnData(p []byte)
	// OnClosed is posted once after the descriptor has been released.
	OnClosed(reason error)
}

// ConnOptions tunes a Conn. Zero values select the defaults.
type ConnOptions struct {
	MaxSendQueueBytes int
	RecvBudget        int
}

func (o ConnOptions) withDefaults() ConnOptions {
	if o.MaxSendQueueBytes <= 0 {
		o.MaxSendQueueBytes = DefaultMaxSendQueueBytes
	}
	if o.RecvBudget <= 0 {
		o.RecvBudget = DefaultRecvBudget
	}
	return o
}

// Counters is a snapshot of per-connection traffic.
type Counters struct {
	BytesSent uint64
	BytesRecv uint64
	SendOps   uint64
	RecvOps   uint64
}

type counters struct {
	bytesSent atomic.Uint64
	bytesRecv atomic.Uint64
	sendOps   atomic.Uint64
	recvOps   atomic.Uint64
}

func (c *counters) snapshot() Counters {
	return Counters{
		BytesSent: c.bytesSent.Load(),
		BytesRecv: c.bytesRecv.Load(),
		SendOps:   c.sendOps.Load(),
		RecvOps:   c.recvOps.Load(),
	}
}
