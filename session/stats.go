// File: session/stats.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package session

import (
	"sync/atomic"
	"time"
)

// Stats is a snapshot of manager counters. Counters only grow; Sessions and
// Acceptors are gauges.
type Stats struct {
	TotalConnectCount       uint64
	TotalConnectFailCount   uint64
	TotalAcceptCount        uint64
	TotalAcceptFailCount    uint64
	TotalConnectClosedCount uint64
	TotalAcceptClosedCount  uint64

	TotalSendCount    uint64
	TotalSendBytes    uint64
	TotalSendMessages uint64
	TotalRecvCount    uint64
	TotalRecvBytes    uint64
	TotalRecvMessages uint64
	// TotalRecvHTTPCount counts chunks delivered in HTTP mode.
	TotalRecvHTTPCount uint64

	OpenTime time.Time

	Sessions  int64
	Acceptors int64
}

type counters struct {
	connect       atomic.Uint64
	connectFail   atomic.Uint64
	accept        atomic.Uint64
	acceptFail    atomic.Uint64
	connectClosed atomic.Uint64
	acceptClosed  atomic.Uint64

	sendCount    atomic.Uint64
	sendBytes    atomic.Uint64
	sendMessages atomic.Uint64
	recvCount    atomic.Uint64
	recvBytes    atomic.Uint64
	recvMessages atomic.Uint64
	recvHTTP     atomic.Uint64

	openTime  atomic.Int64
	sessions  atomic.Int64
	acceptors atomic.Int64
}

func (c *counters) snapshot() Stats {
	s := Stats{
		TotalConnectCount:       c.connect.Load(),
		TotalConnectFailCount:   c.connectFail.Load(),
		TotalAcceptCount:        c.accept.Load(),
		TotalAcceptFailCount:    c.acceptFail.Load(),
		TotalConnectClosedCount: c.connectClosed.Load(),
		TotalAcceptClosedCount:  c.acceptClosed.Load(),
		TotalSendCount:          c.sendCount.Load(),
		TotalSendBytes:          c.sendBytes.Load(),
		TotalSendMessages:       c.sendMessages.Load(),
		TotalRecvCount:          c.recvCount.Load(),
		TotalRecvBytes:          c.recvBytes.Load(),
		TotalRecvMessages:       c.recvMessages.Load(),
		TotalRecvHTTPCount:      c.recvHTTP.Load(),
		Sessions:                c.sessions.Load(),
		Acceptors:               c.acceptors.Load(),
	}
	if ns := c.openTime.Load(); ns != 0 {
		s.OpenTime = time.Unix(0, ns)
	}
	return s
}
