//go:build linux
// +build linux

// Package benchmarks
// Author: momentics <momentics@gmail.com>
//
// Performance benchmarks for hioload-net components.

package benchmarks

import (
	"testing"
	"time"

	"github.com/momentics/hioload-net/api"
	"github.com/momentics/hioload-net/pool"
	"github.com/momentics/hioload-net/protocol"
	"github.com/momentics/hioload-net/session"
)

// BenchmarkBytePool measures scratch buffer reuse under contention.
func BenchmarkBytePool(b *testing.B) {
	bp := pool.NewBytePool(64 * 1024)
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			buf := bp.Get()
			(*buf)[0] = 1
			bp.Put(buf)
		}
	})
}

// BenchmarkFrameSplit measures cutting a receive buffer into binary frames.
func BenchmarkFrameSplit(b *testing.B) {
	var stream []byte
	for i := 0; i < 64; i++ {
		stream = append(stream, protocol.EncodeFrame(api.ProtoID(i), make([]byte, 256))...)
	}
	framer := protocol.Binary{MaxFrameSize: protocol.DefaultMaxFrameSize}
	b.SetBytes(int64(len(stream)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		buf := stream
		for len(buf) > 0 {
			n, err := framer.FrameLength(buf)
			if err != nil || n == 0 {
				b.Fatal("bad stream")
			}
			buf = buf[n:]
		}
	}
}

// BenchmarkLoopbackEcho measures request/response round trips through one
// manager holding both the listener and the connector.
func BenchmarkLoopbackEcho(b *testing.B) {
	var m *session.Manager
	var client api.SessionID
	var ready bool
	replies := 0
	body := make([]byte, 512)

	m = session.New(session.WithHandler(api.HandlerFuncs{
		Connect: func(id api.SessionID, ok bool) { ready = ok },
		Message: func(id api.SessionID, frame []byte) {
			if id.IsAccepted() {
				m.SendSessionData(id, frame)
				return
			}
			replies++
		},
	}))
	if err := m.Start(); err != nil {
		b.Fatal(err)
	}
	defer m.Close()

	aID, err := m.AddAcceptor(api.ListenConfig{IP: "127.0.0.1"})
	if err != nil {
		b.Fatal(err)
	}
	_, info, _ := m.GetAcceptorConfig(aID)
	if client, err = m.AddConnector(api.ConnectConfig{IP: "127.0.0.1", Port: info.Addr.Port()}); err != nil {
		b.Fatal(err)
	}
	spin := func(done func() bool) {
		deadline := time.Now().Add(10 * time.Second)
		for !done() {
			if time.Now().After(deadline) {
				b.Fatal("loop stalled")
			}
			guard := m.CreateTimer(time.Millisecond, func() {})
			m.RunOnce(false)
			m.CancelTimer(guard)
		}
	}
	spin(func() bool { return ready })

	b.SetBytes(int64(protocol.HeaderSize+len(body)) * 2)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		m.SendSessionMessage(client, 1, body)
		want := i + 1
		spin(func() bool { return replies == want })
	}
}
