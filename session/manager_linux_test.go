//go:build linux
// +build linux

package session

import (
	"errors"
	"net"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-net/api"
	"github.com/momentics/hioload-net/protocol"
)

type recorder struct {
	accepted   []api.SessionID
	connected  map[api.SessionID][]bool
	connectAt  []time.Time
	closed     []api.SessionID
	messages   map[api.SessionID][][]byte
	pulses     int
	onMessage  func(id api.SessionID, frame []byte)
	onConnect  func(id api.SessionID, ok bool)
	panicOnAcc bool
}

func newRecorder() *recorder {
	return &recorder{
		connected: make(map[api.SessionID][]bool),
		messages:  make(map[api.SessionID][][]byte),
	}
}

func (r *recorder) OnAccept(id api.SessionID, aID api.AccepterID) {
	r.accepted = append(r.accepted, id)
	if r.panicOnAcc {
		panic("handler bug")
	}
}

func (r *recorder) OnConnect(id api.SessionID, ok bool) {
	r.connected[id] = append(r.connected[id], ok)
	r.connectAt = append(r.connectAt, time.Now())
	if r.onConnect != nil {
		r.onConnect(id, ok)
	}
}

func (r *recorder) OnClose(id api.SessionID) { r.closed = append(r.closed, id) }

func (r *recorder) OnMessage(id api.SessionID, frame []byte) {
	r.messages[id] = append(r.messages[id], append([]byte(nil), frame...))
	if r.onMessage != nil {
		r.onMessage(id, frame)
	}
}

func (r *recorder) OnPulse(api.SessionID) { r.pulses++ }

func (r *recorder) establishedConnectors() int {
	n := 0
	for _, results := range r.connected {
		for _, ok := range results {
			if ok {
				n++
			}
		}
	}
	return n
}

func startManager(t *testing.T, h api.Handler) *Manager {
	t.Helper()
	m := New(WithHandler(h))
	require.NoError(t, m.Start())
	t.Cleanup(func() { _ = m.Close() })
	return m
}

// runUntil spins the loop until cond holds. A guard timer bounds each poll.
func runUntil(t *testing.T, m *Manager, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not reached")
		}
		guard := m.CreateTimer(10*time.Millisecond, func() {})
		require.True(t, m.RunOnce(false))
		m.CancelTimer(guard)
	}
}

func listen(t *testing.T, m *Manager, cfg api.ListenConfig) (api.AccepterID, uint16) {
	t.Helper()
	if cfg.IP == "" {
		cfg.IP = "127.0.0.1"
	}
	aID, err := m.AddAcceptor(cfg)
	require.NoError(t, err)
	_, info, ok := m.GetAcceptorConfig(aID)
	require.True(t, ok)
	return aID, info.Addr.Port()
}

// refusingPort returns a loopback port with nothing listening on it.
func refusingPort(t *testing.T) uint16 {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return uint16(port)
}

func TestManager_RequiresStart(t *testing.T) {
	m := New()
	_, err := m.AddAcceptor(api.ListenConfig{IP: "127.0.0.1"})
	assert.ErrorIs(t, err, api.ErrNotInitialized)
	_, err = m.AddConnector(api.ConnectConfig{IP: "127.0.0.1", Port: 1})
	assert.ErrorIs(t, err, api.ErrNotInitialized)
	assert.False(t, m.Run())

	require.NoError(t, m.Start())
	defer m.Close()
	assert.ErrorIs(t, m.Start(), api.ErrAlreadyInitialized)
	assert.False(t, m.Stats().OpenTime.IsZero())
}

func TestManager_IDRangesAndLookups(t *testing.T) {
	h := newRecorder()
	m := startManager(t, h)
	aID, port := listen(t, m, api.ListenConfig{})

	var connectors []api.SessionID
	for i := 0; i < 3; i++ {
		id, err := m.AddConnector(api.ConnectConfig{IP: "127.0.0.1", Port: port})
		require.NoError(t, err)
		assert.True(t, id.IsConnector())
		s, ok := m.GetSession(id)
		require.True(t, ok, "connector session exists before the socket connects")
		assert.Equal(t, api.LinkConnecting, s.State())
		connectors = append(connectors, id)
	}
	runUntil(t, m, func() bool { return len(h.accepted) == 3 && h.establishedConnectors() == 3 })

	seen := make(map[api.SessionID]bool)
	for _, id := range append(append([]api.SessionID{}, h.accepted...), connectors...) {
		assert.False(t, seen[id], "duplicate live id %v", id)
		seen[id] = true
	}
	for _, id := range h.accepted {
		assert.True(t, id.IsAccepted())
		got, ok := m.GetAccepterID(id)
		require.True(t, ok)
		assert.Equal(t, aID, got)
		ip, ok := m.RemoteIP(id)
		require.True(t, ok)
		assert.Equal(t, "127.0.0.1", ip)
	}

	_, ok := m.GetAccepterID(connectors[0])
	assert.False(t, ok)
	p, ok := m.RemotePort(connectors[0])
	require.True(t, ok)
	assert.Equal(t, port, p)

	_, info, ok := m.GetConnectorConfig(connectors[0])
	require.True(t, ok)
	assert.Equal(t, api.LinkEstablished, info.State)
	assert.Zero(t, info.Attempts, "attempts reset on success")
	assert.EqualValues(t, 1, info.TotalConnected)

	_, linfo, _ := m.GetAcceptorConfig(aID)
	assert.EqualValues(t, 3, linfo.TotalAccepted)
	assert.Equal(t, 3, linfo.CurrentLinked)

	st := m.Stats()
	assert.EqualValues(t, 3, st.TotalAcceptCount)
	assert.EqualValues(t, 3, st.TotalConnectCount)
	assert.EqualValues(t, 6, st.Sessions)
	assert.EqualValues(t, 1, st.Acceptors)
}

func TestManager_MessageEcho(t *testing.T) {
	h := newRecorder()
	m := startManager(t, h)
	h.onMessage = func(id api.SessionID, frame []byte) {
		if id.IsAccepted() {
			m.SendSessionData(id, frame)
		}
	}
	h.onConnect = func(id api.SessionID, ok bool) {
		if ok {
			m.SendSessionMessage(id, 7, []byte("ping"))
			m.SendSessionMessage(id, 8, []byte("pong"))
		}
	}
	_, port := listen(t, m, api.ListenConfig{})
	cid, err := m.AddConnector(api.ConnectConfig{IP: "127.0.0.1", Port: port})
	require.NoError(t, err)

	runUntil(t, m, func() bool { return len(h.messages[cid]) == 2 })
	for i, want := range []struct {
		proto api.ProtoID
		body  string
	}{{7, "ping"}, {8, "pong"}} {
		frame := h.messages[cid][i]
		hdr, err := protocol.DecodeHeader(frame)
		require.NoError(t, err)
		assert.Equal(t, want.proto, hdr.ProtoID)
		assert.Equal(t, want.body, string(frame[protocol.HeaderSize:]))
	}

	st := m.Stats()
	assert.EqualValues(t, 2, st.TotalSendMessages)
	assert.EqualValues(t, 4, st.TotalSendCount)
	assert.EqualValues(t, 4, st.TotalRecvMessages)
	assert.EqualValues(t, 4*(protocol.HeaderSize+4), st.TotalSendBytes)
	assert.Equal(t, st.TotalSendBytes, st.TotalRecvBytes)

	s, ok := m.GetSession(cid)
	require.True(t, ok)
	assert.EqualValues(t, 2*(protocol.HeaderSize+4), s.Stats().BytesSent)
}

func TestManager_HTTPModeDeliversRawChunks(t *testing.T) {
	h := newRecorder()
	m := startManager(t, h)
	_, port := listen(t, m, api.ListenConfig{ProtoType: api.ProtoHTTP})
	h.onConnect = func(id api.SessionID, ok bool) {
		if ok {
			m.SendSessionData(id, []byte("GET / HTTP/1.1\r\n\r\n"))
		}
	}
	_, err := m.AddConnector(api.ConnectConfig{IP: "127.0.0.1", Port: port, ProtoType: api.ProtoHTTP})
	require.NoError(t, err)

	runUntil(t, m, func() bool { return len(h.accepted) == 1 && len(h.messages[h.accepted[0]]) > 0 })
	var got []byte
	for _, chunk := range h.messages[h.accepted[0]] {
		got = append(got, chunk...)
	}
	assert.Equal(t, "GET / HTTP/1.1\r\n\r\n", string(got))
	assert.NotZero(t, m.Stats().TotalRecvHTTPCount)
	assert.Zero(t, m.Stats().TotalRecvMessages)
}

func TestManager_ReconnectExhaustsThenRemoves(t *testing.T) {
	h := newRecorder()
	m := startManager(t, h)
	port := refusingPort(t)

	start := time.Now()
	id, err := m.AddConnector(api.ConnectConfig{
		IP:                "127.0.0.1",
		Port:              port,
		ReconnectMaxCount: 3,
		ReconnectInterval: 100 * time.Millisecond,
	})
	require.NoError(t, err)

	runUntil(t, m, func() bool {
		_, ok := m.GetSession(id)
		return !ok
	})

	assert.Equal(t, []bool{false, false, false}, h.connected[id])
	require.Len(t, h.connectAt, 3)
	assert.Less(t, h.connectAt[0].Sub(start), 100*time.Millisecond)
	assert.GreaterOrEqual(t, h.connectAt[1].Sub(h.connectAt[0]), 90*time.Millisecond)
	assert.GreaterOrEqual(t, h.connectAt[2].Sub(h.connectAt[1]), 90*time.Millisecond)

	_, _, ok := m.GetConnectorConfig(id)
	assert.False(t, ok)
	assert.EqualValues(t, 3, m.Stats().TotalConnectFailCount)
	assert.Empty(t, h.closed, "never established, so no OnClose")
}

func TestManager_ZeroReconnectRemovesAfterFirstFailure(t *testing.T) {
	h := newRecorder()
	m := startManager(t, h)

	var during api.ConnectInfo
	var visible bool
	h.onConnect = func(id api.SessionID, ok bool) {
		_, during, visible = m.GetConnectorConfig(id)
	}
	id, err := m.AddConnector(api.ConnectConfig{IP: "127.0.0.1", Port: refusingPort(t)})
	require.NoError(t, err)

	runUntil(t, m, func() bool { return len(h.connected[id]) == 1 })
	assert.True(t, visible, "status stays queryable while the final failure is reported")
	assert.Equal(t, 1, during.Attempts)
	assert.Error(t, during.LastResult)

	_, ok := m.GetSession(id)
	assert.False(t, ok)

	// Nothing else is scheduled for the removed connector.
	deadline := time.Now().Add(150 * time.Millisecond)
	for time.Now().Before(deadline) {
		guard := m.CreateTimer(10*time.Millisecond, func() {})
		m.RunOnce(false)
		m.CancelTimer(guard)
	}
	assert.Len(t, h.connected[id], 1)
}

func TestManager_StopClientsWithNoSessions(t *testing.T) {
	m := startManager(t, newRecorder())
	fired := 0
	m.SetStopClientsHandler(func() { fired++ })

	m.StopClients()
	require.True(t, m.RunOnce(true))
	assert.Equal(t, 1, fired)

	m.StopClients()
	m.RunOnce(true)
	assert.Equal(t, 1, fired, "completion fires exactly once")
}

func TestManager_StopClientsWaitsForAllSessions(t *testing.T) {
	h := newRecorder()
	m := startManager(t, h)
	_, port := listen(t, m, api.ListenConfig{})
	for i := 0; i < 3; i++ {
		_, err := m.AddConnector(api.ConnectConfig{IP: "127.0.0.1", Port: port})
		require.NoError(t, err)
	}
	runUntil(t, m, func() bool { return len(h.accepted) == 3 && h.establishedConnectors() == 3 })

	fired := 0
	var closedAtFire int
	m.SetStopClientsHandler(func() {
		fired++
		closedAtFire = 0
		for _, id := range h.closed {
			if id.IsAccepted() {
				closedAtFire++
			}
		}
	})
	m.StopClients()
	runUntil(t, m, func() bool { return fired == 1 })
	assert.Equal(t, 3, closedAtFire)
	assert.EqualValues(t, 3, m.Stats().TotalAcceptClosedCount)

	runUntil(t, m, func() bool { return m.SessionCount() == 0 })
	assert.Equal(t, 1, fired)
}

func TestManager_StopServersSuppressesReconnect(t *testing.T) {
	h := newRecorder()
	m := startManager(t, h)
	id, err := m.AddConnector(api.ConnectConfig{
		IP:                "127.0.0.1",
		Port:              refusingPort(t),
		ReconnectMaxCount: 50,
		ReconnectInterval: 50 * time.Millisecond,
	})
	require.NoError(t, err)
	runUntil(t, m, func() bool { return len(h.connected[id]) == 1 })

	fired := 0
	m.SetStopServersHandler(func() { fired++ })
	m.StopServers()
	runUntil(t, m, func() bool { return fired == 1 })

	_, ok := m.GetSession(id)
	assert.False(t, ok)
	assert.Zero(t, m.Reactor().Stats().Timers, "pending reconnect was cancelled")

	_, err = m.AddConnector(api.ConnectConfig{IP: "127.0.0.1", Port: 1})
	assert.ErrorIs(t, err, api.ErrStopping)
}

func TestManager_StopAcceptAndStop(t *testing.T) {
	m := startManager(t, newRecorder())
	aID, _ := listen(t, m, api.ListenConfig{})

	m.StopAccept()
	require.True(t, m.RunOnce(true))
	_, info, ok := m.GetAcceptorConfig(aID)
	require.True(t, ok)
	assert.True(t, info.Closed)
	_, err := m.AddAcceptor(api.ListenConfig{IP: "127.0.0.1"})
	assert.ErrorIs(t, err, api.ErrStopping)

	m.Post(func() error { m.Stop(); return nil })
	assert.True(t, m.Run())
	assert.False(t, m.RunOnce(true))
}

func TestManager_SendAndKickMissesAreSilent(t *testing.T) {
	m := startManager(t, newRecorder())
	before := m.Stats()

	assert.NotPanics(t, func() {
		m.SendSessionData(12345, []byte("x"))
		m.SendSessionMessage(api.MiddleSessionID+99, 1, []byte("x"))
		m.KickSession(777)
		m.KickSession(api.InvalidSessionID)
	})
	assert.Equal(t, 0, m.SessionCount())
	assert.Equal(t, before, m.Stats())

	_, ok := m.RemoteIP(1)
	assert.False(t, ok)
	_, _, ok = m.GetAcceptorConfig(99)
	assert.False(t, ok)
	assert.False(t, m.RemoveAcceptor(99))
}

func TestManager_KickClosesBothEnds(t *testing.T) {
	h := newRecorder()
	m := startManager(t, h)
	_, port := listen(t, m, api.ListenConfig{})
	cid, err := m.AddConnector(api.ConnectConfig{
		IP:                "127.0.0.1",
		Port:              port,
		ReconnectMaxCount: 5,
		ReconnectInterval: 10 * time.Millisecond,
	})
	require.NoError(t, err)
	runUntil(t, m, func() bool { return len(h.accepted) == 1 && h.establishedConnectors() == 1 })

	sid := h.accepted[0]
	m.KickSession(sid)
	_, stillThere := m.GetSession(sid)
	assert.True(t, stillThere, "closure completes asynchronously")

	runUntil(t, m, func() bool { return len(h.closed) == 2 })
	assert.ElementsMatch(t, []api.SessionID{sid, cid}, h.closed)

	// The connector drops with reconnects allowed, so it comes back.
	runUntil(t, m, func() bool { return h.establishedConnectors() == 2 })
	m.KickSession(cid)
	runUntil(t, m, func() bool {
		_, ok := m.GetSession(cid)
		return !ok
	})
	assert.Equal(t, 2, h.establishedConnectors(), "kicked connector does not reconnect")
}

func TestManager_KickFromTimerCancelsPendingReconnect(t *testing.T) {
	h := newRecorder()
	m := startManager(t, h)
	_, port := listen(t, m, api.ListenConfig{})
	cid, err := m.AddConnector(api.ConnectConfig{
		IP:                "127.0.0.1",
		Port:              port,
		ReconnectMaxCount: 5,
		ReconnectInterval: 50 * time.Millisecond,
	})
	require.NoError(t, err)
	runUntil(t, m, func() bool { return len(h.accepted) == 1 && h.establishedConnectors() == 1 })

	m.KickSession(h.accepted[0])
	runUntil(t, m, func() bool { return len(h.closed) == 2 })

	// Both the kick and the reconnect timer are due in the same pass.
	m.CreateTimer(10*time.Millisecond, func() { m.KickSession(cid) })
	time.Sleep(80 * time.Millisecond)
	require.True(t, m.RunOnce(false))

	_, _, ok := m.GetConnectorConfig(cid)
	assert.False(t, ok)

	deadline := time.Now().Add(150 * time.Millisecond)
	for time.Now().Before(deadline) {
		guard := m.CreateTimer(10*time.Millisecond, func() {})
		require.True(t, m.RunOnce(false))
		m.CancelTimer(guard)
	}
	assert.Len(t, h.accepted, 1, "no redial after the kick")
	assert.Equal(t, 1, h.establishedConnectors())
	assert.Equal(t, 0, m.SessionCount())
}

func TestSession_ValuesArePerSession(t *testing.T) {
	h := newRecorder()
	m := startManager(t, h)
	_, port := listen(t, m, api.ListenConfig{})
	cid, err := m.AddConnector(api.ConnectConfig{IP: "127.0.0.1", Port: port})
	require.NoError(t, err)
	runUntil(t, m, func() bool { return len(h.accepted) == 1 && h.establishedConnectors() == 1 })

	accepted, ok := m.GetSession(h.accepted[0])
	require.True(t, ok)
	outbound, ok := m.GetSession(cid)
	require.True(t, ok)

	var v *Values = accepted.Values()
	v.Set("user", "alice")

	got := make(chan any, 1)
	go func() {
		val, _ := v.Get("user")
		got <- val
	}()
	assert.Equal(t, "alice", <-got)
	_, found := outbound.Values().Get("user")
	assert.False(t, found)
}

func TestManager_AcceptPolicies(t *testing.T) {
	h := newRecorder()
	m := startManager(t, h)

	limited, port := listen(t, m, api.ListenConfig{MaxSessions: 1})
	for i := 0; i < 2; i++ {
		_, err := m.AddConnector(api.ConnectConfig{IP: "127.0.0.1", Port: port})
		require.NoError(t, err)
	}
	runUntil(t, m, func() bool {
		_, info, _ := m.GetAcceptorConfig(limited)
		return info.TotalAccepted+info.TotalAcceptFailed == 2
	})
	_, info, _ := m.GetAcceptorConfig(limited)
	assert.EqualValues(t, 1, info.TotalAccepted)
	assert.EqualValues(t, 1, info.TotalAcceptFailed)

	guarded, port2 := listen(t, m, api.ListenConfig{Whitelist: []string{"10."}})
	_, err := m.AddConnector(api.ConnectConfig{IP: "127.0.0.1", Port: port2})
	require.NoError(t, err)
	runUntil(t, m, func() bool {
		_, info, _ := m.GetAcceptorConfig(guarded)
		return info.TotalAcceptFailed == 1
	})
	_, info, _ = m.GetAcceptorConfig(guarded)
	assert.Zero(t, info.TotalAccepted)

	assert.True(t, m.RemoveAcceptor(guarded))
	_, _, ok := m.GetAcceptorConfig(guarded)
	assert.False(t, ok)
}

func TestManager_Pulse(t *testing.T) {
	h := newRecorder()
	m := startManager(t, h)
	_, port := listen(t, m, api.ListenConfig{PulseInterval: 20 * time.Millisecond})
	_, err := m.AddConnector(api.ConnectConfig{IP: "127.0.0.1", Port: port})
	require.NoError(t, err)

	runUntil(t, m, func() bool { return h.pulses >= 3 })
}

func TestManager_HandlerPanicIsContained(t *testing.T) {
	h := newRecorder()
	h.panicOnAcc = true
	m := startManager(t, h)
	_, port := listen(t, m, api.ListenConfig{})
	_, err := m.AddConnector(api.ConnectConfig{IP: "127.0.0.1", Port: port})
	require.NoError(t, err)

	runUntil(t, m, func() bool { return len(h.accepted) == 1 && h.establishedConnectors() == 1 })
	assert.EqualValues(t, 2, m.Stats().Sessions)
}

func TestManager_FramingErrorClosesSession(t *testing.T) {
	h := newRecorder()
	m := startManager(t, h)
	_, port := listen(t, m, api.ListenConfig{MaxFrameSize: 64})
	h.onConnect = func(id api.SessionID, ok bool) {
		if ok {
			m.SendSessionMessage(id, 1, make([]byte, 128))
		}
	}
	_, err := m.AddConnector(api.ConnectConfig{IP: "127.0.0.1", Port: port})
	require.NoError(t, err)

	runUntil(t, m, func() bool { return len(h.accepted) == 1 && slices.Contains(h.closed, h.accepted[0]) })
	assert.Empty(t, h.messages[h.accepted[0]])
}

func TestManager_InvalidConnectTarget(t *testing.T) {
	m := startManager(t, newRecorder())
	_, err := m.AddConnector(api.ConnectConfig{IP: "not-an-ip", Port: 80})
	assert.True(t, errors.Is(err, api.ErrInvalidArgument))
	_, err = m.AddConnector(api.ConnectConfig{IP: "127.0.0.1"})
	assert.ErrorIs(t, err, api.ErrInvalidArgument)
}
