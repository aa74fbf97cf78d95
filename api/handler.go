// File: api/handler.go
// Package api defines the upward dispatch contract.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

// Handler receives session lifecycle events and framed payloads. All methods
// run on the reactor goroutine; implementations may call back into the
// manager (send, kick, add connectors) directly.
type Handler interface {
	// OnAccept is raised after an inbound session is registered.
	OnAccept(id SessionID, aID AccepterID)
	// OnConnect is raised for every outbound connect attempt result.
	OnConnect(id SessionID, connected bool)
	// OnClose is raised once an established session is gone.
	OnClose(id SessionID)
	// OnMessage delivers one frame. The slice is only valid during the call.
	OnMessage(id SessionID, frame []byte)
	// OnPulse fires every PulseInterval for sessions that configure one.
	OnPulse(id SessionID)
}

// HandlerFuncs adapts optional callbacks to Handler. Nil fields are skipped.
type HandlerFuncs struct {
	Accept  func(id SessionID, aID AccepterID)
	Connect func(id SessionID, connected bool)
	Close   func(id SessionID)
	Message func(id SessionID, frame []byte)
	Pulse   func(id SessionID)
}

var _ Handler = HandlerFuncs{}

func (h HandlerFuncs) OnAccept(id SessionID, aID AccepterID) {
	if h.Accept != nil {
		h.Accept(id, aID)
	}
}

func (h HandlerFuncs) OnConnect(id SessionID, connected bool) {
	if h.Connect != nil {
		h.Connect(id, connected)
	}
}

func (h HandlerFuncs) OnClose(id SessionID) {
	if h.Close != nil {
		h.Close(id)
	}
}

func (h HandlerFuncs) OnMessage(id SessionID, frame []byte) {
	if h.Message != nil {
		h.Message(id, frame)
	}
}

func (h HandlerFuncs) OnPulse(id SessionID) {
	if h.Pulse != nil {
		h.Pulse(id)
	}
}
