// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

package main

import (
	"github.com/sirupsen/logrus"

	"github.com/momentics/hioload-net/api"
	"github.com/momentics/hioload-net/session"
)

// echoHandler sends every frame back on the session it arrived on.
type echoHandler struct {
	m   *session.Manager
	log logrus.FieldLogger
}

var _ api.Handler = (*echoHandler)(nil)

func (h *echoHandler) OnAccept(id api.SessionID, aID api.AccepterID) {
	h.log.WithFields(logrus.Fields{"session_id": id, "accepter_id": aID}).Debug("accepted")
}

func (h *echoHandler) OnConnect(id api.SessionID, connected bool) {
	h.log.WithFields(logrus.Fields{"session_id": id, "connected": connected}).Debug("connect result")
}

func (h *echoHandler) OnClose(id api.SessionID) {
	h.log.WithField("session_id", id).Debug("closed")
}

func (h *echoHandler) OnMessage(id api.SessionID, frame []byte) {
	h.m.SendSessionData(id, frame)
}

func (h *echoHandler) OnPulse(api.SessionID) {}
