// Package api
// Author: momentics <momentics@gmail.com>
//
// Common error values shared by the reactor, transport and session layers.
// Compare with errors.Is; call sites wrap them with oops.Wrapf for context.

package api

import "errors"

var (
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrNotSupported       = errors.New("operation not supported on this platform")
	ErrNotFound           = errors.New("resource not found")
	ErrAlreadyInitialized = errors.New("reactor already initialized")
	ErrNotInitialized     = errors.New("reactor not initialized")
	ErrNotEstablished     = errors.New("connection is not established")
	ErrConnectionClosed   = errors.New("connection is closed")
	ErrSendOverflow       = errors.New("send queue limit exceeded")
	ErrPeerClosed         = errors.New("peer closed the connection")
	ErrFrameSize          = errors.New("frame length out of range")
	ErrAcceptRefused      = errors.New("accept refused by listener policy")
	ErrStopping           = errors.New("manager is stopping")
)
