// File: api/config.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Listener and connector configuration, each paired with a runtime snapshot.

package api

import (
	"net/netip"
	"strings"
	"time"

	"github.com/samber/oops"
)

// Framer cuts a receive buffer into frames. FrameLength returns the length of
// the first complete frame in buf, 0 when more bytes are needed, or an error
// when the stream is malformed.
type Framer interface {
	FrameLength(buf []byte) (int, error)
}

// ListenConfig describes one acceptor.
type ListenConfig struct {
	IP            string        `mapstructure:"ip" yaml:"ip"`
	Port          uint16        `mapstructure:"port" yaml:"port"`
	Backlog       int           `mapstructure:"backlog" yaml:"backlog,omitempty"`
	MaxSessions   int           `mapstructure:"max_sessions" yaml:"max_sessions,omitempty"` // 0 = unlimited
	Whitelist     []string      `mapstructure:"whitelist" yaml:"whitelist,omitempty"`       // IP prefixes
	ProtoType     ProtoType     `mapstructure:"proto" yaml:"proto"`
	PulseInterval time.Duration `mapstructure:"pulse_interval" yaml:"pulse_interval,omitempty"`
	MaxFrameSize  int           `mapstructure:"max_frame_size" yaml:"max_frame_size,omitempty"`
	Framer        Framer        `mapstructure:"-" yaml:"-"`
}

// AddrPort parses IP and Port.
func (c ListenConfig) AddrPort() (netip.AddrPort, error) {
	return parseAddrPort(c.IP, c.Port)
}

// Allowed reports whether a remote address passes the whitelist.
func (c ListenConfig) Allowed(remote netip.Addr) bool {
	if len(c.Whitelist) == 0 {
		return true
	}
	ip := remote.Unmap().String()
	for _, prefix := range c.Whitelist {
		if strings.HasPrefix(ip, prefix) {
			return true
		}
	}
	return false
}

// ListenInfo is the runtime snapshot of an acceptor.
type ListenInfo struct {
	AccepterID AccepterID
	// Addr is the bound address, carrying the kernel-chosen port when the
	// config asked for port 0.
	Addr              netip.AddrPort
	TotalAccepted     uint64
	TotalAcceptFailed uint64
	CurrentLinked     int
	Closed            bool
}

// ConnectConfig describes one outbound connector.
type ConnectConfig struct {
	IP   string `mapstructure:"ip" yaml:"ip"`
	Port uint16 `mapstructure:"port" yaml:"port"`
	// ReconnectMaxCount bounds the attempts of one connect sequence; values
	// below 1 mean a single attempt. A dropped established session reconnects
	// only when it is positive.
	ReconnectMaxCount int           `mapstructure:"reconnect_max_count" yaml:"reconnect_max_count,omitempty"`
	ReconnectInterval time.Duration `mapstructure:"reconnect_interval" yaml:"reconnect_interval,omitempty"`
	ProtoType         ProtoType     `mapstructure:"proto" yaml:"proto"`
	PulseInterval     time.Duration `mapstructure:"pulse_interval" yaml:"pulse_interval,omitempty"`
	MaxFrameSize      int           `mapstructure:"max_frame_size" yaml:"max_frame_size,omitempty"`
	Framer            Framer        `mapstructure:"-" yaml:"-"`
}

// AddrPort parses IP and Port.
func (c ConnectConfig) AddrPort() (netip.AddrPort, error) {
	return parseAddrPort(c.IP, c.Port)
}

// MaxAttempts is the number of connect attempts one sequence may make.
func (c ConnectConfig) MaxAttempts() int {
	if c.ReconnectMaxCount < 1 {
		return 1
	}
	return c.ReconnectMaxCount
}

// ConnectInfo is the runtime snapshot of a connector.
type ConnectInfo struct {
	SessionID            SessionID
	Attempts             int
	TotalConnectAttempts uint64
	TotalConnected       uint64
	LastResult           error
	State                LinkState
}

func parseAddrPort(ip string, port uint16) (netip.AddrPort, error) {
	if ip == "" {
		ip = "0.0.0.0"
	}
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return netip.AddrPort{}, oops.Wrapf(ErrInvalidArgument, "parse ip %q: %v", ip, err)
	}
	return netip.AddrPortFrom(addr, port), nil
}
