// Package protocol
// Author: momentics <momentics@gmail.com>
//
// Frame boundary detection for session byte streams: the binary
// length-prefixed codec and the raw pass-through used in HTTP mode. Sessions
// accept any api.Framer, so applications can plug their own codec.
package protocol
