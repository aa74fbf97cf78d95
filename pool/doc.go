// Package pool
// Author: momentics <momentics@gmail.com>
//
// Memory reuse for the I/O path: a generic sync.Pool wrapper, fixed-size
// scratch buffers for socket reads, and the pending-write batch drained with
// writev(2).
package pool
