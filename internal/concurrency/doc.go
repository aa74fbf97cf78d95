// File: internal/concurrency/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Scheduling primitives for the single-threaded reactor: a heap-ordered
// one-shot TimerWheel and the lock-protected TaskQueue used to hand work to
// the reactor goroutine from anywhere else. PinCurrentThread binds the loop
// thread to a CPU.
package concurrency
