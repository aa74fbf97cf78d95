// File: internal/transport/doc.go
// Package transport
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Non-blocking TCP endpoints driven by the reactor. Listener accepts in a
// loop on readability; Conn carries one stream through connect completion,
// buffered reads and a bounded write queue. Both are reactor-goroutine only.

package transport
