// Package pool
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Pending write batch for a stream connection. Not thread-safe; the owning
// reactor goroutine is the only user.

package pool

// MaxIovecs bounds the slices handed to a single writev call.
const MaxIovecs = 1024

// Batch is a FIFO of byte chunks waiting to be written.
type Batch struct {
	chunks [][]byte
	size   int
}

// NewBatch creates a batch with room for capacity chunks.
func NewBatch(capacity int) *Batch {
	return &Batch{chunks: make([][]byte, 0, capacity)}
}

// Append copies p to the tail of the batch.
func (b *Batch) Append(p []byte) {
	if len(p) == 0 {
		return
	}
	c := make([]byte, len(p))
	copy(c, p)
	b.chunks = append(b.chunks, c)
	b.size += len(p)
}

// Len returns the number of queued chunks.
func (b *Batch) Len() int { return len(b.chunks) }

// Size returns the number of queued bytes.
func (b *Batch) Size() int { return b.size }

// Empty reports whether nothing is queued.
func (b *Batch) Empty() bool { return b.size == 0 }

// Slices returns at most max head chunks, suitable for writev. The slices
// alias the batch and are valid until the next Consume or Append.
func (b *Batch) Slices(max int) [][]byte {
	if max <= 0 || max > len(b.chunks) {
		max = len(b.chunks)
	}
	return b.chunks[:max]
}

// Consume drops n bytes from the head, splitting a chunk if needed.
func (b *Batch) Consume(n int) {
	if n >= b.size {
		b.Reset()
		return
	}
	b.size -= n
	i := 0
	for n > 0 && n >= len(b.chunks[i]) {
		n -= len(b.chunks[i])
		b.chunks[i] = nil
		i++
	}
	if n > 0 {
		b.chunks[i] = b.chunks[i][n:]
	}
	b.chunks = b.chunks[i:]
}

// Reset drops everything.
func (b *Batch) Reset() {
	for i := range b.chunks {
		b.chunks[i] = nil
	}
	b.chunks = b.chunks[:0]
	b.size = 0
}
