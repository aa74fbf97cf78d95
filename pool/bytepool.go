// File: pool/bytepool.go
// Author: momentics <momentics@gmail.com>

package pool

import "sync/atomic"

// BytePool hands out fixed-size scratch buffers. Buffers are passed around as
// *[]byte so Put does not allocate.
type BytePool struct {
	pool   ObjectPool[*[]byte]
	size   int
	inUse  atomic.Int64
	misses atomic.Uint64
}

// NewBytePool creates a pool of size-byte buffers.
func NewBytePool(size int) *BytePool {
	b := &BytePool{size: size}
	b.pool = NewSyncPool(func() *[]byte {
		b.misses.Add(1)
		buf := make([]byte, size)
		return &buf
	})
	return b
}

// Get returns a buffer of exactly Size bytes.
func (b *BytePool) Get() *[]byte {
	b.inUse.Add(1)
	buf := b.pool.Get()
	*buf = (*buf)[:b.size]
	return buf
}

// Put returns a buffer obtained from Get. Foreign buffers are dropped.
func (b *BytePool) Put(buf *[]byte) {
	if buf == nil {
		return
	}
	b.inUse.Add(-1)
	if cap(*buf) < b.size {
		return
	}
	b.pool.Put(buf)
}

// Size is the length of every buffer handed out.
func (b *BytePool) Size() int { return b.size }

// InUse is the number of buffers currently checked out.
func (b *BytePool) InUse() int64 { return b.inUse.Load() }

// Allocated counts buffers created because the pool was empty.
func (b *BytePool) Allocated() uint64 { return b.misses.Load() }
