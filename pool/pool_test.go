package pool_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-net/pool"
)

func TestBytePool_GetPut(t *testing.T) {
	bp := pool.NewBytePool(128)
	b1 := bp.Get()
	require.Len(t, *b1, 128)
	assert.EqualValues(t, 1, bp.InUse())

	*b1 = (*b1)[:10]
	bp.Put(b1)
	assert.EqualValues(t, 0, bp.InUse())

	b2 := bp.Get()
	assert.Len(t, *b2, 128, "length is restored on reuse")
	bp.Put(b2)
	bp.Put(nil)
	assert.EqualValues(t, 0, bp.InUse())
}

func TestBatch_ConsumeSplitsChunks(t *testing.T) {
	b := pool.NewBatch(4)
	b.Append([]byte("hello"))
	b.Append(nil)
	b.Append([]byte("world"))
	require.Equal(t, 2, b.Len())
	require.Equal(t, 10, b.Size())

	b.Consume(3)
	assert.Equal(t, 7, b.Size())
	assert.Equal(t, [][]byte{[]byte("lo"), []byte("world")}, b.Slices(0))

	b.Consume(2)
	assert.Equal(t, [][]byte{[]byte("world")}, b.Slices(0))

	b.Consume(100)
	assert.True(t, b.Empty())
	assert.Equal(t, 0, b.Len())
}

func TestBatch_AppendCopies(t *testing.T) {
	b := pool.NewBatch(1)
	src := []byte("abc")
	b.Append(src)
	src[0] = 'x'
	assert.Equal(t, []byte("abc"), b.Slices(1)[0])
}

func TestBatch_SlicesLimit(t *testing.T) {
	b := pool.NewBatch(0)
	for i := 0; i < 5; i++ {
		b.Append([]byte{byte(i)})
	}
	assert.Len(t, b.Slices(2), 2)
	assert.Len(t, b.Slices(10), 5)
}

func TestSyncPool_Typed(t *testing.T) {
	created := 0
	sp := pool.NewSyncPool(func() *int {
		created++
		v := 7
		return &v
	})
	v := sp.Get()
	assert.Equal(t, 7, *v)
	sp.Put(v)
	assert.GreaterOrEqual(t, created, 1)
}
