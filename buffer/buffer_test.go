package buffer_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/flowgate/flowgate/buffer"
)

func TestQueueFlush(t *testing.T) {
	t.Parallel()
	a := assert.New(t)

	q := buffer.NewQueue()
	a.Equal(0, q.Len())

	b := q.Alloc(3)
	copy(b, "abc")
	q.Append(b)

	b = q.Alloc(4)
	copy(b, "defg")
	q.Append(b)
	a.Equal(7, q.Len())

	out := bytes.NewBuffer(nil)
	n, err := q.Flush(out)
	a.NoError(err)
	a.Equal(int64(7), n)
	a.Equal("abcdefg", out.String())
	a.Equal(0, q.Len())
}

func TestQueueTakeRecycle(t *testing.T) {
	t.Parallel()
	a := assert.New(t)

	q := buffer.NewQueue()
	b := q.Alloc(5)
	copy(b, "hello")
	q.Append(b)

	bufs := q.Take()
	a.Equal(0, q.Len())
	a.Len(bufs, 1)
	a.Equal([]byte("hello"), bufs[0])

	out := bytes.NewBuffer(nil)
	taken := bufs
	_, err := bufs.WriteTo(out)
	a.NoError(err)
	q.Recycle(taken)
	a.Equal("hello", out.String())

	// recycled chunks are reused
	b = q.Alloc(5)
	copy(b, "world")
	q.Append(b)
	a.Equal(5, q.Len())
}

func TestQueueAllocGrows(t *testing.T) {
	t.Parallel()
	a := assert.New(t)

	q := buffer.NewQueue()
	small := q.Alloc(1)
	a.Len(small, 1)
	q.Append(small)
	q.Recycle(q.Take())

	big := q.Alloc(100_000)
	a.Len(big, 100_000)
}
