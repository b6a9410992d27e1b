package buffer

import (
	"io"
	"net"
)

// Queue accumulates serialized frames until they are flushed to the
// connection as a single vectored write. Chunks handed out by Alloc are
// recycled through Recycle after the write completes.
//
// Queue itself is not goroutine safe; the owning connection serializes
// Alloc/Append/Take. Recycle only touches the internal pool and may be
// called from the writing goroutine.
type Queue struct {
	pool chunkPool
	bufs net.Buffers
	len  int
}

func NewQueue() *Queue {
	return new(Queue)
}

// Alloc returns a pooled chunk of length n for building a single frame.
func (q *Queue) Alloc(n int) []byte {
	return q.pool.acquire(n)
}

// Append enqueues a filled chunk.
func (q *Queue) Append(b []byte) {
	q.bufs = append(q.bufs, b)
	q.len += len(b)
}

// Len reports the number of queued bytes.
func (q *Queue) Len() int { return q.len }

// Take moves the queued chunks out for writing. The caller passes them to
// Recycle once written.
func (q *Queue) Take() net.Buffers {
	bufs := q.bufs
	q.bufs = nil
	q.len = 0
	return bufs
}

// Recycle returns written chunks to the pool.
func (q *Queue) Recycle(bufs net.Buffers) {
	for _, b := range bufs {
		q.pool.release(b)
	}
}

// Flush writes and recycles all queued bytes.
func (q *Queue) Flush(w io.Writer) (int64, error) {
	bufs := q.Take()
	taken := bufs
	n, err := bufs.WriteTo(w)
	q.Recycle(taken)
	return n, err
}
