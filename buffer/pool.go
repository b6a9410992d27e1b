package buffer

import "sync"

const minChunkSize = 512

type chunkPool struct {
	mu sync.Mutex
	s  [][]byte
}

func (p *chunkPool) acquire(n int) []byte {
	p.mu.Lock()
	l := len(p.s)
	if l == 0 {
		p.mu.Unlock()
		size := n
		if size < minChunkSize {
			size = minChunkSize
		}
		return make([]byte, n, size)
	}

	b := p.s[l-1]
	p.s = p.s[:l-1]
	p.mu.Unlock()

	if cap(b) < n {
		return make([]byte, n)
	}
	return b[:n]
}

func (p *chunkPool) release(b []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.s = append(p.s, b)
}
