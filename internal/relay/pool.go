package relay

import "sync"

type bufferPool struct {
	pool sync.Pool
}

func newBufferPool(size int) *bufferPool {
	bp := &bufferPool{}
	bp.pool.New = func() any {
		b := make([]byte, size)
		return &b
	}

	return bp
}

func (p *bufferPool) Get() []byte {
	b := p.pool.Get().(*[]byte)
	return *b
}

// Put returns b to the pool at full capacity, so callers may pass a
// resliced chunk.
func (p *bufferPool) Put(b []byte) {
	b = b[:cap(b)]
	// This &b forces a 32-byte heap allocation.  There's no way to avoid this when converting a non-pointer to an interface{}.
	p.pool.Put(&b)
}
