package proxy

import (
	"net/http/httputil"
	"sync"
)

// relayBufferSize matches io.Copy's default buffer.
const relayBufferSize = 32 * 1024

var relayBuffers = NewBufferPool(relayBufferSize)

type bufferPool struct {
	pool sync.Pool
}

// NewBufferPool returns a pool of fixed size byte slices.
func NewBufferPool(size int) httputil.BufferPool {
	bp := &bufferPool{}
	bp.pool.New = func() any {
		b := make([]byte, size)
		return &b
	}
	return bp
}

func (p *bufferPool) Get() []byte {
	return *p.pool.Get().(*[]byte)
}

func (p *bufferPool) Put(b []byte) {
	b = b[:cap(b)]
	p.pool.Put(&b)
}
