// Package pixpool recycles off-heap buffers for decoded raw pixels.
// Buffers are anonymous memory maps, so big images do not grow the Go heap
// and the memory is handed back to the OS when a buffer is unmapped.
package pixpool

import (
	"log/slog"
	"sync/atomic"

	"github.com/edsrzf/mmap-go"
)

// Pool hands out buffers of a fixed capacity. Requests for more than that
// capacity are served from the Go heap and never enter the pool.
type Pool struct {
	free     chan mmap.MMap
	bufSize  int
	mapped   atomic.Int32
	fallback atomic.Int32
	log      *slog.Logger
}

// New returns a pool keeping at most size idle buffers of bufSize bytes each.
// Buffers are mapped on demand.
func New(bufSize, size int, logger *slog.Logger) *Pool {
	if bufSize < 64 {
		panic("pixpool: buffer size too small")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Pool{free: make(chan mmap.MMap, size), bufSize: bufSize, log: logger}
}

// Buffer is a pixel buffer of the requested length. Release must be called
// exactly once when the pixels are no longer used.
type Buffer struct {
	Bytes []byte
	pool  *Pool
	m     mmap.MMap
}

// Get returns a buffer with len(Bytes) == n. The contents are undefined.
func (p *Pool) Get(n int) *Buffer {
	if n > p.bufSize {
		p.fallback.Add(1)
		p.log.Debug("pixel buffer bigger than pool buffers, using heap", "size", n, "bufSize", p.bufSize)
		return &Buffer{Bytes: make([]byte, n)}
	}
	select {
	case m := <-p.free:
		return &Buffer{Bytes: m[:n], pool: p, m: m}
	default:
	}
	m, err := mmap.MapRegion(nil, p.bufSize, mmap.RDWR, mmap.ANON, 0)
	if err != nil {
		p.log.Warn("mapping pixel buffer failed, using heap", "err", err)
		return &Buffer{Bytes: make([]byte, n)}
	}
	if created := p.mapped.Add(1); created > int32(p.Size()) {
		p.log.Debug("more pixel buffers mapped than the pool keeps", "mapped", created, "poolSize", p.Size())
	}
	return &Buffer{Bytes: m[:n], pool: p, m: m}
}

// Release hands the buffer back. Heap buffers are left to the garbage collector.
func (b *Buffer) Release() {
	if b == nil || b.m == nil {
		return
	}
	m := b.m
	b.m, b.Bytes = nil, nil
	b.pool.put(m)
}

// Mapped reports whether the buffer lives outside the Go heap.
func (b *Buffer) Mapped() bool {
	return b.m != nil
}

func (p *Pool) put(m mmap.MMap) {
	select {
	case p.free <- m:
	default:
		p.mapped.Add(-1)
		if err := m.Unmap(); err != nil {
			p.log.Warn("unmapping pixel buffer failed", "err", err)
		}
	}
}

// Idle reports the number of buffers ready for reuse.
func (p *Pool) Idle() int {
	return len(p.free)
}

func (p *Pool) Size() int {
	return cap(p.free)
}

func (p *Pool) BufSize() int {
	return p.bufSize
}

// HeapFallbacks counts requests that could not be served with a mapped buffer.
func (p *Pool) HeapFallbacks() int {
	return int(p.fallback.Load())
}

// Free unmaps all idle buffers. Buffers in use are unmapped when released
// and the pool is full.
func (p *Pool) Free() []error {
	var errs []error
	for {
		select {
		case m := <-p.free:
			p.mapped.Add(-1)
			if err := m.Unmap(); err != nil {
				errs = append(errs, err)
			}
		default:
			return errs
		}
	}
}
