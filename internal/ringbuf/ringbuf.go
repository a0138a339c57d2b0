// ABOUTME: Lock-free single-producer single-consumer float32 ring buffer
// ABOUTME: Used for decode-to-render handoff and the spectrum tap
package ringbuf

import "sync/atomic"

// Ring is a fixed-capacity SPSC queue of float32 samples. Exactly one
// goroutine may call Write and exactly one may call Read/Drain. Neither
// side blocks or allocates; a full ring rejects writes and an empty ring
// returns short reads.
type Ring struct {
	buf  []float32
	mask uint64

	// Monotonic counters; read index only advances on the consumer side,
	// write index only on the producer side.
	writeIdx atomic.Uint64
	readIdx  atomic.Uint64
}

// New creates a ring with the given capacity rounded up to a power of two.
// Capacity must be at least 2.
func New(capacity int) *Ring {
	n := 2
	for n < capacity {
		n <<= 1
	}
	return &Ring{
		buf:  make([]float32, n),
		mask: uint64(n - 1),
	}
}

// Cap returns the usable capacity in samples.
func (r *Ring) Cap() int { return len(r.buf) }

// Len returns the number of samples currently buffered.
func (r *Ring) Len() int {
	return int(r.writeIdx.Load() - r.readIdx.Load())
}

// Free returns the number of samples that can be written without overrun.
func (r *Ring) Free() int { return r.Cap() - r.Len() }

// Write copies as many samples from src as fit and returns the count.
// Producer side only.
func (r *Ring) Write(src []float32) int {
	w := r.writeIdx.Load()
	free := uint64(len(r.buf)) - (w - r.readIdx.Load())
	n := uint64(len(src))
	if n > free {
		n = free
	}
	for i := uint64(0); i < n; i++ {
		r.buf[(w+i)&r.mask] = src[i]
	}
	r.writeIdx.Store(w + n)
	return int(n)
}

// Read copies up to len(dst) samples into dst and returns the count.
// Consumer side only.
func (r *Ring) Read(dst []float32) int {
	rd := r.readIdx.Load()
	avail := r.writeIdx.Load() - rd
	n := uint64(len(dst))
	if n > avail {
		n = avail
	}
	for i := uint64(0); i < n; i++ {
		dst[i] = r.buf[(rd+i)&r.mask]
	}
	r.readIdx.Store(rd + n)
	return int(n)
}

// Drain discards everything currently buffered. Consumer side only.
func (r *Ring) Drain() {
	r.readIdx.Store(r.writeIdx.Load())
}
