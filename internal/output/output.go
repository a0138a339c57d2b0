// ABOUTME: Output backend contract for the session audio engine
// ABOUTME: Backends pull interleaved stereo float32 from a render callback
package output

import (
	"encoding/binary"
	"math"
)

// RenderFunc fills dst with interleaved stereo float32 samples. It must be
// safe to call from the backend's audio thread and must never block.
type RenderFunc func(dst []float32)

// Backend drives the render callback and delivers samples to a device.
type Backend interface {
	// Start begins pulling audio. It returns once the device is running.
	Start() error
	// Close stops playback and releases the device.
	Close() error
}

// renderReader adapts a RenderFunc to the io.Reader the device player
// consumes: float32 little-endian, interleaved stereo.
type renderReader struct {
	render RenderFunc
	buf    []float32
	bytes  []byte
	pos    int
}

func newRenderReader(render RenderFunc, frames int) *renderReader {
	samples := frames * 2
	return &renderReader{
		render: render,
		buf:    make([]float32, samples),
		bytes:  make([]byte, samples*4),
		pos:    samples * 4,
	}
}

func (r *renderReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.bytes) {
		r.render(r.buf)
		for i, s := range r.buf {
			binary.LittleEndian.PutUint32(r.bytes[i*4:], math.Float32bits(s))
		}
		r.pos = 0
	}
	n := copy(p, r.bytes[r.pos:])
	r.pos += n
	return n, nil
}
