// ABOUTME: Incremental decode and ring-buffer streaming of imported audio
// ABOUTME: A decode goroutine fills an SPSC ring consumed by the render path
package playback

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/hushtone/hushtone-go/internal/ringbuf"
	"github.com/hushtone/hushtone-go/pkg/audio"
	"github.com/hushtone/hushtone-go/pkg/audio/decode"
	"github.com/hushtone/hushtone-go/pkg/audio/resample"
)

const (
	// ringSeconds of buffered engine-rate stereo audio between the decode
	// goroutine and the render path.
	ringSeconds = 1

	// chunkFrames read from the source per decode iteration.
	chunkFrames = 4096

	decodeIdleSleep = 5 * time.Millisecond
	flushAckTimeout = 250 * time.Millisecond
)

// Engine streams a decoded source through the render graph. The render
// path touches only the ring buffer and atomic fields; the source itself
// is owned by the decode goroutine and freed quiesce-then-free.
type Engine struct {
	sampleRate int
	ring       *ringbuf.Ring

	// Render-visible state.
	playing    atomic.Bool
	loaded     atomic.Bool
	baseFrames atomic.Int64 // engine frames, set on load/seek
	consumed   atomic.Int64 // engine frames consumed by render since base
	durationUs atomic.Int64
	underruns  atomic.Uint64

	// Ring flush handshake: control bumps flushReq, the render side (the
	// ring consumer) drains and copies it into flushAck.
	flushReq atomic.Uint64
	flushAck atomic.Uint64

	// Control/decode side. mu is never taken on the render path.
	mu        sync.Mutex
	source    decode.Source
	sourceID  string
	srcFormat audio.Format
	resampler *resample.Resampler
	srcBuf    []float32
	rsBuf     []float32
	upBuf     []float32
	stopChan  chan struct{}
	wg        sync.WaitGroup
}

// New creates a playback engine rendering at the given rate.
func New(sampleRate int) *Engine {
	return &Engine{
		sampleRate: sampleRate,
		ring:       ringbuf.New(sampleRate * audio.DefaultChannels * ringSeconds),
	}
}

// Load opens and validates path, replacing any current source. Position
// resets to zero and playback starts paused. An undecodable file is
// reported to the caller and leaves the previous source unloaded.
func (e *Engine) Load(path string) error {
	src, err := decode.Open(path)
	if err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	if !src.Format().Valid() {
		src.Close()
		return fmt.Errorf("load %s: %w: bad stream format", path, decode.ErrUnsupportedFormat)
	}

	logrus.WithFields(logrus.Fields{
		"path":       path,
		"sampleRate": src.Format().SampleRate,
		"channels":   src.Format().Channels,
		"duration":   src.Duration(),
	}).Info("audio file loaded")

	e.LoadSource(src)
	return nil
}

// LoadSource installs an already-open source. Used by Load and by tests
// that inject synthetic sources.
func (e *Engine) LoadSource(src decode.Source) {
	e.unload()

	e.mu.Lock()
	e.source = src
	e.sourceID = uuid.NewString()
	e.srcFormat = src.Format()
	e.resampler = resample.New(e.srcFormat.SampleRate, e.sampleRate, e.srcFormat.Channels)
	e.srcBuf = make([]float32, chunkFrames*e.srcFormat.Channels)
	e.rsBuf = make([]float32, e.outChunkSamples())
	e.upBuf = make([]float32, chunkFrames*4*audio.DefaultChannels)
	e.stopChan = make(chan struct{})
	e.mu.Unlock()

	e.durationUs.Store(src.Duration().Microseconds())
	e.baseFrames.Store(0)
	e.consumed.Store(0)
	e.playing.Store(false)
	e.requestFlush()
	e.loaded.Store(true)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.decodeLoop()
	}()
}

func (e *Engine) outChunkSamples() int {
	frames := chunkFrames * e.sampleRate / e.srcFormat.SampleRate
	return (frames + 2) * e.srcFormat.Channels
}

// Play resumes decoding and rendering from the current position.
func (e *Engine) Play() {
	if e.loaded.Load() {
		e.playing.Store(true)
	}
}

// Pause freezes the position while retaining decode resources. The render
// path stops consuming within one buffer, so position is preserved exactly.
func (e *Engine) Pause() {
	e.playing.Store(false)
}

// Seek repositions playback, clamping into [0, duration].
func (e *Engine) Seek(d time.Duration) error {
	if !e.loaded.Load() {
		return fmt.Errorf("seek: no source loaded")
	}
	if d < 0 {
		d = 0
	}
	if dur := e.Duration(); d > dur {
		d = dur
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.requestFlush()
	if err := e.source.Seek(d); err != nil {
		return err
	}
	e.resampler.Reset()
	e.baseFrames.Store(int64(d.Seconds() * float64(e.sampleRate)))
	e.consumed.Store(0)
	return nil
}

// Position returns the current playback position at the engine rate.
func (e *Engine) Position() time.Duration {
	frames := e.baseFrames.Load() + e.consumed.Load()
	return time.Duration(frames) * time.Second / time.Duration(e.sampleRate)
}

// Duration returns the loaded source's length.
func (e *Engine) Duration() time.Duration {
	return time.Duration(e.durationUs.Load()) * time.Microsecond
}

// Playing reports whether the transport is running.
func (e *Engine) Playing() bool { return e.playing.Load() }

// Loaded reports whether a source is installed.
func (e *Engine) Loaded() bool { return e.loaded.Load() }

// SourceID returns the opaque handle of the loaded source.
func (e *Engine) SourceID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sourceID
}

// Underruns returns the non-fatal diagnostic counter of render-side
// underruns (decode fell behind; silence was substituted).
func (e *Engine) Underruns() uint64 { return e.underruns.Load() }

// Close stops the decode goroutine and frees the source.
func (e *Engine) Close() {
	e.unload()
}

// AckFlush services a pending ring flush without consuming audio. The
// controller calls this from the render context while output is muted so
// control-side seeks cannot stall waiting for an acknowledgment.
func (e *Engine) AckFlush() {
	if req := e.flushReq.Load(); req != e.flushAck.Load() {
		e.ring.Drain()
		e.flushAck.Store(req)
	}
}

// RenderStereo fills dst (interleaved stereo) from the ring buffer.
// Render context only: no locks, no allocation, no blocking. Underruns
// emit silence and bump the diagnostic counter.
func (e *Engine) RenderStereo(dst []float32) {
	if req := e.flushReq.Load(); req != e.flushAck.Load() {
		e.ring.Drain()
		e.flushAck.Store(req)
	}

	if !e.playing.Load() {
		zero(dst)
		return
	}

	n := e.ring.Read(dst)
	for i := n; i < len(dst); i++ {
		dst[i] = 0
	}
	if n < len(dst) {
		e.underruns.Add(1)
	}
	e.consumed.Add(int64(n / audio.DefaultChannels))
}

// unload quiesces the decode goroutine, then frees the source. The source
// is never touched by the render path, so closing it after the goroutine
// joins is safe.
func (e *Engine) unload() {
	e.mu.Lock()
	stop := e.stopChan
	e.stopChan = nil
	e.mu.Unlock()

	if stop != nil {
		close(stop)
		e.wg.Wait()
	}

	e.mu.Lock()
	if e.source != nil {
		e.source.Close()
		e.source = nil
		e.sourceID = ""
	}
	e.mu.Unlock()

	e.loaded.Store(false)
	e.playing.Store(false)
}

// requestFlush asks the ring consumer to drain and waits briefly for the
// acknowledgment. If no render context is active (engine stopped) the ring
// has no concurrent consumer and control drains it directly.
func (e *Engine) requestFlush() {
	req := e.flushReq.Add(1)
	deadline := time.Now().Add(flushAckTimeout)
	for e.flushAck.Load() != req {
		if time.Now().After(deadline) {
			e.ring.Drain()
			e.flushAck.Store(req)
			return
		}
		time.Sleep(time.Millisecond)
	}
}

func (e *Engine) decodeLoop() {
	logrus.WithField("sourceID", e.sourceID).Debug("decode goroutine started")

	e.mu.Lock()
	stop := e.stopChan
	maxChunk := (chunkFrames*e.sampleRate/e.srcFormat.SampleRate + 4) * audio.DefaultChannels
	e.mu.Unlock()

	for {
		select {
		case <-stop:
			return
		default:
		}

		if !e.playing.Load() ||
			e.flushReq.Load() != e.flushAck.Load() ||
			e.ring.Free() < maxChunk {
			time.Sleep(decodeIdleSleep)
			continue
		}

		advanced, ended := e.decodeChunk()
		if ended {
			// Let the ring drain, then park the transport. The goroutine
			// stays alive so a later Seek+Play resumes from the source.
			for e.ring.Len() > 0 && e.playing.Load() {
				select {
				case <-stop:
					return
				case <-time.After(decodeIdleSleep):
				}
			}
			e.playing.Store(false)
			continue
		}
		if !advanced {
			// A zero-length read without io.EOF is a transient stall in
			// the source, not end of stream. Retry shortly.
			time.Sleep(decodeIdleSleep)
		}
	}
}

// decodeChunk reads, resamples, and enqueues one chunk. It reports whether
// any samples advanced and whether the stream is exhausted or failed; only
// io.EOF or a decode error ends the stream.
func (e *Engine) decodeChunk() (advanced, ended bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.source == nil {
		return false, true
	}

	n, err := e.source.ReadPCM(e.srcBuf)
	if err != nil && err != io.EOF {
		logrus.WithFields(logrus.Fields{
			"sourceID": e.sourceID,
			"error":    err.Error(),
		}).Warn("decode failed; stopping playback")
		return false, true
	}

	if n > 0 {
		out := e.srcBuf[:n]
		if !e.resampler.Passthrough() {
			m := e.resampler.Resample(e.srcBuf[:n], e.rsBuf)
			out = e.rsBuf[:m]
		}
		stereo := e.upmix(out)
		e.ring.Write(stereo)
	}

	return n > 0, err == io.EOF
}

// upmix converts source-channel-count interleaved samples to stereo.
func (e *Engine) upmix(in []float32) []float32 {
	if e.srcFormat.Channels == audio.DefaultChannels {
		return in
	}
	frames := len(in)
	if len(e.upBuf) < frames*2 {
		e.upBuf = make([]float32, frames*2)
	}
	for i := 0; i < frames; i++ {
		e.upBuf[i*2] = in[i]
		e.upBuf[i*2+1] = in[i]
	}
	return e.upBuf[:frames*2]
}

func zero(buf []float32) {
	for i := range buf {
		buf[i] = 0
	}
}
