// ABOUTME: Lock-free parameter bridge between control and render contexts
// ABOUTME: Every tunable is an independently updatable atomic value
package params

import (
	"errors"
	"fmt"
	"math"
	"sync/atomic"

	"github.com/hushtone/hushtone-go/pkg/audio"
)

// ErrInvalidConfig reports an unusable engine configuration at construction.
var ErrInvalidConfig = errors.New("invalid engine configuration")

// Waveform selects the oscillator shape.
type Waveform uint32

const (
	Sine Waveform = iota
	Square
	Triangle
	Sawtooth
)

// Valid reports whether the selector names a known waveform.
func (w Waveform) Valid() bool { return w <= Sawtooth }

func (w Waveform) String() string {
	switch w {
	case Sine:
		return "sine"
	case Square:
		return "square"
	case Triangle:
		return "triangle"
	case Sawtooth:
		return "sawtooth"
	}
	return "unknown"
}

// NoiseColor selects the noise spectrum.
type NoiseColor uint32

const (
	White NoiseColor = iota
	Pink
	Brown
)

func (c NoiseColor) Valid() bool { return c <= Brown }

func (c NoiseColor) String() string {
	switch c {
	case White:
		return "white"
	case Pink:
		return "pink"
	case Brown:
		return "brown"
	}
	return "unknown"
}

// Ear selects which oscillator(s) a control operation targets.
type Ear uint32

const (
	EarLeft Ear = iota
	EarRight
	EarBoth
)

func (e Ear) Valid() bool { return e <= EarBoth }

// Left and Right report whether the selection includes each side.
func (e Ear) Left() bool  { return e == EarLeft || e == EarBoth }
func (e Ear) Right() bool { return e == EarRight || e == EarBoth }

// notchWidths are the supported bandwidths in octaves; setters snap to the
// nearest entry.
var notchWidths = []float64{0.5, 1.0, 1.5, 2.0}

// nyquistGuard bounds every tunable frequency as a fraction of the sample
// rate. It keeps the oscillator phase increment under 2π and the notch band
// edges below Nyquist at low render rates.
const nyquistGuard = 0.45

// Oscillator holds the shared state for one ear's tone generator. Floats
// are stored as bit patterns in atomic integers so the render path never
// observes a torn value.
type Oscillator struct {
	maxHz float64 // set once at bridge construction

	frequency atomic.Uint64 // float64 bits, Hz
	amplitude atomic.Uint64 // float64 bits, linear 0..1
	waveform  atomic.Uint32
	inverted  atomic.Bool
	enabled   atomic.Bool
}

func (o *Oscillator) SetFrequency(hz float64) {
	o.frequency.Store(math.Float64bits(clampTunable(hz, o.maxHz)))
}

func (o *Oscillator) Frequency() float64 {
	return math.Float64frombits(o.frequency.Load())
}

func (o *Oscillator) SetAmplitude(a float64) {
	o.amplitude.Store(math.Float64bits(audio.ClampUnit(a)))
}

func (o *Oscillator) Amplitude() float64 {
	return math.Float64frombits(o.amplitude.Load())
}

// SetWaveform ignores selectors outside the known set; the last valid
// waveform stays in effect.
func (o *Oscillator) SetWaveform(w Waveform) {
	if !w.Valid() {
		return
	}
	o.waveform.Store(uint32(w))
}

func (o *Oscillator) Waveform() Waveform {
	return Waveform(o.waveform.Load())
}

func (o *Oscillator) SetPhaseInversion(on bool) { o.inverted.Store(on) }
func (o *Oscillator) PhaseInverted() bool       { return o.inverted.Load() }

func (o *Oscillator) SetEnabled(on bool) { o.enabled.Store(on) }
func (o *Oscillator) Enabled() bool      { return o.enabled.Load() }

// Bridge is the shared parameter arena. It is allocated once at engine
// initialization; the render path holds a plain pointer and performs only
// atomic loads. Each field has a single conceptual writer (the control
// context) and last-write-wins semantics.
type Bridge struct {
	sampleRate int
	maxHz      float64

	LeftOsc  Oscillator
	RightOsc Oscillator

	noiseColor   atomic.Uint32
	noiseVolume  atomic.Uint64
	noiseEnabled atomic.Bool

	notchCenter atomic.Uint64
	notchWidth  atomic.Uint64
	notchDepth  atomic.Uint64

	musicVolume  atomic.Uint64
	masterVolume atomic.Uint64

	earSelection atomic.Uint32
	muteLeft     atomic.Bool
	muteRight    atomic.Bool
}

// New validates the configuration once and allocates the bridge with
// sensible defaults. This is the single point where ConfigurationError
// can occur; afterwards every setter clamps instead of failing.
func New(sampleRate int) (*Bridge, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("%w: sample rate %d", ErrInvalidConfig, sampleRate)
	}

	maxHz := math.Min(audio.MaxFrequency, nyquistGuard*float64(sampleRate))
	b := &Bridge{sampleRate: sampleRate, maxHz: maxHz}
	b.LeftOsc.maxHz = maxHz
	b.RightOsc.maxHz = maxHz

	b.LeftOsc.SetFrequency(4000)
	b.LeftOsc.SetAmplitude(0.5)
	b.RightOsc.SetFrequency(4000)
	b.RightOsc.SetAmplitude(0.5)

	b.SetNoiseVolume(0.5)
	b.SetNotch(4000, 1.0, 1.0)
	b.SetMusicVolume(1.0)
	b.SetMasterVolume(0.8)
	b.SetEarSelection(EarBoth)

	return b, nil
}

// SampleRate returns the validated render rate.
func (b *Bridge) SampleRate() int { return b.sampleRate }

func (b *Bridge) SetNoiseColor(c NoiseColor) {
	if !c.Valid() {
		return
	}
	b.noiseColor.Store(uint32(c))
}

func (b *Bridge) NoiseColor() NoiseColor { return NoiseColor(b.noiseColor.Load()) }

func (b *Bridge) SetNoiseVolume(v float64) {
	b.noiseVolume.Store(math.Float64bits(audio.ClampUnit(v)))
}

func (b *Bridge) NoiseVolume() float64 {
	return math.Float64frombits(b.noiseVolume.Load())
}

func (b *Bridge) SetNoiseEnabled(on bool) { b.noiseEnabled.Store(on) }
func (b *Bridge) NoiseEnabled() bool      { return b.noiseEnabled.Load() }

// SetNotch updates the full notch specification. Center clamps into the
// supported frequency range, width snaps to the nearest supported octave
// bandwidth, depth clamps into [0,1]. Each field is stored independently;
// the filter picks up the combination on its next buffer.
func (b *Bridge) SetNotch(centerHz, widthOctaves, depth float64) {
	b.notchCenter.Store(math.Float64bits(clampTunable(centerHz, b.maxHz)))
	b.notchWidth.Store(math.Float64bits(snapWidth(widthOctaves)))
	b.notchDepth.Store(math.Float64bits(audio.ClampUnit(depth)))
}

func (b *Bridge) SetNotchCenter(hz float64) {
	b.notchCenter.Store(math.Float64bits(clampTunable(hz, b.maxHz)))
}

func (b *Bridge) SetNotchDepth(d float64) {
	b.notchDepth.Store(math.Float64bits(audio.ClampUnit(d)))
}

func (b *Bridge) Notch() (centerHz, widthOctaves, depth float64) {
	return math.Float64frombits(b.notchCenter.Load()),
		math.Float64frombits(b.notchWidth.Load()),
		math.Float64frombits(b.notchDepth.Load())
}

func (b *Bridge) SetMusicVolume(v float64) {
	b.musicVolume.Store(math.Float64bits(audio.ClampUnit(v)))
}

func (b *Bridge) MusicVolume() float64 {
	return math.Float64frombits(b.musicVolume.Load())
}

func (b *Bridge) SetMasterVolume(v float64) {
	b.masterVolume.Store(math.Float64bits(audio.ClampUnit(v)))
}

func (b *Bridge) MasterVolume() float64 {
	return math.Float64frombits(b.masterVolume.Load())
}

func (b *Bridge) SetEarSelection(e Ear) {
	if !e.Valid() {
		return
	}
	b.earSelection.Store(uint32(e))
}

func (b *Bridge) EarSelection() Ear { return Ear(b.earSelection.Load()) }

func (b *Bridge) SetMuteLeft(on bool)  { b.muteLeft.Store(on) }
func (b *Bridge) SetMuteRight(on bool) { b.muteRight.Store(on) }
func (b *Bridge) MuteLeft() bool       { return b.muteLeft.Load() }
func (b *Bridge) MuteRight() bool      { return b.muteRight.Load() }

// Osc returns the oscillator arena for the given side (left = true).
func (b *Bridge) Osc(left bool) *Oscillator {
	if left {
		return &b.LeftOsc
	}
	return &b.RightOsc
}

// clampTunable clamps a frequency into [MinFrequency, maxHz]. A zero maxHz
// (an oscillator never installed in a bridge) falls back to the engine-wide
// limit.
func clampTunable(hz, maxHz float64) float64 {
	if maxHz == 0 {
		maxHz = audio.MaxFrequency
	}
	if hz < audio.MinFrequency {
		hz = audio.MinFrequency
	}
	if hz > maxHz {
		hz = maxHz
	}
	return hz
}

func snapWidth(w float64) float64 {
	best := notchWidths[0]
	bestDist := math.Abs(w - best)
	for _, cand := range notchWidths[1:] {
		if d := math.Abs(w - cand); d < bestDist {
			best, bestDist = cand, d
		}
	}
	return best
}
