// ABOUTME: Per-ear programmable tone oscillator
// ABOUTME: Renders sine/square/triangle/sawtooth from bridge parameters
package synth

import (
	"fmt"
	"math"

	"github.com/hushtone/hushtone-go/internal/params"
)

const twoPi = 2 * math.Pi

// Oscillator produces one sample per frame from the parameters currently
// visible in its bridge arena. The running phase is owned exclusively by
// the render context and always wraps into [0, 2π). The hot path performs
// no allocation and no locking.
type Oscillator struct {
	arena      *params.Oscillator
	sampleRate float64
	phase      float64
}

// NewOscillator creates an oscillator bound to one ear's parameter arena.
// A non-positive sample rate is a contract violation.
func NewOscillator(sampleRate int, arena *params.Oscillator) (*Oscillator, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("%w: oscillator sample rate %d", params.ErrInvalidConfig, sampleRate)
	}
	return &Oscillator{
		arena:      arena,
		sampleRate: float64(sampleRate),
	}, nil
}

// Render overwrites dst with the next len(dst) samples. Parameters are
// loaded once per call, so a control-side update is visible within one
// buffer. An empty dst renders nothing.
func (o *Oscillator) Render(dst []float32) {
	if len(dst) == 0 {
		return
	}

	freq := o.arena.Frequency()
	amp := o.arena.Amplitude()
	wave := o.arena.Waveform()
	if o.arena.PhaseInverted() {
		amp = -amp
	}

	inc := twoPi * freq / o.sampleRate
	phase := o.phase

	for i := range dst {
		var s float64
		switch wave {
		case params.Sine:
			s = math.Sin(phase)
		case params.Square:
			if phase < math.Pi {
				s = 1
			} else {
				s = -1
			}
		case params.Triangle:
			s = 4*math.Abs(phase/twoPi-0.5) - 1
		case params.Sawtooth:
			s = 2*(phase/twoPi) - 1
		}
		dst[i] = float32(s * amp)

		phase += inc
		if phase >= twoPi {
			phase -= twoPi
		}
	}

	o.phase = phase
}

// Phase returns the current running phase, for tests.
func (o *Oscillator) Phase() float64 { return o.phase }
