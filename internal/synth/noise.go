// ABOUTME: White/pink/brown noise generator
// ABOUTME: Color switches crossfade over a short window to avoid clicks
package synth

import (
	"fmt"
	"math/bits"

	"github.com/hushtone/hushtone-go/internal/params"
)

// pinkRows is the number of Voss-McCartney octave rows.
const pinkRows = 16

// crossfadeMs is the color-switch blend window.
const crossfadeMs = 30

// pinkMakeup level-matches the pink row average against white. The output
// is bounded back into [-1, 1] afterwards, so a rare alignment of many rows
// cannot escape the unit range.
const pinkMakeup = 2.5

// noiseVoice is the render-owned state for one noise color. All fields are
// plain values so switching voices never allocates.
type noiseVoice struct {
	color params.NoiseColor
	rng   uint64

	// Voss-McCartney rows for pink noise.
	rows    [pinkRows]float64
	rowSum  float64
	counter uint32

	// Leaky integrator state for brown noise.
	brown float64
}

func (v *noiseVoice) reset(color params.NoiseColor, seed uint64) {
	*v = noiseVoice{color: color, rng: seed | 1}
}

// uniform returns the next pseudo-random draw in [-1, 1] from an
// xorshift64 sequence.
func (v *noiseVoice) uniform() float64 {
	x := v.rng
	x ^= x << 13
	x ^= x >> 7
	x ^= x << 17
	v.rng = x
	return float64(int64(x)) / float64(1<<63) * 0.999 // stays strictly inside [-1, 1]
}

func (v *noiseVoice) next() float64 {
	switch v.color {
	case params.White:
		return v.uniform()

	case params.Pink:
		// Voss-McCartney: each row updates at half the rate of the one
		// before it, approximating a 1/f spectral falloff.
		v.counter++
		row := bits.TrailingZeros32(v.counter)
		if row >= pinkRows {
			row = pinkRows - 1
		}
		v.rowSum -= v.rows[row]
		draw := v.uniform()
		v.rows[row] = draw
		v.rowSum += draw
		return boundUnit((v.rowSum + v.uniform()) / float64(pinkRows+1) * pinkMakeup)

	case params.Brown:
		// Leaky integration keeps the random walk bounded; renormalize if
		// it still escapes the unit range.
		v.brown = v.brown*0.998 + v.uniform()*0.05
		if v.brown > 1 || v.brown < -1 {
			v.brown /= absf(v.brown)
		}
		return v.brown
	}
	return 0
}

// NoiseGenerator renders colored noise from bridge parameters. A color
// change swaps generator voices with a short equal-gain crossfade so the
// transition is click-free; the fade runs entirely in the render context.
type NoiseGenerator struct {
	bridge     *params.Bridge
	sampleRate int

	current noiseVoice
	old     noiseVoice

	fadeRemaining int
	fadeTotal     int
}

// NewNoiseGenerator creates a generator bound to the bridge's noise fields.
func NewNoiseGenerator(sampleRate int, bridge *params.Bridge) (*NoiseGenerator, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("%w: noise sample rate %d", params.ErrInvalidConfig, sampleRate)
	}
	g := &NoiseGenerator{
		bridge:     bridge,
		sampleRate: sampleRate,
		fadeTotal:  sampleRate * crossfadeMs / 1000,
	}
	g.current.reset(bridge.NoiseColor(), 0x9E3779B97F4A7C15)
	return g, nil
}

// Render overwrites dst with amplitude-scaled noise. Every voice emits
// within [-1, 1] before volume scaling, so the output never clips at the
// mix stage. Color and volume are loaded once per call.
func (g *NoiseGenerator) Render(dst []float32) {
	if len(dst) == 0 {
		return
	}

	color := g.bridge.NoiseColor()
	amp := g.bridge.NoiseVolume()

	if color != g.current.color {
		g.old = g.current
		g.current.reset(color, g.old.rng)
		g.fadeRemaining = g.fadeTotal
	}

	for i := range dst {
		s := g.current.next()
		if g.fadeRemaining > 0 {
			t := float64(g.fadeRemaining) / float64(g.fadeTotal)
			s = s*(1-t) + g.old.next()*t
			g.fadeRemaining--
		}
		dst[i] = float32(s * amp)
	}
}

// Fading reports whether a color crossfade is in progress, for tests.
func (g *NoiseGenerator) Fading() bool { return g.fadeRemaining > 0 }

func boundUnit(s float64) float64 {
	if s > 1 {
		return 1
	}
	if s < -1 {
		return -1
	}
	return s
}

func absf(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
