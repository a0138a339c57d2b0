// ABOUTME: Band-reject biquad filter with smoothed coefficient updates
// ABOUTME: Depth blends continuously between dry input and the full notch
package filter

import (
	"math"

	"github.com/hushtone/hushtone-go/internal/params"
)

// smoothMs is the coefficient interpolation window. Parameter changes ramp
// over this period so the delay-line state never sees a discontinuous jump.
const smoothMs = 10

// coeffs holds normalized biquad coefficients (a0 divided out).
type coeffs struct {
	b0, b1, b2 float64
	a1, a2     float64
}

// notchCoeffs computes RBJ band-reject coefficients for a center frequency
// and bandwidth in octaves. The -3 dB edges sit at f0*2^(-w/2) and
// f0*2^(w/2).
func notchCoeffs(centerHz, widthOctaves, sampleRate float64) coeffs {
	w0 := 2 * math.Pi * centerHz / sampleRate
	sinW0 := math.Sin(w0)
	alpha := sinW0 * math.Sinh(math.Ln2/2*widthOctaves*w0/sinW0)

	a0 := 1 + alpha
	return coeffs{
		b0: 1 / a0,
		b1: -2 * math.Cos(w0) / a0,
		b2: 1 / a0,
		a1: -2 * math.Cos(w0) / a0,
		a2: (1 - alpha) / a0,
	}
}

// Notch applies a band-reject shape to one channel. Parameters come from
// the bridge's notch fields; the filter owns its delay line and ramps
// coefficients toward new targets instead of jumping. The hot path never
// allocates, locks, or returns errors; non-finite state is flushed.
type Notch struct {
	bridge     *params.Bridge
	sampleRate float64

	cur   coeffs
	step  coeffs // per-sample increment while ramping
	depth float64
	dStep float64
	ramp  int

	// Last seen targets, for change detection.
	lastCenter, lastWidth, lastDepth float64

	smoothSamples int

	// Transposed direct form II delay line.
	z1, z2 float64
}

// NewNotch creates a filter bound to the bridge's notch spec.
func NewNotch(bridge *params.Bridge) *Notch {
	rate := float64(bridge.SampleRate())
	center, width, depth := bridge.Notch()
	n := &Notch{
		bridge:        bridge,
		sampleRate:    rate,
		cur:           notchCoeffs(center, width, rate),
		depth:         depth,
		lastCenter:    center,
		lastWidth:     width,
		lastDepth:     depth,
		smoothSamples: int(rate * smoothMs / 1000),
	}
	return n
}

// Process filters buf in place. The bridge is read once per call; a
// parameter change starts a linear coefficient ramp spanning the smoothing
// window, possibly across multiple buffers.
func (n *Notch) Process(buf []float32) {
	if len(buf) == 0 {
		return
	}

	center, width, depth := n.bridge.Notch()
	if center != n.lastCenter || width != n.lastWidth || depth != n.lastDepth {
		n.retarget(center, width, depth)
	}

	for i := range buf {
		if n.ramp > 0 {
			n.cur.b0 += n.step.b0
			n.cur.b1 += n.step.b1
			n.cur.b2 += n.step.b2
			n.cur.a1 += n.step.a1
			n.cur.a2 += n.step.a2
			n.depth += n.dStep
			n.ramp--
		}

		x := float64(buf[i])
		y := n.cur.b0*x + n.z1
		n.z1 = n.cur.b1*x - n.cur.a1*y + n.z2
		n.z2 = n.cur.b2*x - n.cur.a2*y

		buf[i] = float32((1-n.depth)*x + n.depth*y)
	}

	// The render path is infallible: a poisoned delay line decays to
	// silence instead of propagating NaN/Inf into the mix.
	if !finite(n.z1) || !finite(n.z2) {
		n.z1, n.z2 = 0, 0
	}
}

func (n *Notch) retarget(center, width, depth float64) {
	target := notchCoeffs(center, width, n.sampleRate)
	steps := float64(n.smoothSamples)

	n.step = coeffs{
		b0: (target.b0 - n.cur.b0) / steps,
		b1: (target.b1 - n.cur.b1) / steps,
		b2: (target.b2 - n.cur.b2) / steps,
		a1: (target.a1 - n.cur.a1) / steps,
		a2: (target.a2 - n.cur.a2) / steps,
	}
	n.dStep = (depth - n.depth) / steps
	n.ramp = n.smoothSamples

	n.lastCenter, n.lastWidth, n.lastDepth = center, width, depth
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
