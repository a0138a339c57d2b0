// ABOUTME: Tests for the colored noise generator
// ABOUTME: Covers output bounds, volume scaling, and color crossfades
package synth

import (
	"errors"
	"math"
	"testing"

	"github.com/hushtone/hushtone-go/internal/params"
)

func newTestNoise(t *testing.T) (*NoiseGenerator, *params.Bridge) {
	t.Helper()
	b, err := params.New(48000)
	if err != nil {
		t.Fatal(err)
	}
	g, err := NewNoiseGenerator(48000, b)
	if err != nil {
		t.Fatal(err)
	}
	return g, b
}

func TestNewNoiseGeneratorRejectsBadRate(t *testing.T) {
	b, _ := params.New(48000)
	if _, err := NewNoiseGenerator(-1, b); !errors.Is(err, params.ErrInvalidConfig) {
		t.Errorf("NewNoiseGenerator(-1) error = %v, want ErrInvalidConfig", err)
	}
}

func TestNoiseIsNotSilence(t *testing.T) {
	g, b := newTestNoise(t)
	b.SetNoiseVolume(1.0)

	buf := make([]float32, 4800)
	g.Render(buf)

	nonZero := 0
	for _, s := range buf {
		if s != 0 {
			nonZero++
		}
	}
	if nonZero < len(buf)/2 {
		t.Errorf("only %d of %d samples non-zero", nonZero, len(buf))
	}
}

func TestNoiseBoundsAllColors(t *testing.T) {
	colors := []params.NoiseColor{params.White, params.Pink, params.Brown}

	for _, color := range colors {
		g, b := newTestNoise(t)
		b.SetNoiseColor(color)
		b.SetNoiseVolume(1.0)

		// Long run at full volume: every sample must stay inside the unit
		// range so nothing downstream has to clip.
		buf := make([]float32, 48000*10)
		g.Render(buf)

		for i, s := range buf {
			if s > 1 || s < -1 {
				t.Fatalf("%v sample %d = %v outside [-1, 1]", color, i, s)
			}
		}
	}
}

func TestNoiseLevelsAreUseful(t *testing.T) {
	colors := []params.NoiseColor{params.White, params.Pink, params.Brown}

	for _, color := range colors {
		g, b := newTestNoise(t)
		b.SetNoiseColor(color)
		b.SetNoiseVolume(1.0)

		buf := make([]float32, 48000*2)
		g.Render(buf)

		var sum float64
		for _, s := range buf {
			sum += float64(s) * float64(s)
		}
		rms := math.Sqrt(sum / float64(len(buf)))
		if rms < 0.05 || rms > 0.95 {
			t.Errorf("%v RMS = %v, want a usable level in (0.05, 0.95)", color, rms)
		}
	}
}

func TestWhiteNoiseBounds(t *testing.T) {
	g, b := newTestNoise(t)
	b.SetNoiseColor(params.White)
	b.SetNoiseVolume(1.0)

	buf := make([]float32, 48000)
	g.Render(buf)

	for i, s := range buf {
		if s >= 1 || s <= -1 {
			t.Fatalf("white sample %d = %v, want strictly inside (-1, 1)", i, s)
		}
	}
}

func TestVolumeScaling(t *testing.T) {
	g, b := newTestNoise(t)
	b.SetNoiseVolume(0.1)

	buf := make([]float32, 4800)
	g.Render(buf)

	for i, s := range buf {
		if s > 0.1 || s < -0.1 {
			t.Fatalf("sample %d = %v exceeds volume 0.1", i, s)
		}
	}
}

func TestColorSwitchCrossfades(t *testing.T) {
	g, b := newTestNoise(t)
	b.SetNoiseVolume(1.0)

	buf := make([]float32, 480)
	g.Render(buf)
	if g.Fading() {
		t.Fatal("generator fading before any color change")
	}

	b.SetNoiseColor(params.Pink)
	g.Render(buf)
	if !g.Fading() {
		t.Fatal("generator not fading right after color change")
	}

	// The 30 ms fade is 1440 samples at 48 kHz; it must finish soon after.
	g.Render(make([]float32, 2000))
	if g.Fading() {
		t.Error("crossfade still active long after the fade window")
	}
}

func TestBrownNoiseStaysBounded(t *testing.T) {
	g, b := newTestNoise(t)
	b.SetNoiseColor(params.Brown)
	b.SetNoiseVolume(1.0)

	// Long run: the leaky integrator must not wander outside the unit range.
	buf := make([]float32, 48000)
	for round := 0; round < 10; round++ {
		g.Render(buf)
		for i, s := range buf {
			if s > 1 || s < -1 {
				t.Fatalf("round %d sample %d = %v outside [-1, 1]", round, i, s)
			}
		}
	}
}
