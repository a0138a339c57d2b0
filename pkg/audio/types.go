// ABOUTME: Audio type definitions
// ABOUTME: Defines stream formats and sample conversions used across the engine
package audio

// Engine-wide format constants. The render graph runs at a fixed rate and
// channel count; sources at other rates are resampled on the decode path.
const (
	DefaultSampleRate = 48000
	DefaultChannels   = 2
)

// Frequency limits for every tunable frequency in the engine (oscillator
// pitch and notch center). Values outside are clamped at the control layer.
const (
	MinFrequency = 100.0
	MaxFrequency = 15000.0
)

// Format describes a PCM stream.
type Format struct {
	SampleRate int
	Channels   int
}

// Valid reports whether the format is usable by the engine.
func (f Format) Valid() bool {
	return f.SampleRate > 0 && (f.Channels == 1 || f.Channels == 2)
}

// SampleToFloat converts a signed 16-bit PCM sample to [-1, 1].
func SampleToFloat(s int16) float32 {
	return float32(s) / 32768.0
}

// SampleFromFloat converts a [-1, 1] float sample to signed 16-bit PCM,
// clamping out-of-range input.
func SampleFromFloat(f float32) int16 {
	if f > 1.0 {
		f = 1.0
	} else if f < -1.0 {
		f = -1.0
	}
	return int16(f * 32767.0)
}

// ClampFrequency clamps a frequency into the engine's supported range.
func ClampFrequency(hz float64) float64 {
	if hz < MinFrequency {
		return MinFrequency
	}
	if hz > MaxFrequency {
		return MaxFrequency
	}
	return hz
}

// ClampUnit clamps a gain or depth value into [0, 1].
func ClampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
