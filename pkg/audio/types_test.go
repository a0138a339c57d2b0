// ABOUTME: Tests for shared audio types and conversions
// ABOUTME: Covers format validation, clamping, and sample conversion
package audio

import "testing"

func TestFormatValid(t *testing.T) {
	cases := []struct {
		format Format
		want   bool
	}{
		{Format{SampleRate: 48000, Channels: 2}, true},
		{Format{SampleRate: 44100, Channels: 1}, true},
		{Format{SampleRate: 0, Channels: 2}, false},
		{Format{SampleRate: -1, Channels: 2}, false},
		{Format{SampleRate: 48000, Channels: 0}, false},
		{Format{SampleRate: 48000, Channels: 3}, false},
	}

	for _, tc := range cases {
		if got := tc.format.Valid(); got != tc.want {
			t.Errorf("%+v.Valid() = %v, want %v", tc.format, got, tc.want)
		}
	}
}

func TestClampFrequency(t *testing.T) {
	cases := []struct {
		in   float64
		want float64
	}{
		{50, MinFrequency},
		{100, 100},
		{4000, 4000},
		{15000, 15000},
		{20000, MaxFrequency},
		{-10, MinFrequency},
	}

	for _, tc := range cases {
		if got := ClampFrequency(tc.in); got != tc.want {
			t.Errorf("ClampFrequency(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestClampUnit(t *testing.T) {
	if got := ClampUnit(-0.5); got != 0 {
		t.Errorf("ClampUnit(-0.5) = %v, want 0", got)
	}
	if got := ClampUnit(1.5); got != 1 {
		t.Errorf("ClampUnit(1.5) = %v, want 1", got)
	}
	if got := ClampUnit(0.25); got != 0.25 {
		t.Errorf("ClampUnit(0.25) = %v, want 0.25", got)
	}
}

func TestSampleConversion(t *testing.T) {
	if got := SampleToFloat(0); got != 0 {
		t.Errorf("SampleToFloat(0) = %v, want 0", got)
	}
	if got := SampleToFloat(32767); got <= 0.99 || got > 1.0 {
		t.Errorf("SampleToFloat(32767) = %v, want near 1", got)
	}
	if got := SampleToFloat(-32768); got != -1.0 {
		t.Errorf("SampleToFloat(-32768) = %v, want -1", got)
	}

	// Round trip stays within one quantization step.
	for _, s := range []int16{-32768, -12345, -1, 0, 1, 12345, 32767} {
		back := SampleFromFloat(SampleToFloat(s))
		diff := int(back) - int(s)
		if diff < -1 || diff > 1 {
			t.Errorf("round trip of %d produced %d", s, back)
		}
	}

	// Out-of-range floats clip instead of wrapping.
	if got := SampleFromFloat(2.0); got != 32767 {
		t.Errorf("SampleFromFloat(2.0) = %d, want 32767", got)
	}
	if got := SampleFromFloat(-2.0); got != -32768 {
		t.Errorf("SampleFromFloat(-2.0) = %d, want -32768", got)
	}
}
