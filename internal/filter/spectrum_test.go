// ABOUTME: Tests for the spectrum tap and analyzer
// ABOUTME: Verifies tone detection and snapshot publication
package filter

import (
	"math"
	"testing"
	"time"
)

func TestTapDropsWhenFull(t *testing.T) {
	tap := NewSpectrumTap()

	big := make([]float32, analysisWindow*16)
	tap.Push(big) // must not block or panic
	tap.Push(big)
}

func TestAnalyzerPublishesSnapshot(t *testing.T) {
	tap := NewSpectrumTap()
	a := NewAnalyzer(tap, testRate)
	a.Start()
	defer a.Stop()

	if a.Latest() != nil {
		t.Fatal("snapshot published before any samples")
	}

	// Feed a 4 kHz tone and wait for an analysis tick.
	tone := sineBuf(4000, analysisWindow*2)
	deadline := time.Now().Add(2 * time.Second)
	for a.Latest() == nil && time.Now().Before(deadline) {
		tap.Push(tone)
		time.Sleep(20 * time.Millisecond)
	}

	snap := a.Latest()
	if snap == nil {
		t.Fatal("no snapshot published within deadline")
	}
	if len(snap.Bins) != snapshotBins {
		t.Fatalf("snapshot has %d bins, want %d", len(snap.Bins), snapshotBins)
	}
	if snap.Timestamp.IsZero() {
		t.Error("snapshot has zero timestamp")
	}

	// The strongest bin should sit near the tone.
	best := 0
	for i, bin := range snap.Bins {
		if bin.MagnitudeDB > snap.Bins[best].MagnitudeDB {
			best = i
		}
	}
	peak := snap.Bins[best].FrequencyHz
	if peak < 3200 || peak > 5000 {
		t.Errorf("spectral peak at %v Hz, want near 4000", peak)
	}
}

func TestAnalyzerStopIsIdempotent(t *testing.T) {
	a := NewAnalyzer(NewSpectrumTap(), testRate)
	a.Start()
	a.Stop()
	a.Stop()
}

func TestBinsAreLogSpaced(t *testing.T) {
	a := NewAnalyzer(NewSpectrumTap(), testRate)

	if math.Abs(a.freqs[0]-100) > 1 {
		t.Errorf("first bin = %v, want 100", a.freqs[0])
	}
	if math.Abs(a.freqs[snapshotBins-1]-15000) > 1 {
		t.Errorf("last bin = %v, want 15000", a.freqs[snapshotBins-1])
	}

	// Log spacing: the ratio between adjacent bins is constant.
	ratio := a.freqs[1] / a.freqs[0]
	for i := 2; i < snapshotBins; i++ {
		r := a.freqs[i] / a.freqs[i-1]
		if math.Abs(r-ratio) > 1e-9 {
			t.Fatalf("bin ratio at %d = %v, want %v", i, r, ratio)
		}
	}
}

func TestGoertzelDetectsTone(t *testing.T) {
	tone := sineBuf(1000, analysisWindow)

	on := goertzel(tone, 1000, testRate)
	off := goertzel(tone, 3000, testRate)

	if on < off*10 {
		t.Errorf("on-frequency magnitude %v not dominant over off-frequency %v", on, off)
	}
	if on < 0.5 || on > 1.5 {
		t.Errorf("unit sine magnitude = %v, want near 1", on)
	}
}
