// ABOUTME: Spectrum tap and off-thread magnitude analyzer
// ABOUTME: Render writes into an SPSC ring; a goroutine publishes snapshots
package filter

import (
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hushtone/hushtone-go/internal/ringbuf"
)

const (
	// analysisWindow is the number of samples per magnitude computation.
	analysisWindow = 2048

	// snapshotBins is the decimated resolution published for visualization.
	snapshotBins = 48

	analysisInterval = 100 * time.Millisecond
)

// SpectrumTap is the render-side half: a non-blocking sample sink. When the
// ring is full samples are dropped, never queued; the render path cannot be
// slowed down by a lagging analyzer.
type SpectrumTap struct {
	ring *ringbuf.Ring
}

// NewSpectrumTap allocates the tap ring once at engine init.
func NewSpectrumTap() *SpectrumTap {
	return &SpectrumTap{ring: ringbuf.New(analysisWindow * 4)}
}

// Push offers post-mix samples to the analyzer. Render context only.
func (t *SpectrumTap) Push(samples []float32) {
	t.ring.Write(samples)
}

// Bin is one point of the decimated magnitude snapshot.
type Bin struct {
	FrequencyHz float64 `json:"frequencyHz"`
	MagnitudeDB float64 `json:"magnitudeDb"`
}

// Snapshot is an immutable spectrum estimate. Readers get whole snapshots
// via atomic pointer swap; no reader ever observes a half-written one.
type Snapshot struct {
	Bins      []Bin     `json:"bins"`
	Timestamp time.Time `json:"timestamp"`
}

// Analyzer consumes the tap off the render thread and publishes decimated
// spectral-magnitude snapshots. Bins are log-spaced across the engine's
// supported frequency range and evaluated with a Goertzel bank.
type Analyzer struct {
	tap        *SpectrumTap
	sampleRate int
	freqs      [snapshotBins]float64

	snapshot atomic.Pointer[Snapshot]
	window   []float32

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewAnalyzer creates an analyzer reading from tap.
func NewAnalyzer(tap *SpectrumTap, sampleRate int) *Analyzer {
	a := &Analyzer{
		tap:        tap,
		sampleRate: sampleRate,
		window:     make([]float32, analysisWindow),
		stopChan:   make(chan struct{}),
	}

	// Log-spaced probe frequencies from 100 Hz to 15 kHz.
	logMin, logMax := math.Log2(100), math.Log2(15000)
	for i := range a.freqs {
		frac := float64(i) / float64(snapshotBins-1)
		a.freqs[i] = math.Exp2(logMin + frac*(logMax-logMin))
	}
	return a
}

// Start launches the analysis goroutine.
func (a *Analyzer) Start() {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.run()
	}()
}

// Stop terminates analysis and waits for the goroutine to exit.
func (a *Analyzer) Stop() {
	a.stopOnce.Do(func() { close(a.stopChan) })
	a.wg.Wait()
}

// Latest returns the most recent snapshot, or nil before the first one.
func (a *Analyzer) Latest() *Snapshot {
	return a.snapshot.Load()
}

func (a *Analyzer) run() {
	logrus.WithFields(logrus.Fields{
		"bins":   snapshotBins,
		"window": analysisWindow,
	}).Debug("spectrum analyzer started")

	ticker := time.NewTicker(analysisInterval)
	defer ticker.Stop()

	for {
		select {
		case <-a.stopChan:
			return
		case <-ticker.C:
			if n := a.tap.ring.Read(a.window); n == analysisWindow {
				a.publish()
			}
		}
	}
}

func (a *Analyzer) publish() {
	snap := &Snapshot{
		Bins:      make([]Bin, snapshotBins),
		Timestamp: time.Now(),
	}
	for i, f := range a.freqs {
		mag := goertzel(a.window, f, float64(a.sampleRate))
		snap.Bins[i] = Bin{FrequencyHz: f, MagnitudeDB: magToDB(mag)}
	}
	a.snapshot.Store(snap)
}

// goertzel evaluates the normalized magnitude of one frequency component.
func goertzel(samples []float32, freq, sampleRate float64) float64 {
	w := 2 * math.Pi * freq / sampleRate
	coeff := 2 * math.Cos(w)

	var s0, s1, s2 float64
	for _, x := range samples {
		s0 = float64(x) + coeff*s1 - s2
		s2 = s1
		s1 = s0
	}

	power := s1*s1 + s2*s2 - coeff*s1*s2
	if power < 0 {
		power = 0
	}
	return math.Sqrt(power) / float64(len(samples)/2)
}

func magToDB(mag float64) float64 {
	if mag < 1e-9 {
		mag = 1e-9
	}
	return 20 * math.Log10(mag)
}
