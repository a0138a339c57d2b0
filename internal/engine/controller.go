// ABOUTME: Session audio controller: mixes buses and owns the state machine
// ABOUTME: Render path is pull-based, lock-free, allocation-free and infallible
package engine

import (
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hushtone/hushtone-go/internal/events"
	"github.com/hushtone/hushtone-go/internal/filter"
	"github.com/hushtone/hushtone-go/internal/params"
	"github.com/hushtone/hushtone-go/internal/playback"
	"github.com/hushtone/hushtone-go/internal/prefs"
	"github.com/hushtone/hushtone-go/internal/synth"
	"github.com/hushtone/hushtone-go/pkg/audio"
)

// DefaultBufferFrames is the render block size when the config leaves it
// zero. At 48 kHz this is roughly 10 ms per callback.
const DefaultBufferFrames = 512

// Config configures the controller. Validation happens once, here and in
// the parameter bridge; after construction the engine cannot hit a
// configuration error again.
type Config struct {
	SampleRate   int
	BufferFrames int
	Prefs        prefs.Store // nil disables persistence
}

// Controller is the top-level session audio engine. All entities are
// created once here and mutated in place for the engine's lifetime;
// parameters, not objects, are swapped.
type Controller struct {
	cfg    Config
	bridge *params.Bridge

	oscLeft  *synth.Oscillator
	oscRight *synth.Oscillator
	noise    *synth.NoiseGenerator

	noiseNotch  *filter.Notch
	musicNotchL *filter.Notch
	musicNotchR *filter.Notch

	music *playback.Engine

	tap      *filter.SpectrumTap
	analyzer *filter.Analyzer
	bus      *events.Bus

	state atomic.Int32

	// Render scratch, allocated once. The render path only slices these.
	toneL, toneR []float32
	noiseBuf     []float32
	musicBuf     []float32
	musicL       []float32
	musicR       []float32
	mixMono      []float32

	store prefs.Store

	stopEvents func()
	wg         sync.WaitGroup
	closeOnce  sync.Once
}

// New constructs the full engine graph. A non-positive sample rate is a
// ConfigurationError: fatal at construction, impossible afterwards.
func New(cfg Config) (*Controller, error) {
	if cfg.BufferFrames <= 0 {
		cfg.BufferFrames = DefaultBufferFrames
	}

	bridge, err := params.New(cfg.SampleRate)
	if err != nil {
		return nil, fmt.Errorf("engine config: %w", err)
	}

	oscL, err := synth.NewOscillator(cfg.SampleRate, &bridge.LeftOsc)
	if err != nil {
		return nil, err
	}
	oscR, err := synth.NewOscillator(cfg.SampleRate, &bridge.RightOsc)
	if err != nil {
		return nil, err
	}
	noise, err := synth.NewNoiseGenerator(cfg.SampleRate, bridge)
	if err != nil {
		return nil, err
	}

	tap := filter.NewSpectrumTap()

	c := &Controller{
		cfg:         cfg,
		bridge:      bridge,
		oscLeft:     oscL,
		oscRight:    oscR,
		noise:       noise,
		noiseNotch:  filter.NewNotch(bridge),
		musicNotchL: filter.NewNotch(bridge),
		musicNotchR: filter.NewNotch(bridge),
		music:       playback.New(cfg.SampleRate),
		tap:         tap,
		analyzer:    filter.NewAnalyzer(tap, cfg.SampleRate),
		bus:         events.NewBus(),
		store:       cfg.Prefs,

		toneL:    make([]float32, cfg.BufferFrames),
		toneR:    make([]float32, cfg.BufferFrames),
		noiseBuf: make([]float32, cfg.BufferFrames),
		musicBuf: make([]float32, cfg.BufferFrames*audio.DefaultChannels),
		musicL:   make([]float32, cfg.BufferFrames),
		musicR:   make([]float32, cfg.BufferFrames),
		mixMono:  make([]float32, cfg.BufferFrames),
	}

	c.loadPreferences()
	c.analyzer.Start()
	c.watchInterruptions()

	logrus.WithFields(logrus.Fields{
		"sampleRate":   cfg.SampleRate,
		"bufferFrames": cfg.BufferFrames,
	}).Info("session audio controller created")

	return c, nil
}

// Bridge exposes the parameter arena, mainly for tests.
func (c *Controller) Bridge() *params.Bridge { return c.bridge }

// InterruptionBus returns the bus external session logic publishes
// interruption signals into.
func (c *Controller) InterruptionBus() *events.Bus { return c.bus }

// State returns the current lifecycle state.
func (c *Controller) State() State { return State(c.state.Load()) }

// Start transitions Idle to Running. Starting an already started session
// is a no-op.
func (c *Controller) Start() {
	if c.state.CompareAndSwap(int32(Idle), int32(Running)) {
		logrus.Info("session started")
	}
}

// Stop is legal from every state and always returns to Idle. The render
// path observes the state flag within one buffer; no resources are torn
// down mid-callback.
func (c *Controller) Stop() {
	prev := State(c.state.Swap(int32(Idle)))
	if prev != Idle {
		logrus.WithField("from", prev.String()).Info("session stopped")
	}
}

// watchInterruptions forwards bus signals into state transitions on the
// control context.
func (c *Controller) watchInterruptions() {
	ch, cancel := c.bus.Subscribe()
	c.stopEvents = cancel

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for sig := range ch {
			switch sig.Kind {
			case events.InterruptionBegan:
				if c.state.CompareAndSwap(int32(Running), int32(Interrupted)) {
					logrus.Info("interruption began; output muted")
				}
			case events.InterruptionEnded:
				// Return to Running while still started. Resuming any
				// session-level playback is the caller's policy.
				if c.state.CompareAndSwap(int32(Interrupted), int32(Running)) {
					logrus.Info("interruption ended")
				}
			}
		}
	}()
}

// Close tears the engine down: quiesce first, free after.
func (c *Controller) Close() {
	c.closeOnce.Do(func() {
		c.Stop()
		c.stopEvents()
		c.wg.Wait()
		c.analyzer.Stop()
		c.music.Close()
		logrus.Info("session audio controller closed")
	})
}

// --- Control operations -------------------------------------------------

// StartTone enables the oscillators selected by the current ear selection.
func (c *Controller) StartTone() {
	ear := c.bridge.EarSelection()
	c.bridge.LeftOsc.SetEnabled(ear.Left())
	c.bridge.RightOsc.SetEnabled(ear.Right())
}

// StopTone disables both oscillators.
func (c *Controller) StopTone() {
	c.bridge.LeftOsc.SetEnabled(false)
	c.bridge.RightOsc.SetEnabled(false)
}

// StartNoise enables the noise bus.
func (c *Controller) StartNoise() { c.bridge.SetNoiseEnabled(true) }

// StopNoise disables the noise bus.
func (c *Controller) StopNoise() { c.bridge.SetNoiseEnabled(false) }

// SetMatchedFrequency stores the user's matched tinnitus frequency for the
// targeted ear(s) and re-centers the notch to follow it.
func (c *Controller) SetMatchedFrequency(ear params.Ear, hz float64) {
	if ear.Left() {
		c.bridge.LeftOsc.SetFrequency(hz)
		c.savePref(prefs.KeyMatchedFreqLeft, c.bridge.LeftOsc.Frequency())
	}
	if ear.Right() {
		c.bridge.RightOsc.SetFrequency(hz)
		c.savePref(prefs.KeyMatchedFreqRight, c.bridge.RightOsc.Frequency())
	}
	c.bridge.SetNotchCenter(hz)
	c.savePref(prefs.KeyNotchCenter, hz)
}

// SetEarSelection changes which oscillators control operations target. If
// the tone is currently playing the enables follow immediately.
func (c *Controller) SetEarSelection(ear params.Ear) {
	if !ear.Valid() {
		return
	}
	wasPlaying := c.IsTonePlaying()
	c.bridge.SetEarSelection(ear)
	if wasPlaying {
		c.StartTone()
	}
	if c.store != nil {
		c.store.SetString(prefs.KeyEarSelection, strconv.Itoa(int(ear)))
		c.flushPrefs()
	}
}

// SetWaveform switches both oscillators' waveform.
func (c *Controller) SetWaveform(w params.Waveform) {
	if !w.Valid() {
		return
	}
	c.bridge.LeftOsc.SetWaveform(w)
	c.bridge.RightOsc.SetWaveform(w)
	if c.store != nil {
		c.store.SetString(prefs.KeyWaveform, w.String())
		c.flushPrefs()
	}
}

// SetAmplitude sets tone amplitude for the targeted ear(s).
func (c *Controller) SetAmplitude(ear params.Ear, amp float64) {
	if ear.Left() {
		c.bridge.LeftOsc.SetAmplitude(amp)
	}
	if ear.Right() {
		c.bridge.RightOsc.SetAmplitude(amp)
	}
}

// SetPhaseInversion flips polarity for the targeted ear(s).
func (c *Controller) SetPhaseInversion(ear params.Ear, on bool) {
	if ear.Left() {
		c.bridge.LeftOsc.SetPhaseInversion(on)
	}
	if ear.Right() {
		c.bridge.RightOsc.SetPhaseInversion(on)
	}
}

// SetNoiseColor switches the noise spectrum; the generator crossfades.
func (c *Controller) SetNoiseColor(color params.NoiseColor) {
	if !color.Valid() {
		return
	}
	c.bridge.SetNoiseColor(color)
	if c.store != nil {
		c.store.SetString(prefs.KeyNoiseColor, color.String())
		c.flushPrefs()
	}
}

// SetNoiseVolume sets the noise bus gain.
func (c *Controller) SetNoiseVolume(v float64) { c.bridge.SetNoiseVolume(v) }

// SetNotch updates the notch spec and persists it.
func (c *Controller) SetNotch(centerHz, widthOctaves, depth float64) {
	c.bridge.SetNotch(centerHz, widthOctaves, depth)
	center, width, d := c.bridge.Notch()
	c.savePref(prefs.KeyNotchCenter, center)
	c.savePref(prefs.KeyNotchWidth, width)
	c.savePref(prefs.KeyNotchDepth, d)
}

// SetMasterVolume sets the final output gain.
func (c *Controller) SetMasterVolume(v float64) {
	c.bridge.SetMasterVolume(v)
	c.savePref(prefs.KeyMasterVolume, c.bridge.MasterVolume())
}

// SetMusicVolume sets the music bus gain (applied after the notch).
func (c *Controller) SetMusicVolume(v float64) { c.bridge.SetMusicVolume(v) }

// SetMute mutes or unmutes one or both ears.
func (c *Controller) SetMute(ear params.Ear, on bool) {
	if ear.Left() {
		c.bridge.SetMuteLeft(on)
	}
	if ear.Right() {
		c.bridge.SetMuteRight(on)
	}
}

// LoadAudioFile opens a music file for filtered playback. A FormatError
// is returned to the caller and leaves tone/noise buses untouched.
func (c *Controller) LoadAudioFile(path string) error {
	return c.music.Load(path)
}

// PlayMusic resumes playback of the loaded file.
func (c *Controller) PlayMusic() { c.music.Play() }

// PauseMusic freezes playback position.
func (c *Controller) PauseMusic() { c.music.Pause() }

// SeekMusic repositions playback, clamped into [0, duration].
func (c *Controller) SeekMusic(d time.Duration) error { return c.music.Seek(d) }

// Music exposes the playback engine, mainly for tests.
func (c *Controller) Music() *playback.Engine { return c.music }

// IsTonePlaying reports whether any oscillator is enabled.
func (c *Controller) IsTonePlaying() bool {
	return c.bridge.LeftOsc.Enabled() || c.bridge.RightOsc.Enabled()
}

// Snapshot publishes the current engine state for external readers.
func (c *Controller) Snapshot() Snapshot {
	st := c.State()
	center, width, depth := c.bridge.Notch()

	return Snapshot{
		State:         st.String(),
		IsInterrupted: st == Interrupted,

		Left: EarSnapshot{
			FrequencyHz:   c.bridge.LeftOsc.Frequency(),
			Amplitude:     c.bridge.LeftOsc.Amplitude(),
			Waveform:      c.bridge.LeftOsc.Waveform().String(),
			PhaseInverted: c.bridge.LeftOsc.PhaseInverted(),
			Enabled:       c.bridge.LeftOsc.Enabled(),
			Muted:         c.bridge.MuteLeft(),
		},
		Right: EarSnapshot{
			FrequencyHz:   c.bridge.RightOsc.Frequency(),
			Amplitude:     c.bridge.RightOsc.Amplitude(),
			Waveform:      c.bridge.RightOsc.Waveform().String(),
			PhaseInverted: c.bridge.RightOsc.PhaseInverted(),
			Enabled:       c.bridge.RightOsc.Enabled(),
			Muted:         c.bridge.MuteRight(),
		},

		EarSelection: earName(c.bridge.EarSelection()),

		IsTonePlaying:  c.IsTonePlaying(),
		IsNoisePlaying: c.bridge.NoiseEnabled(),
		NoiseColor:     c.bridge.NoiseColor().String(),
		NoiseVolume:    c.bridge.NoiseVolume(),

		NotchCenterHz:     center,
		NotchWidthOctaves: width,
		NotchDepth:        depth,

		IsMusicPlaying: c.music.Playing(),
		MusicLoaded:    c.music.Loaded(),
		MusicSourceID:  c.music.SourceID(),
		MusicVolume:    c.bridge.MusicVolume(),
		Position:       c.music.Position(),
		Duration:       c.music.Duration(),
		Underruns:      c.music.Underruns(),

		MasterVolume: c.bridge.MasterVolume(),

		Spectrum: c.analyzer.Latest(),
	}
}

// --- Render path ---------------------------------------------------------

// Render fills dst with interleaved stereo float32. This is the hard
// real-time callback body: atomic reads, pure arithmetic, and ring-buffer
// reads only. It is infallible; any unexpected condition yields silence.
func (c *Controller) Render(dst []float32) {
	frames := len(dst) / audio.DefaultChannels
	for frames > 0 {
		n := frames
		if n > c.cfg.BufferFrames {
			n = c.cfg.BufferFrames
		}
		c.renderBlock(dst[:n*audio.DefaultChannels])
		dst = dst[n*audio.DefaultChannels:]
		frames -= n
	}
}

func (c *Controller) renderBlock(dst []float32) {
	frames := len(dst) / audio.DefaultChannels

	if State(c.state.Load()) != Running {
		// Muted: emit silence but keep servicing control-side flushes so
		// seek/load never stall against a muted renderer.
		c.music.AckFlush()
		for i := range dst {
			dst[i] = 0
		}
		return
	}

	toneL := c.toneL[:frames]
	toneR := c.toneR[:frames]
	if c.bridge.LeftOsc.Enabled() {
		c.oscLeft.Render(toneL)
	} else {
		zero(toneL)
	}
	if c.bridge.RightOsc.Enabled() {
		c.oscRight.Render(toneR)
	} else {
		zero(toneR)
	}

	noiseBuf := c.noiseBuf[:frames]
	if c.bridge.NoiseEnabled() {
		c.noise.Render(noiseBuf)
		c.noiseNotch.Process(noiseBuf)
	} else {
		zero(noiseBuf)
	}

	musicBuf := c.musicBuf[:frames*audio.DefaultChannels]
	musicL := c.musicL[:frames]
	musicR := c.musicR[:frames]
	c.music.RenderStereo(musicBuf)
	for i := 0; i < frames; i++ {
		musicL[i] = musicBuf[i*2]
		musicR[i] = musicBuf[i*2+1]
	}
	c.musicNotchL.Process(musicL)
	c.musicNotchR.Process(musicR)

	master := float32(c.bridge.MasterVolume())
	musicVol := float32(c.bridge.MusicVolume())
	gainL := master
	gainR := master
	if c.bridge.MuteLeft() {
		gainL = 0
	}
	if c.bridge.MuteRight() {
		gainR = 0
	}

	mix := c.mixMono[:frames]
	for i := 0; i < frames; i++ {
		l := (toneL[i] + noiseBuf[i] + musicL[i]*musicVol) * gainL
		r := (toneR[i] + noiseBuf[i] + musicR[i]*musicVol) * gainR
		dst[i*2] = clamp(l)
		dst[i*2+1] = clamp(r)
		mix[i] = (dst[i*2] + dst[i*2+1]) * 0.5
	}

	c.tap.Push(mix)
}

// --- Preferences ----------------------------------------------------------

func (c *Controller) loadPreferences() {
	if c.store == nil {
		return
	}

	if v, ok := c.store.GetFloat(prefs.KeyMatchedFreqLeft); ok {
		c.bridge.LeftOsc.SetFrequency(v)
	}
	if v, ok := c.store.GetFloat(prefs.KeyMatchedFreqRight); ok {
		c.bridge.RightOsc.SetFrequency(v)
	}
	if v, ok := c.store.GetFloat(prefs.KeyMasterVolume); ok {
		c.bridge.SetMasterVolume(v)
	}

	center, width, depth := c.bridge.Notch()
	if v, ok := c.store.GetFloat(prefs.KeyNotchCenter); ok {
		center = v
	}
	if v, ok := c.store.GetFloat(prefs.KeyNotchWidth); ok {
		width = v
	}
	if v, ok := c.store.GetFloat(prefs.KeyNotchDepth); ok {
		depth = v
	}
	c.bridge.SetNotch(center, width, depth)

	if s, ok := c.store.GetString(prefs.KeyWaveform); ok {
		c.bridge.LeftOsc.SetWaveform(waveformFromName(s))
		c.bridge.RightOsc.SetWaveform(waveformFromName(s))
	}
	if s, ok := c.store.GetString(prefs.KeyNoiseColor); ok {
		c.bridge.SetNoiseColor(noiseColorFromName(s))
	}
	if s, ok := c.store.GetString(prefs.KeyEarSelection); ok {
		if n, err := strconv.Atoi(s); err == nil {
			c.bridge.SetEarSelection(params.Ear(n))
		}
	}
}

func (c *Controller) savePref(key string, value float64) {
	if c.store == nil {
		return
	}
	c.store.SetFloat(key, value)
	c.flushPrefs()
}

func (c *Controller) flushPrefs() {
	if err := c.store.Flush(); err != nil {
		logrus.WithField("error", err.Error()).Warn("failed to persist preferences")
	}
}

func waveformFromName(name string) params.Waveform {
	switch name {
	case "square":
		return params.Square
	case "triangle":
		return params.Triangle
	case "sawtooth":
		return params.Sawtooth
	default:
		return params.Sine
	}
}

func noiseColorFromName(name string) params.NoiseColor {
	switch name {
	case "pink":
		return params.Pink
	case "brown":
		return params.Brown
	default:
		return params.White
	}
}

func earName(e params.Ear) string {
	switch e {
	case params.EarLeft:
		return "left"
	case params.EarRight:
		return "right"
	default:
		return "both"
	}
}

func zero(buf []float32) {
	for i := range buf {
		buf[i] = 0
	}
}

// clamp bounds a sample into [-1, 1]. NaN compares false against both
// limits, so it is mapped to silence rather than passed to the device.
func clamp(v float32) float32 {
	if v != v {
		return 0
	}
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}
