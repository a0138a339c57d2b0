// ABOUTME: Session state machine values and the published engine snapshot
// ABOUTME: External collaborators read snapshots; they never touch internals
package engine

import (
	"time"

	"github.com/hushtone/hushtone-go/internal/filter"
)

// State is the session lifecycle state.
type State int32

const (
	// Idle: engine constructed or stopped; output is silence.
	Idle State = iota

	// Running: buses render and mix normally.
	Running

	// Interrupted: an external interruption muted output; the session is
	// still considered started.
	Interrupted
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Interrupted:
		return "interrupted"
	}
	return "unknown"
}

// EarSnapshot is the published per-ear oscillator state.
type EarSnapshot struct {
	FrequencyHz   float64 `json:"frequencyHz"`
	Amplitude     float64 `json:"amplitude"`
	Waveform      string  `json:"waveform"`
	PhaseInverted bool    `json:"phaseInverted"`
	Enabled       bool    `json:"enabled"`
	Muted         bool    `json:"muted"`
}

// Snapshot is the full published engine state. It is a value copy: holding
// one never blocks or references the render context.
type Snapshot struct {
	State         string `json:"state"`
	IsInterrupted bool   `json:"isInterrupted"`

	Left  EarSnapshot `json:"left"`
	Right EarSnapshot `json:"right"`

	EarSelection string `json:"earSelection"`

	IsTonePlaying  bool    `json:"isTonePlaying"`
	IsNoisePlaying bool    `json:"isNoisePlaying"`
	NoiseColor     string  `json:"noiseColor"`
	NoiseVolume    float64 `json:"noiseVolume"`

	NotchCenterHz     float64 `json:"notchCenterHz"`
	NotchWidthOctaves float64 `json:"notchWidthOctaves"`
	NotchDepth        float64 `json:"notchDepth"`

	IsMusicPlaying bool          `json:"isMusicPlaying"`
	MusicLoaded    bool          `json:"musicLoaded"`
	MusicSourceID  string        `json:"musicSourceId,omitempty"`
	MusicVolume    float64       `json:"musicVolume"`
	Position       time.Duration `json:"positionNs"`
	Duration       time.Duration `json:"durationNs"`
	Underruns      uint64        `json:"underruns"`

	MasterVolume float64 `json:"masterVolume"`

	Spectrum *filter.Snapshot `json:"spectrum,omitempty"`
}
