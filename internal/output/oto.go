// ABOUTME: Audio device backend using the oto library
// ABOUTME: The device pulls samples continuously from the render callback
package output

import (
	"fmt"

	"github.com/ebitengine/oto/v3"
	"github.com/sirupsen/logrus"

	"github.com/hushtone/hushtone-go/pkg/audio"
)

// OtoBackend plays the render callback through the system audio device.
type OtoBackend struct {
	format audio.Format
	frames int
	render RenderFunc

	otoCtx *oto.Context
	player *oto.Player
}

// NewOtoBackend creates a backend for the given format and callback block
// size in frames.
func NewOtoBackend(format audio.Format, frames int, render RenderFunc) *OtoBackend {
	return &OtoBackend{
		format: format,
		frames: frames,
		render: render,
	}
}

// Start initializes the device and begins pulling from the callback.
func (b *OtoBackend) Start() error {
	op := &oto.NewContextOptions{
		SampleRate:   b.format.SampleRate,
		ChannelCount: b.format.Channels,
		Format:       oto.FormatFloat32LE,
	}

	ctx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return fmt.Errorf("failed to create oto context: %w", err)
	}
	<-readyChan

	b.otoCtx = ctx
	b.player = ctx.NewPlayer(newRenderReader(b.render, b.frames))
	b.player.Play()

	logrus.WithFields(logrus.Fields{
		"sampleRate": b.format.SampleRate,
		"channels":   b.format.Channels,
	}).Info("audio output initialized")

	return nil
}

// Close stops playback and suspends the device context.
func (b *OtoBackend) Close() error {
	if b.player != nil {
		if err := b.player.Close(); err != nil {
			return fmt.Errorf("failed to close audio player: %w", err)
		}
		b.player = nil
	}
	if b.otoCtx != nil {
		b.otoCtx.Suspend()
		b.otoCtx = nil
	}
	return nil
}
