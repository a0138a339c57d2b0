// ABOUTME: Headless output backend that paces the render callback in software
// ABOUTME: Used by tests and by deployments without an audio device
package output

import (
	"sync"
	"time"

	"github.com/hushtone/hushtone-go/pkg/audio"
)

// HeadlessBackend drives the render callback on a wall-clock pace without
// touching any audio device. Rendered samples are discarded.
type HeadlessBackend struct {
	format audio.Format
	frames int
	render RenderFunc

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewHeadlessBackend creates a backend rendering blocks of the given frame
// count at the format's real-time rate.
func NewHeadlessBackend(format audio.Format, frames int, render RenderFunc) *HeadlessBackend {
	return &HeadlessBackend{
		format:   format,
		frames:   frames,
		render:   render,
		stopChan: make(chan struct{}),
	}
}

// Start launches the pacing goroutine.
func (b *HeadlessBackend) Start() error {
	interval := time.Duration(b.frames) * time.Second / time.Duration(b.format.SampleRate)
	buf := make([]float32, b.frames*b.format.Channels)

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-b.stopChan:
				return
			case <-ticker.C:
				b.render(buf)
			}
		}
	}()
	return nil
}

// Close stops the pacing goroutine and waits for it to exit.
func (b *HeadlessBackend) Close() error {
	b.stopOnce.Do(func() { close(b.stopChan) })
	b.wg.Wait()
	return nil
}
