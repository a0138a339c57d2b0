// ABOUTME: Decoded audio source abstraction
// ABOUTME: Opens MP3, FLAC, WAV and Ogg Opus files as seekable PCM streams
package decode

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/hushtone/hushtone-go/pkg/audio"
)

// ErrUnsupportedFormat is returned when a file's container cannot be decoded.
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// Source is an open, decodable audio stream. Sources are owned by the
// control/decode context; the render path never touches one directly.
type Source interface {
	// ReadPCM fills dst with interleaved float32 samples in [-1, 1] at the
	// source's native format. Returns the number of samples written and
	// io.EOF once the stream is exhausted.
	ReadPCM(dst []float32) (int, error)

	// Format returns the native sample rate and channel count.
	Format() audio.Format

	// Duration returns the total stream length from container metadata.
	Duration() time.Duration

	// Seek repositions the stream to the given offset from the start.
	Seek(d time.Duration) error

	// Close releases the underlying file and decoder resources.
	Close() error
}

// Open opens path with a decoder selected by file extension.
func Open(path string) (Source, error) {
	ext := strings.ToLower(filepath.Ext(path))

	switch ext {
	case ".mp3":
		return OpenMP3(path)
	case ".flac":
		return OpenFLAC(path)
	case ".wav":
		return OpenWAV(path)
	case ".opus", ".ogg":
		return OpenOpus(path)
	default:
		return nil, fmt.Errorf("%w: %s (supported: .mp3, .flac, .wav, .opus)", ErrUnsupportedFormat, ext)
	}
}
