// ABOUTME: FLAC audio source
// ABOUTME: Wraps mewkiz/flac with frame buffering and sample-accurate seeking
package decode

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mewkiz/flac"

	"github.com/hushtone/hushtone-go/pkg/audio"
)

// FLACSource reads PCM from a FLAC file.
type FLACSource struct {
	file   *os.File
	stream *flac.Stream

	// Samples decoded from the current frame but not yet handed out.
	pending []float32
	scale   float32
}

// OpenFLAC opens a FLAC file with seeking enabled.
func OpenFLAC(path string) (*FLACSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open FLAC file: %w", err)
	}

	stream, err := flac.NewSeek(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}

	bps := stream.Info.BitsPerSample
	return &FLACSource{
		file:   f,
		stream: stream,
		scale:  float32(int64(1) << (bps - 1)),
	}, nil
}

func (s *FLACSource) ReadPCM(dst []float32) (int, error) {
	written := 0

	for written < len(dst) {
		if len(s.pending) > 0 {
			n := copy(dst[written:], s.pending)
			s.pending = s.pending[n:]
			written += n
			continue
		}

		frame, err := s.stream.ParseNext()
		if err != nil {
			if err == io.EOF {
				if written == 0 {
					return 0, io.EOF
				}
				return written, nil
			}
			return written, fmt.Errorf("flac decode: %w", err)
		}

		channels := len(frame.Subframes)
		blockSize := int(frame.BlockSize)
		if cap(s.pending) < blockSize*channels {
			s.pending = make([]float32, 0, blockSize*channels)
		}
		s.pending = s.pending[:0]
		for i := 0; i < blockSize; i++ {
			for ch := 0; ch < channels; ch++ {
				s.pending = append(s.pending, float32(frame.Subframes[ch].Samples[i])/s.scale)
			}
		}
	}

	return written, nil
}

func (s *FLACSource) Format() audio.Format {
	return audio.Format{
		SampleRate: int(s.stream.Info.SampleRate),
		Channels:   int(s.stream.Info.NChannels),
	}
}

func (s *FLACSource) Duration() time.Duration {
	info := s.stream.Info
	if info.NSamples == 0 || info.SampleRate == 0 {
		return 0
	}
	return time.Duration(info.NSamples) * time.Second / time.Duration(info.SampleRate)
}

func (s *FLACSource) Seek(d time.Duration) error {
	sample := uint64(d.Seconds() * float64(s.stream.Info.SampleRate))
	if _, err := s.stream.Seek(sample); err != nil {
		return fmt.Errorf("flac seek: %w", err)
	}
	s.pending = nil
	return nil
}

func (s *FLACSource) Close() error {
	return s.file.Close()
}
