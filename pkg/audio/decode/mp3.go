// ABOUTME: MP3 audio source
// ABOUTME: Wraps hajimehoshi/go-mp3 with duration metadata and sample seeking
package decode

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"time"

	mp3 "github.com/hajimehoshi/go-mp3"

	"github.com/hushtone/hushtone-go/pkg/audio"
)

// mp3BytesPerFrame is the decoded frame size: the decoder always emits
// 16-bit stereo regardless of the encoded channel layout.
const mp3BytesPerFrame = 4

// MP3Source reads PCM from an MP3 file.
type MP3Source struct {
	file    *os.File
	decoder *mp3.Decoder
	scratch []byte
}

// OpenMP3 opens an MP3 file.
func OpenMP3(path string) (*MP3Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open MP3 file: %w", err)
	}

	decoder, err := mp3.NewDecoder(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}

	return &MP3Source{
		file:    f,
		decoder: decoder,
	}, nil
}

func (s *MP3Source) ReadPCM(dst []float32) (int, error) {
	numBytes := len(dst) * 2
	if len(s.scratch) < numBytes {
		s.scratch = make([]byte, numBytes)
	}
	buf := s.scratch[:numBytes]

	n, err := s.decoder.Read(buf)
	if err != nil && err != io.EOF {
		return 0, fmt.Errorf("mp3 decode: %w", err)
	}

	numSamples := n / 2
	for i := 0; i < numSamples; i++ {
		s16 := int16(binary.LittleEndian.Uint16(buf[i*2:]))
		dst[i] = audio.SampleToFloat(s16)
	}

	if err == io.EOF && numSamples == 0 {
		return 0, io.EOF
	}
	return numSamples, nil
}

func (s *MP3Source) Format() audio.Format {
	return audio.Format{SampleRate: s.decoder.SampleRate(), Channels: 2}
}

func (s *MP3Source) Duration() time.Duration {
	frames := s.decoder.Length() / mp3BytesPerFrame
	if frames <= 0 {
		return 0
	}
	return time.Duration(frames) * time.Second / time.Duration(s.decoder.SampleRate())
}

// Seek repositions in the decoded PCM stream; go-mp3 exposes byte-accurate
// seeking over the decoded representation.
func (s *MP3Source) Seek(d time.Duration) error {
	frame := int64(d.Seconds() * float64(s.decoder.SampleRate()))
	if _, err := s.decoder.Seek(frame*mp3BytesPerFrame, io.SeekStart); err != nil {
		return fmt.Errorf("mp3 seek: %w", err)
	}
	return nil
}

func (s *MP3Source) Close() error {
	return s.file.Close()
}
