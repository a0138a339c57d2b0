// ABOUTME: WAV (RIFF) audio source
// ABOUTME: Parses the container header and streams 16-bit PCM data
package decode

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/hushtone/hushtone-go/pkg/audio"
)

// WAVSource reads PCM from an uncompressed RIFF/WAVE file.
type WAVSource struct {
	file       *os.File
	sampleRate int
	channels   int
	dataStart  int64
	dataSize   int64
	scratch    []byte
}

// OpenWAV opens a 16-bit PCM WAV file.
func OpenWAV(path string) (*WAVSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open WAV file: %w", err)
	}

	src, err := parseWAV(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	src.file = f
	return src, nil
}

func parseWAV(f *os.File) (*WAVSource, error) {
	var riff [12]byte
	if _, err := io.ReadFull(f, riff[:]); err != nil {
		return nil, fmt.Errorf("%w: truncated RIFF header", ErrUnsupportedFormat)
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return nil, fmt.Errorf("%w: not a RIFF/WAVE file", ErrUnsupportedFormat)
	}

	src := &WAVSource{}
	var haveFmt bool

	// Walk chunks until the data chunk; anything after it is ignored.
	for {
		var hdr [8]byte
		if _, err := io.ReadFull(f, hdr[:]); err != nil {
			return nil, fmt.Errorf("%w: missing data chunk", ErrUnsupportedFormat)
		}
		id := string(hdr[0:4])
		size := int64(binary.LittleEndian.Uint32(hdr[4:8]))

		switch id {
		case "fmt ":
			if size < 16 {
				return nil, fmt.Errorf("%w: short fmt chunk", ErrUnsupportedFormat)
			}
			body := make([]byte, size)
			if _, err := io.ReadFull(f, body); err != nil {
				return nil, fmt.Errorf("%w: truncated fmt chunk", ErrUnsupportedFormat)
			}
			format := binary.LittleEndian.Uint16(body[0:2])
			channels := int(binary.LittleEndian.Uint16(body[2:4]))
			rate := int(binary.LittleEndian.Uint32(body[4:8]))
			bits := binary.LittleEndian.Uint16(body[14:16])
			if format != 1 || bits != 16 {
				return nil, fmt.Errorf("%w: only 16-bit PCM WAV is supported", ErrUnsupportedFormat)
			}
			if channels != 1 && channels != 2 {
				return nil, fmt.Errorf("%w: unsupported channel count %d", ErrUnsupportedFormat, channels)
			}
			src.sampleRate = rate
			src.channels = channels
			haveFmt = true
		case "data":
			if !haveFmt {
				return nil, fmt.Errorf("%w: data chunk before fmt chunk", ErrUnsupportedFormat)
			}
			pos, err := f.Seek(0, io.SeekCurrent)
			if err != nil {
				return nil, err
			}
			src.dataStart = pos
			src.dataSize = size
			return src, nil
		default:
			// Skip unknown chunks (pad byte on odd sizes).
			if size%2 == 1 {
				size++
			}
			if _, err := f.Seek(size, io.SeekCurrent); err != nil {
				return nil, fmt.Errorf("%w: bad chunk %q", ErrUnsupportedFormat, id)
			}
		}
	}
}

func (s *WAVSource) ReadPCM(dst []float32) (int, error) {
	numBytes := len(dst) * 2
	if len(s.scratch) < numBytes {
		s.scratch = make([]byte, numBytes)
	}
	buf := s.scratch[:numBytes]

	pos, err := s.file.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, err
	}
	remaining := s.dataStart + s.dataSize - pos
	if remaining <= 0 {
		return 0, io.EOF
	}
	if int64(numBytes) > remaining {
		buf = buf[:remaining]
	}

	n, err := io.ReadFull(s.file, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return 0, fmt.Errorf("wav read: %w", err)
	}

	numSamples := n / 2
	for i := 0; i < numSamples; i++ {
		s16 := int16(binary.LittleEndian.Uint16(buf[i*2:]))
		dst[i] = audio.SampleToFloat(s16)
	}
	if numSamples == 0 {
		return 0, io.EOF
	}
	return numSamples, nil
}

func (s *WAVSource) Format() audio.Format {
	return audio.Format{SampleRate: s.sampleRate, Channels: s.channels}
}

func (s *WAVSource) Duration() time.Duration {
	frames := s.dataSize / int64(2*s.channels)
	return time.Duration(frames) * time.Second / time.Duration(s.sampleRate)
}

func (s *WAVSource) Seek(d time.Duration) error {
	frame := int64(d.Seconds() * float64(s.sampleRate))
	offset := frame * int64(2*s.channels)
	if offset > s.dataSize {
		offset = s.dataSize
	}
	if _, err := s.file.Seek(s.dataStart+offset, io.SeekStart); err != nil {
		return fmt.Errorf("wav seek: %w", err)
	}
	return nil
}

func (s *WAVSource) Close() error {
	return s.file.Close()
}
