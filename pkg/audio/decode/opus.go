// ABOUTME: Ogg Opus audio source
// ABOUTME: Wraps the pure-Go pion/opus decoder and its Ogg page reader
package decode

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/pion/opus"
	"github.com/pion/opus/pkg/oggreader"

	"github.com/hushtone/hushtone-go/pkg/audio"
)

// opusSampleRate is the fixed decoder output rate; Ogg Opus granule
// positions are always expressed at 48 kHz.
const opusSampleRate = 48000

// opusFrameBytes is the decoded size of one 20 ms mono frame.
const opusFrameBytes = 960 * 2

// OpusSource reads PCM from an Ogg Opus file. The decoder emits mono
// 48 kHz; seeking is page-accurate rather than sample-accurate.
type OpusSource struct {
	file    *os.File
	ogg     *oggreader.OggReader
	decoder opus.Decoder
	preSkip uint64
	total   uint64 // total output samples from the final page granule

	pending []float32
	scratch [opusFrameBytes]byte
}

// OpenOpus opens an Ogg Opus file.
func OpenOpus(path string) (*OpusSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open Opus file: %w", err)
	}

	total, preSkip, err := scanOpusLength(f)
	if err != nil {
		f.Close()
		return nil, err
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return nil, err
	}
	ogg, _, err := oggreader.NewWith(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}

	return &OpusSource{
		file:    f,
		ogg:     ogg,
		decoder: opus.NewDecoder(),
		preSkip: preSkip,
		total:   total,
	}, nil
}

// scanOpusLength walks every page to find the final granule position, which
// gives the stream length. The file is re-opened for playback afterwards.
func scanOpusLength(f *os.File) (total, preSkip uint64, err error) {
	ogg, header, err := oggreader.NewWith(f)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	preSkip = uint64(header.PreSkip)

	var lastGranule uint64
	for {
		_, pageHeader, err := ogg.ParseNextPage()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, 0, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
		}
		if pageHeader.GranulePosition > lastGranule {
			lastGranule = pageHeader.GranulePosition
		}
	}
	if lastGranule > preSkip {
		total = lastGranule - preSkip
	}
	return total, preSkip, nil
}

func (s *OpusSource) ReadPCM(dst []float32) (int, error) {
	written := 0

	for written < len(dst) {
		if len(s.pending) > 0 {
			n := copy(dst[written:], s.pending)
			s.pending = s.pending[n:]
			written += n
			continue
		}

		segments, _, err := s.ogg.ParseNextPage()
		if err != nil {
			if err == io.EOF {
				if written == 0 {
					return 0, io.EOF
				}
				return written, nil
			}
			return written, fmt.Errorf("opus read: %w", err)
		}

		for _, segment := range segments {
			if _, _, err := s.decoder.Decode(segment, s.scratch[:]); err != nil {
				return written, fmt.Errorf("opus decode: %w", err)
			}
			for i := 0; i < opusFrameBytes/2; i++ {
				s16 := int16(binary.LittleEndian.Uint16(s.scratch[i*2:]))
				s.pending = append(s.pending, audio.SampleToFloat(s16))
			}
		}
	}

	return written, nil
}

func (s *OpusSource) Format() audio.Format {
	return audio.Format{SampleRate: opusSampleRate, Channels: 1}
}

func (s *OpusSource) Duration() time.Duration {
	return time.Duration(s.total) * time.Second / opusSampleRate
}

// Seek rewinds to the start and skips whole pages until the target granule.
// Accuracy is limited to one Ogg page.
func (s *OpusSource) Seek(d time.Duration) error {
	target := uint64(d.Seconds()*opusSampleRate) + s.preSkip

	if _, err := s.file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("opus seek: %w", err)
	}
	ogg, _, err := oggreader.NewWith(s.file)
	if err != nil {
		return fmt.Errorf("opus seek: %w", err)
	}
	s.ogg = ogg
	s.decoder = opus.NewDecoder()
	s.pending = nil

	for {
		_, pageHeader, err := s.ogg.ParseNextPage()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("opus seek: %w", err)
		}
		if pageHeader.GranulePosition >= target {
			return nil
		}
	}
}

func (s *OpusSource) Close() error {
	return s.file.Close()
}
