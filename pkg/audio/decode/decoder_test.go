// ABOUTME: Tests for the decode layer
// ABOUTME: Uses generated WAV fixtures; container decoders need real files
package decode

import (
	"encoding/binary"
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// writeWAV writes a 16-bit PCM WAV file containing the given samples.
func writeWAV(t *testing.T, path string, sampleRate, channels int, samples []int16) {
	t.Helper()

	dataSize := len(samples) * 2
	buf := make([]byte, 0, 44+dataSize)

	u16 := func(v uint16) []byte { b := make([]byte, 2); binary.LittleEndian.PutUint16(b, v); return b }
	u32 := func(v uint32) []byte { b := make([]byte, 4); binary.LittleEndian.PutUint32(b, v); return b }

	buf = append(buf, "RIFF"...)
	buf = append(buf, u32(uint32(36+dataSize))...)
	buf = append(buf, "WAVE"...)

	buf = append(buf, "fmt "...)
	buf = append(buf, u32(16)...)
	buf = append(buf, u16(1)...) // PCM
	buf = append(buf, u16(uint16(channels))...)
	buf = append(buf, u32(uint32(sampleRate))...)
	buf = append(buf, u32(uint32(sampleRate*channels*2))...)
	buf = append(buf, u16(uint16(channels*2))...)
	buf = append(buf, u16(16)...)

	buf = append(buf, "data"...)
	buf = append(buf, u32(uint32(dataSize))...)
	for _, s := range samples {
		buf = append(buf, u16(uint16(s))...)
	}

	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatal(err)
	}
}

func sineSamples(sampleRate, channels int, freq float64, frames int) []int16 {
	samples := make([]int16, frames*channels)
	for i := 0; i < frames; i++ {
		v := int16(math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate)) * 16000)
		for ch := 0; ch < channels; ch++ {
			samples[i*channels+ch] = v
		}
	}
	return samples
}

func TestOpenUnknownExtension(t *testing.T) {
	_, err := Open("song.xyz")
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("Open(.xyz) error = %v, want ErrUnsupportedFormat", err)
	}
}

func TestOpenMissingFile(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "missing.wav")); err == nil {
		t.Fatal("expected error opening missing file")
	}
}

func TestWAVRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.wav")
	const rate, frames = 44100, 44100
	writeWAV(t, path, rate, 2, sineSamples(rate, 2, 440, frames))

	src, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()

	format := src.Format()
	if format.SampleRate != rate || format.Channels != 2 {
		t.Errorf("Format() = %+v, want {44100 2}", format)
	}

	if d := src.Duration(); d != time.Second {
		t.Errorf("Duration() = %v, want 1s", d)
	}

	total := 0
	buf := make([]float32, 4096)
	for {
		n, err := src.ReadPCM(buf)
		total += n
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		for i := 0; i < n; i++ {
			if buf[i] > 1 || buf[i] < -1 {
				t.Fatalf("sample %v out of range", buf[i])
			}
		}
	}
	if total != frames*2 {
		t.Errorf("decoded %d samples, want %d", total, frames*2)
	}
}

func TestWAVSeek(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.wav")
	const rate = 48000
	writeWAV(t, path, rate, 1, sineSamples(rate, 1, 440, rate))

	src, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()

	if err := src.Seek(500 * time.Millisecond); err != nil {
		t.Fatal(err)
	}

	// Half the stream should remain.
	total := 0
	buf := make([]float32, 4096)
	for {
		n, err := src.ReadPCM(buf)
		total += n
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
	}
	if total != rate/2 {
		t.Errorf("samples after mid-seek = %d, want %d", total, rate/2)
	}

	// Seeking past the end parks at EOF rather than failing.
	if err := src.Seek(10 * time.Second); err != nil {
		t.Fatal(err)
	}
	if _, err := src.ReadPCM(buf); err != io.EOF {
		t.Errorf("read after past-end seek = %v, want io.EOF", err)
	}
}

func TestWAVRejectsNonPCM(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.wav")

	// Valid RIFF shell with a float (format 3) fmt chunk.
	buf := []byte("RIFF\x24\x00\x00\x00WAVEfmt \x10\x00\x00\x00")
	fmtBody := make([]byte, 16)
	binary.LittleEndian.PutUint16(fmtBody[0:2], 3)
	binary.LittleEndian.PutUint16(fmtBody[2:4], 2)
	binary.LittleEndian.PutUint32(fmtBody[4:8], 48000)
	binary.LittleEndian.PutUint16(fmtBody[14:16], 32)
	buf = append(buf, fmtBody...)

	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Open(path); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("Open(float wav) error = %v, want ErrUnsupportedFormat", err)
	}
}

func TestWAVRejectsShortFmtChunk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shortfmt.wav")

	// Valid RIFF shell whose fmt chunk is 8 bytes instead of 16.
	buf := []byte("RIFF\x14\x00\x00\x00WAVEfmt \x08\x00\x00\x00")
	buf = append(buf, make([]byte, 8)...)

	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Open(path); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("Open(short fmt) error = %v, want ErrUnsupportedFormat", err)
	}
}

func TestWAVRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage.wav")
	if err := os.WriteFile(path, []byte("this is not audio"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Open(path); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("Open(garbage) error = %v, want ErrUnsupportedFormat", err)
	}
}

func TestWAVSkipsUnknownChunks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "listinfo.wav")

	samples := sineSamples(8000, 1, 440, 800)
	dataSize := len(samples) * 2

	u16 := func(v uint16) []byte { b := make([]byte, 2); binary.LittleEndian.PutUint16(b, v); return b }
	u32 := func(v uint32) []byte { b := make([]byte, 4); binary.LittleEndian.PutUint32(b, v); return b }

	var buf []byte
	buf = append(buf, "RIFF"...)
	buf = append(buf, u32(uint32(36+12+dataSize))...)
	buf = append(buf, "WAVE"...)

	// A LIST chunk before fmt, as many encoders emit.
	buf = append(buf, "LIST"...)
	buf = append(buf, u32(4)...)
	buf = append(buf, "INFO"...)

	buf = append(buf, "fmt "...)
	buf = append(buf, u32(16)...)
	buf = append(buf, u16(1)...)
	buf = append(buf, u16(1)...)
	buf = append(buf, u32(8000)...)
	buf = append(buf, u32(16000)...)
	buf = append(buf, u16(2)...)
	buf = append(buf, u16(16)...)

	buf = append(buf, "data"...)
	buf = append(buf, u32(uint32(dataSize))...)
	for _, s := range samples {
		buf = append(buf, u16(uint16(s))...)
	}

	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatal(err)
	}

	src, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()

	if d := src.Duration(); d != 100*time.Millisecond {
		t.Errorf("Duration() = %v, want 100ms", d)
	}
}
