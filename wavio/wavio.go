// Package wavio reads and writes the mono 16-bit WAV artifacts produced by
// capture sources.
package wavio

import (
	"fmt"
	"os"

	gaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Writer streams PCM into a WAV file. Close finalizes the header and fsyncs
// so the artifact survives a crash.
type Writer struct {
	f          *os.File
	enc        *wav.Encoder
	sampleRate int
	frames     uint64
}

func NewWriter(path string, sampleRate int) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create wav %s: %w", path, err)
	}
	enc := wav.NewEncoder(f, sampleRate, 16, 1, 1)
	return &Writer{f: f, enc: enc, sampleRate: sampleRate}, nil
}

// AppendPCM writes raw little-endian 16-bit mono samples.
func (w *Writer) AppendPCM(data []byte) error {
	n := len(data) / 2
	if n == 0 {
		return nil
	}
	ints := make([]int, n)
	for i := 0; i < n; i++ {
		ints[i] = int(int16(uint16(data[i*2]) | uint16(data[i*2+1])<<8))
	}
	buf := &gaudio.IntBuffer{
		Format:         &gaudio.Format{NumChannels: 1, SampleRate: w.sampleRate},
		Data:           ints,
		SourceBitDepth: 16,
	}
	if err := w.enc.Write(buf); err != nil {
		return fmt.Errorf("write wav frames: %w", err)
	}
	w.frames += uint64(n)
	return nil
}

// Frames returns the number of samples written so far.
func (w *Writer) Frames() uint64 { return w.frames }

func (w *Writer) Close() error {
	if err := w.enc.Close(); err != nil {
		w.f.Close()
		return fmt.Errorf("finalize wav: %w", err)
	}
	if err := w.f.Sync(); err != nil {
		w.f.Close()
		return fmt.Errorf("sync wav: %w", err)
	}
	return w.f.Close()
}

// ReadFile decodes a WAV file into mono int16 samples.
func ReadFile(path string) (samples []int16, sampleRate int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open wav %s: %w", path, err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("decode wav %s: %w", path, err)
	}
	if buf.Format == nil || buf.Format.NumChannels == 0 {
		return nil, 0, fmt.Errorf("decode wav %s: missing format", path)
	}

	rate := buf.Format.SampleRate
	ch := buf.Format.NumChannels
	n := len(buf.Data) / ch
	samples = make([]int16, n)
	for i := 0; i < n; i++ {
		// Downmix interleaved channels by averaging.
		sum := 0
		for c := 0; c < ch; c++ {
			sum += buf.Data[i*ch+c]
		}
		samples[i] = clamp16(sum / ch)
	}
	return samples, rate, nil
}

// WriteFile writes mono int16 samples as a WAV file, fsynced on close.
func WriteFile(path string, samples []int16, sampleRate int) error {
	w, err := NewWriter(path, sampleRate)
	if err != nil {
		return err
	}
	pcm := make([]byte, len(samples)*2)
	for i, s := range samples {
		pcm[i*2] = byte(uint16(s))
		pcm[i*2+1] = byte(uint16(s) >> 8)
	}
	if err := w.AppendPCM(pcm); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

// Mix sums two sample streams with clipping. The result has the length of
// the longer input.
func Mix(a, b []int16) []int16 {
	n := max(len(a), len(b))
	out := make([]int16, n)
	for i := 0; i < n; i++ {
		var sum int
		if i < len(a) {
			sum += int(a[i])
		}
		if i < len(b) {
			sum += int(b[i])
		}
		out[i] = clamp16(sum)
	}
	return out
}

// Duration returns the playback length in seconds.
func Duration(samples []int16, sampleRate int) float64 {
	if sampleRate <= 0 {
		return 0
	}
	return float64(len(samples)) / float64(sampleRate)
}

func clamp16(v int) int16 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}
