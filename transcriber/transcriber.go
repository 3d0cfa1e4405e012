// Package transcriber submits audio artifacts to a speech-to-text engine
// and returns timestamped segments.
package transcriber

import "context"

// Segment is one timestamped unit of transcribed text. Offsets are seconds
// relative to the start of the submitted artifact.
type Segment struct {
	Start float64
	End   float64
	Text  string
}

type Transcriber interface {
	Name() string
	// Transcribe submits one WAV artifact and returns its segments in
	// temporal order.
	Transcribe(ctx context.Context, wavPath string) ([]Segment, error)
}

// SampleTranscriber accepts in-memory PCM directly. Chunked transcription
// prefers it over Transcribe to skip the intermediate chunk files.
type SampleTranscriber interface {
	TranscribeSamples(ctx context.Context, samples []int16, rate int) ([]Segment, error)
}
