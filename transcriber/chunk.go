package transcriber

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"murmur/wavio"
)

// ChunkConfig bounds the duration of audio submitted per transcription
// call. Overlap avoids cutting words at chunk boundaries; segments of a
// later chunk that start inside the overlap window are dropped because the
// earlier chunk already transcribed that audio.
type ChunkConfig struct {
	ChunkS   int
	OverlapS int
}

// ChunkedTranscribe splits a long artifact into bounded chunks and submits
// them sequentially, returning segments with offsets relative to the whole
// artifact.
func ChunkedTranscribe(ctx context.Context, t Transcriber, wavPath string, cfg ChunkConfig) ([]Segment, error) {
	if cfg.ChunkS <= 0 {
		return nil, fmt.Errorf("transcription: chunk length must be positive")
	}
	samples, rate, err := wavio.ReadFile(wavPath)
	if err != nil {
		return nil, fmt.Errorf("transcription: %w", err)
	}

	st, direct := t.(SampleTranscriber)

	chunkSamples := cfg.ChunkS * rate
	if len(samples) <= chunkSamples {
		if direct {
			return st.TranscribeSamples(ctx, samples, rate)
		}
		return t.Transcribe(ctx, wavPath)
	}

	overlapSamples := cfg.OverlapS * rate
	var tmpDir string
	if !direct {
		tmpDir, err = os.MkdirTemp("", "murmur-chunks-")
		if err != nil {
			return nil, fmt.Errorf("transcription: %w", err)
		}
		defer os.RemoveAll(tmpDir)
	}

	var all []Segment
	for i, start := 0, 0; start < len(samples); i, start = i+1, start+chunkSamples {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("transcription: %w", err)
		}

		// Later chunks begin one overlap window early.
		lead := 0
		if i > 0 {
			lead = overlapSamples
		}
		from := start - lead
		to := min(start+chunkSamples, len(samples))

		var segs []Segment
		if direct {
			segs, err = st.TranscribeSamples(ctx, samples[from:to], rate)
		} else {
			chunkPath := filepath.Join(tmpDir, fmt.Sprintf("chunk_%03d.wav", i))
			if err := wavio.WriteFile(chunkPath, samples[from:to], rate); err != nil {
				return nil, fmt.Errorf("transcription: %w", err)
			}
			segs, err = t.Transcribe(ctx, chunkPath)
		}
		if err != nil {
			return nil, fmt.Errorf("transcription: chunk %d: %w", i, err)
		}

		chunkStart := float64(from) / float64(rate)
		for _, s := range segs {
			// Deduplicate: the previous chunk owns the overlap window.
			if i > 0 && s.Start < float64(cfg.OverlapS) {
				continue
			}
			all = append(all, Segment{
				Start: chunkStart + s.Start,
				End:   chunkStart + s.End,
				Text:  s.Text,
			})
		}
	}
	return all, nil
}
