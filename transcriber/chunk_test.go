package transcriber

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"murmur/wavio"
)

func longWAV(t *testing.T, seconds int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "long.wav")
	if err := wavio.WriteFile(path, make([]int16, seconds*16000), 16000); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestChunkedShortArtifactSingleCall(t *testing.T) {
	path := longWAV(t, 8)
	fake := NewFake([]Segment{{Start: 1, End: 2, Text: "short"}}, nil)

	segs, err := ChunkedTranscribe(context.Background(), fake, path, ChunkConfig{ChunkS: 10, OverlapS: 2})
	if err != nil {
		t.Fatalf("ChunkedTranscribe: %v", err)
	}
	if len(fake.Calls()) != 1 {
		t.Errorf("calls = %d, want 1", len(fake.Calls()))
	}
	if fake.Calls()[0] != path {
		t.Errorf("short artifact should be submitted whole, got %s", fake.Calls()[0])
	}
	if len(segs) != 1 || segs[0].Start != 1 {
		t.Errorf("segs = %+v", segs)
	}
}

func TestChunkedSplitsAndOffsets(t *testing.T) {
	path := longWAV(t, 25) // chunk 10s + overlap 2s -> 3 chunks

	fake := &Fake{}
	fake.Fn = func(chunkPath string) ([]Segment, error) {
		n := len(fake.Calls())
		switch n {
		case 1: // first chunk: 0..10s
			return []Segment{{Start: 0.5, End: 1.0, Text: "one"}}, nil
		case 2: // second chunk covers 8..20s, overlap window is 0..2s
			return []Segment{
				{Start: 1.0, End: 1.5, Text: "duplicate from overlap"},
				{Start: 3.0, End: 4.0, Text: "two"},
			}, nil
		default: // third chunk covers 18..25s
			return []Segment{{Start: 2.5, End: 3.0, Text: "three"}}, nil
		}
	}

	segs, err := ChunkedTranscribe(context.Background(), fake, path, ChunkConfig{ChunkS: 10, OverlapS: 2})
	if err != nil {
		t.Fatalf("ChunkedTranscribe: %v", err)
	}
	if got := len(fake.Calls()); got != 3 {
		t.Fatalf("calls = %d, want 3", got)
	}
	if len(segs) != 3 {
		t.Fatalf("segments = %d, want 3 (overlap duplicate dropped): %+v", len(segs), segs)
	}
	if segs[0].Start != 0.5 || segs[0].Text != "one" {
		t.Errorf("seg 0 = %+v", segs[0])
	}
	// Second chunk starts at 8s in absolute time: 8 + 3 = 11.
	if segs[1].Start != 11.0 || segs[1].Text != "two" {
		t.Errorf("seg 1 = %+v", segs[1])
	}
	// Third chunk starts at 18s: 18 + 2.5 = 20.5.
	if segs[2].Start != 20.5 || segs[2].Text != "three" {
		t.Errorf("seg 2 = %+v", segs[2])
	}
}

func TestChunkedChunkFailureAborts(t *testing.T) {
	path := longWAV(t, 25)
	boom := errors.New("engine down")

	fake := &Fake{}
	fake.Fn = func(string) ([]Segment, error) {
		if len(fake.Calls()) == 2 {
			return nil, boom
		}
		return []Segment{{Text: "ok"}}, nil
	}

	if _, err := ChunkedTranscribe(context.Background(), fake, path, ChunkConfig{ChunkS: 10, OverlapS: 2}); !errors.Is(err, boom) {
		t.Errorf("err = %v, want wrapped %v", err, boom)
	}
}

func TestChunkedCancelled(t *testing.T) {
	path := longWAV(t, 25)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fake := NewFake(nil, nil)
	if _, err := ChunkedTranscribe(ctx, fake, path, ChunkConfig{ChunkS: 10, OverlapS: 2}); err == nil {
		t.Error("expected cancellation error")
	}
}

// sampleFake transcribes in-memory PCM and refuses file submission.
type sampleFake struct {
	calls [][]int16
}

func (f *sampleFake) Name() string { return "samplefake" }

func (f *sampleFake) Transcribe(ctx context.Context, wavPath string) ([]Segment, error) {
	return nil, errors.New("file submission should not be used")
}

func (f *sampleFake) TranscribeSamples(ctx context.Context, samples []int16, rate int) ([]Segment, error) {
	f.calls = append(f.calls, samples)
	return []Segment{{Start: 2.5, End: 3, Text: "pcm"}}, nil
}

func TestChunkedSubmitsSamplesDirectly(t *testing.T) {
	path := longWAV(t, 25) // chunk 10s + overlap 2s -> 3 chunks
	fake := &sampleFake{}

	segs, err := ChunkedTranscribe(context.Background(), fake, path, ChunkConfig{ChunkS: 10, OverlapS: 2})
	if err != nil {
		t.Fatalf("ChunkedTranscribe: %v", err)
	}
	if len(fake.calls) != 3 {
		t.Fatalf("calls = %d, want 3", len(fake.calls))
	}
	if len(fake.calls[0]) != 10*16000 || len(fake.calls[1]) != 12*16000 {
		t.Errorf("chunk sizes = %d, %d", len(fake.calls[0]), len(fake.calls[1]))
	}
	// Overlap-window segments of later chunks are dropped: 2.5 > 2 keeps all.
	if len(segs) != 3 || segs[1].Start != 10.5 {
		t.Errorf("segs = %+v", segs)
	}
}

func TestChunkedShortArtifactSubmitsSamplesWhole(t *testing.T) {
	path := longWAV(t, 8)
	fake := &sampleFake{}

	if _, err := ChunkedTranscribe(context.Background(), fake, path, ChunkConfig{ChunkS: 10, OverlapS: 2}); err != nil {
		t.Fatalf("ChunkedTranscribe: %v", err)
	}
	if len(fake.calls) != 1 || len(fake.calls[0]) != 8*16000 {
		t.Fatalf("calls = %d", len(fake.calls))
	}
}
