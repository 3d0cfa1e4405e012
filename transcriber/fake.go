package transcriber

import (
	"context"
	"sync"
)

// Fake returns canned segments or a fixed error. When Fn is set it decides
// the result per call instead.
type Fake struct {
	Segments []Segment
	Err      error
	Fn       func(wavPath string) ([]Segment, error)

	mu    sync.Mutex
	calls []string
}

func NewFake(segments []Segment, err error) *Fake {
	return &Fake{Segments: segments, Err: err}
}

func (f *Fake) Name() string { return "fake" }

func (f *Fake) Transcribe(ctx context.Context, wavPath string) ([]Segment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.calls = append(f.calls, wavPath)
	f.mu.Unlock()

	if f.Fn != nil {
		return f.Fn(wavPath)
	}
	if f.Err != nil {
		return nil, f.Err
	}
	return append([]Segment(nil), f.Segments...), nil
}

// Calls returns the artifact paths submitted so far.
func (f *Fake) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}
