package postproc

import (
	"context"
	"sync"
)

// FakeGenerator returns a fixed response or error; Fn overrides per call.
type FakeGenerator struct {
	Response string
	Err      error
	Fn       func(req Request) (string, error)

	mu    sync.Mutex
	calls []Request
}

func (f *FakeGenerator) Generate(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()

	if f.Fn != nil {
		return f.Fn(req)
	}
	if f.Err != nil {
		return "", f.Err
	}
	return f.Response, nil
}

func (f *FakeGenerator) Calls() []Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Request(nil), f.calls...)
}
