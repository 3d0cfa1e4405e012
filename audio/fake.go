package audio

import (
	"sync"
	"sync/atomic"
)

const fakeFrameSize = 1024

// FakeContext yields capture devices that replay a fixed PCM buffer. Used by
// tests to drive the capture pipeline without real hardware.
type FakeContext struct {
	pcm []byte
}

func NewFakeContext(pcm []byte) *FakeContext {
	return &FakeContext{pcm: pcm}
}

func (f *FakeContext) Devices() ([]DeviceInfo, error) { return nil, nil }
func (f *FakeContext) Close()                         {}

func (f *FakeContext) NewCapture(_ *DeviceInfo, _ CaptureConfig) (CaptureDevice, error) {
	return &FakeCapture{pcm: f.pcm}, nil
}

type FakeCapture struct {
	pcm      []byte
	callback atomic.Pointer[DataCallback]

	mu      sync.Mutex
	started bool
}

// Start replays the whole buffer through the callback in fixed-size chunks.
func (f *FakeCapture) Start() error {
	f.mu.Lock()
	f.started = true
	f.mu.Unlock()

	cb := f.callback.Load()
	if cb == nil {
		return nil
	}
	const chunkBytes = fakeFrameSize * 2 // 16-bit mono
	for pos := 0; pos < len(f.pcm); {
		end := min(pos+chunkBytes, len(f.pcm))
		chunk := make([]byte, end-pos)
		copy(chunk, f.pcm[pos:end])
		(*cb)(chunk, uint32(len(chunk)/2))
		pos = end
	}
	return nil
}

func (f *FakeCapture) Stop() {
	f.mu.Lock()
	f.started = false
	f.mu.Unlock()
}

func (f *FakeCapture) Close() {}

func (f *FakeCapture) SetCallback(cb DataCallback) {
	f.callback.Store(&cb)
}

func (f *FakeCapture) ClearCallback() {
	f.callback.Store(nil)
}

func (f *FakeCapture) DeviceName() string { return "fake" }
