package capture

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"murmur/audio"
	"murmur/wavio"
)

// micSource records the operator microphone through the audio context,
// streaming PCM straight into a WAV artifact.
type micSource struct {
	device audio.CaptureDevice
	writer *wavio.Writer
	path   string

	mu       sync.Mutex
	stopped  bool
	writeErr error
}

func openMic(ctx audio.Context, device *audio.DeviceInfo, sampleRate int, dir string) (Source, error) {
	path := filepath.Join(dir, RolePrimary.ArtifactName())
	writer, err := wavio.NewWriter(path, sampleRate)
	if err != nil {
		return nil, err
	}

	dev, err := ctx.NewCapture(device, audio.CaptureConfig{
		SampleRate: uint32(sampleRate),
		Channels:   1,
	})
	if err != nil {
		writer.Close()
		os.Remove(path)
		return nil, fmt.Errorf("open mic capture: %w", err)
	}

	m := &micSource{device: dev, writer: writer, path: path}
	dev.SetCallback(func(data []byte, _ uint32) {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.stopped || m.writeErr != nil {
			return
		}
		if err := m.writer.AppendPCM(data); err != nil {
			m.writeErr = err
		}
	})

	if err := dev.Start(); err != nil {
		dev.ClearCallback()
		dev.Close()
		writer.Close()
		os.Remove(path)
		return nil, fmt.Errorf("start mic capture: %w", err)
	}
	return m, nil
}

func (m *micSource) Role() Role { return RolePrimary }

func (m *micSource) Stop() (string, error) {
	m.device.Stop()
	m.device.ClearCallback()
	m.device.Close()

	m.mu.Lock()
	m.stopped = true
	writeErr := m.writeErr
	m.mu.Unlock()

	if err := m.writer.Close(); err != nil {
		return "", fmt.Errorf("finalize mic artifact: %w", err)
	}
	if writeErr != nil {
		return "", fmt.Errorf("mic capture write: %w", writeErr)
	}
	return m.path, nil
}

func (m *micSource) Abort() {
	m.device.Stop()
	m.device.ClearCallback()
	m.device.Close()

	m.mu.Lock()
	m.stopped = true
	m.mu.Unlock()

	m.writer.Close()
	os.Remove(m.path)
}
