package capture

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"
)

const monitorStopTimeout = 5 * time.Second

// monitorSource records system audio through a parecord subprocess
// (ffmpeg when parecord is missing). The process lives independently and is
// signalled to finish on stop so the WAV header is flushed.
type monitorSource struct {
	cmd     *exec.Cmd
	path    string
	waitErr chan error
}

func openMonitor(sourceName string, sampleRate int, dir string) (Source, error) {
	path := filepath.Join(dir, RoleSecondary.ArtifactName())

	cmd, err := monitorCommand(sourceName, sampleRate, path)
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start monitor capture: %w", err)
	}

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
		close(waitErr)
	}()

	// Catch recorders that die immediately (bad source name, missing
	// daemon) instead of discovering it at stop time.
	select {
	case err := <-waitErr:
		os.Remove(path)
		if err != nil {
			return nil, fmt.Errorf("monitor capture exited: %w", err)
		}
		return nil, fmt.Errorf("monitor capture exited before recording")
	case <-time.After(250 * time.Millisecond):
	}

	return &monitorSource{cmd: cmd, path: path, waitErr: waitErr}, nil
}

func monitorCommand(sourceName string, sampleRate int, path string) (*exec.Cmd, error) {
	if _, err := exec.LookPath("parecord"); err == nil {
		return exec.Command("parecord",
			"--device="+sourceName,
			"--file-format=wav",
			"--rate="+strconv.Itoa(sampleRate),
			"--channels=1",
			"--format=s16le",
			path,
		), nil
	}
	if _, err := exec.LookPath("ffmpeg"); err == nil {
		return exec.Command("ffmpeg",
			"-nostdin", "-hide_banner", "-loglevel", "warning",
			"-f", "pulse", "-i", sourceName,
			"-ac", "1", "-ar", strconv.Itoa(sampleRate),
			"-y", path,
		), nil
	}
	return nil, fmt.Errorf("no monitor recorder found (need parecord or ffmpeg)")
}

func (m *monitorSource) Role() Role { return RoleSecondary }

func (m *monitorSource) Stop() (string, error) {
	if err := m.shutdown(); err != nil {
		os.Remove(m.path)
		return "", err
	}
	info, err := os.Stat(m.path)
	if err != nil {
		return "", fmt.Errorf("monitor artifact missing: %w", err)
	}
	if info.Size() < 100 {
		os.Remove(m.path)
		return "", fmt.Errorf("monitor artifact empty")
	}
	return m.path, nil
}

// shutdown interrupts the recorder, escalating to kill if it hangs.
func (m *monitorSource) shutdown() error {
	m.cmd.Process.Signal(os.Interrupt)
	select {
	case err := <-m.waitErr:
		return ignoreInterrupt(err)
	case <-time.After(monitorStopTimeout):
	}

	m.cmd.Process.Kill()
	select {
	case err := <-m.waitErr:
		return ignoreInterrupt(err)
	case <-time.After(monitorStopTimeout):
		return fmt.Errorf("monitor recorder did not exit")
	}
}

// parecord exits non-zero when interrupted even though the recording is
// intact; only the artifact tells us whether the stop worked.
func ignoreInterrupt(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}

func (m *monitorSource) Abort() {
	m.shutdown()
	os.Remove(m.path)
}
