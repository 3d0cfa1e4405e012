package deliver

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"murmur/log"
	"murmur/wavio"
)

// Meeting holds everything a finished meeting session produced.
type Meeting struct {
	StartedAt  time.Time
	Duration   time.Duration
	MicPath    string // may be empty if the source failed
	SystemPath string
	Transcript string
	Summary    string
}

// WriteMeeting persists a meeting under root in a directory named after the
// start time. Audio files land and are synced before any markdown is
// written, so a crash mid-write never leaves minutes without the recording
// they describe. Returns the meeting directory.
func WriteMeeting(root string, m Meeting) (string, error) {
	dir := filepath.Join(root, m.StartedAt.Format("2006-01-02_15-04"))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("meeting dir: %w", err)
	}

	var mic, system string
	if m.MicPath != "" {
		mic = filepath.Join(dir, "mic.wav")
		if err := moveFile(m.MicPath, mic); err != nil {
			return "", fmt.Errorf("mic artifact: %w", err)
		}
	}
	if m.SystemPath != "" {
		system = filepath.Join(dir, "system.wav")
		if err := moveFile(m.SystemPath, system); err != nil {
			return "", fmt.Errorf("system artifact: %w", err)
		}
	}

	if mic != "" && system != "" {
		if err := writeCombined(dir, mic, system); err != nil {
			// The per-source recordings survive; the mix is a convenience.
			log.Warnf("combined.wav not written: %v", err)
		}
	}

	header := fmt.Sprintf("**Date:** %s\n**Duration:** %s\n\n---\n\n",
		m.StartedAt.Format("2006-01-02 15:04"), m.Duration.Round(time.Second))

	if m.Transcript != "" {
		doc := "# Meeting Transcription\n\n" + header + m.Transcript
		if err := writeSynced(filepath.Join(dir, "transcription.md"), doc); err != nil {
			return "", err
		}
	}
	if m.Summary != "" {
		doc := "# Meeting Minutes\n\n" + header + m.Summary
		if err := writeSynced(filepath.Join(dir, "summary.md"), doc); err != nil {
			return "", err
		}
	}
	return dir, nil
}

func writeCombined(dir, micPath, systemPath string) error {
	mic, rate, err := wavio.ReadFile(micPath)
	if err != nil {
		return err
	}
	system, _, err := wavio.ReadFile(systemPath)
	if err != nil {
		return err
	}
	return wavio.WriteFile(filepath.Join(dir, "combined.wav"), wavio.Mix(mic, system), rate)
}

func writeSynced(path, content string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if _, err := io.WriteString(f, content); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("sync %s: %w", filepath.Base(path), err)
	}
	return f.Close()
}

// moveFile renames src to dst, copying when they sit on different
// filesystems, and syncs the result.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return syncFile(dst)
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}

func syncFile(path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
