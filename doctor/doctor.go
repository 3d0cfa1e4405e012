// Package doctor checks the environment murmur depends on: audio devices,
// the transcription and language-model services, screenshot tooling, and
// the delivery path. Run via `murmur -doctor`.
package doctor

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"time"

	"murmur/audio"
	"murmur/capture"
	"murmur/config"
)

type check struct {
	name string
	run  func(cfg config.Config) (string, error)
}

var checks = []check{
	{"microphone devices", checkDevices},
	{"monitor source", checkMonitor},
	{"transcription service", checkWhisper},
	{"language model service", checkOllama},
	{"screenshot tool", checkScreenshotTool},
	{"paste keystrokes", checkPaste},
}

// Run executes all checks and returns an exit code: 0 when everything
// passed, 1 otherwise.
func Run(cfg config.Config) int {
	fmt.Println("murmur doctor")
	fmt.Println("=============")

	failed := 0
	for i, c := range checks {
		fmt.Printf("[%d/%d] %s: ", i+1, len(checks), c.name)
		detail, err := c.run(cfg)
		if err != nil {
			failed++
			fmt.Printf("FAIL: %v\n", err)
			continue
		}
		if detail != "" {
			fmt.Printf("PASS (%s)\n", detail)
		} else {
			fmt.Println("PASS")
		}
	}

	fmt.Println()
	if failed == 0 {
		fmt.Println("All checks passed.")
		return 0
	}
	fmt.Printf("%d check(s) failed.\n", failed)
	return 1
}

func checkDevices(cfg config.Config) (string, error) {
	ctx, err := audio.NewContext()
	if err != nil {
		return "", fmt.Errorf("audio stack unavailable: %w", err)
	}
	defer ctx.Close()
	devices, err := ctx.Devices()
	if err != nil {
		return "", err
	}
	if len(devices) == 0 {
		return "", fmt.Errorf("no capture devices found")
	}
	return fmt.Sprintf("%d device(s)", len(devices)), nil
}

func checkMonitor(cfg config.Config) (string, error) {
	if cfg.Meeting.MonitorSource != "" && cfg.Meeting.MonitorSource != "auto" {
		return cfg.Meeting.MonitorSource, nil
	}
	ctx, err := audio.NewContext()
	if err != nil {
		return "", fmt.Errorf("audio stack unavailable: %w", err)
	}
	defer ctx.Close()
	name, err := capture.DetectMonitorSource(ctx)
	if err != nil {
		return "", err
	}
	return name, nil
}

// checkWhisper probes the transcription endpoint. Any HTTP response means
// the service is up; a well-formed error beats a connection refused.
func checkWhisper(cfg config.Config) (string, error) {
	return probeHTTP(cfg.Whisper.URL)
}

func checkOllama(cfg config.Config) (string, error) {
	return probeHTTP(strings.TrimRight(cfg.Ollama.BaseURL, "/") + "/api/tags")
}

func probeHTTP(url string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return "", err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("not reachable: %w", err)
	}
	resp.Body.Close()
	return fmt.Sprintf("HTTP %d", resp.StatusCode), nil
}

func checkScreenshotTool(cfg config.Config) (string, error) {
	for _, tool := range []string{"grim", "gnome-screenshot"} {
		if _, err := exec.LookPath(tool); err == nil {
			return tool, nil
		}
	}
	return "", fmt.Errorf("neither grim nor gnome-screenshot on PATH")
}

func checkPaste(cfg config.Config) (string, error) {
	for _, path := range []string{"/dev/uinput", "/dev/input/uinput"} {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("uinput device not found, try: sudo modprobe uinput")
}
