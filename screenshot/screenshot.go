// Package screenshot grabs the current screen as PNG bytes for vision
// queries. It shells out to whichever capture tool the desktop provides.
package screenshot

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"
)

// Grabber captures the screen. The exec-based implementation is replaced
// with a fake in tests.
type Grabber interface {
	Grab(ctx context.Context) ([]byte, error)
}

// tools in preference order. grim covers Wayland compositors,
// gnome-screenshot covers GNOME on both Wayland and X11.
var tools = []struct {
	name string
	args func(out string) []string
}{
	{"grim", func(out string) []string { return []string{out} }},
	{"gnome-screenshot", func(out string) []string { return []string{"-f", out} }},
}

// Tool captures via an external screenshot command.
type Tool struct {
	Timeout time.Duration
}

func NewTool() *Tool {
	return &Tool{Timeout: 10 * time.Second}
}

func (t *Tool) Grab(ctx context.Context) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, t.Timeout)
	defer cancel()

	out := filepath.Join(os.TempDir(), fmt.Sprintf("murmur-screen-%d.png", time.Now().UnixNano()))
	defer os.Remove(out)

	var lastErr error
	for _, tool := range tools {
		path, err := exec.LookPath(tool.name)
		if err != nil {
			continue
		}
		cmd := exec.CommandContext(ctx, path, tool.args(out)...)
		if err := cmd.Run(); err != nil {
			lastErr = fmt.Errorf("%s: %w", tool.name, err)
			continue
		}
		data, err := os.ReadFile(out)
		if err != nil {
			lastErr = fmt.Errorf("%s: read output: %w", tool.name, err)
			continue
		}
		if len(data) == 0 {
			lastErr = fmt.Errorf("%s: empty screenshot", tool.name)
			continue
		}
		return data, nil
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, fmt.Errorf("no screenshot tool found (tried grim, gnome-screenshot)")
}

// Fake returns canned bytes or an error.
type Fake struct {
	Data []byte
	Err  error
}

func (f *Fake) Grab(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return f.Data, f.Err
}
