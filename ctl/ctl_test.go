package ctl

import (
	"bufio"
	"net"
	"path/filepath"
	"strings"
	"testing"
)

// fakeDaemon answers every command with a fixed response line.
func fakeDaemon(t *testing.T, response string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "murmur.sock")
	ln, err := net.Listen("unix", path)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				defer c.Close()
				scanner := bufio.NewScanner(c)
				for scanner.Scan() {
					c.Write([]byte(response + "\n"))
				}
			}(conn)
		}
	}()
	return path
}

func TestSend(t *testing.T) {
	path := fakeDaemon(t, "ok recording id=abc")
	got, err := Send(path, "start dictate")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got != "ok recording id=abc" {
		t.Errorf("got %q", got)
	}
}

func TestSendDaemonDown(t *testing.T) {
	if _, err := Send(filepath.Join(t.TempDir(), "nope.sock"), "ping"); err == nil {
		t.Fatal("expected dial error")
	}
}

func TestRenderStates(t *testing.T) {
	cases := []struct {
		resp string
		want string // substring after styling is stripped by lipgloss in tests
	}{
		{"ok", "ok"},
		{"ok idle", "idle"},
		{"ok recording kind=dictate id=x elapsed=3s", "recording"},
		{"ok idle last=failed kind=meeting", "idle"},
		{"error SessionBusy: dictate session is recording", "SessionBusy"},
	}
	for _, c := range cases {
		got := Render(c.resp)
		if !strings.Contains(got, c.want) {
			t.Errorf("Render(%q) = %q, want substring %q", c.resp, got, c.want)
		}
	}
}
