// Package ctl is the client side of the control protocol: it dials the
// daemon socket, sends one command, and renders the response for the
// terminal. Keybinding daemons invoke it as `murmur ctl <command>`.
package ctl

import (
	"bufio"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var (
	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	dimStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	recStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	busyStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
)

// Send delivers one command line to the daemon and returns the raw
// response line.
func Send(socketPath, command string) (string, error) {
	conn, err := net.DialTimeout("unix", socketPath, 2*time.Second)
	if err != nil {
		return "", fmt.Errorf("daemon not reachable at %s: %w", socketPath, err)
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(10 * time.Second))
	if _, err := conn.Write([]byte(command + "\n")); err != nil {
		return "", fmt.Errorf("send command: %w", err)
	}
	scanner := bufio.NewScanner(conn)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", fmt.Errorf("read response: %w", err)
		}
		return "", fmt.Errorf("daemon closed the connection")
	}
	return scanner.Text(), nil
}

// Render turns a protocol response line into user-facing terminal output.
func Render(resp string) string {
	switch {
	case resp == "ok":
		return okStyle.Render("ok")

	case strings.HasPrefix(resp, "ok "):
		payload := strings.TrimPrefix(resp, "ok ")
		return renderPayload(payload)

	case strings.HasPrefix(resp, "error "):
		return errStyle.Render(strings.TrimPrefix(resp, "error "))
	}
	return resp
}

func renderPayload(payload string) string {
	state, rest, _ := strings.Cut(payload, " ")
	var styled string
	switch state {
	case "recording", "stopping":
		styled = recStyle.Render("● " + state)
	case "idle", "done", "cancelled", "discarded":
		styled = dimStyle.Render(state)
	case "transcribing", "merging", "postprocessing", "delivering", "starting":
		styled = busyStyle.Render("… " + state)
	case "failed":
		styled = errStyle.Render("✗ " + state)
	default:
		styled = okStyle.Render(state)
	}
	if rest == "" {
		return styled
	}
	return styled + " " + dimStyle.Render(rest)
}
