// Package server exposes the daemon's control protocol on a local unix
// socket: one text command per line, one response line back.
package server

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"murmur/history"
	"murmur/session"
)

// Commands understood by the daemon.
const (
	cmdStart   = "start"
	cmdStop    = "stop"
	cmdStatus  = "status"
	cmdCancel  = "cancel"
	cmdPing    = "ping"
	cmdQuit    = "quit"
	cmdHistory = "history"
)

// dispatch executes one command line and returns the response line.
// quitRequested is true when the daemon should shut down after the
// response has been written.
func dispatch(mgr *session.Manager, hist *history.Store, line string) (resp string, quitRequested bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "error BadRequest: empty command", false
	}

	switch fields[0] {
	case cmdPing:
		return "ok", false

	case cmdStart:
		if len(fields) != 2 {
			return "error BadRequest: usage: start <dictate|screenshot|meeting>", false
		}
		kind, err := session.ParseKind(fields[1])
		if err != nil {
			return "error BadRequest: " + err.Error(), false
		}
		s, started, err := mgr.Toggle(kind)
		if err != nil {
			if errors.Is(err, session.ErrBusy) {
				return "error SessionBusy: " + err.Error(), false
			}
			return "error CaptureOpenError: " + err.Error(), false
		}
		if started {
			return fmt.Sprintf("ok recording id=%s", s.ID), false
		}
		return fmt.Sprintf("ok stopping id=%s", s.ID), false

	case cmdStop:
		s, err := mgr.Stop()
		if err != nil {
			if errors.Is(err, session.ErrBusy) {
				return "error SessionBusy: " + err.Error(), false
			}
			return "error NoActiveSession: " + err.Error(), false
		}
		return fmt.Sprintf("ok stopping id=%s", s.ID), false

	case cmdCancel:
		s, err := mgr.Cancel()
		if err != nil {
			return "error NoActiveSession: " + err.Error(), false
		}
		return fmt.Sprintf("ok cancelled id=%s", s.ID), false

	case cmdStatus:
		return "ok " + mgr.Status(), false

	case cmdHistory:
		n := 5
		if len(fields) == 2 {
			parsed, err := strconv.Atoi(fields[1])
			if err != nil || parsed <= 0 {
				return "error BadRequest: usage: history [count]", false
			}
			n = parsed
		}
		return historyResponse(hist, n), false

	case cmdQuit:
		return "ok", true
	}

	return fmt.Sprintf("error BadRequest: unknown command %q", fields[0]), false
}

func historyResponse(hist *history.Store, n int) string {
	if hist == nil {
		return "error NoHistory: history is disabled"
	}
	entries, err := hist.Recent(n)
	if err != nil {
		return "error NoHistory: " + err.Error()
	}
	if len(entries) == 0 {
		return "ok empty"
	}
	parts := make([]string, 0, len(entries))
	for _, e := range entries {
		part := fmt.Sprintf("%s %s %s %s",
			e.StartedAt.Local().Format("2006-01-02 15:04"), e.Kind, e.State,
			e.Duration.Round(time.Second))
		if e.Error != "" {
			part += " (" + e.Error + ")"
		}
		parts = append(parts, part)
	}
	return "ok " + strings.Join(parts, " | ")
}
