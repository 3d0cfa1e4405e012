package session

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrBusy means the command conflicts with a session that is already
// running, either recording or working through its pipeline.
var ErrBusy = errors.New("session busy")

// ErrNoSession means stop or cancel arrived with nothing active.
var ErrNoSession = errors.New("no active session")

// Manager holds the single current session. Every control command is
// serialized through its mutex so concurrent starts and stops always
// observe a consistent state.
type Manager struct {
	env Env

	mu      sync.Mutex
	current *Session
	last    *Session
}

func NewManager(env Env) *Manager {
	return &Manager{env: env}
}

// active returns the current non-terminal session, retiring it to last
// when its pipeline has finished. Caller holds the lock.
func (m *Manager) active() *Session {
	if m.current != nil && m.current.State().Terminal() {
		m.last = m.current
		m.current = nil
	}
	return m.current
}

// Toggle handles a start command: starts a session when idle, stops the
// current one when the same kind is recording, and rejects conflicting
// kinds. Returns the session acted on and whether it was started.
func (m *Manager) Toggle(kind Kind) (s *Session, started bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cur := m.active(); cur != nil {
		if cur.Kind == kind && cur.State() == StateRecording {
			if err := cur.stop(); err != nil {
				return nil, false, err
			}
			return cur, false, nil
		}
		return nil, false, fmt.Errorf("%w: %s session is %s", ErrBusy, cur.Kind, cur.State())
	}

	s = newSession(kind, m.env)
	if err := s.start(); err != nil {
		m.last = s
		return nil, false, err
	}
	m.current = s
	return s, true, nil
}

// Stop stops the current recording, whatever its kind. A session whose
// pipeline is already running cannot be stopped again.
func (m *Manager) Stop() (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur := m.active()
	if cur == nil {
		return nil, ErrNoSession
	}
	if st := cur.State(); st != StateRecording {
		return nil, fmt.Errorf("%w: %s session is %s", ErrBusy, cur.Kind, st)
	}
	if err := cur.stop(); err != nil {
		return nil, err
	}
	return cur, nil
}

// Cancel aborts the current session and discards its artifacts.
func (m *Manager) Cancel() (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur := m.active()
	if cur == nil {
		return nil, ErrNoSession
	}
	cur.Cancel()
	m.last = cur
	m.current = nil
	return cur, nil
}

// Shutdown cancels any active session. Used on daemon quit.
func (m *Manager) Shutdown() {
	if s, err := m.Cancel(); err == nil {
		select {
		case <-s.Done():
		case <-time.After(5 * time.Second):
		}
	}
}

// Status describes the manager for the status control command.
func (m *Manager) Status() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cur := m.active(); cur != nil {
		return fmt.Sprintf("%s kind=%s id=%s elapsed=%s",
			cur.State(), cur.Kind, cur.ID, time.Since(cur.StartedAt).Round(time.Second))
	}
	if m.last != nil {
		if err := m.last.Err(); err != nil {
			return fmt.Sprintf("idle last=%s kind=%s error=%q", m.last.State(), m.last.Kind, err.Error())
		}
		return fmt.Sprintf("idle last=%s kind=%s", m.last.State(), m.last.Kind)
	}
	return "idle"
}
