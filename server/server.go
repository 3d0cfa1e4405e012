package server

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"

	"murmur/history"
	"murmur/log"
	"murmur/session"
)

// DefaultSocketPath is where the daemon listens unless overridden.
func DefaultSocketPath() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "murmur.sock")
	}
	return filepath.Join(os.TempDir(), fmt.Sprintf("murmur-%d.sock", os.Getuid()))
}

// Server accepts control connections and drives the session manager.
type Server struct {
	mgr  *session.Manager
	hist *history.Store
	ln   net.Listener
	path string

	quitOnce sync.Once
	onQuit   func()

	closeOnce sync.Once
	wg        sync.WaitGroup
}

// Listen binds the control socket. A stale socket left by a crashed daemon
// is removed; a socket with a live daemon behind it is a bind failure. The
// socket is restricted to the owning user.
func Listen(path string, mgr *session.Manager, hist *history.Store, onQuit func()) (*Server, error) {
	if _, err := os.Stat(path); err == nil {
		conn, err := net.Dial("unix", path)
		if err == nil {
			conn.Close()
			return nil, fmt.Errorf("another daemon is already listening on %s", path)
		}
		if err := os.Remove(path); err != nil {
			return nil, fmt.Errorf("remove stale socket: %w", err)
		}
		log.Infof("removed stale socket %s", path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("socket dir: %w", err)
	}
	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("bind control socket: %w", err)
	}
	if err := os.Chmod(path, 0o600); err != nil {
		ln.Close()
		os.Remove(path)
		return nil, fmt.Errorf("restrict socket: %w", err)
	}
	return &Server{mgr: mgr, hist: hist, ln: ln, path: path, onQuit: onQuit}, nil
}

// Serve accepts connections until Close. Always returns nil after a clean
// shutdown.
func (s *Server) Serve() error {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			log.Warnf("accept: %v", err)
			continue
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handle(conn)
		}()
	}
}

func (s *Server) handle(conn net.Conn) {
	defer conn.Close()
	scanner := bufio.NewScanner(conn)
	w := bufio.NewWriter(conn)
	for scanner.Scan() {
		resp, quit := dispatch(s.mgr, s.hist, scanner.Text())
		w.WriteString(resp)
		w.WriteByte('\n')
		if err := w.Flush(); err != nil {
			return
		}
		if quit {
			s.quitOnce.Do(func() {
				if s.onQuit != nil {
					go s.onQuit()
				}
			})
			return
		}
	}
}

// Close stops accepting, waits for in-flight handlers, and removes the
// socket file.
func (s *Server) Close() {
	s.closeOnce.Do(func() {
		s.ln.Close()
		s.wg.Wait()
		os.Remove(s.path)
	})
}

// Path returns the bound socket path.
func (s *Server) Path() string {
	return s.path
}
