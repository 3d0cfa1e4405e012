package capture

import (
	"fmt"
	"path/filepath"
	"sync"

	"murmur/wavio"
)

// FakeOpener produces sources that emit canned artifacts, or fail, per
// role. Used to exercise session pipelines without audio hardware.
type FakeOpener struct {
	SampleRate int
	// Samples per role; a role absent from the map fails to open.
	Samples map[Role][]int16
	// StopErr makes Stop fail for the given roles.
	StopErr map[Role]error

	mu     sync.Mutex
	opened []Role
}

func (f *FakeOpener) Open(role Role, dir string) (Source, error) {
	samples, ok := f.Samples[role]
	if !ok {
		return nil, fmt.Errorf("fake capture: role %s unavailable", role)
	}
	f.mu.Lock()
	f.opened = append(f.opened, role)
	f.mu.Unlock()

	rate := f.SampleRate
	if rate == 0 {
		rate = 16000
	}
	return &fakeSource{
		role:    role,
		path:    filepath.Join(dir, role.ArtifactName()),
		samples: samples,
		rate:    rate,
		stopErr: f.StopErr[role],
	}, nil
}

// Opened reports the roles opened so far.
func (f *FakeOpener) Opened() []Role {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Role(nil), f.opened...)
}

type fakeSource struct {
	role    Role
	path    string
	samples []int16
	rate    int
	stopErr error

	mu      sync.Mutex
	aborted bool
}

func (s *fakeSource) Role() Role { return s.role }

func (s *fakeSource) Stop() (string, error) {
	if s.stopErr != nil {
		return "", s.stopErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.aborted {
		return "", fmt.Errorf("fake capture: source aborted")
	}
	if err := wavio.WriteFile(s.path, s.samples, s.rate); err != nil {
		return "", err
	}
	return s.path, nil
}

func (s *fakeSource) Abort() {
	s.mu.Lock()
	s.aborted = true
	s.mu.Unlock()
}
