package session

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"murmur/capture"
	"murmur/postproc"
	"murmur/transcriber"
)

type fakeDeliver struct {
	mu    sync.Mutex
	err   error
	texts []string
}

func (f *fakeDeliver) Deliver(text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.texts = append(f.texts, text)
	return nil
}

func (f *fakeDeliver) delivered() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.texts...)
}

func micOnlyOpener() *capture.FakeOpener {
	return &capture.FakeOpener{
		Samples: map[capture.Role][]int16{
			capture.RolePrimary: make([]int16, 16000),
		},
	}
}

func dualOpener() *capture.FakeOpener {
	return &capture.FakeOpener{
		Samples: map[capture.Role][]int16{
			capture.RolePrimary:   make([]int16, 16000),
			capture.RoleSecondary: make([]int16, 16000),
		},
	}
}

func testEnv(t *testing.T, opener capture.Opener, trans transcriber.Transcriber, gen postproc.Generator) (Env, *fakeDeliver) {
	t.Helper()
	d := &fakeDeliver{}
	return Env{
		Opener:      opener,
		Transcriber: trans,
		Processor: &postproc.Processor{
			Gen:           gen,
			CleanupModel:  "m",
			VisionModel:   "v",
			SummaryModel:  "s",
			CleanupPrompt: "clean",
			SummaryPrompt: "summarize",
		},
		Deliverer:  d,
		MeetingDir: filepath.Join(t.TempDir(), "meetings"),
		Chunk:      transcriber.ChunkConfig{ChunkS: 300, OverlapS: 5},
	}, d
}

// backdate makes the recording long enough to survive the too-short check.
func backdate(s *Session) {
	s.StartedAt = s.StartedAt.Add(-3 * time.Second)
}

func waitDone(t *testing.T, s *Session) {
	t.Helper()
	select {
	case <-s.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("pipeline did not settle")
	}
}

func TestToggleStartsAndStops(t *testing.T) {
	segs := []transcriber.Segment{{Start: 0, End: 2, Text: "hello world"}}
	env, d := testEnv(t, micOnlyOpener(), transcriber.NewFake(segs, nil), &postproc.FakeGenerator{Response: "Hello, world."})
	m := NewManager(env)

	s, started, err := m.Toggle(KindDictate)
	if err != nil || !started {
		t.Fatalf("start: started=%v err=%v", started, err)
	}
	if s.State() != StateRecording {
		t.Fatalf("state = %s", s.State())
	}
	backdate(s)

	s2, started, err := m.Toggle(KindDictate)
	if err != nil || started {
		t.Fatalf("toggle stop: started=%v err=%v", started, err)
	}
	if s2.ID != s.ID {
		t.Error("toggle stopped a different session")
	}

	waitDone(t, s)
	if s.State() != StateDone {
		t.Fatalf("final state = %s, err = %v", s.State(), s.Err())
	}
	if got := d.delivered(); len(got) != 1 || got[0] != "Hello, world." {
		t.Errorf("delivered = %v", got)
	}
}

func TestStartWhileDifferentKindActive(t *testing.T) {
	env, _ := testEnv(t, micOnlyOpener(), transcriber.NewFake(nil, nil), &postproc.FakeGenerator{})
	m := NewManager(env)

	if _, _, err := m.Toggle(KindDictate); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, _, err := m.Toggle(KindMeeting); !errors.Is(err, ErrBusy) {
		t.Errorf("err = %v, want ErrBusy", err)
	}
	if _, err := m.Cancel(); err != nil {
		t.Fatalf("cancel: %v", err)
	}
}

func TestStartWhilePipelineRunning(t *testing.T) {
	release := make(chan struct{})
	trans := &transcriber.Fake{Fn: func(string) ([]transcriber.Segment, error) {
		<-release
		return []transcriber.Segment{{End: 1, Text: "x"}}, nil
	}}
	env, _ := testEnv(t, micOnlyOpener(), trans, &postproc.FakeGenerator{Response: "x"})
	m := NewManager(env)

	s, _, err := m.Toggle(KindDictate)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	backdate(s)
	if _, err := m.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}

	// Pipeline is blocked in transcription; a new start must be refused.
	if _, _, err := m.Toggle(KindDictate); !errors.Is(err, ErrBusy) {
		t.Errorf("err = %v, want ErrBusy", err)
	}
	// A second stop is just as busy: the session is past Recording.
	if _, err := m.Stop(); !errors.Is(err, ErrBusy) {
		t.Errorf("stop err = %v, want ErrBusy", err)
	}

	close(release)
	waitDone(t, s)

	// Once settled the manager is idle again.
	if _, started, err := m.Toggle(KindDictate); err != nil || !started {
		t.Fatalf("restart: started=%v err=%v", started, err)
	}
	m.Cancel()
}

func TestStopWhileIdle(t *testing.T) {
	env, _ := testEnv(t, micOnlyOpener(), transcriber.NewFake(nil, nil), &postproc.FakeGenerator{})
	m := NewManager(env)
	if _, err := m.Stop(); !errors.Is(err, ErrNoSession) {
		t.Errorf("err = %v, want ErrNoSession", err)
	}
	if _, err := m.Cancel(); !errors.Is(err, ErrNoSession) {
		t.Errorf("cancel err = %v, want ErrNoSession", err)
	}
}

func TestCancelDuringRecording(t *testing.T) {
	env, d := testEnv(t, dualOpener(), transcriber.NewFake(nil, nil), &postproc.FakeGenerator{})
	m := NewManager(env)

	s, _, err := m.Toggle(KindMeeting)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	cancelled, err := m.Cancel()
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	waitDone(t, cancelled)

	if s.State() != StateCancelled {
		t.Errorf("state = %s", s.State())
	}
	if got := m.Status(); !strings.HasPrefix(got, "idle") {
		t.Errorf("status = %q", got)
	}
	// No meeting record was persisted.
	if entries, _ := os.ReadDir(env.MeetingDir); len(entries) != 0 {
		t.Errorf("meeting dir not empty: %v", entries)
	}
	if len(d.delivered()) != 0 {
		t.Error("cancelled session delivered output")
	}
}

func TestOpenFailureReleasesOpenedSources(t *testing.T) {
	opener := micOnlyOpener() // secondary role missing, meeting needs both
	env, _ := testEnv(t, opener, transcriber.NewFake(nil, nil), &postproc.FakeGenerator{})
	m := NewManager(env)

	if _, _, err := m.Toggle(KindMeeting); err == nil {
		t.Fatal("expected open failure")
	}
	if got := m.Status(); !strings.Contains(got, "failed") {
		t.Errorf("status = %q", got)
	}
	// Manager is idle, a new session can start.
	if _, started, err := m.Toggle(KindDictate); err != nil || !started {
		t.Fatalf("restart: started=%v err=%v", started, err)
	}
	m.Cancel()
}

func TestTooShortRecordingDiscarded(t *testing.T) {
	gen := &postproc.FakeGenerator{Response: "x"}
	env, d := testEnv(t, micOnlyOpener(), transcriber.NewFake(nil, nil), gen)
	m := NewManager(env)

	s, _, err := m.Toggle(KindDictate)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	// Stop immediately: well under the minimum duration.
	if _, err := m.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	waitDone(t, s)

	if s.State() != StateDiscarded {
		t.Errorf("state = %s", s.State())
	}
	if len(d.delivered()) != 0 {
		t.Error("discarded session delivered output")
	}
	if len(gen.Calls()) != 0 {
		t.Error("discarded session reached post-processing")
	}
}

func TestStatusStrings(t *testing.T) {
	env, _ := testEnv(t, micOnlyOpener(), transcriber.NewFake(nil, nil), &postproc.FakeGenerator{})
	m := NewManager(env)

	if got := m.Status(); got != "idle" {
		t.Errorf("status = %q", got)
	}
	s, _, err := m.Toggle(KindDictate)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	got := m.Status()
	if !strings.HasPrefix(got, "recording kind=dictate id="+s.ID) {
		t.Errorf("status = %q", got)
	}
	m.Cancel()
	waitDone(t, s)
	if got := m.Status(); !strings.Contains(got, "last=cancelled") {
		t.Errorf("status = %q", got)
	}
}
