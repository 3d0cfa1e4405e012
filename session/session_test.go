package session

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"murmur/capture"
	"murmur/history"
	"murmur/postproc"
	"murmur/screenshot"
	"murmur/transcriber"
)

func runToCompletion(t *testing.T, m *Manager, kind Kind) *Session {
	t.Helper()
	s, started, err := m.Toggle(kind)
	if err != nil || !started {
		t.Fatalf("start: started=%v err=%v", started, err)
	}
	backdate(s)
	if _, err := m.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	waitDone(t, s)
	return s
}

func TestMeetingRecordPersisted(t *testing.T) {
	trans := &transcriber.Fake{Fn: func(path string) ([]transcriber.Segment, error) {
		if strings.HasSuffix(path, "system.wav") {
			return []transcriber.Segment{{Start: 0.5, End: 2, Text: "other voice"}}, nil
		}
		return []transcriber.Segment{{Start: 0, End: 1, Text: "my voice"}}, nil
	}}
	env, _ := testEnv(t, dualOpener(), trans, &postproc.FakeGenerator{Response: "1. SUMMARY\nshort"})
	m := NewManager(env)

	s := runToCompletion(t, m, KindMeeting)
	if s.State() != StateDone {
		t.Fatalf("state = %s, err = %v", s.State(), s.Err())
	}

	dir := s.Output()
	for _, name := range []string{"mic.wav", "system.wav", "combined.wav", "transcription.md", "summary.md"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
	}
	doc, err := os.ReadFile(filepath.Join(dir, "transcription.md"))
	if err != nil {
		t.Fatalf("read transcription: %v", err)
	}
	if !strings.Contains(string(doc), "[Me] my voice") || !strings.Contains(string(doc), "[Other] other voice") {
		t.Errorf("transcription = %s", doc)
	}
}

func TestMeetingSurvivesSecondarySourceFailure(t *testing.T) {
	opener := dualOpener()
	opener.StopErr = map[capture.Role]error{
		capture.RoleSecondary: errors.New("recorder died"),
	}
	trans := transcriber.NewFake([]transcriber.Segment{{End: 1, Text: "solo"}}, nil)
	env, _ := testEnv(t, opener, trans, &postproc.FakeGenerator{Response: "minutes"})
	m := NewManager(env)

	s := runToCompletion(t, m, KindMeeting)
	if s.State() != StateDone {
		t.Fatalf("state = %s, err = %v", s.State(), s.Err())
	}
	if len(s.Warnings()) == 0 {
		t.Error("partial failure not surfaced as warning")
	}

	dir := s.Output()
	for _, name := range []string{"mic.wav", "transcription.md", "summary.md"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "system.wav")); !os.IsNotExist(err) {
		t.Error("system.wav present despite failed source")
	}
}

func TestAllSourcesFailingFailsSession(t *testing.T) {
	opener := micOnlyOpener()
	opener.StopErr = map[capture.Role]error{
		capture.RolePrimary: errors.New("mic gone"),
	}
	env, _ := testEnv(t, opener, transcriber.NewFake(nil, nil), &postproc.FakeGenerator{})
	m := NewManager(env)

	s := runToCompletion(t, m, KindDictate)
	if s.State() != StateFailed {
		t.Fatalf("state = %s", s.State())
	}
	if s.Err() == nil {
		t.Error("no error recorded")
	}
}

func TestTranscriptionPartialFailureAbsorbed(t *testing.T) {
	trans := &transcriber.Fake{Fn: func(path string) ([]transcriber.Segment, error) {
		if strings.HasSuffix(path, "system.wav") {
			return nil, errors.New("engine choked")
		}
		return []transcriber.Segment{{End: 1, Text: "mic only"}}, nil
	}}
	env, _ := testEnv(t, dualOpener(), trans, &postproc.FakeGenerator{Response: "minutes"})
	m := NewManager(env)

	s := runToCompletion(t, m, KindMeeting)
	if s.State() != StateDone {
		t.Fatalf("state = %s, err = %v", s.State(), s.Err())
	}
	doc, err := os.ReadFile(filepath.Join(s.Output(), "transcription.md"))
	if err != nil {
		t.Fatalf("read transcription: %v", err)
	}
	if !strings.Contains(string(doc), "mic only") {
		t.Error("surviving source missing from transcript")
	}
	if strings.Contains(string(doc), "[Other]") {
		t.Error("failed source contributed segments")
	}
}

func TestMeetingAudioPreservedOnTranscriptionFailure(t *testing.T) {
	trans := transcriber.NewFake(nil, errors.New("engine down"))
	env, _ := testEnv(t, dualOpener(), trans, &postproc.FakeGenerator{})
	m := NewManager(env)

	s := runToCompletion(t, m, KindMeeting)
	if s.State() != StateFailed {
		t.Fatalf("state = %s", s.State())
	}

	// The recordings outlive the failed pipeline.
	dir := s.Output()
	if dir == "" {
		t.Fatal("no meeting directory recorded")
	}
	for _, name := range []string{"mic.wav", "system.wav", "combined.wav"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
	}
	for _, name := range []string{"transcription.md", "summary.md"} {
		if _, err := os.Stat(filepath.Join(dir, name)); !os.IsNotExist(err) {
			t.Errorf("%s written without a transcript", name)
		}
	}
}

func TestMeetingAudioPreservedOnEmptyTranscript(t *testing.T) {
	trans := transcriber.NewFake(nil, nil) // recognizes nothing
	env, _ := testEnv(t, dualOpener(), trans, &postproc.FakeGenerator{})
	m := NewManager(env)

	s := runToCompletion(t, m, KindMeeting)
	if s.State() != StateDiscarded {
		t.Fatalf("state = %s, err = %v", s.State(), s.Err())
	}
	for _, name := range []string{"mic.wav", "system.wav"} {
		if _, err := os.Stat(filepath.Join(s.Output(), name)); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
	}
}

func TestTranscriptionTotalFailureFailsSession(t *testing.T) {
	trans := transcriber.NewFake(nil, errors.New("engine down"))
	env, _ := testEnv(t, micOnlyOpener(), trans, &postproc.FakeGenerator{})
	m := NewManager(env)

	s := runToCompletion(t, m, KindDictate)
	if s.State() != StateFailed {
		t.Fatalf("state = %s", s.State())
	}
}

func TestGenerationFailureFallsBackToRawText(t *testing.T) {
	segs := []transcriber.Segment{{End: 1, Text: "uh hello there"}}
	env, d := testEnv(t, micOnlyOpener(), transcriber.NewFake(segs, nil),
		&postproc.FakeGenerator{Err: errors.New("model timeout")})
	m := NewManager(env)

	s := runToCompletion(t, m, KindDictate)
	if s.State() != StateDone {
		t.Fatalf("state = %s, err = %v", s.State(), s.Err())
	}
	if got := d.delivered(); len(got) != 1 || got[0] != "uh hello there" {
		t.Errorf("delivered = %v", got)
	}
	if len(s.Warnings()) == 0 {
		t.Error("fallback not surfaced as warning")
	}
}

func TestMeetingSummaryFailureKeepsTranscript(t *testing.T) {
	segs := []transcriber.Segment{{End: 1, Text: "decisions were made"}}
	env, _ := testEnv(t, dualOpener(), transcriber.NewFake(segs, nil),
		&postproc.FakeGenerator{Err: errors.New("model timeout")})
	m := NewManager(env)

	s := runToCompletion(t, m, KindMeeting)
	if s.State() != StateDone {
		t.Fatalf("state = %s, err = %v", s.State(), s.Err())
	}
	if _, err := os.Stat(filepath.Join(s.Output(), "transcription.md")); err != nil {
		t.Errorf("transcription missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(s.Output(), "summary.md")); !os.IsNotExist(err) {
		t.Error("summary.md written despite generation failure")
	}
}

func TestScreenshotQuery(t *testing.T) {
	segs := []transcriber.Segment{{End: 1, Text: "what window is this"}}
	gen := &postproc.FakeGenerator{Response: "A terminal."}
	env, d := testEnv(t, micOnlyOpener(), transcriber.NewFake(segs, nil), gen)
	env.Screen = &screenshot.Fake{Data: []byte{0x89, 'P', 'N', 'G'}}
	m := NewManager(env)

	s := runToCompletion(t, m, KindScreenshot)
	if s.State() != StateDone {
		t.Fatalf("state = %s, err = %v", s.State(), s.Err())
	}
	if got := d.delivered(); len(got) != 1 || got[0] != "A terminal." {
		t.Errorf("delivered = %v", got)
	}
	call := gen.Calls()[0]
	if len(call.Images) != 1 {
		t.Error("screenshot not passed to the model")
	}
	if !strings.Contains(call.Prompt, "what window is this") {
		t.Error("spoken command missing from prompt")
	}
}

func TestScreenshotProceedsWithoutImage(t *testing.T) {
	segs := []transcriber.Segment{{End: 1, Text: "describe my screen"}}
	gen := &postproc.FakeGenerator{Response: "Cannot see it."}
	env, d := testEnv(t, micOnlyOpener(), transcriber.NewFake(segs, nil), gen)
	env.Screen = &screenshot.Fake{Err: errors.New("no display")}
	m := NewManager(env)

	s := runToCompletion(t, m, KindScreenshot)
	if s.State() != StateDone {
		t.Fatalf("state = %s, err = %v", s.State(), s.Err())
	}
	if got := d.delivered(); len(got) != 1 || got[0] != "Cannot see it." {
		t.Errorf("delivered = %v", got)
	}
	if len(gen.Calls()[0].Images) != 0 {
		t.Error("unexpected image in prompt")
	}
}

func TestDictateWithMonitorUsesConversationCleanup(t *testing.T) {
	trans := &transcriber.Fake{Fn: func(path string) ([]transcriber.Segment, error) {
		if strings.HasSuffix(path, "system.wav") {
			return []transcriber.Segment{{Start: 1, End: 2, Text: "their reply"}}, nil
		}
		return []transcriber.Segment{{Start: 0, End: 1, Text: "my question"}}, nil
	}}
	gen := &postproc.FakeGenerator{Response: "[Me] My question. [Other] Their reply."}
	env, d := testEnv(t, dualOpener(), trans, gen)
	env.CaptureMonitor = true
	m := NewManager(env)

	s := runToCompletion(t, m, KindDictate)
	if s.State() != StateDone {
		t.Fatalf("state = %s, err = %v", s.State(), s.Err())
	}
	if !strings.Contains(gen.Calls()[0].Prompt, "[Me] my question") {
		t.Error("labeled transcript missing from cleanup prompt")
	}
	if got := d.delivered(); len(got) != 1 || !strings.Contains(got[0], "[Other]") {
		t.Errorf("delivered = %v", got)
	}
}

func TestHistoryRecorded(t *testing.T) {
	store, err := history.Open(filepath.Join(t.TempDir(), "history.sqlite"))
	if err != nil {
		t.Fatalf("open history: %v", err)
	}
	defer store.Close()

	segs := []transcriber.Segment{{End: 1, Text: "note"}}
	env, _ := testEnv(t, micOnlyOpener(), transcriber.NewFake(segs, nil), &postproc.FakeGenerator{Response: "Note."})
	env.History = store
	m := NewManager(env)

	s := runToCompletion(t, m, KindDictate)
	if s.State() != StateDone {
		t.Fatalf("state = %s", s.State())
	}

	entries, err := store.Recent(5)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries = %d", len(entries))
	}
	e := entries[0]
	if e.ID != s.ID || e.Kind != "dictate" || e.State != "done" {
		t.Errorf("entry = %+v", e)
	}
	if e.OutputPath != "" {
		t.Error("dictation recorded an output path")
	}
}
