// Package session owns the recording and processing lifecycle of one
// voice-triggered action, from opening capture sources through delivering
// the finished result.
package session

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"murmur/beep"
	"murmur/capture"
	"murmur/deliver"
	"murmur/history"
	"murmur/log"
	"murmur/merge"
	"murmur/notify"
	"murmur/postproc"
	"murmur/screenshot"
	"murmur/transcriber"
)

// Kind selects which sources a session opens and how its output is
// processed.
type Kind string

const (
	KindDictate    Kind = "dictate"
	KindScreenshot Kind = "screenshot"
	KindMeeting    Kind = "meeting"
)

func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindDictate:
		return KindDictate, nil
	case KindScreenshot:
		return KindScreenshot, nil
	case KindMeeting:
		return KindMeeting, nil
	}
	return "", fmt.Errorf("unknown session kind %q", s)
}

// State tracks a session through its pipeline.
type State string

const (
	StateStarting       State = "starting"
	StateRecording      State = "recording"
	StateStopping       State = "stopping"
	StateTranscribing   State = "transcribing"
	StateMerging        State = "merging"
	StatePostProcessing State = "postprocessing"
	StateDelivering     State = "delivering"
	StateDone           State = "done"
	StateDiscarded      State = "discarded"
	StateFailed         State = "failed"
	StateCancelled      State = "cancelled"
)

// Terminal reports whether the session has finished, one way or another.
func (s State) Terminal() bool {
	switch s {
	case StateDone, StateDiscarded, StateFailed, StateCancelled:
		return true
	}
	return false
}

// Recordings shorter than this are discarded as accidental toggles.
const minRecording = 500 * time.Millisecond

// TextDeliverer routes finished text to the operator. deliver.Text is the
// real one; tests capture the text instead.
type TextDeliverer interface {
	Deliver(text string) error
}

// Env bundles the collaborators a session needs. Tests substitute fakes.
type Env struct {
	Opener      capture.Opener
	Transcriber transcriber.Transcriber
	Processor   *postproc.Processor
	Screen      screenshot.Grabber
	Deliverer   TextDeliverer
	Notifier    *notify.Notifier
	History     *history.Store

	MeetingDir string
	Chunk      transcriber.ChunkConfig

	// CaptureMonitor adds the secondary source to dictate sessions.
	CaptureMonitor bool
	// Cues enables audible start/stop/error feedback.
	Cues bool
}

// Session is one recording+processing lifecycle.
type Session struct {
	ID        string
	Kind      Kind
	StartedAt time.Time

	env     Env
	workDir string

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	state     State
	err       error
	warnings  []string
	sources   []capture.Source
	stoppedAt time.Time
	output    string // delivered text or meeting directory

	done chan struct{}
}

func newSession(kind Kind, env Env) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		ID:        uuid.NewString(),
		Kind:      kind,
		StartedAt: time.Now(),
		env:       env,
		ctx:       ctx,
		cancel:    cancel,
		state:     StateStarting,
		done:      make(chan struct{}),
	}
}

func (s *Session) roles() []capture.Role {
	switch s.Kind {
	case KindMeeting:
		return []capture.Role{capture.RolePrimary, capture.RoleSecondary}
	case KindDictate:
		if s.env.CaptureMonitor {
			return []capture.Role{capture.RolePrimary, capture.RoleSecondary}
		}
	}
	return []capture.Role{capture.RolePrimary}
}

// start opens the kind's capture sources. On any open failure every source
// already opened is torn down and the session fails.
func (s *Session) start() error {
	dir, err := os.MkdirTemp("", "murmur-session-")
	if err != nil {
		s.fail(fmt.Errorf("session workdir: %w", err))
		return s.Err()
	}
	s.workDir = dir

	var opened []capture.Source
	for _, role := range s.roles() {
		src, err := s.env.Opener.Open(role, dir)
		if err != nil {
			for _, o := range opened {
				o.Abort()
			}
			s.fail(fmt.Errorf("open %s source: %w", role, err))
			return s.Err()
		}
		opened = append(opened, src)
	}

	s.mu.Lock()
	if s.state == StateCancelled {
		s.mu.Unlock()
		for _, o := range opened {
			o.Abort()
		}
		return nil
	}
	s.sources = opened
	s.state = StateRecording
	s.mu.Unlock()

	log.SessionEvent(s.ID, string(s.Kind), string(StateRecording))
	if s.env.Cues {
		beep.PlayStart()
	}
	return nil
}

// stop acknowledges the toggle and detaches the processing pipeline. The
// caller returns to the operator immediately; status() reflects progress.
func (s *Session) stop() error {
	s.mu.Lock()
	if s.state != StateRecording {
		st := s.state
		s.mu.Unlock()
		return fmt.Errorf("no recording in progress (state %s)", st)
	}
	s.state = StateStopping
	s.stoppedAt = time.Now()
	s.mu.Unlock()

	log.SessionEvent(s.ID, string(s.Kind), string(StateStopping))
	if s.env.Cues {
		beep.PlayEnd()
	}
	go s.run()
	return nil
}

// Cancel discards the session from any non-terminal state. Running sources
// are aborted; an in-flight pipeline notices at its next state transition.
func (s *Session) Cancel() {
	s.mu.Lock()
	if s.state.Terminal() {
		s.mu.Unlock()
		return
	}
	wasRecording := s.state == StateRecording || s.state == StateStarting
	sources := s.sources
	s.sources = nil
	s.state = StateCancelled
	s.mu.Unlock()

	s.cancel()
	for _, src := range sources {
		src.Abort()
	}
	log.SessionEvent(s.ID, string(s.Kind), string(StateCancelled))

	// A pipeline that already detached cleans up after itself; a session
	// cancelled while recording never started one.
	if wasRecording {
		s.cleanup()
		s.record()
		close(s.done)
	}
}

// advance moves to the next pipeline state unless the session was
// cancelled, which is checked at every transition boundary.
func (s *Session) advance(next State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateCancelled {
		return false
	}
	s.state = next
	log.SessionEvent(s.ID, string(s.Kind), string(next))
	return true
}

func (s *Session) fail(err error) {
	s.mu.Lock()
	if s.state == StateCancelled {
		s.mu.Unlock()
		return
	}
	s.state = StateFailed
	s.err = err
	s.mu.Unlock()

	log.Errorf("session %s failed: %v", s.ID, err)
	if s.env.Cues {
		beep.PlayError()
	}
	s.env.Notifier.Error("Murmur", err.Error())
}

func (s *Session) warn(msg string) {
	s.mu.Lock()
	s.warnings = append(s.warnings, msg)
	s.mu.Unlock()
	log.Warn(msg)
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Output returns the delivered text or the meeting directory.
func (s *Session) Output() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.output
}

func (s *Session) Warnings() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.warnings...)
}

// Done closes when the pipeline has fully settled.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) recordingDuration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stoppedAt.IsZero() {
		return time.Since(s.StartedAt)
	}
	return s.stoppedAt.Sub(s.StartedAt)
}

func (s *Session) cleanup() {
	if s.workDir != "" {
		os.RemoveAll(s.workDir)
	}
}

func (s *Session) record() {
	if s.env.History == nil {
		return
	}
	var errMsg string
	if err := s.Err(); err != nil {
		errMsg = err.Error()
	}
	e := history.Entry{
		ID:         s.ID,
		Kind:       string(s.Kind),
		State:      string(s.State()),
		StartedAt:  s.StartedAt,
		Duration:   s.recordingDuration(),
		OutputPath: s.Output(),
		Error:      errMsg,
	}
	if s.Kind != KindMeeting {
		e.OutputPath = ""
	}
	if err := s.env.History.Record(e); err != nil {
		log.Warnf("history not recorded: %v", err)
	}
}

// run is the detached pipeline: stop sources, transcribe, merge,
// post-process, deliver. It owns the session from Stopping onward.
func (s *Session) run() {
	defer close(s.done)
	defer s.record()
	defer s.cleanup()

	artifacts, ok := s.stopSources()
	if !ok {
		return
	}

	if s.Kind != KindMeeting && s.recordingDuration() < minRecording {
		s.mu.Lock()
		s.state = StateDiscarded
		s.mu.Unlock()
		log.SessionEvent(s.ID, string(s.Kind), string(StateDiscarded))
		if s.env.Cues {
			beep.PlayDiscard()
		}
		return
	}

	// Grab the screen now, while it still shows what the operator was
	// talking about.
	var image []byte
	if s.Kind == KindScreenshot && s.env.Screen != nil {
		img, err := s.env.Screen.Grab(s.ctx)
		if err != nil {
			s.warn(fmt.Sprintf("screenshot unavailable: %v", err))
		} else {
			image = img
		}
	}

	if !s.advance(StateTranscribing) {
		return
	}
	transcribeStart := time.Now()
	byRole, ok := s.transcribe(artifacts)
	if !ok {
		s.preserveAudio(artifacts)
		return
	}
	transcribeMs := float64(time.Since(transcribeStart).Milliseconds())

	if !s.advance(StateMerging) {
		return
	}
	lines := merge.Merge(byRole)
	if len(lines) == 0 {
		s.preserveAudio(artifacts)
		s.mu.Lock()
		s.state = StateDiscarded
		s.mu.Unlock()
		log.SessionEvent(s.ID, string(s.Kind), string(StateDiscarded))
		if s.env.Cues {
			beep.PlayDiscard()
		}
		return
	}

	if !s.advance(StatePostProcessing) {
		return
	}
	postprocStart := time.Now()
	text, summary := s.postProcess(lines, len(byRole) > 1, image)
	postprocMs := float64(time.Since(postprocStart).Milliseconds())

	if !s.advance(StateDelivering) {
		return
	}
	if !s.deliverResult(artifacts, text, summary) {
		return
	}

	s.mu.Lock()
	s.state = StateDone
	s.mu.Unlock()
	log.SessionEvent(s.ID, string(s.Kind), string(StateDone))
	log.PipelineMetrics(s.ID, string(s.Kind), s.recordingDuration().Seconds(),
		transcribeMs, postprocMs, float64(time.Since(s.StartedAt).Milliseconds()))
}

// stopSources finalizes every owned source. A source that fails to stop is
// a partial failure; the session continues if at least one artifact
// survived.
func (s *Session) stopSources() (map[capture.Role]string, bool) {
	s.mu.Lock()
	sources := s.sources
	s.sources = nil
	s.mu.Unlock()

	artifacts := make(map[capture.Role]string)
	for _, src := range sources {
		path, err := src.Stop()
		if err != nil {
			s.warn(fmt.Sprintf("%s source did not stop cleanly: %v", src.Role(), err))
			continue
		}
		artifacts[src.Role()] = path
	}
	if len(artifacts) == 0 {
		s.fail(fmt.Errorf("all capture sources failed"))
		return nil, false
	}
	return artifacts, true
}

// transcribe fans out one job per artifact and waits for all to settle.
// Meeting artifacts are chunked; per-source failures are absorbed as long
// as one source produces segments.
func (s *Session) transcribe(artifacts map[capture.Role]string) (map[capture.Role][]transcriber.Segment, bool) {
	var wg sync.WaitGroup
	var mu sync.Mutex
	byRole := make(map[capture.Role][]transcriber.Segment)
	var errs []error

	for role, path := range artifacts {
		wg.Add(1)
		go func(role capture.Role, path string) {
			defer wg.Done()
			var segs []transcriber.Segment
			var err error
			if s.Kind == KindMeeting {
				segs, err = transcriber.ChunkedTranscribe(s.ctx, s.env.Transcriber, path, s.env.Chunk)
			} else {
				segs, err = s.env.Transcriber.Transcribe(s.ctx, path)
			}
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", role, err))
				return
			}
			byRole[role] = segs
		}(role, path)
	}
	wg.Wait()

	if len(byRole) == 0 {
		if s.ctx.Err() != nil {
			return nil, false
		}
		s.fail(fmt.Errorf("transcription failed for all sources: %v", errs))
		return nil, false
	}
	for _, err := range errs {
		s.warn(fmt.Sprintf("transcription incomplete: %v", err))
	}
	return byRole, true
}

// postProcess turns merged lines into the deliverable text. Generation
// failures never discard the transcript; the raw text is the fallback.
func (s *Session) postProcess(lines []merge.Line, multiSource bool, image []byte) (text, summary string) {
	switch s.Kind {
	case KindDictate:
		if multiSource {
			raw := merge.Render(lines)
			out, err := s.env.Processor.CleanupConversation(s.ctx, raw)
			if err != nil {
				s.warn(fmt.Sprintf("cleanup unavailable, delivering raw transcript: %v", err))
				return raw, ""
			}
			return out, ""
		}
		raw := joinText(lines)
		out, err := s.env.Processor.Cleanup(s.ctx, raw)
		if err != nil {
			s.warn(fmt.Sprintf("cleanup unavailable, delivering raw text: %v", err))
			return raw, ""
		}
		return out, ""

	case KindScreenshot:
		command := joinText(lines)
		out, err := s.env.Processor.ScreenQuery(s.ctx, command, image)
		if err != nil {
			s.warn(fmt.Sprintf("screen query failed, delivering spoken command: %v", err))
			return command, ""
		}
		return out, ""

	case KindMeeting:
		transcript := merge.Render(lines)
		out, err := s.env.Processor.Summarize(s.ctx, transcript)
		if err != nil {
			s.warn(fmt.Sprintf("summarization failed, keeping raw transcript: %v", err))
			return transcript, ""
		}
		return transcript, out
	}
	return "", ""
}

// preserveAudio moves meeting recordings into the meeting record before
// the workdir is removed. An unreachable transcription engine must not
// cost an hour of captured audio.
func (s *Session) preserveAudio(artifacts map[capture.Role]string) {
	if s.Kind != KindMeeting || len(artifacts) == 0 || s.ctx.Err() != nil {
		return
	}
	dir, err := deliver.WriteMeeting(s.env.MeetingDir, deliver.Meeting{
		StartedAt:  s.StartedAt,
		Duration:   s.recordingDuration(),
		MicPath:    artifacts[capture.RolePrimary],
		SystemPath: artifacts[capture.RoleSecondary],
	})
	if err != nil {
		s.warn(fmt.Sprintf("meeting audio not preserved: %v", err))
		return
	}
	s.mu.Lock()
	s.output = dir
	s.mu.Unlock()
	s.env.Notifier.Info("Murmur", "Meeting audio saved to "+dir)
}

func (s *Session) deliverResult(artifacts map[capture.Role]string, text, summary string) bool {
	if s.Kind == KindMeeting {
		dir, err := deliver.WriteMeeting(s.env.MeetingDir, deliver.Meeting{
			StartedAt:  s.StartedAt,
			Duration:   s.recordingDuration(),
			MicPath:    artifacts[capture.RolePrimary],
			SystemPath: artifacts[capture.RoleSecondary],
			Transcript: text,
			Summary:    summary,
		})
		if err != nil {
			s.fail(fmt.Errorf("meeting record: %w", err))
			return false
		}
		s.mu.Lock()
		s.output = dir
		s.mu.Unlock()
		s.env.Notifier.Info("Murmur", "Meeting saved to "+dir)
		return true
	}

	if err := s.env.Deliverer.Deliver(text); err != nil {
		s.fail(fmt.Errorf("delivery: %w", err))
		return false
	}
	s.mu.Lock()
	s.output = text
	s.mu.Unlock()
	s.env.Notifier.Info("Murmur", notify.Preview(text))
	return true
}

func joinText(lines []merge.Line) string {
	parts := make([]string, 0, len(lines))
	for _, l := range lines {
		parts = append(parts, l.Text)
	}
	return strings.Join(parts, " ")
}
