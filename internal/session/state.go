package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/voxflow-ai/voice-agent/internal/audio"
	"github.com/voxflow-ai/voice-agent/internal/vad"
)

// State holds everything belonging to one conversation session: the pending
// audio for the utterance being spoken, VAD state, the background noise
// tracker, language preference, the rolling conversation history, and the
// lifecycle of in-flight background work.
//
// The frame-ingestion path is the only writer of Buffer, Segmenter and
// Noise. Fields shared with background tasks (language, history, pending
// transcript, closed flag) are guarded by mu.
type State struct {
	ID string

	Buffer    *audio.FrameBuffer
	Segmenter *vad.Segmenter
	Noise     *vad.NoiseTracker

	mu                sync.Mutex
	language          string // "zh", "en", or "" for auto-detect
	historyText       string
	pendingTranscript string
	closed            bool

	// ctx is cancelled at teardown so in-flight transcription and
	// generation stop promptly; wg tracks every background task.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewState creates a session in its initial listening state.
func NewState(id string, segmenter *vad.Segmenter, noise *vad.NoiseTracker) *State {
	ctx, cancel := context.WithCancel(context.Background())
	return &State{
		ID:        id,
		Buffer:    audio.NewFrameBuffer(),
		Segmenter: segmenter,
		Noise:     noise,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Go runs fn as a tracked background task bound to the session lifetime.
// The task's context is cancelled when the session closes. On a closed
// session the task is not started.
func (s *State) Go(fn func(ctx context.Context)) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()
	go func() {
		defer s.wg.Done()
		fn(s.ctx)
	}()
}

// Close marks the session closed, cancels all in-flight background work and
// drops any partially captured utterance. It does not wait for tasks to
// finish; Wait does.
func (s *State) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cancel()
	s.Buffer.Clear()
}

// Wait blocks until all background tasks spawned via Go have returned.
func (s *State) Wait() {
	s.wg.Wait()
}

// Closed reports whether the session's connection has terminated.
func (s *State) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Language returns the session's language preference ("" = auto-detect).
func (s *State) Language() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.language
}

// SetLanguage updates the session's language preference.
func (s *State) SetLanguage(language string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.language = language
}

// History returns the rolling conversation history text.
func (s *State) History() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.historyText
}

// SetPendingTranscript stores the user transcript for the current turn.
func (s *State) SetPendingTranscript(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingTranscript = text
}

// PendingTranscript returns the user transcript for the current turn, or ""
// if transcription has not completed yet.
func (s *State) PendingTranscript() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pendingTranscript
}

// AppendTurn appends exactly one "User/Assistant" exchange to the rolling
// history and clears the pending transcript so a later turn cannot reuse a
// stale value.
func (s *State) AppendTurn(userText, assistantText string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	turn := fmt.Sprintf("User: %s\nAssistant: %s", userText, assistantText)
	if s.historyText != "" {
		s.historyText += "\n" + turn
	} else {
		s.historyText = turn
	}

	s.pendingTranscript = ""
}
