package genai

import (
	"context"
)

// EventType identifies one item in a generation stream.
type EventType string

const (
	// EventAudio carries a fragment of synthesized reply audio.
	EventAudio EventType = "audio"
	// EventText carries a fragment of the assistant's reply text.
	EventText EventType = "text"
	// EventDone marks the end of a successful stream.
	EventDone EventType = "done"
	// EventError reports an abnormal stream termination. It is always the
	// last event on the channel when present.
	EventError EventType = "error"
)

// Event is one typed item produced by a speech-to-speech generation stream.
type Event struct {
	Type  EventType
	Audio []byte // decoded PCM16 reply fragment, set for EventAudio
	Text  string // assistant text fragment, set for EventText
	Err   error  // set for EventError
}

// Request carries one user utterance to the generator.
type Request struct {
	// AudioWAV is the WAV-containered utterance audio.
	AudioWAV []byte
	// History is the rolling prior-turn conversation text, empty on the
	// first turn.
	History string
	// SystemPrompt steers the assistant's persona, optional.
	SystemPrompt string
}

// Generator produces a stream of reply events for one utterance. The
// returned channel is closed after EventDone or EventError, or when ctx is
// cancelled.
type Generator interface {
	Generate(ctx context.Context, req Request) (<-chan Event, error)

	// Close releases client resources.
	Close() error
}
