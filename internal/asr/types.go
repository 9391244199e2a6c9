package asr

import (
	"context"
)

// Transcriber converts one complete utterance of audio into text.
// Implementations block until the transcript is available or ctx is done.
type Transcriber interface {
	// Transcribe takes a WAV-containered audio payload and an optional
	// language hint ("zh", "en", or "" for auto-detect) and returns the
	// transcript text. An empty transcript with a nil error means the
	// model heard nothing usable.
	Transcribe(ctx context.Context, wavAudio []byte, language string) (string, error)

	// Close releases client resources.
	Close() error
}
