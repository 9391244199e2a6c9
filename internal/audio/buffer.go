package audio

import (
	"sync"
)

// FrameBuffer accumulates inbound PCM frames for the utterance currently
// being spoken. The ingest path appends frame by frame; when the segmenter
// declares the utterance complete, Drain hands back the concatenated payload
// and immediately frees the buffer for the next utterance.
type FrameBuffer struct {
	mu     sync.Mutex
	frames [][]byte
	bytes  int
}

// NewFrameBuffer creates an empty frame buffer.
func NewFrameBuffer() *FrameBuffer {
	return &FrameBuffer{}
}

// Append adds one frame to the buffer. The frame is not copied; callers must
// not mutate it afterwards.
func (b *FrameBuffer) Append(frame []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.frames = append(b.frames, frame)
	b.bytes += len(frame)
}

// Drain returns the buffered frames concatenated into a single payload and
// clears the buffer. Returns nil if the buffer is empty.
func (b *FrameBuffer) Drain() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.frames) == 0 {
		return nil
	}

	payload := make([]byte, 0, b.bytes)
	for _, frame := range b.frames {
		payload = append(payload, frame...)
	}
	b.frames = b.frames[:0]
	b.bytes = 0
	return payload
}

// Len returns the number of buffered frames.
func (b *FrameBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.frames)
}

// Bytes returns the total byte length of buffered frames.
func (b *FrameBuffer) Bytes() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bytes
}

// Clear drops any buffered frames.
func (b *FrameBuffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.frames = b.frames[:0]
	b.bytes = 0
}
