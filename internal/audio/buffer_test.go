package audio

import (
	"bytes"
	"testing"
)

func TestFrameBuffer_AppendDrain(t *testing.T) {
	buf := NewFrameBuffer()

	f1 := pcmFrame(1, 160)
	f2 := pcmFrame(2, 160)
	buf.Append(f1)
	buf.Append(f2)

	if buf.Len() != 2 {
		t.Errorf("Expected 2 frames, got %d", buf.Len())
	}
	if buf.Bytes() != 640 {
		t.Errorf("Expected 640 bytes, got %d", buf.Bytes())
	}

	payload := buf.Drain()
	if len(payload) != 640 {
		t.Fatalf("Expected 640-byte payload, got %d", len(payload))
	}
	if !bytes.Equal(payload[:320], f1) || !bytes.Equal(payload[320:], f2) {
		t.Error("Drained payload is not frames in order")
	}

	if buf.Len() != 0 || buf.Bytes() != 0 {
		t.Error("Buffer not empty after Drain")
	}
}

func TestFrameBuffer_DrainEmpty(t *testing.T) {
	buf := NewFrameBuffer()
	if payload := buf.Drain(); payload != nil {
		t.Errorf("Expected nil from empty buffer, got %d bytes", len(payload))
	}
}

func TestFrameBuffer_Clear(t *testing.T) {
	buf := NewFrameBuffer()
	buf.Append(pcmFrame(1, 160))
	buf.Clear()
	if buf.Len() != 0 {
		t.Errorf("Expected empty buffer after Clear, got %d frames", buf.Len())
	}
}

func TestFrameBuffer_ReusableAfterDrain(t *testing.T) {
	buf := NewFrameBuffer()
	buf.Append(pcmFrame(1, 160))
	buf.Drain()

	next := pcmFrame(3, 160)
	buf.Append(next)
	payload := buf.Drain()
	if !bytes.Equal(payload, next) {
		t.Error("Buffer does not accumulate cleanly after Drain")
	}
}
