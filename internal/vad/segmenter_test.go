package vad

import (
	"testing"
)

func testSegmenterConfig() SegmenterConfig {
	return SegmenterConfig{
		FrameDurationMs:    20,
		SpeechMultiplier:   1.5,
		MaxSilenceMs:       400,
		MinSpeechMs:        0,
		ActivationWindowMs: 250,
		CompletionWindowMs: 2000,
		MinActivationMs:    100,
		MinCompletionMs:    500,
	}
}

func TestSegmenter_SilentStreamNeverActivates(t *testing.T) {
	seg := NewSegmenter(testSegmenterConfig())

	// Constant low amplitude below 1.5x the noise estimate.
	for i := 0; i < 500; i++ {
		result := seg.Step(50, 20, 100)
		if result.SpeechStarted {
			t.Fatalf("Speech started on silent frame %d", i)
		}
		if result.UtteranceDone {
			t.Fatalf("Utterance completed on silent frame %d", i)
		}
	}
	if seg.InSpeech() {
		t.Error("Segmenter entered speech on a silent stream")
	}
}

func TestSegmenter_SpeechStartedExactlyOnce(t *testing.T) {
	seg := NewSegmenter(testSegmenterConfig())

	started := 0
	for i := 0; i < 20; i++ {
		result := seg.Step(1000, 20, 100)
		if result.SpeechStarted {
			started++
		}
	}
	if started != 1 {
		t.Errorf("Expected exactly one SpeechStarted, got %d", started)
	}
	if !seg.InSpeech() {
		t.Error("Expected segmenter to be in speech")
	}
}

func TestSegmenter_CompletesOnExactSilenceFrame(t *testing.T) {
	seg := NewSegmenter(testSegmenterConfig())

	// 100ms of loud speech. Noise estimate 100 => threshold 150.
	for i := 0; i < 5; i++ {
		if result := seg.Step(300, 20, 100); result.UtteranceDone {
			t.Fatalf("Utterance completed during speech at frame %d", i)
		}
	}

	// MaxSilenceMs=400 at 20ms frames: completion must fire on silence
	// frame 20 and on no earlier frame.
	for k := 1; k <= 20; k++ {
		result := seg.Step(0, 20, 100)
		if k < 20 && result.UtteranceDone {
			t.Fatalf("Utterance completed early on silence frame %d", k)
		}
		if k == 20 && !result.UtteranceDone {
			t.Fatal("Utterance did not complete on the crossing frame")
		}
	}

	// Completion resets all state.
	if seg.InSpeech() || seg.SpeechMs() != 0 || seg.SilenceMs() != 0 {
		t.Error("Segmenter state not reset after completion")
	}
}

func TestSegmenter_StepNeverIncrementsBothCounters(t *testing.T) {
	seg := NewSegmenter(testSegmenterConfig())

	amps := []float64{0, 300, 300, 0, 0, 300, 0, 1000, 0, 0}
	for i, amp := range amps {
		prevSpeech, prevSilence := seg.SpeechMs(), seg.SilenceMs()
		result := seg.Step(amp, 20, 100)
		if result.UtteranceDone {
			continue // both reset to zero atomically
		}
		speechGrew := seg.SpeechMs() > prevSpeech
		silenceGrew := seg.SilenceMs() > prevSilence
		if speechGrew && silenceGrew {
			t.Fatalf("Frame %d incremented both speech and silence", i)
		}
	}
}

func TestSegmenter_MinSpeechGuardsShortBursts(t *testing.T) {
	cfg := testSegmenterConfig()
	cfg.MinSpeechMs = 200
	seg := NewSegmenter(cfg)

	// A 60ms burst is below MinSpeechMs; trailing silence must not complete
	// an utterance.
	for i := 0; i < 3; i++ {
		seg.Step(300, 20, 100)
	}
	for k := 0; k < 40; k++ {
		if result := seg.Step(0, 20, 100); result.UtteranceDone {
			t.Fatalf("Short burst completed an utterance at silence frame %d", k)
		}
	}
}

func TestSegmenter_PausesDoNotEndUtterance(t *testing.T) {
	seg := NewSegmenter(testSegmenterConfig())

	// 400ms of speech loud enough to keep the completion window mean high.
	for i := 0; i < 20; i++ {
		seg.Step(2000, 20, 100)
	}

	// A 300ms pause: the long completion window mean stays above threshold,
	// so silence never accumulates to MaxSilenceMs.
	for k := 0; k < 15; k++ {
		if result := seg.Step(0, 20, 100); result.UtteranceDone {
			t.Fatalf("Brief pause ended the utterance at frame %d", k)
		}
	}
	if !seg.InSpeech() {
		t.Error("Segmenter dropped out of speech during a brief pause")
	}
}

func TestSegmenter_NoisyRoomScenario(t *testing.T) {
	cfg := testSegmenterConfig()
	cfg.MaxSilenceMs = 500
	seg := NewSegmenter(cfg)

	const noise = 400.0 // threshold 600

	started, completed := 0, 0
	step := func(amp float64, frames int) {
		for i := 0; i < frames; i++ {
			result := seg.Step(amp, 20, noise)
			if result.SpeechStarted {
				started++
			}
			if result.UtteranceDone {
				completed++
			}
		}
	}

	step(400, 5)  // 100ms ambient calibration
	step(700, 15) // 300ms speech just above threshold
	step(400, 35) // 700ms trailing ambient silence

	if started != 1 {
		t.Errorf("Expected exactly one speech start, got %d", started)
	}
	if completed != 1 {
		t.Errorf("Expected exactly one utterance completion, got %d", completed)
	}
}

func TestSegmenter_ZeroLengthFrameIsSilence(t *testing.T) {
	seg := NewSegmenter(testSegmenterConfig())

	result := seg.Step(0, 0, 100)
	if !result.Silence {
		t.Error("Zero-length frame not classified as silence")
	}
	if seg.InSpeech() {
		t.Error("Zero-length frame entered speech")
	}
}

func TestSegmenter_ResetClearsWindows(t *testing.T) {
	seg := NewSegmenter(testSegmenterConfig())

	for i := 0; i < 30; i++ {
		seg.Step(1000, 20, 100)
	}
	seg.Reset()

	if seg.activation.len() != 0 || seg.completion.len() != 0 {
		t.Error("Reset did not clear the sliding windows")
	}
	if seg.InSpeech() || seg.SpeechMs() != 0 || seg.SilenceMs() != 0 {
		t.Error("Reset did not clear counters")
	}
}
