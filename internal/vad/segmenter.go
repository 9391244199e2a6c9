package vad

// SegmenterConfig holds configuration for utterance segmentation
type SegmenterConfig struct {
	FrameDurationMs    float64 // Nominal frame duration, used when a frame carries no audio
	SpeechMultiplier   float64 // Speech threshold = noise estimate * multiplier
	MaxSilenceMs       float64 // Trailing silence that marks the end of an utterance
	MinSpeechMs        float64 // Minimum accumulated speech before completion can fire (0 = disabled)
	ActivationWindowMs int     // Short sliding window for detecting speech onset
	CompletionWindowMs int     // Long sliding window for detecting speech offset
	MinActivationMs    int     // Activation window warm-up before its mean is trusted
	MinCompletionMs    int     // Completion window warm-up before its mean is trusted
}

// DefaultSegmenterConfig returns the tuning used by the voice endpoint.
func DefaultSegmenterConfig() SegmenterConfig {
	return SegmenterConfig{
		FrameDurationMs:    20,
		SpeechMultiplier:   1.5,
		MaxSilenceMs:       600,
		MinSpeechMs:        0,
		ActivationWindowMs: 250,
		CompletionWindowMs: 2000,
		MinActivationMs:    100,
		MinCompletionMs:    500,
	}
}

// StepResult reports what one frame did to the segmenter state.
type StepResult struct {
	SpeechStarted bool // First speech frame of a new utterance
	UtteranceDone bool // Enough trailing silence after speech; state has reset
	Silence       bool // This frame was classified as silence
}

// Segmenter is a per-session state machine that classifies the live audio
// stream frame by frame and signals utterance completion after sufficient
// trailing silence.
//
// Two sliding windows drive the silence decision. While listening for onset
// a short activation window keeps the reaction fast while rejecting
// single-frame noise spikes; once in speech a long completion window smooths
// over brief pauses so natural hesitation does not end the utterance early.
type Segmenter struct {
	config SegmenterConfig

	silenceMs float64
	speechMs  float64
	inSpeech  bool

	activation amplitudeWindow
	completion amplitudeWindow
}

// NewSegmenter creates a segmenter in the listening state.
func NewSegmenter(config SegmenterConfig) *Segmenter {
	return &Segmenter{config: config}
}

// Step processes one frame given its mean amplitude, its actual duration in
// milliseconds (derived from byte length, never assumed) and the current
// background noise estimate.
func (s *Segmenter) Step(amplitude, frameMs, noiseEstimate float64) StepResult {
	if frameMs <= 0 {
		// Zero-length frame: amplitude 0 counts as silence for the nominal
		// frame duration worth of accounting.
		frameMs = s.config.FrameDurationMs
	}

	threshold := noiseEstimate * s.config.SpeechMultiplier
	silence := s.classifySilence(amplitude, frameMs, threshold)

	var result StepResult
	result.Silence = silence

	if silence {
		s.silenceMs += frameMs
	} else {
		s.silenceMs = 0
		s.speechMs += frameMs
		if !s.inSpeech {
			result.SpeechStarted = true
		}
		s.inSpeech = true
	}

	if s.inSpeech && s.speechMs >= s.config.MinSpeechMs && s.silenceMs >= s.config.MaxSilenceMs {
		s.Reset()
		result.UtteranceDone = true
	}

	return result
}

// classifySilence decides whether the current frame is silence, using the
// window appropriate for the current state.
func (s *Segmenter) classifySilence(amplitude, frameMs, threshold float64) bool {
	completionSize := windowCapacity(s.config.CompletionWindowMs, frameMs)

	if !s.inSpeech {
		activationSize := windowCapacity(s.config.ActivationWindowMs, frameMs)
		s.activation.push(amplitude, activationSize)
		// Pre-warm the completion window for the eventual in-speech phase.
		s.completion.push(amplitude, completionSize)

		minSize := windowCapacity(s.config.MinActivationMs, frameMs)
		if s.activation.len() < minSize {
			// Window not full enough yet - fall back to the instantaneous
			// frame amplitude.
			return amplitude < threshold
		}
		return s.activation.mean() < threshold
	}

	s.completion.push(amplitude, completionSize)

	minSize := windowCapacity(s.config.MinCompletionMs, frameMs)
	if s.completion.len() < minSize {
		return amplitude < threshold
	}
	return s.completion.mean() < threshold
}

// InSpeech reports whether the segmenter currently considers the stream to
// be inside an utterance.
func (s *Segmenter) InSpeech() bool {
	return s.inSpeech
}

// SpeechMs returns the accumulated speech duration of the current utterance.
func (s *Segmenter) SpeechMs() float64 {
	return s.speechMs
}

// SilenceMs returns the accumulated trailing silence duration.
func (s *Segmenter) SilenceMs() float64 {
	return s.silenceMs
}

// Reset returns the segmenter to the listening state and clears both windows.
func (s *Segmenter) Reset() {
	s.silenceMs = 0
	s.speechMs = 0
	s.inSpeech = false
	s.activation.clear()
	s.completion.clear()
}

// windowCapacity converts a window time budget into a sample count for the
// observed frame duration.
func windowCapacity(windowMs int, frameMs float64) int {
	if frameMs <= 0 {
		return 0
	}
	return int(float64(windowMs) / frameMs)
}

// amplitudeWindow is a bounded FIFO of recent frame amplitudes.
type amplitudeWindow struct {
	samples []float64
}

func (w *amplitudeWindow) push(amplitude float64, capacity int) {
	w.samples = append(w.samples, amplitude)
	for len(w.samples) > capacity {
		w.samples = w.samples[1:]
	}
}

func (w *amplitudeWindow) len() int {
	return len(w.samples)
}

func (w *amplitudeWindow) mean() float64 {
	return mean(w.samples)
}

func (w *amplitudeWindow) clear() {
	w.samples = w.samples[:0]
}
