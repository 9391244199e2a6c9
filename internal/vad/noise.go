package vad

// NoiseTrackerConfig holds configuration for background noise estimation
type NoiseTrackerConfig struct {
	WindowSize   int     // Capacity of the sliding window in samples
	MinSamples   int     // Minimum samples needed for a usable estimate
	SpeechCutoff float64 // Amplitude that pre-empts collection (speech starting during calibration)
	Fallback     float64 // Estimate used when speech arrives before MinSamples accumulate
}

// NoiseTracker estimates the ambient background loudness from a bounded
// sliding window of per-frame amplitudes. Collection runs until the window
// fills or speech pre-empts it; after that the estimate keeps sliding as a
// trailing average over the full window.
type NoiseTracker struct {
	config    NoiseTrackerConfig
	window    []float64
	finalized bool
	estimate  float64
}

// NewNoiseTracker creates a tracker with the given configuration.
func NewNoiseTracker(config NoiseTrackerConfig) *NoiseTracker {
	return &NoiseTracker{
		config: config,
		window: make([]float64, 0, config.WindowSize),
	}
}

// Observe feeds one frame amplitude into the window and returns whether the
// initial collection phase has completed, along with the current estimate.
func (n *NoiseTracker) Observe(amplitude float64) (bool, float64) {
	n.window = append(n.window, amplitude)
	for len(n.window) > n.config.WindowSize {
		n.window = n.window[1:]
	}

	if !n.finalized {
		switch {
		case len(n.window) >= n.config.WindowSize:
			// Window full: calibration complete.
			n.estimate = mean(n.window)
			n.finalized = true

		case amplitude >= n.config.SpeechCutoff:
			// Speech starting during calibration: use what we have, or the
			// fallback if too few samples accumulated for a reliable mean.
			if len(n.window) >= n.config.MinSamples {
				n.estimate = mean(n.window)
			} else {
				n.estimate = n.config.Fallback
			}
			n.finalized = true
		}
		return n.finalized, n.Estimate()
	}

	// Past calibration the estimate is a live trailing average, recomputed
	// only once the window is full again.
	if len(n.window) >= n.config.WindowSize {
		n.estimate = mean(n.window)
	}
	return true, n.estimate
}

// Finalized reports whether the initial collection phase has completed.
func (n *NoiseTracker) Finalized() bool {
	return n.finalized
}

// Estimate returns the current noise floor estimate, or the fallback while
// collection is still in progress.
func (n *NoiseTracker) Estimate() float64 {
	if !n.finalized {
		return n.config.Fallback
	}
	return n.estimate
}

// Samples returns the number of amplitudes currently held in the window.
func (n *NoiseTracker) Samples() int {
	return len(n.window)
}

func mean(samples []float64) float64 {
	if len(samples) == 0 {
		return 0.0
	}
	sum := 0.0
	for _, s := range samples {
		sum += s
	}
	return sum / float64(len(samples))
}
