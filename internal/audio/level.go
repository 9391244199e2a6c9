package audio

// Samples decodes 16-bit signed little-endian PCM bytes into samples.
// A trailing odd byte is ignored.
func Samples(pcm []byte) []int16 {
	n := len(pcm) / 2
	samples := make([]int16, n)
	for i := 0; i < n; i++ {
		samples[i] = int16(pcm[i*2]) | int16(pcm[i*2+1])<<8
	}
	return samples
}

// MeanAmplitude computes the average absolute amplitude of a PCM16 frame.
// An empty frame yields 0.
func MeanAmplitude(pcm []byte) float64 {
	samples := Samples(pcm)
	if len(samples) == 0 {
		return 0.0
	}

	sum := 0.0
	for _, sample := range samples {
		s := int32(sample)
		if s < 0 {
			s = -s
		}
		sum += float64(s)
	}
	return sum / float64(len(samples))
}

// PeakAmplitude returns the maximum absolute amplitude of a PCM16 frame.
func PeakAmplitude(pcm []byte) int32 {
	max := int32(0)
	for _, sample := range Samples(pcm) {
		s := int32(sample)
		if s < 0 {
			s = -s
		}
		if s > max {
			max = s
		}
	}
	return max
}

// DurationMs returns the play time of a PCM16 payload in milliseconds,
// derived from the byte length rather than any nominal frame duration.
func DurationMs(pcm []byte, sampleRate int) float64 {
	if sampleRate <= 0 {
		return 0.0
	}
	numSamples := len(pcm) / 2
	return float64(numSamples) / float64(sampleRate) * 1000.0
}
