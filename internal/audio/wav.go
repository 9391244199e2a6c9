package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Format describes the fixed PCM layout used throughout the service.
type Format struct {
	SampleRate  int // Hz
	Channels    int // 1 = mono
	SampleWidth int // bytes per sample (2 = 16-bit)
}

const wavHeaderSize = 44

// WrapWAV wraps raw PCM samples in a minimal RIFF/WAVE container so the
// payload can be handed to the ASR and generation models.
func WrapWAV(pcm []byte, format Format) []byte {
	byteRate := format.SampleRate * format.Channels * format.SampleWidth
	blockAlign := format.Channels * format.SampleWidth

	buf := bytes.NewBuffer(make([]byte, 0, wavHeaderSize+len(pcm)))
	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16)) // PCM fmt chunk size
	binary.Write(buf, binary.LittleEndian, uint16(1))  // PCM encoding
	binary.Write(buf, binary.LittleEndian, uint16(format.Channels))
	binary.Write(buf, binary.LittleEndian, uint32(format.SampleRate))
	binary.Write(buf, binary.LittleEndian, uint32(byteRate))
	binary.Write(buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(buf, binary.LittleEndian, uint16(format.SampleWidth*8))
	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)
	return buf.Bytes()
}

// UnwrapWAV extracts the PCM payload from WAV bytes, validating that the
// container matches the expected format.
func UnwrapWAV(wav []byte, format Format) ([]byte, error) {
	if len(wav) < wavHeaderSize {
		return nil, fmt.Errorf("WAV payload too short: %d bytes", len(wav))
	}
	if string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		return nil, fmt.Errorf("not a RIFF/WAVE container")
	}

	// Walk chunks after the RIFF header to find fmt and data.
	var pcm []byte
	sawFmt := false
	offset := 12
	for offset+8 <= len(wav) {
		chunkID := string(wav[offset : offset+4])
		chunkSize := int(binary.LittleEndian.Uint32(wav[offset+4 : offset+8]))
		body := offset + 8
		if body+chunkSize > len(wav) {
			return nil, fmt.Errorf("truncated %q chunk", chunkID)
		}

		switch chunkID {
		case "fmt ":
			if chunkSize < 16 {
				return nil, fmt.Errorf("fmt chunk too short: %d bytes", chunkSize)
			}
			channels := int(binary.LittleEndian.Uint16(wav[body+2 : body+4]))
			sampleRate := int(binary.LittleEndian.Uint32(wav[body+4 : body+8]))
			bitsPerSample := int(binary.LittleEndian.Uint16(wav[body+14 : body+16]))
			if channels != format.Channels || bitsPerSample != format.SampleWidth*8 {
				return nil, fmt.Errorf(
					"unexpected WAV format: %d channels, %d-bit samples",
					channels, bitsPerSample,
				)
			}
			if sampleRate != format.SampleRate {
				return nil, fmt.Errorf("unexpected WAV sample rate: %d Hz", sampleRate)
			}
			sawFmt = true
		case "data":
			pcm = wav[body : body+chunkSize]
		}

		// Chunks are word-aligned.
		if chunkSize%2 != 0 {
			chunkSize++
		}
		offset = body + chunkSize
	}

	if !sawFmt {
		return nil, fmt.Errorf("missing fmt chunk")
	}
	if pcm == nil {
		return nil, fmt.Errorf("missing data chunk")
	}
	return pcm, nil
}

// SplitPCM16 splits PCM16 audio into fixed-duration chunks. The final chunk
// may be shorter than chunkMs.
func SplitPCM16(pcm []byte, chunkMs int, format Format) ([][]byte, error) {
	if chunkMs <= 0 {
		return nil, fmt.Errorf("chunkMs must be positive, got %d", chunkMs)
	}

	chunkSize := format.SampleRate * format.SampleWidth * format.Channels * chunkMs / 1000
	if chunkSize == 0 {
		chunkSize = format.SampleWidth
	}
	// Never split a sample across chunks.
	if rem := chunkSize % format.SampleWidth; rem != 0 {
		chunkSize -= rem
	}

	chunks := make([][]byte, 0, len(pcm)/chunkSize+1)
	for i := 0; i < len(pcm); i += chunkSize {
		end := i + chunkSize
		if end > len(pcm) {
			end = len(pcm)
		}
		chunks = append(chunks, pcm[i:end])
	}
	return chunks, nil
}
