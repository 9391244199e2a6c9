package gateway

import (
	"context"
	"encoding/base64"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/voxflow-ai/voice-agent/internal/audio"
	"github.com/voxflow-ai/voice-agent/internal/genai"
	"github.com/voxflow-ai/voice-agent/internal/observability"
	"github.com/voxflow-ai/voice-agent/internal/session"
)

// Placeholder turns recorded in history when a leg of the pipeline produced
// no usable text.
const (
	userTranscriptPlaceholder = "[audio input]"
	assistantPlaceholder      = "[audio reply]"
)

// processUtterance runs one captured utterance through transcription and
// speech generation. The two legs run concurrently: transcription feeds the
// text history and the asr_complete event, generation streams reply audio
// and text back to the client. The reply is never blocked on the
// transcript.
func (h *Handler) processUtterance(ctx context.Context, state *session.State, out Sender, wav []byte, metrics *observability.Metrics, logger zerolog.Logger) {
	state.Go(func(ctx context.Context) {
		h.transcribe(ctx, state, out, wav, metrics, logger)
	})
	h.generate(ctx, state, out, wav, metrics, logger)
}

// transcribe produces the text transcript for the utterance. Failures are
// logged and swallowed: a missing transcript degrades the history entry to
// a placeholder but never interrupts the voice reply.
func (h *Handler) transcribe(ctx context.Context, state *session.State, out Sender, wav []byte, metrics *observability.Metrics, logger zerolog.Logger) {
	start := metrics.RecordASRStart()
	text, err := h.transcriber.Transcribe(ctx, wav, state.Language())
	if err != nil {
		metrics.RecordASREnd(start, false)
		metrics.RecordError("transcription", "asr")
		logger.Warn().Err(err).Msg("transcription failed")
		return
	}
	metrics.RecordASREnd(start, true)
	if text == "" {
		logger.Debug().Msg("transcription empty")
		return
	}
	state.SetPendingTranscript(text)
	out.Send(textMessage{Type: msgTypeASRComplete, Text: text})
}

// generate drives the speech generator and forwards its stream to the
// client in arrival order. Reply audio is re-sliced into fixed-duration
// chunks; reply text is sent cumulatively so the client can render the
// partial reply as it grows.
func (h *Handler) generate(ctx context.Context, state *session.State, out Sender, wav []byte, metrics *observability.Metrics, logger zerolog.Logger) {
	start := metrics.RecordGenerationStart()
	events, err := h.generator.Generate(ctx, genai.Request{
		AudioWAV:     wav,
		History:      state.History(),
		SystemPrompt: h.cfg.SystemPrompt,
	})
	if err != nil {
		metrics.RecordGenerationEnd(start, false)
		metrics.RecordError("generation", "genai")
		logger.Error().Err(err).Msg("generation request failed")
		out.Send(statusMessage{Type: msgTypeError, Message: "Reply generation failed. Please try again."})
		out.Send(replyAudioMessage{Type: msgTypeReplyAudio, Data: "", IsLast: true})
		return
	}

	format := h.audioFormat()
	var reply strings.Builder
	var firstFragment bool

	for ev := range events {
		switch ev.Type {
		case genai.EventAudio:
			if !firstFragment {
				firstFragment = true
				metrics.RecordFirstFragment(start)
			}
			h.sendReplyAudio(out, ev.Audio, format, metrics, logger)
		case genai.EventText:
			reply.WriteString(ev.Text)
			out.Send(textMessage{Type: msgTypeGLMComplete, Text: reply.String()})
		case genai.EventDone:
			out.Send(replyAudioMessage{Type: msgTypeReplyAudio, Data: "", IsLast: true})
			metrics.RecordGenerationEnd(start, true)
			assistantText := strings.TrimSpace(reply.String())
			if assistantText == "" {
				assistantText = assistantPlaceholder
			}
			state.Go(func(ctx context.Context) {
				h.reconcileHistory(ctx, state, assistantText, logger)
			})
			return
		case genai.EventError:
			metrics.RecordGenerationEnd(start, false)
			metrics.RecordError("generation_stream", "genai")
			logger.Warn().Err(ev.Err).Msg("generation stream failed")
			// The client still needs the end-of-reply marker to leave
			// its playback state. The truncated turn is not recorded.
			out.Send(replyAudioMessage{Type: msgTypeReplyAudio, Data: "", IsLast: true})
			return
		}
	}

	// Stream ended without a terminal event, session shutdown mid-turn.
	metrics.RecordGenerationEnd(start, false)
	if !state.Closed() {
		out.Send(replyAudioMessage{Type: msgTypeReplyAudio, Data: "", IsLast: true})
	}
}

func (h *Handler) sendReplyAudio(out Sender, pcm []byte, format audio.Format, metrics *observability.Metrics, logger zerolog.Logger) {
	chunks, err := audio.SplitPCM16(pcm, h.cfg.ReplyChunkMs, format)
	if err != nil {
		logger.Warn().Err(err).Msg("reply audio fragment dropped")
		return
	}
	for _, chunk := range chunks {
		metrics.RecordAudioBytes("out", int64(len(chunk)))
		out.Send(replyAudioMessage{
			Type:   msgTypeReplyAudio,
			Data:   base64.StdEncoding.EncodeToString(chunk),
			IsLast: false,
		})
	}
}

// reconcileHistory appends the completed turn to the session history. The
// transcript races the reply, so this waits briefly for it before falling
// back to a placeholder. Exactly one turn is appended per completed reply.
func (h *Handler) reconcileHistory(ctx context.Context, state *session.State, assistantText string, logger zerolog.Logger) {
	deadline := time.NewTimer(time.Duration(h.cfg.HistoryWaitTimeoutMs) * time.Millisecond)
	defer deadline.Stop()
	poll := time.NewTicker(time.Duration(h.cfg.HistoryPollMs) * time.Millisecond)
	defer poll.Stop()

	userText := state.PendingTranscript()
	for userText == "" {
		select {
		case <-ctx.Done():
			return
		case <-deadline.C:
			userText = userTranscriptPlaceholder
		case <-poll.C:
			userText = state.PendingTranscript()
		}
	}

	state.AppendTurn(userText, assistantText)
	logger.Debug().Str("user", userText).Msg("history updated")
}
