package gateway

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/voxflow-ai/voice-agent/internal/asr"
	"github.com/voxflow-ai/voice-agent/internal/audio"
	"github.com/voxflow-ai/voice-agent/internal/config"
	"github.com/voxflow-ai/voice-agent/internal/genai"
	"github.com/voxflow-ai/voice-agent/internal/observability"
	"github.com/voxflow-ai/voice-agent/internal/session"
	"github.com/voxflow-ai/voice-agent/internal/vad"
)

// Handler terminates voice websocket connections and runs the utterance
// pipeline for each session.
type Handler struct {
	cfg         *config.Config
	registry    *session.Registry
	transcriber asr.Transcriber
	generator   genai.Generator
	upgrader    websocket.Upgrader
	logger      zerolog.Logger
}

func NewHandler(cfg *config.Config, registry *session.Registry, transcriber asr.Transcriber, generator genai.Generator) *Handler {
	return &Handler{
		cfg:         cfg,
		registry:    registry,
		transcriber: transcriber,
		generator:   generator,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: observability.GetLogger().With().Str("component", "gateway").Logger(),
	}
}

// NewSessionFactory builds per-session VAD state from config. Each session
// gets its own segmenter and noise tracker so that one client's ambience
// never influences another's thresholds.
func NewSessionFactory(cfg *config.Config) session.Factory {
	return func(id string) *session.State {
		seg := vad.NewSegmenter(vad.SegmenterConfig{
			FrameDurationMs:    float64(cfg.FrameDurationMs),
			SpeechMultiplier:   cfg.SpeechMultiplier,
			MaxSilenceMs:       cfg.MaxSilenceMs,
			MinSpeechMs:        cfg.MinSpeechMs,
			ActivationWindowMs: cfg.ActivationWindowMs,
			CompletionWindowMs: cfg.CompletionWindowMs,
			MinActivationMs:    cfg.MinActivationMs,
			MinCompletionMs:    cfg.MinCompletionMs,
		})
		noise := vad.NewNoiseTracker(vad.NoiseTrackerConfig{
			WindowSize:   cfg.NoiseWindowMs / cfg.FrameDurationMs,
			MinSamples:   cfg.MinNoiseSamples,
			SpeechCutoff: cfg.NoiseSpeechCutoff,
			Fallback:     cfg.SilenceThreshold / cfg.NoiseFallbackRatio,
		})
		return session.NewState(id, seg, noise)
	}
}

// HandleVoiceWS upgrades the request and runs the session read loop until
// the client disconnects.
func (h *Handler) HandleVoiceWS() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := h.upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.logger.Error().Err(err).Msg("websocket upgrade failed")
			return
		}

		sessionID := observability.NewSessionID()
		state := h.registry.GetOrCreate(sessionID)
		logger := observability.WithSession(sessionID)
		metrics := observability.NewSessionMetrics(sessionID)
		metrics.RecordSessionStart()

		out := newWSSender(conn)
		logger.Info().Str("remote", r.RemoteAddr).Msg("session connected")
		if err := out.Send(statusMessage{Type: msgTypeInfo, Message: "Connected: " + sessionID}); err != nil {
			logger.Warn().Err(err).Msg("greeting failed")
		}

		h.readLoop(conn, state, out, metrics, logger)

		out.close()
		conn.Close()
		metrics.RecordSessionEnd()
		h.registry.Remove(sessionID)
		logger.Info().Msg("session closed")
	}
}

func (h *Handler) readLoop(conn *websocket.Conn, state *session.State, out Sender, metrics *observability.Metrics, logger zerolog.Logger) {
	for {
		var msg clientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn().Err(err).Msg("connection dropped")
			}
			return
		}

		switch msg.Type {
		case msgTypeAudioChunk:
			h.handleAudioChunk(state, out, &msg, metrics, logger)
		case msgTypeControl:
			h.handleControl(state, out, &msg, logger)
		default:
			out.Send(statusMessage{Type: msgTypeError, Message: fmt.Sprintf("Unknown message type: %s", msg.Type)})
		}
	}
}

// handleAudioChunk feeds one PCM frame through the noise tracker and
// segmenter. It runs on the read goroutine only, so the per-session VAD
// state needs no locking. When the segmenter reports a completed utterance
// the buffered audio is handed to the background pipeline and ingestion
// continues immediately.
func (h *Handler) handleAudioChunk(state *session.State, out Sender, msg *clientMessage, metrics *observability.Metrics, logger zerolog.Logger) {
	if msg.Data == "" {
		out.Send(statusMessage{Type: msgTypeError, Message: "Missing audio data"})
		return
	}
	pcm, err := base64.StdEncoding.DecodeString(msg.Data)
	if err != nil {
		out.Send(statusMessage{Type: msgTypeError, Message: "Invalid audio data"})
		return
	}
	if len(pcm) == 0 {
		return
	}
	metrics.RecordAudioBytes("in", int64(len(pcm)))

	amp := audio.MeanAmplitude(pcm)
	frameMs := audio.DurationMs(pcm, h.cfg.SampleRate)
	state.Noise.Observe(amp)

	state.Buffer.Append(pcm)
	result := state.Segmenter.Step(amp, frameMs, state.Noise.Estimate())

	if result.SpeechStarted {
		out.Send(statusMessage{Type: msgTypeSpeechStarted, Message: "Listening..."})
	}
	if !result.UtteranceDone {
		return
	}

	payload := state.Buffer.Drain()
	if payload == nil {
		return
	}
	durationMs := audio.DurationMs(payload, h.cfg.SampleRate)
	if durationMs < h.cfg.MinUtteranceMs {
		metrics.RecordUtteranceTooShort()
		out.Send(statusMessage{Type: msgTypeError, Message: "Audio too short. Please speak longer."})
		return
	}
	metrics.RecordUtterance(time.Duration(durationMs * float64(time.Millisecond)))
	logger.Info().
		Float64("duration_ms", durationMs).
		Int32("peak_amplitude", audio.PeakAmplitude(payload)).
		Msg("utterance captured")

	wav := audio.WrapWAV(payload, h.audioFormat())
	out.Send(statusMessage{Type: msgTypeASRStart, Message: "Transcribing your question..."})
	out.Send(statusMessage{Type: msgTypeGLMStart, Message: "AI is thinking..."})

	state.Go(func(ctx context.Context) {
		h.processUtterance(ctx, state, out, wav, metrics, logger)
	})
}

func (h *Handler) handleControl(state *session.State, out Sender, msg *clientMessage, logger zerolog.Logger) {
	switch msg.Action {
	case "set_language":
		lang := ""
		if msg.Language != nil {
			lang = *msg.Language
		}
		name, ok := languageName(lang)
		if !ok {
			out.Send(statusMessage{Type: msgTypeError, Message: fmt.Sprintf("Invalid language: %s", lang)})
			return
		}
		state.SetLanguage(lang)
		logger.Info().Str("language", lang).Msg("language updated")
		out.Send(statusMessage{Type: msgTypeInfo, Message: "Language: " + name})
	default:
		out.Send(statusMessage{Type: msgTypeError, Message: fmt.Sprintf("Unknown action: %s", msg.Action)})
	}
}

// languageName maps a transcription language code to its display name. An
// empty code means auto-detection.
func languageName(lang string) (string, bool) {
	switch lang {
	case "":
		return "auto-detect", true
	case "zh":
		return "Chinese", true
	case "en":
		return "English", true
	default:
		return "", false
	}
}

func (h *Handler) audioFormat() audio.Format {
	return audio.Format{
		SampleRate:  h.cfg.SampleRate,
		Channels:    h.cfg.Channels,
		SampleWidth: h.cfg.SampleWidth,
	}
}
