package genai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/voxflow-ai/voice-agent/internal/config"
	"github.com/voxflow-ai/voice-agent/internal/observability"
	"github.com/voxflow-ai/voice-agent/internal/resilience"
)

const (
	// eventBufferSize bounds how far the SSE reader can run ahead of the
	// pipeline consuming the events.
	eventBufferSize = 64

	// maxResponseTokens caps one reply's length.
	maxResponseTokens = 4095
)

// GLMClient implements Generator against the GLM-4-Voice chat completions
// API, streaming reply audio and text over server-sent events.
type GLMClient struct {
	config         *config.Config
	apiKey         string
	apiURL         string
	model          string
	httpClient     *http.Client
	circuitBreaker *resilience.CircuitBreaker
}

// glmRequest is the chat completions request payload.
type glmRequest struct {
	Model     string       `json:"model"`
	Messages  []glmMessage `json:"messages"`
	Stream    bool         `json:"stream"`
	MaxTokens int          `json:"max_tokens,omitempty"`
}

// glmMessage is one chat message; content is either a plain string or a
// list of typed parts (for audio input).
type glmMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

type glmContentPart struct {
	Type       string         `json:"type"` // "text" or "input_audio"
	Text       string         `json:"text,omitempty"`
	InputAudio *glmInputAudio `json:"input_audio,omitempty"`
}

type glmInputAudio struct {
	Data   string `json:"data"`   // base64 WAV
	Format string `json:"format"` // "wav"
}

// glmStreamChunk is one decoded SSE data payload.
type glmStreamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
			Audio   *struct {
				ID   string `json:"id"`
				Data string `json:"data"` // base64 PCM16 fragment
			} `json:"audio"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// NewGLMClient creates a new GLM-4-Voice streaming client
func NewGLMClient(cfg *config.Config) *GLMClient {
	return &GLMClient{
		config:     cfg,
		apiKey:     cfg.GLMAPIKey,
		apiURL:     strings.TrimRight(cfg.GLMBaseURL, "/") + "/chat/completions",
		model:      cfg.GLMModel,
		httpClient: &http.Client{}, // no overall timeout; streams are long-lived
		circuitBreaker: resilience.NewCircuitBreaker(
			"glm",
			cfg.CircuitBreakerMaxFailures,
			time.Duration(cfg.CircuitBreakerResetTimeout)*time.Second,
		),
	}
}

// Generate opens a streaming chat completion for one utterance. The request
// is sent synchronously; the returned channel delivers reply events as they
// arrive on the SSE stream.
func (c *GLMClient) Generate(ctx context.Context, req Request) (<-chan Event, error) {
	if len(req.AudioWAV) == 0 {
		return nil, fmt.Errorf("empty audio payload")
	}

	body, err := json.Marshal(glmRequest{
		Model:     c.model,
		Messages:  buildMessages(req),
		Stream:    true,
		MaxTokens: maxResponseTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	// Only the connection attempt is retried; once the stream is open a
	// mid-stream failure surfaces as an error event instead.
	var resp *http.Response
	attempt := func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Accept", "text/event-stream")
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err = c.httpClient.Do(httpReq)
		if err != nil {
			return fmt.Errorf("generation request failed: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			statusErr := fmt.Errorf("generation API returned status %d", resp.StatusCode)
			if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
				return resilience.NewRetryableError(statusErr)
			}
			return statusErr
		}
		return nil
	}

	retryCfg := &resilience.RetryConfig{
		MaxAttempts:       c.config.RetryMaxAttempts,
		InitialBackoff:    time.Duration(c.config.RetryInitialBackoff) * time.Millisecond,
		MaxBackoff:        5 * time.Second,
		BackoffMultiplier: 2.0,
		Jitter:            true,
	}
	err = c.circuitBreaker.Call(func() error {
		return resilience.Retry(attempt, retryCfg, func(err error) bool {
			return resilience.IsRetryable(err) || resilience.IsRetryableNetworkError(err)
		})
	})
	observability.UpdateCircuitBreakerState("glm", int(c.circuitBreaker.GetState()))
	if err != nil {
		observability.IncrementCircuitBreakerFailures("glm")
		return nil, err
	}

	events := make(chan Event, eventBufferSize)
	go c.readStream(ctx, resp, events)
	return events, nil
}

// readStream consumes the SSE body and forwards typed events in arrival
// order. It closes the channel after the terminal event.
func (c *GLMClient) readStream(ctx context.Context, resp *http.Response, events chan<- Event) {
	defer close(events)
	defer resp.Body.Close()

	emit := func(ev Event) bool {
		select {
		case events <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	sawDone := false
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "[DONE]" {
			sawDone = true
			break
		}

		var chunk glmStreamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			log.Warn().Err(err).Msg("Skipping malformed stream chunk")
			continue
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta

		if delta.Audio != nil && delta.Audio.Data != "" {
			fragment, err := base64.StdEncoding.DecodeString(delta.Audio.Data)
			if err != nil {
				log.Warn().Err(err).Msg("Skipping undecodable audio fragment")
				continue
			}
			if !emit(Event{Type: EventAudio, Audio: fragment}) {
				return
			}
		}

		if delta.Content != "" {
			if !emit(Event{Type: EventText, Text: delta.Content}) {
				return
			}
		}

		if chunk.Choices[0].FinishReason != "" {
			sawDone = true
		}
	}

	if err := scanner.Err(); err != nil {
		emit(Event{Type: EventError, Err: fmt.Errorf("generation stream aborted: %w", err)})
		return
	}
	if !sawDone && ctx.Err() != nil {
		emit(Event{Type: EventError, Err: ctx.Err()})
		return
	}

	emit(Event{Type: EventDone})
}

// buildMessages assembles the chat transcript for one turn: optional system
// prompt, prior-turn history as a system message, then the utterance audio.
func buildMessages(req Request) []glmMessage {
	messages := make([]glmMessage, 0, 3)

	if req.SystemPrompt != "" {
		messages = append(messages, glmMessage{Role: "system", Content: req.SystemPrompt})
	}
	if req.History != "" {
		messages = append(messages, glmMessage{
			Role:    "system",
			Content: "Previous conversation:\n" + req.History,
		})
	}
	messages = append(messages, glmMessage{
		Role: "user",
		Content: []glmContentPart{{
			Type: "input_audio",
			InputAudio: &glmInputAudio{
				Data:   base64.StdEncoding.EncodeToString(req.AudioWAV),
				Format: "wav",
			},
		}},
	})

	return messages
}

// HealthCheck validates that the client is usable. It does not make a
// billable API call.
func (c *GLMClient) HealthCheck(ctx context.Context) (bool, error) {
	if c.apiKey == "" {
		return false, fmt.Errorf("glm API key not configured")
	}
	if state, requests, failures, _ := c.circuitBreaker.GetStats(); state == resilience.StateOpen {
		return false, fmt.Errorf("glm circuit breaker is open (%d of %d requests failed)", failures, requests)
	}
	return true, nil
}

// Close releases client resources.
func (c *GLMClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
