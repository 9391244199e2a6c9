package asr

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	restv1api "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/rest"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	listenClient "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"

	"github.com/voxflow-ai/voice-agent/internal/config"
	"github.com/voxflow-ai/voice-agent/internal/observability"
	"github.com/voxflow-ai/voice-agent/internal/resilience"
)

// DeepgramClient implements Transcriber using Deepgram's prerecorded REST
// API. Each utterance is one blocking request; the generation stream does
// not depend on the result, so latency here only delays history updates.
type DeepgramClient struct {
	config         *config.Config
	client         *restv1api.Client
	timeout        time.Duration
	circuitBreaker *resilience.CircuitBreaker
}

// NewDeepgramClient creates a new Deepgram prerecorded transcription client
func NewDeepgramClient(cfg *config.Config) *DeepgramClient {
	rest := listenClient.NewREST(cfg.DeepgramAPIKey, &interfaces.ClientOptions{})

	circuitBreaker := resilience.NewCircuitBreaker(
		"deepgram",
		cfg.CircuitBreakerMaxFailures,
		time.Duration(cfg.CircuitBreakerResetTimeout)*time.Second,
	)

	return &DeepgramClient{
		config:         cfg,
		client:         restv1api.New(rest),
		timeout:        time.Duration(cfg.DeepgramTimeout) * time.Second,
		circuitBreaker: circuitBreaker,
	}
}

// Transcribe sends the WAV payload to Deepgram and returns the transcript.
func (d *DeepgramClient) Transcribe(ctx context.Context, wavAudio []byte, language string) (string, error) {
	if len(wavAudio) == 0 {
		return "", fmt.Errorf("empty audio payload")
	}

	options := &interfaces.PreRecordedTranscriptionOptions{
		Model:       d.config.DeepgramModel,
		SmartFormat: true,
	}
	if language != "" {
		options.Language = language
	} else {
		options.DetectLanguage = true
	}

	var transcript string
	attempt := func() error {
		reqCtx, cancel := context.WithTimeout(ctx, d.timeout)
		defer cancel()

		res, err := d.client.FromStream(reqCtx, bytes.NewReader(wavAudio), options)
		if err != nil {
			return fmt.Errorf("deepgram transcription failed: %w", err)
		}

		channels := res.Results.Channels
		if len(channels) == 0 || len(channels[0].Alternatives) == 0 {
			// Nothing recognized; not an error.
			transcript = ""
			return nil
		}
		transcript = strings.TrimSpace(channels[0].Alternatives[0].Transcript)
		return nil
	}

	retryCfg := &resilience.RetryConfig{
		MaxAttempts:       d.config.RetryMaxAttempts,
		InitialBackoff:    time.Duration(d.config.RetryInitialBackoff) * time.Millisecond,
		MaxBackoff:        5 * time.Second,
		BackoffMultiplier: 2.0,
		Jitter:            true,
	}

	err := d.circuitBreaker.Call(func() error {
		return resilience.Retry(attempt, retryCfg, resilience.IsRetryableNetworkError)
	})
	observability.UpdateCircuitBreakerState("deepgram", int(d.circuitBreaker.GetState()))
	if err != nil {
		observability.IncrementCircuitBreakerFailures("deepgram")
		return "", err
	}

	return transcript, nil
}

// HealthCheck validates that the client is usable. It does not make a
// billable API call.
func (d *DeepgramClient) HealthCheck(ctx context.Context) (bool, error) {
	if d.client == nil {
		return false, fmt.Errorf("deepgram client not initialized")
	}
	if state, requests, failures, _ := d.circuitBreaker.GetStats(); state == resilience.StateOpen {
		return false, fmt.Errorf("deepgram circuit breaker is open (%d of %d requests failed)", failures, requests)
	}
	return true, nil
}

// Close releases client resources.
func (d *DeepgramClient) Close() error {
	return nil
}
