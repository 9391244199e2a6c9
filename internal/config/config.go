package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the voice agent service
type Config struct {
	// Server configuration
	Port string `envconfig:"PORT" default:"8080"`

	// Deepgram ASR API configuration
	DeepgramAPIKey  string `envconfig:"DEEPGRAM_API_KEY" required:"true"`
	DeepgramModel   string `envconfig:"DEEPGRAM_MODEL" default:"nova-2"` // nova-2, enhanced, base
	DeepgramTimeout int    `envconfig:"DEEPGRAM_TIMEOUT" default:"30"`   // seconds

	// GLM-4-Voice speech-to-speech API configuration
	GLMAPIKey    string `envconfig:"GLM_API_KEY" required:"true"`
	GLMBaseURL   string `envconfig:"GLM_BASE_URL" default:"https://open.bigmodel.cn/api/paas/v4"`
	GLMModel     string `envconfig:"GLM_MODEL" default:"glm-4-voice"`
	SystemPrompt string `envconfig:"SYSTEM_PROMPT" default:"You are a helpful voice assistant. Keep replies short and conversational."`

	// Audio format configuration (PCM16 mono throughout)
	SampleRate      int `envconfig:"SAMPLE_RATE" default:"16000"`    // Hz
	Channels        int `envconfig:"CHANNELS" default:"1"`           // mono
	SampleWidth     int `envconfig:"SAMPLE_WIDTH" default:"2"`       // bytes per sample (16-bit PCM)
	FrameDurationMs int `envconfig:"FRAME_DURATION_MS" default:"20"` // nominal chunk duration from client
	ReplyChunkMs    int `envconfig:"REPLY_CHUNK_MS" default:"100"`   // size of reply chunks streamed back

	// Voice activity detection
	SilenceThreshold   float64 `envconfig:"SILENCE_THRESHOLD" default:"500"`     // fallback amplitude threshold
	SpeechMultiplier   float64 `envconfig:"SPEECH_MULTIPLIER" default:"1.5"`     // speech threshold = noise floor * multiplier
	MaxSilenceMs       float64 `envconfig:"MAX_SILENCE_MS" default:"600"`        // trailing silence that ends an utterance
	MinSpeechMs        float64 `envconfig:"MIN_SPEECH_MS" default:"0"`           // minimum speech duration (0 = disabled)
	ActivationWindowMs int     `envconfig:"ACTIVATION_WINDOW_MS" default:"250"`  // short window for speech onset
	CompletionWindowMs int     `envconfig:"COMPLETION_WINDOW_MS" default:"2000"` // long window for speech offset
	MinActivationMs    int     `envconfig:"MIN_ACTIVATION_MS" default:"100"`     // activation window warm-up
	MinCompletionMs    int     `envconfig:"MIN_COMPLETION_MS" default:"500"`     // completion window warm-up
	MinUtteranceMs     float64 `envconfig:"MIN_UTTERANCE_MS" default:"200"`      // reject utterances shorter than this

	// Background noise estimation
	NoiseWindowMs      int     `envconfig:"NOISE_WINDOW_MS" default:"2000"`     // sliding window for the noise floor
	MinNoiseSamples    int     `envconfig:"MIN_NOISE_SAMPLES" default:"10"`     // minimum samples for a usable estimate
	NoiseSpeechCutoff  float64 `envconfig:"NOISE_SPEECH_CUTOFF" default:"500"`  // amplitude that pre-empts noise collection
	NoiseFallbackRatio float64 `envconfig:"NOISE_FALLBACK_RATIO" default:"5.0"` // fallback noise = SilenceThreshold / ratio

	// Conversation history
	HistoryWaitTimeoutMs int `envconfig:"HISTORY_WAIT_TIMEOUT_MS" default:"3000"` // max wait for the user transcript
	HistoryPollMs        int `envconfig:"HISTORY_POLL_MS" default:"100"`          // transcript poll interval

	// Resilience configuration
	CircuitBreakerMaxFailures  int `envconfig:"CIRCUIT_BREAKER_MAX_FAILURES" default:"5"`   // Failures before opening circuit
	CircuitBreakerResetTimeout int `envconfig:"CIRCUIT_BREAKER_RESET_TIMEOUT" default:"30"` // Seconds before attempting recovery
	RetryMaxAttempts           int `envconfig:"RETRY_MAX_ATTEMPTS" default:"3"`             // Maximum retry attempts
	RetryInitialBackoff        int `envconfig:"RETRY_INITIAL_BACKOFF" default:"100"`        // Initial backoff in milliseconds

	// Observability configuration
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`       // Log level: debug, info, warn, error
	LogPretty      bool   `envconfig:"LOG_PRETTY" default:"false"`     // Pretty print logs (for development)
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"` // Enable Prometheus metrics
}

// Load reads configuration from environment variables
// It first attempts to load from .env file if it exists, then from environment
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	return LoadFromEnv()
}

// LoadFromEnv loads configuration directly from environment variables
// without attempting to load .env file (useful for containerized deployments)
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that required fields are set and audio parameters are sane
func (c *Config) Validate() error {
	if c.DeepgramAPIKey == "" {
		return fmt.Errorf("DEEPGRAM_API_KEY is required")
	}
	if c.GLMAPIKey == "" {
		return fmt.Errorf("GLM_API_KEY is required")
	}
	if c.SampleRate <= 0 {
		return fmt.Errorf("SAMPLE_RATE must be positive, got %d", c.SampleRate)
	}
	if c.SampleWidth != 2 {
		return fmt.Errorf("SAMPLE_WIDTH must be 2 (16-bit PCM), got %d", c.SampleWidth)
	}
	if c.Channels != 1 {
		return fmt.Errorf("CHANNELS must be 1 (mono), got %d", c.Channels)
	}
	if c.FrameDurationMs <= 0 {
		return fmt.Errorf("FRAME_DURATION_MS must be positive, got %d", c.FrameDurationMs)
	}
	return nil
}

// GetEnv returns the value of an environment variable or a default value
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
