package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Session metrics
	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "voice_agent_active_sessions",
		Help: "Number of active voice sessions",
	})

	totalSessions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voice_agent_sessions_total",
		Help: "Total number of voice sessions handled",
	})

	sessionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "voice_agent_session_duration_seconds",
		Help:    "Duration of voice sessions in seconds",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
	})

	// Utterance metrics
	utterancesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_agent_utterances_total",
		Help: "Total number of detected utterances",
	}, []string{"outcome"}) // outcome: "processed", "too_short"

	utteranceDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "voice_agent_utterance_duration_seconds",
		Help:    "Audio duration of detected utterances in seconds",
		Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30},
	})

	// ASR metrics
	asrRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_agent_asr_requests_total",
		Help: "Total number of ASR transcription requests",
	}, []string{"status"})

	asrLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "voice_agent_asr_latency_seconds",
		Help:    "ASR transcription latency in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0},
	})

	// Generation metrics
	generationRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_agent_generation_requests_total",
		Help: "Total number of speech-to-speech generation requests",
	}, []string{"status"})

	generationTTFB = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "voice_agent_generation_ttfb_seconds",
		Help:    "Time to first streamed audio fragment in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0},
	})

	generationLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "voice_agent_generation_latency_seconds",
		Help:    "Full generation stream duration in seconds",
		Buckets: []float64{0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
	})

	// Error metrics
	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_agent_errors_total",
		Help: "Total number of errors",
	}, []string{"type", "component"})

	// Circuit breaker metrics
	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "voice_agent_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{"service"})

	circuitBreakerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_agent_circuit_breaker_failures_total",
		Help: "Total circuit breaker failures",
	}, []string{"service"})

	// Audio metrics
	audioBytesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_agent_audio_bytes_total",
		Help: "Total audio bytes processed",
	}, []string{"direction"}) // direction: "in" or "out"
)

// Metrics tracks metrics for a single session. Per-utterance timings are
// passed through the Record* calls rather than stored here, since overlapping
// utterances in one session would otherwise clobber each other's start times.
type Metrics struct {
	sessionID string
	startTime time.Time
}

// NewSessionMetrics creates a new metrics tracker for a session
func NewSessionMetrics(sessionID string) *Metrics {
	return &Metrics{
		sessionID: sessionID,
		startTime: time.Now(),
	}
}

// RecordSessionStart records the start of a session
func (m *Metrics) RecordSessionStart() {
	activeSessions.Inc()
	totalSessions.Inc()
}

// RecordSessionEnd records the end of a session
func (m *Metrics) RecordSessionEnd() {
	activeSessions.Dec()
	sessionDuration.Observe(time.Since(m.startTime).Seconds())
}

// RecordUtterance records a detected utterance and its audio duration
func (m *Metrics) RecordUtterance(audioDuration time.Duration) {
	utterancesTotal.WithLabelValues("processed").Inc()
	utteranceDuration.Observe(audioDuration.Seconds())
}

// RecordUtteranceTooShort records an utterance rejected for being too short
func (m *Metrics) RecordUtteranceTooShort() {
	utterancesTotal.WithLabelValues("too_short").Inc()
}

// RecordASRStart marks the start of one transcription request and returns
// its start time for the matching RecordASREnd call.
func (m *Metrics) RecordASRStart() time.Time {
	return time.Now()
}

// RecordASREnd records the end of the transcription request started at start.
func (m *Metrics) RecordASREnd(start time.Time, success bool) {
	asrLatency.Observe(time.Since(start).Seconds())

	status := "success"
	if !success {
		status = "error"
	}
	asrRequests.WithLabelValues(status).Inc()
}

// RecordGenerationStart marks the start of one generation stream and returns
// its start time for the TTFB and end observations.
func (m *Metrics) RecordGenerationStart() time.Time {
	return time.Now()
}

// RecordFirstFragment records the time to first streamed audio fragment of
// the generation started at start. Callers invoke it once per utterance.
func (m *Metrics) RecordFirstFragment(start time.Time) {
	generationTTFB.Observe(time.Since(start).Seconds())
}

// RecordGenerationEnd records the end of the generation stream started at
// start.
func (m *Metrics) RecordGenerationEnd(start time.Time, success bool) {
	generationLatency.Observe(time.Since(start).Seconds())

	status := "success"
	if !success {
		status = "error"
	}
	generationRequests.WithLabelValues(status).Inc()
}

// RecordError records an error
func (m *Metrics) RecordError(errorType, component string) {
	errorsTotal.WithLabelValues(errorType, component).Inc()
}

// RecordAudioBytes records audio bytes processed
func (m *Metrics) RecordAudioBytes(direction string, bytes int64) {
	audioBytesProcessed.WithLabelValues(direction).Add(float64(bytes))
}

// UpdateCircuitBreakerState updates circuit breaker state metric
func UpdateCircuitBreakerState(service string, state int) {
	circuitBreakerState.WithLabelValues(service).Set(float64(state))
}

// IncrementCircuitBreakerFailures increments circuit breaker failure counter
func IncrementCircuitBreakerFailures(service string) {
	circuitBreakerFailures.WithLabelValues(service).Inc()
}
