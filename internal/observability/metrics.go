package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Session metrics
	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "transcription_gateway_active_sessions",
		Help: "Number of active transcription sessions",
	})

	totalSessions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "transcription_gateway_sessions_total",
		Help: "Total number of transcription sessions started",
	})

	sessionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "transcription_gateway_session_duration_seconds",
		Help:    "Duration of transcription sessions in seconds",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
	})

	// Audio metrics
	audioChunks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transcription_gateway_audio_chunks_total",
		Help: "Audio chunks received, by outcome",
	}, []string{"outcome"}) // outcome: "forwarded" or "dropped"

	audioBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "transcription_gateway_audio_bytes_total",
		Help: "Total audio bytes forwarded upstream",
	})

	// Recognition metrics
	recognitionEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transcription_gateway_recognition_events_total",
		Help: "Recognition events received from the upstream link, by type",
	}, []string{"type"})

	transcriptSegments = promauto.NewCounter(prometheus.CounterOpts{
		Name: "transcription_gateway_transcript_segments_total",
		Help: "Final transcript segments appended",
	})

	// Summarization metrics
	summaryRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transcription_gateway_summary_requests_total",
		Help: "Summarization requests, by summary type and status",
	}, []string{"summary_type", "status"})

	summaryLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "transcription_gateway_summary_latency_seconds",
		Help:    "Summarization request latency in seconds",
		Buckets: []float64{0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
	})

	// Error metrics
	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transcription_gateway_errors_total",
		Help: "Total number of errors",
	}, []string{"type", "component"})

	// Circuit breaker metrics
	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "transcription_gateway_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{"service"})

	circuitBreakerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transcription_gateway_circuit_breaker_failures_total",
		Help: "Total circuit breaker failures",
	}, []string{"service"})
)

// SessionMetrics tracks metrics for a single session
type SessionMetrics struct {
	sessionID string
	startTime time.Time
}

// NewSessionMetrics creates a metrics tracker for a session
func NewSessionMetrics(sessionID string) *SessionMetrics {
	return &SessionMetrics{
		sessionID: sessionID,
		startTime: time.Now(),
	}
}

// RecordSessionStart records the start of a session
func (m *SessionMetrics) RecordSessionStart() {
	activeSessions.Inc()
	totalSessions.Inc()
}

// RecordSessionEnd records the end of a session
func (m *SessionMetrics) RecordSessionEnd() {
	activeSessions.Dec()
	sessionDuration.Observe(time.Since(m.startTime).Seconds())
}

// RecordAudioForwarded records a chunk forwarded to the upstream link
func (m *SessionMetrics) RecordAudioForwarded(bytes int) {
	audioChunks.WithLabelValues("forwarded").Inc()
	audioBytes.Add(float64(bytes))
}

// RecordAudioDropped records a chunk dropped outside the Streaming state
func (m *SessionMetrics) RecordAudioDropped() {
	audioChunks.WithLabelValues("dropped").Inc()
}

// RecordRecognitionEvent records an upstream recognition event
func (m *SessionMetrics) RecordRecognitionEvent(eventType string) {
	recognitionEvents.WithLabelValues(eventType).Inc()
}

// RecordSegment records a final transcript segment
func (m *SessionMetrics) RecordSegment() {
	transcriptSegments.Inc()
}

// RecordError records an error
func (m *SessionMetrics) RecordError(errorType, component string) {
	errorsTotal.WithLabelValues(errorType, component).Inc()
}

// RecordSummaryRequest records a summarization request outcome and latency
func RecordSummaryRequest(summaryType string, success bool, elapsed time.Duration) {
	status := "success"
	if !success {
		status = "error"
	}
	summaryRequests.WithLabelValues(summaryType, status).Inc()
	summaryLatency.Observe(elapsed.Seconds())
}

// UpdateCircuitBreakerState updates circuit breaker state metric
func UpdateCircuitBreakerState(service string, state int) {
	circuitBreakerState.WithLabelValues(service).Set(float64(state))
}

// IncrementCircuitBreakerFailures increments circuit breaker failure counter
func IncrementCircuitBreakerFailures(service string) {
	circuitBreakerFailures.WithLabelValues(service).Inc()
}
