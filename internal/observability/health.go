package observability

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// HealthStatus is the payload of the health endpoint. It mirrors what the
// frontend polls for: whether the upstream collaborators are configured and
// how many sessions are live right now.
type HealthStatus struct {
	Status             string `json:"status"`
	Service            string `json:"service"`
	Version            string `json:"version"`
	Timestamp          string `json:"timestamp"`
	DeepgramConfigured bool   `json:"deepgram_configured"`
	GeminiConfigured   bool   `json:"gemini_configured"`
	ActiveSessions     int    `json:"active_sessions"`
}

// DependencyStatus represents the status of a dependency
type DependencyStatus struct {
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
	LatencyMs int64  `json:"latency_ms,omitempty"`
}

// ReadinessStatus is the payload of the readiness endpoint
type ReadinessStatus struct {
	Status       string                      `json:"status"`
	Service      string                      `json:"service"`
	Timestamp    string                      `json:"timestamp"`
	Dependencies map[string]DependencyStatus `json:"dependencies,omitempty"`
}

// HealthCheckFunc probes a single dependency
type HealthCheckFunc func(ctx context.Context) (bool, error)

// HealthCheckHandler reports service liveness plus collaborator configuration
// and the current active session count.
func HealthCheckHandler(deepgramConfigured, geminiConfigured func() bool, activeSessions func() int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := HealthStatus{
			Status:             "healthy",
			Service:            "transcription-gateway",
			Version:            "1.0.0",
			Timestamp:          time.Now().UTC().Format(time.RFC3339),
			DeepgramConfigured: deepgramConfigured(),
			GeminiConfigured:   geminiConfigured(),
			ActiveSessions:     activeSessions(),
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(status)
	}
}

// ReadinessHandler probes the named dependencies and reports 503 if any fails
func ReadinessHandler(checks map[string]HealthCheckFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dependencies := make(map[string]DependencyStatus, len(checks))
		allHealthy := true
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		for name, check := range checks {
			if check == nil {
				continue
			}

			start := time.Now()
			healthy, err := check(ctx)
			latency := time.Since(start).Milliseconds()

			status := "healthy"
			message := ""
			if err != nil || !healthy {
				status = "unhealthy"
				allHealthy = false
				if err != nil {
					message = err.Error()
				}
			}

			dependencies[name] = DependencyStatus{
				Status:    status,
				Message:   message,
				LatencyMs: latency,
			}
		}

		status := ReadinessStatus{
			Status:       "ready",
			Service:      "transcription-gateway",
			Timestamp:    time.Now().UTC().Format(time.RFC3339),
			Dependencies: dependencies,
		}

		w.Header().Set("Content-Type", "application/json")
		if !allHealthy {
			status.Status = "not_ready"
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}

		json.NewEncoder(w).Encode(status)
	}
}
