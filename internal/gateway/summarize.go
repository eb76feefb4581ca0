package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/ainotetaker/transcription-gateway/internal/observability"
	"github.com/ainotetaker/transcription-gateway/internal/summary"
)

// detailError mirrors the error envelope the frontend already understands
type detailError struct {
	Detail string `json:"detail"`
}

// SummarizeHandler serves POST /api/summarize: an on-demand summarization of
// a client-supplied transcript snapshot, independent of any live session.
type SummarizeHandler struct {
	client summary.Client
	logger zerolog.Logger
}

// NewSummarizeHandler creates the REST summarization handler
func NewSummarizeHandler(client summary.Client) *SummarizeHandler {
	return &SummarizeHandler{
		client: client,
		logger: observability.GetLogger().With().Str("component", "summarize_handler").Logger(),
	}
}

func (h *SummarizeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		json.NewEncoder(w).Encode(detailError{Detail: "method not allowed"})
		return
	}

	var req summary.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(detailError{Detail: "invalid request body"})
		return
	}

	if req.Text == "" {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(detailError{Detail: "No text provided for summarization"})
		return
	}

	summaryType, known := summary.ParseType(req.SummaryType)
	if !known {
		h.logger.Warn().Str("summary_type", req.SummaryType).Msg("unknown summary type, using meeting")
	}

	result, err := h.client.Summarize(r.Context(), req.Text, summaryType)
	if err != nil {
		h.logger.Error().Err(err).Msg("summarization failed")
		w.WriteHeader(http.StatusBadGateway)
		json.NewEncoder(w).Encode(detailError{Detail: "Error generating summary: " + err.Error()})
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(result)
}
