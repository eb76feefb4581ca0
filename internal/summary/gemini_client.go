package summary

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ainotetaker/transcription-gateway/internal/config"
	"github.com/ainotetaker/transcription-gateway/internal/observability"
	"github.com/ainotetaker/transcription-gateway/internal/resilience"
)

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com"

// GeminiClient implements Client against the Gemini generateContent API
type GeminiClient struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
	breaker    *resilience.CircuitBreaker
	retry      *resilience.RetryConfig
	logger     zerolog.Logger
}

// geminiRequest is the generateContent request payload
type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

// geminiResponse is the subset of the generateContent response we consume
type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// NewGeminiClient creates a Gemini summarization client
func NewGeminiClient(cfg *config.Config) *GeminiClient {
	return &GeminiClient{
		apiKey:  cfg.GeminiAPIKey,
		model:   cfg.GeminiModel,
		baseURL: defaultGeminiBaseURL,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.SummarizeTimeout) * time.Second,
		},
		breaker: resilience.NewCircuitBreaker(
			"gemini",
			cfg.CircuitBreakerMaxFailures,
			time.Duration(cfg.CircuitBreakerResetTimeout)*time.Second,
		),
		retry: &resilience.RetryConfig{
			MaxAttempts:       cfg.RetryMaxAttempts,
			InitialBackoff:    time.Duration(cfg.RetryInitialBackoff) * time.Millisecond,
			MaxBackoff:        5 * time.Second,
			BackoffMultiplier: 2.0,
		},
		logger: observability.GetLogger().With().Str("component", "gemini_client").Logger(),
	}
}

// SetBaseURL overrides the API endpoint (used by tests)
func (c *GeminiClient) SetBaseURL(url string) {
	c.baseURL = strings.TrimSuffix(url, "/")
}

// Summarize sends the transcript to Gemini and decodes the structured
// summary. Malformed model output is surfaced in Result.Error, never as a
// transport failure; only network-level problems return a non-nil error.
func (c *GeminiClient) Summarize(ctx context.Context, text string, summaryType Type) (*Result, error) {
	start := time.Now()

	if c.apiKey == "" {
		// Transcription works without Gemini; summaries just say so
		return &Result{
			Type:  summaryType,
			Error: "Gemini AI not configured. Please add GEMINI_API_KEY to your environment variables.",
		}, nil
	}

	prompt := promptFor(summaryType, text)

	body, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.baseURL, c.model)

	var raw string
	err = c.breaker.Call(func() error {
		return resilience.Retry(func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
			if err != nil {
				return fmt.Errorf("failed to create request: %w", err)
			}
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("x-goog-api-key", c.apiKey)

			resp, err := c.httpClient.Do(req)
			if err != nil {
				return fmt.Errorf("failed to call gemini: %w", err)
			}
			defer resp.Body.Close()

			respBody, err := io.ReadAll(resp.Body)
			if err != nil {
				return fmt.Errorf("failed to read gemini response: %w", err)
			}

			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("gemini API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
			}

			var decoded geminiResponse
			if err := json.Unmarshal(respBody, &decoded); err != nil {
				return fmt.Errorf("failed to decode gemini response: %w", err)
			}
			if len(decoded.Candidates) == 0 || len(decoded.Candidates[0].Content.Parts) == 0 {
				return fmt.Errorf("gemini response contained no candidates")
			}

			raw = decoded.Candidates[0].Content.Parts[0].Text
			return nil
		}, c.retry, resilience.IsRetryableNetworkError)
	})

	observability.UpdateCircuitBreakerState(c.breaker.Name(), int(c.breaker.GetState()))
	if err != nil {
		observability.IncrementCircuitBreakerFailures(c.breaker.Name())
		observability.RecordSummaryRequest(string(summaryType), false, time.Since(start))
		return nil, err
	}

	result := c.decodeResult(raw, summaryType)
	observability.RecordSummaryRequest(string(summaryType), result.Error == "", time.Since(start))

	c.logger.Info().
		Str("summary_type", string(summaryType)).
		Int("transcript_chars", len(text)).
		Dur("elapsed", time.Since(start)).
		Bool("parsed", result.Error == "").
		Msg("summarization completed")

	return result, nil
}

// decodeResult parses the model's JSON answer, tolerating markdown fences
func (c *GeminiClient) decodeResult(raw string, summaryType Type) *Result {
	cleaned := stripCodeFence(raw)

	var result Result
	if err := json.Unmarshal([]byte(cleaned), &result); err != nil {
		c.logger.Warn().Err(err).Msg("gemini returned non-JSON summary")
		return &Result{
			Summary:     "AI generated a response but it wasn't in the expected format.",
			Type:        summaryType,
			RawResponse: raw,
			Error:       "Response format error - see raw_response for actual AI output",
		}
	}

	result.Type = summaryType
	result.RawResponse = raw
	return &result
}

// stripCodeFence removes a surrounding markdown code block, if present.
// Models often wrap JSON in ```json ... ``` despite being asked not to.
func stripCodeFence(s string) string {
	cleaned := strings.TrimSpace(s)

	if strings.HasPrefix(cleaned, "```json") && strings.HasSuffix(cleaned, "```") {
		cleaned = cleaned[len("```json") : len(cleaned)-len("```")]
	} else if strings.HasPrefix(cleaned, "```") && strings.HasSuffix(cleaned, "```") && len(cleaned) > 6 {
		cleaned = cleaned[3 : len(cleaned)-3]
	}

	return strings.TrimSpace(cleaned)
}
