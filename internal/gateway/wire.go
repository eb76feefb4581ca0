package gateway

import "github.com/ainotetaker/transcription-gateway/internal/summary"

// Frame type tags shared by both directions of the /ws protocol
const (
	frameTypeStart            = "start"
	frameTypeStop             = "stop"
	frameTypeConnectionStatus = "connection_status"
	frameTypeTranscription    = "transcription"
	frameTypeError            = "error"
	frameTypeSummary          = "summary"
)

// Connection status labels shown verbatim in the client UI
const (
	statusConnecting       = "Connecting"
	statusConnected        = "Connected"
	statusUpstreamReady    = "Connected to Deepgram"
	statusEnhancedFeatures = "Enhanced Features Active"
	statusDisconnected     = "Disconnected"
	statusConnectionError  = "Connection Error"
)

// inboundFrame is a client control message. Audio travels as binary frames
// and never goes through JSON.
type inboundFrame struct {
	Type string `json:"type"`
}

// statusFrame reports a connection state change to the client
type statusFrame struct {
	Type   string `json:"type"`
	Status string `json:"status"`
}

// transcriptionFrame carries one recognition result plus the cumulative
// transcript. FullTranscript is always the complete text, never a diff.
type transcriptionFrame struct {
	Type           string `json:"type"`
	Text           string `json:"text"`
	IsFinal        bool   `json:"is_final"`
	FullTranscript string `json:"full_transcript"`
	Speaker        *int   `json:"speaker,omitempty"`
	WordCount      int    `json:"word_count"`
}

// errorFrame reports a session failure cause to the client
type errorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// summaryFrame delivers the automatic post-session summary
type summaryFrame struct {
	Type   string          `json:"type"`
	Result *summary.Result `json:"result"`
}
