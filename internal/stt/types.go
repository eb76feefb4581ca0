package stt

import "context"

// EventType discriminates RecognitionEvent variants
type EventType int

const (
	// EventOpened signals the link is ready to accept audio
	EventOpened EventType = iota
	// EventResult carries an interim or final recognition result
	EventResult
	// EventWarning carries a non-fatal protocol anomaly (malformed upstream payload)
	EventWarning
	// EventError signals the link is no longer usable
	EventError
	// EventClosed signals the upstream closed the link
	EventClosed
)

// String returns the event type name for logging and metrics
func (t EventType) String() string {
	switch t {
	case EventOpened:
		return "opened"
	case EventResult:
		return "result"
	case EventWarning:
		return "warning"
	case EventError:
		return "error"
	case EventClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Result is a single recognition hypothesis from the upstream engine.
// Interim results (IsFinal=false) may be superseded by a later result for the
// same utterance; final results are terminal and must never be revised.
type Result struct {
	// Text is the transcribed text
	Text string

	// IsFinal indicates a terminal result for the current utterance
	IsFinal bool

	// Speaker is the diarization tag for this result, if available
	Speaker *int

	// WordCount is the number of recognized words in this result
	WordCount int
}

// RecognitionEvent is a tagged variant of everything the upstream link can
// report. Exactly one payload field is meaningful per Type.
type RecognitionEvent struct {
	Type EventType

	// Result is set for EventResult
	Result *Result

	// Warning is set for EventWarning
	Warning string

	// Err is set for EventError
	Err error

	// CloseCode and CloseReason are set for EventClosed
	CloseCode   int
	CloseReason string
}

// Link is a duplex channel to the external speech-recognition engine. A Link
// is single-use: opened once, closed once, never reopened.
type Link interface {
	// Open starts the upstream connection. Readiness is signaled by an
	// EventOpened on Events, not by Open returning.
	Open(ctx context.Context) error

	// Send forwards an audio chunk upstream. Fire-and-forget: no
	// backpressure signal is assumed.
	Send(audio []byte) error

	// Events returns the ordered upstream event stream
	Events() <-chan RecognitionEvent

	// Close tears the link down and releases its resources
	Close() error
}

// Dialer creates a fresh Link for a new session. Sessions never share links.
type Dialer func() (Link, error)
