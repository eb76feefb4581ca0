package stt

import (
	"context"
	"fmt"
	"sync"
	"time"

	websocketv1api "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket"
	msginterfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket/interfaces"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	listenClient "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"
	"github.com/rs/zerolog"

	"github.com/ainotetaker/transcription-gateway/internal/config"
	"github.com/ainotetaker/transcription-gateway/internal/observability"
	"github.com/ainotetaker/transcription-gateway/internal/resilience"
)

// callbackHandler implements the LiveMessageCallback interface.
// It embeds the default handler and overrides only the methods we need.
type callbackHandler struct {
	*websocketv1api.DefaultCallbackHandler
	link *DeepgramLink
}

// Open fires once the upstream WebSocket handshake succeeds
func (h *callbackHandler) Open(or *msginterfaces.OpenResponse) error {
	h.link.emit(RecognitionEvent{Type: EventOpened})
	return nil
}

// Message fires on every interim or final transcript from Deepgram
func (h *callbackHandler) Message(mr *msginterfaces.MessageResponse) error {
	h.link.handleMessage(mr)
	return nil
}

// Close fires when the upstream WebSocket closes
func (h *callbackHandler) Close(cr *msginterfaces.CloseResponse) error {
	h.link.emit(RecognitionEvent{
		Type:        EventClosed,
		CloseCode:   1000,
		CloseReason: "upstream closed",
	})
	return nil
}

// Error fires if Deepgram reports a problem during streaming
func (h *callbackHandler) Error(er *msginterfaces.ErrorResponse) error {
	h.link.emit(RecognitionEvent{
		Type: EventError,
		Err:  fmt.Errorf("deepgram error: %s", er.Description),
	})
	return nil
}

// UnhandledEvent fires for payloads the SDK could not parse
func (h *callbackHandler) UnhandledEvent(byData []byte) error {
	h.link.emit(RecognitionEvent{
		Type:    EventWarning,
		Warning: fmt.Sprintf("unhandled upstream payload (%d bytes)", len(byData)),
	})
	return nil
}

// DeepgramLink implements Link over Deepgram's streaming WebSocket API
type DeepgramLink struct {
	cfg     *config.Config
	breaker *resilience.CircuitBreaker
	logger  zerolog.Logger

	events chan RecognitionEvent
	done   chan struct{}

	mu     sync.RWMutex
	client *listenClient.WSCallback
	open   bool
}

// NewDeepgramDialer returns a Dialer producing Deepgram links. All links share
// one circuit breaker so repeated upstream failures reject new opens fast.
func NewDeepgramDialer(cfg *config.Config) Dialer {
	breaker := resilience.NewCircuitBreaker(
		"deepgram",
		cfg.CircuitBreakerMaxFailures,
		time.Duration(cfg.CircuitBreakerResetTimeout)*time.Second,
	)

	return func() (Link, error) {
		return &DeepgramLink{
			cfg:     cfg,
			breaker: breaker,
			logger:  observability.GetLogger().With().Str("component", "deepgram_link").Logger(),
			events:  make(chan RecognitionEvent, 100),
			done:    make(chan struct{}),
		}, nil
	}
}

// Open starts the Deepgram streaming connection. The EventOpened on Events
// signals readiness to accept audio.
func (l *DeepgramLink) Open(ctx context.Context) error {
	err := l.breaker.Call(func() error {
		return l.connect(ctx)
	})

	observability.UpdateCircuitBreakerState(l.breaker.Name(), int(l.breaker.GetState()))
	if err != nil {
		observability.IncrementCircuitBreakerFailures(l.breaker.Name())
	}
	return err
}

func (l *DeepgramLink) connect(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.open {
		return fmt.Errorf("recognition link is already open")
	}

	// Live options matching the note-taker feature set: diarization for
	// speaker tags, punctuation and smart formatting for readable text,
	// interim results for live feedback. Encoding is left unset so Deepgram
	// autodetects the browser's container format.
	tOptions := &interfaces.LiveTranscriptionOptions{
		Model:          l.cfg.DeepgramModel,
		Language:       l.cfg.DeepgramLanguage,
		Diarize:        true,
		Punctuate:      true,
		SmartFormat:    true,
		InterimResults: true,
		UtteranceEndMs: "1000",
		VadEvents:      true,
	}

	callback := &callbackHandler{
		DefaultCallbackHandler: websocketv1api.NewDefaultCallbackHandler(),
		link:                   l,
	}

	client, err := listenClient.NewWSUsingCallback(
		ctx,
		l.cfg.DeepgramAPIKey,
		nil, // ClientOptions - nil uses defaults
		tOptions,
		callback,
	)
	if err != nil {
		return fmt.Errorf("failed to create deepgram client: %w", err)
	}

	if !client.Connect() {
		return fmt.Errorf("deepgram websocket handshake failed")
	}

	l.client = client
	l.open = true

	l.logger.Info().
		Str("model", l.cfg.DeepgramModel).
		Str("language", l.cfg.DeepgramLanguage).
		Msg("Deepgram streaming link opened")
	return nil
}

// handleMessage translates a Deepgram message into a RecognitionEvent
func (l *DeepgramLink) handleMessage(mr *msginterfaces.MessageResponse) {
	if mr == nil {
		return
	}

	switch mr.Type {
	case "Results", "Message":
		if len(mr.Channel.Alternatives) == 0 {
			l.emit(RecognitionEvent{Type: EventWarning, Warning: "result with no alternatives"})
			return
		}

		// Best alternative first
		alt := mr.Channel.Alternatives[0]

		var speaker *int
		if len(alt.Words) > 0 {
			if sp := alt.Words[0].Speaker; sp != nil {
				v := *sp
				speaker = &v
			}
		}

		l.emit(RecognitionEvent{
			Type: EventResult,
			Result: &Result{
				Text:      alt.Transcript,
				IsFinal:   mr.IsFinal,
				Speaker:   speaker,
				WordCount: len(alt.Words),
			},
		})

	case "Metadata", "SpeechStarted", "UtteranceEnd":
		// Informational; nothing for the assembler

	default:
		l.emit(RecognitionEvent{
			Type:    EventWarning,
			Warning: fmt.Sprintf("unknown upstream message type: %s", mr.Type),
		})
	}
}

// emit delivers an event in arrival order. The owning session drains Events
// until it has closed the link, so a full buffer only blocks while the session
// is backlogged; once the link is closed the event has no consumer and is
// discarded.
func (l *DeepgramLink) emit(ev RecognitionEvent) {
	select {
	case l.events <- ev:
	case <-l.done:
		l.logger.Debug().Str("event", ev.Type.String()).Msg("upstream event after link close, discarding")
	}
}

// Send forwards an audio chunk to Deepgram
func (l *DeepgramLink) Send(audio []byte) error {
	l.mu.RLock()
	client := l.client
	open := l.open
	l.mu.RUnlock()

	if !open || client == nil {
		return fmt.Errorf("recognition link is not open")
	}

	if _, err := client.Write(audio); err != nil {
		l.breaker.RecordResult(false)
		observability.IncrementCircuitBreakerFailures(l.breaker.Name())
		return fmt.Errorf("failed to send audio upstream: %w", err)
	}
	return nil
}

// Events returns the ordered upstream event stream
func (l *DeepgramLink) Events() <-chan RecognitionEvent {
	return l.events
}

// Close finishes the Deepgram stream and marks the link unusable
func (l *DeepgramLink) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.open {
		return nil
	}

	// Finish flushes any buffered audio and closes the upstream socket
	l.client.Finish()
	l.client = nil
	l.open = false
	close(l.done)

	l.logger.Info().Msg("Deepgram streaming link closed")
	return nil
}
