// Package session owns the lifecycle of one recording attempt: the state
// machine between an audio-producing client and the speech-recognition
// upstream, transcript assembly, and the auto-summary trigger.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ainotetaker/transcription-gateway/internal/config"
	"github.com/ainotetaker/transcription-gateway/internal/observability"
	"github.com/ainotetaker/transcription-gateway/internal/stt"
	"github.com/ainotetaker/transcription-gateway/internal/summary"
	"github.com/ainotetaker/transcription-gateway/internal/transcript"
)

// EventType discriminates session Event variants
type EventType int

const (
	// EventStatusChanged reports a connection state transition
	EventStatusChanged EventType = iota
	// EventTranscript reports a change to the interim text or final transcript
	EventTranscript
	// EventErrorOccurred reports a failure cause, exactly once per cause
	EventErrorOccurred
	// EventSummaryReady delivers the automatic post-session summary
	EventSummaryReady
)

// Event is the ordered, client-visible output of a session. The message bus
// translates these into wire frames; nothing else emits them.
type Event struct {
	Type EventType

	// State is set for EventStatusChanged
	State State

	// Snapshot and Result are set for EventTranscript. Snapshot carries the
	// full transcript state, Result the recognition result that caused it.
	Snapshot transcript.Snapshot
	Result   *stt.Result

	// Message is set for EventErrorOccurred
	Message string

	// Summary is set for EventSummaryReady
	Summary *summary.Result
}

// Options are the per-session tunables
type Options struct {
	OpenTimeout         time.Duration
	CloseTimeout        time.Duration
	QuietPeriod         time.Duration
	ParseErrorTolerance int
}

// OptionsFrom extracts session tunables from the service configuration
func OptionsFrom(cfg *config.Config) Options {
	return Options{
		OpenTimeout:         time.Duration(cfg.LinkOpenTimeout) * time.Second,
		CloseTimeout:        time.Duration(cfg.LinkCloseTimeout) * time.Second,
		QuietPeriod:         time.Duration(cfg.QuietPeriodMs) * time.Millisecond,
		ParseErrorTolerance: cfg.ParseErrorTolerance,
	}
}

// Session is one end-to-end recording attempt. It owns exactly one upstream
// link while Connecting or Streaming and guarantees the link is released
// before reaching Disconnected, even on error paths.
//
// All mutable state (assembler, link handle, counters) is touched only by the
// Run goroutine; the inbound audio channel, the upstream event channel, and
// the quiet-period timer are serialized there, so no locking is needed around
// transcript assembly.
type Session struct {
	id      string
	opts    Options
	dial    stt.Dialer
	trigger *summary.Trigger
	logger  zerolog.Logger
	metrics *observability.SessionMetrics

	audioIn  chan []byte
	stopCh   chan struct{}
	stopOnce sync.Once
	events   chan Event
	done     chan struct{}

	mu           sync.RWMutex
	state        State
	lastActivity time.Time

	// Run-goroutine-only state
	link          stt.Link
	asm           *transcript.Assembler
	droppedChunks int
	warningCount  int
}

// New creates a session. Call Run (usually in its own goroutine) to drive it.
func New(id string, opts Options, dial stt.Dialer, summarizer summary.Client, logger zerolog.Logger) *Session {
	return &Session{
		id:      id,
		opts:    opts,
		dial:    dial,
		trigger: summary.NewTrigger(opts.QuietPeriod, summarizer, logger),
		logger:  logger,
		metrics: observability.NewSessionMetrics(id),
		audioIn: make(chan []byte, 100),
		stopCh:  make(chan struct{}),
		events:  make(chan Event, 256),
		done:    make(chan struct{}),
		state:   StateDisconnected,
		asm:     transcript.New(),
	}
}

// ID returns the session identifier
func (s *Session) ID() string { return s.id }

// Events returns the ordered outbound event stream. It is closed when the
// session has fully settled, including any auto-summary delivery.
func (s *Session) Events() <-chan Event { return s.events }

// Done is closed when Run has returned
func (s *Session) Done() <-chan struct{} { return s.done }

// State returns the current connection state
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// LastActivity returns the time of the last inbound chunk or upstream event
func (s *Session) LastActivity() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastActivity
}

// SendAudio enqueues an inbound audio chunk. Non-blocking: if the session is
// backed up the chunk is dropped and counted, never queued across states.
// Chunks arriving once the session has left its acceptance window (Closing,
// Error, Disconnected) are counted as dropped immediately; nothing consumes
// the queue anymore.
func (s *Session) SendAudio(chunk []byte) {
	switch s.State() {
	case StateConnecting, StateStreaming:
	default:
		s.metrics.RecordAudioDropped()
		return
	}

	select {
	case s.audioIn <- chunk:
	default:
		s.metrics.RecordAudioDropped()
	}
}

// Stop requests session shutdown. Idempotent; also the path taken on client
// disconnect, so transcripts captured before a disconnect are not lost.
func (s *Session) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

// Run drives the session to completion: open the upstream link, stream until
// stop/close/error, tear the link down, then wait out the quiet period and
// deliver at most one automatic summary. Blocks until fully settled.
func (s *Session) Run() {
	defer close(s.done)
	defer close(s.events)

	s.metrics.RecordSessionStart()
	defer s.metrics.RecordSessionEnd()

	s.setState(StateConnecting)

	link, err := s.dial()
	if err != nil {
		s.enterError(fmt.Sprintf("failed to create recognition link: %v", err))
		s.teardown(nil)
		s.settle()
		return
	}
	s.link = link

	openCtx, cancel := context.WithTimeout(context.Background(), s.opts.OpenTimeout)
	err = link.Open(openCtx)
	cancel()
	if err != nil {
		s.enterError(fmt.Sprintf("failed to open recognition link: %v", err))
		s.teardown(link.Events())
		s.settle()
		return
	}

	events := link.Events()
	s.loop(events)
	s.teardown(events)
	s.settle()

	s.logger.Info().
		Int("dropped_chunks", s.droppedChunks).
		Int("speaker_count", s.asm.SpeakerCount()).
		Int("transcript_chars", len(s.asm.Final())).
		Msg("session finished")
}

// loop serializes inbound audio, upstream events, and timers until the
// session exits the Connecting/Streaming states.
func (s *Session) loop(events <-chan stt.RecognitionEvent) {
	openTimer := time.NewTimer(s.opts.OpenTimeout)
	defer openTimer.Stop()

	for {
		select {
		case chunk := <-s.audioIn:
			s.touch()
			if s.State() != StateStreaming {
				// No buffering or replay across states: count and drop
				s.droppedChunks++
				s.metrics.RecordAudioDropped()
				continue
			}
			if err := s.link.Send(chunk); err != nil {
				s.metrics.RecordError("stt_send_error", "session")
				s.enterError(fmt.Sprintf("failed to send audio upstream: %v", err))
				return
			}
			s.metrics.RecordAudioForwarded(len(chunk))

		case ev, ok := <-events:
			if !ok {
				// Upstream event stream ended without a Closed event
				s.setState(StateClosing)
				return
			}
			s.touch()
			s.metrics.RecordRecognitionEvent(ev.Type.String())

			switch ev.Type {
			case stt.EventOpened:
				if s.State() == StateConnecting {
					openTimer.Stop()
					s.setState(StateStreaming)
				}

			case stt.EventResult:
				s.applyResult(ev.Result)

			case stt.EventWarning:
				s.warningCount++
				s.logger.Warn().Str("warning", ev.Warning).Int("count", s.warningCount).Msg("malformed upstream event")
				if s.warningCount > s.opts.ParseErrorTolerance {
					s.metrics.RecordError("parse_error_overflow", "session")
					s.enterError("upstream link produced too many malformed events")
					return
				}

			case stt.EventError:
				s.metrics.RecordError("link_error", "session")
				if s.State() == StateConnecting {
					s.enterError(fmt.Sprintf("failed to open recognition link: %v", ev.Err))
				} else {
					s.enterError(fmt.Sprintf("transcription error: %v", ev.Err))
				}
				return

			case stt.EventClosed:
				s.logger.Info().Int("code", ev.CloseCode).Str("reason", ev.CloseReason).Msg("upstream closed the link")
				s.setState(StateClosing)
				return
			}

		case <-openTimer.C:
			if s.State() == StateConnecting {
				s.enterError("timed out waiting for recognition link to open")
				return
			}

		case <-s.stopCh:
			s.setState(StateClosing)
			return
		}
	}
}

// applyResult folds a recognition result into the transcript and emits a
// transcript event if anything visible changed.
func (s *Session) applyResult(res *stt.Result) {
	if res == nil {
		return
	}

	prev := s.asm.Snapshot()
	snap := s.asm.Apply(*res)

	if res.IsFinal && res.Text != "" {
		s.metrics.RecordSegment()
	}

	if snap.Interim == prev.Interim && snap.Final == prev.Final {
		return
	}
	s.emit(Event{Type: EventTranscript, Snapshot: snap, Result: res})
}

// teardown closes the upstream link, bounded by the close timeout, while
// still absorbing trailing final results. Close failures are logged and
// swallowed: nothing may keep the session from reaching Disconnected.
func (s *Session) teardown(events <-chan stt.RecognitionEvent) {
	if s.link != nil {
		closeDone := make(chan error, 1)
		go func(link stt.Link) { closeDone <- link.Close() }(s.link)

		timeout := time.NewTimer(s.opts.CloseTimeout)
	wait:
		for {
			select {
			case err := <-closeDone:
				if err != nil {
					s.logger.Warn().Err(err).Msg("link close failed")
				}
				break wait
			case ev, ok := <-events:
				if !ok {
					events = nil
					continue
				}
				if ev.Type == stt.EventResult {
					s.applyResult(ev.Result)
				}
			case <-timeout.C:
				s.logger.Warn().Msg("link teardown timed out, forcing disconnect")
				break wait
			}
		}
		timeout.Stop()

		// Absorb anything already buffered before releasing the link
	drain:
		for events != nil {
			select {
			case ev, ok := <-events:
				if !ok {
					break drain
				}
				if ev.Type == stt.EventResult {
					s.applyResult(ev.Result)
				}
			default:
				break drain
			}
		}

		s.link = nil
	}

	s.setState(StateDisconnected)
}

// settle waits out the quiet period and delivers the automatic summary, if
// the trigger produces one.
func (s *Session) settle() {
	result := s.trigger.Settle(context.Background(), s.asm.Final)
	if result != nil {
		s.emit(Event{Type: EventSummaryReady, Summary: result})
	}
}

// enterError reports a failure cause to the client (exactly once) and moves
// the session into the Error state.
func (s *Session) enterError(cause string) {
	s.logger.Error().Str("cause", cause).Msg("session error")
	s.emit(Event{Type: EventErrorOccurred, Message: cause})
	s.setState(StateError)
}

// setState performs a validated state transition and emits a status event
func (s *Session) setState(next State) {
	s.mu.Lock()
	from := s.state
	if from == next {
		s.mu.Unlock()
		return
	}
	if !from.CanTransition(next) {
		s.mu.Unlock()
		s.logger.Error().Str("from", from.String()).Str("to", next.String()).Msg("illegal state transition")
		return
	}
	s.state = next
	s.mu.Unlock()

	s.logger.Info().Str("from", from.String()).Str("to", next.String()).Msg("session state changed")
	s.emit(Event{Type: EventStatusChanged, State: next})
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

// emit delivers an event on the ordered outbound stream. Events are never
// dropped: when the bus consumer falls behind, the run loop waits, which
// suspends only this session. The consumer drains the channel until it is
// closed, so a blocked emit always completes.
func (s *Session) emit(ev Event) {
	s.events <- ev
}
