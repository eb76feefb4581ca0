// Package gateway is the client-facing surface of the service: the /ws
// message bus that bridges browser clients to transcription sessions, and
// the REST summarization endpoint.
package gateway

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/ainotetaker/transcription-gateway/internal/config"
	"github.com/ainotetaker/transcription-gateway/internal/observability"
	"github.com/ainotetaker/transcription-gateway/internal/session"
	"github.com/ainotetaker/transcription-gateway/internal/stt"
	"github.com/ainotetaker/transcription-gateway/internal/summary"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Browser clients connect from the app origin; tighten this when the
		// deployment origin is known
		return true
	},
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// Handler serves the /ws endpoint. One WebSocket connection hosts at most one
// live session at a time; a finished session can be followed by a fresh start
// on the same connection.
type Handler struct {
	opts       session.Options
	dial       stt.Dialer
	summarizer summary.Client
	registry   *Registry
	logger     zerolog.Logger
}

// NewHandler creates the WebSocket handler
func NewHandler(cfg *config.Config, dial stt.Dialer, summarizer summary.Client, registry *Registry) *Handler {
	return &Handler{
		opts:       session.OptionsFrom(cfg),
		dial:       dial,
		summarizer: summarizer,
		registry:   registry,
		logger:     observability.GetLogger().With().Str("component", "gateway").Logger(),
	}
}

// writeTimeout bounds each outbound frame write so a dead peer turns into a
// write error instead of a stuck pump.
const writeTimeout = 10 * time.Second

// wsWriter serializes writes to one WebSocket connection. The read loop and
// the session event pump both write frames, and gorilla permits only one
// concurrent writer.
type wsWriter struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (w *wsWriter) writeJSON(v interface{}) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return w.conn.WriteJSON(v)
}

// ServeWS upgrades the request and runs the connection's read loop until the
// client goes away. Client disconnect stops the live session but still lets
// it settle, so the transcript captured so far is not lost.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	connID := observability.NewCorrelationID()
	logger := h.logger.With().Str("connection_id", connID).Logger()
	logger.Info().Str("remote", r.RemoteAddr).Msg("client connected")

	client := &wsWriter{conn: conn}

	// Bus-level acknowledgement that the socket is attached. Session states
	// produce their own status frames once a start arrives.
	if err := client.writeJSON(statusFrame{Type: frameTypeConnectionStatus, Status: statusConnected}); err != nil {
		logger.Warn().Err(err).Msg("failed to send attach acknowledgement")
		return
	}

	var sess *session.Session
	var pumpDone chan struct{}

	defer func() {
		if sess != nil {
			sess.Stop()
			// Wait for the session to settle so the registry slot is freed
			// and trailing events are drained, even though the socket is gone
			<-pumpDone
		}
		logger.Info().Msg("client disconnected")
	}()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn().Err(err).Msg("websocket read failed")
			}
			return
		}

		switch msgType {
		case websocket.BinaryMessage:
			// Audio before a start (or after a session died) has no session
			// to land in and is dropped
			if sess != nil {
				sess.SendAudio(data)
			}

		case websocket.TextMessage:
			var frame inboundFrame
			if err := json.Unmarshal(data, &frame); err != nil {
				logger.Warn().Err(err).Msg("malformed control message")
				client.writeJSON(errorFrame{Type: frameTypeError, Message: "malformed control message"})
				continue
			}

			switch frame.Type {
			case frameTypeStart:
				if sess != nil {
					select {
					case <-sess.Done():
						// Previous attempt finished; a fresh start creates a
						// brand new session rather than reviving the old one
						<-pumpDone
						sess = nil
					default:
						client.writeJSON(errorFrame{Type: frameTypeError, Message: "session already started"})
						continue
					}
				}

				sessionID := uuid.NewString()
				sessionLogger := observability.WithSession(sessionID).With().Str("connection_id", connID).Logger()
				next := session.New(sessionID, h.opts, h.dial, h.summarizer, sessionLogger)
				if err := h.registry.Acquire(next); err != nil {
					logger.Warn().Int("active", h.registry.Active()).Msg("session rejected, limit reached")
					client.writeJSON(errorFrame{Type: frameTypeError, Message: "session limit reached, try again later"})
					continue
				}

				sess = next
				pumpDone = make(chan struct{})
				logger.Info().Str("session_id", sess.ID()).Msg("session starting")
				go h.pump(sess, client, pumpDone, logger)
				go sess.Run()

			case frameTypeStop:
				if sess != nil {
					sess.Stop()
				}

			default:
				client.writeJSON(errorFrame{Type: frameTypeError, Message: fmt.Sprintf("unknown message type: %s", frame.Type)})
			}
		}
	}
}

// pump translates one session's event stream into wire frames, preserving
// event order. It runs until the session settles and then frees its registry
// slot. Write failures are expected after client disconnect and only logged.
func (h *Handler) pump(sess *session.Session, client *wsWriter, done chan struct{}, logger zerolog.Logger) {
	defer close(done)
	defer h.registry.Release(sess.ID())

	for ev := range sess.Events() {
		var err error

		switch ev.Type {
		case session.EventStatusChanged:
			label, visible := statusLabel(ev.State)
			if !visible {
				continue
			}
			err = client.writeJSON(statusFrame{Type: frameTypeConnectionStatus, Status: label})
			if err == nil && ev.State == session.StateStreaming {
				err = client.writeJSON(statusFrame{Type: frameTypeConnectionStatus, Status: statusEnhancedFeatures})
			}

		case session.EventTranscript:
			err = client.writeJSON(transcriptionFrame{
				Type:           frameTypeTranscription,
				Text:           ev.Result.Text,
				IsFinal:        ev.Result.IsFinal,
				FullTranscript: ev.Snapshot.Final,
				Speaker:        ev.Result.Speaker,
				WordCount:      ev.Result.WordCount,
			})

		case session.EventErrorOccurred:
			err = client.writeJSON(errorFrame{Type: frameTypeError, Message: ev.Message})

		case session.EventSummaryReady:
			err = client.writeJSON(summaryFrame{Type: frameTypeSummary, Result: ev.Summary})
		}

		if err != nil {
			logger.Debug().Err(err).Str("session_id", sess.ID()).Msg("frame write failed, client likely gone")
		}
	}
}

// statusLabel maps a session state to its wire label. Closing is internal
// and produces no frame.
func statusLabel(state session.State) (string, bool) {
	switch state {
	case session.StateConnecting:
		return statusConnecting, true
	case session.StateStreaming:
		return statusUpstreamReady, true
	case session.StateDisconnected:
		return statusDisconnected, true
	case session.StateError:
		return statusConnectionError, true
	default:
		return "", false
	}
}
