package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ainotetaker/transcription-gateway/internal/config"
	"github.com/ainotetaker/transcription-gateway/internal/stt"
	"github.com/ainotetaker/transcription-gateway/internal/summary"
)

// scriptedLink is a fake upstream link driven by the test
type scriptedLink struct {
	mu     sync.Mutex
	sent   [][]byte
	events chan stt.RecognitionEvent
}

func newScriptedLink() *scriptedLink {
	return &scriptedLink{events: make(chan stt.RecognitionEvent, 32)}
}

func (l *scriptedLink) Open(ctx context.Context) error { return nil }

func (l *scriptedLink) Send(audio []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sent = append(l.sent, audio)
	return nil
}

func (l *scriptedLink) Events() <-chan stt.RecognitionEvent { return l.events }

func (l *scriptedLink) Close() error { return nil }

func (l *scriptedLink) sentCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.sent)
}

// scriptedDialer hands out a fresh link per session and remembers them
type scriptedDialer struct {
	mu    sync.Mutex
	links []*scriptedLink
}

func (d *scriptedDialer) dial() (stt.Link, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	link := newScriptedLink()
	d.links = append(d.links, link)
	return link, nil
}

func (d *scriptedDialer) link(i int) *scriptedLink {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.links[i]
}

// wireFrame is a union of every outbound frame shape, for decoding in tests
type wireFrame struct {
	Type           string          `json:"type"`
	Status         string          `json:"status"`
	Message        string          `json:"message"`
	Text           string          `json:"text"`
	IsFinal        bool            `json:"is_final"`
	FullTranscript string          `json:"full_transcript"`
	Speaker        *int            `json:"speaker"`
	WordCount      int             `json:"word_count"`
	Result         *summary.Result `json:"result"`
}

func gatewayConfig() *config.Config {
	return &config.Config{
		MaxSessions:         4,
		LinkOpenTimeout:     2,
		LinkCloseTimeout:    1,
		QuietPeriodMs:       10,
		ParseErrorTolerance: 5,
	}
}

func startGateway(t *testing.T, dialer *scriptedDialer, summarizer summary.Client, maxSessions int) *websocket.Conn {
	t.Helper()

	registry := NewRegistry(maxSessions)
	handler := NewHandler(gatewayConfig(), dialer.dial, summarizer, registry)

	server := httptest.NewServer(http.HandlerFunc(handler.ServeWS))
	t.Cleanup(server.Close)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) wireFrame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err, "expected another frame")

	var frame wireFrame
	require.NoError(t, json.Unmarshal(data, &frame))
	return frame
}

func expectStatus(t *testing.T, conn *websocket.Conn, status string) {
	t.Helper()
	frame := readFrame(t, conn)
	require.Equal(t, frameTypeConnectionStatus, frame.Type)
	assert.Equal(t, status, frame.Status)
}

func sendControl(t *testing.T, conn *websocket.Conn, msgType string) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(inboundFrame{Type: msgType}))
}

// startStreaming walks a connection through start and the upstream open
// handshake, returning the session's link.
func startStreaming(t *testing.T, conn *websocket.Conn, dialer *scriptedDialer, sessionIndex int) *scriptedLink {
	t.Helper()
	sendControl(t, conn, frameTypeStart)
	expectStatus(t, conn, statusConnecting)

	require.Eventually(t, func() bool {
		dialer.mu.Lock()
		defer dialer.mu.Unlock()
		return len(dialer.links) > sessionIndex
	}, time.Second, 5*time.Millisecond, "session never dialed upstream")

	link := dialer.link(sessionIndex)
	link.events <- stt.RecognitionEvent{Type: stt.EventOpened}
	expectStatus(t, conn, statusUpstreamReady)
	expectStatus(t, conn, statusEnhancedFeatures)
	return link
}

func TestGateway_EndToEnd(t *testing.T) {
	dialer := &scriptedDialer{}
	summarizer := &stubSummarizer{result: &summary.Result{Summary: "the meeting summary", Type: summary.TypeMeeting}}
	conn := startGateway(t, dialer, summarizer, 4)

	expectStatus(t, conn, statusConnected)
	link := startStreaming(t, conn, dialer, 0)

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, []byte{0x01, 0x02}))
	require.Eventually(t, func() bool { return link.sentCount() == 1 }, time.Second, 5*time.Millisecond)

	speaker := 0
	link.events <- stt.RecognitionEvent{Type: stt.EventResult, Result: &stt.Result{Text: "hello wor", Speaker: &speaker, WordCount: 2}}
	frame := readFrame(t, conn)
	require.Equal(t, frameTypeTranscription, frame.Type)
	assert.Equal(t, "hello wor", frame.Text)
	assert.False(t, frame.IsFinal)
	assert.Equal(t, "", frame.FullTranscript)

	link.events <- stt.RecognitionEvent{Type: stt.EventResult, Result: &stt.Result{Text: "hello world", IsFinal: true, Speaker: &speaker, WordCount: 2}}
	frame = readFrame(t, conn)
	require.Equal(t, frameTypeTranscription, frame.Type)
	assert.Equal(t, "hello world", frame.Text)
	assert.True(t, frame.IsFinal)
	assert.Equal(t, "hello world", frame.FullTranscript)
	require.NotNil(t, frame.Speaker)
	assert.Equal(t, 0, *frame.Speaker)
	assert.Equal(t, 2, frame.WordCount)

	sendControl(t, conn, frameTypeStop)
	expectStatus(t, conn, statusDisconnected)

	frame = readFrame(t, conn)
	require.Equal(t, frameTypeSummary, frame.Type)
	require.NotNil(t, frame.Result)
	assert.Equal(t, "the meeting summary", frame.Result.Summary)

	assert.Equal(t, "hello world", summarizer.lastText)
	assert.Equal(t, summary.TypeMeeting, summarizer.lastType)
}

func TestGateway_SessionLimit(t *testing.T) {
	conn := startGateway(t, &scriptedDialer{}, &stubSummarizer{}, 0)

	expectStatus(t, conn, statusConnected)
	sendControl(t, conn, frameTypeStart)

	frame := readFrame(t, conn)
	require.Equal(t, frameTypeError, frame.Type)
	assert.Contains(t, frame.Message, "session limit reached")
}

func TestGateway_DoubleStart(t *testing.T) {
	dialer := &scriptedDialer{}
	conn := startGateway(t, dialer, &stubSummarizer{}, 4)

	expectStatus(t, conn, statusConnected)
	sendControl(t, conn, frameTypeStart)
	expectStatus(t, conn, statusConnecting)

	sendControl(t, conn, frameTypeStart)
	frame := readFrame(t, conn)
	require.Equal(t, frameTypeError, frame.Type)
	assert.Equal(t, "session already started", frame.Message)
}

func TestGateway_UnknownMessageType(t *testing.T) {
	conn := startGateway(t, &scriptedDialer{}, &stubSummarizer{}, 4)

	expectStatus(t, conn, statusConnected)
	sendControl(t, conn, "rewind")

	frame := readFrame(t, conn)
	require.Equal(t, frameTypeError, frame.Type)
	assert.Contains(t, frame.Message, "unknown message type")
}

func TestGateway_MalformedControlMessage(t *testing.T) {
	conn := startGateway(t, &scriptedDialer{}, &stubSummarizer{}, 4)

	expectStatus(t, conn, statusConnected)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))

	frame := readFrame(t, conn)
	require.Equal(t, frameTypeError, frame.Type)
	assert.Equal(t, "malformed control message", frame.Message)
}

func TestGateway_AudioBeforeStartIsIgnored(t *testing.T) {
	dialer := &scriptedDialer{}
	conn := startGateway(t, dialer, &stubSummarizer{}, 4)

	expectStatus(t, conn, statusConnected)
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, []byte{0x01}))

	// No start has been sent, so no session and no upstream dial
	time.Sleep(20 * time.Millisecond)
	dialer.mu.Lock()
	defer dialer.mu.Unlock()
	assert.Empty(t, dialer.links)
}

func TestGateway_RestartAfterSessionEnds(t *testing.T) {
	dialer := &scriptedDialer{}
	conn := startGateway(t, dialer, &stubSummarizer{}, 4)

	expectStatus(t, conn, statusConnected)
	startStreaming(t, conn, dialer, 0)

	sendControl(t, conn, frameTypeStop)
	expectStatus(t, conn, statusDisconnected)

	// Let the first session fully settle (empty transcript, no summary frame)
	time.Sleep(100 * time.Millisecond)

	// The finished session cannot be revived, but the same connection can
	// host a brand new one with its own upstream link
	startStreaming(t, conn, dialer, 1)
}

func TestGateway_ErrorFrameOnUpstreamFailure(t *testing.T) {
	dialer := &scriptedDialer{}
	conn := startGateway(t, dialer, &stubSummarizer{}, 4)

	expectStatus(t, conn, statusConnected)
	link := startStreaming(t, conn, dialer, 0)

	link.events <- stt.RecognitionEvent{Type: stt.EventError, Err: assert.AnError}

	frame := readFrame(t, conn)
	require.Equal(t, frameTypeError, frame.Type)
	assert.Contains(t, frame.Message, "transcription error")

	expectStatus(t, conn, statusConnectionError)
	expectStatus(t, conn, statusDisconnected)
}
