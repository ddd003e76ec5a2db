package transport

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/danmuck/roomlink/internal/testutil/testlog"
)

type closeEvent struct {
	code   int
	reason string
}

type recordingHandler struct {
	mu      sync.Mutex
	events  []string
	opened  chan Session
	closed  chan closeEvent
	onOpen  func(s Session)
	nCloses int
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{
		opened: make(chan Session, 1),
		closed: make(chan closeEvent, 4),
	}
}

func (h *recordingHandler) Opened(s Session) {
	h.mu.Lock()
	h.events = append(h.events, "opened")
	h.mu.Unlock()
	if h.onOpen != nil {
		h.onOpen(s)
	}
	h.opened <- s
}

func (h *recordingHandler) Frame(data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, string(data))
}

func (h *recordingHandler) Closed(code int, reason string) {
	h.mu.Lock()
	h.nCloses++
	h.events = append(h.events, "closed")
	h.mu.Unlock()
	h.closed <- closeEvent{code: code, reason: reason}
}

func (h *recordingHandler) snapshot() ([]string, int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(h.events))
	copy(out, h.events)
	return out, h.nCloses
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func newPeer(t *testing.T, serve func(conn *websocket.Conn)) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		serve(conn)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.ConnectTimeout = 500 * time.Millisecond
	cfg.HandshakeTimeout = 500 * time.Millisecond
	cfg.WriteTimeout = 500 * time.Millisecond
	cfg.Backoff = BackoffConfig{InitialDelay: 5 * time.Millisecond, Multiplier: 1.5, MaxDelay: 20 * time.Millisecond}
	return cfg
}

func TestWebsocketSessionDeliversFramesInOrderAndClosesOnce(t *testing.T) {
	testlog.Start(t)

	srv := newPeer(t, func(conn *websocket.Conn) {
		_, first, err := conn.ReadMessage()
		if err != nil {
			return
		}
		for _, frame := range []string{"echo:" + string(first), "two", "three"} {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
				return
			}
		}
		_ = conn.WriteMessage(websocket.BinaryMessage, []byte{0x1})
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(4000, "bye"), time.Now().Add(time.Second))
		_, _, _ = conn.ReadMessage()
	})

	h := newRecordingHandler()
	h.onOpen = func(s Session) {
		require.NoError(t, s.Send(context.Background(), []byte("hello")))
	}
	s, err := NewWebsocketDialer(testConfig()).Open(context.Background(), wsURL(srv), h)
	require.NoError(t, err)
	defer s.Close()

	select {
	case ev := <-h.closed:
		require.Equal(t, 4000, ev.code)
		require.Equal(t, "bye", ev.reason)
	case <-time.After(2 * time.Second):
		t.Fatalf("close notification not delivered")
	}

	require.NoError(t, s.Close())
	events, closes := h.snapshot()
	require.Equal(t, []string{"opened", "echo:hello", "two", "three", "closed"}, events)
	require.Equal(t, 1, closes)
}

func TestWebsocketSessionLocalCloseReportsNormal(t *testing.T) {
	testlog.Start(t)

	srv := newPeer(t, func(conn *websocket.Conn) {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	h := newRecordingHandler()
	s, err := NewWebsocketDialer(testConfig()).Open(context.Background(), wsURL(srv), h)
	require.NoError(t, err)

	require.NoError(t, s.Close())
	select {
	case ev := <-h.closed:
		require.Equal(t, CloseNormal, ev.code)
	case <-time.After(2 * time.Second):
		t.Fatalf("close notification not delivered")
	}

	err = s.Send(context.Background(), []byte("late"))
	require.ErrorIs(t, err, ErrSend)
	require.ErrorIs(t, err, ErrSessionClosed)

	ws, ok := s.(*websocketSession)
	require.True(t, ok)
	select {
	case <-ws.Done():
	case <-time.After(time.Second):
		t.Fatalf("read loop did not exit")
	}
	_, closes := h.snapshot()
	require.Equal(t, 1, closes)
}

func TestWebsocketDialerRetriesThenFails(t *testing.T) {
	testlog.Start(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	cfg := testConfig()
	cfg.MaxConnectAttempts = 3
	start := time.Now()
	_, err = NewWebsocketDialer(cfg).Open(context.Background(), "ws://"+addr+"/websocket", newRecordingHandler())
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrConnection), "got %v", err)
	require.Less(t, time.Since(start), 2*time.Second)
}

func TestWebsocketDialerHonorsContext(t *testing.T) {
	testlog.Start(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	cfg := testConfig()
	cfg.MaxConnectAttempts = 100
	cfg.Backoff = BackoffConfig{InitialDelay: time.Second, Multiplier: 1}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = NewWebsocketDialer(cfg).Open(ctx, "ws://"+addr, newRecordingHandler())
	require.ErrorIs(t, err, ErrConnection)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWebsocketDialerSharedAcrossGoroutines(t *testing.T) {
	testlog.Start(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	cfg := testConfig()
	cfg.MaxConnectAttempts = 3
	cfg.Backoff.Jitter = true
	dialer := NewWebsocketDialer(cfg)

	const workers = 8
	errs := make(chan error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := dialer.Open(context.Background(), "ws://"+addr, newRecordingHandler())
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.ErrorIs(t, err, ErrConnection)
	}
}
