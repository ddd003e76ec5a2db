package transport

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// WebsocketDialer opens websocket sessions with connect retry.
// It is safe for concurrent use.
type WebsocketDialer struct {
	cfg    Config
	logger zerolog.Logger

	rngMu sync.Mutex
	rng   *rand.Rand
}

func NewWebsocketDialer(cfg Config) *WebsocketDialer {
	return &WebsocketDialer{
		cfg:    cfg.WithDefaults(),
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		logger: log.With().Str("component", "transport").Logger(),
	}
}

// Open dials endpoint, calls h.Opened, then starts the read loop.
func (d *WebsocketDialer) Open(ctx context.Context, endpoint string, h Handler) (Session, error) {
	if h == nil {
		return nil, fmt.Errorf("%w: nil handler", ErrConnection)
	}
	var attempt int
	for {
		attempt++
		conn, err := d.dial(ctx, endpoint)
		if err == nil {
			s := newWebsocketSession(conn, d.cfg, h, d.logger)
			h.Opened(s)
			go s.readLoop()
			return s, nil
		}
		d.logger.Warn().
			Int("attempt", attempt).
			Str("endpoint", endpoint).
			Err(err).
			Msg("dial failed")
		if attempt >= d.cfg.MaxConnectAttempts {
			return nil, fmt.Errorf("%w: %s: %w", ErrConnection, endpoint, err)
		}
		if err := d.sleepBackoff(ctx, attempt); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrConnection, endpoint, err)
		}
	}
}

func (d *WebsocketDialer) dial(ctx context.Context, endpoint string) (*websocket.Conn, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, err
	}
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: d.cfg.HandshakeTimeout,
		NetDialContext:   (&net.Dialer{Timeout: d.cfg.ConnectTimeout}).DialContext,
	}
	if u.Scheme == "wss" {
		tlsCfg, err := clientTLSConfig(d.cfg.TLS, endpoint)
		if err != nil {
			return nil, err
		}
		dialer.TLSClientConfig = tlsCfg
	}

	dialCtx, cancel := context.WithTimeout(ctx, d.cfg.ConnectTimeout+d.cfg.HandshakeTimeout)
	defer cancel()
	conn, _, err := dialer.DialContext(dialCtx, endpoint, nil)
	if err != nil {
		return nil, err
	}
	conn.SetReadLimit(d.cfg.ReadLimit)
	return conn, nil
}

func (d *WebsocketDialer) sleepBackoff(ctx context.Context, attempt int) error {
	d.rngMu.Lock()
	delay := NextBackoffDelay(d.cfg.Backoff, attempt, d.rng)
	d.rngMu.Unlock()
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type websocketSession struct {
	conn    *websocket.Conn
	cfg     Config
	handler Handler
	logger  zerolog.Logger

	writeMu sync.Mutex
	closing atomic.Bool
	done    chan struct{}
}

func newWebsocketSession(conn *websocket.Conn, cfg Config, h Handler, logger zerolog.Logger) *websocketSession {
	return &websocketSession{
		conn:    conn,
		cfg:     cfg,
		handler: h,
		logger:  logger,
		done:    make(chan struct{}),
	}
}

func (s *websocketSession) Send(ctx context.Context, frame []byte) error {
	if s.closing.Load() {
		return fmt.Errorf("%w: %w", ErrSend, ErrSessionClosed)
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	deadline := time.Now().Add(s.cfg.WriteTimeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	if err := s.conn.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("%w: %w", ErrSend, err)
	}
	if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return fmt.Errorf("%w: %w", ErrSend, err)
	}
	return nil
}

// Close sends a normal close frame and tears the connection down. The read
// loop reports the close to the handler.
func (s *websocketSession) Close() error {
	if !s.closing.CompareAndSwap(false, true) {
		return nil
	}
	s.writeMu.Lock()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(s.cfg.WriteTimeout))
	s.writeMu.Unlock()
	return s.conn.Close()
}

// Done is closed once the read loop has exited and Closed was delivered.
func (s *websocketSession) Done() <-chan struct{} {
	return s.done
}

func (s *websocketSession) readLoop() {
	defer close(s.done)

	code, reason := CloseAbnormal, ""
	for {
		typ, data, err := s.conn.ReadMessage()
		if err != nil {
			var closeErr *websocket.CloseError
			switch {
			case errors.As(err, &closeErr):
				code, reason = closeErr.Code, closeErr.Text
			case s.closing.Load():
				code, reason = CloseNormal, "closed by client"
			default:
				reason = err.Error()
			}
			break
		}
		if typ != websocket.TextMessage {
			s.logger.Debug().Int("type", typ).Msg("dropping non-text frame")
			continue
		}
		s.handler.Frame(data)
	}

	s.closing.Store(true)
	_ = s.conn.Close()
	s.logger.Debug().Int("code", code).Str("reason", reason).Msg("session closed")
	s.handler.Closed(code, reason)
}
