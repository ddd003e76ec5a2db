package ddp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danmuck/roomlink/internal/transport"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// State is the connection lifecycle position.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Request outcomes reported to Metrics.
const (
	OutcomeOK      = "ok"
	OutcomeError   = "error"
	OutcomeTimeout = "timeout"
	OutcomeClosed  = "closed"
	OutcomeReset   = "reset"
	OutcomeCancel  = "canceled"
)

type Client struct {
	cfg        Config
	dialer     transport.Dialer
	logger     zerolog.Logger
	echoWriter io.Writer
	echo       *Echo
	metrics    Metrics
	nextID     atomic.Uint64

	// callMu keeps at most one id-bearing request in flight.
	callMu sync.Mutex

	mu               sync.Mutex
	state            State
	session          transport.Session
	pending          *PendingRequest
	wake             chan struct{}
	closeErr         error
	closeRequested   bool
	handshakeOK      bool
	serverSession    string
	suggestedVersion string
}

// New builds an idle client. A nil dialer uses a websocket dialer with
// transport defaults.
func New(cfg Config, dialer transport.Dialer, opts ...Option) (*Client, error) {
	cfg.Endpoint = strings.TrimSpace(cfg.Endpoint)
	if cfg.Endpoint == "" {
		return nil, ErrEndpointRequired
	}
	if len(cfg.Versions) == 0 {
		cfg.Versions = DefaultConfig().Versions
	}
	if dialer == nil {
		dialer = transport.NewWebsocketDialer(transport.DefaultConfig())
	}
	c := &Client{
		cfg:        cfg,
		dialer:     dialer,
		logger:     log.With().Str("component", "ddp").Str("endpoint", cfg.Endpoint).Logger(),
		echoWriter: os.Stderr,
		metrics:    noopMetrics{},
		wake:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if cfg.RawEcho && c.echoWriter != nil {
		c.echo = NewEcho(c.echoWriter)
	}
	return c, nil
}

// Connect opens the transport. The handshake is sent from the opened
// notification; Connect does not wait for the server's connected reply.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateIdle {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("%w: state=%s", ErrAlreadyConnected, state)
	}
	c.state = StateConnecting
	c.mu.Unlock()

	c.logger.Info().Strs("versions", c.cfg.Versions).Msg("connecting")
	if _, err := c.dialer.Open(ctx, c.cfg.Endpoint, handler{c: c}); err != nil {
		c.mu.Lock()
		c.state = StateClosed
		c.closeErr = fmt.Errorf("%w: %w", ErrConnection, err)
		c.mu.Unlock()
		return fmt.Errorf("%w: %w", ErrConnection, err)
	}
	return nil
}

// Close closes the transport. Blocked callers are released by the close
// notification with ErrConnectionClosed.
func (c *Client) Close() error {
	c.mu.Lock()
	s := c.session
	switch {
	case c.state == StateIdle:
		c.state = StateClosed
		c.closeErr = &ClosedError{Code: transport.CloseNormal, Reason: "closed before connect"}
	case c.state == StateConnecting && s == nil:
		// Opened closes the session once the dial completes.
		c.closeRequested = true
	}
	c.mu.Unlock()
	if s == nil {
		return nil
	}
	return s.Close()
}

func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connected reports an open session whose handshake the server accepted.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StateOpen && c.handshakeOK
}

// ServerSession is the session id from the connected message.
func (c *Client) ServerSession() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.serverSession
}

// SuggestedVersion is the version proposed by a failed message, if any.
func (c *Client) SuggestedVersion() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.suggestedVersion
}

// Pending returns a copy of the outstanding request.
func (c *Client) Pending() (PendingRequest, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == nil {
		return PendingRequest{}, false
	}
	return *c.pending, true
}

// NextID returns a fresh request id.
func (c *Client) NextID() string {
	return strconv.FormatUint(c.nextID.Add(1), 10)
}

// Send writes msg. When msg carries an id it blocks until the request is
// satisfied. Method error payloads do not fail Send; use IssueMethod or Call
// to observe them.
func (c *Client) Send(ctx context.Context, msg Message) error {
	_, err := c.send(ctx, msg)
	return err
}

// IssueMethod invokes a remote method and waits for its result and data
// acknowledgments. A server-side error payload is returned as *MethodError.
func (c *Client) IssueMethod(ctx context.Context, name string, params ...any) (string, error) {
	id := c.NextID()
	req, err := c.send(ctx, MethodMessage(id, name, params))
	if err != nil {
		return id, err
	}
	if req.Err != nil {
		return id, req.Err
	}
	return id, nil
}

// Call is IssueMethod returning the raw result payload.
func (c *Client) Call(ctx context.Context, name string, params ...any) (json.RawMessage, error) {
	id := c.NextID()
	req, err := c.send(ctx, MethodMessage(id, name, params))
	if err != nil {
		return nil, err
	}
	if req.Err != nil {
		return nil, req.Err
	}
	return req.Result, nil
}

// IssueSubscription subscribes and waits for ready or nosub. A nosub
// carrying an error for this id is returned as *MethodError.
func (c *Client) IssueSubscription(ctx context.Context, name string, params ...any) (string, error) {
	id := c.NextID()
	req, err := c.send(ctx, SubMessage(id, name, params))
	if err != nil {
		return id, err
	}
	if req.Err != nil {
		return id, req.Err
	}
	return id, nil
}

// Unsubscribe stops subscription id and waits for the server's nosub.
func (c *Client) Unsubscribe(ctx context.Context, id string) error {
	_, err := c.send(ctx, UnsubMessage(id))
	return err
}

func (c *Client) send(ctx context.Context, msg Message) (*PendingRequest, error) {
	if msg.ID == "" {
		return nil, c.write(ctx, msg)
	}

	c.callMu.Lock()
	defer c.callMu.Unlock()

	req := &PendingRequest{ID: msg.ID, Kind: kindOf(msg.Msg), Started: time.Now()}
	c.mu.Lock()
	if c.state == StateClosed {
		err := c.closeErr
		c.mu.Unlock()
		if err == nil {
			err = ErrConnectionClosed
		}
		return req, err
	}
	// Registered before the write so an immediate reply cannot be missed.
	c.pending = req
	c.mu.Unlock()

	if err := c.write(ctx, msg); err != nil {
		c.mu.Lock()
		c.releaseLocked(req)
		c.mu.Unlock()
		c.metrics.RequestDone(req.Kind.String(), OutcomeError, time.Since(req.Started))
		return req, err
	}

	err := c.wait(ctx, req)
	c.metrics.RequestDone(req.Kind.String(), outcomeOf(req, err), time.Since(req.Started))
	if err != nil {
		c.logger.Warn().Str("id", req.ID).Str("kind", req.Kind.String()).Err(err).Msg("request released")
	}
	return req, err
}

func (c *Client) write(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("%w: encode %s: %w", ErrSend, msg.Msg, err)
	}
	c.mu.Lock()
	s := c.session
	c.mu.Unlock()
	if s == nil {
		return fmt.Errorf("%w: %w", ErrSend, ErrNotConnected)
	}
	if c.echo != nil {
		c.echo.Outbound(payload)
	}
	if err := s.Send(ctx, payload); err != nil {
		return fmt.Errorf("%w: %w", ErrSend, err)
	}
	c.metrics.FrameSent(msg.Msg)
	return nil
}

// wait blocks until req is satisfied or released. Every wake re-checks the
// predicate since wakes are broadcast to all waiters.
func (c *Client) wait(ctx context.Context, req *PendingRequest) error {
	var timeout <-chan time.Time
	if c.cfg.CallTimeout > 0 {
		timer := time.NewTimer(c.cfg.CallTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	var stop error
	c.mu.Lock()
	defer c.mu.Unlock()
	for {
		if req.Satisfied() {
			c.releaseLocked(req)
			return nil
		}
		if req.released != nil {
			return req.released
		}
		if stop != nil {
			c.releaseLocked(req)
			return stop
		}

		wake := c.wake
		c.mu.Unlock()
		select {
		case <-wake:
		case <-ctx.Done():
			stop = ctx.Err()
		case <-timeout:
			stop = fmt.Errorf("%w: %s id=%s after %v", ErrTimeout, req.Kind, req.ID, c.cfg.CallTimeout)
		}
		c.mu.Lock()
	}
}

func (c *Client) releaseLocked(req *PendingRequest) {
	if c.pending == req {
		c.pending = nil
	}
}

// resetPendingLocked empties the slot, handing err to its waiter.
func (c *Client) resetPendingLocked(err error) {
	if c.pending != nil {
		c.pending.released = err
		c.pending = nil
	}
}

func (c *Client) broadcastLocked() {
	close(c.wake)
	c.wake = make(chan struct{})
}

func outcomeOf(req *PendingRequest, err error) string {
	switch {
	case err == nil && req.Err != nil:
		return OutcomeError
	case err == nil:
		return OutcomeOK
	case errors.Is(err, ErrTimeout):
		return OutcomeTimeout
	case errors.Is(err, ErrConnectionClosed):
		return OutcomeClosed
	case errors.Is(err, ErrOutcomeUnknown):
		return OutcomeReset
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return OutcomeCancel
	default:
		return OutcomeError
	}
}

// handler adapts Client to transport.Handler without widening its API.
type handler struct {
	c *Client
}

func (h handler) Opened(s transport.Session) {
	c := h.c
	c.mu.Lock()
	c.session = s
	if c.closeRequested {
		c.mu.Unlock()
		c.logger.Info().Msg("closing session opened after close")
		if err := s.Close(); err != nil {
			c.logger.Warn().Err(err).Msg("close after open failed")
		}
		return
	}
	c.state = StateOpen
	c.mu.Unlock()

	if err := c.write(context.Background(), ConnectMessage(c.cfg.Versions)); err != nil {
		c.logger.Error().Err(err).Msg("handshake send failed")
	}
}

func (h handler) Frame(data []byte) {
	h.c.receive(data)
}

func (h handler) Closed(code int, reason string) {
	c := h.c
	closeErr := &ClosedError{Code: code, Reason: reason}
	c.mu.Lock()
	c.state = StateClosed
	c.closeErr = closeErr
	c.resetPendingLocked(closeErr)
	c.broadcastLocked()
	c.mu.Unlock()
	c.logger.Info().Int("code", code).Str("reason", reason).Msg("connection closed")
}
