package transport

import (
	"context"
	"errors"
)

var (
	ErrConnection    = errors.New("transport: connection failed")
	ErrSend          = errors.New("transport: send failed")
	ErrSessionClosed = errors.New("transport: session closed")
)

// Close codes reported through Handler.Closed, matching RFC 6455.
const (
	CloseNormal   = 1000
	CloseAbnormal = 1006
)

// Handler receives session notifications.
//
// Opened runs once, before any Frame. Frame runs on a single goroutine in wire
// order and is never re-entered. Closed runs exactly once, after the last Frame.
type Handler interface {
	Opened(s Session)
	Frame(data []byte)
	Closed(code int, reason string)
}

// Session is an open bidirectional text-frame connection.
type Session interface {
	Send(ctx context.Context, frame []byte) error
	Close() error
}

// Dialer opens sessions against an endpoint.
type Dialer interface {
	Open(ctx context.Context, endpoint string, h Handler) (Session, error)
}
