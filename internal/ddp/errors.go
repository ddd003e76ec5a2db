package ddp

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrEndpointRequired = errors.New("ddp: endpoint required")
	ErrAlreadyConnected = errors.New("ddp: client already connected")
	ErrNotConnected     = errors.New("ddp: client not connected")
	ErrConnection       = errors.New("ddp: connection failed")
	ErrSend             = errors.New("ddp: send failed")
	ErrProtocol         = errors.New("ddp: protocol error")
	ErrServer           = errors.New("ddp: server error")
	ErrOutcomeUnknown   = fmt.Errorf("%w: pending state reset, outcome unknown", ErrServer)
	ErrConnectionClosed = errors.New("ddp: connection closed")
	ErrTimeout          = errors.New("ddp: request timeout")
)

// MethodError is the error payload of a result or nosub message.
type MethodError struct {
	Code      json.RawMessage `json:"error,omitempty"`
	Reason    string          `json:"reason,omitempty"`
	Message   string          `json:"message,omitempty"`
	ErrorType string          `json:"errorType,omitempty"`
	Details   json.RawMessage `json:"details,omitempty"`
}

func (e *MethodError) Error() string {
	var b strings.Builder
	b.WriteString("ddp: method error")
	if len(e.Code) > 0 {
		b.WriteString(" code=")
		b.Write(e.Code)
	}
	switch {
	case e.Reason != "":
		fmt.Fprintf(&b, " reason=%q", e.Reason)
	case e.Message != "":
		fmt.Fprintf(&b, " message=%q", e.Message)
	}
	return b.String()
}

func (e *MethodError) Is(target error) bool {
	return target == ErrServer
}

// ClosedError carries the transport close status.
type ClosedError struct {
	Code   int
	Reason string
}

func (e *ClosedError) Error() string {
	return fmt.Sprintf("ddp: connection closed code=%d reason=%q", e.Code, e.Reason)
}

func (e *ClosedError) Is(target error) bool {
	return target == ErrConnectionClosed
}
