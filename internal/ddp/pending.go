package ddp

import (
	"encoding/json"
	"time"
)

// Kind selects which acknowledgments satisfy a pending request.
type Kind int

const (
	KindMethod Kind = iota
	KindSubscription
)

func (k Kind) String() string {
	switch k {
	case KindMethod:
		return "method"
	case KindSubscription:
		return "subscription"
	default:
		return "unknown"
	}
}

// kindOf maps an outbound msg to its request kind. Anything other than a
// method (sub, unsub) only waits for the data acknowledgment.
func kindOf(msg string) Kind {
	if msg == MsgMethod {
		return KindMethod
	}
	return KindSubscription
}

// PendingRequest is the one outstanding id-bearing request.
type PendingRequest struct {
	ID          string
	Kind        Kind
	ResultAcked bool
	DataAcked   bool
	Result      json.RawMessage
	Err         *MethodError
	Started     time.Time

	// released is set when the request leaves the slot without being satisfied.
	released error
}

// Satisfied reports whether the server has acknowledged everything this kind
// needs: result and data for methods, data only for subscriptions.
func (p *PendingRequest) Satisfied() bool {
	if p.Kind == KindMethod {
		return p.ResultAcked && p.DataAcked
	}
	return p.DataAcked
}
