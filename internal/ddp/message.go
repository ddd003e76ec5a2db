package ddp

import (
	"encoding/json"
	"fmt"
)

const (
	MsgConnect   = "connect"
	MsgConnected = "connected"
	MsgFailed    = "failed"
	MsgError     = "error"
	MsgMethod    = "method"
	MsgResult    = "result"
	MsgUpdated   = "updated"
	MsgSub       = "sub"
	MsgUnsub     = "unsub"
	MsgNoSub     = "nosub"
	MsgReady     = "ready"
	MsgAdded     = "added"
	MsgChanged   = "changed"
	MsgRemoved   = "removed"
)

// Message is the union of every DDP frame shape this client reads or writes.
// Msg is the discriminant; the remaining fields are populated per kind.
type Message struct {
	Msg string `json:"msg"`
	ID  string `json:"id,omitempty"`

	Version string   `json:"version,omitempty"`
	Support []string `json:"support,omitempty"`
	Session string   `json:"session,omitempty"`

	Method string `json:"method,omitempty"`
	Name   string `json:"name,omitempty"`
	Params []any  `json:"params,omitempty"`

	Result json.RawMessage `json:"result,omitempty"`
	Error  *MethodError    `json:"error,omitempty"`

	Reason           string          `json:"reason,omitempty"`
	OffendingMessage json.RawMessage `json:"offendingMessage,omitempty"`

	Collection string                     `json:"collection,omitempty"`
	Fields     map[string]json.RawMessage `json:"fields,omitempty"`
	Cleared    []string                   `json:"cleared,omitempty"`
	IDs        []string                   `json:"ids,omitempty"`
	Subs       []string                   `json:"subs,omitempty"`
	Methods    []string                   `json:"methods,omitempty"`
}

func ConnectMessage(versions []string) Message {
	support := make([]string, len(versions))
	copy(support, versions)
	msg := Message{Msg: MsgConnect, Support: support}
	if len(support) > 0 {
		msg.Version = support[0]
	}
	return msg
}

func MethodMessage(id, method string, params []any) Message {
	return Message{Msg: MsgMethod, Method: method, Params: paramsOrEmpty(params), ID: id}
}

func SubMessage(id, name string, params []any) Message {
	return Message{Msg: MsgSub, Name: name, Params: paramsOrEmpty(params), ID: id}
}

func paramsOrEmpty(params []any) []any {
	if params == nil {
		return []any{}
	}
	return params
}

// MarshalJSON always writes params on method and sub frames, as an empty
// array when there are none. Other kinds never carry params.
func (m Message) MarshalJSON() ([]byte, error) {
	type plain Message
	if m.Msg != MsgMethod && m.Msg != MsgSub {
		return json.Marshal(plain(m))
	}
	return json.Marshal(struct {
		plain
		Params []any `json:"params"`
	}{plain: plain(m), Params: paramsOrEmpty(m.Params)})
}

func UnsubMessage(id string) Message {
	return Message{Msg: MsgUnsub, ID: id}
}

// Validate checks the fields the classifier relies on for inbound kinds.
func (m Message) Validate() error {
	switch m.Msg {
	case "":
		return fmt.Errorf("%w: missing msg", ErrProtocol)
	case MsgResult:
		if m.ID == "" {
			return fmt.Errorf("%w: result missing id", ErrProtocol)
		}
	case MsgReady:
		if m.Subs == nil {
			return fmt.Errorf("%w: ready missing subs", ErrProtocol)
		}
	case MsgUpdated:
		if m.Methods == nil {
			return fmt.Errorf("%w: updated missing methods", ErrProtocol)
		}
	case MsgAdded, MsgChanged:
		if m.Collection == "" || m.ID == "" {
			return fmt.Errorf("%w: %s missing collection or id", ErrProtocol, m.Msg)
		}
	case MsgRemoved:
		if m.Collection == "" {
			return fmt.Errorf("%w: removed missing collection", ErrProtocol)
		}
	}
	return nil
}

// DecodeMessage parses and validates one inbound frame.
func DecodeMessage(data []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, fmt.Errorf("%w: %w", ErrProtocol, err)
	}
	if err := msg.Validate(); err != nil {
		return Message{}, err
	}
	return msg, nil
}
