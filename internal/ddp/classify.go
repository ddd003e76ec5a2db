package ddp

import (
	"encoding/json"
	"fmt"
	"slices"
	"sort"

	"github.com/rs/zerolog"
)

// receive decodes one inbound frame and classifies it under c.mu.
func (c *Client) receive(data []byte) {
	if c.echo != nil {
		c.echo.Inbound(data)
	}
	msg, err := DecodeMessage(data)
	if err != nil {
		c.metrics.ProtocolError()
		c.logger.Warn().Err(err).Int("bytes", len(data)).Msg("dropping inbound frame")
		return
	}
	c.metrics.FrameReceived(msg.Msg)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.classifyLocked(msg) {
		c.broadcastLocked()
	}
}

// classifyLocked applies msg to client state and reports whether waiters
// need to re-check their requests.
func (c *Client) classifyLocked(msg Message) bool {
	switch msg.Msg {
	case MsgError:
		c.logger.Error().
			Str("reason", msg.Reason).
			RawJSON("offending", rawOrNull(msg.OffendingMessage)).
			Msg("server error")
		// Resets the slot even when the error concerns another message.
		c.resetPendingLocked(fmt.Errorf("%w: %s", ErrOutcomeUnknown, msg.Reason))
		return true

	case MsgConnected:
		c.handshakeOK = true
		c.serverSession = msg.Session
		c.logger.Info().Str("session", msg.Session).Msg("connected")
		return false

	case MsgFailed:
		c.suggestedVersion = msg.Version
		c.logger.Warn().Str("suggested_version", msg.Version).Msg("handshake failed")
		return false

	case MsgResult:
		if c.pending == nil || c.pending.ID != msg.ID {
			c.logger.Debug().Str("id", msg.ID).Msg("result for untracked id")
			return false
		}
		switch {
		case hasValue(msg.Result):
			c.logger.Info().Str("id", msg.ID).RawJSON("result", msg.Result).Msg("method result")
		case msg.Error != nil:
			c.logger.Warn().Str("id", msg.ID).Str("reason", msg.Error.Reason).Msg("method error")
		default:
			c.logger.Info().Str("id", msg.ID).Msg("method finished")
		}
		c.pending.ResultAcked = true
		c.pending.Result = msg.Result
		c.pending.Err = msg.Error
		return true

	case MsgAdded, MsgChanged:
		ev := c.logger.Info().Str("collection", msg.Collection).Str("id", msg.ID)
		if len(msg.Fields) > 0 {
			ev = ev.Dict("fields", fieldsDict(msg.Fields))
		}
		if len(msg.Cleared) > 0 {
			ev = ev.Strs("cleared", msg.Cleared)
		}
		ev.Msg(msg.Msg)
		return false

	case MsgRemoved:
		ids := msg.IDs
		if len(ids) == 0 && msg.ID != "" {
			ids = []string{msg.ID}
		}
		c.logger.Info().Str("collection", msg.Collection).Strs("ids", ids).Msg("removed")
		return false

	case MsgReady:
		if c.pending == nil || !slices.Contains(msg.Subs, c.pending.ID) {
			return false
		}
		c.logger.Info().Str("id", c.pending.ID).Msg("ready")
		c.pending.DataAcked = true
		return true

	case MsgUpdated:
		if c.pending == nil || !slices.Contains(msg.Methods, c.pending.ID) {
			return false
		}
		c.logger.Info().Str("id", c.pending.ID).Msg("updated")
		c.pending.DataAcked = true
		return true

	case MsgNoSub:
		ev := c.logger.Info().Str("id", msg.ID)
		if msg.Error != nil {
			ev = ev.Str("reason", msg.Error.Reason)
		}
		ev.Msg("nosub")
		// Any nosub releases the waiter, matching id or not.
		if c.pending != nil {
			c.pending.DataAcked = true
			if c.pending.ID == msg.ID {
				c.pending.Err = msg.Error
			}
		}
		return true

	default:
		c.logger.Debug().Str("msg", msg.Msg).Msg("ignoring message")
		return false
	}
}

func hasValue(raw json.RawMessage) bool {
	return len(raw) > 0 && string(raw) != "null"
}

func rawOrNull(raw json.RawMessage) []byte {
	if len(raw) == 0 {
		return []byte("null")
	}
	return raw
}

func fieldsDict(fields map[string]json.RawMessage) *zerolog.Event {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	d := zerolog.Dict()
	for _, k := range keys {
		d = d.RawJSON(k, fields[k])
	}
	return d
}
