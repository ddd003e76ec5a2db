// Package ddp is a client for the DDP real-time RPC exchange over a
// transport.Session.
//
// Ownership boundary:
// - version handshake on session open
// - method/sub/unsub dispatch with caller-visible ids
// - inbound message classification
// - single-slot pending request with wait/notify
//
// Only one id-bearing request is outstanding at a time. Callers that carry an
// id are serialized; a caller blocks until its request is satisfied, the server
// resets pending state with an error frame, the session closes, the call
// timeout fires, or its context ends.
//
// Lifecycle order:
// - Idle -> Connecting -> Open -> Closed
//
// - there is no reconnect; build a new Client instead.
package ddp
