// Package transport owns the message-oriented connection under the DDP client.
//
// Ownership boundary:
// - dial, tls, and connect retry/backoff
// - serialized text frame writes
// - one ordered read loop per session
// - exactly-once close notification
//
// The package knows nothing about DDP message shapes. Frames are opaque bytes.
package transport
