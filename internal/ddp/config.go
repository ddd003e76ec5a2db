package ddp

import (
	"io"
	"time"

	"github.com/rs/zerolog"
)

// DefaultVersions is the handshake support list, preferred version first.
var DefaultVersions = []string{"1", "pre2", "pre1"}

// Config defines one client connection.
type Config struct {
	Endpoint string
	Versions []string
	RawEcho  bool
	// CallTimeout bounds each blocking request. Zero or negative leaves only
	// the caller's context.
	CallTimeout time.Duration
}

func DefaultConfig() Config {
	versions := make([]string, len(DefaultVersions))
	copy(versions, DefaultVersions)
	return Config{
		Versions:    versions,
		CallTimeout: 20 * time.Second,
	}
}

// Metrics receives client counters. Implementations must be safe for
// concurrent use.
type Metrics interface {
	FrameSent(msg string)
	FrameReceived(msg string)
	ProtocolError()
	RequestDone(kind, outcome string, d time.Duration)
}

type noopMetrics struct{}

func (noopMetrics) FrameSent(string) {}
func (noopMetrics) FrameReceived(string) {}
func (noopMetrics) ProtocolError() {}
func (noopMetrics) RequestDone(string, string, time.Duration) {}

type Option func(*Client)

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithEchoWriter replaces stderr as the raw frame mirror. It has no effect
// unless Config.RawEcho is set.
func WithEchoWriter(w io.Writer) Option {
	return func(c *Client) {
		c.echoWriter = w
	}
}

func WithMetrics(m Metrics) Option {
	return func(c *Client) {
		if m != nil {
			c.metrics = m
		}
	}
}
