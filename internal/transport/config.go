package transport

import "time"

// BackoffConfig defines retry backoff behavior.
type BackoffConfig struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	Jitter       bool
}

// TLSConfig applies to wss:// endpoints only.
type TLSConfig struct {
	ServerName         string
	CAFile             string
	InsecureSkipVerify bool
}

// Config defines dial and write behavior for one session.
type Config struct {
	ConnectTimeout     time.Duration
	HandshakeTimeout   time.Duration
	WriteTimeout       time.Duration
	ReadLimit          int64
	MaxConnectAttempts int
	Backoff            BackoffConfig
	TLS                TLSConfig
}

// DefaultConfig returns single-attempt defaults.
func DefaultConfig() Config {
	return Config{
		ConnectTimeout:     5 * time.Second,
		HandshakeTimeout:   5 * time.Second,
		WriteTimeout:       15 * time.Second,
		ReadLimit:          1 << 20,
		MaxConnectAttempts: 1,
		Backoff: BackoffConfig{
			InitialDelay: 250 * time.Millisecond,
			Multiplier:   2.0,
			MaxDelay:     5 * time.Second,
			Jitter:       true,
		},
	}
}

// WithDefaults fills zero-valued fields from DefaultConfig.
func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = def.ConnectTimeout
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = def.HandshakeTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.ReadLimit <= 0 {
		c.ReadLimit = def.ReadLimit
	}
	if c.MaxConnectAttempts <= 0 {
		c.MaxConnectAttempts = def.MaxConnectAttempts
	}
	if c.Backoff.InitialDelay <= 0 {
		c.Backoff = def.Backoff
	}
	return c
}
