package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/hashicorp/go-multierror"

	"github.com/danmuck/roomlink/internal/ddp"
	"github.com/danmuck/roomlink/internal/room"
	"github.com/danmuck/roomlink/internal/transport"
)

// Config is the resolved runtime configuration shared by the CLIs.
type Config struct {
	Node        string
	MetricsAddr string
	CorsOrigins []string
	Client      ddp.Config
	Transport   transport.Config
	Room        room.Config
}

func Default() Config {
	return Config{
		Node:      "roomlink",
		Client:    ddp.DefaultConfig(),
		Transport: transport.DefaultConfig(),
		Room:      room.DefaultConfig(),
	}
}

type fileConfig struct {
	Node        string          `toml:"node"`
	Endpoint    string          `toml:"endpoint"`
	Versions    []string        `toml:"versions"`
	RawEcho     bool            `toml:"raw_echo"`
	CallTimeout string          `toml:"call_timeout"`
	MetricsAddr string          `toml:"metrics_addr"`
	CorsOrigins []string        `toml:"cors_origins"`
	Transport   transportConfig `toml:"transport"`
	Room        roomConfig      `toml:"room"`
}

type transportConfig struct {
	ConnectTimeout     string  `toml:"connect_timeout"`
	HandshakeTimeout   string  `toml:"handshake_timeout"`
	WriteTimeout       string  `toml:"write_timeout"`
	ReadLimit          int64   `toml:"read_limit"`
	MaxConnectAttempts int     `toml:"max_connect_attempts"`
	BackoffInitial     string  `toml:"backoff_initial"`
	BackoffMultiplier  float64 `toml:"backoff_multiplier"`
	BackoffMax         string  `toml:"backoff_max"`
	BackoffJitter      bool    `toml:"backoff_jitter"`
	TLSServerName      string  `toml:"tls_server_name"`
	TLSCAFile          string  `toml:"tls_ca_file"`
	TLSInsecure        bool    `toml:"tls_insecure_skip_verify"`
}

type roomConfig struct {
	Method string `toml:"method"`
	Seed   int64  `toml:"seed"`
}

// Load overlays the keys present in path onto Default and validates the
// result. Keys absent from the file keep their defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("config parse failed (%s): unknown key %q", path, undecoded[0].String())
	}

	if meta.IsDefined("node") {
		cfg.Node = strings.TrimSpace(raw.Node)
	}
	if meta.IsDefined("endpoint") {
		cfg.Client.Endpoint = strings.TrimSpace(raw.Endpoint)
	}
	if meta.IsDefined("versions") {
		cfg.Client.Versions = raw.Versions
	}
	if meta.IsDefined("raw_echo") {
		cfg.Client.RawEcho = raw.RawEcho
	}
	if meta.IsDefined("metrics_addr") {
		cfg.MetricsAddr = strings.TrimSpace(raw.MetricsAddr)
	}
	if meta.IsDefined("cors_origins") {
		cfg.CorsOrigins = normalizeOrigins(raw.CorsOrigins)
	}

	durations := []struct {
		key []string
		raw string
		dst *time.Duration
	}{
		{[]string{"call_timeout"}, raw.CallTimeout, &cfg.Client.CallTimeout},
		{[]string{"transport", "connect_timeout"}, raw.Transport.ConnectTimeout, &cfg.Transport.ConnectTimeout},
		{[]string{"transport", "handshake_timeout"}, raw.Transport.HandshakeTimeout, &cfg.Transport.HandshakeTimeout},
		{[]string{"transport", "write_timeout"}, raw.Transport.WriteTimeout, &cfg.Transport.WriteTimeout},
		{[]string{"transport", "backoff_initial"}, raw.Transport.BackoffInitial, &cfg.Transport.Backoff.InitialDelay},
		{[]string{"transport", "backoff_max"}, raw.Transport.BackoffMax, &cfg.Transport.Backoff.MaxDelay},
	}
	for _, d := range durations {
		if !meta.IsDefined(d.key...) {
			continue
		}
		v, err := time.ParseDuration(strings.TrimSpace(d.raw))
		if err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", strings.Join(d.key, "."), err)
		}
		*d.dst = v
	}

	if meta.IsDefined("transport", "read_limit") {
		cfg.Transport.ReadLimit = raw.Transport.ReadLimit
	}
	if meta.IsDefined("transport", "max_connect_attempts") {
		cfg.Transport.MaxConnectAttempts = raw.Transport.MaxConnectAttempts
	}
	if meta.IsDefined("transport", "backoff_multiplier") {
		cfg.Transport.Backoff.Multiplier = raw.Transport.BackoffMultiplier
	}
	if meta.IsDefined("transport", "backoff_jitter") {
		cfg.Transport.Backoff.Jitter = raw.Transport.BackoffJitter
	}
	if meta.IsDefined("transport", "tls_server_name") {
		cfg.Transport.TLS.ServerName = strings.TrimSpace(raw.Transport.TLSServerName)
	}
	if meta.IsDefined("transport", "tls_ca_file") {
		cfg.Transport.TLS.CAFile = strings.TrimSpace(raw.Transport.TLSCAFile)
	}
	if meta.IsDefined("transport", "tls_insecure_skip_verify") {
		cfg.Transport.TLS.InsecureSkipVerify = raw.Transport.TLSInsecure
	}

	if meta.IsDefined("room", "method") {
		cfg.Room.Method = strings.TrimSpace(raw.Room.Method)
	}
	if meta.IsDefined("room", "seed") {
		cfg.Room.Seed = raw.Room.Seed
	}

	if err := Validate(cfg); err != nil {
		return Config{}, fmt.Errorf("config invalid (%s): %w", path, err)
	}
	return cfg, nil
}

// Validate reports every problem in cfg at once. An empty endpoint is
// accepted so a flag can supply it later.
func Validate(cfg Config) error {
	var result *multierror.Error
	if strings.TrimSpace(cfg.Node) == "" {
		result = multierror.Append(result, fmt.Errorf("node is required"))
	}
	if ep := cfg.Client.Endpoint; ep != "" {
		if err := ValidateEndpoint(ep); err != nil {
			result = multierror.Append(result, err)
		}
	}
	for _, origin := range cfg.CorsOrigins {
		if !strings.HasPrefix(origin, "http://") && !strings.HasPrefix(origin, "https://") {
			result = multierror.Append(result, fmt.Errorf("cors origin %q must start with http:// or https://", origin))
		}
	}
	if len(cfg.Client.Versions) == 0 {
		result = multierror.Append(result, fmt.Errorf("versions must not be empty"))
	}
	for i, v := range cfg.Client.Versions {
		if strings.TrimSpace(v) == "" {
			result = multierror.Append(result, fmt.Errorf("versions[%d] is blank", i))
		}
	}
	if cfg.Client.CallTimeout < 0 {
		result = multierror.Append(result, fmt.Errorf("call_timeout must not be negative"))
	}
	t := cfg.Transport
	if t.ConnectTimeout < 0 || t.HandshakeTimeout < 0 || t.WriteTimeout < 0 {
		result = multierror.Append(result, fmt.Errorf("transport timeouts must not be negative"))
	}
	if t.ReadLimit < 0 {
		result = multierror.Append(result, fmt.Errorf("transport.read_limit must not be negative"))
	}
	if t.MaxConnectAttempts < 0 {
		result = multierror.Append(result, fmt.Errorf("transport.max_connect_attempts must not be negative"))
	}
	if t.Backoff.Multiplier != 0 && t.Backoff.Multiplier < 1 {
		result = multierror.Append(result, fmt.Errorf("transport.backoff_multiplier must be >= 1"))
	}
	if t.Backoff.MaxDelay > 0 && t.Backoff.MaxDelay < t.Backoff.InitialDelay {
		result = multierror.Append(result, fmt.Errorf("transport.backoff_max must be >= backoff_initial"))
	}
	if strings.TrimSpace(cfg.Room.Method) == "" {
		result = multierror.Append(result, fmt.Errorf("room.method is required"))
	}
	return result.ErrorOrNil()
}

// ValidateEndpoint accepts ws:// and wss:// URLs with a host.
func ValidateEndpoint(endpoint string) error {
	u, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("endpoint %q: %w", endpoint, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("endpoint %q: scheme must be ws or wss", endpoint)
	}
	if u.Host == "" {
		return fmt.Errorf("endpoint %q: missing host", endpoint)
	}
	return nil
}

func normalizeOrigins(in []string) []string {
	out := make([]string, 0, len(in))
	for _, origin := range in {
		if v := strings.TrimSpace(origin); v != "" {
			out = append(out, v)
		}
	}
	return out
}
