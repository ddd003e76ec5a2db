package main

import (
	"strings"
	"time"

	"github.com/danmuck/roomlink/internal/config"
)

type flagOverrides struct {
	endpoint string
	raw      bool
	timeout  time.Duration
	metrics  string
}

// loadConfig reads path when set, otherwise starts from defaults, then
// applies command-line overrides.
func loadConfig(path string, o flagOverrides) (config.Config, error) {
	cfg := config.Default()
	cfg.Node = "ddpctl"
	if path = strings.TrimSpace(path); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}
	if o.endpoint != "" {
		cfg.Client.Endpoint = strings.TrimSpace(o.endpoint)
	}
	if o.raw {
		cfg.Client.RawEcho = true
	}
	if o.timeout != 0 {
		cfg.Client.CallTimeout = o.timeout
	}
	if o.metrics != "" {
		cfg.MetricsAddr = strings.TrimSpace(o.metrics)
	}
	return cfg, config.Validate(cfg)
}
