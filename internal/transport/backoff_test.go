package transport

import (
	"math/rand"
	"testing"
	"time"

	"github.com/danmuck/roomlink/internal/testutil/testlog"
)

func TestNextBackoffDelayDeterministicNoJitter(t *testing.T) {
	testlog.Start(t)
	cfg := BackoffConfig{
		InitialDelay: 250 * time.Millisecond,
		Multiplier:   2.0,
		MaxDelay:     5 * time.Second,
		Jitter:       false,
	}
	if got := NextBackoffDelay(cfg, 1, nil); got != 250*time.Millisecond {
		t.Fatalf("attempt1 got=%v", got)
	}
	if got := NextBackoffDelay(cfg, 2, nil); got != 500*time.Millisecond {
		t.Fatalf("attempt2 got=%v", got)
	}
	if got := NextBackoffDelay(cfg, 3, nil); got != time.Second {
		t.Fatalf("attempt3 got=%v", got)
	}
	if got := NextBackoffDelay(cfg, 6, nil); got != 5*time.Second {
		t.Fatalf("attempt6 got=%v", got)
	}
}

func TestNextBackoffDelayJitterBounds(t *testing.T) {
	testlog.Start(t)
	cfg := BackoffConfig{
		InitialDelay: 100 * time.Millisecond,
		Multiplier:   2.0,
		MaxDelay:     time.Second,
		Jitter:       true,
	}
	rng := rand.New(rand.NewSource(7))
	for attempt := 1; attempt <= 8; attempt++ {
		base := NextBackoffDelay(BackoffConfig{
			InitialDelay: cfg.InitialDelay,
			Multiplier:   cfg.Multiplier,
			MaxDelay:     cfg.MaxDelay,
		}, attempt, nil)
		got := NextBackoffDelay(cfg, attempt, rng)
		if got < base/2 || got > base*3/2 {
			t.Fatalf("attempt%d got=%v outside [%v, %v]", attempt, got, base/2, base*3/2)
		}
	}
}

func TestNextBackoffDelayZeroInitial(t *testing.T) {
	testlog.Start(t)
	if got := NextBackoffDelay(BackoffConfig{}, 4, nil); got != 0 {
		t.Fatalf("zero config got=%v", got)
	}
}

func TestConfigWithDefaults(t *testing.T) {
	testlog.Start(t)
	cfg := Config{WriteTimeout: time.Second}.WithDefaults()
	def := DefaultConfig()
	if cfg.WriteTimeout != time.Second {
		t.Fatalf("write timeout overridden: %v", cfg.WriteTimeout)
	}
	if cfg.ConnectTimeout != def.ConnectTimeout || cfg.MaxConnectAttempts != 1 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.Backoff != def.Backoff {
		t.Fatalf("unexpected backoff: %+v", cfg.Backoff)
	}
}
