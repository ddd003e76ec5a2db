package main

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name   string
		args   []string
		verb   string
		target string
		params string
	}{
		{name: "method without params", args: []string{"method", "insertMap"}, verb: verbMethod, target: "insertMap", params: `[]`},
		{name: "method with params", args: []string{"METHOD", "insertMap", `[{"temp":21},3]`}, verb: verbMethod, target: "insertMap", params: `[{"temp":21},3]`},
		{name: "sub with empty params", args: []string{"sub", "maps", ` `}, verb: verbSub, target: "maps", params: `[]`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cmd, err := parseCommand(tc.args)
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if cmd.verb != tc.verb || cmd.name != tc.target {
				t.Fatalf("got verb=%q name=%q", cmd.verb, cmd.name)
			}
			encoded, err := json.Marshal(cmd.params)
			if err != nil {
				t.Fatalf("marshal params: %v", err)
			}
			if diff := cmp.Diff(tc.params, string(encoded)); diff != "" {
				t.Fatalf("params mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseCommandRejects(t *testing.T) {
	for name, args := range map[string][]string{
		"no args":      nil,
		"missing name": {"method"},
		"blank name":   {"method", "  "},
		"bad verb":     {"call", "insertMap"},
		"too many":     {"method", "a", "[]", "extra"},
		"not array":    {"method", "a", `{"x":1}`},
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := parseCommand(args); err == nil {
				t.Fatalf("expected error for %v", args)
			}
		})
	}
	if _, err := parseCommand([]string{"call", "x"}); !errors.Is(err, errUsage) {
		t.Fatalf("expected usage error, got %v", err)
	}
}

func TestLoadConfigFlagOverrides(t *testing.T) {
	cfg, err := loadConfig("", flagOverrides{
		endpoint: "ws://localhost:3000/websocket",
		raw:      true,
		timeout:  3 * time.Second,
	})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Node != "ddpctl" || !cfg.Client.RawEcho || cfg.Client.CallTimeout != 3*time.Second {
		t.Fatalf("overrides not applied: %+v", cfg.Client)
	}
	if _, err := loadConfig("", flagOverrides{endpoint: "localhost:3000"}); err == nil {
		t.Fatalf("expected endpoint validation error")
	}
}
