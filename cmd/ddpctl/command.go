package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const (
	verbMethod = "method"
	verbSub    = "sub"
)

var errUsage = errors.New("usage: ddpctl [flags] <method|sub> <name> [json-array]")

type command struct {
	verb   string
	name   string
	params []any
}

// parseCommand reads `<verb> <name> [json-array]`. Missing params means an
// empty list; a present argument must decode as a JSON array.
func parseCommand(args []string) (command, error) {
	if len(args) < 2 || len(args) > 3 {
		return command{}, errUsage
	}
	cmd := command{
		verb:   strings.ToLower(strings.TrimSpace(args[0])),
		name:   strings.TrimSpace(args[1]),
		params: []any{},
	}
	switch cmd.verb {
	case verbMethod, verbSub:
	default:
		return command{}, fmt.Errorf("unknown verb %q: %w", args[0], errUsage)
	}
	if cmd.name == "" {
		return command{}, fmt.Errorf("empty name: %w", errUsage)
	}
	if len(args) == 3 && strings.TrimSpace(args[2]) != "" {
		var raw []json.RawMessage
		if err := json.Unmarshal([]byte(args[2]), &raw); err != nil {
			return command{}, fmt.Errorf("params must be a JSON array: %w", err)
		}
		for _, p := range raw {
			cmd.params = append(cmd.params, p)
		}
	}
	return cmd, nil
}
