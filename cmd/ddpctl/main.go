package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/roomlink/internal/node"
	"github.com/danmuck/roomlink/internal/observability"
)

func main() {
	configPath := flag.String("config", "", "optional TOML config path")
	endpoint := flag.String("endpoint", "", "websocket endpoint, e.g. ws://localhost:3000/websocket")
	raw := flag.Bool("raw", false, "mirror raw frames to stderr")
	timeout := flag.Duration("timeout", 0, "per-call timeout override (0 keeps config)")
	metricsAddr := flag.String("metrics", "", "admin listen address for /health and /metrics")
	unsub := flag.Bool("unsub", false, "unsubscribe once a sub is ready")
	flag.Usage = func() {
		fmt.Fprintln(flag.CommandLine.Output(), errUsage)
		flag.PrintDefaults()
	}
	flag.Parse()

	observability.InitLogger("ddpctl")
	cmd, err := parseCommand(flag.Args())
	if err != nil {
		fmt.Fprintf(os.Stderr, "ddpctl: %v\n", err)
		os.Exit(2)
	}
	cfg, err := loadConfig(*configPath, flagOverrides{
		endpoint: *endpoint,
		raw:      *raw,
		timeout:  *timeout,
		metrics:  *metricsAddr,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "ddpctl: %v\n", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	n, err := node.New(cfg, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("build client")
	}
	if err := n.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("connect")
	}
	runErr := run(ctx, n, cmd, *unsub, os.Stdout)
	if err := n.Close(); err != nil {
		log.Warn().Err(err).Msg("close")
	}
	if runErr != nil {
		fmt.Fprintf(os.Stderr, "ddpctl: %v\n", runErr)
		os.Exit(1)
	}
}

func run(ctx context.Context, n *node.Node, cmd command, unsub bool, out io.Writer) error {
	client := n.Client()
	switch cmd.verb {
	case verbMethod:
		result, err := client.Call(ctx, cmd.name, cmd.params...)
		if err != nil {
			return err
		}
		if len(result) == 0 {
			result = json.RawMessage("null")
		}
		_, err = fmt.Fprintln(out, string(result))
		return err
	case verbSub:
		id, err := client.IssueSubscription(ctx, cmd.name, cmd.params...)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "ready %s\n", id)
		if unsub {
			return client.Unsubscribe(ctx, id)
		}
		return nil
	default:
		return errUsage
	}
}
