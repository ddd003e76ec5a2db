package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/roomlink/internal/config"
	"github.com/danmuck/roomlink/internal/node"
	"github.com/danmuck/roomlink/internal/observability"
	"github.com/danmuck/roomlink/internal/room"
)

func main() {
	configPath := flag.String("config", "", "optional TOML config path")
	endpoint := flag.String("endpoint", "", "websocket endpoint override")
	method := flag.String("method", "", "method name override (default insertMap)")
	flag.Parse()

	observability.InitLogger("fakeroom")
	cfg, err := loadConfig(*configPath, *endpoint, *method)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fakeroom: %v\n", err)
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
	defer n.Close()

	pub, err := room.NewPublisher(cfg.Room, n.Client())
	if err != nil {
		log.Fatal().Err(err).Msg("build publisher")
	}
	sum, err := pub.Publish(ctx, room.DefaultGrid)
	if err != nil {
		log.Error().Err(err).Int("sent", sum.Sent).Int("rejected", sum.Rejected).Msg("publish failed")
		n.Close()
		os.Exit(1)
	}
	fmt.Printf("published %d readings via %s\n", sum.Sent, cfg.Room.Method)
}

func loadConfig(path, endpoint, method string) (config.Config, error) {
	cfg := config.Default()
	cfg.Node = "fakeroom"
	cfg.Client.RawEcho = true
	if path = strings.TrimSpace(path); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}
	if endpoint = strings.TrimSpace(endpoint); endpoint != "" {
		cfg.Client.Endpoint = endpoint
	}
	if method = strings.TrimSpace(method); method != "" {
		cfg.Room.Method = method
	}
	return cfg, config.Validate(cfg)
}
