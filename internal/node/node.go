package node

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/danmuck/roomlink/internal/config"
	"github.com/danmuck/roomlink/internal/ddp"
	"github.com/danmuck/roomlink/internal/observability"
	"github.com/danmuck/roomlink/internal/transport"
)

// Node is one CLI process: a DDP client plus its optional admin surface.
type Node struct {
	cfg    config.Config
	client *ddp.Client
	router *gin.Engine
	logger zerolog.Logger

	stopAdmin context.CancelFunc
	adminDone chan error
}

// New builds the client from cfg. A nil dialer uses a websocket dialer with
// cfg.Transport. The admin router exists only when cfg.MetricsAddr is set.
func New(cfg config.Config, dialer transport.Dialer, opts ...ddp.Option) (*Node, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	if dialer == nil {
		dialer = transport.NewWebsocketDialer(cfg.Transport)
	}
	if cfg.MetricsAddr != "" {
		observability.RegisterMetrics()
		opts = append(opts, ddp.WithMetrics(observability.NewClientMetrics(cfg.Node)))
	}
	client, err := ddp.New(cfg.Client, dialer, opts...)
	if err != nil {
		return nil, err
	}
	n := &Node{
		cfg:    cfg,
		client: client,
		logger: log.With().Str("component", "node").Str("node", cfg.Node).Logger(),
	}
	if cfg.MetricsAddr != "" {
		n.router = observability.NewAdminRouter(cfg.Node, cfg.CorsOrigins, n.Status)
	}
	return n, nil
}

func (n *Node) NodeID() string {
	return n.cfg.Node
}

func (n *Node) Kind() string {
	return "ddp-client"
}

// HTTPRouter is nil when the admin surface is disabled.
func (n *Node) HTTPRouter() *gin.Engine {
	return n.router
}

func (n *Node) Client() *ddp.Client {
	return n.client
}

func (n *Node) Status() observability.ClientStatus {
	return observability.ClientStatus{
		State:     n.client.State().String(),
		Connected: n.client.Connected(),
		Session:   n.client.ServerSession(),
	}
}

// Start serves the admin surface, if any, then connects the client.
func (n *Node) Start(ctx context.Context) error {
	if n.router != nil && n.stopAdmin == nil {
		adminCtx, cancel := context.WithCancel(context.Background())
		n.stopAdmin = cancel
		n.adminDone = make(chan error, 1)
		go func() {
			err := observability.ServeAdmin(adminCtx, n.cfg.MetricsAddr, n.router)
			if err != nil {
				n.logger.Error().Err(err).Str("addr", n.cfg.MetricsAddr).Msg("admin server stopped")
			}
			n.adminDone <- err
		}()
	}
	if err := n.client.Connect(ctx); err != nil {
		return fmt.Errorf("node %s: %w", n.cfg.Node, err)
	}
	n.logger.Info().Str("endpoint", n.cfg.Client.Endpoint).Msg("client connected")
	return nil
}

// Close closes the client and stops the admin surface.
func (n *Node) Close() error {
	err := n.client.Close()
	if n.stopAdmin != nil {
		n.stopAdmin()
		<-n.adminDone
		n.stopAdmin = nil
	}
	return err
}
