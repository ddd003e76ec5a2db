package room

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/danmuck/roomlink/internal/ddp"
	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var ErrMethodRequired = errors.New("room: method required")

// Caller issues one blocking DDP method call.
type Caller interface {
	IssueMethod(ctx context.Context, name string, params ...any) (string, error)
}

type Config struct {
	Method string
	// Seed fixes the reading generator; zero seeds from the clock.
	Seed int64
}

func DefaultConfig() Config {
	return Config{Method: "insertMap"}
}

// Summary counts per-reading outcomes of one Publish.
type Summary struct {
	Sent     int
	Rejected int
}

type Publisher struct {
	cfg    Config
	caller Caller
	rng    *rand.Rand
	logger zerolog.Logger
}

func NewPublisher(cfg Config, caller Caller) (*Publisher, error) {
	cfg.Method = strings.TrimSpace(cfg.Method)
	if cfg.Method == "" {
		return nil, ErrMethodRequired
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Publisher{
		cfg:    cfg,
		caller: caller,
		rng:    rand.New(rand.NewSource(seed)),
		logger: log.With().Str("component", "room").Logger(),
	}, nil
}

// Publish sends one method call per free cell of grid, each carrying a single
// reading. Server rejections are collected and publishing continues; any
// other failure stops the run.
func (p *Publisher) Publish(ctx context.Context, grid Grid) (Summary, error) {
	var (
		sum      Summary
		rejected *multierror.Error
	)
	for _, reading := range grid.Readings(p.rng) {
		id, err := p.caller.IssueMethod(ctx, p.cfg.Method, reading)
		var methodErr *ddp.MethodError
		switch {
		case err == nil:
			sum.Sent++
			p.logger.Debug().Str("id", id).Ints("loc", reading.Loc[:]).Msg("reading stored")
		case errors.As(err, &methodErr):
			sum.Rejected++
			rejected = multierror.Append(rejected, fmt.Errorf("loc %v: %w", reading.Loc, err))
		default:
			return sum, fmt.Errorf("room: publish loc %v: %w", reading.Loc, err)
		}
	}
	p.logger.Info().Int("sent", sum.Sent).Int("rejected", sum.Rejected).Msg("publish complete")
	return sum, rejected.ErrorOrNil()
}
