// Package testlog routes the global zerolog logger into the running test.
package testlog

import (
	"io"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Start points log.Logger at t.Log for the duration of t and restores the
// previous logger on cleanup. Lines written by goroutines that outlive the
// test are dropped. Tests that call Start must not run in parallel.
func Start(t testing.TB) {
	t.Helper()
	w := &writer{out: zerolog.NewTestWriter(t)}
	prev := log.Logger
	log.Logger = zerolog.New(w).
		Level(zerolog.DebugLevel).
		With().
		Str("test", t.Name()).
		Logger()
	t.Cleanup(func() {
		w.stop()
		log.Logger = prev
	})
}

type writer struct {
	mu   sync.Mutex
	out  io.Writer
	done bool
}

func (w *writer) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.done {
		return len(p), nil
	}
	return w.out.Write(p)
}

func (w *writer) stop() {
	w.mu.Lock()
	w.done = true
	w.mu.Unlock()
}
