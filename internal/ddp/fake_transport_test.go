package ddp

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/danmuck/roomlink/internal/transport"
)

type fakeDialer struct {
	mu   sync.Mutex
	sess *fakeSession
	err  error
}

func (d *fakeDialer) Open(_ context.Context, _ string, h transport.Handler) (transport.Session, error) {
	if d.err != nil {
		return nil, d.err
	}
	s := &fakeSession{h: h, sent: make(chan []byte, 32)}
	d.mu.Lock()
	d.sess = s
	d.mu.Unlock()
	h.Opened(s)
	return s, nil
}

func (d *fakeDialer) session() *fakeSession {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sess
}

type fakeSession struct {
	h    transport.Handler
	sent chan []byte

	mu        sync.Mutex
	closed    bool
	closeOnce sync.Once
}

func (s *fakeSession) Send(_ context.Context, frame []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("%w: %w", transport.ErrSend, transport.ErrSessionClosed)
	}
	out := make([]byte, len(frame))
	copy(out, frame)
	s.sent <- out
	return nil
}

func (s *fakeSession) Close() error {
	s.remoteClose(transport.CloseNormal, "closed by client")
	return nil
}

func (s *fakeSession) remoteClose(code int, reason string) {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		s.h.Closed(code, reason)
	})
}

func (s *fakeSession) deliver(frame string) {
	s.h.Frame([]byte(frame))
}

func (s *fakeSession) next(t *testing.T) Message {
	t.Helper()
	select {
	case frame := <-s.sent:
		msg, err := DecodeMessage(frame)
		if err != nil {
			t.Fatalf("decode sent frame %q: %v", frame, err)
		}
		return msg
	case <-time.After(2 * time.Second):
		t.Fatalf("no frame sent")
		return Message{}
	}
}

func (s *fakeSession) nextRaw(t *testing.T) string {
	t.Helper()
	select {
	case frame := <-s.sent:
		return string(frame)
	case <-time.After(2 * time.Second):
		t.Fatalf("no frame sent")
		return ""
	}
}

// gatedDialer holds Open until release is closed.
type gatedDialer struct {
	fakeDialer
	entered chan struct{}
	release chan struct{}
}

func (d *gatedDialer) Open(ctx context.Context, endpoint string, h transport.Handler) (transport.Session, error) {
	close(d.entered)
	<-d.release
	return d.fakeDialer.Open(ctx, endpoint, h)
}
