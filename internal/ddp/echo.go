package ddp

import (
	"io"
	"sync"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// Echo mirrors raw wire frames to a diagnostic stream, ">>" for outbound and
// "<<" for inbound. Colors are used only when the stream is a terminal.
type Echo struct {
	mu  sync.Mutex
	w   io.Writer
	out *color.Color
	in  *color.Color
}

type fdWriter interface {
	Fd() uintptr
}

func NewEcho(w io.Writer) *Echo {
	e := &Echo{
		w:   w,
		out: color.New(color.FgCyan),
		in:  color.New(color.FgGreen),
	}
	tty := false
	if f, ok := w.(fdWriter); ok {
		tty = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	if tty {
		e.out.EnableColor()
		e.in.EnableColor()
	} else {
		e.out.DisableColor()
		e.in.DisableColor()
	}
	return e
}

func (e *Echo) Outbound(frame []byte) {
	e.write(e.out, ">>", frame)
}

func (e *Echo) Inbound(frame []byte) {
	e.write(e.in, "<<", frame)
}

func (e *Echo) write(c *color.Color, prefix string, frame []byte) {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, _ = c.Fprintf(e.w, "%s %s\n", prefix, frame)
}
