// Package screen is the terminal surface of the tally counter.
// It redraws the whole frame after every change and reads one command per token from its input.
package screen

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/samber/lo"
	"github.com/tckz/tally-counter/internal/counter"
	"go.uber.org/zap"
)

const (
	hintHelp    = "Keys: + add, - subtract, r reset, q quit"
	hintModal   = "Answer y to reset or n to keep counting"
	hintNothing = "Nothing to confirm"
)

// Widget is the part of *counter.Counter the screen drives.
type Widget interface {
	Increment(ctx context.Context)
	Decrement(ctx context.Context)
	RequestReset()
	ConfirmReset(ctx context.Context)
	CancelReset()
	Snapshot() counter.Snapshot
	Subscribe(fn func(counter.Snapshot)) (unsubscribe func())
}

var _ Widget = (*counter.Counter)(nil)

type command int

const (
	cmdUnknown command = iota
	cmdIncrement
	cmdDecrement
	cmdRequestReset
	cmdConfirm
	cmdCancel
	cmdQuit
	cmdHelp
	cmdRedraw
)

var commands = map[string]command{
	"+": cmdIncrement, "=": cmdIncrement, "a": cmdIncrement, "add": cmdIncrement,
	"-": cmdDecrement, "_": cmdDecrement, "s": cmdDecrement, "sub": cmdDecrement,
	"r": cmdRequestReset, "reset": cmdRequestReset,
	"y": cmdConfirm, "yes": cmdConfirm,
	"n": cmdCancel, "no": cmdCancel,
	"q": cmdQuit, "quit": cmdQuit, "exit": cmdQuit,
	"?": cmdHelp, "h": cmdHelp, "help": cmdHelp,
}

// accepted while the confirmation prompt is shown
var modalCommands = []command{cmdConfirm, cmdCancel, cmdQuit, cmdHelp, cmdRedraw}

type options struct {
	logger   *zap.SugaredLogger
	renderer *Renderer
}

type Option func(o *options)

func WithLogger(logger *zap.SugaredLogger) Option {
	return Option(func(o *options) {
		o.logger = logger
	})
}

func WithRenderer(r *Renderer) Option {
	return Option(func(o *options) {
		o.renderer = r
	})
}

type App struct {
	widget Widget
	in     io.Reader
	out    io.Writer
	opts   options

	hint string
}

func NewApp(widget Widget, in io.Reader, out io.Writer, opts ...Option) *App {
	o := options{
		logger:   zap.NewNop().Sugar(),
		renderer: &Renderer{},
	}
	for _, e := range opts {
		e(&o)
	}

	return &App{
		widget: widget,
		in:     in,
		out:    out,
		opts:   o,
	}
}

type inputLine struct {
	text string
	err  error
}

// Run draws the first frame and processes input until quit, end of input or ctx is done.
// All widget operations happen on the calling goroutine.
func (a *App) Run(ctx context.Context) error {
	// Cancelled on return so the reader stops waiting to hand over lines nobody reads.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	unsubscribe := a.widget.Subscribe(func(s counter.Snapshot) {
		a.draw(s)
	})
	defer unsubscribe()

	a.draw(a.widget.Snapshot())

	// The reader may stay blocked in a read of its input after Run returns; it never touches the widget.
	lines := make(chan inputLine)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(a.in)
		for sc.Scan() {
			select {
			case lines <- inputLine{text: sc.Text()}:
			case <-ctx.Done():
				return
			}
		}
		if err := sc.Err(); err != nil {
			select {
			case lines <- inputLine{err: err}:
			case <-ctx.Done():
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case l, ok := <-lines:
			if !ok {
				a.opts.logger.Debugf("end of input")
				return nil
			}
			if l.err != nil {
				return l.err
			}
			if quit := a.handleLine(ctx, l.text); quit {
				return nil
			}
		}
	}
}

func (a *App) handleLine(ctx context.Context, line string) (quit bool) {
	tokens := strings.Fields(strings.ToLower(line))
	if len(tokens) == 0 {
		a.dispatch(ctx, cmdRedraw, "")
		return false
	}

	for _, tok := range tokens {
		cmd, ok := commands[tok]
		if !ok {
			cmd = cmdUnknown
		}
		if a.dispatch(ctx, cmd, tok) {
			return true
		}
	}
	return false
}

func (a *App) dispatch(ctx context.Context, cmd command, tok string) (quit bool) {
	snap := a.widget.Snapshot()
	if snap.State == counter.PendingReset && !lo.Contains(modalCommands, cmd) {
		a.setHint(snap, hintModal)
		return false
	}

	a.hint = ""
	switch cmd {
	case cmdIncrement:
		a.widget.Increment(ctx)
	case cmdDecrement:
		a.widget.Decrement(ctx)
	case cmdRequestReset:
		a.widget.RequestReset()
	case cmdConfirm:
		if snap.State != counter.PendingReset {
			a.setHint(snap, hintNothing)
			return false
		}
		a.widget.ConfirmReset(ctx)
	case cmdCancel:
		a.widget.CancelReset()
	case cmdQuit:
		a.opts.logger.Debugf("quit requested, count=%d", snap.Count)
		return true
	case cmdHelp:
		a.setHint(snap, hintHelp)
	case cmdRedraw:
		a.draw(snap)
	default:
		a.opts.logger.Debugf("unknown input: %q", tok)
		a.setHint(snap, fmt.Sprintf("Unknown key %q. %s", tok, hintHelp))
	}
	return false
}

func (a *App) setHint(s counter.Snapshot, hint string) {
	a.hint = hint
	a.draw(s)
}

func (a *App) draw(s counter.Snapshot) {
	if err := a.opts.renderer.Render(a.out, s, a.hint); err != nil {
		a.opts.logger.With(zap.Error(err)).Warnf("failed to render")
	}
}
