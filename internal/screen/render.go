package screen

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/tckz/tally-counter/internal/counter"
)

const clearSequence = "\033[H\033[2J"

// Renderer draws a counter.Snapshot as plain text.
type Renderer struct {
	// Clear erases the terminal before each frame.
	Clear bool
	Now   func() time.Time
}

func (r *Renderer) now() time.Time {
	if r.Now == nil {
		return time.Now()
	}
	return r.Now()
}

// Render writes one full frame. hint is shown under the status line when not empty.
func (r *Renderer) Render(w io.Writer, s counter.Snapshot, hint string) error {
	var b bytes.Buffer

	if r.Clear {
		b.WriteString(clearSequence)
	}

	b.WriteString("TALLY COUNTER\n")
	b.WriteString("─────────────\n\n")
	fmt.Fprintf(&b, "    %s\n\n", strconv.FormatInt(s.Count, 10))
	b.WriteString("[-] Subtract    [+] Add One\n")
	b.WriteString("[r] Reset Counter\n\n")
	b.WriteString(r.status(s))
	b.WriteString("\n")

	if s.State == counter.PendingReset {
		b.WriteString("\n")
		b.WriteString("! Are you sure?\n")
		b.WriteString("This will reset your tally to zero. This action cannot be undone.\n")
		b.WriteString("[y] Yes, Reset Everything\n")
		b.WriteString("[n] No, Keep Counting\n")
	}

	if hint != "" {
		fmt.Fprintf(&b, "\n%s\n", hint)
	}
	b.WriteString("> ")

	_, err := w.Write(b.Bytes())
	return err
}

func (r *Renderer) status(s counter.Snapshot) string {
	switch s.Sync {
	case counter.Saved:
		return fmt.Sprintf("● Progress automatically saved (%s)", humanize.RelTime(s.SavedAt, r.now(), "ago", "from now"))
	case counter.SaveFailed:
		return fmt.Sprintf("✕ Not saved: %v", s.LastError)
	case counter.Offline:
		return "○ Storage unavailable; counting in memory"
	default:
		return "● Progress automatically saved"
	}
}
