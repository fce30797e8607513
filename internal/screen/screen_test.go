package screen

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tckz/tally-counter/internal/counter"
	"github.com/tckz/tally-counter/internal/store"
	"go.uber.org/goleak"
)

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func render(t *testing.T, s counter.Snapshot, hint string) string {
	t.Helper()
	var b bytes.Buffer
	r := &Renderer{Now: func() time.Time { return fixedNow }}
	require.NoError(t, r.Render(&b, s, hint))
	return b.String()
}

func TestRender_Idle(t *testing.T) {
	out := render(t, counter.Snapshot{Count: -42}, "")

	assert.Contains(t, out, "TALLY COUNTER")
	assert.Contains(t, out, "    -42\n")
	assert.Contains(t, out, "[+] Add One")
	assert.Contains(t, out, "[-] Subtract")
	assert.Contains(t, out, "[r] Reset Counter")
	assert.Contains(t, out, "● Progress automatically saved\n")
	assert.NotContains(t, out, "Are you sure?")
	assert.NotContains(t, out, clearSequence)
	assert.True(t, strings.HasSuffix(out, "> "))
}

func TestRender_PendingReset(t *testing.T) {
	out := render(t, counter.Snapshot{Count: 7, State: counter.PendingReset}, "")

	assert.Contains(t, out, "    7\n")
	assert.Contains(t, out, "! Are you sure?")
	assert.Contains(t, out, "This will reset your tally to zero. This action cannot be undone.")
	assert.Contains(t, out, "[y] Yes, Reset Everything")
	assert.Contains(t, out, "[n] No, Keep Counting")
}

func TestRender_Status(t *testing.T) {
	out := render(t, counter.Snapshot{Sync: counter.Saved, SavedAt: fixedNow.Add(-3 * time.Second)}, "")
	assert.Contains(t, out, "Progress automatically saved (3 seconds ago)")

	out = render(t, counter.Snapshot{Sync: counter.SaveFailed, LastError: errors.New("disk full")}, "")
	assert.Contains(t, out, "Not saved: disk full")

	out = render(t, counter.Snapshot{Sync: counter.Offline}, "")
	assert.Contains(t, out, "Storage unavailable; counting in memory")
}

func TestRender_ClearAndHint(t *testing.T) {
	var b bytes.Buffer
	r := &Renderer{Clear: true}
	require.NoError(t, r.Render(&b, counter.Snapshot{}, "hello"))

	assert.True(t, strings.HasPrefix(b.String(), clearSequence))
	assert.Contains(t, b.String(), "\nhello\n")
}

func newApp(t *testing.T, stored string, input string) (*App, *counter.Counter, *store.MemoryStore, *bytes.Buffer) {
	t.Helper()
	ctx := context.Background()

	s := store.NewMemoryStore()
	if stored != "" {
		require.NoError(t, s.Set(ctx, counter.DefaultKey, stored))
	}
	c := counter.New(s)
	require.NoError(t, c.Initialize(ctx))

	var out bytes.Buffer
	return NewApp(c, strings.NewReader(input), &out), c, s, &out
}

func stored(t *testing.T, s store.Store) string {
	t.Helper()
	v, err := s.Get(context.Background(), counter.DefaultKey)
	require.NoError(t, err)
	return v
}

func TestApp_IncrementDecrement(t *testing.T) {
	app, c, s, _ := newApp(t, "5", "+\n+ + -\nadd\n-\n")

	require.NoError(t, app.Run(context.Background()))
	assert.EqualValues(t, 7, c.Count())
	assert.Equal(t, "7", stored(t, s))
}

func TestApp_ResetCancel(t *testing.T) {
	app, c, s, out := newApp(t, "7", "r\nn\n")

	require.NoError(t, app.Run(context.Background()))
	assert.EqualValues(t, 7, c.Count())
	assert.Equal(t, counter.Idle, c.State())
	assert.Equal(t, "7", stored(t, s))
	assert.Contains(t, out.String(), "Are you sure?")
}

func TestApp_ResetConfirm(t *testing.T) {
	app, c, s, _ := newApp(t, "7", "r\ny\n")

	require.NoError(t, app.Run(context.Background()))
	assert.EqualValues(t, 0, c.Count())
	assert.Equal(t, counter.Idle, c.State())
	assert.Equal(t, "0", stored(t, s))
}

func TestApp_ModalBlocksControls(t *testing.T) {
	app, c, _, out := newApp(t, "7", "r\n+\n-\n")

	require.NoError(t, app.Run(context.Background()))
	assert.EqualValues(t, 7, c.Count())
	assert.Equal(t, counter.PendingReset, c.State())
	assert.Contains(t, out.String(), hintModal)
}

func TestApp_ConfirmWhenIdle(t *testing.T) {
	app, c, _, out := newApp(t, "3", "y\n")

	require.NoError(t, app.Run(context.Background()))
	assert.EqualValues(t, 3, c.Count())
	assert.Contains(t, out.String(), hintNothing)
}

func TestApp_UnknownAndHelp(t *testing.T) {
	app, c, _, out := newApp(t, "", "zap\n?\n\n")

	require.NoError(t, app.Run(context.Background()))
	assert.EqualValues(t, 0, c.Count())
	assert.Contains(t, out.String(), `Unknown key "zap"`)
	assert.Contains(t, out.String(), hintHelp)
}

func TestApp_Quit(t *testing.T) {
	app, c, s, _ := newApp(t, "", "+\nq\n+\n")

	require.NoError(t, app.Run(context.Background()))
	assert.EqualValues(t, 1, c.Count())
	assert.Equal(t, "1", stored(t, s))
}

func TestApp_QuitStopsReader(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	for i := 0; i < 10; i++ {
		app, c, _, _ := newApp(t, "", "q\n+\n+\n")
		require.NoError(t, app.Run(context.Background()))
		assert.EqualValues(t, 0, c.Count())
	}
}

func TestApp_RedrawsAfterEveryChange(t *testing.T) {
	app, _, _, out := newApp(t, "", "+\n+\n")

	require.NoError(t, app.Run(context.Background()))
	frames := strings.Count(out.String(), "TALLY COUNTER")
	assert.Equal(t, 3, frames)
	assert.Contains(t, out.String(), "    2\n")
}

func TestApp_ContextCanceled(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	c := counter.New(store.NewMemoryStore())
	require.NoError(t, c.Initialize(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	var out bytes.Buffer
	app := NewApp(c, pr, &out)
	go func() {
		done <- app.Run(ctx)
	}()

	_, err := pw.Write([]byte("+\n"))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return c.Count() == 1 }, 5*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}
}
