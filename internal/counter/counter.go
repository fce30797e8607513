// Package counter holds the tally counter view-model: a persisted signed count
// plus a two-step reset guarded by a confirmation state.
package counter

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/tckz/tally-counter/internal/store"
	"go.uber.org/zap"
)

// DefaultKey names the slot the count is stored under.
const DefaultKey = "zen_counter_val"

var ErrAlreadyInitialized = errors.New("counter: already initialized")

// Storage is the slot the count is mirrored into.
// Get reports a missing value with store.ErrNotFound.
type Storage interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string) error
}

// State is the confirmation state of a reset.
type State int

const (
	Idle State = iota
	PendingReset
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case PendingReset:
		return "pending-reset"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

type SyncStatus int

const (
	// NotSaved means nothing has been written this session.
	NotSaved SyncStatus = iota
	Saved
	// SaveFailed means the last write failed; the next mutation writes again.
	SaveFailed
	// Offline means the slot could not be read, so it is never written this session.
	Offline
)

func (s SyncStatus) String() string {
	switch s {
	case NotSaved:
		return "not-saved"
	case Saved:
		return "saved"
	case SaveFailed:
		return "save-failed"
	case Offline:
		return "offline"
	default:
		return fmt.Sprintf("SyncStatus(%d)", int(s))
	}
}

// Snapshot is a copy of the counter state handed to observers.
type Snapshot struct {
	Count     int64
	State     State
	Sync      SyncStatus
	SavedAt   time.Time
	LastError error
}

type options struct {
	key     string
	logger  *zap.SugaredLogger
	timeout time.Duration
	now     func() time.Time
}

type Option func(o *options)

func WithKey(key string) Option {
	return Option(func(o *options) {
		o.key = key
	})
}

func WithLogger(logger *zap.SugaredLogger) Option {
	return Option(func(o *options) {
		o.logger = logger
	})
}

// WithTimeout bounds each storage call. Zero means the caller's context alone.
func WithTimeout(d time.Duration) Option {
	return Option(func(o *options) {
		o.timeout = d
	})
}

func WithNow(now func() time.Time) Option {
	return Option(func(o *options) {
		o.now = now
	})
}

type Counter struct {
	storage Storage
	opts    options

	mu          sync.Mutex
	count       int64
	state       State
	sync        SyncStatus
	savedAt     time.Time
	lastErr     error
	initialized bool
	subs        []subscription
	nextSub     int
}

type subscription struct {
	id int
	fn func(Snapshot)
}

// New returns a counter at 0. Call Initialize before using it.
func New(storage Storage, opts ...Option) *Counter {
	o := options{
		key:    DefaultKey,
		logger: zap.NewNop().Sugar(),
		now:    time.Now,
	}
	for _, e := range opts {
		e(&o)
	}

	return &Counter{
		storage: storage,
		opts:    o,
	}
}

// Initialize loads the stored count. It must be called once before any mutation is persisted.
func (c *Counter) Initialize(ctx context.Context) error {
	c.mu.Lock()
	if c.initialized {
		c.mu.Unlock()
		return ErrAlreadyInitialized
	}

	logger := c.opts.logger.With(zap.String("key", c.opts.key))

	v, err := c.get(ctx)
	switch {
	case err == nil:
		if n, perr := strconv.ParseInt(strings.TrimSpace(v), 10, 64); perr != nil {
			c.count = 0
			logger.Warnf("stored value is not an integer, starting from 0: value=%q", v)
		} else {
			c.count = n
			logger.Infof("loaded count=%d", n)
		}
	case errors.Is(err, store.ErrNotFound):
		c.count = 0
		logger.Debugf("no stored value, starting from 0")
	default:
		c.count = 0
		c.sync = Offline
		c.lastErr = err
		logger.With(zap.Error(err)).Warnf("storage unavailable, counting in memory only")
	}

	c.initialized = true
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.notify(snap)
	return nil
}

// Increment adds one and saves. At math.MaxInt64 the count is left as is.
func (c *Counter) Increment(ctx context.Context) {
	c.mutate(ctx, func() bool {
		if c.count == math.MaxInt64 {
			c.opts.logger.Warnf("count=%d is at its maximum, not incremented", c.count)
			return false
		}
		c.count++
		return true
	})
}

// Decrement subtracts one and saves. At math.MinInt64 the count is left as is.
func (c *Counter) Decrement(ctx context.Context) {
	c.mutate(ctx, func() bool {
		if c.count == math.MinInt64 {
			c.opts.logger.Warnf("count=%d is at its minimum, not decremented", c.count)
			return false
		}
		c.count--
		return true
	})
}

// RequestReset asks for confirmation. The count is left alone.
func (c *Counter) RequestReset() {
	c.mu.Lock()
	c.state = PendingReset
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.notify(snap)
}

// ConfirmReset sets the count to 0, saves, and dismisses the confirmation.
func (c *Counter) ConfirmReset(ctx context.Context) {
	c.mutate(ctx, func() bool {
		c.count = 0
		c.state = Idle
		return true
	})
}

// CancelReset dismisses the confirmation. It is a no-op when Idle.
func (c *Counter) CancelReset() {
	c.mu.Lock()
	c.state = Idle
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.notify(snap)
}

// Count returns the current count.
func (c *Counter) Count() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

// State returns the current confirmation state.
func (c *Counter) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Snapshot returns a copy of the current state.
func (c *Counter) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Subscribe registers fn to be called with a fresh Snapshot after every change.
func (c *Counter) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextSub
	c.nextSub++
	c.subs = append(c.subs, subscription{id: id, fn: fn})

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, e := range c.subs {
			if e.id == id {
				c.subs = append(c.subs[:i], c.subs[i+1:]...)
				return
			}
		}
	}
}

// mutate applies fn and saves when fn reports a change.
func (c *Counter) mutate(ctx context.Context, fn func() bool) {
	c.mu.Lock()
	changed := fn()
	if changed && c.initialized {
		c.persistLocked(ctx)
	}
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.notify(snap)
}

func (c *Counter) persistLocked(ctx context.Context) {
	if c.sync == Offline {
		return
	}

	v := strconv.FormatInt(c.count, 10)
	if err := c.set(ctx, v); err != nil {
		c.sync = SaveFailed
		c.lastErr = err
		c.opts.logger.With(zap.String("key", c.opts.key), zap.Error(err)).Warnf("failed to save count=%s", v)
		return
	}

	c.sync = Saved
	c.savedAt = c.opts.now()
	c.lastErr = nil
}

func (c *Counter) get(ctx context.Context) (string, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	return c.storage.Get(ctx, c.opts.key)
}

func (c *Counter) set(ctx context.Context, v string) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	return c.storage.Set(ctx, c.opts.key, v)
}

func (c *Counter) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.opts.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.opts.timeout)
}

func (c *Counter) snapshotLocked() Snapshot {
	return Snapshot{
		Count:     c.count,
		State:     c.state,
		Sync:      c.sync,
		SavedAt:   c.savedAt,
		LastError: c.lastErr,
	}
}

func (c *Counter) notify(snap Snapshot) {
	c.mu.Lock()
	subs := make([]subscription, len(c.subs))
	copy(subs, c.subs)
	c.mu.Unlock()

	for _, e := range subs {
		e.fn(snap)
	}
}
