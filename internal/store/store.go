package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samber/lo"
)

var (
	// ErrNotFound is returned by Get when the key holds no value.
	ErrNotFound = errors.New("store: not found")

	ErrUnknownBackend = errors.New("store: unknown backend")
)

// Store is a small durable key-value facility holding string values.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string) error
	Close() error
}

type Config struct {
	Backend string

	// file
	FilePath string

	// redis
	RedisAddr   string
	RedisPrefix string

	// datastore
	ProjectID string
	Namespace string
	Kind      string
}

type opener func(ctx context.Context, cfg Config) (Store, error)

var backends = map[string]opener{
	"memory": func(ctx context.Context, cfg Config) (Store, error) {
		return NewMemoryStore(), nil
	},
	"file": func(ctx context.Context, cfg Config) (Store, error) {
		return OpenFileStore(cfg.FilePath)
	},
	"redis": func(ctx context.Context, cfg Config) (Store, error) {
		if cfg.RedisAddr == "" {
			return nil, errors.New("redis address must be specified")
		}
		cl := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:        []string{cfg.RedisAddr},
			DialTimeout:  time.Second * 2,
			ReadTimeout:  time.Second * 2,
			WriteTimeout: time.Second * 2,
			PoolSize:     4,
			PoolTimeout:  time.Second * 5,
		})
		if err := cl.Ping(ctx).Err(); err != nil {
			cl.Close()
			return nil, fmt.Errorf("cl.Ping: %w", err)
		}
		return NewRedisStore(cl, cfg.RedisPrefix), nil
	},
	"datastore": func(ctx context.Context, cfg Config) (Store, error) {
		return OpenDatastoreStore(ctx, cfg.ProjectID, cfg.Namespace, cfg.Kind)
	},
}

// Backends returns the names accepted by Open.
func Backends() []string {
	names := lo.Keys(backends)
	sort.Strings(names)
	return names
}

// BackendUsage is a flag usage string listing the backends.
func BackendUsage() string {
	return strings.Join(Backends(), "|")
}

func Open(ctx context.Context, cfg Config) (Store, error) {
	o, ok := backends[cfg.Backend]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, cfg.Backend)
	}
	s, err := o(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Backend, err)
	}
	return s, nil
}

// DefaultFilePath is where the file backend keeps its snapshot unless told otherwise.
func DefaultFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".tally-counter", "store.gob")
	}
	return filepath.Join(home, ".tally-counter", "store.gob")
}
