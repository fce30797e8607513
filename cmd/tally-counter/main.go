package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/tckz/tally-counter/internal/counter"
	"github.com/tckz/tally-counter/internal/log"
	"github.com/tckz/tally-counter/internal/screen"
	"github.com/tckz/tally-counter/internal/store"
	"go.uber.org/zap"
)

var (
	myName  = filepath.Base(os.Args[0])
	logger  *zap.SugaredLogger
	version string
)

var (
	optLogLevel    = flag.String("log-level", "info", "debug|info|warn|error")
	optLogOut      = flag.String("log-out", "stderr", "path/to/log or 'stderr'")
	optStore       = flag.String("store", "file", store.BackendUsage())
	optKey         = flag.String("key", counter.DefaultKey, "name of the slot holding the count")
	optFile        = flag.String("file", store.DefaultFilePath(), "path/to/store for -store=file")
	optRedis       = flag.String("redis", "", "addr:port of redis for -store=redis")
	optRedisPrefix = flag.String("redis-prefix", "", "prefix of redis keys")
	optNameSpace   = flag.String("ns", "", "datastore namespace")
	optKind        = flag.String("kind", store.DefaultKind, "datastore kind")
	optTimeout     = flag.Duration("timeout", 3*time.Second, "timeout of each storage call")
	optClear       = flag.Bool("clear", true, "clear the terminal before each frame")
)

func init() {
	godotenv.Load()

	flag.Parse()

	logger = log.Must(log.NewLogger(log.WithLogLevel(*optLogLevel), log.WithOutputPaths(*optLogOut))).Sugar().
		With(zap.String("app", myName), zap.String("session", uuid.New().String()))
}

func main() {
	logger.Infof("ver=%s, args=%s", version, os.Args)
	defer logger.Sync()
	defer logger.Infof("done")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	st, err := openStore(ctx)
	if err != nil {
		// Keep counting even if the slot is unreachable.
		logger.With(zap.Error(err)).Warnf("store=%s unavailable, falling back to memory", *optStore)
		st = store.NewUnavailableStore(err)
	}
	defer st.Close()

	c := counter.New(st,
		counter.WithKey(*optKey),
		counter.WithLogger(logger),
		counter.WithTimeout(*optTimeout),
	)
	if err := c.Initialize(ctx); err != nil {
		logger.Fatalf("*** Initialize: %v", err)
	}

	app := screen.NewApp(c, os.Stdin, os.Stdout,
		screen.WithLogger(logger),
		screen.WithRenderer(&screen.Renderer{Clear: *optClear}),
	)
	if err := app.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Errorf("Run: %v", err)
	}

	logger.Infof("count=%d", c.Count())
}

// ctx outlives the call: datastore credentials refresh with it.
func openStore(ctx context.Context) (store.Store, error) {
	return store.Open(ctx, store.Config{
		Backend:     *optStore,
		FilePath:    *optFile,
		RedisAddr:   *optRedis,
		RedisPrefix: *optRedisPrefix,
		ProjectID:   os.Getenv("PROJECT_ID"),
		Namespace:   *optNameSpace,
		Kind:        *optKind,
	})
}
