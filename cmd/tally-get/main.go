package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/tckz/tally-counter/internal/counter"
	"github.com/tckz/tally-counter/internal/log"
	"github.com/tckz/tally-counter/internal/store"
	"go.uber.org/zap"
)

var (
	myName  = filepath.Base(os.Args[0])
	logger  *zap.SugaredLogger
	version string
)

var (
	optLogLevel    = flag.String("log-level", "info", "info|warn|error")
	optStore       = flag.String("store", "file", store.BackendUsage())
	optKey         = flag.String("key", counter.DefaultKey, "name of the slot holding the count")
	optFile        = flag.String("file", store.DefaultFilePath(), "path/to/store for -store=file")
	optRedis       = flag.String("redis", "", "addr:port of redis for -store=redis")
	optRedisPrefix = flag.String("redis-prefix", "", "prefix of redis keys")
	optNameSpace   = flag.String("ns", "", "datastore namespace")
	optKind        = flag.String("kind", store.DefaultKind, "datastore kind")
	optTimeout     = flag.Duration("timeout", 5*time.Second, "timeout")
)

func init() {
	godotenv.Load()

	flag.Parse()

	logger = log.Must(log.NewLogger(log.WithLogLevel(*optLogLevel))).Sugar().With(zap.String("app", myName))
}

func main() {
	logger.Infof("ver=%s, args=%s", version, os.Args)

	ctx, cancel := context.WithTimeout(context.Background(), *optTimeout)
	defer cancel()

	st, err := store.Open(ctx, store.Config{
		Backend:     *optStore,
		FilePath:    *optFile,
		RedisAddr:   *optRedis,
		RedisPrefix: *optRedisPrefix,
		ProjectID:   os.Getenv("PROJECT_ID"),
		Namespace:   *optNameSpace,
		Kind:        *optKind,
	})
	if err != nil {
		logger.Fatalf("*** store.Open: %v", err)
	}
	defer st.Close()

	v, err := st.Get(ctx, *optKey)
	if errors.Is(err, store.ErrNotFound) {
		logger.Errorf("key=%s has no value", *optKey)
		os.Exit(1)
	}
	if err != nil {
		logger.Fatalf("*** Get: %v", err)
	}

	fmt.Fprintln(os.Stdout, v)
}
