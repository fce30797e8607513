package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/tckz/tally-counter/internal/log"
	"github.com/tckz/tally-counter/internal/store"
	vh "github.com/tckz/vegetahelper"
	vegeta "github.com/tsenart/vegeta/v12/lib"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	myName  = filepath.Base(os.Args[0])
	logger  *zap.SugaredLogger
	version string
)

var (
	optRate = &vh.RateFlag{
		Rate: &vegeta.Rate{
			Freq: 30,
			Per:  1 * time.Second,
		}}
	optDuration    = flag.Duration("duration", 10*time.Second, "Duration of the test [0 = forever]")
	optOutput      = flag.String("output", "", "/path/to/results.bin or 'stdout'")
	optWorkers     = flag.Uint64("workers", vegeta.DefaultWorkers, "Number of workers")
	optLogLevel    = flag.String("log-level", "info", "info|warn|error")
	optStore       = flag.String("store", "file", store.BackendUsage())
	optFile        = flag.String("file", filepath.Join(os.TempDir(), "store-load.gob"), "path/to/store for -store=file")
	optRedis       = flag.String("redis", "", "addr:port of redis for -store=redis")
	optRedisPrefix = flag.String("redis-prefix", "store-load:", "prefix of redis keys")
	optNameSpace   = flag.String("ns", "", "datastore namespace")
	optKind        = flag.String("kind", store.DefaultKind, "datastore kind")
)

func init() {
	godotenv.Load()

	flag.Var(optRate, "rate", "Number of requests per time unit")
	flag.Parse()

	logger = log.Must(log.NewLogger(log.WithLogLevel(*optLogLevel))).Sugar().With(zap.String("app", myName))
}

type nopWriteCloser struct {
	io.Writer
}

func (c nopWriteCloser) Close() error {
	return nil
}

func openResultFile(out string) (io.WriteCloser, error) {
	switch out {
	case "stdout":
		return &nopWriteCloser{os.Stdout}, nil
	default:
		return os.Create(out)
	}
}

func main() {
	logger.Infof("ver=%s, args=%s", version, os.Args)
	defer logger.Infof("done")

	if *optOutput == "" {
		logger.Fatalf("*** --output must be specified.")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
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

	out, err := openResultFile(*optOutput)
	if err != nil {
		logger.Fatal(err)
	}
	defer out.Close()

	// Each hit writes a fresh slot then reads it back, like one counter session.
	var seq int64
	atk := vh.NewAttacker(func(ctx context.Context) (result *vh.HitResult, retErr error) {
		key := "load-" + uuid.New().String()
		want := strconv.FormatInt(atomic.AddInt64(&seq, 1), 10)
		if err := st.Set(ctx, key, want); err != nil {
			return nil, fmt.Errorf("Set: %w", err)
		}

		got, err := st.Get(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("Get: %w", err)
		}
		if got != want {
			return nil, fmt.Errorf("not match: want=%s, got=%s", want, got)
		}

		return result, nil
	}, vh.WithWorkers(*optWorkers))
	res := atk.Attack(ctx, *optRate.Rate, *optDuration, "store-"+*optStore)

	var metrics vegeta.Metrics
	var eg errgroup.Group
	eg.Go(func() error {
		enc := vegeta.NewEncoder(out)
		// keep reading until 'res' is closed, even after the signal.
		for r := range res {
			metrics.Add(r)
			if err := enc.Encode(r); err != nil {
				return fmt.Errorf("enc.Encode: %w", err)
			}
		}
		return nil
	})

	if err := eg.Wait(); err != nil {
		logger.Errorf("*** Wait: %v", err)
	}
	metrics.Close()

	logger.Infof("requests=%s, success=%.2f%%, p50=%s, p99=%s",
		humanize.Comma(int64(metrics.Requests)),
		metrics.Success*100,
		metrics.Latencies.P50,
		metrics.Latencies.P99,
	)
}
