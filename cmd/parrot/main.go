// Spins up the parrot server: per-scope similarity caches behind the Redis protocol.

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nobletooth/parrot/pkg/cache"
	"github.com/nobletooth/parrot/pkg/config"
	"github.com/nobletooth/parrot/pkg/flood"
	"github.com/nobletooth/parrot/pkg/port"
	"github.com/nobletooth/parrot/pkg/scope"
	"github.com/nobletooth/parrot/pkg/utils"
)

var (
	printVersion = flag.Bool("print_version", false, "Print the version and exit.")

	shardCount        = flag.Int("shard_count", 16, "Number of independently locked scope shards.")
	scopesPerShard    = flag.Int("scopes_per_shard", 1024, "Maximum number of live scopes per shard.")
	cacheCapacity     = flag.Int("cache_capacity", 100, "Entries kept per scope; 0 disables similarity matching.")
	weighting         = flag.String("weighting", string(cache.WeightingIDF), "Bigram weighting: idf or uniform.")
	scopeIdleTTL      = flag.Duration("scope_idle_ttl", 30*time.Minute, "Drop scopes unused for this long; 0 keeps them.")
	scopeTickInterval = flag.Duration("scope_tick_interval", time.Minute, "How often idle scopes are looked for.")

	similarityThreshold = flag.Float64("similarity_threshold", 0.8, "Minimum score for a 'similar' verdict.")
	exactCapacity       = flag.Uint("exact_capacity", 100_000, "Texts remembered for exact repeats; 0 disables it.")
	exactFalsePositive  = flag.Float64("exact_false_positive_rate", 0.001,
		"Target false positive rate of exact repeat detection.")
)

// newDetector builds the scope registry and the flood detector from flags.
func newDetector(ctx context.Context) (*flood.Detector, error) {
	cacheWeighting, err := cache.ParseWeighting(*weighting)
	if err != nil {
		return nil, fmt.Errorf("invalid --weighting flag: %w", err)
	}
	registry := scope.NewRegistry[string](ctx, scope.Options{
		ShardCount:     *shardCount,
		ScopesPerShard: *scopesPerShard,
		CacheCapacity:  *cacheCapacity,
		Weighting:      cacheWeighting,
		IdleTTL:        *scopeIdleTTL,
		TickInterval:   *scopeTickInterval,
	})
	return flood.NewDetector(registry, flood.Options{
		Threshold:              *similarityThreshold,
		ExactCapacity:          *exactCapacity,
		ExactFalsePositiveRate: *exactFalsePositive,
	})
}

// run serves the Redis protocol and metrics until `ctx` is done.
func run(ctx context.Context) error {
	detector, err := newDetector(ctx)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	metricsErrSignal := make(chan error, 1)
	go func() {
		err := serveMetrics(ctx)
		if err != nil {
			cancel()
		}
		metricsErrSignal <- err
	}()

	redisErr := port.RunRedisServer(ctx, detector)
	cancel()
	if metricsErr := <-metricsErrSignal; metricsErr != nil {
		return fmt.Errorf("metrics server failed: %w", metricsErr)
	}
	return redisErr
}

func main() {
	if err := config.InitFlags(); err != nil {
		slog.Error("Failed to initialize flags.", "error", err)
		os.Exit(1)
	}
	utils.InitLogging()

	if *printVersion {
		slog.Info("Parrot build info.", "version", utils.Version, "commit", utils.Commit, "build", utils.BuildTime)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)

	go func() { // Listen for OS interrupts in the background.
		sig := <-signals
		slog.Info("Received termination signal, cancelling server context.", "signal", sig)
		cancel()
	}()

	if err := run(ctx); err != nil {
		slog.Error("Parrot server stopped.", "err", err, "uptime", utils.Uptime())
		os.Exit(1)
	}
	slog.Info("Parrot server stopped.", "uptime", utils.Uptime())
}
