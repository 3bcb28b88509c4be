// Package fetcher executes named batches of HTTP tasks concurrently
// over one shared connection pool, applying a bounded per-task retry
// policy with transient/terminal failure classification.
package fetcher

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/night-crawler/async-fetcher/pkg/pool"
	"github.com/night-crawler/async-fetcher/pkg/result"
	"github.com/night-crawler/async-fetcher/pkg/task"
)

// Config holds the fetcher configuration.
type Config struct {
	// ServiceName is the display label used in errors, logs and
	// metrics.
	ServiceName string

	// Timeout is the per-attempt timeout applied when a descriptor
	// carries no override.
	Timeout time.Duration

	// NumRetries is the default attempt budget for tasks that do not
	// set their own. Budgets below one attempt are floored at one.
	NumRetries int

	// RetryDelay is the fixed wait between retry attempts.
	RetryDelay time.Duration

	// SkipRetries forces every task to a single attempt. Intended for
	// development runs; callers wire it from their environment, the
	// fetcher never reads environment state itself.
	SkipRetries bool

	// CAFile optionally seeds the owned pool's TLS roots.
	CAFile string

	// KeepAliveTimeout bounds idle connection reuse in the owned pool.
	KeepAliveTimeout time.Duration

	// Transport, when non-nil, is borrowed instead of creating an
	// owned pool. A borrowed transport is never closed by the fetcher
	// and outlives it.
	Transport *http.Transport
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig() Config {
	return Config{
		ServiceName: "api",
		Timeout:     10 * time.Second,
		NumRetries:  1,
		RetryDelay:  1 * time.Second,
	}
}

// Fetcher is the batch entry point. Create it with New and release the
// owned connection pool with Close when done.
type Fetcher struct {
	cfg    Config
	pool   *pool.Manager
	logger zerolog.Logger
}

// New creates a fetcher. A nil Config.Transport makes the fetcher own
// its connection pool; otherwise the supplied transport is borrowed.
func New(cfg Config) *Fetcher {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "api"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.NumRetries < 1 {
		cfg.NumRetries = 1
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 1 * time.Second
	}

	var pm *pool.Manager
	if cfg.Transport != nil {
		pm = pool.Borrow(cfg.Transport)
	} else {
		pm = pool.NewManager(pool.Config{
			CAFile:           cfg.CAFile,
			KeepAliveTimeout: cfg.KeepAliveTimeout,
		})
	}

	logger := log.With().
		Str("component", "fetcher").
		Str("service", cfg.ServiceName).
		Logger()

	return &Fetcher{cfg: cfg, pool: pm, logger: logger}
}

// Pool exposes the connection pool manager, mainly for lifetime
// assertions in tests.
func (f *Fetcher) Pool() *pool.Manager {
	return f.pool
}

// Close releases the owned connection pool. Closing twice is safe, and
// a borrowed transport is left untouched.
func (f *Fetcher) Close() {
	f.pool.Close()
}

// Run executes every task of the batch concurrently over one shared
// pool and returns the results keyed and ordered by the original task
// names. The first task that exhausts its retries without FailSilently
// cancels the remaining tasks and fails the whole run.
func (f *Fetcher) Run(ctx context.Context, batch *Batch) (*Results, error) {
	start := time.Now()

	transport, err := f.pool.Acquire()
	if err != nil {
		return nil, &ReceiveError{Service: f.cfg.ServiceName, Err: err}
	}
	client := &http.Client{Transport: transport}

	names := batch.Names()
	gathered := make([]result.Result, len(names))

	g, gctx := errgroup.WithContext(ctx)
	for i, name := range names {
		i := i
		d, _ := batch.Get(name)
		g.Go(func() error {
			res, err := f.fetch(gctx, client, d)
			if err != nil {
				return err
			}
			gathered[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		f.logger.Error().
			Err(err).
			Int("tasks", len(names)).
			Dur("duration", time.Since(start)).
			Msg("Batch failed")
		return nil, err
	}

	results := &Results{
		names:   names,
		results: make(map[string]result.Result, len(names)),
	}
	for i, name := range names {
		results.results[name] = gathered[i]
	}

	fetchBatchesTotal.WithLabelValues(f.cfg.ServiceName).Inc()
	fetchBatchDuration.WithLabelValues(f.cfg.ServiceName).Observe(time.Since(start).Seconds())
	fetchBatchSize.WithLabelValues(f.cfg.ServiceName).Observe(float64(len(names)))

	f.logger.Info().
		Int("tasks", len(names)).
		Dur("duration", time.Since(start)).
		Msg("Batch complete")

	return results, nil
}

// Fetch executes a single descriptor over the shared pool.
func (f *Fetcher) Fetch(ctx context.Context, d task.Descriptor) (result.Result, error) {
	transport, err := f.pool.Acquire()
	if err != nil {
		return result.Result{}, &ReceiveError{Service: f.cfg.ServiceName, Err: err}
	}
	return f.fetch(ctx, &http.Client{Transport: transport}, d)
}
