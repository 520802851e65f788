package threat

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"iocviewer/internal/metrics"
)

// ETLController coordinates fetching and storing threat intelligence. Each
// source is fetched and served on its own; batches are never merged.
type ETLController struct {
	mu       sync.RWMutex
	fetchers map[SourceID]Fetcher
	breakers map[SourceID]*CircuitBreaker
	store    Store
	cache    *BatchCache
	opts     ETLOptions
}

// ETLOptions tunes the controller. Zero values pick defaults.
type ETLOptions struct {
	CacheTTL        time.Duration
	UpstreamTimeout time.Duration
	MaxFailures     int
	BreakerTimeout  time.Duration
}

// NewETLController creates a new controller.
func NewETLController(store Store, opts ETLOptions) *ETLController {
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 10 * time.Minute
	}
	if opts.UpstreamTimeout <= 0 {
		opts.UpstreamTimeout = 30 * time.Second
	}
	if opts.MaxFailures <= 0 {
		opts.MaxFailures = 3
	}
	if opts.BreakerTimeout <= 0 {
		opts.BreakerTimeout = time.Minute
	}
	return &ETLController{
		fetchers: make(map[SourceID]Fetcher),
		breakers: make(map[SourceID]*CircuitBreaker),
		store:    store,
		cache:    NewBatchCache(len(ListSources()), opts.CacheTTL),
		opts:     opts,
	}
}

// Register adds a fetcher to the controller, replacing any fetcher already
// registered for the same source.
func (c *ETLController) Register(f Fetcher) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fetchers[f.Source()] = f
	c.breakers[f.Source()] = NewCircuitBreaker(c.opts.MaxFailures, c.opts.BreakerTimeout)
}

// Sources lists the registered sources in ListSources order.
func (c *ETLController) Sources() []SourceID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []SourceID
	for _, s := range ListSources() {
		if _, ok := c.fetchers[s]; ok {
			out = append(out, s)
		}
	}
	return out
}

// Run refreshes every registered source concurrently. Failures are logged
// per source; Run only fails when every source failed.
func (c *ETLController) Run(ctx context.Context) error {
	sources := c.Sources()
	errs := make([]error, len(sources))

	var wg sync.WaitGroup
	for i, source := range sources {
		wg.Add(1)
		go func(i int, source SourceID) {
			defer wg.Done()
			_, errs[i] = c.refresh(ctx, source)
		}(i, source)
	}
	wg.Wait()

	for _, err := range errs {
		if err == nil {
			return nil
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("all %d sources failed, first error: %w", len(errs), errs[0])
}

// Batch returns the current batch for source, serving from cache while it
// is fresh. When the upstream fails and an older batch is stored, the older
// batch is returned together with the error so callers can decide.
func (c *ETLController) Batch(ctx context.Context, source SourceID) (*IndicatorBatch, error) {
	if err := ValidateSource(source); err != nil {
		return nil, err
	}
	if batch, ok := c.cache.Get(source); ok {
		return batch, nil
	}
	batch, err := c.refresh(ctx, source)
	if err != nil {
		if stale, ok := c.store.Latest(source); ok {
			return stale, err
		}
		return nil, err
	}
	return batch, nil
}

func (c *ETLController) refresh(ctx context.Context, source SourceID) (*IndicatorBatch, error) {
	c.mu.RLock()
	fetcher, ok := c.fetchers[source]
	breaker := c.breakers[source]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q has no fetcher", ErrUnknownSource, source)
	}

	if !breaker.Allow() {
		metrics.UpstreamFetches.WithLabelValues(string(source), "rejected").Inc()
		return nil, fmt.Errorf("%w: %s", ErrCircuitOpen, source)
	}

	ctx, cancel := context.WithTimeout(ctx, c.opts.UpstreamTimeout)
	defer cancel()

	batch, err := fetcher.Fetch(ctx)
	if err != nil {
		breaker.RecordFailure()
		metrics.UpstreamFetches.WithLabelValues(string(source), "error").Inc()
		slog.Error("fetch failed", "source", source, "err", err, "breaker", breaker.State())
		return nil, err
	}
	breaker.RecordSuccess()
	metrics.UpstreamFetches.WithLabelValues(string(source), "ok").Inc()

	if err := c.store.SaveBatch(ctx, source, batch); err != nil {
		slog.Error("store failed", "source", source, "err", err)
	}
	c.cache.Set(source, batch)
	return batch, nil
}

// MemoryStore is a simple in-memory implementation of Store.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[SourceID]*IndicatorBatch
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[SourceID]*IndicatorBatch)}
}

func (m *MemoryStore) SaveBatch(_ context.Context, source SourceID, batch *IndicatorBatch) error {
	m.mu.Lock()
	m.data[source] = batch
	m.mu.Unlock()
	slog.Info("stored indicators", "source", source, "count", len(batch.Items))
	return nil
}

func (m *MemoryStore) Latest(source SourceID) (*IndicatorBatch, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	batch, ok := m.data[source]
	return batch, ok
}
