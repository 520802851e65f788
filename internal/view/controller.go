package view

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"iocviewer/internal/common"
	"iocviewer/internal/metrics"
	"iocviewer/internal/threat"
)

// DefaultDebounceDelay is how long query input must be quiet before the
// filter is recomputed.
const DefaultDebounceDelay = 300 * time.Millisecond

// Fetcher loads the indicator batch of one source.
type Fetcher interface {
	Fetch(ctx context.Context, source threat.SourceID) (*threat.IndicatorBatch, error)
}

// Phase is the controller's position in its load cycle.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseLoading
	PhaseLoaded
	PhaseError
)

func (p Phase) String() string {
	switch p {
	case PhaseLoading:
		return "loading"
	case PhaseLoaded:
		return "loaded"
	case PhaseError:
		return "error"
	default:
		return "idle"
	}
}

var ErrNoFetcher = errors.New("no fetcher configured")

// FetchError records a failed fetch for the source it was issued for.
type FetchError struct {
	Source    threat.SourceID
	RequestID uint64
	Err       error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetching %s (request %d): %v", e.Source, e.RequestID, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Row is one visible row as the rendering surface consumes it.
type Row struct {
	Key          int
	DisplayIndex int
	Offset       int
	Size         int
	Address      string
	Score        float64
	Severity     common.Severity
}

// Snapshot is an immutable copy of the view state published after every
// transition.
type Snapshot struct {
	Phase         Phase
	Source        threat.SourceID
	Query         string
	AppliedQuery  string
	Total         int
	Matched       int
	FetchedAt     time.Time
	IndicatorType string
	SourceName    string
	Err           error
	RequestID     uint64
	FilterRuns    int
	Window        Window
	Rows          []Row
}

// Options configures a Controller. Fetcher is required.
type Options struct {
	Fetcher       Fetcher
	DefaultSource threat.SourceID
	DebounceDelay time.Duration
	RowSize       int
	Overscan      int
	Clock         Clock
	Logger        *slog.Logger
	LoopBuffer    int
}

type observer struct {
	id int
	fn func(Snapshot)
}

// Controller owns the view state. Its exported methods are safe for
// concurrent use: each one posts a task to the controller's event loop,
// where all state changes run to completion one after another.
type Controller struct {
	loop      *EventLoop
	fetcher   Fetcher
	logger    *slog.Logger
	debouncer *Debouncer[string]
	virt      *Virtualizer

	// Owned by the loop goroutine.
	baseCtx      context.Context
	phase        Phase
	source       threat.SourceID
	query        string
	appliedQuery string
	full         []threat.Indicator
	filtered     []threat.Indicator
	batch        *threat.IndicatorBatch
	err          error
	requestID    uint64
	cancelFetch  context.CancelFunc
	filterRuns   int
	observers    []observer
	nextObserver int
}

func NewController(opts Options) (*Controller, error) {
	if opts.Fetcher == nil {
		return nil, ErrNoFetcher
	}
	if opts.DefaultSource == "" {
		opts.DefaultSource = threat.SourceAbuseIPDB
	}
	if err := threat.ValidateSource(opts.DefaultSource); err != nil {
		return nil, err
	}
	if opts.DebounceDelay <= 0 {
		opts.DebounceDelay = DefaultDebounceDelay
	}
	if opts.RowSize <= 0 {
		opts.RowSize = DefaultRowSize
	}
	if opts.Clock == nil {
		opts.Clock = wallClock{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.LoopBuffer <= 0 {
		opts.LoopBuffer = 64
	}

	c := &Controller{
		loop:     NewEventLoop(opts.LoopBuffer),
		fetcher:  opts.Fetcher,
		logger:   opts.Logger,
		virt:     NewVirtualizer(opts.RowSize, opts.Overscan),
		baseCtx:  context.Background(),
		source:   opts.DefaultSource,
		full:     []threat.Indicator{},
		filtered: []threat.Indicator{},
	}
	c.debouncer = Debounce(func(q string) {
		c.loop.Post(func() { c.applyQuery(q) })
	}, opts.DebounceDelay, WithClock(opts.Clock), WithDebounceLogger(opts.Logger))
	return c, nil
}

// Run drives the event loop until ctx is done. In-flight fetches and the
// pending filter are cancelled on return.
func (c *Controller) Run(ctx context.Context) error {
	c.baseCtx = ctx
	defer func() {
		c.debouncer.Stop()
		if c.cancelFetch != nil {
			c.cancelFetch()
		}
	}()
	return c.loop.Run(ctx)
}

// SelectSource starts loading source. A fetch still in flight for an
// earlier selection is cancelled and its result discarded.
func (c *Controller) SelectSource(source threat.SourceID) error {
	if err := threat.ValidateSource(source); err != nil {
		return err
	}
	c.loop.Post(func() {
		c.source = source
		c.startFetch()
		c.publish()
	})
	return nil
}

// Retry re-issues the fetch for the selected source after a failure.
func (c *Controller) Retry() {
	c.loop.Post(func() {
		if c.phase != PhaseError {
			c.logger.Debug("retry ignored, no failed fetch", "phase", c.phase)
			return
		}
		c.startFetch()
		c.publish()
	})
}

// QueryInput updates the displayed query at once and recomputes the
// filtered set once input has been quiet for the debounce delay.
func (c *Controller) QueryInput(text string) {
	c.loop.Post(func() {
		c.query = text
		c.debouncer.Call(text)
		c.publish()
	})
}

func (c *Controller) Scroll(offset int) {
	c.loop.Post(func() {
		g := c.virt.Geometry()
		c.virt.SetViewport(offset, g.ViewportHeight)
		c.publish()
	})
}

func (c *Controller) Resize(height int) {
	c.loop.Post(func() {
		g := c.virt.Geometry()
		c.virt.SetViewport(g.ScrollOffset, height)
		c.publish()
	})
}

// SetRowSize sets the row size estimate supplied by the rendering surface.
func (c *Controller) SetRowSize(px int) {
	c.loop.Post(func() {
		c.virt.SetRowSize(px)
		c.publish()
	})
}

// Subscribe registers fn to receive a Snapshot after every transition,
// starting with the current state. fn runs on the loop goroutine and must
// not block. The returned func unregisters it.
func (c *Controller) Subscribe(fn func(Snapshot)) (cancel func()) {
	idCh := make(chan int, 1)
	c.loop.Post(func() {
		c.nextObserver++
		id := c.nextObserver
		c.observers = append(c.observers, observer{id: id, fn: fn})
		idCh <- id
		fn(c.snapshot())
	})
	var once sync.Once
	return func() {
		once.Do(func() {
			c.loop.Post(func() {
				id := <-idCh
				for i, o := range c.observers {
					if o.id == id {
						c.observers = append(c.observers[:i:i], c.observers[i+1:]...)
						return
					}
				}
			})
		})
	}
}

// State returns the current snapshot.
func (c *Controller) State(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := c.loop.Do(ctx, func() { snap = c.snapshot() })
	return snap, err
}

func (c *Controller) startFetch() {
	if c.cancelFetch != nil {
		c.cancelFetch()
	}
	c.requestID++
	id, source := c.requestID, c.source
	ctx, cancel := context.WithCancel(c.baseCtx)
	c.cancelFetch = cancel
	c.phase = PhaseLoading
	c.err = nil

	c.logger.Debug("fetching indicators", "source", source, "request", id)
	go func() {
		batch, err := c.fetcher.Fetch(ctx, source)
		c.loop.Post(func() { c.completeFetch(id, source, batch, err) })
	}()
}

func (c *Controller) completeFetch(id uint64, source threat.SourceID, batch *threat.IndicatorBatch, err error) {
	if id != c.requestID || source != c.source {
		metrics.ViewerFetches.WithLabelValues(string(source), "stale").Inc()
		c.logger.Debug("discarding stale fetch result", "source", source, "request", id,
			"current", c.requestID)
		return
	}
	c.cancelFetch()
	c.cancelFetch = nil

	if err != nil {
		metrics.ViewerFetches.WithLabelValues(string(source), "error").Inc()
		c.phase = PhaseError
		c.err = &FetchError{Source: source, RequestID: id, Err: err}
		c.logger.Error("failed to load indicators", "source", source, "request", id, "err", err)
		c.publish()
		return
	}

	metrics.ViewerFetches.WithLabelValues(string(source), "ok").Inc()
	if batch == nil {
		batch = &threat.IndicatorBatch{}
	}
	items := batch.Items
	if items == nil {
		items = []threat.Indicator{}
	}
	c.batch = batch
	c.full = items
	c.phase = PhaseLoaded
	c.refilter()
	c.logger.Info("loaded indicators", "source", source, "count", len(items), "matched", len(c.filtered))
	c.publish()
}

func (c *Controller) applyQuery(q string) {
	c.appliedQuery = q
	c.refilter()
	c.publish()
}

func (c *Controller) refilter() {
	start := time.Now()
	c.filtered = Filter(c.full, c.appliedQuery)
	c.filterRuns++
	metrics.FilterRuns.Inc()
	metrics.FilterDuration.Observe(time.Since(start).Seconds())
	c.virt.SetCount(len(c.filtered))
}

func (c *Controller) publish() {
	if len(c.observers) == 0 {
		return
	}
	snap := c.snapshot()
	for _, o := range c.observers {
		o.fn(snap)
	}
}

func (c *Controller) snapshot() Snapshot {
	window := c.virt.Window()
	rows := make([]Row, len(window.Items))
	for i, item := range window.Items {
		ioc := c.filtered[item.Index]
		rows[i] = Row{
			Key:          item.Key,
			DisplayIndex: item.Index + 1,
			Offset:       item.Offset,
			Size:         item.Size,
			Address:      ioc.Address,
			Score:        ioc.Score,
			Severity:     Classify(ioc.Score),
		}
	}

	snap := Snapshot{
		Phase:        c.phase,
		Source:       c.source,
		Query:        c.query,
		AppliedQuery: c.appliedQuery,
		Total:        len(c.full),
		Matched:      len(c.filtered),
		Err:          c.err,
		RequestID:    c.requestID,
		FilterRuns:   c.filterRuns,
		Window:       window,
		Rows:         rows,
	}
	if c.batch != nil {
		snap.FetchedAt = c.batch.FetchedAt
		snap.IndicatorType = c.batch.IndicatorType
		snap.SourceName = c.batch.SourceName
	}
	return snap
}
