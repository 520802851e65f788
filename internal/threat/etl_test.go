package threat

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubFetcher struct {
	source SourceID
	calls  atomic.Int32
	err    error
	batch  *IndicatorBatch
}

func (s *stubFetcher) Source() SourceID { return s.source }

func (s *stubFetcher) Fetch(context.Context) (*IndicatorBatch, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	return s.batch, nil
}

func newBatch(name string, items ...Indicator) *IndicatorBatch {
	return &IndicatorBatch{
		FetchedAt:     time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		IndicatorType: "IPv4",
		SourceName:    name,
		Items:         items,
	}
}

func TestETLControllerServesFromCache(t *testing.T) {
	t.Parallel()

	fetcher := &stubFetcher{source: SourceAbuseIPDB, batch: newBatch("abuse", Indicator{"1.1.1.1", 9})}
	store := NewMemoryStore()
	ctrl := NewETLController(store, ETLOptions{CacheTTL: time.Hour})
	ctrl.Register(fetcher)

	first, err := ctrl.Batch(context.Background(), SourceAbuseIPDB)
	require.NoError(t, err)
	second, err := ctrl.Batch(context.Background(), SourceAbuseIPDB)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.EqualValues(t, 1, fetcher.calls.Load())

	stored, ok := store.Latest(SourceAbuseIPDB)
	require.True(t, ok)
	assert.Same(t, first, stored)
}

func TestETLControllerRejectsUnknownSource(t *testing.T) {
	t.Parallel()

	ctrl := NewETLController(NewMemoryStore(), ETLOptions{})
	_, err := ctrl.Batch(context.Background(), "shodan")
	require.ErrorIs(t, err, ErrUnknownSource)

	_, err = ctrl.Batch(context.Background(), SourceAlienVault)
	require.ErrorIs(t, err, ErrUnknownSource)
}

func TestETLControllerFallsBackToStoredBatch(t *testing.T) {
	t.Parallel()

	old := newBatch("alien", Indicator{"2.2.2.2", 3})
	store := NewMemoryStore()
	require.NoError(t, store.SaveBatch(context.Background(), SourceAlienVault, old))

	upstreamErr := errors.New("connection reset")
	ctrl := NewETLController(store, ETLOptions{})
	ctrl.Register(&stubFetcher{source: SourceAlienVault, err: upstreamErr})

	batch, err := ctrl.Batch(context.Background(), SourceAlienVault)
	require.ErrorIs(t, err, upstreamErr)
	assert.Same(t, old, batch)
}

func TestETLControllerOpensBreakerAfterFailures(t *testing.T) {
	t.Parallel()

	fetcher := &stubFetcher{source: SourceAbuseIPDB, err: errors.New("boom")}
	ctrl := NewETLController(NewMemoryStore(), ETLOptions{MaxFailures: 2, BreakerTimeout: time.Hour})
	ctrl.Register(fetcher)

	for range 2 {
		_, err := ctrl.Batch(context.Background(), SourceAbuseIPDB)
		require.Error(t, err)
	}
	_, err := ctrl.Batch(context.Background(), SourceAbuseIPDB)
	require.ErrorIs(t, err, ErrCircuitOpen)
	assert.EqualValues(t, 2, fetcher.calls.Load())
}

func TestETLControllerRun(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	ctrl := NewETLController(store, ETLOptions{})
	ctrl.Register(&stubFetcher{source: SourceAbuseIPDB, batch: newBatch("abuse")})
	ctrl.Register(&stubFetcher{source: SourceAlienVault, err: errors.New("down")})

	require.NoError(t, ctrl.Run(context.Background()))
	assert.Equal(t, []SourceID{SourceAbuseIPDB, SourceAlienVault}, ctrl.Sources())

	_, ok := store.Latest(SourceAbuseIPDB)
	assert.True(t, ok)
	_, ok = store.Latest(SourceAlienVault)
	assert.False(t, ok)
}

func TestETLControllerRunFailsWhenAllSourcesFail(t *testing.T) {
	t.Parallel()

	ctrl := NewETLController(NewMemoryStore(), ETLOptions{})
	ctrl.Register(&stubFetcher{source: SourceAbuseIPDB, err: errors.New("down")})

	require.Error(t, ctrl.Run(context.Background()))
}
