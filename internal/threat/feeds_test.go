package threat

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ipsumSample = `# IPsum Threat Intelligence Feed
# (https://github.com/stamparm/ipsum)
#
185.220.101.1	10
45.148.10.2	7
45.148.10.2	7

not-an-ip	4
10.0.0.3	banana
2001:db8::1	3
`

func TestParseListReadsScoresAndSkipsNoise(t *testing.T) {
	t.Parallel()

	items, stats, err := ParseList(strings.NewReader(ipsumSample), 0)
	require.NoError(t, err)

	assert.Equal(t, []Indicator{
		{Address: "185.220.101.1", Score: 10},
		{Address: "45.148.10.2", Score: 7},
		{Address: "2001:db8::1", Score: 3},
	}, items)
	assert.Equal(t, ParseStats{Lines: 6, NotIP: 1, BadScore: 1, Duplicates: 1}, stats)
}

func TestParseListUsesDefaultScoreWithoutColumn(t *testing.T) {
	t.Parallel()

	items, _, err := ParseList(strings.NewReader("1.2.3.4\n5.6.7.8, 9\nevil.example.com\n"), 5)
	require.NoError(t, err)

	assert.Equal(t, []Indicator{
		{Address: "1.2.3.4", Score: 5},
		{Address: "5.6.7.8", Score: 9},
	}, items)
}

func TestParseListRejectsInvalidScores(t *testing.T) {
	t.Parallel()

	items, stats, err := ParseList(strings.NewReader("1.1.1.1 -3\n2.2.2.2 NaN\n3.3.3.3 +Inf\n4.4.4.4 1\n"), 0)
	require.NoError(t, err)

	assert.Equal(t, []Indicator{{Address: "4.4.4.4", Score: 1}}, items)
	assert.Equal(t, 3, stats.BadScore)
}

func TestParseListEmptyInput(t *testing.T) {
	t.Parallel()

	items, stats, err := ParseList(strings.NewReader("# only comments\n"), 0)
	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Empty(t, items)
	assert.Zero(t, stats.Lines)
}

func TestListFetcherBuildsBatch(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(ipsumSample))
	}))
	defer srv.Close()

	feed := AbuseIPDBFeed
	feed.URL = srv.URL
	fetcher := NewListFetcher(feed, srv.Client())
	fetcher.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }

	batch, err := fetcher.Fetch(context.Background())
	require.NoError(t, err)

	assert.Equal(t, SourceAbuseIPDB, fetcher.Source())
	assert.Equal(t, "AbuseIPDB Ipsum Feed", batch.SourceName)
	assert.Equal(t, "IPv4", batch.IndicatorType)
	assert.Equal(t, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), batch.FetchedAt)
	assert.Len(t, batch.Items, 3)
}

func TestListFetcherSurfacesUpstreamStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	feed := AlienVaultFeed
	feed.URL = srv.URL
	_, err := NewListFetcher(feed, srv.Client()).Fetch(context.Background())
	require.ErrorIs(t, err, ErrUpstreamStatus)
}

func TestParseListSkipsSeparatorOnlyLines(t *testing.T) {
	t.Parallel()

	items, stats, err := ParseList(strings.NewReader("1.1.1.1 5\n,\n , ,\n2.2.2.2 8\n"), 0)
	require.NoError(t, err)
	assert.Equal(t, []Indicator{{Address: "1.1.1.1", Score: 5}, {Address: "2.2.2.2", Score: 8}}, items)
	assert.Equal(t, 2, stats.NotIP)
}

func TestSizeHint(t *testing.T) {
	t.Parallel()

	assert.Equal(t, uint(defaultFeedSize), sizeHint(-1))
	assert.Equal(t, uint(defaultFeedSize), sizeHint(0))
	assert.Equal(t, uint(101), sizeHint(1200))
	assert.Equal(t, uint(maxFeedSize), sizeHint(1<<40))
}

func TestAddressSetKeepsFirstOccurrence(t *testing.T) {
	t.Parallel()

	set := newAddressSet(16)
	assert.True(t, set.add("1.1.1.1"))
	assert.True(t, set.add("1.1.1.2"))
	assert.False(t, set.add("1.1.1.1"))
}
