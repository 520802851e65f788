package threat

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/willf/bloom"

	"iocviewer/internal/metrics"
)

// ListFeed describes a plain-text indicator list: one indicator per line,
// optionally followed by a numeric score column.
type ListFeed struct {
	ID            SourceID
	Name          string
	URL           string
	IndicatorType string
	// DefaultScore is used for lines without a score column.
	DefaultScore float64
}

var (
	AbuseIPDBFeed = ListFeed{
		ID:            SourceAbuseIPDB,
		Name:          "AbuseIPDB Ipsum Feed",
		URL:           "https://raw.githubusercontent.com/stamparm/ipsum/master/ipsum.txt",
		IndicatorType: "IPv4",
	}
	AlienVaultFeed = ListFeed{
		ID:            SourceAlienVault,
		Name:          "AlienVault OTX Sample Pulse",
		URL:           "https://raw.githubusercontent.com/AlienVault-OTX/OTX-Data/master/Pulse%20Samples/malware-sample-iocs.txt",
		IndicatorType: "IPv4",
		DefaultScore:  5,
	}
)

var ErrUpstreamStatus = errors.New("unexpected upstream status")

// ListFetcher downloads and parses a ListFeed.
type ListFetcher struct {
	feed   ListFeed
	client *http.Client
	now    func() time.Time
}

func NewListFetcher(feed ListFeed, client *http.Client) *ListFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &ListFetcher{feed: feed, client: client, now: time.Now}
}

// NewAbuseFetcher fetches the IPsum blocklist, where the score column is the
// number of blocklists an address appears on.
func NewAbuseFetcher(client *http.Client) *ListFetcher {
	return NewListFetcher(AbuseIPDBFeed, client)
}

// NewAlienVaultFetcher fetches the OTX sample pulse.
func NewAlienVaultFetcher(client *http.Client) *ListFetcher {
	return NewListFetcher(AlienVaultFeed, client)
}

func (f *ListFetcher) Source() SourceID { return f.feed.ID }

func (f *ListFetcher) Fetch(ctx context.Context) (*IndicatorBatch, error) {
	start := time.Now()
	defer func() {
		metrics.UpstreamDuration.WithLabelValues(string(f.feed.ID)).Observe(time.Since(start).Seconds())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.feed.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", f.feed.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %d from %s", ErrUpstreamStatus, resp.StatusCode, f.feed.URL)
	}

	items, stats, err := parseList(resp.Body, f.feed.DefaultScore, sizeHint(resp.ContentLength))
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", f.feed.Name, err)
	}
	stats.record(f.feed.ID)
	metrics.IndicatorsParsed.WithLabelValues(string(f.feed.ID)).Set(float64(len(items)))
	slog.Info("parsed feed", "source", f.feed.ID, "indicators", len(items),
		"not_ip", stats.NotIP, "bad_score", stats.BadScore, "duplicates", stats.Duplicates)

	return &IndicatorBatch{
		FetchedAt:     f.now().UTC(),
		IndicatorType: f.feed.IndicatorType,
		SourceName:    f.feed.Name,
		Items:         items,
	}, nil
}

// ParseStats counts the lines ParseList dropped.
type ParseStats struct {
	Lines      int
	NotIP      int
	BadScore   int
	Duplicates int
}

func (s ParseStats) record(source SourceID) {
	metrics.LinesSkipped.WithLabelValues(string(source), "not_ip").Add(float64(s.NotIP))
	metrics.LinesSkipped.WithLabelValues(string(source), "bad_score").Add(float64(s.BadScore))
	metrics.LinesSkipped.WithLabelValues(string(source), "duplicate").Add(float64(s.Duplicates))
}

// ParseList reads one indicator per line. Blank lines and lines starting
// with '#' are ignored, tokens that are not IP addresses are skipped, and
// only the first occurrence of an address is kept.
func ParseList(r io.Reader, defaultScore float64) ([]Indicator, ParseStats, error) {
	return parseList(r, defaultScore, defaultFeedSize)
}

func parseList(r io.Reader, defaultScore float64, expected uint) ([]Indicator, ParseStats, error) {
	var (
		stats ParseStats
		items []Indicator
		seen  = newAddressSet(expected)
	)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		stats.Lines++

		fields := strings.FieldsFunc(line, func(r rune) bool {
			return unicode.IsSpace(r) || r == ','
		})
		if len(fields) == 0 {
			stats.NotIP++
			continue
		}
		addr, err := netip.ParseAddr(fields[0])
		if err != nil {
			stats.NotIP++
			continue
		}

		score := defaultScore
		if len(fields) > 1 {
			score, err = strconv.ParseFloat(fields[1], 64)
			if err != nil {
				stats.BadScore++
				continue
			}
		}
		if err := ValidateScore(score); err != nil {
			stats.BadScore++
			continue
		}

		address := addr.String()
		if !seen.add(address) {
			stats.Duplicates++
			continue
		}
		items = append(items, Indicator{Address: address, Score: score})
	}
	if err := scanner.Err(); err != nil {
		return nil, stats, err
	}
	if items == nil {
		items = []Indicator{}
	}
	return items, stats, nil
}

const (
	defaultFeedSize = 1024
	maxFeedSize     = 500000
	// bytesPerLine is a low estimate of an "ip<TAB>count" line, so the
	// filter is sized for at least as many lines as the body holds.
	bytesPerLine = 12
)

// sizeHint estimates the number of lines in a body of n bytes. An unknown
// length (-1) falls back to the default.
func sizeHint(n int64) uint {
	if n <= 0 {
		return defaultFeedSize
	}
	lines := n/bytesPerLine + 1
	if lines > maxFeedSize {
		return maxFeedSize
	}
	return uint(lines)
}

// addressSet answers "seen before?" with a bloom filter in front of the
// exact set. The filter is a lookup prefilter only: a miss skips the map
// lookup, every kept address is still recorded exactly. Undersizing it only
// raises the false positive rate.
type addressSet struct {
	filter *bloom.BloomFilter
	seen   map[string]struct{}
}

func newAddressSet(expected uint) *addressSet {
	return &addressSet{
		filter: bloom.NewWithEstimates(expected, 0.01),
		seen:   make(map[string]struct{}),
	}
}

// add reports whether address was new.
func (s *addressSet) add(address string) bool {
	key := []byte(address)
	if s.filter.Test(key) {
		if _, ok := s.seen[address]; ok {
			return false
		}
	} else {
		s.filter.Add(key)
	}
	s.seen[address] = struct{}{}
	return true
}
