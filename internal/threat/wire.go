package threat

import (
	"errors"
	"fmt"
	"time"
)

// Document is the JSON shape served by GET /iocs and written by the feed
// loader.
type Document struct {
	FetchedAt string         `json:"fetched_at"`
	IOCType   string         `json:"ioc_type"`
	Source    string         `json:"source"`
	Data      []DocumentItem `json:"data"`
}

type DocumentItem struct {
	IP    string  `json:"ip"`
	Score float64 `json:"score"`
}

var (
	ErrInvalidIndicator = errors.New("invalid indicator")
	ErrInvalidTimestamp = errors.New("invalid fetched_at timestamp")
)

func NewDocument(batch *IndicatorBatch) Document {
	data := make([]DocumentItem, len(batch.Items))
	for i, item := range batch.Items {
		data[i] = DocumentItem{IP: item.Address, Score: item.Score}
	}
	return Document{
		FetchedAt: batch.FetchedAt.UTC().Format(time.RFC3339Nano),
		IOCType:   batch.IndicatorType,
		Source:    batch.SourceName,
		Data:      data,
	}
}

// Batch converts the document into an IndicatorBatch. A single invalid
// entry rejects the whole document.
func (d Document) Batch() (*IndicatorBatch, error) {
	fetchedAt, err := time.Parse(time.RFC3339Nano, d.FetchedAt)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTimestamp, d.FetchedAt)
	}

	items := make([]Indicator, len(d.Data))
	for i, entry := range d.Data {
		if entry.IP == "" {
			return nil, fmt.Errorf("%w: entry %d has no ip", ErrInvalidIndicator, i)
		}
		if err := ValidateScore(entry.Score); err != nil {
			return nil, fmt.Errorf("%w: entry %d (%s): %w", ErrInvalidIndicator, i, entry.IP, err)
		}
		items[i] = Indicator{Address: entry.IP, Score: entry.Score}
	}

	return &IndicatorBatch{
		FetchedAt:     fetchedAt,
		IndicatorType: d.IOCType,
		SourceName:    d.Source,
		Items:         items,
	}, nil
}
