package threat

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

// Indicator is a single IOC: an IP address and its risk score.
type Indicator struct {
	Address string
	Score   float64
}

// IndicatorBatch is the result of one fetch from one source. A newer batch
// for the same source replaces the older one wholesale.
type IndicatorBatch struct {
	FetchedAt     time.Time
	IndicatorType string
	SourceName    string
	Items         []Indicator
}

// SourceID identifies an upstream indicator feed.
type SourceID string

const (
	SourceAbuseIPDB  SourceID = "abuseipdb"
	SourceAlienVault SourceID = "alienvault"
)

func ListSources() []SourceID {
	return []SourceID{
		SourceAbuseIPDB,
		SourceAlienVault,
	}
}

var (
	ErrUnknownSource = errors.New("unknown indicator source")
	ErrInvalidScore  = errors.New("invalid indicator score")
)

func ValidateSource(source SourceID) error {
	for _, possible := range ListSources() {
		if source == possible {
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrUnknownSource, source)
}

// ValidateScore rejects scores the severity policy has no tier for:
// negative, NaN and infinite values.
func ValidateScore(score float64) error {
	switch {
	case math.IsNaN(score), math.IsInf(score, 0):
		return fmt.Errorf("%w: %v is not finite", ErrInvalidScore, score)
	case score < 0:
		return fmt.Errorf("%w: %v is negative", ErrInvalidScore, score)
	}
	return nil
}

// Fetcher pulls the current indicator list of one source.
type Fetcher interface {
	Source() SourceID
	Fetch(ctx context.Context) (*IndicatorBatch, error)
}

// Store keeps the latest batch per source.
type Store interface {
	SaveBatch(ctx context.Context, source SourceID, batch *IndicatorBatch) error
	Latest(source SourceID) (*IndicatorBatch, bool)
}
