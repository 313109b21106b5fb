// Package rates answers "what is the rate for A->B right now" against a
// cached snapshot.
package rates

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/valutatrade/hub/internal/domain"
)

// Resolver looks rates up in a snapshot under a TTL freshness policy.
type Resolver struct {
	ttl time.Duration
	now func() time.Time
}

// NewResolver builds a resolver with the given TTL.
func NewResolver(ttl time.Duration) *Resolver {
	return &Resolver{ttl: ttl, now: time.Now}
}

// Resolve returns the rate for from->to. The staleness gate runs before
// any pair lookup: a stale cache is no cache, whatever it contains.
// The direct FROM_TO entry always wins; the inverted TO_FROM entry is
// the fallback, with its stored rate inverted. The reported pair is
// always the direct key.
func (r *Resolver) Resolve(from, to string, snap domain.Snapshot) (domain.RateInfo, error) {
	pair, err := domain.NewPair(from, to)
	if err != nil {
		return domain.RateInfo{}, err
	}

	if snap.LastRefresh.IsZero() {
		return domain.RateInfo{}, &domain.StaleCacheError{Age: 0, TTL: r.ttl}
	}
	age := r.now().Sub(snap.LastRefresh)
	if age > r.ttl {
		return domain.RateInfo{}, &domain.StaleCacheError{Age: age, TTL: r.ttl}
	}

	directKey := pair.Key()

	var (
		rate  decimal.Decimal
		entry domain.RateEntry
		found bool
	)

	if direct, ok := snap.Pairs[directKey]; ok && direct.Rate.IsPositive() {
		rate = direct.Rate
		entry = direct
		found = true
	} else if inverse, ok := snap.Pairs[pair.Inverted().Key()]; ok {
		if inverse.Rate.IsZero() {
			return domain.RateInfo{}, domain.NewValidationError("invalid rate value in cache for %s", pair.Inverted().Key())
		}
		rate = decimal.NewFromInt(1).Div(inverse.Rate)
		entry = inverse
		found = true
	}

	if !found {
		return domain.RateInfo{}, &domain.RateNotFoundError{Pair: directKey}
	}

	updatedAt := entry.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = snap.LastRefresh
	}
	source := entry.Source
	if source == "" {
		source = "cache"
	}

	return domain.RateInfo{
		Pair:      directKey,
		Rate:      rate,
		UpdatedAt: updatedAt,
		Source:    source,
	}, nil
}
