// Package updater refreshes the rate cache from the configured
// providers and records every raw fetch in the history log.
package updater

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/valutatrade/hub/internal/domain"
	"github.com/valutatrade/hub/internal/services/provider"
	"go.uber.org/zap"
)

// RateStore is the slice of the cache store the aggregator needs.
type RateStore interface {
	Load() (domain.Snapshot, error)
	Save(domain.Snapshot) error
	AppendHistory([]domain.HistoryRecord) error
}

// Aggregator merges the output of every selected provider into one
// snapshot. One provider failing never aborts the update; the update
// fails only when no provider yielded anything.
type Aggregator struct {
	providers []provider.Provider
	store     RateStore
	logger    *zap.Logger
	now       func() time.Time
}

// NewAggregator wires the providers to the cache store.
func NewAggregator(providers []provider.Provider, store RateStore, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{
		providers: providers,
		store:     store,
		logger:    logger,
		now:       time.Now,
	}
}

var sourceAliases = map[string]string{
	"coin-gecko":       "coingecko",
	"exchange-rate":    "exchangerate",
	"exchangerate-api": "exchangerate",
	"exchangerateapi":  "exchangerate",
}

// NormalizeSourceFilter folds case and known aliases of a source name.
func NormalizeSourceFilter(value string) string {
	v := strings.ToLower(strings.TrimSpace(value))
	if canonical, ok := sourceAliases[v]; ok {
		return canonical
	}
	return v
}

type fetchOutcome struct {
	source  string
	results map[string]provider.RatePayload
	err     error
}

// RunUpdate refreshes the cache. With an empty sourceFilter every
// provider is consulted and the merged pairs replace the stored map
// wholesale. With a filter only matching providers run and their pairs
// merge into the previously stored snapshot, so a single-source refresh
// does not drop pairs other sources supplied. LastRefresh is installed
// fresh either way.
func (a *Aggregator) RunUpdate(ctx context.Context, sourceFilter string) error {
	filter := NormalizeSourceFilter(sourceFilter)

	a.logger.Info("starting rates update", zap.String("source_filter", filter))

	selected := make([]provider.Provider, 0, len(a.providers))
	for _, p := range a.providers {
		if filter != "" && NormalizeSourceFilter(p.Source()) != filter {
			continue
		}
		selected = append(selected, p)
	}

	// Providers are independent network calls: fetch them all
	// concurrently and merge only after every call has settled.
	outcomes := make([]fetchOutcome, len(selected))
	var wg sync.WaitGroup
	for i, p := range selected {
		wg.Add(1)
		go func(i int, p provider.Provider) {
			defer wg.Done()
			results, err := p.FetchRates(ctx)
			outcomes[i] = fetchOutcome{source: p.Source(), results: results, err: err}
		}(i, p)
	}
	wg.Wait()

	merged := make(map[string]domain.RateEntry)
	var records []domain.HistoryRecord

	for _, outcome := range outcomes {
		if outcome.err != nil {
			a.logger.Error("rates update failed for source",
				zap.String("source", outcome.source),
				zap.Error(outcome.err))
			continue
		}

		for key, payload := range outcome.results {
			pair, err := domain.ParsePairKey(key)
			if err != nil {
				a.logger.Warn("skipping malformed pair key",
					zap.String("source", outcome.source),
					zap.String("pair_key", key))
				continue
			}
			if !payload.Rate.IsPositive() {
				a.logger.Warn("skipping non-positive rate",
					zap.String("source", outcome.source),
					zap.String("pair_key", key),
					zap.String("rate", payload.Rate.String()))
				continue
			}

			updatedAt := payload.UpdatedAt
			if updatedAt.IsZero() {
				updatedAt = a.now().UTC().Truncate(time.Second)
			}
			source := payload.Source
			if source == "" {
				source = outcome.source
			}

			merged[pair.Key()] = domain.RateEntry{
				Rate:      payload.Rate,
				UpdatedAt: updatedAt,
				Source:    source,
			}
			records = append(records, domain.NewHistoryRecord(pair, payload.Rate, updatedAt, source, payload.Meta))
		}
	}

	if len(merged) == 0 {
		return domain.ErrAggregationFailed
	}

	pairs := merged
	if filter != "" {
		if existing, err := a.store.Load(); err == nil {
			combined := make(map[string]domain.RateEntry, len(existing.Pairs)+len(merged))
			for key, entry := range existing.Pairs {
				combined[key] = entry
			}
			for key, entry := range merged {
				combined[key] = entry
			}
			pairs = combined
		}
	}

	snapshot := domain.Snapshot{
		Pairs:       pairs,
		LastRefresh: a.now().UTC().Truncate(time.Second),
	}
	if err := a.store.Save(snapshot); err != nil {
		return err
	}
	if err := a.store.AppendHistory(records); err != nil {
		return err
	}

	a.logger.Info("rates update completed",
		zap.Int("pairs", len(pairs)),
		zap.Int("history_records", len(records)))

	return nil
}
