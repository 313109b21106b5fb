package rates

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/valutatrade/hub/internal/domain"
)

func fixedResolver(ttl time.Duration, now time.Time) *Resolver {
	r := NewResolver(ttl)
	r.now = func() time.Time { return now }
	return r
}

func TestResolveDirectPair(t *testing.T) {
	now := time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC)
	r := fixedResolver(time.Hour, now)

	snap := domain.Snapshot{
		Pairs: map[string]domain.RateEntry{
			"BTC_USD": {Rate: decimal.NewFromInt(50000), UpdatedAt: now.Add(-time.Minute), Source: "coingecko"},
		},
		LastRefresh: now.Add(-time.Minute),
	}

	info, err := r.Resolve("btc", "usd", snap)
	require.NoError(t, err)
	require.Equal(t, "BTC_USD", info.Pair)
	require.True(t, info.Rate.Equal(decimal.NewFromInt(50000)))
	require.Equal(t, "coingecko", info.Source)
	require.Equal(t, now.Add(-time.Minute), info.UpdatedAt)
}

func TestResolveInvertedPair(t *testing.T) {
	now := time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC)
	r := fixedResolver(time.Hour, now)

	snap := domain.Snapshot{
		Pairs: map[string]domain.RateEntry{
			"BTC_USD": {Rate: decimal.NewFromInt(50000), Source: "coingecko"},
		},
		LastRefresh: now,
	}

	info, err := r.Resolve("USD", "BTC", snap)
	require.NoError(t, err)
	// The reported pair is the requested direction, not the stored one.
	require.Equal(t, "USD_BTC", info.Pair)
	require.True(t, info.Rate.Equal(decimal.NewFromFloat(0.00002)), "got %s", info.Rate)
}

func TestResolveStaleCacheFailsBeforeLookup(t *testing.T) {
	now := time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC)
	r := fixedResolver(time.Hour, now)

	// The pair entry itself is fresh; staleness is judged on LastRefresh
	// alone and gates every lookup.
	snap := domain.Snapshot{
		Pairs: map[string]domain.RateEntry{
			"BTC_USD": {Rate: decimal.NewFromInt(50000), UpdatedAt: now},
		},
		LastRefresh: now.Add(-2 * time.Hour),
	}

	_, err := r.Resolve("BTC", "USD", snap)
	var stale *domain.StaleCacheError
	require.ErrorAs(t, err, &stale)
	require.Equal(t, 2*time.Hour, stale.Age)
	require.Equal(t, time.Hour, stale.TTL)
}

func TestResolveZeroLastRefreshIsStale(t *testing.T) {
	r := fixedResolver(time.Hour, time.Now())

	_, err := r.Resolve("BTC", "USD", domain.Snapshot{Pairs: map[string]domain.RateEntry{}})
	var stale *domain.StaleCacheError
	require.ErrorAs(t, err, &stale)
}

func TestResolveRateNotFound(t *testing.T) {
	now := time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC)
	r := fixedResolver(time.Hour, now)

	snap := domain.Snapshot{
		Pairs:       map[string]domain.RateEntry{},
		LastRefresh: now,
	}

	_, err := r.Resolve("ETH", "USD", snap)
	var notFound *domain.RateNotFoundError
	require.ErrorAs(t, err, &notFound)
	require.Equal(t, "ETH_USD", notFound.Pair)
}

func TestResolveRejectsZeroInvertedRate(t *testing.T) {
	now := time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC)
	r := fixedResolver(time.Hour, now)

	snap := domain.Snapshot{
		Pairs: map[string]domain.RateEntry{
			"BTC_USD": {Rate: decimal.Zero},
		},
		LastRefresh: now,
	}

	_, err := r.Resolve("USD", "BTC", snap)
	var validation *domain.ValidationError
	require.ErrorAs(t, err, &validation)
}

func TestResolveMetadataFallbacks(t *testing.T) {
	now := time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC)
	r := fixedResolver(time.Hour, now)

	snap := domain.Snapshot{
		Pairs: map[string]domain.RateEntry{
			"EUR_USD": {Rate: decimal.NewFromFloat(1.08)},
		},
		LastRefresh: now.Add(-time.Minute),
	}

	info, err := r.Resolve("EUR", "USD", snap)
	require.NoError(t, err)
	require.Equal(t, snap.LastRefresh, info.UpdatedAt)
	require.Equal(t, "cache", info.Source)
}
