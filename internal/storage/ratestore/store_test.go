package ratestore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/valutatrade/hub/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	return NewStore(filepath.Join(dir, "rates.json"), filepath.Join(dir, "exchange_rates.json"))
}

func TestLoadMissingSnapshotFails(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Load()
	var storageErr *domain.StorageError
	require.ErrorAs(t, err, &storageErr)
}

func TestSnapshotRoundtrip(t *testing.T) {
	store := newTestStore(t)

	updatedAt := time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC)
	snap := domain.Snapshot{
		Pairs: map[string]domain.RateEntry{
			"BTC_USD": {Rate: decimal.NewFromInt(50000), UpdatedAt: updatedAt, Source: "coingecko"},
			"EUR_USD": {Rate: decimal.NewFromFloat(1.08), UpdatedAt: updatedAt, Source: "exchangerate"},
		},
		LastRefresh: updatedAt,
	}
	require.NoError(t, store.Save(snap))

	loaded, err := store.Load()
	require.NoError(t, err)
	require.Equal(t, updatedAt, loaded.LastRefresh)
	require.Len(t, loaded.Pairs, 2)

	btc := loaded.Pairs["BTC_USD"]
	require.True(t, btc.Rate.Equal(decimal.NewFromInt(50000)))
	require.Equal(t, "coingecko", btc.Source)
	require.Equal(t, updatedAt, btc.UpdatedAt)
}

func TestLoadRejectsMissingShape(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{name: "no last_refresh", payload: `{"pairs": {}}`},
		{name: "no pairs", payload: `{"last_refresh": "2025-10-01T12:00:00Z"}`},
		{name: "not json", payload: `{"pairs":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newTestStore(t)
			require.NoError(t, os.WriteFile(store.snapshotPath, []byte(tt.payload), 0o644))

			_, err := store.Load()
			var storageErr *domain.StorageError
			require.ErrorAs(t, err, &storageErr)
		})
	}
}

func TestLoadHistoryMissingFileIsEmpty(t *testing.T) {
	store := newTestStore(t)

	records, err := store.LoadHistory()
	require.NoError(t, err)
	require.Empty(t, records)
}

func TestAppendHistorySkipsDuplicateIDs(t *testing.T) {
	store := newTestStore(t)

	ts := time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC)
	pair := domain.Pair{From: "BTC", To: "USD"}
	rec := domain.NewHistoryRecord(pair, decimal.NewFromInt(50000), ts, "coingecko", nil)

	require.NoError(t, store.AppendHistory([]domain.HistoryRecord{rec}))
	// Same id again plus one fresh record.
	later := domain.NewHistoryRecord(pair, decimal.NewFromInt(50100), ts.Add(time.Minute), "coingecko", nil)
	require.NoError(t, store.AppendHistory([]domain.HistoryRecord{rec, later}))

	records, err := store.LoadHistory()
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, rec.ID, records[0].ID)
	require.Equal(t, later.ID, records[1].ID)
}

func TestAppendHistoryRejectsMalformedBatch(t *testing.T) {
	store := newTestStore(t)

	ts := time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC)
	good := domain.NewHistoryRecord(domain.Pair{From: "BTC", To: "USD"}, decimal.NewFromInt(50000), ts, "coingecko", nil)
	bad := domain.HistoryRecord{
		ID:        "EUR_USD_2025-10-01T12:00:00Z",
		From:      "EUR",
		To:        "USD",
		Timestamp: ts,
		// no source, no meta
	}

	err := store.AppendHistory([]domain.HistoryRecord{good, bad})
	var validation *domain.ValidationError
	require.ErrorAs(t, err, &validation)

	// Nothing was written: the whole batch is rejected.
	_, statErr := os.Stat(store.historyPath)
	require.True(t, os.IsNotExist(statErr))
}

func TestAppendHistoryNoopOnAllDuplicates(t *testing.T) {
	store := newTestStore(t)

	ts := time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC)
	rec := domain.NewHistoryRecord(domain.Pair{From: "BTC", To: "USD"}, decimal.NewFromInt(50000), ts, "coingecko", nil)
	require.NoError(t, store.AppendHistory([]domain.HistoryRecord{rec}))

	before, err := os.ReadFile(store.historyPath)
	require.NoError(t, err)

	require.NoError(t, store.AppendHistory([]domain.HistoryRecord{rec}))

	after, err := os.ReadFile(store.historyPath)
	require.NoError(t, err)
	require.Equal(t, before, after)
}

func TestSnapshotFileUsesJSONNumbers(t *testing.T) {
	store := newTestStore(t)

	snap := domain.Snapshot{
		Pairs: map[string]domain.RateEntry{
			"BTC_USD": {Rate: decimal.NewFromInt(50000), UpdatedAt: time.Now().UTC(), Source: "coingecko"},
		},
		LastRefresh: time.Now().UTC(),
	}
	require.NoError(t, store.Save(snap))

	payload, err := os.ReadFile(store.snapshotPath)
	require.NoError(t, err)

	var raw struct {
		Pairs map[string]struct {
			Rate json.Number `json:"rate"`
		} `json:"pairs"`
		LastRefresh string `json:"last_refresh"`
	}
	require.NoError(t, json.Unmarshal(payload, &raw))
	require.Equal(t, json.Number("50000"), raw.Pairs["BTC_USD"].Rate)
	_, err = time.Parse(time.RFC3339, raw.LastRefresh)
	require.NoError(t, err)
}
