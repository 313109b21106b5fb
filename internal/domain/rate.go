package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// RateEntry is one cached conversion rate inside a snapshot.
type RateEntry struct {
	Rate      decimal.Decimal
	UpdatedAt time.Time
	Source    string
}

// Snapshot is the full current rate cache. It is always replaced
// wholesale: LastRefresh is installed fresh on every update, never
// merged field-by-field with an older value.
type Snapshot struct {
	Pairs       map[string]RateEntry
	LastRefresh time.Time
}

// RateInfo is the result of a rate lookup. Pair always names the direct
// FROM_TO key, even when the rate was derived from the inverted entry.
type RateInfo struct {
	Pair      string
	Rate      decimal.Decimal
	UpdatedAt time.Time
	Source    string
}

// Meta keys every history record carries; absent values default to "unknown".
var historyMetaKeys = []string{"raw_id", "request_ms", "status_code", "etag"}

// HistoryRecord is one append-only raw fetch event. ID is a
// deterministic function of (from, to, timestamp) and serves as the
// deduplication key.
type HistoryRecord struct {
	ID        string
	From      string
	To        string
	Rate      decimal.Decimal
	Timestamp time.Time
	Source    string
	Meta      map[string]any
}

// NewHistoryRecord builds a record with a deterministic id and a meta
// bag where the known optional sub-fields are always present.
func NewHistoryRecord(pair Pair, rate decimal.Decimal, ts time.Time, source string, meta map[string]any) HistoryRecord {
	ts = ts.UTC().Truncate(time.Second)

	safeMeta := make(map[string]any, len(meta)+len(historyMetaKeys))
	for k, v := range meta {
		safeMeta[k] = v
	}
	for _, k := range historyMetaKeys {
		if _, ok := safeMeta[k]; !ok {
			safeMeta[k] = "unknown"
		}
	}

	return HistoryRecord{
		ID:        HistoryRecordID(pair, ts),
		From:      pair.From,
		To:        pair.To,
		Rate:      rate,
		Timestamp: ts,
		Source:    source,
		Meta:      safeMeta,
	}
}

// HistoryRecordID derives the deduplication key for a fetch event.
func HistoryRecordID(pair Pair, ts time.Time) string {
	return fmt.Sprintf("%s_%s", pair.Key(), ts.UTC().Truncate(time.Second).Format(time.RFC3339))
}
