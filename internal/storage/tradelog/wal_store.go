// Package tradelog keeps an append-only audit trail of executed trades
// in a WAL, including the wallet balances before and after each trade.
package tradelog

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"
)

const (
	tradeSegmentLimit = 1000
	tradeMaxSegments  = 100
	tradeKeyPrefix    = "trade_"
)

// Record is one executed trade as written to the audit log.
type Record struct {
	ID            string            `json:"id"`
	Action        string            `json:"action"`
	UserID        int               `json:"user_id"`
	Username      string            `json:"username"`
	CurrencyCode  string            `json:"currency_code"`
	Amount        string            `json:"amount"`
	Rate          string            `json:"rate"`
	Base          string            `json:"base"`
	WalletsBefore map[string]string `json:"wallets_before"`
	WalletsAfter  map[string]string `json:"wallets_after"`
	ExecutedAt    time.Time         `json:"executed_at"`
}

// WALStore persists trade records in a write-ahead log.
type WALStore struct {
	wal *gowal.Wal
	mu  sync.Mutex
}

// NewWALStore initializes the trade audit WAL under the given directory.
func NewWALStore(dir string) (*WALStore, error) {
	cfg := gowal.Config{
		Dir:              dir,
		Prefix:           "trade_",
		SegmentThreshold: tradeSegmentLimit,
		MaxSegments:      tradeMaxSegments,
		IsInSyncDiskMode: true,
	}

	wal, err := gowal.NewWAL(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "init trade audit WAL")
	}

	return &WALStore{wal: wal}, nil
}

// Append writes one trade record. An empty ID gets a fresh uuid.
func (s *WALStore) Append(rec Record) error {
	if s == nil || s.wal == nil {
		return errors.New("trade log is not initialized")
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.ExecutedAt.IsZero() {
		rec.ExecutedAt = time.Now().UTC()
	}

	payload, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, "marshal trade record")
	}

	key := fmt.Sprintf("%s%s", tradeKeyPrefix, rec.ID)

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wal.Write(s.wal.CurrentIndex()+1, key, payload)
}

// All returns every trade record in write order.
func (s *WALStore) All() ([]Record, error) {
	if s == nil || s.wal == nil {
		return nil, errors.New("trade log is not initialized")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var records []Record
	for msg := range s.wal.Iterator() {
		var rec Record
		if err := json.Unmarshal(msg.Value, &rec); err != nil {
			return nil, errors.Wrap(err, "decode trade record")
		}
		records = append(records, rec)
	}

	return records, nil
}

// Close closes the underlying WAL.
func (s *WALStore) Close() error {
	if s == nil || s.wal == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wal.Close()
}
