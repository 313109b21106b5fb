// Package ratestore persists the rate cache snapshot and the raw fetch
// history as whole JSON documents. Every write goes through a temp file
// and an atomic rename so a crash mid-write never leaves a half-written
// file behind.
package ratestore

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/valutatrade/hub/internal/domain"
	"github.com/valutatrade/hub/internal/storage/fsjson"
)

// Store owns the snapshot and history files. A single mutex serializes
// all reads and writes: the storage unit is a whole-file rewrite, so
// two in-flight writers could otherwise clobber each other.
type Store struct {
	snapshotPath string
	historyPath  string
	mu           sync.Mutex
}

// NewStore builds a store over the two file paths.
func NewStore(snapshotPath, historyPath string) *Store {
	return &Store{snapshotPath: snapshotPath, historyPath: historyPath}
}

type rateEntryDTO struct {
	Rate      float64 `json:"rate"`
	UpdatedAt string  `json:"updated_at"`
	Source    string  `json:"source"`
}

type snapshotDTO struct {
	Pairs       *map[string]rateEntryDTO `json:"pairs"`
	LastRefresh *string                  `json:"last_refresh"`
}

type historyRecordDTO struct {
	ID        string         `json:"id"`
	From      string         `json:"from_currency"`
	To        string         `json:"to_currency"`
	Rate      float64        `json:"rate"`
	Timestamp string         `json:"timestamp"`
	Source    string         `json:"source"`
	Meta      map[string]any `json:"meta"`
}

// Load reads and validates the snapshot file.
func (s *Store) Load() (domain.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.loadSnapshotLocked()
}

func (s *Store) loadSnapshotLocked() (domain.Snapshot, error) {
	payload, err := os.ReadFile(s.snapshotPath)
	if err != nil {
		return domain.Snapshot{}, &domain.StorageError{Op: "read", Path: s.snapshotPath, Err: err}
	}

	var dto snapshotDTO
	if err := json.Unmarshal(payload, &dto); err != nil {
		return domain.Snapshot{}, &domain.StorageError{Op: "decode", Path: s.snapshotPath, Err: err}
	}
	if dto.Pairs == nil || dto.LastRefresh == nil {
		return domain.Snapshot{}, &domain.StorageError{
			Op:   "decode",
			Path: s.snapshotPath,
			Err:  errors.New("snapshot must contain pairs mapping and last_refresh"),
		}
	}

	snap := domain.Snapshot{Pairs: make(map[string]domain.RateEntry, len(*dto.Pairs))}
	// Unparseable timestamps become zero values: the resolver treats a
	// zero LastRefresh as stale and a zero UpdatedAt as missing metadata.
	snap.LastRefresh, _ = time.Parse(time.RFC3339, *dto.LastRefresh)

	for key, entry := range *dto.Pairs {
		updatedAt, _ := time.Parse(time.RFC3339, entry.UpdatedAt)
		snap.Pairs[key] = domain.RateEntry{
			Rate:      decimal.NewFromFloat(entry.Rate),
			UpdatedAt: updatedAt,
			Source:    entry.Source,
		}
	}

	return snap, nil
}

// Save atomically replaces the snapshot file.
func (s *Store) Save(snap domain.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pairs := make(map[string]rateEntryDTO, len(snap.Pairs))
	for key, entry := range snap.Pairs {
		pairs[key] = rateEntryDTO{
			Rate:      entry.Rate.InexactFloat64(),
			UpdatedAt: entry.UpdatedAt.UTC().Format(time.RFC3339),
			Source:    entry.Source,
		}
	}
	lastRefresh := snap.LastRefresh.UTC().Format(time.RFC3339)

	return fsjson.WriteAtomic(s.snapshotPath, snapshotDTO{Pairs: &pairs, LastRefresh: &lastRefresh})
}

// LoadHistory reads the raw fetch history. A missing file is an empty
// history, not an error: the log starts existing with the first append.
func (s *Store) LoadHistory() ([]domain.HistoryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.loadHistoryLocked()
}

func (s *Store) loadHistoryLocked() ([]domain.HistoryRecord, error) {
	payload, err := os.ReadFile(s.historyPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, &domain.StorageError{Op: "read", Path: s.historyPath, Err: err}
	}

	var dtos []historyRecordDTO
	if err := json.Unmarshal(payload, &dtos); err != nil {
		return nil, &domain.StorageError{Op: "decode", Path: s.historyPath, Err: err}
	}

	records := make([]domain.HistoryRecord, 0, len(dtos))
	for _, dto := range dtos {
		ts, _ := time.Parse(time.RFC3339, dto.Timestamp)
		records = append(records, domain.HistoryRecord{
			ID:        dto.ID,
			From:      dto.From,
			To:        dto.To,
			Rate:      decimal.NewFromFloat(dto.Rate),
			Timestamp: ts,
			Source:    dto.Source,
			Meta:      dto.Meta,
		})
	}

	return records, nil
}

// AppendHistory merges new records into the history, skipping ids that
// are already present, and rewrites the whole file atomically. One
// malformed record rejects the entire batch before anything is written.
func (s *Store) AppendHistory(records []domain.HistoryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	history, err := s.loadHistoryLocked()
	if err != nil {
		return err
	}

	existing := make(map[string]struct{}, len(history))
	for _, r := range history {
		existing[r.ID] = struct{}{}
	}

	var fresh []domain.HistoryRecord
	for _, r := range records {
		if r.ID == "" {
			continue
		}
		if _, dup := existing[r.ID]; dup {
			continue
		}
		if err := validateHistoryRecord(r); err != nil {
			return err
		}
		fresh = append(fresh, r)
		existing[r.ID] = struct{}{}
	}

	if len(fresh) == 0 {
		return nil
	}

	dtos := make([]historyRecordDTO, 0, len(history)+len(fresh))
	for _, r := range append(history, fresh...) {
		dtos = append(dtos, historyRecordDTO{
			ID:        r.ID,
			From:      r.From,
			To:        r.To,
			Rate:      r.Rate.InexactFloat64(),
			Timestamp: r.Timestamp.UTC().Format(time.RFC3339),
			Source:    r.Source,
			Meta:      r.Meta,
		})
	}

	return fsjson.WriteAtomic(s.historyPath, dtos)
}

func validateHistoryRecord(r domain.HistoryRecord) error {
	if r.From == "" || r.To == "" {
		return domain.NewValidationError("history record %s: from_currency and to_currency are required", r.ID)
	}
	if r.Timestamp.IsZero() {
		return domain.NewValidationError("history record %s: timestamp is required", r.ID)
	}
	if r.Source == "" {
		return domain.NewValidationError("history record %s: source is required", r.ID)
	}
	if r.Meta == nil {
		return domain.NewValidationError("history record %s: meta mapping is required", r.ID)
	}
	return nil
}
