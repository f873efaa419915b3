// Package filestore keeps the send ledger in a single human-readable JSON
// document keyed by "{invoiceId}_{stage}". The whole document is loaded at
// open and rewritten on every mutation, which is fine at the expected scale
// of hundreds of records.
package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/smallbiznis/cobranca/internal/clock"
	"github.com/smallbiznis/cobranca/internal/ledger/domain"
)

type Store struct {
	path    string
	clock   clock.Clock
	records map[string]domain.SendRecord
}

// Open loads the ledger file, creating an empty ledger when the file does
// not exist yet.
func Open(path string, clk clock.Clock) (*Store, error) {
	s := &Store{
		path:    path,
		clock:   clk,
		records: map[string]domain.SendRecord{},
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return nil, fmt.Errorf("ledger: read %s: %w", path, err)
	}
	if len(raw) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(raw, &s.records); err != nil {
		return nil, fmt.Errorf("ledger: parse %s: %w", path, err)
	}
	return s, nil
}

func (s *Store) HasBeenSent(_ context.Context, invoiceID int64, stage string) (bool, error) {
	_, ok := s.records[domain.Key(invoiceID, stage)]
	return ok, nil
}

func (s *Store) RecordSent(_ context.Context, invoiceID int64, stage string, meta domain.Metadata) error {
	key := domain.Key(invoiceID, stage)
	if _, ok := s.records[key]; ok {
		// Write-once: keep the original timestamp and metadata.
		return nil
	}
	s.records[key] = domain.SendRecord{
		InvoiceID: invoiceID,
		Stage:     stage,
		SentAt:    s.clock.Now(),
		Metadata:  meta,
	}
	return s.flush()
}

func (s *Store) PurgeOlderThan(_ context.Context, retentionDays int) (int, error) {
	cutoff := s.clock.Now().AddDate(0, 0, -retentionDays)

	removed := 0
	for key, rec := range s.records {
		if rec.SentAt.Before(cutoff) {
			delete(s.records, key)
			removed++
		}
	}
	if removed == 0 {
		return 0, nil
	}
	return removed, s.flush()
}

func (s *Store) Stats(context.Context) (domain.Stats, error) {
	stats := domain.Stats{
		TotalRecords: len(s.records),
		CountByStage: map[string]int{},
	}
	for _, rec := range s.records {
		stats.CountByStage[rec.Stage]++
	}
	return stats, nil
}

func (s *Store) Close() error {
	return nil
}

// flush rewrites the whole document through a temp file so a crash
// mid-write never truncates the ledger.
func (s *Store) flush() error {
	raw, err := json.MarshalIndent(s.records, "", "  ")
	if err != nil {
		return fmt.Errorf("ledger: encode: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".ledger-*")
	if err != nil {
		return fmt.Errorf("ledger: temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("ledger: write %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("ledger: close %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("ledger: replace %s: %w", s.path, err)
	}
	return nil
}
