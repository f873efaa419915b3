// Package gormstore backs the send ledger with an embedded SQLite database.
// It is the production-scale alternative to the JSON file store: same
// write-once contract, no full-document rewrites.
package gormstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/cobranca/internal/clock"
	"github.com/smallbiznis/cobranca/internal/ledger/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

type sendRecordRow struct {
	InvoiceID int64     `gorm:"primaryKey;autoIncrement:false"`
	Stage     string    `gorm:"primaryKey;type:text"`
	SentAt    time.Time `gorm:"not null;index"`
	Metadata  string    `gorm:"type:text"`
}

func (sendRecordRow) TableName() string { return "send_records" }

type Store struct {
	db    *gorm.DB
	clock clock.Clock
}

// Open opens (and migrates) the SQLite ledger at path. Use ":memory:" for
// throwaway test ledgers.
func Open(path string, clk clock.Clock) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("ledger: open %s: %w", path, err)
	}
	if err := db.AutoMigrate(&sendRecordRow{}); err != nil {
		return nil, fmt.Errorf("ledger: migrate: %w", err)
	}
	return &Store{db: db, clock: clk}, nil
}

func (s *Store) HasBeenSent(ctx context.Context, invoiceID int64, stage string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&sendRecordRow{}).
		Where("invoice_id = ? AND stage = ?", invoiceID, stage).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *Store) RecordSent(ctx context.Context, invoiceID int64, stage string, meta domain.Metadata) error {
	encoded := ""
	if len(meta) > 0 {
		raw, err := json.Marshal(meta)
		if err != nil {
			return fmt.Errorf("ledger: encode metadata: %w", err)
		}
		encoded = string(raw)
	}

	row := sendRecordRow{
		InvoiceID: invoiceID,
		Stage:     stage,
		SentAt:    s.clock.Now(),
		Metadata:  encoded,
	}

	// Write-once: an existing key keeps its original row.
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&row).Error
}

func (s *Store) PurgeOlderThan(ctx context.Context, retentionDays int) (int, error) {
	cutoff := s.clock.Now().AddDate(0, 0, -retentionDays)

	res := s.db.WithContext(ctx).
		Where("sent_at < ?", cutoff).
		Delete(&sendRecordRow{})
	if res.Error != nil {
		return 0, res.Error
	}
	return int(res.RowsAffected), nil
}

func (s *Store) Stats(ctx context.Context) (domain.Stats, error) {
	stats := domain.Stats{CountByStage: map[string]int{}}

	var rows []struct {
		Stage string
		Count int
	}
	err := s.db.WithContext(ctx).
		Model(&sendRecordRow{}).
		Select("stage, COUNT(*) AS count").
		Group("stage").
		Scan(&rows).Error
	if err != nil {
		return domain.Stats{}, err
	}

	for _, row := range rows {
		stats.CountByStage[row.Stage] = row.Count
		stats.TotalRecords += row.Count
	}
	return stats, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
