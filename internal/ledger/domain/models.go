// Package domain defines the send ledger: the durable record of which
// (invoice, stage) reminders have already gone out.
package domain

import (
	"context"
	"time"
)

// Metadata is free-form delivery context stored alongside a send record
// (destination number, customer name, document number).
type Metadata map[string]string

// SendRecord is one dispatched reminder. The (InvoiceID, Stage) pair is the
// key; at most one record ever exists per key and it is never overwritten.
type SendRecord struct {
	InvoiceID int64     `json:"invoice_id"`
	Stage     string    `json:"stage"`
	SentAt    time.Time `json:"sent_at"`
	Metadata  Metadata  `json:"metadata,omitempty"`
}

func (r SendRecord) Key() string {
	return Key(r.InvoiceID, r.Stage)
}

type Stats struct {
	TotalRecords int
	CountByStage map[string]int
}

// Store persists send records across process restarts.
//
// RecordSent is write-once by key: recording an already-present key is a
// no-op and must not touch the original timestamp or metadata. The store is
// designed for a single writer per batch run; concurrent batch runs against
// the same store are out of contract.
type Store interface {
	HasBeenSent(ctx context.Context, invoiceID int64, stage string) (bool, error)
	RecordSent(ctx context.Context, invoiceID int64, stage string, meta Metadata) error

	// PurgeOlderThan removes records older than retentionDays, measured
	// from the send timestamp, and returns the count removed.
	PurgeOlderThan(ctx context.Context, retentionDays int) (int, error)

	Stats(ctx context.Context) (Stats, error)
	Close() error
}
