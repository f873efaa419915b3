package gormstore

import (
	"context"
	"testing"
	"time"

	"github.com/smallbiznis/cobranca/internal/clock"
	"github.com/smallbiznis/cobranca/internal/ledger/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openMemStore(t *testing.T, clk clock.Clock) *Store {
	t.Helper()
	s, err := Open(":memory:", clk)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRecordSent_WriteOnce(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFakeClock(time.Date(2024, 11, 18, 9, 0, 0, 0, time.UTC))
	s := openMemStore(t, clk)

	require.NoError(t, s.RecordSent(ctx, 19106, "reminder", domain.Metadata{"destination": "5511999999999"}))

	clk.Advance(48 * time.Hour)
	require.NoError(t, s.RecordSent(ctx, 19106, "reminder", domain.Metadata{"destination": "other"}))

	var row sendRecordRow
	require.NoError(t, s.db.Where("invoice_id = ? AND stage = ?", 19106, "reminder").First(&row).Error)
	assert.Equal(t, time.Date(2024, 11, 18, 9, 0, 0, 0, time.UTC), row.SentAt.UTC())
	assert.Contains(t, row.Metadata, "5511999999999")
}

func TestHasBeenSent(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFakeClock(time.Date(2024, 11, 18, 9, 0, 0, 0, time.UTC))
	s := openMemStore(t, clk)

	sent, err := s.HasBeenSent(ctx, 1, "due_today")
	require.NoError(t, err)
	assert.False(t, sent)

	require.NoError(t, s.RecordSent(ctx, 1, "due_today", nil))

	sent, err = s.HasBeenSent(ctx, 1, "due_today")
	require.NoError(t, err)
	assert.True(t, sent)
}

func TestPurgeOlderThan(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFakeClock(time.Date(2024, 9, 1, 9, 0, 0, 0, time.UTC))
	s := openMemStore(t, clk)

	require.NoError(t, s.RecordSent(ctx, 1, "reminder", nil))

	clk.Set(time.Date(2024, 11, 18, 9, 0, 0, 0, time.UTC))
	require.NoError(t, s.RecordSent(ctx, 2, "reminder", nil))

	removed, err := s.PurgeOlderThan(ctx, 60)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalRecords)
}

func TestStatsByStage(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFakeClock(time.Date(2024, 11, 18, 9, 0, 0, 0, time.UTC))
	s := openMemStore(t, clk)

	require.NoError(t, s.RecordSent(ctx, 1, "reminder", nil))
	require.NoError(t, s.RecordSent(ctx, 2, "reminder", nil))
	require.NoError(t, s.RecordSent(ctx, 2, "notice", nil))

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalRecords)
	assert.Equal(t, 2, stats.CountByStage["reminder"])
	assert.Equal(t, 1, stats.CountByStage["notice"])
}
