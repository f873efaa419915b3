package cadence

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smallbiznis/cobranca/internal/config"
	erpdomain "github.com/smallbiznis/cobranca/internal/erp/domain"
	ledgerdomain "github.com/smallbiznis/cobranca/internal/ledger/domain"
)

// memStore is a map-backed ledger for engine tests.
type memStore struct {
	sent map[string]bool
}

func newMemStore() *memStore { return &memStore{sent: map[string]bool{}} }

func (m *memStore) HasBeenSent(_ context.Context, invoiceID int64, stage string) (bool, error) {
	return m.sent[ledgerdomain.Key(invoiceID, stage)], nil
}

func (m *memStore) RecordSent(_ context.Context, invoiceID int64, stage string, _ ledgerdomain.Metadata) error {
	m.sent[ledgerdomain.Key(invoiceID, stage)] = true
	return nil
}

func (m *memStore) PurgeOlderThan(context.Context, int) (int, error) { return 0, nil }

func (m *memStore) Stats(context.Context) (ledgerdomain.Stats, error) {
	return ledgerdomain.Stats{}, nil
}

func (m *memStore) Close() error { return nil }

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(config.DefaultCadenceConfig())
	require.NoError(t, err)
	return e
}

func invoice(id int64, due time.Time) erpdomain.Invoice {
	return erpdomain.Invoice{
		ID:            id,
		CustomerID:    100,
		DueDate:       due,
		Amount:        decimal.NewFromFloat(1250),
		OurNumber:     "109/00019106-0",
		DigitableLine: "34191.09008 00191.060003 00000.000000 1 98760000125000",
	}
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.Local)
}

func TestNewEngineRejectsMissingTemplate(t *testing.T) {
	cfg := config.DefaultCadenceConfig()
	cfg.Rules = append(cfg.Rules, config.CadenceRule{Days: 10, Stage: "final_notice", Priority: "urgent"})
	_, err := NewEngine(cfg)
	assert.ErrorIs(t, err, ErrStageNotConfigured)
}

func TestNewEngineRejectsEmptyTable(t *testing.T) {
	cfg := config.CadenceConfig{Templates: config.DefaultCadenceConfig().Templates}
	_, err := NewEngine(cfg)
	assert.ErrorIs(t, err, ErrStageNotConfigured)
}

func TestStageFor(t *testing.T) {
	e := newTestEngine(t)

	cases := []struct {
		daysUntilDue int
		stage        Stage
		ok           bool
	}{
		{3, StageReminder, true},
		{0, StageDueToday, true},
		{-3, StageOverdue, true},
		{-5, StageNotice, true},
		{1, "", false},
		{-4, "", false},
	}
	for _, tc := range cases {
		rule, ok := e.StageFor(tc.daysUntilDue)
		assert.Equal(t, tc.ok, ok, "daysUntilDue=%d", tc.daysUntilDue)
		if ok {
			assert.Equal(t, tc.stage, rule.Stage)
		}
	}
}

func TestWindow(t *testing.T) {
	e := newTestEngine(t)
	min, max := e.Window()
	assert.Equal(t, -3, min)
	assert.Equal(t, 5, max)
}

func TestDueInvoicesForTodayExactOffsets(t *testing.T) {
	e := newTestEngine(t)
	store := newMemStore()

	// Wednesday 2024-11-20. The reminder fires for the invoice due
	// Saturday 11-23 (ideal 11-20, a workday), due-today for 11-20.
	// The invoice due 11-14 has no stage landing on 11-20.
	today := date(2024, time.November, 20)
	invoices := []erpdomain.Invoice{
		invoice(1, date(2024, time.November, 23)),
		invoice(2, date(2024, time.November, 20)),
		invoice(3, date(2024, time.November, 14)),
	}

	dues, err := e.DueInvoicesForToday(context.Background(), invoices, today, store)
	require.NoError(t, err)
	require.Len(t, dues, 2)

	byID := map[int64]Stage{}
	for _, d := range dues {
		byID[d.Invoice.ID] = d.Rule.Stage
	}
	assert.Equal(t, StageReminder, byID[1])
	assert.Equal(t, StageDueToday, byID[2])
}

func TestDueInvoicesForTodayWeekendDeferral(t *testing.T) {
	e := newTestEngine(t)
	store := newMemStore()

	// Due Thursday 2024-11-21: the overdue stage's ideal date is Sunday
	// 11-24, which defers to Monday 11-25. No other stage lands on that
	// Monday for this due date.
	inv := invoice(10, date(2024, time.November, 21))

	monday := date(2024, time.November, 25)
	dues, err := e.DueInvoicesForToday(context.Background(), []erpdomain.Invoice{inv}, monday, store)
	require.NoError(t, err)
	require.Len(t, dues, 1)
	assert.Equal(t, StageOverdue, dues[0].Rule.Stage)
	assert.True(t, dues[0].SendDate.Deferred)
	assert.Equal(t, 1, dues[0].SendDate.DeferralDays)

	// On the Sunday itself nothing is due.
	sunday := date(2024, time.November, 24)
	dues, err = e.DueInvoicesForToday(context.Background(), []erpdomain.Invoice{inv}, sunday, store)
	require.NoError(t, err)
	assert.Empty(t, dues)
}

func TestDueInvoicesForTodaySkipsAlreadySent(t *testing.T) {
	e := newTestEngine(t)
	store := newMemStore()

	inv := invoice(20, date(2024, time.November, 20))
	today := date(2024, time.November, 20)

	dues, err := e.DueInvoicesForToday(context.Background(), []erpdomain.Invoice{inv}, today, store)
	require.NoError(t, err)
	require.Len(t, dues, 1)

	require.NoError(t, store.RecordSent(context.Background(), inv.ID, string(StageDueToday), nil))

	dues, err = e.DueInvoicesForToday(context.Background(), []erpdomain.Invoice{inv}, today, store)
	require.NoError(t, err)
	assert.Empty(t, dues)
}

func TestDueInvoicesForTodaySkipsSettledAndSliplessInvoices(t *testing.T) {
	e := newTestEngine(t)
	store := newMemStore()
	today := date(2024, time.November, 20)

	settled := invoice(30, today)
	settledAt := date(2024, time.November, 19)
	settled.SettledAt = &settledAt

	noSlip := invoice(31, today)
	noSlip.OurNumber = ""

	dues, err := e.DueInvoicesForToday(context.Background(), []erpdomain.Invoice{settled, noSlip}, today, store)
	require.NoError(t, err)
	assert.Empty(t, dues)
}

func TestSortForDispatch(t *testing.T) {
	e := newTestEngine(t)
	store := newMemStore()

	// All four stages due the same Friday: due 11-25 (reminder ideal
	// Friday 11-22), due 11-22 (due today), due 11-19 (+3 = Friday),
	// due 11-17 (+5 = Friday). Two invoices in the same stage check the
	// id tiebreak.
	today := date(2024, time.November, 22)
	invoices := []erpdomain.Invoice{
		invoice(5, date(2024, time.November, 25)),
		invoice(4, date(2024, time.November, 22)),
		invoice(3, date(2024, time.November, 19)),
		invoice(2, date(2024, time.November, 17)),
		invoice(1, date(2024, time.November, 17)),
	}

	dues, err := e.DueInvoicesForToday(context.Background(), invoices, today, store)
	require.NoError(t, err)
	require.Len(t, dues, 5)

	SortForDispatch(dues)

	gotIDs := make([]int64, 0, len(dues))
	for _, d := range dues {
		gotIDs = append(gotIDs, d.Invoice.ID)
	}
	assert.Equal(t, []int64{1, 2, 3, 4, 5}, gotIDs)
	assert.Equal(t, StageNotice, dues[0].Rule.Stage)
	assert.Equal(t, StageReminder, dues[4].Rule.Stage)
}

func TestRenderMessage(t *testing.T) {
	e := newTestEngine(t)

	inv := invoice(19106, date(2024, time.November, 20))
	inv.DocumentNumber = "4812"
	cust := erpdomain.Customer{ID: 100, Name: "MARIA DAS DORES LTDA"}

	msg, err := e.RenderMessage(inv, cust, StageReminder)
	require.NoError(t, err)
	assert.Contains(t, msg, "MARIA")
	assert.Contains(t, msg, "4812")
	assert.Contains(t, msg, "20/11/2024")
	assert.Contains(t, msg, "R$ 1.250,00")
	assert.NotContains(t, msg, "{")

	_, err = e.RenderMessage(inv, cust, Stage("unknown"))
	assert.ErrorIs(t, err, ErrStageNotConfigured)
}
