// Package runner drives a collection batch: fetch candidates, evaluate
// the cadence, render and dispatch slips, record sends. Strictly
// sequential, one invoice in flight at a time. The messaging channel is
// rate sensitive, so the inter-message and inter-invoice delays are part
// of the contract, not tuning.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/cenkalti/backoff/v5"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/smallbiznis/cobranca/internal/boleto"
	"github.com/smallbiznis/cobranca/internal/cadence"
	"github.com/smallbiznis/cobranca/internal/calendar"
	"github.com/smallbiznis/cobranca/internal/clock"
	"github.com/smallbiznis/cobranca/internal/config"
	erpdomain "github.com/smallbiznis/cobranca/internal/erp/domain"
	ledgerdomain "github.com/smallbiznis/cobranca/internal/ledger/domain"
	"github.com/smallbiznis/cobranca/internal/whatsapp"
)

var ErrInvalidConfig = errors.New("runner: missing dependency")

type Params struct {
	fx.In

	Log        *zap.Logger
	Clock      clock.Clock
	Config     config.Config
	Cadence    *config.CadenceHolder
	Repo       erpdomain.Repository
	Dispatcher whatsapp.Dispatcher
	Ledger     ledgerdomain.Store
	Renderer   *boleto.Renderer
	Issuer     boleto.Issuer
	GenID      *snowflake.Node
}

// Summary is the outcome of one batch run. A run always produces one,
// even when every invoice fails.
type Summary struct {
	RunID     string
	Processed int
	Sent      int
	Skipped   int
	Errored   int
	Errors    []error
}

type Runner struct {
	log        *zap.Logger
	clk        clock.Clock
	cfg        config.RunnerConfig
	retention  int
	cadence    *config.CadenceHolder
	repo       erpdomain.Repository
	dispatcher whatsapp.Dispatcher
	ledger     ledgerdomain.Store
	renderer   *boleto.Renderer
	issuer     boleto.Issuer
	genID      *snowflake.Node

	// sleep is swapped out in tests.
	sleep func(ctx context.Context, d time.Duration)
}

func New(p Params) (*Runner, error) {
	if p.Log == nil || p.Clock == nil || p.Cadence == nil || p.Repo == nil ||
		p.Dispatcher == nil || p.Ledger == nil || p.Renderer == nil || p.GenID == nil {
		return nil, ErrInvalidConfig
	}
	return &Runner{
		log:        p.Log.Named("runner"),
		clk:        p.Clock,
		cfg:        p.Config.Runner,
		retention:  p.Config.Ledger.RetentionDays,
		cadence:    p.Cadence,
		repo:       p.Repo,
		dispatcher: p.Dispatcher,
		ledger:     p.Ledger,
		renderer:   p.Renderer,
		issuer:     p.Issuer,
		genID:      p.GenID,
		sleep:      sleepCtx,
	}, nil
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// RunOnce executes a single batch. Configuration problems (a broken
// cadence table) abort the run; anything local to one invoice is
// captured in the summary and the batch moves on.
func (r *Runner) RunOnce(ctx context.Context) (Summary, error) {
	summary := Summary{RunID: r.genID.Generate().String()}
	log := r.log.With(zap.String("run_id", summary.RunID))

	if purged, err := r.ledger.PurgeOlderThan(ctx, r.retention); err != nil {
		log.Warn("ledger retention purge failed", zap.Error(err))
	} else if purged > 0 {
		log.Info("purged expired send records", zap.Int("count", purged))
	}

	today := calendar.Truncate(r.clk.Now())
	if !calendar.IsWorkday(today) {
		log.Info("weekend, nothing to send", zap.String("date", today.Format("2006-01-02")))
		return summary, nil
	}

	engine, err := cadence.NewEngine(r.cadence.Get())
	if err != nil {
		return summary, fmt.Errorf("runner: cadence table: %w", err)
	}

	start, end := r.fetchWindow(today, engine)
	invoices, err := r.repo.FetchDueInvoices(ctx, start, end, erpdomain.DefaultFilter())
	if err != nil {
		return summary, fmt.Errorf("runner: fetch invoices: %w", err)
	}

	dues, err := engine.DueInvoicesForToday(ctx, invoices, today, r.ledger)
	if err != nil {
		// Partial evaluation failures only drop the affected invoices.
		log.Warn("cadence evaluation incomplete", zap.Error(err))
	}
	cadence.SortForDispatch(dues)

	log.Info("batch start",
		zap.Int("candidates", len(invoices)),
		zap.Int("due", len(dues)),
	)

	for i, due := range dues {
		if ctx.Err() != nil {
			break
		}
		if i > 0 {
			r.sleep(ctx, r.cfg.InterInvoiceDelay)
		}
		summary.Processed++
		r.processOne(ctx, log, engine, due, &summary)
	}

	log.Info("batch done",
		zap.Int("processed", summary.Processed),
		zap.Int("sent", summary.Sent),
		zap.Int("skipped", summary.Skipped),
		zap.Int("errored", summary.Errored),
	)
	return summary, nil
}

// fetchWindow sizes the due-date query around today. An invoice due on
// today-offset fires today, and a weekend-deferred send can belong to an
// invoice due up to MaxWeekendDeferral days earlier still, so the window
// must span [today-maxOffset-slack, today-minOffset]. The configured
// lookback and lookahead only ever widen that span; a hot-reloaded cadence
// row can therefore never reference a due date the fetch left out.
func (r *Runner) fetchWindow(today time.Time, engine *cadence.Engine) (start, end time.Time) {
	minOffset, maxOffset := engine.Window()

	lookback := r.cfg.LookbackDays
	if need := maxOffset + calendar.MaxWeekendDeferral; need > lookback {
		lookback = need
	}
	lookahead := r.cfg.LookaheadDays
	if need := -minOffset; need > lookahead {
		lookahead = need
	}
	return today.AddDate(0, 0, -lookback), today.AddDate(0, 0, lookahead)
}

// processOne handles a single (invoice, stage) pair. The ledger write
// happens only after both dispatches, so a crash mid-invoice may resend
// that one pair on the next run: at-least-once, never silently dropped.
func (r *Runner) processOne(ctx context.Context, log *zap.Logger, engine *cadence.Engine, due cadence.Due, summary *Summary) {
	inv := due.Invoice
	stage := due.Rule.Stage
	log = log.With(
		zap.Int64("invoice_id", inv.ID),
		zap.String("stage", string(stage)),
	)

	cust, err := r.repo.FetchCustomer(ctx, inv.CustomerID)
	if err != nil {
		if errors.Is(err, erpdomain.ErrNotFound) {
			log.Warn("customer missing, skipping", zap.Int64("customer_id", inv.CustomerID))
			summary.Skipped++
			return
		}
		r.fail(log, summary, fmt.Errorf("invoice %d: fetch customer: %w", inv.ID, err))
		return
	}

	address, err := whatsapp.NormalizeNumber(cust.Phone)
	if err != nil {
		log.Warn("unusable phone number, skipping", zap.Error(err))
		summary.Skipped++
		return
	}

	message, err := engine.RenderMessage(inv, *cust, stage)
	if err != nil {
		r.fail(log, summary, fmt.Errorf("invoice %d: %w", inv.ID, err))
		return
	}

	doc, err := boleto.Normalize(inv, *cust, r.issuer, r.clk.Now())
	if err != nil {
		if errors.Is(err, boleto.ErrInvalidBoletoLine) {
			log.Warn("malformed digitable line, skipping", zap.Error(err))
			summary.Skipped++
			return
		}
		r.fail(log, summary, err)
		return
	}

	var pdf bytes.Buffer
	if err := r.renderer.Render(doc, &pdf); err != nil {
		r.fail(log, summary, fmt.Errorf("invoice %d: %w", inv.ID, err))
		return
	}

	textReceipt, err := r.send(ctx, func() (*whatsapp.DeliveryReceipt, error) {
		return r.dispatcher.SendText(ctx, address, message)
	})
	if err != nil {
		r.fail(log, summary, fmt.Errorf("invoice %d: send text: %w", inv.ID, err))
		return
	}

	r.sleep(ctx, r.cfg.InterMessageDelay)

	filename := fmt.Sprintf("boleto-%d.pdf", inv.ID)
	attachReceipt, err := r.send(ctx, func() (*whatsapp.DeliveryReceipt, error) {
		return r.dispatcher.SendAttachment(ctx, address, pdf.Bytes(), filename, "Segue o boleto para pagamento.")
	})
	if err != nil {
		r.fail(log, summary, fmt.Errorf("invoice %d: send attachment: %w", inv.ID, err))
		return
	}

	metadata := ledgerdomain.Metadata{
		"address":       address,
		"customer_name": cust.Name,
	}
	if textReceipt.MessageID != "" {
		metadata["text_message_id"] = textReceipt.MessageID
	}
	if attachReceipt.MessageID != "" {
		metadata["attachment_message_id"] = attachReceipt.MessageID
	}
	if err := r.ledger.RecordSent(ctx, inv.ID, string(stage), metadata); err != nil {
		r.fail(log, summary, fmt.Errorf("invoice %d: record sent: %w", inv.ID, err))
		return
	}

	summary.Sent++
	log.Info("dispatched",
		zap.String("address", address),
		zap.Bool("deferred", due.SendDate.Deferred),
	)
}

// send wraps one dispatch in a bounded exponential backoff.
func (r *Runner) send(ctx context.Context, op func() (*whatsapp.DeliveryReceipt, error)) (*whatsapp.DeliveryReceipt, error) {
	attempts := r.cfg.MaxSendAttempts
	if attempts <= 0 {
		attempts = 1
	}
	return backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(uint(attempts)),
	)
}

func (r *Runner) fail(log *zap.Logger, summary *Summary, err error) {
	log.Error("invoice failed", zap.Error(err))
	summary.Errored++
	summary.Errors = append(summary.Errors, err)
}

// RunForever repeats RunOnce on the configured interval until ctx is
// cancelled.
func (r *Runner) RunForever(ctx context.Context) {
	interval := r.cfg.RunInterval
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := r.RunOnce(ctx); err != nil {
			r.log.Warn("batch run failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
