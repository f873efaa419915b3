// Package cadence decides which invoices should be messaged today and with
// which message.
package cadence

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/smallbiznis/cobranca/internal/calendar"
	"github.com/smallbiznis/cobranca/internal/config"
	erpdomain "github.com/smallbiznis/cobranca/internal/erp/domain"
	"github.com/smallbiznis/cobranca/internal/format"
	ledgerdomain "github.com/smallbiznis/cobranca/internal/ledger/domain"
)

// ErrStageNotConfigured signals a missing template or cadence row. This is
// a configuration error: it should be caught by eager validation at
// startup, never mid-batch.
var ErrStageNotConfigured = errors.New("cadence: stage not configured")

// Due pairs an invoice with the cadence rule that makes it eligible today.
type Due struct {
	Invoice  erpdomain.Invoice
	Rule     Rule
	SendDate calendar.SendDate
}

type Engine struct {
	rules     []Rule
	templates map[Stage]string
}

// NewEngine builds an engine from the (possibly overridden) cadence config.
// Every rule must have a template; validation here is what keeps
// ErrStageNotConfigured out of batch runs.
func NewEngine(cfg config.CadenceConfig) (*Engine, error) {
	e := &Engine{templates: map[Stage]string{}}

	for name, tpl := range cfg.Templates {
		e.templates[Stage(name)] = tpl
	}
	for _, rule := range cfg.Rules {
		stage := Stage(rule.Stage)
		if _, ok := e.templates[stage]; !ok {
			return nil, fmt.Errorf("%w: no template for stage %q", ErrStageNotConfigured, rule.Stage)
		}
		e.rules = append(e.rules, Rule{
			OffsetDays: rule.Days,
			Stage:      stage,
			Priority:   Priority(rule.Priority),
		})
	}
	if len(e.rules) == 0 {
		return nil, fmt.Errorf("%w: empty cadence table", ErrStageNotConfigured)
	}
	return e, nil
}

// Rules returns a copy of the cadence table.
func (e *Engine) Rules() []Rule {
	out := make([]Rule, len(e.rules))
	copy(out, e.rules)
	return out
}

// Window returns the widest signed offsets in the table. The runner uses it
// to size the due-date query window around today.
func (e *Engine) Window() (minOffset, maxOffset int) {
	minOffset, maxOffset = e.rules[0].OffsetDays, e.rules[0].OffsetDays
	for _, rule := range e.rules[1:] {
		if rule.OffsetDays < minOffset {
			minOffset = rule.OffsetDays
		}
		if rule.OffsetDays > maxOffset {
			maxOffset = rule.OffsetDays
		}
	}
	return minOffset, maxOffset
}

// StageFor maps whole days-until-due to the matching cadence rule, or
// ok=false when today is not a cadence day for that due date.
func (e *Engine) StageFor(daysUntilDue int) (Rule, bool) {
	for _, rule := range e.rules {
		if daysUntilDue == -rule.OffsetDays {
			return rule, true
		}
	}
	return Rule{}, false
}

// DueInvoicesForToday evaluates every candidate against every cadence row:
// an (invoice, stage) pair is due when its weekend-adjusted send date is
// today and the ledger has no record for it yet. This is what surfaces a
// Saturday reminder on the following Monday, and only then.
//
// The result is a set: deterministic for fixed inputs but in no promised
// order. Callers needing a stable dispatch order sort explicitly (see
// SortForDispatch).
func (e *Engine) DueInvoicesForToday(
	ctx context.Context,
	invoices []erpdomain.Invoice,
	today time.Time,
	store ledgerdomain.Store,
) ([]Due, error) {
	today = calendar.Truncate(today)

	var dues []Due
	var errs error

	for _, inv := range invoices {
		if inv.Settled() || !inv.HasSlip() {
			continue
		}
		for _, rule := range e.rules {
			sd, err := calendar.ResolveSendDate(inv.DueDate, rule.OffsetDays)
			if err != nil {
				errs = errors.Join(errs, fmt.Errorf("invoice %d: %w", inv.ID, err))
				break
			}
			if !sd.Actual.Equal(today) {
				continue
			}
			sent, err := store.HasBeenSent(ctx, inv.ID, string(rule.Stage))
			if err != nil {
				errs = errors.Join(errs, fmt.Errorf("invoice %d stage %s: %w", inv.ID, rule.Stage, err))
				continue
			}
			if sent {
				continue
			}
			dues = append(dues, Due{Invoice: inv, Rule: rule, SendDate: sd})
		}
	}
	return dues, errs
}

// SortForDispatch orders dues by priority (urgent first), then invoice id,
// so repeated runs over the same inputs dispatch in the same order.
func SortForDispatch(dues []Due) {
	sort.Slice(dues, func(i, j int) bool {
		if pi, pj := dues[i].Rule.Priority.rank(), dues[j].Rule.Priority.rank(); pi != pj {
			return pi > pj
		}
		return dues[i].Invoice.ID < dues[j].Invoice.ID
	})
}

// RenderMessage fills the stage template with invoice and customer data.
// Placeholders: {nome}, {primeiro_nome}, {nf}, {vencimento}, {valor}.
func (e *Engine) RenderMessage(inv erpdomain.Invoice, cust erpdomain.Customer, stage Stage) (string, error) {
	tpl, ok := e.templates[stage]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrStageNotConfigured, stage)
	}

	nf := inv.DocumentNumber
	if nf == "" {
		nf = fmt.Sprintf("%d", inv.ID)
	}

	replacer := strings.NewReplacer(
		"{nome}", cust.Name,
		"{primeiro_nome}", format.FirstName(cust.Name),
		"{nf}", nf,
		"{vencimento}", format.Date(inv.DueDate),
		"{valor}", format.BRL(inv.Amount),
	)
	return replacer.Replace(tpl), nil
}
