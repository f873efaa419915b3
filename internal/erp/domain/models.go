package domain

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a referenced record does not exist in the ERP.
var ErrNotFound = errors.New("erp: record not found")

// Invoice is one receivable line item (TGFFIN row). Owned by the ERP and
// read-only here, except for the send tracking kept in the ledger.
type Invoice struct {
	ID             int64 // NUFIN
	CustomerID     int64 // CODPARC
	DocumentNumber string
	DueDate        time.Time
	IssueDate      time.Time
	Amount         decimal.Decimal

	// OurNumber is the settlement banking reference, assigned once a bank
	// slip exists and immutable after that.
	OurNumber string

	// DigitableLine is the 47-digit check-digit line, present only once a
	// slip exists.
	DigitableLine string

	// PixPayload is the raw EMV text for the PIX copy-and-paste block;
	// opaque to this system, forwarded verbatim to the renderer.
	PixPayload string

	SettledAt *time.Time
}

// Settled reports whether the invoice has been paid; settled invoices are
// excluded from cadence and rendering.
func (i Invoice) Settled() bool {
	return i.SettledAt != nil
}

// HasSlip reports whether a bank slip was generated for the invoice.
func (i Invoice) HasSlip() bool {
	return i.OurNumber != ""
}

// Customer is a counterparty (TGFPAR row). Read-only here.
type Customer struct {
	ID         int64
	Name       string
	Street     string
	Number     string
	Complement string
	PostalCode string
	City       string
	State      string
	Phone      string
	TaxID      string
}

// Filter narrows a due-date window query.
type Filter struct {
	ReceivableOnly  bool
	UnsettledOnly   bool
	WithBankingRef  bool
	SkipProvisional bool
}

// DefaultFilter matches the production collection query: open receivables
// that already have a slip.
func DefaultFilter() Filter {
	return Filter{
		ReceivableOnly:  true,
		UnsettledOnly:   true,
		WithBankingRef:  true,
		SkipProvisional: true,
	}
}

// Repository supplies invoice and customer records from the ERP.
type Repository interface {
	// FetchDueInvoices returns invoices whose due date falls within the
	// inclusive [start, end] range.
	FetchDueInvoices(ctx context.Context, start, end time.Time, filter Filter) ([]Invoice, error)
	FetchCustomer(ctx context.Context, customerID int64) (*Customer, error)
}
