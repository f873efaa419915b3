package erp

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	erpdomain "github.com/smallbiznis/cobranca/internal/erp/domain"
	"github.com/smallbiznis/cobranca/internal/format"
)

const loadRecordsService = "CRUDServiceProvider.loadRecords"

const (
	invoiceFieldset  = "NUFIN,CODPARC,DTVENC,DTNEG,VLRDESDOB,NOSSONUM,NUMNOTA,LINHADIGITAVEL,EMVPIX,DHBAIXA"
	customerFieldset = "CODPARC,NOMEPARC,TELEFONE,CGC_CPF,CEP,NOMEND,NUMEND,COMPLEMENTO,NOMECID,UFPAR"
)

// loadRecords request envelope. Parameter types follow the gateway's
// convention: D for dates, I for integers.

type serviceRequest struct {
	ServiceName string      `json:"serviceName"`
	RequestBody requestBody `json:"requestBody"`
}

type requestBody struct {
	DataSet dataSet `json:"dataSet"`
}

type dataSet struct {
	RootEntity                string     `json:"rootEntity"`
	IncludePresentationFields string     `json:"includePresentationFields"`
	OffsetPage                string     `json:"offsetPage"`
	Criteria                  criteria   `json:"criteria"`
	Entity                    entitySpec `json:"entity"`
}

type criteria struct {
	Expression expression  `json:"expression"`
	Parameter  []parameter `json:"parameter,omitempty"`
}

type expression struct {
	Value string `json:"$"`
}

type parameter struct {
	Value string `json:"$"`
	Type  string `json:"type"`
}

type entitySpec struct {
	Fieldset fieldset `json:"fieldset"`
}

type fieldset struct {
	List string `json:"list"`
}

// Repository implements the invoice/customer reads over the gateway.
type Repository struct {
	client *Client
	log    *zap.Logger
}

func NewRepository(client *Client, log *zap.Logger) *Repository {
	return &Repository{client: client, log: log.Named("erp")}
}

var _ erpdomain.Repository = (*Repository)(nil)

// FetchDueInvoices returns receivables whose due date falls within the
// inclusive [start, end] range, narrowed by filter.
func (r *Repository) FetchDueInvoices(ctx context.Context, start, end time.Time, filter erpdomain.Filter) ([]erpdomain.Invoice, error) {
	expressions := []string{"this.DTVENC BETWEEN ? AND ?"}
	parameters := []parameter{
		{Value: format.Date(start), Type: "D"},
		{Value: format.Date(end), Type: "D"},
	}

	if filter.ReceivableOnly {
		expressions = append(expressions, "this.RECDESP = ?")
		parameters = append(parameters, parameter{Value: "1", Type: "I"})
	}
	if filter.UnsettledOnly {
		expressions = append(expressions, "this.DHBAIXA IS NULL")
	}
	if filter.WithBankingRef {
		expressions = append(expressions, "this.NOSSONUM IS NOT NULL")
	}
	if filter.SkipProvisional {
		expressions = append(expressions, "(this.PROVISAO IS NULL OR this.PROVISAO <> 'S')")
	}

	rows, err := r.loadRecords(ctx, "Financeiro", invoiceFieldset, strings.Join(expressions, " AND "), parameters)
	if err != nil {
		return nil, err
	}

	invoices := make([]erpdomain.Invoice, 0, len(rows))
	for _, row := range rows {
		inv, err := invoiceFromRow(row)
		if err != nil {
			r.log.Warn("skipping undecodable invoice row", zap.Error(err))
			continue
		}
		invoices = append(invoices, inv)
	}
	r.log.Info("fetched due invoices",
		zap.String("start", format.Date(start)),
		zap.String("end", format.Date(end)),
		zap.Int("count", len(invoices)),
	)
	return invoices, nil
}

// FetchCustomer resolves one partner record by id.
func (r *Repository) FetchCustomer(ctx context.Context, customerID int64) (*erpdomain.Customer, error) {
	rows, err := r.loadRecords(ctx, "Parceiro", customerFieldset, "this.CODPARC = ?",
		[]parameter{{Value: strconv.FormatInt(customerID, 10), Type: "I"}})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("customer %d: %w", customerID, erpdomain.ErrNotFound)
	}
	cust := customerFromRow(rows[0])
	return &cust, nil
}

func (r *Repository) loadRecords(ctx context.Context, rootEntity, fields, expr string, params []parameter) ([]map[string]string, error) {
	req := serviceRequest{
		ServiceName: loadRecordsService,
		RequestBody: requestBody{
			DataSet: dataSet{
				RootEntity:                rootEntity,
				IncludePresentationFields: "N",
				OffsetPage:                "0",
				Criteria: criteria{
					Expression: expression{Value: expr},
					Parameter:  params,
				},
				Entity: entitySpec{Fieldset: fieldset{List: fields}},
			},
		},
	}

	var resp loadRecordsResponse
	if err := r.client.CallService(ctx, loadRecordsService, req, &resp); err != nil {
		return nil, err
	}
	return decodeEntities(resp)
}

func invoiceFromRow(row map[string]string) (erpdomain.Invoice, error) {
	id, err := format.Int64(row["NUFIN"])
	if err != nil {
		return erpdomain.Invoice{}, fmt.Errorf("NUFIN: %w", err)
	}
	customerID, err := format.Int64(row["CODPARC"])
	if err != nil {
		return erpdomain.Invoice{}, fmt.Errorf("invoice %d CODPARC: %w", id, err)
	}
	dueDate, err := format.ParseDate(dateOnly(row["DTVENC"]))
	if err != nil {
		return erpdomain.Invoice{}, fmt.Errorf("invoice %d DTVENC: %w", id, err)
	}
	amount, err := format.ParseAmount(row["VLRDESDOB"])
	if err != nil {
		return erpdomain.Invoice{}, fmt.Errorf("invoice %d VLRDESDOB: %w", id, err)
	}

	inv := erpdomain.Invoice{
		ID:             id,
		CustomerID:     customerID,
		DocumentNumber: row["NUMNOTA"],
		DueDate:        dueDate,
		Amount:         amount,
		OurNumber:      row["NOSSONUM"],
		DigitableLine:  row["LINHADIGITAVEL"],
		PixPayload:     row["EMVPIX"],
	}
	if issue, err := format.ParseDate(dateOnly(row["DTNEG"])); err == nil {
		inv.IssueDate = issue
	}
	if settled, err := format.ParseDate(dateOnly(row["DHBAIXA"])); err == nil {
		inv.SettledAt = &settled
	}
	return inv, nil
}

func customerFromRow(row map[string]string) erpdomain.Customer {
	id, _ := format.Int64(row["CODPARC"])
	return erpdomain.Customer{
		ID:         id,
		Name:       row["NOMEPARC"],
		Street:     row["NOMEND"],
		Number:     row["NUMEND"],
		Complement: row["COMPLEMENTO"],
		PostalCode: row["CEP"],
		City:       row["NOMECID"],
		State:      row["UFPAR"],
		Phone:      row["TELEFONE"],
		TaxID:      row["CGC_CPF"],
	}
}

// dateOnly trims the time suffix the gateway appends to timestamp fields
// ("21/10/2024 14:03:00" becomes "21/10/2024").
func dateOnly(value string) string {
	value = strings.TrimSpace(value)
	if i := strings.IndexByte(value, ' '); i > 0 {
		return value[:i]
	}
	return value
}
