// Package boleto turns ERP invoice data into printable bank slips. The
// layout replicates the Itaú hybrid slip template used by the ERP, so the
// field grid and the digit handling here follow the Brazilian Febraban
// conventions rather than anything configurable.
package boleto

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	erpdomain "github.com/smallbiznis/cobranca/internal/erp/domain"
	"github.com/smallbiznis/cobranca/internal/format"
)

// ErrInvalidBoletoLine signals a digitable line that is not exactly 47
// digits after stripping spaces and dots. The invoice is skipped, the
// batch continues.
var ErrInvalidBoletoLine = errors.New("boleto: digitable line must be 47 digits")

var (
	lateFeeRate       = decimal.NewFromFloat(0.02)   // 2% of principal
	dailyInterestRate = decimal.NewFromFloat(0.0016) // 0.16% of principal per day
)

// Issuer identifies the payee printed on every slip.
type Issuer struct {
	Name    string
	Agency  string
	Account string
	Wallet  string
}

// DefaultIssuer returns the payee identity of the production deployment.
func DefaultIssuer() Issuer {
	return Issuer{
		Name:    "BSB DISTRIBUIDORA DE BATERIAS LTDA",
		Agency:  "6557",
		Account: "109185",
		Wallet:  "109",
	}
}

// Document carries every pre-formatted field the renderer draws. All
// values are display strings; building one is pure and side effect free.
type Document struct {
	BankName string
	BankCode string

	PayeeName       string
	AgencyAccount   string
	PaymentLocation string

	DueDate        string
	DocumentDate   string
	ProcessingDate string
	DocumentNumber string
	DocumentKind   string
	Acceptance     string
	OurNumber      string
	Wallet         string
	Amount         string

	DigitableLine string
	Barcode       string
	PixPayload    string

	Instructions []string
	PayerLines   []string
}

// Normalize builds the document model for one invoice. now feeds the
// processing date printed on the slip.
func Normalize(inv erpdomain.Invoice, cust erpdomain.Customer, issuer Issuer, now time.Time) (*Document, error) {
	barcode, err := BarcodeFromDigitableLine(inv.DigitableLine)
	if err != nil {
		return nil, fmt.Errorf("invoice %d: %w", inv.ID, err)
	}

	docNumber := ""
	if inv.DocumentNumber != "" {
		docNumber = inv.DocumentNumber + " - 1"
	}

	return &Document{
		BankName: "ITAÚ UNIBANCO S/A",
		BankCode: "341-7",

		PayeeName:       issuer.Name,
		AgencyAccount:   fmt.Sprintf("%s       /       %s", issuer.Agency, issuer.Account),
		PaymentLocation: "ATÉ O VENCIMENTO PAGÁVEL EM QUALQUER BANCO",

		DueDate:        format.Date(inv.DueDate),
		DocumentDate:   format.Date(documentDate(inv, now)),
		ProcessingDate: format.Date(now),
		DocumentNumber: docNumber,
		DocumentKind:   "DP",
		Acceptance:     "N",
		OurNumber:      inv.OurNumber,
		Wallet:         issuer.Wallet,
		Amount:         format.Amount(inv.Amount),

		DigitableLine: FormatDigitableLine(inv.DigitableLine),
		Barcode:       barcode,
		PixPayload:    inv.PixPayload,

		Instructions: instructions(inv.Amount),
		PayerLines:   payerLines(cust),
	}, nil
}

func documentDate(inv erpdomain.Invoice, now time.Time) time.Time {
	if !inv.IssueDate.IsZero() {
		return inv.IssueDate
	}
	return now
}

// instructions renders the boilerplate block. The late fee and daily
// interest are always computed from the principal, regardless of how
// overdue the invoice is.
func instructions(amount decimal.Decimal) []string {
	lateFee := amount.Mul(lateFeeRate)
	dailyInterest := amount.Mul(dailyInterestRate)

	return []string{
		fmt.Sprintf("- APOS VENCIMENTO COBRAR MULTA DE R$ %s.", format.Amount(lateFee)),
		fmt.Sprintf("- APOS VENCIMENTO COBRAR JUROS DE R$ %s POR DIA DE ATRASO.", format.Amount(dailyInterest)),
		"- ESTE TITULO SERA PROTESTADO AUTOMATICAMENTE APOS 7 DIAS DE VENCIDO.",
		"- O BOLETO SO SERA CONSIDERADO PAGO QUANDO LIQUIDADO PELO CODIGO DE BARRAS OU PELO PIX",
		"QR CODE GERADO NO PROPRIO BOLETO.",
	}
}

func payerLines(cust erpdomain.Customer) []string {
	lines := []string{"Sacado " + cust.Name}

	address := cust.Street
	if cust.Number != "" && !strings.Contains(address, cust.Number) {
		address = address + "," + cust.Number
	}
	if address != "" {
		lines = append(lines, address)
	}

	cityLine := fmt.Sprintf("%s-%s-%s", cust.PostalCode, cust.City, cust.State)
	if cityLine != "--" {
		lines = append(lines, cityLine)
	}

	lines = append(lines, "Sacador/Avalista")
	return lines
}

// BarcodeFromDigitableLine reorders the 47-digit digitable line into the
// 44-digit barcode payload. Field positions and the output order are fixed
// by the Febraban slip standard:
//
//	bank[0:3) currency[3:4) field1[4:9) field2[10:20) field3[21:31)
//	checkDigit[32:33) dueFactor[33:37) amount[37:47)
//
// barcode = bank + currency + checkDigit + dueFactor + amount + field1 +
// field2 + field3. Positions 9, 20 and 31 are the per-field check digits,
// which the barcode omits.
func BarcodeFromDigitableLine(line string) (string, error) {
	clean, err := cleanLine(line)
	if err != nil {
		return "", err
	}

	bank := clean[0:3]
	currency := clean[3:4]
	field1 := clean[4:9]
	field2 := clean[10:20]
	field3 := clean[21:31]
	checkDigit := clean[32:33]
	dueFactor := clean[33:37]
	amount := clean[37:47]

	return bank + currency + checkDigit + dueFactor + amount + field1 + field2 + field3, nil
}

// FormatDigitableLine applies the human-readable grouping printed in the
// slip header: 5.5 5.6 5.6 1 14.
func FormatDigitableLine(line string) string {
	clean, err := cleanLine(line)
	if err != nil {
		return line
	}
	return fmt.Sprintf("%s.%s %s.%s %s.%s %s %s",
		clean[0:5], clean[5:10],
		clean[10:15], clean[15:21],
		clean[21:26], clean[26:32],
		clean[32:33], clean[33:47])
}

func cleanLine(line string) (string, error) {
	clean := strings.Map(func(r rune) rune {
		if r == ' ' || r == '.' {
			return -1
		}
		return r
	}, line)

	if len(clean) != 47 {
		return "", fmt.Errorf("%w: got %d digits", ErrInvalidBoletoLine, len(clean))
	}
	for _, r := range clean {
		if r < '0' || r > '9' {
			return "", fmt.Errorf("%w: non-digit %q", ErrInvalidBoletoLine, r)
		}
	}
	return clean, nil
}
