package format

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the day-month-year layout used by the ERP and printed on slips.
const DateLayout = "02/01/2006"

// Date renders a calendar date as DD/MM/YYYY.
func Date(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(DateLayout)
}

// ParseDate parses the ERP's DD/MM/YYYY date representation into a
// midnight-normalized time.
//
// This function is PURE:
// - No side effects
// - Fully deterministic
func ParseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	t, err := time.Parse(DateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", value, err)
	}
	return t, nil
}

// BRL formats an amount with Brazilian conventions: comma decimal
// separator, period thousands separator, "R$ " prefix.
func BRL(amount decimal.Decimal) string {
	return "R$ " + Amount(amount)
}

// Amount formats a decimal with comma-decimal, period-thousands and
// exactly two fraction digits, without the currency prefix.
func Amount(amount decimal.Decimal) string {
	fixed := amount.StringFixed(2)

	negative := strings.HasPrefix(fixed, "-")
	fixed = strings.TrimPrefix(fixed, "-")

	parts := strings.SplitN(fixed, ".", 2)
	intPart, fracPart := parts[0], parts[1]

	var b strings.Builder
	if negative {
		b.WriteByte('-')
	}
	for i, digit := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(digit)
	}
	b.WriteByte(',')
	b.WriteString(fracPart)
	return b.String()
}

// ParseAmount parses the ERP's numeric string representation (period
// decimal separator) into a decimal.
func ParseAmount(value string) (decimal.Decimal, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", value, err)
	}
	return d, nil
}

// FirstName extracts the leading word of a display name for use in
// message greetings. Falls back to "Cliente" for blank names.
func FirstName(fullName string) string {
	fields := strings.Fields(fullName)
	if len(fields) == 0 {
		return "Cliente"
	}
	return fields[0]
}

// Digits strips everything but ASCII digits.
func Digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Int64 parses an integer identifier coming back from the ERP as text.
func Int64(value string) (int64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, nil
	}
	return strconv.ParseInt(value, 10, 64)
}
