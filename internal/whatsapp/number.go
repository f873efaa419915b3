package whatsapp

import (
	"fmt"
	"strings"

	"github.com/ttacon/libphonenumber"
)

// NormalizeNumber turns whatever phone representation the ERP stores
// into the digits-only international form the providers expect. Numbers
// without a country code are treated as Brazilian.
func NormalizeNumber(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("whatsapp: empty phone number")
	}

	parsed, err := libphonenumber.Parse(raw, "BR")
	if err != nil {
		return "", fmt.Errorf("whatsapp: parse number %q: %w", raw, err)
	}
	if !libphonenumber.IsValidNumber(parsed) {
		return "", fmt.Errorf("whatsapp: invalid number %q", raw)
	}

	e164 := libphonenumber.Format(parsed, libphonenumber.E164)
	return strings.TrimPrefix(e164, "+"), nil
}
