package domain

import "fmt"

// Key builds the "{invoiceId}_{stage}" key used by the file-backed store
// and by log fields.
func Key(invoiceID int64, stage string) string {
	return fmt.Sprintf("%d_%s", invoiceID, stage)
}
