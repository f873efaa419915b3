// Package whatsapp delivers collection messages and slip attachments.
// One adapter per provider implements Dispatcher; the provider is picked
// once at construction, the send paths never branch on it.
package whatsapp

import (
	"context"
	"fmt"
)

// DeliveryReceipt is what a provider returns on a successful send.
type DeliveryReceipt struct {
	MessageID string
	Provider  string
}

// DeliveryError wraps a provider-specific failure. Treated as non-fatal
// by the batch: the invoice is recorded as errored and the run continues.
type DeliveryError struct {
	Provider string
	Message  string
	Err      error
}

func (e *DeliveryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("whatsapp: %s: %s: %v", e.Provider, e.Message, e.Err)
	}
	return fmt.Sprintf("whatsapp: %s: %s", e.Provider, e.Message)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// Dispatcher sends to one destination address. Addresses are full
// international numbers without the plus sign (5511999999999).
type Dispatcher interface {
	SendText(ctx context.Context, address, text string) (*DeliveryReceipt, error)
	SendAttachment(ctx context.Context, address string, payload []byte, filename, caption string) (*DeliveryReceipt, error)
}
