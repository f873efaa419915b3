package whatsapp

import (
	"context"

	"go.uber.org/zap"
)

// Noop logs instead of sending. Used for dry runs and local development.
type Noop struct {
	log *zap.Logger
}

func NewNoop(log *zap.Logger) *Noop {
	return &Noop{log: log.Named("whatsapp.noop")}
}

var _ Dispatcher = (*Noop)(nil)

func (n *Noop) SendText(_ context.Context, address, text string) (*DeliveryReceipt, error) {
	n.log.Info("would send text",
		zap.String("address", address),
		zap.Int("text_len", len(text)),
	)
	return &DeliveryReceipt{Provider: "noop"}, nil
}

func (n *Noop) SendAttachment(_ context.Context, address string, payload []byte, filename, _ string) (*DeliveryReceipt, error) {
	n.log.Info("would send attachment",
		zap.String("address", address),
		zap.String("filename", filename),
		zap.Int("bytes", len(payload)),
	)
	return &DeliveryReceipt{Provider: "noop"}, nil
}
