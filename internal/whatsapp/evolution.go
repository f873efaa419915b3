package whatsapp

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/smallbiznis/cobranca/internal/config"
)

// Evolution talks to an Evolution API instance. Media goes out as raw
// base64 in the request body, which is how the API expects documents.
type Evolution struct {
	http     *http.Client
	baseURL  string
	apiKey   string
	instance string
	log      *zap.Logger
}

func NewEvolution(cfg config.WhatsAppConfig, log *zap.Logger) *Evolution {
	return &Evolution{
		http:     &http.Client{Timeout: 60 * time.Second},
		baseURL:  cfg.APIURL,
		apiKey:   cfg.APIKey,
		instance: cfg.Instance,
		log:      log.Named("evolution"),
	}
}

var _ Dispatcher = (*Evolution)(nil)

type sendTextRequest struct {
	Number string `json:"number"`
	Text   string `json:"text"`
	Delay  int    `json:"delay"`
}

type sendMediaRequest struct {
	Number    string `json:"number"`
	MediaType string `json:"mediatype"`
	MimeType  string `json:"mimetype"`
	Caption   string `json:"caption"`
	FileName  string `json:"fileName"`
	Media     string `json:"media"`
}

type evolutionResponse struct {
	Key struct {
		ID string `json:"id"`
	} `json:"key"`
}

func (e *Evolution) SendText(ctx context.Context, address, text string) (*DeliveryReceipt, error) {
	return e.post(ctx, "sendText", sendTextRequest{
		Number: address,
		Text:   text,
	})
}

func (e *Evolution) SendAttachment(ctx context.Context, address string, payload []byte, filename, caption string) (*DeliveryReceipt, error) {
	return e.post(ctx, "sendMedia", sendMediaRequest{
		Number:    address,
		MediaType: "document",
		MimeType:  "application/pdf",
		Caption:   caption,
		FileName:  filename,
		Media:     base64.StdEncoding.EncodeToString(payload),
	})
}

func (e *Evolution) post(ctx context.Context, operation string, payload any) (*DeliveryReceipt, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &DeliveryError{Provider: "evolution", Message: "marshal " + operation, Err: err}
	}

	url := fmt.Sprintf("%s/message/%s/%s", e.baseURL, operation, e.instance)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, &DeliveryError{Provider: "evolution", Message: "build " + operation + " request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", e.apiKey)

	resp, err := e.http.Do(req)
	if err != nil {
		return nil, &DeliveryError{Provider: "evolution", Message: operation, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &DeliveryError{Provider: "evolution", Message: "read " + operation + " response", Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &DeliveryError{
			Provider: "evolution",
			Message:  fmt.Sprintf("%s: status %d: %s", operation, resp.StatusCode, respBody),
		}
	}

	var decoded evolutionResponse
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		// Delivery went through; a response we cannot parse is not a failure.
		e.log.Debug("unparseable provider response", zap.String("operation", operation), zap.Error(err))
	}

	return &DeliveryReceipt{MessageID: decoded.Key.ID, Provider: "evolution"}, nil
}
