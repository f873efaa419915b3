package whatsapp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/smallbiznis/cobranca/internal/config"
)

func newTestEvolution(t *testing.T, handler http.HandlerFunc) *Evolution {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewEvolution(config.WhatsAppConfig{
		Provider: config.WhatsAppProviderEvolution,
		APIURL:   srv.URL,
		APIKey:   "test-key",
		Instance: "cobranca",
	}, zaptest.NewLogger(t))
}

func TestEvolutionSendText(t *testing.T) {
	var gotPath, gotAPIKey string
	var gotBody sendTextRequest

	e := newTestEvolution(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAPIKey = r.Header.Get("apikey")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_, _ = w.Write([]byte(`{"key":{"id":"MSG-1"}}`))
	})

	receipt, err := e.SendText(context.Background(), "5561999998888", "Olá")
	require.NoError(t, err)

	assert.Equal(t, "/message/sendText/cobranca", gotPath)
	assert.Equal(t, "test-key", gotAPIKey)
	assert.Equal(t, "5561999998888", gotBody.Number)
	assert.Equal(t, "Olá", gotBody.Text)
	assert.Equal(t, "MSG-1", receipt.MessageID)
	assert.Equal(t, "evolution", receipt.Provider)
}

func TestEvolutionSendAttachment(t *testing.T) {
	payload := []byte("%PDF-1.4 fake")
	var gotBody sendMediaRequest

	e := newTestEvolution(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/message/sendMedia/cobranca", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_, _ = w.Write([]byte(`{"key":{"id":"MSG-2"}}`))
	})

	receipt, err := e.SendAttachment(context.Background(), "5561999998888", payload, "boleto.pdf", "Segue o boleto")
	require.NoError(t, err)

	assert.Equal(t, "document", gotBody.MediaType)
	assert.Equal(t, "application/pdf", gotBody.MimeType)
	assert.Equal(t, "boleto.pdf", gotBody.FileName)
	assert.Equal(t, base64.StdEncoding.EncodeToString(payload), gotBody.Media)
	assert.Equal(t, "MSG-2", receipt.MessageID)
}

func TestEvolutionSendTextProviderError(t *testing.T) {
	e := newTestEvolution(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"instance offline"}`, http.StatusBadGateway)
	})

	_, err := e.SendText(context.Background(), "5561999998888", "Olá")
	require.Error(t, err)

	var deliveryErr *DeliveryError
	require.ErrorAs(t, err, &deliveryErr)
	assert.Equal(t, "evolution", deliveryErr.Provider)
	assert.Contains(t, deliveryErr.Message, "502")
}
