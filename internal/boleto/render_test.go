package boleto

import (
	"bytes"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	erpdomain "github.com/smallbiznis/cobranca/internal/erp/domain"
)

func TestRenderProducesPDF(t *testing.T) {
	inv := erpdomain.Invoice{
		ID:             19106,
		DocumentNumber: "4812",
		DueDate:        time.Date(2024, time.November, 20, 0, 0, 0, 0, time.Local),
		Amount:         decimal.NewFromFloat(1250),
		OurNumber:      "109/00019106-0",
		DigitableLine:  syntheticLine,
		PixPayload:     "00020126580014br.gov.bcb.pix0136test-pix-key-000000000000005204000053039865802BR",
	}
	cust := erpdomain.Customer{Name: "MARIA DAS DORES LTDA", City: "BRASILIA", State: "DF"}

	doc, err := Normalize(inv, cust, DefaultIssuer(), time.Now())
	require.NoError(t, err)

	var buf bytes.Buffer
	r := NewRenderer(zaptest.NewLogger(t))
	require.NoError(t, r.Render(doc, &buf))

	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF")))
	assert.Greater(t, buf.Len(), 1000)
}

func TestRenderWithoutPixPayload(t *testing.T) {
	inv := erpdomain.Invoice{
		ID:            1,
		DueDate:       time.Date(2024, time.November, 20, 0, 0, 0, 0, time.Local),
		Amount:        decimal.NewFromFloat(100),
		OurNumber:     "109/00000001-0",
		DigitableLine: syntheticLine,
	}

	doc, err := Normalize(inv, erpdomain.Customer{Name: "X"}, DefaultIssuer(), time.Now())
	require.NoError(t, err)

	var buf bytes.Buffer
	r := NewRenderer(zaptest.NewLogger(t))
	require.NoError(t, r.Render(doc, &buf))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF")))
}
