package erp

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	erpdomain "github.com/smallbiznis/cobranca/internal/erp/domain"
)

const multiRowResponse = `{
  "responseBody": {
    "entities": {
      "metadata": {
        "fields": {
          "field": [
            {"name": "NUFIN"},
            {"name": "CODPARC"},
            {"name": "DTVENC"},
            {"name": "VLRDESDOB"},
            {"name": "NOSSONUM"}
          ]
        }
      },
      "entity": [
        {"f0": {"$": "19106"}, "f1": {"$": "1510"}, "f2": {"$": "20/11/2024"}, "f3": {"$": "1250.00"}, "f4": {"$": "109/00019106-0"}},
        {"f0": {"$": "19107"}, "f1": {"$": "1511"}, "f2": {"$": "25/11/2024"}, "f3": {"$": "480.50"}, "f4": {"$": "109/00019107-9"}}
      ]
    }
  }
}`

const singleRowResponse = `{
  "responseBody": {
    "entities": {
      "metadata": {
        "fields": {
          "field": [
            {"name": "CODPARC"},
            {"name": "NOMEPARC"},
            {"name": "TELEFONE"}
          ]
        }
      },
      "entity": {"f0": {"$": "1510"}, "f1": {"$": "MARIA DAS DORES LTDA"}, "f2": {"$": "61999998888"}}
    }
  }
}`

func decodeFixture(t *testing.T, raw string) []map[string]string {
	t.Helper()
	var resp loadRecordsResponse
	require.NoError(t, json.Unmarshal([]byte(raw), &resp))
	rows, err := decodeEntities(resp)
	require.NoError(t, err)
	return rows
}

func TestDecodeEntitiesArray(t *testing.T) {
	rows := decodeFixture(t, multiRowResponse)
	require.Len(t, rows, 2)

	assert.Equal(t, "19106", rows[0]["NUFIN"])
	assert.Equal(t, "20/11/2024", rows[0]["DTVENC"])
	assert.Equal(t, "1250.00", rows[0]["VLRDESDOB"])
	assert.Equal(t, "109/00019107-9", rows[1]["NOSSONUM"])
}

func TestDecodeEntitiesSingleObject(t *testing.T) {
	rows := decodeFixture(t, singleRowResponse)
	require.Len(t, rows, 1)
	assert.Equal(t, "MARIA DAS DORES LTDA", rows[0]["NOMEPARC"])
}

func TestDecodeEntitiesEmpty(t *testing.T) {
	var resp loadRecordsResponse
	require.NoError(t, json.Unmarshal([]byte(`{"responseBody":{"entities":{}}}`), &resp))
	rows, err := decodeEntities(resp)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestFieldValueBareScalars(t *testing.T) {
	var v fieldValue
	require.NoError(t, json.Unmarshal([]byte(`"abc"`), &v))
	assert.Equal(t, "abc", v.Value)

	require.NoError(t, json.Unmarshal([]byte(`42.5`), &v))
	assert.Equal(t, "42.5", v.Value)

	require.NoError(t, json.Unmarshal([]byte(`{"$": 1510}`), &v))
	assert.Equal(t, "1510", v.Value)
}

func TestInvoiceFromRow(t *testing.T) {
	row := map[string]string{
		"NUFIN":          "19106",
		"CODPARC":        "1510",
		"DTVENC":         "20/11/2024",
		"DTNEG":          "21/10/2024 14:03:00",
		"VLRDESDOB":      "1250.00",
		"NUMNOTA":        "4812",
		"NOSSONUM":       "109/00019106-0",
		"LINHADIGITAVEL": "34191090080019106000300000000000919876000012500",
	}

	inv, err := invoiceFromRow(row)
	require.NoError(t, err)

	assert.Equal(t, int64(19106), inv.ID)
	assert.Equal(t, int64(1510), inv.CustomerID)
	assert.Equal(t, "20/11/2024", inv.DueDate.Format("02/01/2006"))
	assert.Equal(t, "21/10/2024", inv.IssueDate.Format("02/01/2006"))
	assert.Equal(t, "1250", inv.Amount.String())
	assert.False(t, inv.Settled())
	assert.True(t, inv.HasSlip())
}

func TestInvoiceFromRowSettled(t *testing.T) {
	row := map[string]string{
		"NUFIN":     "1",
		"CODPARC":   "2",
		"DTVENC":    "20/11/2024",
		"VLRDESDOB": "10.00",
		"DHBAIXA":   "22/11/2024 09:12:44",
	}
	inv, err := invoiceFromRow(row)
	require.NoError(t, err)
	assert.True(t, inv.Settled())
	assert.False(t, inv.HasSlip())
}

func TestInvoiceFromRowRejectsBadDate(t *testing.T) {
	row := map[string]string{
		"NUFIN":     "1",
		"CODPARC":   "2",
		"DTVENC":    "not-a-date",
		"VLRDESDOB": "10.00",
	}
	_, err := invoiceFromRow(row)
	assert.Error(t, err)
}

func TestCustomerFromRow(t *testing.T) {
	cust := customerFromRow(map[string]string{
		"CODPARC":  "1510",
		"NOMEPARC": "MARIA DAS DORES LTDA",
		"TELEFONE": "61999998888",
		"CEP":      "72000-000",
		"NOMEND":   "RUA DAS ACACIAS",
		"NUMEND":   "120",
		"NOMECID":  "BRASILIA",
		"UFPAR":    "DF",
		"CGC_CPF":  "00000000000191",
	})
	assert.Equal(t, int64(1510), cust.ID)
	assert.Equal(t, "RUA DAS ACACIAS", cust.Street)
	assert.Equal(t, "DF", cust.State)
}

func TestDefaultFilter(t *testing.T) {
	f := erpdomain.DefaultFilter()
	assert.True(t, f.ReceivableOnly)
	assert.True(t, f.UnsettledOnly)
	assert.True(t, f.WithBankingRef)
	assert.True(t, f.SkipProvisional)
}
