package erp

import (
	"encoding/json"
	"fmt"
)

// The gateway's loadRecords response keys entity values positionally
// (f0, f1, ...) and describes the field names in a parallel metadata
// array. decodeEntities joins the two once, returning plain name/value
// rows. A single-result query comes back as an object instead of an
// array, both shapes are handled here.

type loadRecordsResponse struct {
	ResponseBody struct {
		Entities struct {
			Metadata struct {
				Fields struct {
					Field []struct {
						Name string `json:"name"`
					} `json:"field"`
				} `json:"fields"`
			} `json:"metadata"`
			Entity json.RawMessage `json:"entity"`
		} `json:"entities"`
	} `json:"responseBody"`
}

// fieldValue accepts either {"$": "..."} or a bare scalar.
type fieldValue struct {
	Value string
}

func (v *fieldValue) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '{' {
		var wrapped struct {
			Inner json.RawMessage `json:"$"`
		}
		if err := json.Unmarshal(data, &wrapped); err != nil {
			return fmt.Errorf("erp: unexpected field value %s", data)
		}
		if len(wrapped.Inner) == 0 {
			v.Value = ""
			return nil
		}
		data = wrapped.Inner
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		v.Value = s
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		v.Value = n.String()
		return nil
	}
	return fmt.Errorf("erp: unexpected field value %s", data)
}

func decodeEntities(resp loadRecordsResponse) ([]map[string]string, error) {
	entities := resp.ResponseBody.Entities
	if len(entities.Entity) == 0 {
		return nil, nil
	}

	var rawRows []map[string]fieldValue
	if err := json.Unmarshal(entities.Entity, &rawRows); err != nil {
		var single map[string]fieldValue
		if err := json.Unmarshal(entities.Entity, &single); err != nil {
			return nil, fmt.Errorf("erp: decode entities: %w", err)
		}
		rawRows = []map[string]fieldValue{single}
	}

	fields := entities.Metadata.Fields.Field
	rows := make([]map[string]string, 0, len(rawRows))
	for _, raw := range rawRows {
		row := make(map[string]string, len(fields))
		for i, field := range fields {
			if v, ok := raw[fmt.Sprintf("f%d", i)]; ok {
				row[field.Name] = v.Value
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}
