package models

import (
	"encoding/json"
	"fmt"
)

// exportFields are the top-level JSON keys ExportRecord and ExportPatch decode
// into struct fields. Anything else a seller sends is kept in Attributes.
var exportFields = map[string]bool{
	"_id":                true,
	"addedBy":            true,
	"name":               true,
	"price":              true,
	"image":              true,
	"origin_country":     true,
	"rating":             true,
	"category":           true,
	"available_quantity": true,
	"attributes":         true,
	"createdAt":          true,
	"updatedAt":          true,
}

// exportAliases maps the camelCase spellings clients also send.
var exportAliases = map[string]string{
	"originCountry":     "origin_country",
	"availableQuantity": "available_quantity",
}

// splitExportFields separates known keys from free-form ones. A key sent in
// both spellings keeps the snake_case value.
func splitExportFields(data []byte) ([]byte, Attributes, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, nil, err
	}

	known := make(map[string]json.RawMessage, len(raw))
	var extra Attributes
	for k, v := range raw {
		if canonical, ok := exportAliases[k]; ok {
			if _, dup := raw[canonical]; !dup {
				known[canonical] = v
			}
			continue
		}
		if exportFields[k] {
			known[k] = v
			continue
		}

		var value interface{}
		if err := json.Unmarshal(v, &value); err != nil {
			return nil, nil, fmt.Errorf("field %q: %w", k, err)
		}
		if extra == nil {
			extra = make(Attributes)
		}
		extra[k] = value
	}

	b, err := json.Marshal(known)
	if err != nil {
		return nil, nil, err
	}
	return b, extra, nil
}

// foldAttributes adds extra to attrs. Keys sent inside "attributes" win.
func foldAttributes(attrs, extra Attributes) Attributes {
	if len(extra) == 0 {
		return attrs
	}
	if attrs == nil {
		attrs = make(Attributes, len(extra))
	}
	for k, v := range extra {
		if _, ok := attrs[k]; !ok {
			attrs[k] = v
		}
	}
	return attrs
}

// UnmarshalJSON decodes the fixed fields and keeps unknown top-level keys as attributes.
func (e *ExportRecord) UnmarshalJSON(data []byte) error {
	known, extra, err := splitExportFields(data)
	if err != nil {
		return err
	}
	type plain ExportRecord
	if err := json.Unmarshal(known, (*plain)(e)); err != nil {
		return err
	}
	e.Attributes = foldAttributes(e.Attributes, extra)
	return nil
}

// UnmarshalJSON decodes the patch the same way ExportRecord is decoded, so an
// unknown top-level key becomes an attribute update.
func (ep *ExportPatch) UnmarshalJSON(data []byte) error {
	known, extra, err := splitExportFields(data)
	if err != nil {
		return err
	}
	type plain ExportPatch
	if err := json.Unmarshal(known, (*plain)(ep)); err != nil {
		return err
	}
	ep.Attributes = foldAttributes(ep.Attributes, extra)
	return nil
}
