package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Details is the schema-less attribute map stored alongside a listing. Its
// shape depends on the listing type and is not interpreted by the backend.
type Details map[string]any

// Value marshals the map into JSON for the jsonb column.
func (d Details) Value() (driver.Value, error) {
	if d == nil {
		return "{}", nil
	}
	buf, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	return string(buf), nil
}

// Scan decodes jsonb (or sqlite text) into the map.
func (d *Details) Scan(value interface{}) error {
	if value == nil {
		*d = nil
		return nil
	}

	var raw []byte
	switch v := value.(type) {
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("details: unsupported scan type %T", value)
	}

	result := make(Details)
	if len(raw) == 0 {
		*d = result
		return nil
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return fmt.Errorf("details: %w", err)
	}
	*d = result
	return nil
}

// ParseDetails decodes a JSON object submitted by a client. Empty input yields
// an empty map; any other JSON type is rejected.
func ParseDetails(raw string) (Details, error) {
	result := make(Details)
	if raw == "" {
		return result, nil
	}
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return nil, fmt.Errorf("details must be a JSON object: %w", err)
	}
	if result == nil {
		result = make(Details)
	}
	return result, nil
}

// Merge returns a copy of d with every non-empty value from extra applied on top.
func (d Details) Merge(extra map[string]any) Details {
	merged := make(Details, len(d)+len(extra))
	for k, v := range d {
		merged[k] = v
	}
	for k, v := range extra {
		if s, ok := v.(string); ok && s == "" {
			continue
		}
		if v == nil {
			continue
		}
		merged[k] = v
	}
	return merged
}

// RawJSON is an already encoded JSON document stored in a jsonb column. It is
// bound as text so postgres does not treat it as bytea.
type RawJSON []byte

func (r RawJSON) Value() (driver.Value, error) {
	if len(r) == 0 {
		return "null", nil
	}
	return string(r), nil
}

func (r *RawJSON) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*r = nil
	case string:
		*r = RawJSON(v)
	case []byte:
		*r = append(RawJSON(nil), v...)
	default:
		return fmt.Errorf("raw json: unsupported scan type %T", value)
	}
	return nil
}
