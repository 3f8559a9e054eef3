package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Params is an opaque structured payload persisted as JSONB.
type Params map[string]any

// Value marshals the map into JSON text.
func (p Params) Value() (driver.Value, error) {
	if p == nil {
		return "{}", nil
	}
	buf, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return string(buf), nil
}

// Scan decodes JSON text or bytes into the map.
func (p *Params) Scan(value interface{}) error {
	if value == nil {
		*p = nil
		return nil
	}

	var raw []byte
	switch v := value.(type) {
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("params: unsupported scan type %T", value)
	}
	if len(raw) == 0 {
		*p = Params{}
		return nil
	}

	decoded := Params{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return fmt.Errorf("params: %w", err)
	}
	*p = decoded
	return nil
}
