// Package transform converts application-level values to storage-level values
// and back, driven by resolved schemas and the capabilities of the target
// dialect. The in-memory backend uses the zero Caps (native values
// throughout); SQL dialects declare which representations they lack.
package transform

import (
	"encoding/json"
	"fmt"
	"time"

	"koroflow/internal/database"
	"koroflow/internal/schema"
)

// Caps describes representation rules of a storage backend. The zero value
// means native booleans and native temporal values.
type Caps struct {
	// BooleanAsInteger stores booleans as 0/1 (engines without a native
	// boolean type).
	BooleanAsInteger bool
	// DateAsString stores temporal values as ISO-8601 text (engines without
	// a native temporal type).
	DateAsString bool
}

// Action distinguishes create from update when shaping input.
type Action int

const (
	ActionCreate Action = iota
	ActionUpdate
)

// isoFormat is the on-disk temporal form for DateAsString dialects.
const isoFormat = time.RFC3339Nano

// ToStorage converts one application value to its storage form for the given
// field. String arrays and JSON blobs are serialized to JSON text on every
// dialect; that is their documented storage form.
func ToStorage(caps Caps, field schema.Field, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch field.Type {
	case schema.TypeBoolean:
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("transform: expected bool, got %T", v)
		}
		if caps.BooleanAsInteger {
			if b {
				return int64(1), nil
			}
			return int64(0), nil
		}
		return b, nil
	case schema.TypeDate:
		t, ok := v.(time.Time)
		if !ok {
			return nil, fmt.Errorf("transform: expected time.Time, got %T", v)
		}
		if caps.DateAsString {
			return t.UTC().Format(isoFormat), nil
		}
		return t.UTC(), nil
	case schema.TypeStringArray:
		arr, ok := v.([]string)
		if !ok {
			return nil, fmt.Errorf("transform: expected []string, got %T", v)
		}
		b, err := json.Marshal(arr)
		if err != nil {
			return nil, fmt.Errorf("transform: marshal string array: %w", err)
		}
		return string(b), nil
	case schema.TypeJSON:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("transform: marshal json field: %w", err)
		}
		return string(b), nil
	default:
		return v, nil
	}
}

// FromStorage is the exact inverse of ToStorage. It is tolerant about the
// concrete Go types drivers hand back (int64 vs bool, []byte vs string).
func FromStorage(caps Caps, field schema.Field, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	if b, ok := v.([]byte); ok {
		v = string(b)
	}
	switch field.Type {
	case schema.TypeBoolean:
		switch b := v.(type) {
		case bool:
			return b, nil
		case int64:
			return b != 0, nil
		case float64:
			return b != 0, nil
		default:
			return nil, fmt.Errorf("transform: cannot read %T as boolean", v)
		}
	case schema.TypeDate:
		switch t := v.(type) {
		case time.Time:
			return t.UTC(), nil
		case string:
			parsed, err := time.Parse(isoFormat, t)
			if err != nil {
				parsed, err = time.Parse(time.RFC3339, t)
			}
			if err != nil {
				return nil, fmt.Errorf("transform: parse date %q: %w", t, err)
			}
			return parsed.UTC(), nil
		default:
			return nil, fmt.Errorf("transform: cannot read %T as date", v)
		}
	case schema.TypeStringArray:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("transform: cannot read %T as string array", v)
		}
		var arr []string
		if err := json.Unmarshal([]byte(s), &arr); err != nil {
			return nil, fmt.Errorf("transform: unmarshal string array: %w", err)
		}
		return arr, nil
	case schema.TypeJSON:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("transform: cannot read %T as json", v)
		}
		var out any
		if err := json.Unmarshal([]byte(s), &out); err != nil {
			return nil, fmt.Errorf("transform: unmarshal json field: %w", err)
		}
		return out, nil
	default:
		return v, nil
	}
}

// Transformer shapes adapter input and output for one backend.
type Transformer struct {
	caps Caps
	ids  database.IDConfig
}

func New(caps Caps, ids database.IDConfig) *Transformer {
	return &Transformer{caps: caps, ids: ids}
}

func (t *Transformer) Caps() Caps { return t.caps }

// Input projects a payload onto the resolved schema. Keys outside the schema
// are dropped silently — input is a subset projection, not a whitelist check;
// validation happens earlier, at the workflow boundary. Defaults apply on
// create only. An application-managed identifier is minted on create unless
// the payload carries one or the database owns id generation.
//
// The returned map is keyed by logical field key with storage-form values.
func (t *Transformer) Input(table schema.Table, payload database.Row, action Action) (database.Row, error) {
	out := make(database.Row, len(table.Fields)+1)

	if action == ActionCreate {
		if explicit, ok := payload["id"].(string); ok && explicit != "" {
			out["id"] = explicit
		} else {
			id, ok, err := t.ids.NewID(table.Name)
			if err != nil {
				return nil, err
			}
			if ok {
				out["id"] = id
			}
		}
	}

	for _, key := range table.Order {
		field := table.Fields[key]
		// Input:false fields are system-managed; payload values for them are
		// dropped like any other out-of-schema key.
		value, present := payload[key]
		if present && field.Input {
			stored, err := ToStorage(t.caps, field, value)
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", key, err)
			}
			out[key] = stored
			continue
		}
		if action == ActionCreate && field.DefaultValue != nil {
			stored, err := ToStorage(t.caps, field, field.DefaultValue())
			if err != nil {
				return nil, fmt.Errorf("field %q default: %w", key, err)
			}
			out[key] = stored
			continue
		}
		// Updates touch updatedAt automatically when the schema declares it.
		if action == ActionUpdate && key == "updatedAt" && field.Type == schema.TypeDate {
			stored, err := ToStorage(t.caps, field, time.Now().UTC())
			if err != nil {
				return nil, err
			}
			out[key] = stored
		}
	}
	return out, nil
}

// Output converts a storage row back to application form, strips fields
// marked Returned:false, and applies the select list when one is given.
// The id field is always part of the output.
func (t *Transformer) Output(table schema.Table, row database.Row, selected []string) (database.Row, error) {
	if row == nil {
		return nil, nil
	}
	var want map[string]bool
	if len(selected) > 0 {
		want = make(map[string]bool, len(selected))
		for _, key := range selected {
			want[key] = true
		}
	}

	out := make(database.Row, len(row))
	if id, ok := row["id"]; ok {
		out["id"] = id
	}
	for _, key := range table.Order {
		field := table.Fields[key]
		if !field.Returned {
			continue
		}
		if want != nil && !want[key] {
			continue
		}
		value, ok := row[key]
		if !ok {
			continue
		}
		app, err := FromStorage(t.caps, field, value)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", key, err)
		}
		out[key] = app
	}
	return out, nil
}
