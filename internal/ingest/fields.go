package ingest

import (
	"bytes"
	"encoding/json"
	"math"

	"github.com/flitsinc/taskplex-monitor/internal/schema"
)

// object is a decoded JSON object whose values are kept raw so that nested
// payloads survive byte-for-byte and types can be checked per field.
type object map[string]json.RawMessage

func decodeObject(data []byte, what string) (object, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, &schema.ValidationError{Msg: what + " must be a non-null JSON object."}
	}
	var obj object
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return nil, &schema.ValidationError{Msg: what + " is not valid JSON: " + err.Error()}
	}
	return obj, nil
}

// present reports whether key exists with a non-null value.
func (o object) present(key string) (json.RawMessage, bool) {
	raw, ok := o[key]
	if !ok || isNull(raw) {
		return nil, false
	}
	return raw, true
}

func (o object) has(key string) bool {
	_, ok := o[key]
	return ok
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func asString(raw json.RawMessage) (string, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '"' {
		return "", false
	}
	var s string
	if err := json.Unmarshal(trimmed, &s); err != nil {
		return "", false
	}
	return s, true
}

func asInt(raw json.RawMessage) (int64, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || (trimmed[0] != '-' && (trimmed[0] < '0' || trimmed[0] > '9')) {
		return 0, false
	}
	var n json.Number
	if err := json.Unmarshal(trimmed, &n); err != nil {
		return 0, false
	}
	if v, err := n.Int64(); err == nil {
		return v, true
	}
	f, err := n.Float64()
	if err != nil || f != math.Trunc(f) || math.Abs(f) > 1<<53 {
		return 0, false
	}
	return int64(f), true
}

func (o object) optString(key string) (*string, error) {
	raw, ok := o.present(key)
	if !ok {
		return nil, nil
	}
	s, ok := asString(raw)
	if !ok {
		return nil, schema.Invalid(key, "must be a string if provided.")
	}
	return &s, nil
}

func (o object) optInt(key string) (*int64, error) {
	raw, ok := o.present(key)
	if !ok {
		return nil, nil
	}
	n, ok := asInt(raw)
	if !ok {
		return nil, schema.Invalid(key, "must be an integer if provided.")
	}
	return &n, nil
}

// jsonObject accepts an object literal or a string that encodes one and
// returns the compacted object text. Arrays and primitives are rejected.
func jsonObject(key string, raw json.RawMessage) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	switch {
	case len(trimmed) > 0 && trimmed[0] == '{':
		return compact(trimmed)
	case len(trimmed) > 0 && trimmed[0] == '"':
		s, _ := asString(trimmed)
		inner := bytes.TrimSpace([]byte(s))
		if !json.Valid(inner) {
			return nil, schema.Invalid(key, "is not valid JSON.")
		}
		if len(inner) == 0 || inner[0] != '{' {
			return nil, schema.Invalid(key, "string must parse as a JSON object (not array or primitive).")
		}
		return compact(inner)
	default:
		return nil, schema.Invalid(key, "must be a JSON object or a JSON string encoding an object.")
	}
}

func compact(data []byte) (json.RawMessage, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, data); err != nil {
		return nil, &schema.ValidationError{Msg: "invalid JSON: " + err.Error()}
	}
	return json.RawMessage(buf.Bytes()), nil
}
