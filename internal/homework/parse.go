package homework

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
)

// CheckResponse validates a decoded payload and returns the first
// (most recent) homework entry.
func CheckResponse(body any) (map[string]any, error) {
	m, ok := body.(map[string]any)
	if !ok {
		return nil, &SchemaError{Reason: fmt.Sprintf("payload is %s, not an object", typeName(body))}
	}
	raw, ok := m[KeyHomeworks]
	if !ok || raw == nil {
		return nil, &SchemaError{Reason: "no homeworks were found so far"}
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, &SchemaError{Reason: fmt.Sprintf("%q is %s, not a list", KeyHomeworks, typeName(raw))}
	}
	if len(list) == 0 {
		return nil, &SchemaError{Reason: "no homeworks were found so far"}
	}
	first, ok := list[0].(map[string]any)
	if !ok {
		return nil, &SchemaError{Reason: fmt.Sprintf("homework entry is %s, not an object", typeName(list[0]))}
	}
	return first, nil
}

// CurrentDate extracts the server's "current_date" watermark.
// ok is false when it is absent or not an integer.
func CurrentDate(body any) (int64, bool) {
	m, ok := body.(map[string]any)
	if !ok {
		return 0, false
	}
	switch v := m[KeyCurrentDate].(type) {
	case json.Number:
		n, err := v.Int64()
		return n, err == nil
	case float64:
		if v != math.Trunc(v) {
			return 0, false
		}
		return int64(v), true
	case int64:
		return v, true
	case int:
		return int64(v), true
	default:
		return 0, false
	}
}

// RecordFrom reads name and status out of a homework entry.
func RecordFrom(entry map[string]any) (Record, error) {
	var missing []string
	for _, k := range []string{KeyName, KeyStatus} {
		if _, ok := entry[k]; !ok {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return Record{}, &MissingFieldError{Fields: missing}
	}

	name, ok := entry[KeyName].(string)
	if !ok {
		return Record{}, &SchemaError{Reason: fmt.Sprintf("%q is %s, not a string", KeyName, typeName(entry[KeyName]))}
	}
	status, ok := entry[KeyStatus].(string)
	if !ok {
		return Record{}, &SchemaError{Reason: fmt.Sprintf("%q is %s, not a string", KeyStatus, typeName(entry[KeyStatus]))}
	}
	return Record{Name: name, Status: Status(status)}, nil
}

// Format renders the notification text for r.
func Format(r Record) (string, error) {
	verdict, ok := Verdict(r.Status)
	if !ok {
		return "", &UnknownStatusError{Status: string(r.Status)}
	}
	return fmt.Sprintf("Изменился статус проверки работы \"%s\". %s", r.Name, verdict), nil
}

// ParseStatus is RecordFrom followed by Format.
func ParseStatus(entry map[string]any) (string, error) {
	r, err := RecordFrom(entry)
	if err != nil {
		return "", err
	}
	return Format(r)
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "an object"
	case []any:
		return "a list"
	case string:
		return "a string"
	case bool:
		return "a boolean"
	case json.Number, float64, int, int64:
		return "a number"
	default:
		return fmt.Sprintf("%T", v)
	}
}
