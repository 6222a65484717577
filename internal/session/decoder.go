// Package session keeps the signed-in user on a client device: it decodes
// user records returned by the API, reconciles them with the cached copy and
// persists the result in a local store.
package session

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf16"
)

// Record is a decoded user object. Keys follow the API's JSON field names;
// fields the client adds (token, name) live alongside them.
type Record map[string]any

// ErrMalformedRecord is returned when a payload is not a JSON object.
var ErrMalformedRecord = errors.New("malformed user record")

const (
	idField  = "id"
	wrapKey  = "json"
	idDigits = 9
)

// Alternate spellings of the id field, consulted in order when the canonical
// field is missing or unusable.
var fallbackIDFields = []string{"ID", "Id", "_id", "userId", "user_id"}

// Decode parses a user record. One optional {"json": {...}} wrapper is
// removed. The returned record always carries a positive int64 "id"; when it
// did not come from the canonical field the record is provisional.
func Decode(raw json.RawMessage, identifier string) (Record, bool, error) {
	rec, err := decodeObject(raw)
	if err != nil {
		return nil, false, err
	}
	if inner, ok := rec[wrapKey].(map[string]any); ok {
		rec = Record(inner)
	}

	if id, ok := positiveID(rec[idField]); ok {
		rec[idField] = id
		return rec, false, nil
	}
	for _, field := range fallbackIDFields {
		if id, ok := positiveID(rec[field]); ok {
			rec[idField] = id
			return rec, true, nil
		}
	}
	rec[idField] = PlaceholderID(identifier)
	return rec, true, nil
}

// PlaceholderID derives a stand-in id from the sum of the identifier's UTF-16
// code units, truncated to nine digits. Different identifiers can collide,
// so the value only names the current session.
func PlaceholderID(identifier string) int64 {
	var sum int64
	for _, u := range utf16.Encode([]rune(identifier)) {
		sum += int64(u)
	}
	digits := strconv.FormatInt(sum, 10)
	if len(digits) > idDigits {
		digits = digits[:idDigits]
	}
	id, _ := strconv.ParseInt(digits, 10, 64)
	return id
}

func decodeObject(raw []byte) (Record, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: got %T", ErrMalformedRecord, v)
	}
	return Record(obj), nil
}

func positiveID(v any) (int64, bool) {
	var id int64
	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			id = i
		} else if f, err := n.Float64(); err == nil {
			return floatID(f)
		}
	case float64:
		return floatID(n)
	case int64:
		id = n
	case int:
		id = int64(n)
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		if err != nil {
			return 0, false
		}
		id = i
	}
	return id, id > 0
}

func floatID(f float64) (int64, bool) {
	if f <= 0 || f != math.Trunc(f) || f > math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}
