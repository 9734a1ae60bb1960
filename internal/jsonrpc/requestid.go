package jsonrpc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// RequestID is a JSON-RPC id: a string or a number. The id is kept as the
// JSON the client sent so responses echo it back unchanged.
type RequestID struct {
	raw json.RawMessage
}

// NewRequestID returns the id for a string or an integer. Other values yield
// a null id.
func NewRequestID(v any) *RequestID {
	switch v := v.(type) {
	case string:
		return &RequestID{raw: json.RawMessage(strconv.Quote(v))}
	case int:
		return &RequestID{raw: json.RawMessage(strconv.Itoa(v))}
	case int64:
		return &RequestID{raw: json.RawMessage(strconv.FormatInt(v, 10))}
	default:
		return &RequestID{}
	}
}

// String returns the id for display: the text of a string id, the literal of
// a numeric one.
func (id *RequestID) String() string {
	if id == nil || len(id.raw) == 0 {
		return ""
	}
	if id.raw[0] == '"' {
		var s string
		if err := json.Unmarshal(id.raw, &s); err == nil {
			return s
		}
	}
	return string(id.raw)
}

// Key identifies the id among in-flight requests. Unlike String, the string
// id "7" and the numeric id 7 have different keys.
func (id *RequestID) Key() string {
	if id == nil {
		return ""
	}
	return string(id.raw)
}

// MarshalJSON implements json.Marshaler. A nil id encodes as null, which is
// what error responses to unparseable requests carry.
func (id *RequestID) MarshalJSON() ([]byte, error) {
	if id == nil || len(id.raw) == 0 {
		return []byte("null"), nil
	}
	return id.raw, nil
}

// UnmarshalJSON implements json.Unmarshaler. Only strings, numbers and null
// are accepted.
func (id *RequestID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if string(data) == "null" {
		id.raw = nil
		return nil
	}
	var v any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return fmt.Errorf("jsonrpc: invalid id: %w", err)
	}
	switch v.(type) {
	case string, json.Number:
	default:
		return fmt.Errorf("jsonrpc: id must be a string or number, got %s", data)
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, data); err != nil {
		return fmt.Errorf("jsonrpc: invalid id: %w", err)
	}
	id.raw = buf.Bytes()
	return nil
}
