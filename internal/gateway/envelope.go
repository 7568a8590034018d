package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
)

// Envelope is a raw gateway response. Fields is nil when the body was valid
// JSON but not an object. StatusCode is zero for envelopes not read off the
// wire.
type Envelope struct {
	Raw        json.RawMessage
	Fields     map[string]any
	StatusCode int
}

// DecodeEnvelope parses a response body without interpreting it.
func DecodeEnvelope(raw []byte) (Envelope, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return Envelope{}, fmt.Errorf("empty response body")
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()

	var body any
	if err := dec.Decode(&body); err != nil {
		return Envelope{}, fmt.Errorf("error decoding json response: %w", err)
	}

	env := Envelope{Raw: json.RawMessage(trimmed)}
	if fields, ok := body.(map[string]any); ok {
		env.Fields = fields
	}
	return env, nil
}

// NewEnvelope builds an object envelope from already-decoded fields.
func NewEnvelope(fields map[string]any) Envelope {
	raw, err := json.Marshal(fields)
	if err != nil {
		raw = []byte(fmt.Sprintf("%q", fmt.Sprint(fields)))
	}
	return Envelope{Raw: raw, Fields: fields}
}

// IsObject reports whether the envelope is a JSON object.
func (e Envelope) IsObject() bool {
	return e.Fields != nil
}

// NotFound reports whether the gateway answered 404 for the requested id.
func (e Envelope) NotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// IsZero reports whether no response was recorded.
func (e Envelope) IsZero() bool {
	return len(e.Raw) == 0 && e.Fields == nil
}

// Get returns a top-level field.
func (e Envelope) Get(key string) (any, bool) {
	if e.Fields == nil {
		return nil, false
	}
	v, ok := e.Fields[key]
	return v, ok
}

// Data returns the nested "data" object, if any.
func (e Envelope) Data() (map[string]any, bool) {
	v, ok := e.Get("data")
	if !ok {
		return nil, false
	}
	data, ok := v.(map[string]any)
	return data, ok
}

// Nested returns a top-level object field such as "preauthorization".
func (e Envelope) Nested(key string) (map[string]any, bool) {
	v, ok := e.Get(key)
	if !ok {
		return nil, false
	}
	obj, ok := v.(map[string]any)
	return obj, ok
}

// ID returns the top-level id, falling back to data.id.
func (e Envelope) ID() (string, bool) {
	if id, ok := StringField(e.Fields, "id"); ok {
		return id, true
	}
	if data, ok := e.Data(); ok {
		return StringField(data, "id")
	}
	return "", false
}

func (e Envelope) String() string {
	if len(e.Raw) > 0 {
		return string(e.Raw)
	}
	if e.Fields != nil {
		return NewEnvelope(e.Fields).String()
	}
	return ""
}

// StringField returns a non-empty string (or number rendered as string) field.
func StringField(obj map[string]any, key string) (string, bool) {
	if obj == nil {
		return "", false
	}
	v, ok := obj[key]
	if !ok || v == nil {
		return "", false
	}
	var s string
	switch t := v.(type) {
	case string:
		s = t
	case json.Number:
		s = t.String()
	case fmt.Stringer:
		s = t.String()
	case int, int32, int64, float64:
		s = fmt.Sprint(t)
	default:
		return "", false
	}
	if s == "" {
		return "", false
	}
	return s, true
}
