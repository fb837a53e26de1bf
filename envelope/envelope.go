// Package envelope implements the single-key envelope wire convention: every
// API handler responds with a JSON object holding exactly one top-level key,
// and the value under that key is the datum callers care about.
package envelope

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidEnvelope is returned for payloads that are not a one-key JSON object
var ErrInvalidEnvelope = errors.New("invalid response envelope")

// Envelope is a decoded single-key payload
type Envelope struct {
	Key   string
	Value any
}

// Parse decodes data and validates that it is a JSON object with exactly one
// key. Values decode with plain encoding/json semantics (numbers as float64,
// objects as map[string]any) so that every transport yields equal values.
func Parse(data []byte) (Envelope, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return Envelope{}, fmt.Errorf("%w: empty payload", ErrInvalidEnvelope)
	}
	if trimmed[0] != '{' {
		return Envelope{}, fmt.Errorf("%w: payload is not a JSON object", ErrInvalidEnvelope)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
	}
	if len(fields) != 1 {
		return Envelope{}, fmt.Errorf("%w: expected exactly one top-level key, got %d", ErrInvalidEnvelope, len(fields))
	}

	var env Envelope
	for key, raw := range fields {
		env.Key = key
		if err := json.Unmarshal(raw, &env.Value); err != nil {
			return Envelope{}, fmt.Errorf("%w: key %q: %v", ErrInvalidEnvelope, key, err)
		}
	}
	return env, nil
}

// Extract returns just the canonical value of a payload
func Extract(data []byte) (any, error) {
	env, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return env.Value, nil
}

// Wrap builds a single-key payload. Handlers can use it to make the
// convention explicit.
func Wrap(key string, value any) map[string]any {
	return map[string]any{key: value}
}
