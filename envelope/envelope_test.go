package envelope

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePong(t *testing.T) {
	env, err := Parse([]byte(`{"message": "pong"}`))
	require.NoError(t, err)
	assert.Equal(t, "message", env.Key)
	assert.Equal(t, "pong", env.Value)
}

func TestParseStructuredValues(t *testing.T) {
	tests := []struct {
		name     string
		payload  string
		expected any
	}{
		{"number", `{"count": 3}`, float64(3)},
		{"bool", `{"ok": true}`, true},
		{"null", `{"nothing": null}`, nil},
		{"array", `{"items": ["a", 1]}`, []any{"a", float64(1)}},
		{"object", `{"user": {"name": "ada"}}`, map[string]any{"name": "ada"}},
		{"surrounding whitespace", "  \n{\"message\":\"pong\"}\n", "pong"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			value, err := Extract([]byte(tt.payload))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, value)
		})
	}
}

func TestParseRejectsInvalidPayloads(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"empty", ""},
		{"whitespace", "   "},
		{"string", `"pong"`},
		{"array", `[1, 2]`},
		{"empty object", `{}`},
		{"two keys", `{"a": 1, "b": 2}`},
		{"malformed", `{"a": `},
		{"plain text", `pong`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.payload))
			assert.True(t, errors.Is(err, ErrInvalidEnvelope), "got %v", err)
		})
	}
}

func TestWrapRoundTrip(t *testing.T) {
	data, err := json.Marshal(Wrap("message", "pong"))
	require.NoError(t, err)

	value, err := Extract(data)
	require.NoError(t, err)
	assert.Equal(t, "pong", value)
}
