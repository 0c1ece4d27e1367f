package ir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func canonical(t *testing.T, v any) string {
	t.Helper()
	generic, err := Canonicalize(v)
	require.NoError(t, err)
	out, err := MarshalCanonical(generic)
	require.NoError(t, err)
	return string(out)
}

func TestMarshalCanonicalBasic(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected string
	}{
		{"string", "hello", `"hello"`},
		{"empty string", "", `""`},
		{"null", nil, "null"},
		{"bool true", true, "true"},
		{"bool false", false, "false"},
		{"number text kept", json.Number("1.50"), "1.50"},
		{"empty array", []any{}, "[]"},
		{"empty object", map[string]any{}, "{}"},
		{"array", []any{"a", json.Number("2"), nil}, `["a",2,null]`},
		{"simple object", map[string]any{"a": json.Number("1")}, `{"a":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := MarshalCanonical(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(result))
		})
	}
}

func TestMarshalCanonicalRejectsUnconverted(t *testing.T) {
	_, err := MarshalCanonical(42)
	assert.ErrorContains(t, err, "unsupported type")

	_, err = MarshalCanonical(map[string]any{"nested": []any{3.5}})
	assert.ErrorContains(t, err, `value for key "nested"`)
}

func TestCanonicalizeStructs(t *testing.T) {
	input := MetaobjectUpsertInput{
		Fields: []MetaobjectFieldInput{{Key: "label", Value: "US 9"}},
	}
	assert.Equal(t, `{"fields":[{"key":"label","value":"US 9"}]}`, canonical(t, input))
}

func TestMarshalCanonicalSortedKeys(t *testing.T) {
	obj := map[string]any{
		"zebra": "1",
		"alpha": "2",
		"beta":  map[string]any{"y": "3", "x": "4"},
	}
	result, err := MarshalCanonical(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":"2","beta":{"x":"4","y":"3"},"zebra":"1"}`, string(result))
}

func TestMarshalCanonicalUTF16Ordering(t *testing.T) {
	// U+1F600 is a surrogate pair (0xD83D...) and sorts before U+FFFD in
	// UTF-16, although its UTF-8 encoding sorts after.
	obj := map[string]any{
		"\uFFFD":     "bmp",
		"\U0001F600": "astral",
	}
	result, err := MarshalCanonical(obj)
	require.NoError(t, err)
	assert.Equal(t, "{\"\U0001F600\":\"astral\",\"\uFFFD\":\"bmp\"}", string(result))
}

func TestMarshalCanonicalNoHTMLEscape(t *testing.T) {
	for _, s := range []string{"<script>", "a & b", "</p>"} {
		result, err := MarshalCanonical(s)
		require.NoError(t, err)
		assert.Equal(t, `"`+s+`"`, string(result))
	}
}

func TestMarshalCanonicalNFCNormalization(t *testing.T) {
	composed := "caf\u00e9"
	decomposed := "cafe\u0301"

	a, err := MarshalCanonical(map[string]any{composed: composed})
	require.NoError(t, err)
	b, err := MarshalCanonical(map[string]any{decomposed: decomposed})
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestMarshalCanonicalLineSeparators(t *testing.T) {
	result, err := MarshalCanonical("a\u2028b\u2029c")
	require.NoError(t, err)
	assert.Equal(t, "\"a\u2028b\u2029c\"", string(result))

	// An escaped backslash followed by the text u2028 is not a separator.
	result, err = MarshalCanonical(`\u2028`)
	require.NoError(t, err)
	assert.Equal(t, `"\\u2028"`, string(result))
}

func TestMarshalCanonicalIdempotency(t *testing.T) {
	input := map[string]any{
		"handle": "us-9",
		"fields": []any{map[string]any{"key": "label", "value": "US 9"}},
	}
	first := canonical(t, input)

	var decoded any
	require.NoError(t, json.Unmarshal([]byte(first), &decoded))
	assert.Equal(t, first, canonical(t, decoded))
}
