package value

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeBody(t *testing.T) {
	tests := []struct {
		name string
		in   Value
		want string
	}{
		{"null", Null(), ""},
		{"empty object", Object(nil), ""},
		{"object", Object(map[string]Value{"a": Int(1)}), `{"a":1}`},
		{"empty array", Array(), "[]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := EncodeBody(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(b))
		})
	}
}

func TestDecodeBody(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		raw         string
		want        Value
	}{
		{"empty", "application/json", "", Object(nil)},
		{"whitespace", "text/plain", " \n\t", Object(nil)},
		{"json", "application/json", `{"ok":true}`, Object(map[string]Value{"ok": Bool(true)})},
		{"json charset", "application/json; charset=utf-8", `[1]`, Array(Int(1))},
		{"problem json", "application/problem+json", `{"title":"x"}`, Object(map[string]Value{"title": String("x")})},
		{"text", "text/html", "<p>hi</p>", String("<p>hi</p>")},
		{"no content type", "", `{"ok":true}`, String(`{"ok":true}`)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeBody(tt.contentType, []byte(tt.raw))
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s, want %s", got, tt.want)
		})
	}
}

func TestDecodeBody_InvalidJSON(t *testing.T) {
	_, err := DecodeBody("application/json", []byte("not json"))
	assert.ErrorIs(t, err, ErrInvalidJSON)
}

func TestBodyRoundTrip_Empty(t *testing.T) {
	b, err := EncodeBody(Object(nil))
	require.NoError(t, err)

	got, err := DecodeBody("application/json", b)
	require.NoError(t, err)
	assert.Equal(t, KindObject, got.Kind())
	assert.Equal(t, 0, got.Len())
}

func TestIsJSONContentType(t *testing.T) {
	assert.True(t, IsJSONContentType("Application/JSON"))
	assert.True(t, IsJSONContentType("application/vnd.api+json; charset=utf-8"))
	assert.False(t, IsJSONContentType("text/json-ish"))
	assert.False(t, IsJSONContentType(""))
}
