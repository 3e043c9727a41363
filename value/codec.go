package value

import (
	"fmt"
	"mime"
	"strings"
)

// EncodeBody renders a request body. Null and the empty mapping encode to
// an empty body, which is still sent.
func EncodeBody(v Value) ([]byte, error) {
	if v.IsEmpty() {
		return []byte{}, nil
	}
	b, err := v.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("value: encode body: %w", err)
	}
	return b, nil
}

// DecodeBody normalizes a response body:
//   - blank text yields the empty mapping
//   - text declared as JSON is parsed, and a parse failure is an error
//   - any other text is returned as a string
func DecodeBody(contentType string, raw []byte) (Value, error) {
	text := string(raw)
	if strings.TrimSpace(text) == "" {
		return Object(nil), nil
	}
	if !IsJSONContentType(contentType) {
		return String(text), nil
	}
	v, err := Parse(raw)
	if err != nil {
		return Value{}, fmt.Errorf("value: decode body: %w", err)
	}
	return v, nil
}

// IsJSONContentType reports whether the media type is application/json or
// a +json structured syntax type.
func IsJSONContentType(contentType string) bool {
	if contentType == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0])
	}
	mediaType = strings.ToLower(mediaType)
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}
