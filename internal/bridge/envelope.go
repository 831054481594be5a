package bridge

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"
)

const (
	// FieldBody matches the payload shape the remote endpoint was first built against.
	FieldBody = "body"
	FieldText = "text"

	DefaultEnvelopeField = FieldBody
)

var errInvalidUTF8 = errors.New("text is not valid UTF-8")

// ValidEnvelopeField reports whether name is an accepted envelope field.
func ValidEnvelopeField(name string) bool {
	return name == FieldBody || name == FieldText
}

// encodeEnvelope wraps text into a single-field JSON object.
func encodeEnvelope(field string, text string) ([]byte, error) {
	if !utf8.ValidString(text) {
		return nil, errInvalidUTF8
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(map[string]string{field: text}); err != nil {
		return nil, fmt.Errorf("marshal envelope: %w", err)
	}

	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// DecodeEnvelope reads the wrapped text back out of an envelope document.
func DecodeEnvelope(field string, data []byte) (string, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(data, &envelope); err != nil {
		return "", fmt.Errorf("unmarshal envelope: %w", err)
	}

	raw, ok := envelope[field]
	if !ok {
		return "", fmt.Errorf("field %q is missing", field)
	}

	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		return "", fmt.Errorf("unmarshal field %q: %w", field, err)
	}

	return text, nil
}
