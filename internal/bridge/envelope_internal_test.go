package bridge

import (
	"errors"
	"testing"
)

func TestEncodeEnvelope(t *testing.T) {
	tests := []struct {
		name  string
		field string
		text  string
		want  string
	}{
		{"Body field", FieldBody, "hi", `{"body":"hi"}`},
		{"Text field", FieldText, "hi", `{"text":"hi"}`},
		{"Empty text is kept", FieldBody, "", `{"body":""}`},
		{"HTML is left as is", FieldBody, "<b>", `{"body":"<b>"}`},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, err := encodeEnvelope(test.field, test.text)
			if err != nil {
				t.Fatalf("encode envelope: %v", err)
			}
			if string(got) != test.want {
				t.Errorf("Expected %s, got %s", test.want, got)
			}
		})
	}
}

func TestEncodeEnvelopeRejectsInvalidUTF8(t *testing.T) {
	if _, err := encodeEnvelope(FieldBody, "\xc3\x28"); !errors.Is(err, errInvalidUTF8) {
		t.Fatalf("expected errInvalidUTF8, got %v", err)
	}
}

func TestDecodeEnvelopeErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"Not JSON", "plain text"},
		{"Missing field", `{"text":"hi"}`},
		{"Field is not a string", `{"body":42}`},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if _, err := DecodeEnvelope(FieldBody, []byte(test.data)); err == nil {
				t.Fatalf("expected error for %s", test.data)
			}
		})
	}
}
