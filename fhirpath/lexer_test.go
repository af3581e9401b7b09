package fhirpath_test

import (
	"testing"

	"github.com/fhircraft-go/fhirprofile/fhirpath"
)

func TestTokenizeLiterals(t *testing.T) {
	cases := []struct {
		name string
		src  string
		kind fhirpath.Kind
	}{
		{"boolean", "true", fhirpath.KindBoolean},
		{"integer", "42", fhirpath.KindInteger},
		{"decimal", "3.14", fhirpath.KindDecimal},
		{"string", "'hello'", fhirpath.KindString},
		{"date", "@2024-01-02", fhirpath.KindDate},
		{"time", "@T14:30:14.559Z", fhirpath.KindTime},
		{"datetime", "@2024-01-02T14:30:00", fhirpath.KindDateTime},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tokens, err := fhirpath.Tokenize(tc.src)
			if err != nil {
				t.Fatalf("Tokenize(%q): unexpected error: %v", tc.src, err)
			}
			if len(tokens) != 1 {
				t.Fatalf("Tokenize(%q): expected 1 token, got %d", tc.src, len(tokens))
			}
			if tokens[0].Kind != tc.kind {
				t.Fatalf("Tokenize(%q): expected kind %s, got %s", tc.src, tc.kind, tokens[0].Kind)
			}
		})
	}
}

func TestTokenizeStringEscapes(t *testing.T) {
	tokens, err := fhirpath.Tokenize(`'a\'b\nc'`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tokens) != 1 {
		t.Fatalf("expected 1 token, got %d", len(tokens))
	}
	want := "a'b\nc"
	if tokens[0].Value != want {
		t.Fatalf("expected %q, got %q", want, tokens[0].Value)
	}
}

func TestTokenizeRejectsDoubleQuotedStrings(t *testing.T) {
	if _, err := fhirpath.Tokenize(`"hello"`); err == nil {
		t.Fatal("expected an error for a double-quoted string literal")
	}
}

func TestTokenizeRejectsUnknownFunctionCall(t *testing.T) {
	if _, err := fhirpath.Tokenize(`bogusFunction()`); err == nil {
		t.Fatal("expected an error for an identifier followed by '(' that is not a known function")
	}
}

func TestTokenizeRejectsUnterminatedString(t *testing.T) {
	if _, err := fhirpath.Tokenize(`'unterminated`); err == nil {
		t.Fatal("expected an error for an unterminated string literal")
	}
}

func TestTokenizeChoiceElementSuffix(t *testing.T) {
	tokens, err := fhirpath.Tokenize("value[x]")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tokens) != 1 || tokens[0].Kind != fhirpath.KindChoiceElement || tokens[0].Value != "value" {
		t.Fatalf("unexpected tokens: %+v", tokens)
	}
}

func TestTokenizeReservedWords(t *testing.T) {
	tokens, err := fhirpath.Tokenize("where")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tokens[0].Kind != fhirpath.KindFunction {
		t.Fatalf("expected FUNCTION, got %s", tokens[0].Kind)
	}
}

func TestTokenizeSkipsComments(t *testing.T) {
	tokens, err := fhirpath.Tokenize("name // trailing comment\n.given /* block */")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tokens) != 3 {
		t.Fatalf("expected 3 tokens, got %d: %+v", len(tokens), tokens)
	}
}
