package fhirpath

import "fmt"

// ParseError is raised by the Parser when an expected token is missing or
// an unparseable construct is encountered (§4.2, §7).
type ParseError struct {
	Token   Token
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%d:%d: %s (at %s)", e.Token.Line, e.Token.Column, e.Message, e.Token)
}

// FhirPathError is raised by the evaluator when a semantic precondition is
// violated: single() cardinality, indexing a scalar, an invalid argument to
// a builtin function, resolve() on a non-reference value, and similar
// path-semantic failures (§4.3, §7).
type FhirPathError struct {
	Path    string
	Message string
}

func (e *FhirPathError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

func fhirPathErrorf(path string, format string, args ...any) error {
	return &FhirPathError{Path: path, Message: fmt.Sprintf(format, args...)}
}
