package fhirpath

import (
	"fmt"
	"strconv"
	"strings"
)

// String renders an Expression back to FHIRPath syntax. It is not
// guaranteed to reproduce the original source byte-for-byte (whitespace,
// comments, and the parser's root/this canonicalisations are lost) but
// re-parsing the rendered text yields an AST with identical evaluation
// semantics (§8, lex-parse round trip).

func (e *Root) String() string { return "%resource" }
func (e *This) String() string { return "$this" }

func (e *Element) String() string {
	if needsDelimiting(e.Name) {
		return "`" + e.Name + "`"
	}
	return e.Name
}

func needsDelimiting(name string) bool {
	if _, ok := reservedWords[name]; ok {
		return true
	}
	return false
}

func (e *Index) String() string { return fmt.Sprintf("[%d]", e.I) }

func (e *Slice) String() string {
	if e.Start == nil && e.End == nil && e.Step == nil {
		return "[*]"
	}
	var b strings.Builder
	b.WriteByte('[')
	if e.Start != nil {
		b.WriteString(strconv.Itoa(*e.Start))
	}
	b.WriteByte(':')
	if e.End != nil {
		b.WriteString(strconv.Itoa(*e.End))
	}
	if e.Step != nil {
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(*e.Step))
	}
	b.WriteByte(']')
	return b.String()
}

func (e *Child) String() string {
	if isIndexLike(e.RHS) {
		return operand(e.LHS) + e.RHS.String()
	}
	return operand(e.LHS) + "." + e.RHS.String()
}

// operand renders e as part of a larger expression, parenthesising operator
// nodes so that re-parsing keeps the original grouping.
func operand(e Expression) string {
	switch e.(type) {
	case *BinaryOp, *Union, *UnaryOp:
		return "(" + e.String() + ")"
	default:
		return e.String()
	}
}

func isIndexLike(e Expression) bool {
	switch e.(type) {
	case *Index, *Slice:
		return true
	default:
		return false
	}
}

func (e *Invocation) String() string {
	args := make([]string, len(e.Args))
	for i, a := range e.Args {
		args[i] = a.String()
	}
	call := e.Fn + "(" + strings.Join(args, ", ") + ")"
	if e.LHS != nil {
		return e.LHS.String() + "." + call
	}
	return call
}

func (e *Where) String() string { return "where(" + e.Predicate.String() + ")" }

func (e *FhirExtension) String() string { return "extension('" + escapeString(e.URL) + "')" }

func (e *TypeChoice) String() string { return e.Base + "[x]" }

func (e *Union) String() string { return operand(e.LHS) + " | " + operand(e.RHS) }

func (e *Descendants) String() string { return e.LHS.String() + ".descendants()." + e.RHS.String() }

func (e *BinaryOp) String() string {
	return operand(e.LHS) + " " + e.Op + " " + operand(e.RHS)
}

func (e *UnaryOp) String() string { return e.Op + operand(e.Operand) }

func (e *Literal) String() string {
	switch v := e.Value.(type) {
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case string:
		return "'" + escapeString(v) + "'"
	case fmt.Stringer:
		return v.String()
	case TypeSpecifier:
		return v.Name
	default:
		return fmt.Sprintf("%v", v)
	}
}

func escapeString(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "'", "\\'")
	return s
}

func (e *EnvVar) String() string     { return "%" + e.Name }
func (e *ContextVar) String() string { return "$" + e.Name }
func (e *TypeSpecifier) String() string { return e.Name }
