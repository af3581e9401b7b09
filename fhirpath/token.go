package fhirpath

import "fmt"

// Kind identifies the lexical class of a Token.
type Kind uint8

const (
	// KindEOF marks the end of input.
	KindEOF Kind = iota
	KindIdentifier
	KindDelimitedIdentifier
	KindFunction
	KindBooleanOperator
	KindTypesOperator
	KindBoolean
	KindCalendarDuration
	KindRootNode
	KindInteger
	KindDecimal
	KindDate
	KindTime
	KindDateTime
	KindChoiceElement
	KindString
	KindContextualOperator
	KindEnvironmentalVariable
	KindSymbol
)

func (k Kind) String() string {
	switch k {
	case KindEOF:
		return "EOF"
	case KindIdentifier:
		return "IDENTIFIER"
	case KindDelimitedIdentifier:
		return "DELIMITED_IDENTIFIER"
	case KindFunction:
		return "FUNCTION"
	case KindBooleanOperator:
		return "BOOLEAN_OPERATOR"
	case KindTypesOperator:
		return "TYPES_OPERATOR"
	case KindBoolean:
		return "BOOLEAN"
	case KindCalendarDuration:
		return "CALENDAR_DURATION"
	case KindRootNode:
		return "ROOT_NODE"
	case KindInteger:
		return "INTEGER"
	case KindDecimal:
		return "DECIMAL"
	case KindDate:
		return "DATE"
	case KindTime:
		return "TIME"
	case KindDateTime:
		return "DATETIME"
	case KindChoiceElement:
		return "CHOICE_ELEMENT"
	case KindString:
		return "STRING"
	case KindContextualOperator:
		return "CONTEXTUAL_OPERATOR"
	case KindEnvironmentalVariable:
		return "ENVIRONMENTAL_VARIABLE"
	case KindSymbol:
		return "SYMBOL"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Token is a single lexeme produced by the Lexer.
//
// Value carries the token's semantic payload: the literal text for
// identifiers and symbols, the unescaped contents for strings, and the
// already-stripped contents for date/time/choice-element tokens (leading
// '@'/'@T' and trailing "[x]" removed, per §4.1).
type Token struct {
	Kind   Kind
	Value  string
	Line   int
	Column int
}

func (t Token) String() string {
	return fmt.Sprintf("%s(%q)@%d:%d", t.Kind, t.Value, t.Line, t.Column)
}

// reservedWords maps simple identifiers to their reserved token kind, per
// §4.1. ROOT_NODE is populated separately from the FHIR type registry's
// list of base resource names, since it is release-dependent.
var reservedWords = map[string]Kind{}

func init() {
	for _, name := range []string{
		"empty", "exists", "all", "allTrue", "anyTrue", "allFalse", "anyFalse",
		"subsetOf", "supersetOf", "count", "distinct", "isDistinct",
		"where", "select", "repeat", "ofType",
		"first", "last", "tail", "single", "skip", "take", "intersect", "exclude",
		"union", "combine",
		"iif", "toBoolean", "convertsToBoolean", "toInteger", "convertsToInteger",
		"toDate", "convertsToDate", "toDateTime", "convertsToDateTime", "toDecimal",
		"convertsToDecimal", "toQuantity", "convertsToQuantity", "toString", "convertsToString",
		"toTime", "convertsToTime",
		"indexOf", "substring", "startsWith", "endsWith", "contains", "upper", "lower", "replace",
		"matches", "replaceMatches", "length", "toChars",
		"abs", "ceiling", "exp", "floor", "ln", "log", "power", "round",
		"sqrt", "truncate",
		"children", "descendants",
		"trace", "now", "timeOfDay", "today",
		"extension", "hasValue", "getValue", "resolve",
	} {
		reservedWords[name] = KindFunction
	}

	for _, name := range []string{"and", "or", "xor", "implies"} {
		reservedWords[name] = KindBooleanOperator
	}

	for _, name := range []string{"true", "false"} {
		reservedWords[name] = KindBoolean
	}

	for _, name := range []string{
		"week", "weeks", "month", "months", "year", "years", "day", "days",
		"hour", "hours", "minute", "minutes", "second", "seconds", "millisecond", "milliseconds",
	} {
		reservedWords[name] = KindCalendarDuration
	}

	for _, name := range []string{"is", "as"} {
		reservedWords[name] = KindTypesOperator
	}
}

// rootNodes is the set of recognised base FHIR resource type names used to
// classify a bare identifier as KindRootNode (§4.1). It is populated by the
// fhirtype registry at init time via RegisterRootNodes to avoid an import
// cycle; a lexer created before registration simply treats these
// identifiers as plain KindIdentifier tokens, so the parser reads such a
// head identifier (e.g. `Patient` in `Patient.name`) as an Element field
// access rather than as Root.
var rootNodes = map[string]bool{}

// RegisterRootNodes declares additional identifiers that should be
// classified as KindRootNode, i.e. names of base FHIR resource types. The
// fhirtype package registry calls this once per release during
// initialization.
func RegisterRootNodes(names ...string) {
	for _, n := range names {
		rootNodes[n] = true
	}
}

func classifyIdentifier(s string) Kind {
	if k, ok := reservedWords[s]; ok {
		return k
	}
	if rootNodes[s] {
		return KindRootNode
	}
	return KindIdentifier
}
