package fhirpath

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/apd/v3"
)

// Parser is a recursive-descent, operator-precedence parser over a token
// stream produced by the Lexer (§4.2). It builds one Expression tree.
type Parser struct {
	tokens []Token
	pos    int
}

// Parse tokenises and parses a FHIRPath expression string.
func Parse(src string) (Expression, error) {
	tokens, err := Tokenize(src)
	if err != nil {
		return nil, err
	}
	p := &Parser{tokens: tokens}
	expr, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if !p.atEnd() {
		return nil, &ParseError{Token: p.peek(), Message: "unexpected trailing input"}
	}
	return expr, nil
}

// MustParse parses src and panics on error. Useful for hardcoded
// expressions in tests and call sites that know the path is valid.
func MustParse(src string) Expression {
	expr, err := Parse(src)
	if err != nil {
		panic(err)
	}
	return expr
}

func (p *Parser) peek() Token {
	if p.pos < len(p.tokens) {
		return p.tokens[p.pos]
	}
	return Token{Kind: KindEOF}
}

func (p *Parser) peekAt(offset int) Token {
	idx := p.pos + offset
	if idx < len(p.tokens) {
		return p.tokens[idx]
	}
	return Token{Kind: KindEOF}
}

func (p *Parser) atEnd() bool {
	return p.peek().Kind == KindEOF
}

func (p *Parser) advance() Token {
	t := p.peek()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return t
}

func (p *Parser) errf(format string, args ...any) error {
	return &ParseError{Token: p.peek(), Message: fmt.Sprintf(format, args...)}
}

func (p *Parser) expectSymbol(sym string) error {
	t := p.peek()
	if t.Kind == KindSymbol && t.Value == sym {
		p.advance()
		return nil
	}
	return p.errf("expected %q", sym)
}

func (p *Parser) isSymbol(sym string) bool {
	t := p.peek()
	return t.Kind == KindSymbol && t.Value == sym
}

func (p *Parser) isKeyword(kind Kind, value string) bool {
	t := p.peek()
	return t.Kind == kind && t.Value == value
}

// parseExpression is the entry point: or/xor/implies is the loosest
// binding level (§4.2).
func (p *Parser) parseExpression() (Expression, error) {
	return p.parseOr()
}

func (p *Parser) parseOr() (Expression, error) {
	lhs, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.isKeyword(KindBooleanOperator, "or") || p.isKeyword(KindBooleanOperator, "xor") || p.isKeyword(KindBooleanOperator, "implies") {
		op := p.advance().Value
		rhs, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		lhs = &BinaryOp{Op: op, LHS: lhs, RHS: rhs}
	}
	return lhs, nil
}

func (p *Parser) parseAnd() (Expression, error) {
	lhs, err := p.parseUnion()
	if err != nil {
		return nil, err
	}
	for p.isKeyword(KindBooleanOperator, "and") {
		p.advance()
		rhs, err := p.parseUnion()
		if err != nil {
			return nil, err
		}
		lhs = &BinaryOp{Op: "and", LHS: lhs, RHS: rhs}
	}
	return lhs, nil
}

func (p *Parser) parseUnion() (Expression, error) {
	lhs, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	for p.isSymbol("|") {
		p.advance()
		rhs, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		lhs = &Union{LHS: lhs, RHS: rhs}
	}
	return lhs, nil
}

func (p *Parser) parseComparison() (Expression, error) {
	lhs, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.peekComparisonOp()
		if !ok {
			break
		}
		if p.isKeyword(KindTypesOperator, "is") || p.isKeyword(KindTypesOperator, "as") {
			break
		}
		p.consumeComparisonOp(op)
		rhs, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		lhs = &BinaryOp{Op: op, LHS: lhs, RHS: rhs}
	}
	if p.isKeyword(KindTypesOperator, "is") || p.isKeyword(KindTypesOperator, "as") {
		op := p.advance().Value
		typeName, err := p.parseTypeName()
		if err != nil {
			return nil, err
		}
		lhs = &BinaryOp{Op: op, LHS: lhs, RHS: &Literal{Value: TypeSpecifier{Name: typeName}}}
	}
	return lhs, nil
}

func (p *Parser) parseTypeName() (string, error) {
	t := p.peek()
	if t.Kind == KindIdentifier || t.Kind == KindRootNode || t.Kind == KindFunction {
		p.advance()
		return t.Value, nil
	}
	return "", p.errf("expected type name")
}

func (p *Parser) peekComparisonOp() (string, bool) {
	t := p.peek()
	if t.Kind != KindSymbol {
		return "", false
	}
	switch t.Value {
	case "=", "!", "<", ">":
		next := p.peekAt(1)
		if t.Value == "!" && next.Kind == KindSymbol && next.Value == "=" {
			return "!=", true
		}
		if t.Value == "<" && next.Kind == KindSymbol && next.Value == "=" {
			return "<=", true
		}
		if t.Value == ">" && next.Kind == KindSymbol && next.Value == "=" {
			return ">=", true
		}
		if t.Value == "=" {
			return "=", true
		}
		if t.Value == "<" {
			return "<", true
		}
		if t.Value == ">" {
			return ">", true
		}
		return "", false
	}
	return "", false
}

func (p *Parser) consumeComparisonOp(op string) {
	switch op {
	case "!=", "<=", ">=":
		p.advance()
		p.advance()
	default:
		p.advance()
	}
}

var additiveOps = map[string]bool{"+": true, "-": true, "&": true}

func (p *Parser) parseAdditive() (Expression, error) {
	lhs, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		if t.Kind != KindSymbol || !additiveOps[t.Value] {
			break
		}
		op := p.advance().Value
		rhs, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		lhs = &BinaryOp{Op: op, LHS: lhs, RHS: rhs}
	}
	return lhs, nil
}

var multiplicativeOps = map[string]bool{"*": true, "/": true}

func (p *Parser) parseMultiplicative() (Expression, error) {
	lhs, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		isSym := t.Kind == KindSymbol && multiplicativeOps[t.Value]
		isWord := t.Kind == KindIdentifier && (t.Value == "div" || t.Value == "mod")
		if !isSym && !isWord {
			break
		}
		op := p.advance().Value
		rhs, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		lhs = &BinaryOp{Op: op, LHS: lhs, RHS: rhs}
	}
	return lhs, nil
}

func (p *Parser) parseUnary() (Expression, error) {
	if p.isSymbol("-") {
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &UnaryOp{Op: "-", Operand: operand}, nil
	}
	if p.isSymbol("+") {
		p.advance()
		return p.parseUnary()
	}
	return p.parsePostfix()
}

// parsePostfix parses a term followed by any chain of '.', '[...]' postfix
// operators (§4.2's tightest-binding level).
func (p *Parser) parsePostfix() (Expression, error) {
	expr, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.isSymbol("."):
			p.advance()
			rhs, err := p.parseInvocationTerm()
			if err != nil {
				return nil, err
			}
			expr = canonicalChild(expr, rhs)
		case p.isSymbol("["):
			p.advance()
			idx, err := p.parseIndexer()
			if err != nil {
				return nil, err
			}
			if err := p.expectSymbol("]"); err != nil {
				return nil, err
			}
			expr = canonicalChild(expr, idx)
		default:
			return expr, nil
		}
	}
}

// canonicalChild applies the parser canonicalisations of §4.2:
// `This.Child(X)` becomes `X`, `X.Child(This)` becomes `X`, and
// `X.Child(Root)` becomes `Root`. A resource-type token (e.g. `Patient` at
// the head of `Patient.name`) parses directly to a Root node but is NOT
// collapsed away: `Patient.name` renders as Child(Root, Element "name")
// (§8 scenario 2), since Root already carries the identity of "whichever
// resource this is", so the chain composes normally from there.
func canonicalChild(lhs, rhs Expression) Expression {
	if _, ok := rhs.(*Root); ok {
		return rhs
	}
	if _, ok := rhs.(*This); ok {
		return lhs
	}
	if _, ok := lhs.(*This); ok {
		return rhs
	}
	return &Child{LHS: lhs, RHS: rhs}
}

func (p *Parser) parseIndexer() (Expression, error) {
	if p.isSymbol("*") && p.peekAt(1).Kind == KindSymbol && p.peekAt(1).Value == "]" {
		p.advance()
		return &Slice{}, nil
	}

	var start, end, step *int
	if !p.isSymbol(":") && !p.isSymbol("]") {
		n, err := p.parseSignedInt()
		if err != nil {
			return nil, err
		}
		start = &n
	}
	if !p.isSymbol(":") {
		if start == nil {
			return nil, p.errf("expected index expression")
		}
		return &Index{I: *start}, nil
	}
	p.advance() // ':'
	if !p.isSymbol(":") && !p.isSymbol("]") {
		n, err := p.parseSignedInt()
		if err != nil {
			return nil, err
		}
		end = &n
	}
	if p.isSymbol(":") {
		p.advance()
		n, err := p.parseSignedInt()
		if err != nil {
			return nil, err
		}
		step = &n
	}
	return &Slice{Start: start, End: end, Step: step}, nil
}

func (p *Parser) parseSignedInt() (int, error) {
	neg := false
	if p.isSymbol("-") {
		neg = true
		p.advance()
	}
	t := p.peek()
	if t.Kind != KindInteger {
		return 0, p.errf("expected integer")
	}
	p.advance()
	n := 0
	fmt.Sscanf(t.Value, "%d", &n)
	if neg {
		n = -n
	}
	return n, nil
}

// parseInvocationTerm parses the right-hand side of a '.': an identifier
// (field access), a function call, This/$this/$index/$total are handled in
// parseTerm for the root position, but may also appear after '.'.
func (p *Parser) parseInvocationTerm() (Expression, error) {
	t := p.peek()
	switch t.Kind {
	case KindIdentifier, KindDelimitedIdentifier, KindFunction, KindRootNode, KindTypesOperator:
		name := p.advance().Value
		if p.isSymbol("(") {
			return p.parseFunctionCall(name)
		}
		return &Element{Name: name}, nil
	case KindChoiceElement:
		p.advance()
		return &TypeChoice{Base: t.Value}, nil
	default:
		return nil, p.errf("expected identifier or function after '.'")
	}
}

func (p *Parser) parseFunctionCall(name string) (Expression, error) {
	p.advance() // '('
	var args []Expression
	if !p.isSymbol(")") {
		for {
			arg, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if p.isSymbol(",") {
				p.advance()
				continue
			}
			break
		}
	}
	if err := p.expectSymbol(")"); err != nil {
		return nil, err
	}

	switch name {
	case "where":
		if len(args) != 1 {
			return nil, p.errf("where() takes exactly one argument")
		}
		return &Where{Predicate: args[0]}, nil
	case "extension":
		if len(args) != 1 {
			return nil, p.errf("extension() takes exactly one argument")
		}
		lit, ok := args[0].(*Literal)
		if !ok {
			return &Invocation{Fn: name, Args: args}, nil
		}
		url, _ := lit.Value.(string)
		return &FhirExtension{URL: url}, nil
	case "ofType":
		if len(args) != 1 {
			return nil, p.errf("ofType() takes exactly one argument")
		}
		return &Invocation{Fn: name, Args: args}, nil
	default:
		return &Invocation{Fn: name, Args: args}, nil
	}
}

func (p *Parser) parseTerm() (Expression, error) {
	t := p.peek()
	switch t.Kind {
	case KindSymbol:
		if t.Value == "(" {
			p.advance()
			expr, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			if err := p.expectSymbol(")"); err != nil {
				return nil, err
			}
			return expr, nil
		}
		if t.Value == "{" {
			p.advance()
			if err := p.expectSymbol("}"); err != nil {
				return nil, err
			}
			return &Invocation{Fn: "empty"}, nil
		}
		return nil, p.errf("unexpected symbol %q", t.Value)
	case KindRootNode:
		p.advance()
		return &Root{}, nil
	case KindIdentifier, KindDelimitedIdentifier, KindFunction, KindTypesOperator:
		name := p.advance().Value
		if p.isSymbol("(") {
			return p.parseFunctionCall(name)
		}
		return &Element{Name: name}, nil
	case KindChoiceElement:
		p.advance()
		return &TypeChoice{Base: t.Value}, nil
	case KindContextualOperator:
		p.advance()
		name := strings.TrimPrefix(t.Value, "$")
		if name == "this" || name == "" {
			return &This{}, nil
		}
		return &ContextVar{Name: name}, nil
	case KindEnvironmentalVariable:
		p.advance()
		return &EnvVar{Name: strings.TrimPrefix(t.Value, "%")}, nil
	case KindBoolean:
		p.advance()
		return &Literal{Value: t.Value == "true"}, nil
	case KindString:
		p.advance()
		return &Literal{Value: t.Value}, nil
	case KindInteger:
		p.advance()
		var n int64
		fmt.Sscanf(t.Value, "%d", &n)
		if p.peek().Kind == KindCalendarDuration {
			unit := p.advance().Value
			d, _, _ := apd.NewFromString(t.Value)
			return &Literal{Value: quantityLiteral{value: d, unit: unit}}, nil
		}
		return &Literal{Value: int(n)}, nil
	case KindDecimal:
		p.advance()
		d, _, err := apd.NewFromString(t.Value)
		if err != nil {
			return nil, p.errf("invalid decimal literal %q", t.Value)
		}
		if p.peek().Kind == KindCalendarDuration {
			unit := p.advance().Value
			return &Literal{Value: quantityLiteral{value: d, unit: unit}}, nil
		}
		return &Literal{Value: d}, nil
	case KindDate:
		p.advance()
		return &Literal{Value: dateLiteral{text: t.Value}}, nil
	case KindTime:
		p.advance()
		return &Literal{Value: timeLiteral{text: t.Value}}, nil
	case KindDateTime:
		p.advance()
		return &Literal{Value: dateTimeLiteral{text: t.Value}}, nil
	default:
		return nil, p.errf("unexpected token %s", t)
	}
}
