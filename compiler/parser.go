package compiler

import (
	"fmt"
	"strconv"
)

// ---------------------------------------------------------------------------
// Parser: Recursive descent parser for lxg syntax
// ---------------------------------------------------------------------------

// Parser parses lxg source code into an AST. Syntax errors are appended
// to the Diagnostics sink it was created with.
type Parser struct {
	lexer     *Lexer
	curToken  Token
	peekToken Token
	prevEnd   Position // end of the last consumed token
	diags     *Diagnostics
}

// NewParser creates a new parser for the given input. A nil diags gets a
// fresh sink.
func NewParser(input string, diags *Diagnostics) *Parser {
	if diags == nil {
		diags = NewDiagnostics()
	}
	p := &Parser{
		lexer: NewLexer(input),
		diags: diags,
	}
	// Read two tokens to fill curToken and peekToken
	p.nextToken()
	p.nextToken()
	return p
}

// Parse parses input as a whole program.
func Parse(input string, diags *Diagnostics) *Program {
	return NewParser(input, diags).ParseProgram()
}

// nextToken advances to the next token.
func (p *Parser) nextToken() {
	p.prevEnd = p.curToken.End
	p.curToken = p.peekToken
	p.peekToken = p.lexer.NextToken()
}

// curTokenIs checks if the current token is of the given type.
func (p *Parser) curTokenIs(t TokenType) bool {
	return p.curToken.Type == t
}

// peekTokenIs checks if the peek token is of the given type.
func (p *Parser) peekTokenIs(t TokenType) bool {
	return p.peekToken.Type == t
}

// expect advances if the current token matches, otherwise records an error.
func (p *Parser) expect(t TokenType, context string) (Token, bool) {
	tok := p.curToken
	if tok.Type == t {
		p.nextToken()
		return tok, true
	}
	if tok.Type == TokenError {
		p.lexError()
		return tok, false
	}
	p.errorf("expected %s %s, found %s", expected(t), context, describe(tok))
	return tok, false
}

func expected(t TokenType) string {
	if t == TokenIdentifier {
		return "identifier"
	}
	return "'" + t.String() + "'"
}

// errorf records a syntax error at the current token.
func (p *Parser) errorf(format string, args ...any) {
	p.diags.SyntaxErrorAt(p.curToken.Span(), format, args...)
}

// lexError records the lexer's message for an error token.
func (p *Parser) lexError() {
	p.diags.SyntaxErrorAt(p.curToken.Span(), "%s", p.curToken.Literal)
}

// Errors returns the syntax errors recorded so far, rendered.
func (p *Parser) Errors() []string {
	var out []string
	for _, d := range p.diags.Items() {
		if d.Kind == KindSyntax {
			out = append(out, d.String())
		}
	}
	return out
}

func describe(tok Token) string {
	switch tok.Type {
	case TokenEOF:
		return "end of input"
	case TokenString:
		return "string literal"
	case TokenInteger, TokenIdentifier:
		return fmt.Sprintf("%q", tok.Literal)
	default:
		return fmt.Sprintf("'%s'", tok.Literal)
	}
}

// synchronize skips to a likely statement boundary after an error.
func (p *Parser) synchronize() {
	for {
		switch p.curToken.Type {
		case TokenEOF, TokenRBrace, TokenLBrace, TokenLet, TokenPrint, TokenIf:
			return
		case TokenSemicolon:
			p.nextToken()
			return
		}
		p.nextToken()
	}
}

// ---------------------------------------------------------------------------
// Top-level parsing
// ---------------------------------------------------------------------------

// ParseProgram parses statements until end of input.
func (p *Parser) ParseProgram() *Program {
	prog := &Program{}
	start := p.curToken.Pos

	for !p.curTokenIs(TokenEOF) {
		if p.curTokenIs(TokenRBrace) {
			p.errorf("unexpected '}'")
			p.nextToken()
			continue
		}
		stmt := p.ParseStatement()
		if stmt == nil {
			p.synchronize()
			continue
		}
		prog.Statements = append(prog.Statements, stmt)
	}

	prog.SpanVal = Span{Start: start, End: p.curToken.End}
	return prog
}

// ParseStatement parses a single statement. It returns nil after
// recording an error.
func (p *Parser) ParseStatement() Stmt {
	switch p.curToken.Type {
	case TokenPrint:
		return p.parsePrint()
	case TokenLet:
		return p.parseLet()
	case TokenIf:
		return p.parseIf()
	case TokenLBrace:
		if b := p.parseBlock(); b != nil {
			return b
		}
		return nil
	case TokenIdentifier:
		if p.peekTokenIs(TokenAssign) {
			return p.parseAssign()
		}
		name := p.curToken.Literal
		p.nextToken()
		if p.curTokenIs(TokenError) {
			p.lexError()
		} else {
			p.errorf("expected '=' after %q, found %s", name, describe(p.curToken))
		}
		return nil
	case TokenError:
		p.lexError()
		p.nextToken()
		return nil
	default:
		p.errorf("unexpected %s at start of statement", describe(p.curToken))
		return nil
	}
}

func (p *Parser) parsePrint() Stmt {
	start := p.curToken.Pos
	p.nextToken() // consume 'print'

	value := p.ParseExpression()
	if value == nil {
		return nil
	}
	if _, ok := p.expect(TokenSemicolon, "after print statement"); !ok {
		return nil
	}
	return &PrintStmt{SpanVal: Span{Start: start, End: p.prevEnd}, Value: value}
}

func (p *Parser) parseLet() Stmt {
	start := p.curToken.Pos
	p.nextToken() // consume 'let'

	name, ok := p.expect(TokenIdentifier, "after 'let'")
	if !ok {
		return nil
	}
	if _, ok := p.expect(TokenAssign, "in let statement"); !ok {
		return nil
	}
	value := p.ParseExpression()
	if value == nil {
		return nil
	}
	if _, ok := p.expect(TokenSemicolon, "after let statement"); !ok {
		return nil
	}
	return &LetStmt{
		SpanVal:  Span{Start: start, End: p.prevEnd},
		Name:     name.Literal,
		NameSpan: name.Span(),
		Value:    value,
	}
}

func (p *Parser) parseAssign() Stmt {
	name := p.curToken
	p.nextToken() // identifier
	p.nextToken() // '='

	value := p.ParseExpression()
	if value == nil {
		return nil
	}
	if _, ok := p.expect(TokenSemicolon, "after assignment"); !ok {
		return nil
	}
	return &AssignStmt{
		SpanVal:  Span{Start: name.Pos, End: p.prevEnd},
		Name:     name.Literal,
		NameSpan: name.Span(),
		Value:    value,
	}
}

func (p *Parser) parseIf() Stmt {
	start := p.curToken.Pos
	p.nextToken() // consume 'if'

	if _, ok := p.expect(TokenLParen, "after 'if'"); !ok {
		return nil
	}
	cond := p.ParseExpression()
	if cond == nil {
		return nil
	}
	if _, ok := p.expect(TokenRParen, "after if condition"); !ok {
		return nil
	}
	if !p.curTokenIs(TokenLBrace) {
		p.errorf("expected '{' after if condition, found %s", describe(p.curToken))
		return nil
	}
	then := p.parseBlock()
	if then == nil {
		return nil
	}

	stmt := &IfStmt{Cond: cond, Then: then}
	if p.curTokenIs(TokenElse) {
		p.nextToken()
		if !p.curTokenIs(TokenLBrace) {
			p.errorf("expected '{' after 'else', found %s", describe(p.curToken))
			return nil
		}
		stmt.Else = p.parseBlock()
		if stmt.Else == nil {
			return nil
		}
	}
	stmt.SpanVal = Span{Start: start, End: p.prevEnd}
	return stmt
}

// parseBlock parses { stmt* }. Errors inside the block are recovered
// locally; nil means the closing brace was never found.
func (p *Parser) parseBlock() *BlockStmt {
	start := p.curToken.Pos
	p.nextToken() // consume '{'

	block := &BlockStmt{}
	for !p.curTokenIs(TokenRBrace) && !p.curTokenIs(TokenEOF) {
		stmt := p.ParseStatement()
		if stmt == nil {
			p.synchronize()
			continue
		}
		block.Statements = append(block.Statements, stmt)
	}
	if _, ok := p.expect(TokenRBrace, "to close block"); !ok {
		return nil
	}
	block.SpanVal = Span{Start: start, End: p.prevEnd}
	return block
}

// ---------------------------------------------------------------------------
// Expression parsing
// ---------------------------------------------------------------------------

var (
	equalityOps   = map[TokenType]BinaryOp{TokenEq: BinaryEq, TokenNotEq: BinaryNe}
	comparisonOps = map[TokenType]BinaryOp{TokenLess: BinaryLt, TokenGreater: BinaryGt, TokenLessEq: BinaryLe, TokenGreaterEq: BinaryGe}
	additionOps   = map[TokenType]BinaryOp{TokenPlus: BinaryAdd, TokenMinus: BinarySub}
	multiplyOps   = map[TokenType]BinaryOp{TokenStar: BinaryMul, TokenSlash: BinaryDiv}
)

// ParseExpression parses a single expression.
func (p *Parser) ParseExpression() Expr {
	return p.parseEquality()
}

func (p *Parser) parseEquality() Expr {
	return p.parseBinary(equalityOps, p.parseComparison)
}

func (p *Parser) parseComparison() Expr {
	return p.parseBinary(comparisonOps, p.parseAddition)
}

func (p *Parser) parseAddition() Expr {
	return p.parseBinary(additionOps, p.parseMultiply)
}

func (p *Parser) parseMultiply() Expr {
	return p.parseBinary(multiplyOps, p.parseUnary)
}

// parseBinary parses a left-associative chain of ops over operand.
func (p *Parser) parseBinary(ops map[TokenType]BinaryOp, operand func() Expr) Expr {
	left := operand()
	if left == nil {
		return nil
	}
	for {
		op, ok := ops[p.curToken.Type]
		if !ok {
			return left
		}
		p.nextToken()
		right := operand()
		if right == nil {
			return nil
		}
		left = &BinaryExpr{
			SpanVal: Span{Start: left.Span().Start, End: right.Span().End},
			Op:      op,
			Left:    left,
			Right:   right,
		}
	}
}

func (p *Parser) parseUnary() Expr {
	var op UnaryOp
	switch p.curToken.Type {
	case TokenPlus:
		op = UnaryPlus
	case TokenMinus:
		op = UnaryNeg
	case TokenBang:
		op = UnaryNot
	default:
		return p.parsePrimary()
	}
	start := p.curToken.Pos
	p.nextToken()
	operand := p.parseUnary()
	if operand == nil {
		return nil
	}
	return &UnaryExpr{
		SpanVal: Span{Start: start, End: operand.Span().End},
		Op:      op,
		Operand: operand,
	}
}

func (p *Parser) parsePrimary() Expr {
	tok := p.curToken
	switch tok.Type {
	case TokenInteger:
		v, err := strconv.ParseInt(tok.Literal, 10, 32)
		if err != nil {
			p.errorf("integer literal out of range: %s", tok.Literal)
			return nil
		}
		p.nextToken()
		return &IntLiteral{SpanVal: tok.Span(), Value: int32(v)}

	case TokenString:
		p.nextToken()
		return &StringLiteral{SpanVal: tok.Span(), Value: tok.Literal}

	case TokenTrue, TokenFalse:
		p.nextToken()
		return &BoolLiteral{SpanVal: tok.Span(), Value: tok.Type == TokenTrue}

	case TokenIdentifier:
		p.nextToken()
		return &VarRef{SpanVal: tok.Span(), Name: tok.Literal}

	case TokenLParen:
		p.nextToken()
		inner := p.ParseExpression()
		if inner == nil {
			return nil
		}
		if _, ok := p.expect(TokenRParen, "to close parenthesized expression"); !ok {
			return nil
		}
		return inner

	case TokenError:
		p.lexError()
		return nil

	default:
		p.errorf("expected expression, found %s", describe(tok))
		return nil
	}
}
