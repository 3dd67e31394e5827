package compiler

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ---------------------------------------------------------------------------
// Lexer: Tokenizer for lxg source
// ---------------------------------------------------------------------------

// Lexer tokenizes lxg source code.
type Lexer struct {
	input   string
	pos     int  // current position in input
	readPos int  // reading position (after current char)
	ch      rune // current character
	eof     bool
	line    int // line of ch (1-based)
	col     int // column of ch (1-based, in runes)
}

// NewLexer creates a new lexer for the given input.
func NewLexer(input string) *Lexer {
	l := &Lexer{
		input: input,
		line:  1,
	}
	l.readChar()
	return l
}

// readChar reads the next character.
func (l *Lexer) readChar() {
	if l.eof {
		return
	}
	if l.ch == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	if l.readPos >= len(l.input) {
		l.ch = 0
		l.pos = len(l.input)
		l.eof = true
		return
	}
	r, size := utf8.DecodeRuneInString(l.input[l.readPos:])
	l.ch = r
	l.pos = l.readPos
	l.readPos += size
}

// peekChar returns the next character without consuming it.
func (l *Lexer) peekChar() rune {
	if l.readPos >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.readPos:])
	return r
}

// position returns the current position.
func (l *Lexer) position() Position {
	return Position{
		Offset: l.pos,
		Line:   l.line,
		Column: l.col,
	}
}

func (l *Lexer) token(typ TokenType, literal string, pos Position) Token {
	return Token{Type: typ, Literal: literal, Pos: pos, End: l.position()}
}

// single consumes one character and returns a token of typ.
func (l *Lexer) single(typ TokenType, pos Position) Token {
	lit := string(l.ch)
	l.readChar()
	return l.token(typ, lit, pos)
}

// twoChar returns long if the next character is '=', else short.
func (l *Lexer) twoChar(short, long TokenType, pos Position) Token {
	first := string(l.ch)
	l.readChar()
	if l.ch == '=' {
		l.readChar()
		return l.token(long, first+"=", pos)
	}
	return l.token(short, first, pos)
}

// NextToken returns the next token.
func (l *Lexer) NextToken() Token {
	if tok, ok := l.skipWhitespaceAndComments(); !ok {
		return tok
	}

	pos := l.position()

	switch {
	case l.eof:
		return l.token(TokenEOF, "", pos)

	case l.ch == '(':
		return l.single(TokenLParen, pos)
	case l.ch == ')':
		return l.single(TokenRParen, pos)
	case l.ch == '{':
		return l.single(TokenLBrace, pos)
	case l.ch == '}':
		return l.single(TokenRBrace, pos)
	case l.ch == ';':
		return l.single(TokenSemicolon, pos)
	case l.ch == '+':
		return l.single(TokenPlus, pos)
	case l.ch == '-':
		return l.single(TokenMinus, pos)
	case l.ch == '*':
		return l.single(TokenStar, pos)
	case l.ch == '/':
		return l.single(TokenSlash, pos)

	case l.ch == '=':
		return l.twoChar(TokenAssign, TokenEq, pos)
	case l.ch == '!':
		return l.twoChar(TokenBang, TokenNotEq, pos)
	case l.ch == '<':
		return l.twoChar(TokenLess, TokenLessEq, pos)
	case l.ch == '>':
		return l.twoChar(TokenGreater, TokenGreaterEq, pos)

	case l.ch == '"':
		return l.readString(pos)

	case isDigit(l.ch):
		return l.readNumber(pos)

	case isLetter(l.ch) || l.ch == '_':
		return l.readIdentifier(pos)

	default:
		ch := l.ch
		l.readChar()
		return l.token(TokenError, fmt.Sprintf("unexpected character %q", ch), pos)
	}
}

// skipWhitespaceAndComments skips whitespace, // line comments and
// /* block */ comments. It returns an error token and false for an
// unterminated block comment.
func (l *Lexer) skipWhitespaceAndComments() (Token, bool) {
	for {
		for !l.eof && unicode.IsSpace(l.ch) {
			l.readChar()
		}

		if l.ch == '/' && l.peekChar() == '/' {
			for !l.eof && l.ch != '\n' {
				l.readChar()
			}
			continue
		}

		if l.ch == '/' && l.peekChar() == '*' {
			pos := l.position()
			l.readChar()
			l.readChar()
			for !l.eof && !(l.ch == '*' && l.peekChar() == '/') {
				l.readChar()
			}
			if l.eof {
				return l.token(TokenError, "unterminated block comment", pos), false
			}
			l.readChar()
			l.readChar()
			continue
		}

		return Token{}, true
	}
}

// readNumber reads a decimal integer literal. Range checking happens in
// the parser so the error can name the literal.
func (l *Lexer) readNumber(pos Position) Token {
	start := l.pos
	for isDigit(l.ch) {
		l.readChar()
	}
	return l.token(TokenInteger, l.input[start:l.pos], pos)
}

// readIdentifier reads an identifier or reserved word.
func (l *Lexer) readIdentifier(pos Position) Token {
	start := l.pos
	for isLetter(l.ch) || isDigit(l.ch) || l.ch == '_' {
		l.readChar()
	}
	word := l.input[start:l.pos]
	if typ, ok := reservedWords[word]; ok {
		return l.token(typ, word, pos)
	}
	return l.token(TokenIdentifier, word, pos)
}

// readString reads a double-quoted string literal and decodes escapes.
// Supported: \n \r \t \" \\; any other \x yields x.
func (l *Lexer) readString(pos Position) Token {
	l.readChar() // skip opening quote

	var sb strings.Builder
	for {
		switch {
		case l.eof || l.ch == '\n':
			return l.token(TokenError, "unterminated string literal", pos)
		case l.ch == '"':
			l.readChar()
			return l.token(TokenString, sb.String(), pos)
		case l.ch == '\\':
			l.readChar()
			if l.eof {
				return l.token(TokenError, "unterminated string literal", pos)
			}
			switch l.ch {
			case 'n':
				sb.WriteByte('\n')
			case 'r':
				sb.WriteByte('\r')
			case 't':
				sb.WriteByte('\t')
			default:
				sb.WriteRune(l.ch)
			}
			l.readChar()
		default:
			sb.WriteRune(l.ch)
			l.readChar()
		}
	}
}

// Tokenize returns every token in input up to and including EOF.
func Tokenize(input string) []Token {
	l := NewLexer(input)
	var tokens []Token
	for {
		tok := l.NextToken()
		tokens = append(tokens, tok)
		if tok.Type == TokenEOF {
			return tokens
		}
	}
}

func isDigit(ch rune) bool {
	return ch >= '0' && ch <= '9'
}

func isLetter(ch rune) bool {
	return ch < utf8.RuneSelf && unicode.IsLetter(ch)
}
