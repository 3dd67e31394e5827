package compiler

import (
	"fmt"
	"sort"
)

// ---------------------------------------------------------------------------
// Token types for the lxg lexer
// ---------------------------------------------------------------------------

// TokenType represents the type of a token.
type TokenType int

const (
	// Special tokens
	TokenEOF TokenType = iota
	TokenError

	// Literals
	TokenInteger    // 42
	TokenString     // "hello"
	TokenIdentifier // foo

	// Operators
	TokenPlus      // +
	TokenMinus     // -
	TokenStar      // *
	TokenSlash     // /
	TokenBang      // !
	TokenAssign    // =
	TokenEq        // ==
	TokenNotEq     // !=
	TokenLess      // <
	TokenGreater   // >
	TokenLessEq    // <=
	TokenGreaterEq // >=

	// Delimiters
	TokenLParen    // (
	TokenRParen    // )
	TokenLBrace    // {
	TokenRBrace    // }
	TokenSemicolon // ;

	// Keywords
	TokenLet
	TokenPrint
	TokenIf
	TokenElse
	TokenTrue
	TokenFalse
)

var tokenNames = map[TokenType]string{
	TokenEOF:        "EOF",
	TokenError:      "ERROR",
	TokenInteger:    "INTEGER",
	TokenString:     "STRING",
	TokenIdentifier: "IDENTIFIER",
	TokenPlus:       "+",
	TokenMinus:      "-",
	TokenStar:       "*",
	TokenSlash:      "/",
	TokenBang:       "!",
	TokenAssign:     "=",
	TokenEq:         "==",
	TokenNotEq:      "!=",
	TokenLess:       "<",
	TokenGreater:    ">",
	TokenLessEq:     "<=",
	TokenGreaterEq:  ">=",
	TokenLParen:     "(",
	TokenRParen:     ")",
	TokenLBrace:     "{",
	TokenRBrace:     "}",
	TokenSemicolon:  ";",
	TokenLet:        "let",
	TokenPrint:      "print",
	TokenIf:         "if",
	TokenElse:       "else",
	TokenTrue:       "true",
	TokenFalse:      "false",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Token(%d)", t)
}

// Token represents a lexical token.
type Token struct {
	Type    TokenType
	Literal string   // the raw text, or the decoded value for strings
	Pos     Position // start position
	End     Position // position just past the token
}

// Span returns the source range covered by the token.
func (t Token) Span() Span {
	return Span{Start: t.Pos, End: t.End}
}

func (t Token) String() string {
	if t.Type == TokenEOF {
		return "EOF"
	}
	if t.Type == TokenError {
		return fmt.Sprintf("ERROR(%s)", t.Literal)
	}
	if len(t.Literal) > 20 {
		return fmt.Sprintf("%s(%q...)", t.Type, t.Literal[:20])
	}
	return fmt.Sprintf("%s(%q)", t.Type, t.Literal)
}

// Reserved words mapped to their token types.
var reservedWords = map[string]TokenType{
	"let":   TokenLet,
	"print": TokenPrint,
	"if":    TokenIf,
	"else":  TokenElse,
	"true":  TokenTrue,
	"false": TokenFalse,
}

// IsKeyword reports whether name is reserved and cannot be a variable.
func IsKeyword(name string) bool {
	_, ok := reservedWords[name]
	return ok
}

// Keywords returns the reserved words in sorted order.
func Keywords() []string {
	out := make([]string, 0, len(reservedWords))
	for kw := range reservedWords {
		out = append(out, kw)
	}
	sort.Strings(out)
	return out
}
