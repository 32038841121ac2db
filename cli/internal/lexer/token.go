package lexer

import "fmt"

// TokenType represents the type of a moldfile token.
type TokenType int

const (
	// Special tokens
	EOF TokenType = iota
	ILLEGAL

	// Structure
	LBRACE  // {
	RBRACE  // }
	LPAREN  // (
	RPAREN  // )
	ASSIGN  // =
	DECLARE // :=

	// Guard expression operators
	PLUS     // + (and)
	PIPE     // | (or)
	TILDE    // ~ (not)
	ASTERISK // * (wildcard)

	// Run shorthand
	DOLLAR // $

	// Literals
	IDENT  // recipe names, variable names, requirement names
	STRING // "text"

	// Keywords
	VERSION
	IMPORT
	AS
	RECIPE
	VAR
	IF
	ELIF
	ELSE
	HELP
	DIR
	REQUIRE
	RUN
)

var tokenNames = [...]string{
	EOF:      "EOF",
	ILLEGAL:  "ILLEGAL",
	LBRACE:   "LBRACE",
	RBRACE:   "RBRACE",
	LPAREN:   "LPAREN",
	RPAREN:   "RPAREN",
	ASSIGN:   "ASSIGN",
	DECLARE:  "DECLARE",
	PLUS:     "PLUS",
	PIPE:     "PIPE",
	TILDE:    "TILDE",
	ASTERISK: "ASTERISK",
	DOLLAR:   "DOLLAR",
	IDENT:    "IDENT",
	STRING:   "STRING",
	VERSION:  "VERSION",
	IMPORT:   "IMPORT",
	AS:       "AS",
	RECIPE:   "RECIPE",
	VAR:      "VAR",
	IF:       "IF",
	ELIF:     "ELIF",
	ELSE:     "ELSE",
	HELP:     "HELP",
	DIR:      "DIR",
	REQUIRE:  "REQUIRE",
	RUN:      "RUN",
}

func (t TokenType) String() string {
	if int(t) >= 0 && int(t) < len(tokenNames) {
		return tokenNames[t]
	}
	return fmt.Sprintf("TokenType(%d)", int(t))
}

// Keyword lookup. Keywords only match a whole lexeme; identifiers that merely
// contain one (e.g. "run:fast") stay IDENT.
var keywords = map[string]TokenType{
	"version": VERSION,
	"import":  IMPORT,
	"as":      AS,
	"recipe":  RECIPE,
	"var":     VAR,
	"if":      IF,
	"elif":    ELIF,
	"else":    ELSE,
	"help":    HELP,
	"dir":     DIR,
	"require": REQUIRE,
	"run":     RUN,
}

// Token is a single lexeme with its source position.
type Token struct {
	Type   TokenType
	Value  string // decoded value for STRING, raw lexeme otherwise
	Msg    string // diagnostic for ILLEGAL tokens
	Line   int    // 1-based
	Column int    // 1-based
	Offset int    // 0-based byte offset
}

// Position returns a formatted position string for error reporting.
func (t Token) Position() string {
	return fmt.Sprintf("%d:%d", t.Line, t.Column)
}

// IsKeyword reports whether the token is one of the language keywords.
func IsKeyword(tokenType TokenType) bool {
	switch tokenType {
	case VERSION, IMPORT, AS, RECIPE, VAR, IF, ELIF, ELSE, HELP, DIR, REQUIRE, RUN:
		return true
	default:
		return false
	}
}
