package lexer

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"
)

// ASCII character lookup tables for fast classification.
var (
	isWhitespace [128]bool
	isIdentStart [128]bool
	isIdentPart  [128]bool
	isHexDigit   [128]bool

	singleCharTokens [128]TokenType
)

func init() {
	for i := 0; i < 128; i++ {
		ch := byte(i)
		isWhitespace[i] = ch == ' ' || ch == '\t' || ch == '\r' || ch == '\n' || ch == '\f'
		letter := ('a' <= ch && ch <= 'z') || ('A' <= ch && ch <= 'Z')
		digit := '0' <= ch && ch <= '9'
		isIdentStart[i] = letter || digit || ch == '_' || ch == '-' || ch == '/'
		isIdentPart[i] = letter || digit || ch == '_' || ch == '-' || ch == '/' || ch == ':'
		isHexDigit[i] = digit || ('a' <= ch && ch <= 'f') || ('A' <= ch && ch <= 'F')
		singleCharTokens[i] = ILLEGAL
	}

	singleCharTokens['{'] = LBRACE
	singleCharTokens['}'] = RBRACE
	singleCharTokens['('] = LPAREN
	singleCharTokens[')'] = RPAREN
	singleCharTokens['='] = ASSIGN
	singleCharTokens['+'] = PLUS
	singleCharTokens['|'] = PIPE
	singleCharTokens['~'] = TILDE
	singleCharTokens['*'] = ASTERISK
	singleCharTokens['$'] = DOLLAR
}

// Lexer turns moldfile text into a token stream. Whitespace (including
// newlines) and comments are insignificant and never surface as tokens.
type Lexer struct {
	input    string
	position int  // current position (byte offset of ch)
	readPos  int  // next reading position
	ch       rune // current rune under examination
	line     int
	column   int
}

// New creates a Lexer reading the whole input up front.
func New(reader io.Reader) *Lexer {
	data, err := io.ReadAll(reader)
	if err != nil {
		data = []byte{}
	}
	l := &Lexer{
		input:  string(data),
		line:   1,
		column: 0, // incremented to 1 by the initial readChar
	}
	l.readChar()
	return l
}

// NewString creates a Lexer over a string.
func NewString(input string) *Lexer {
	return New(strings.NewReader(input))
}

func (l *Lexer) readChar() {
	l.position = l.readPos

	if l.readPos >= len(l.input) {
		l.ch = 0
		return
	}
	var size int
	l.ch, size = utf8.DecodeRuneInString(l.input[l.readPos:])
	if l.ch == utf8.RuneError && size == 1 {
		l.ch = rune(l.input[l.readPos])
	}
	l.readPos += size

	if l.ch == '\n' {
		l.line++
		l.column = 0
	} else {
		l.column++
	}
}

func (l *Lexer) peekChar() rune {
	if l.readPos >= len(l.input) {
		return 0
	}
	ch, _ := utf8.DecodeRuneInString(l.input[l.readPos:])
	return ch
}

// skipTrivia consumes whitespace and comments. Line comments start with
// either '#' or "//" and run to end of line.
func (l *Lexer) skipTrivia() {
	for {
		switch {
		case l.ch != 0 && l.ch < 128 && isWhitespace[l.ch]:
			l.readChar()
		case l.ch == '#' || (l.ch == '/' && l.peekChar() == '/'):
			for l.ch != '\n' && l.ch != 0 {
				l.readChar()
			}
		default:
			return
		}
	}
}

// TokenizeToSlice tokenizes the entire input, EOF token included.
func (l *Lexer) TokenizeToSlice() []Token {
	var tokens []Token
	for {
		token := l.NextToken()
		tokens = append(tokens, token)
		if token.Type == EOF {
			break
		}
	}
	return tokens
}

// NextToken returns the next token from the input.
func (l *Lexer) NextToken() Token {
	l.skipTrivia()

	line, column, offset := l.line, l.column, l.position

	if l.ch == 0 {
		return Token{Type: EOF, Line: line, Column: column, Offset: offset}
	}

	// ":=" must win over ':' as an identifier character.
	if l.ch == ':' && l.peekChar() == '=' {
		l.readChar()
		l.readChar()
		return Token{Type: DECLARE, Value: ":=", Line: line, Column: column, Offset: offset}
	}

	if l.ch == '"' {
		return l.lexString(line, column, offset)
	}

	if l.ch < 128 && isIdentStart[l.ch] && !(l.ch == '/' && l.peekChar() == '/') {
		return l.lexIdent(line, column, offset)
	}

	if l.ch < 128 && singleCharTokens[l.ch] != ILLEGAL {
		tokenType := singleCharTokens[l.ch]
		value := string(l.ch)
		l.readChar()
		return Token{Type: tokenType, Value: value, Line: line, Column: column, Offset: offset}
	}

	value := string(l.ch)
	l.readChar()
	return Token{
		Type:   ILLEGAL,
		Value:  value,
		Msg:    fmt.Sprintf("unexpected character %q", value),
		Line:   line,
		Column: column,
		Offset: offset,
	}
}

// lexIdent scans an identifier: one or more of letters, digits, '_', '-',
// '/' and ':'. The scan stops before ":=" so "name:= ..." still splits into
// IDENT and DECLARE, and before "//" so a comment can follow without a space.
func (l *Lexer) lexIdent(line, column, offset int) Token {
	start := l.position
	for l.ch != 0 && l.ch < 128 && isIdentPart[l.ch] {
		if l.ch == ':' && l.peekChar() == '=' {
			break
		}
		if l.ch == '/' && l.peekChar() == '/' {
			break
		}
		l.readChar()
	}
	value := l.input[start:l.position]

	if keyword, ok := keywords[value]; ok {
		return Token{Type: keyword, Value: value, Line: line, Column: column, Offset: offset}
	}
	return Token{Type: IDENT, Value: value, Line: line, Column: column, Offset: offset}
}

// lexString scans a double-quoted string literal and decodes its escapes.
// Supported escapes: \" \\ \/ \n \r \t \b \f and \u{XXXX} with four hex
// digits. Anything else is an invalid-escape ILLEGAL token.
func (l *Lexer) lexString(line, column, offset int) Token {
	l.readChar() // consume opening quote

	var b strings.Builder
	for {
		switch l.ch {
		case 0:
			return Token{
				Type:   ILLEGAL,
				Value:  l.input[offset:l.position],
				Msg:    "unterminated string",
				Line:   line,
				Column: column,
				Offset: offset,
			}
		case '"':
			l.readChar()
			return Token{Type: STRING, Value: b.String(), Line: line, Column: column, Offset: offset}
		case '\\':
			l.readChar()
			switch l.ch {
			case '"', '\\', '/':
				b.WriteRune(l.ch)
				l.readChar()
			case 'n':
				b.WriteByte('\n')
				l.readChar()
			case 'r':
				b.WriteByte('\r')
				l.readChar()
			case 't':
				b.WriteByte('\t')
				l.readChar()
			case 'b':
				b.WriteByte('\b')
				l.readChar()
			case 'f':
				b.WriteByte('\f')
				l.readChar()
			case 'u':
				l.readChar()
				r, ok := l.lexUnicodeEscape()
				if !ok {
					return Token{
						Type:   ILLEGAL,
						Value:  l.input[offset:l.position],
						Msg:    "invalid unicode escape, expected \\u{XXXX}",
						Line:   line,
						Column: column,
						Offset: offset,
					}
				}
				b.WriteRune(r)
			default:
				return Token{
					Type:   ILLEGAL,
					Value:  l.input[offset:l.position],
					Msg:    fmt.Sprintf("invalid escape sequence \\%c", l.ch),
					Line:   line,
					Column: column,
					Offset: offset,
				}
			}
		default:
			b.WriteRune(l.ch)
			l.readChar()
		}
	}
}

// lexUnicodeEscape consumes "{XXXX}" after "\u" and returns the code point.
func (l *Lexer) lexUnicodeEscape() (rune, bool) {
	if l.ch != '{' {
		return 0, false
	}
	l.readChar()

	start := l.position
	for l.ch != 0 && l.ch < 128 && isHexDigit[l.ch] {
		l.readChar()
	}
	digits := l.input[start:l.position]
	if len(digits) != 4 || l.ch != '}' {
		return 0, false
	}
	l.readChar() // consume '}'

	value, err := strconv.ParseUint(digits, 16, 32)
	if err != nil || !utf8.ValidRune(rune(value)) {
		return 0, false
	}
	return rune(value), true
}
