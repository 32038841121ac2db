// Package parser implements a recursive descent parser for the moldfile
// language. It trusts the lexer to have handled whitespace, comments and
// string decoding, focusing purely on assembling the Document AST.
package parser

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/moldlang/mold/cli/internal/lexer"
	"github.com/moldlang/mold/core/ast"
)

// blockContext distinguishes where a statement block appears: conditional
// bodies accept different statements at top level than inside a recipe.
type blockContext int

const (
	topLevel blockContext = iota
	recipeBody
)

// Parser assembles a Document from a token slice.
type Parser struct {
	path   string
	lines  []string // source lines for error context
	tokens []lexer.Token
	pos    int

	errors ErrorList

	logger *slog.Logger
}

// Parse tokenizes and parses moldfile text into a Document. The path is
// recorded on the Document and used in error locations.
func Parse(reader io.Reader, path string) (*ast.Document, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	input := string(data)

	logLevel := slog.LevelInfo
	if os.Getenv("MOLD_DEBUG_PARSER") != "" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			// Drop timestamp and level for cleaner parser traces
			if a.Key == slog.TimeKey || a.Key == slog.LevelKey {
				return slog.Attr{}
			}
			return a
		},
	}))

	p := &Parser{
		path:   path,
		lines:  strings.Split(input, "\n"),
		tokens: lexer.NewString(input).TokenizeToSlice(),
		logger: logger,
	}

	doc := p.parseDocument()
	doc.Path = path

	if len(p.errors) > 0 {
		return nil, p.errors
	}
	return doc, nil
}

// ParseFile opens and parses the moldfile at path.
func ParseFile(path string) (*ast.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return Parse(f, path)
}

// --- Main parsing logic ---

// parseDocument parses the top level of a moldfile:
// Document = [ "version" STRING ] { Import | Recipe | Var | Dir | If }*
func (p *Parser) parseDocument() *ast.Document {
	doc := &ast.Document{}

	for !p.isAtEnd() {
		switch p.current().Type {
		case lexer.VERSION:
			versionToken := p.current()
			p.advance()
			value, ok := p.consumeString("expected version string after 'version'")
			if !ok {
				p.synchronize()
				continue
			}
			if doc.Version != "" {
				p.errorAt(versionToken, "duplicate version declaration %q", value)
				continue
			}
			doc.Version = value
		case lexer.IMPORT:
			if stmt := p.parseImport(); stmt != nil {
				doc.Statements = append(doc.Statements, stmt)
			}
		case lexer.RECIPE, lexer.VAR, lexer.IF, lexer.DIR,
			lexer.HELP, lexer.REQUIRE, lexer.RUN, lexer.DOLLAR:
			// help/require/run reach parseStatement so it can reject them
			// with a context-specific message.
			if stmt := p.parseStatement(topLevel); stmt != nil {
				doc.Statements = append(doc.Statements, stmt)
			}
		case lexer.ILLEGAL:
			p.errorAt(p.current(), "%s", p.current().Msg)
			p.advance()
		default:
			p.errorAt(p.current(), "unexpected %s at top level, expected 'version', 'import', 'recipe', 'var', 'dir' or 'if'", p.describe(p.current()))
			p.synchronize()
		}
	}

	return doc
}

// parseStatement parses one statement valid in the given context.
// Returns nil after reporting an error (the parser has already synchronized).
func (p *Parser) parseStatement(context blockContext) ast.Statement {
	token := p.current()
	p.logger.Debug("parseStatement", "token", token.Type.String(), "pos", token.Position())

	switch token.Type {
	case lexer.VAR:
		return p.parseVar()
	case lexer.IF:
		return p.parseIf(context)
	case lexer.DIR:
		p.advance()
		if value, ok := p.consumeString("expected path string after 'dir'"); ok {
			return &ast.DirDecl{Path: value, Pos: position(token)}
		}
	case lexer.RECIPE:
		if context == recipeBody {
			p.errorAt(token, "recipes cannot be nested inside recipe bodies")
			p.synchronize()
			return nil
		}
		return p.parseRecipe()
	case lexer.HELP:
		if context == topLevel {
			p.errorAt(token, "'help' is only valid inside a recipe body")
			p.synchronize()
			return nil
		}
		p.advance()
		if value, ok := p.consumeString("expected help text string"); ok {
			return &ast.HelpDecl{Text: value, Pos: position(token)}
		}
	case lexer.REQUIRE:
		if context == topLevel {
			p.errorAt(token, "'require' is only valid inside a recipe body")
			p.synchronize()
			return nil
		}
		p.advance()
		if name, ok := p.consumeIdent("expected requirement name after 'require'"); ok {
			return &ast.RequireDecl{Name: name, Pos: position(token)}
		}
	case lexer.RUN, lexer.DOLLAR:
		if context == topLevel {
			p.errorAt(token, "'run' is only valid inside a recipe body")
			p.synchronize()
			return nil
		}
		p.advance()
		if value, ok := p.consumeString("expected command string after 'run'"); ok {
			return &ast.RunDecl{Command: value, Pos: position(token)}
		}
	case lexer.IMPORT:
		// Imports are top-level only; parseDocument handles the valid case.
		p.errorAt(token, "imports are only permitted at the top level of a document")
		p.synchronize()
		return nil
	case lexer.ILLEGAL:
		p.errorAt(token, "%s", token.Msg)
		p.advance()
		return nil
	default:
		p.errorAt(token, "unexpected %s", p.describe(token))
		p.synchronize()
		return nil
	}

	p.synchronize()
	return nil
}

// parseImport parses: "import" STRING [ "as" IDENT ]
func (p *Parser) parseImport() ast.Statement {
	token := p.current()
	p.advance()

	path, ok := p.consumeString("expected import path string after 'import'")
	if !ok {
		p.synchronize()
		return nil
	}

	var alias string
	if p.match(lexer.AS) {
		p.advance()
		alias, ok = p.consumeIdent("expected alias name after 'as'")
		if !ok {
			p.synchronize()
			return nil
		}
	}

	return &ast.ImportDecl{Path: path, Alias: alias, Pos: position(token)}
}

/// parseRecipe parses: "recipe" IDENT "{" RecipeBody "}"
func (p *Parser) parseRecipe() ast.Statement {
	token := p.current()
	p.advance()

	name, ok := p.consumeIdent("expected recipe name after 'recipe'")
	if !ok {
		p.synchronize()
		return nil
	}
	p.logger.Debug("parseRecipe", "name", name)

	body, ok := p.parseBlock(recipeBody)
	if !ok {
		return nil
	}
	return &ast.RecipeDecl{Name: name, Body: body, Pos: position(token)}
}

// parseVar parses: "var" IDENT ( "=" | ":=" ) STRING
func (p *Parser) parseVar() ast.Statement {
	token := p.current()
	p.advance()

	name, ok := p.consumeIdent("expected variable name after 'var'")
	if !ok {
		p.synchronize()
		return nil
	}

	isDefault := false
	switch p.current().Type {
	case lexer.ASSIGN:
		p.advance()
	case lexer.DECLARE:
		isDefault = true
		p.advance()
	default:
		p.errorAt(p.current(), "expected '=' or ':=' after variable name, got %s", p.describe(p.current()))
		p.synchronize()
		return nil
	}

	value, ok := p.consumeString("expected string value in variable assignment")
	if !ok {
		p.synchronize()
		return nil
	}
	return &ast.VarDecl{Name: name, Value: value, Default: isDefault, Pos: position(token)}
}

// parseIf parses a conditional chain:
// If = "if" Expr Block { "elif" Expr Block }* [ "else" Block ]
func (p *Parser) parseIf(context blockContext) ast.Statement {
	token := p.current()
	p.advance()

	block := &ast.IfBlock{Pos: position(token)}

	guard, ok := p.parseExpr()
	if !ok {
		p.synchronize()
		return nil
	}
	body, ok := p.parseBlock(context)
	if !ok {
		return nil
	}
	block.Branches = append(block.Branches, ast.Branch{Guard: guard, Body: body})

	for p.match(lexer.ELIF) {
		p.advance()
		guard, ok = p.parseExpr()
		if !ok {
			p.synchronize()
			return nil
		}
		body, ok = p.parseBlock(context)
		if !ok {
			return nil
		}
		block.Branches = append(block.Branches, ast.Branch{Guard: guard, Body: body})
	}

	if p.match(lexer.ELSE) {
		p.advance()
		body, ok = p.parseBlock(context)
		if !ok {
			return nil
		}
		block.Branches = append(block.Branches, ast.Branch{Guard: nil, Body: body})
	}

	return block
}

// parseBlock parses "{" Statement* "}" in the given context.
func (p *Parser) parseBlock(context blockContext) ([]ast.Statement, bool) {
	if !p.consume(lexer.LBRACE, "expected '{'") {
		p.synchronize()
		return nil, false
	}

	var statements []ast.Statement
	for !p.match(lexer.RBRACE) {
		if p.isAtEnd() {
			p.errorAt(p.current(), "expected '}' to close block, got end of file")
			return nil, false
		}
		if stmt := p.parseStatement(context); stmt != nil {
			statements = append(statements, stmt)
		}
	}
	p.advance() // consume '}'
	return statements, true
}

// --- Guard expression parsing ---
//
// Precedence NOT > AND > OR comes from mutually recursive rules rather than
// precedence climbing: each binary rule's right operand is a full expression,
// producing right-associative, shallow trees. "a | b + c" therefore parses
// as a | (b + c) and "~a + b" as (~a) + b.

// parseExpr parses a full guard expression (an or-choice).
func (p *Parser) parseExpr() (ast.Expr, bool) {
	lhs, ok := p.parseAndChoice()
	if !ok {
		return nil, false
	}
	if p.match(lexer.PIPE) {
		token := p.current()
		p.advance()
		rhs, ok := p.parseExpr()
		if !ok {
			return nil, false
		}
		return &ast.Or{Left: lhs, Right: rhs, Pos: position(token)}, true
	}
	return lhs, true
}

func (p *Parser) parseAndChoice() (ast.Expr, bool) {
	lhs, ok := p.parseNotChoice()
	if !ok {
		return nil, false
	}
	if p.match(lexer.PLUS) {
		token := p.current()
		p.advance()
		rhs, ok := p.parseExpr()
		if !ok {
			return nil, false
		}
		return &ast.And{Left: lhs, Right: rhs, Pos: position(token)}, true
	}
	return lhs, true
}

func (p *Parser) parseNotChoice() (ast.Expr, bool) {
	if p.match(lexer.TILDE) {
		token := p.current()
		p.advance()
		inner, ok := p.parseAtom()
		if !ok {
			return nil, false
		}
		return &ast.Not{Inner: inner, Pos: position(token)}, true
	}
	return p.parseAtom()
}

func (p *Parser) parseAtom() (ast.Expr, bool) {
	token := p.current()
	switch token.Type {
	case lexer.LPAREN:
		p.advance()
		inner, ok := p.parseExpr()
		if !ok {
			return nil, false
		}
		if !p.consume(lexer.RPAREN, "expected ')' to close group") {
			return nil, false
		}
		return &ast.Group{Inner: inner, Pos: position(token)}, true
	case lexer.IDENT:
		p.advance()
		return &ast.Name{Value: token.Value, Pos: position(token)}, true
	case lexer.ASTERISK:
		p.advance()
		return &ast.Wildcard{Pos: position(token)}, true
	default:
		p.errorAt(token, "expected name, '*' or '(' in guard expression, got %s", p.describe(token))
		return nil, false
	}
}

// --- Token helpers ---

func (p *Parser) current() lexer.Token {
	if p.pos >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1] // EOF
	}
	return p.tokens[p.pos]
}

func (p *Parser) advance() {
	if p.pos < len(p.tokens)-1 {
		p.pos++
	}
}

func (p *Parser) match(tokenType lexer.TokenType) bool {
	return p.current().Type == tokenType
}

func (p *Parser) isAtEnd() bool {
	return p.current().Type == lexer.EOF
}

// consume advances past a token of the expected type, reporting an error
// when the current token does not match.
func (p *Parser) consume(tokenType lexer.TokenType, message string) bool {
	if p.match(tokenType) {
		p.advance()
		return true
	}
	p.errorAt(p.current(), "%s, got %s", message, p.describe(p.current()))
	return false
}

func (p *Parser) consumeString(message string) (string, bool) {
	token := p.current()
	if token.Type == lexer.STRING {
		p.advance()
		return token.Value, true
	}
	if token.Type == lexer.ILLEGAL {
		p.errorAt(token, "%s", token.Msg)
		p.advance()
		return "", false
	}
	p.errorAt(token, "%s, got %s", message, p.describe(token))
	return "", false
}

func (p *Parser) consumeIdent(message string) (string, bool) {
	token := p.current()
	if token.Type == lexer.IDENT {
		p.advance()
		return token.Value, true
	}
	p.errorAt(token, "%s, got %s", message, p.describe(token))
	return "", false
}

// synchronize skips past the offending token, then to the next plausible
// statement start, so a single syntax error does not cascade.
func (p *Parser) synchronize() {
	if !p.isAtEnd() {
		p.advance()
	}
	for !p.isAtEnd() {
		switch p.current().Type {
		case lexer.VERSION, lexer.IMPORT, lexer.RECIPE, lexer.VAR, lexer.IF,
			lexer.HELP, lexer.DIR, lexer.REQUIRE, lexer.RUN, lexer.DOLLAR, lexer.RBRACE:
			return
		}
		p.advance()
	}
}

func (p *Parser) describe(token lexer.Token) string {
	switch token.Type {
	case lexer.EOF:
		return "end of file"
	case lexer.STRING:
		return "string"
	case lexer.IDENT:
		return "'" + token.Value + "'"
	default:
		if token.Value != "" {
			return "'" + token.Value + "'"
		}
		return token.Type.String()
	}
}

func (p *Parser) errorAt(token lexer.Token, format string, args ...interface{}) {
	var context string
	if token.Line > 0 && token.Line <= len(p.lines) {
		context = p.lines[token.Line-1]
	}
	p.errors = append(p.errors, &ParseError{
		Path:    p.path,
		Line:    token.Line,
		Column:  token.Column,
		Message: fmt.Sprintf(format, args...),
		Context: context,
	})
}

func position(token lexer.Token) ast.Position {
	return ast.Position{Line: token.Line, Column: token.Column, Offset: token.Offset}
}
