package ast

import (
	"fmt"
	"strings"
)

// Node represents any node in the moldfile AST.
type Node interface {
	String() string
	Position() Position
}

// Position represents source location information.
type Position struct {
	Line   int
	Column int
	Offset int // Byte offset in source
}

// Document is the root parse result of one moldfile. It is immutable after
// parsing; the resolver and engine only ever read it.
type Document struct {
	Version    string // optional "version" declaration, empty if absent
	Statements []Statement
	Path       string // source path the document was parsed from
	Pos        Position
}

func (d *Document) String() string {
	var b strings.Builder
	if d.Version != "" {
		fmt.Fprintf(&b, "version %s\n", Quote(d.Version))
	}
	for _, s := range d.Statements {
		writeStatement(&b, s, 0)
	}
	return b.String()
}

func (d *Document) Position() Position { return d.Pos }

// Statement is the closed set of moldfile statements. The vocabulary is
// fixed, so consumers switch exhaustively over the concrete types.
type Statement interface {
	Node
	stmtNode()
}

// ImportDecl brings another moldfile's recipes into the namespace.
// Path is resolved relative to the importing file's directory.
type ImportDecl struct {
	Path  string
	Alias string // empty means the filename stem
	Pos   Position
}

func (s *ImportDecl) String() string {
	if s.Alias != "" {
		return fmt.Sprintf("import %s as %s", Quote(s.Path), s.Alias)
	}
	return fmt.Sprintf("import %s", Quote(s.Path))
}

// RecipeDecl is a named, invocable unit of work.
type RecipeDecl struct {
	Name string
	Body []Statement
	Pos  Position
}

func (s *RecipeDecl) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "recipe %s {\n", s.Name)
	for _, st := range s.Body {
		writeStatement(&b, st, 1)
	}
	b.WriteString("}")
	return b.String()
}

// Help returns the recipe's help text, or "" when none is declared.
func (s *RecipeDecl) Help() string {
	for _, st := range s.Body {
		if h, ok := st.(*HelpDecl); ok {
			return h.Text
		}
	}
	return ""
}

// VarDecl binds a variable. Default declarations ("name := value") only bind
// when no binding is already visible; overrides ("name = value") always bind.
type VarDecl struct {
	Name    string
	Value   string
	Default bool
	Pos     Position
}

func (s *VarDecl) String() string {
	op := "="
	if s.Default {
		op = ":="
	}
	return fmt.Sprintf("var %s %s %s", s.Name, op, Quote(s.Value))
}

// Branch is one arm of a conditional block. A nil Guard denotes the trailing
// "else" arm.
type Branch struct {
	Guard Expr
	Body  []Statement
}

// IfBlock selects the body of the first branch whose guard is true.
type IfBlock struct {
	Branches []Branch
	Pos      Position
}

func (s *IfBlock) String() string {
	var b strings.Builder
	writeIf(&b, s, 0)
	return b.String()
}

// DirDecl sets the working-directory context for subsequent run statements.
type DirDecl struct {
	Path string
	Pos  Position
}

func (s *DirDecl) String() string { return fmt.Sprintf("dir %s", Quote(s.Path)) }

// HelpDecl is metadata for the listing surface; never executed.
type HelpDecl struct {
	Text string
	Pos  Position
}

func (s *HelpDecl) String() string { return fmt.Sprintf("help %s", Quote(s.Text)) }

// RequireDecl names a capability that must be available before any command
// in the recipe runs.
type RequireDecl struct {
	Name string
	Pos  Position
}

func (s *RequireDecl) String() string { return fmt.Sprintf("require %s", s.Name) }

// RunDecl executes a command string as a subprocess.
type RunDecl struct {
	Command string
	Pos     Position
}

func (s *RunDecl) String() string { return fmt.Sprintf("run %s", Quote(s.Command)) }

func (s *ImportDecl) Position() Position  { return s.Pos }
func (s *RecipeDecl) Position() Position  { return s.Pos }
func (s *VarDecl) Position() Position     { return s.Pos }
func (s *IfBlock) Position() Position     { return s.Pos }
func (s *DirDecl) Position() Position     { return s.Pos }
func (s *HelpDecl) Position() Position    { return s.Pos }
func (s *RequireDecl) Position() Position { return s.Pos }
func (s *RunDecl) Position() Position     { return s.Pos }

func (*ImportDecl) stmtNode()  {}
func (*RecipeDecl) stmtNode()  {}
func (*VarDecl) stmtNode()     {}
func (*IfBlock) stmtNode()     {}
func (*DirDecl) stmtNode()     {}
func (*HelpDecl) stmtNode()    {}
func (*RequireDecl) stmtNode() {}
func (*RunDecl) stmtNode()     {}

// Expr is the closed set of guard expressions. Built once at parse time and
// evaluated repeatedly, possibly against different scopes.
type Expr interface {
	Node
	exprNode()
}

// Name is true when the named variable resolves to a non-empty value.
type Name struct {
	Value string
	Pos   Position
}

func (e *Name) String() string { return e.Value }

// Wildcard always evaluates to true.
type Wildcard struct {
	Pos Position
}

func (e *Wildcard) String() string { return "*" }

// And is true when both sides are true. The right operand is a full
// expression, so "a + b | c" parses as a + (b | c); this mirrors the
// grammar's right-recursive and-choice rule.
type And struct {
	Left, Right Expr
	Pos         Position
}

func (e *And) String() string { return e.Left.String() + " + " + e.Right.String() }

// Or is true when either side is true; right-recursive like And.
type Or struct {
	Left, Right Expr
	Pos         Position
}

func (e *Or) String() string { return e.Left.String() + " | " + e.Right.String() }

// Not negates its inner expression, which is always an atom.
type Not struct {
	Inner Expr
	Pos   Position
}

func (e *Not) String() string { return "~" + e.Inner.String() }

// Group is a parenthesized expression; evaluation passes through unchanged.
type Group struct {
	Inner Expr
	Pos   Position
}

func (e *Group) String() string { return "(" + e.Inner.String() + ")" }

func (e *Name) Position() Position     { return e.Pos }
func (e *Wildcard) Position() Position { return e.Pos }
func (e *And) Position() Position      { return e.Pos }
func (e *Or) Position() Position       { return e.Pos }
func (e *Not) Position() Position      { return e.Pos }
func (e *Group) Position() Position    { return e.Pos }

func (*Name) exprNode()     {}
func (*Wildcard) exprNode() {}
func (*And) exprNode()      {}
func (*Or) exprNode()       {}
func (*Not) exprNode()      {}
func (*Group) exprNode()    {}

// Quote renders a string as a double-quoted moldfile literal, escaping the
// characters the grammar recognizes. The output re-parses to the same value.
func Quote(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		case '\b':
			b.WriteString(`\b`)
		case '\f':
			b.WriteString(`\f`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

func writeStatement(b *strings.Builder, s Statement, depth int) {
	indent := strings.Repeat("  ", depth)
	switch st := s.(type) {
	case *RecipeDecl:
		b.WriteString(indent)
		fmt.Fprintf(b, "recipe %s {\n", st.Name)
		for _, inner := range st.Body {
			writeStatement(b, inner, depth+1)
		}
		b.WriteString(indent)
		b.WriteString("}\n")
	case *IfBlock:
		writeIf(b, st, depth)
		b.WriteString("\n")
	default:
		b.WriteString(indent)
		b.WriteString(s.String())
		b.WriteString("\n")
	}
}

func writeIf(b *strings.Builder, s *IfBlock, depth int) {
	indent := strings.Repeat("  ", depth)
	for i, br := range s.Branches {
		switch {
		case i == 0:
			fmt.Fprintf(b, "%sif %s {\n", indent, br.Guard.String())
		case br.Guard != nil:
			fmt.Fprintf(b, "%selif %s {\n", indent, br.Guard.String())
		default:
			fmt.Fprintf(b, "%selse {\n", indent)
		}
		for _, inner := range br.Body {
			writeStatement(b, inner, depth+1)
		}
		b.WriteString(indent)
		b.WriteString("}")
		if i < len(s.Branches)-1 {
			b.WriteString(" ")
		}
	}
}
