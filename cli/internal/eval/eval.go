// Package eval evaluates guard expressions against a scope and flattens
// conditional blocks into plain statement lists.
package eval

import (
	"github.com/moldlang/mold/cli/internal/scope"
	"github.com/moldlang/mold/core/ast"
)

// Truthy reports whether a variable value counts as set. Only the empty
// string is falsy; "0" and "false" are truthy like any other text.
func Truthy(value string, ok bool) bool {
	return ok && value != ""
}

// Eval evaluates a guard expression. A bare name tests whether the variable
// resolves to a non-empty value anywhere in the scope chain, environment
// included; the wildcard is always true.
func Eval(expr ast.Expr, sc *scope.Scope) bool {
	switch e := expr.(type) {
	case *ast.Name:
		return Truthy(sc.Get(e.Value))
	case *ast.Wildcard:
		return true
	case *ast.And:
		return Eval(e.Left, sc) && Eval(e.Right, sc)
	case *ast.Or:
		return Eval(e.Left, sc) || Eval(e.Right, sc)
	case *ast.Not:
		return !Eval(e.Inner, sc)
	case *ast.Group:
		return Eval(e.Inner, sc)
	default:
		return false
	}
}

// Flatten expands conditional blocks in stmts into a flat statement list.
// For each if-block the first branch whose guard holds is selected (a nil
// guard is the else branch and always holds) and its body is flattened in
// place; the other branches vanish.
//
// Variable declarations are applied to sc as they are encountered, so an
// assignment ahead of an if-block influences that block's guards. The
// declarations stay in the output for callers that render or re-apply them.
func Flatten(stmts []ast.Statement, sc *scope.Scope) []ast.Statement {
	var out []ast.Statement
	for _, stmt := range stmts {
		switch s := stmt.(type) {
		case *ast.VarDecl:
			sc.Set(s.Name, s.Value, s.Default)
			out = append(out, s)
		case *ast.IfBlock:
			for _, branch := range s.Branches {
				if branch.Guard == nil || Eval(branch.Guard, sc) {
					out = append(out, Flatten(branch.Body, sc)...)
					break
				}
			}
		default:
			out = append(out, stmt)
		}
	}
	return out
}
