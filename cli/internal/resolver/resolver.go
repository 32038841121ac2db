// Package resolver loads a moldfile and its imports into a single namespace
// of runnable recipes with a shared variable scope.
package resolver

import (
	"path/filepath"
	"strings"

	"golang.org/x/mod/semver"

	"github.com/moldlang/mold/cli/internal/eval"
	"github.com/moldlang/mold/cli/internal/parser"
	"github.com/moldlang/mold/cli/internal/scope"
	"github.com/moldlang/mold/core/ast"
	"github.com/moldlang/mold/core/molderr"
)

// Entry is one runnable recipe in the namespace.
type Entry struct {
	Recipe *ast.RecipeDecl
	Name   string // qualified name, e.g. "test" or "ci:lint"
	Dir    string // base directory for relative dir statements
	Source string // file the recipe was defined in
}

// Namespace is the resolved view of a moldfile: every reachable recipe keyed
// by qualified name, plus the document-level variable scope.
type Namespace struct {
	Recipes map[string]*Entry
	Order   []string // qualified names in definition order
	Scope   *scope.Scope
	File    string // absolute path of the root moldfile
	Root    string // directory containing the root moldfile
	Version string // version declared by the root document, if any
}

// Lookup returns the entry for a qualified recipe name.
func (ns *Namespace) Lookup(name string) (*Entry, bool) {
	entry, ok := ns.Recipes[name]
	return entry, ok
}

// Resolver turns moldfile paths into namespaces. ToolVersion gates version
// declarations: a document declaring a newer version than the running tool
// fails to resolve.
type Resolver struct {
	ToolVersion string
}

// Resolve parses the moldfile at path, follows its imports in source order,
// and builds the namespace. Root variables and imported variables land in one
// shared document frame on top of base (typically the environment-backed
// root scope).
func (r *Resolver) Resolve(path string, base *scope.Scope) (*Namespace, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, molderr.Wrap(molderr.ErrMissingImport, err, "cannot resolve path %q", path)
	}

	ns := &Namespace{
		Recipes: make(map[string]*Entry),
		Scope:   base.Child(),
		File:    abs,
		Root:    filepath.Dir(abs),
	}
	ns.Scope.Set("MOLD_FILE", abs, false)
	ns.Scope.Set("MOLD_ROOT", ns.Root, false)

	doc, err := parser.ParseFile(abs)
	if err != nil {
		return nil, err
	}
	ns.Version = doc.Version

	if err := r.checkVersion(doc); err != nil {
		return nil, err
	}
	if err := r.walk(ns, doc, "", []string{abs}); err != nil {
		return nil, err
	}
	return ns, nil
}

// checkVersion enforces the declared document version against the tool.
func (r *Resolver) checkVersion(doc *ast.Document) error {
	if doc.Version == "" || r.ToolVersion == "" {
		return nil
	}
	declared := "v" + strings.TrimPrefix(doc.Version, "v")
	tool := "v" + strings.TrimPrefix(r.ToolVersion, "v")
	if !semver.IsValid(declared) {
		return molderr.New(molderr.ErrIncompatibleVersion,
			"%s: invalid version %q", doc.Path, doc.Version)
	}
	if semver.Compare(declared, tool) > 0 {
		return molderr.New(molderr.ErrIncompatibleVersion,
			"%s requires version %s, but this is mold %s", doc.Path, doc.Version, r.ToolVersion)
	}
	return nil
}

// walk registers one document's recipes under prefix and recurses into its
// imports. chain holds the absolute import path from the root down to this
// document, for cycle reporting.
func (r *Resolver) walk(ns *Namespace, doc *ast.Document, prefix string, chain []string) error {
	dir := filepath.Dir(doc.Path)
	base := dir

	var process func(stmts []ast.Statement) error
	process = func(stmts []ast.Statement) error {
		for _, stmt := range stmts {
			switch s := stmt.(type) {
			case *ast.VarDecl:
				ns.Scope.Set(s.Name, s.Value, s.Default)

			case *ast.IfBlock:
				for _, branch := range s.Branches {
					if branch.Guard == nil || eval.Eval(branch.Guard, ns.Scope) {
						if err := process(branch.Body); err != nil {
							return err
						}
						break
					}
				}

			case *ast.DirDecl:
				base = resolveDir(dir, s.Path)

			case *ast.RecipeDecl:
				name := qualify(prefix, s.Name)
				if existing, ok := ns.Recipes[name]; ok {
					return molderr.New(molderr.ErrRecipeCollision,
						"recipe %q defined in both %s and %s", name, existing.Source, doc.Path)
				}
				ns.Recipes[name] = &Entry{Recipe: s, Name: name, Dir: base, Source: doc.Path}
				ns.Order = append(ns.Order, name)

			case *ast.ImportDecl:
				if err := r.resolveImport(ns, s, dir, prefix, chain); err != nil {
					return err
				}
			}
		}
		return nil
	}
	return process(doc.Statements)
}

func (r *Resolver) resolveImport(ns *Namespace, imp *ast.ImportDecl, dir, prefix string, chain []string) error {
	target := imp.Path
	if !filepath.IsAbs(target) {
		target = filepath.Join(dir, target)
	}
	abs, err := filepath.Abs(target)
	if err != nil {
		return molderr.Wrap(molderr.ErrMissingImport, err, "cannot resolve import %q", imp.Path)
	}

	for _, seen := range chain {
		if seen == abs {
			return molderr.NewImportCycle(append(chain[:len(chain):len(chain)], abs))
		}
	}

	doc, err := parser.ParseFile(abs)
	if err != nil {
		if _, isParse := err.(parser.ErrorList); isParse {
			return err
		}
		return molderr.Wrap(molderr.ErrMissingImport, err, "cannot import %q", imp.Path)
	}
	if err := r.checkVersion(doc); err != nil {
		return err
	}

	alias := imp.Alias
	if alias == "" {
		alias = stem(abs)
	}
	return r.walk(ns, doc, qualify(prefix, alias), append(chain, abs))
}

// qualify joins a namespace prefix and a name with the ':' separator.
func qualify(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + ":" + name
}

// stem derives the default import alias from a file path: the base name with
// any extension removed, so "ci/deploy.mold" imports as "deploy".
func stem(path string) string {
	name := filepath.Base(path)
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// resolveDir interprets a dir statement path relative to the document's own
// directory; absolute paths pass through.
func resolveDir(docDir, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(docDir, path)
}
