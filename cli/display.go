package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/moldlang/mold/cli/internal/engine"
	"github.com/moldlang/mold/cli/internal/eval"
	"github.com/moldlang/mold/cli/internal/resolver"
	"github.com/moldlang/mold/core/ast"
	"github.com/moldlang/mold/core/molderr"
)

// renderCatalog prints the recipe catalog: every qualified name in sorted
// order with its help text, the default output when mold runs bare.
func renderCatalog(w io.Writer, ns *resolver.Namespace) {
	names := append([]string(nil), ns.Order...)
	sort.Strings(names)

	width := 0
	for _, name := range names {
		if len(name) > width {
			width = len(name)
		}
	}

	fmt.Fprintf(w, "Recipes in %s:\n", ns.File)
	for _, name := range names {
		entry := ns.Recipes[name]
		help := entry.Recipe.Help()
		if help == "" {
			fmt.Fprintf(w, "  %s\n", name)
			continue
		}
		fmt.Fprintf(w, "  %-*s  %s\n", width, name, help)
	}
}

// recipeInfo is the machine-readable catalog entry for yaml output.
type recipeInfo struct {
	Name   string `yaml:"name"`
	Help   string `yaml:"help,omitempty"`
	Source string `yaml:"source"`
}

func renderCatalogYAML(w io.Writer, ns *resolver.Namespace) error {
	names := append([]string(nil), ns.Order...)
	sort.Strings(names)

	infos := make([]recipeInfo, 0, len(names))
	for _, name := range names {
		entry := ns.Recipes[name]
		infos = append(infos, recipeInfo{
			Name:   name,
			Help:   entry.Recipe.Help(),
			Source: entry.Source,
		})
	}

	data, err := yaml.Marshal(map[string][]recipeInfo{"recipes": infos})
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// renderExplain shows what running a recipe would do: the selected commands
// after guard evaluation and interpolation, plus requirements and working
// directory, without executing anything.
func renderExplain(w io.Writer, ns *resolver.Namespace, name string) error {
	entry, ok := ns.Lookup(name)
	if !ok {
		return molderr.New(molderr.ErrUnknownRecipe, "unknown recipe '%s'", name)
	}

	sc := ns.Scope.Child()
	sc.Set("MOLD_ARGS", "", false)
	flat := eval.Flatten(entry.Recipe.Body, sc)

	fmt.Fprintf(w, "recipe %s (%s)\n", entry.Name, entry.Source)
	if help := entry.Recipe.Help(); help != "" {
		fmt.Fprintf(w, "  help: %s\n", help)
	}

	dir := entry.Dir
	var requires, vars, commands []string
	for _, stmt := range flat {
		switch s := stmt.(type) {
		case *ast.RequireDecl:
			requires = append(requires, s.Name)
		case *ast.VarDecl:
			vars = append(vars, s.Name+"="+s.Value)
		case *ast.DirDecl:
			dir = s.Path
		case *ast.RunDecl:
			commands = append(commands, engine.Interpolate(s.Command, sc))
		}
	}

	if len(requires) > 0 {
		fmt.Fprintf(w, "  requires: %s\n", strings.Join(requires, ", "))
	}
	if len(vars) > 0 {
		fmt.Fprintf(w, "  vars: %s\n", strings.Join(vars, " "))
	}
	fmt.Fprintf(w, "  dir: %s\n", dir)
	for _, command := range commands {
		fmt.Fprintf(w, "  $ %s\n", command)
	}
	return nil
}
