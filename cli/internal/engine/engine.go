// Package engine executes resolved recipes: it flattens a recipe body
// against the invocation scope, pre-flights its requirements, and runs each
// command sequentially through the shell.
package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	shellquote "github.com/kballard/go-shellquote"
	"github.com/sahilm/fuzzy"

	"github.com/moldlang/mold/cli/internal/eval"
	"github.com/moldlang/mold/cli/internal/resolver"
	"github.com/moldlang/mold/core/ast"
	"github.com/moldlang/mold/core/molderr"
)

// Engine runs recipes from a resolved namespace.
type Engine struct {
	Namespace *resolver.Namespace
	Stdout    io.Writer
	Stderr    io.Writer
	Stdin     io.Reader
	Logger    *slog.Logger

	// LookPath checks whether an executable is available. Defaults to
	// exec.LookPath; tests substitute their own.
	LookPath func(name string) (string, error)
}

// New creates an Engine wired to the process's standard streams.
func New(ns *resolver.Namespace, logger *slog.Logger) *Engine {
	return &Engine{
		Namespace: ns,
		Stdout:    os.Stdout,
		Stderr:    os.Stderr,
		Stdin:     os.Stdin,
		Logger:    logger,
		LookPath:  exec.LookPath,
	}
}

// Execute runs the named recipe with the given positional arguments. All
// requirements are checked before any command runs; execution stops at the
// first failing command. Cancellation of ctx aborts the in-flight command.
func (e *Engine) Execute(ctx context.Context, name string, args []string) error {
	entry, ok := e.Namespace.Lookup(name)
	if !ok {
		return e.unknownRecipe(name)
	}

	sc := e.Namespace.Scope.Child()
	sc.Set("MOLD_ARGS", shellquote.Join(args...), false)

	flat := eval.Flatten(entry.Recipe.Body, sc)

	for _, stmt := range flat {
		if req, ok := stmt.(*ast.RequireDecl); ok {
			if err := e.checkRequirement(req.Name); err != nil {
				return molderr.NewMissingRequirement(name, req.Name)
			}
		}
	}

	dir := entry.Dir
	for i, stmt := range flat {
		switch s := stmt.(type) {
		case *ast.DirDecl:
			if filepath.IsAbs(s.Path) {
				dir = s.Path
			} else {
				dir = filepath.Join(entry.Dir, s.Path)
			}
		case *ast.RunDecl:
			command := Interpolate(s.Command, sc)
			e.Logger.Debug("running command", "recipe", name, "index", i, "command", command, "dir", dir)
			if err := e.runCommand(ctx, dir, sc.Environ(), command); err != nil {
				if ctx.Err() != nil {
					return molderr.Wrap(molderr.ErrCanceled, ctx.Err(), "recipe '%s' canceled", name)
				}
				var exitErr *exec.ExitError
				if errors.As(err, &exitErr) {
					return molderr.NewCommandFailed(name, i, exitErr.ExitCode(), err)
				}
				return molderr.NewCommandFailed(name, i, -1, err)
			}
		}
	}
	return nil
}

// runCommand executes one shell command with the scope's bindings exported
// into the subprocess environment on top of the process environment.
func (e *Engine) runCommand(ctx context.Context, dir string, extraEnv []string, command string) error {
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), extraEnv...)
	cmd.Stdout = e.Stdout
	cmd.Stderr = e.Stderr
	cmd.Stdin = e.Stdin
	return cmd.Run()
}

// checkRequirement resolves a require statement. A name containing ':' must
// be a namespace recipe; a bare name is satisfied by either a recipe of that
// name or an executable on PATH.
func (e *Engine) checkRequirement(name string) error {
	if strings.Contains(name, ":") {
		if _, ok := e.Namespace.Lookup(name); ok {
			return nil
		}
		return errors.New("no such recipe")
	}
	if _, ok := e.Namespace.Lookup(name); ok {
		return nil
	}
	if _, err := e.LookPath(name); err == nil {
		return nil
	}
	return errors.New("not a recipe and not on PATH")
}

// unknownRecipe builds an UnknownRecipe error, suggesting close matches from
// the namespace when any exist.
func (e *Engine) unknownRecipe(name string) error {
	err := molderr.New(molderr.ErrUnknownRecipe, "unknown recipe '%s'", name).
		WithContext("recipe", name)

	matches := fuzzy.Find(name, e.Namespace.Order)
	if len(matches) > 0 {
		limit := len(matches)
		if limit > 3 {
			limit = 3
		}
		suggestions := make([]string, 0, limit)
		for _, m := range matches[:limit] {
			suggestions = append(suggestions, m.Str)
		}
		err.Message += " (did you mean: " + strings.Join(suggestions, ", ") + "?)"
		err.WithContext("suggestions", suggestions)
	}
	return err
}
