package engine

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/moldlang/mold/cli/internal/resolver"
	"github.com/moldlang/mold/cli/internal/scope"
	"github.com/moldlang/mold/core/molderr"
)

// testEngine resolves a moldfile written into a temp dir and wires the engine
// to buffers. The returned stdout buffer captures command output.
func testEngine(t *testing.T, moldfile string, env map[string]string) (*Engine, *bytes.Buffer) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "moldfile")
	if err := os.WriteFile(path, []byte(moldfile), 0o644); err != nil {
		t.Fatal(err)
	}

	base := scope.NewRootFrom(func(name string) (string, bool) {
		value, ok := env[name]
		return value, ok
	})
	r := &resolver.Resolver{ToolVersion: "1.0.0"}
	ns, err := r.Resolve(path, base)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}

	var stdout bytes.Buffer
	eng := New(ns, slog.New(slog.NewTextHandler(io.Discard, nil)))
	eng.Stdout = &stdout
	eng.Stderr = io.Discard
	eng.Stdin = strings.NewReader("")
	return eng, &stdout
}

func TestExecuteRunsCommandsInOrder(t *testing.T) {
	eng, stdout := testEngine(t, `
recipe greet {
  run "echo first"
  run "echo second"
}
`, nil)

	if err := eng.Execute(context.Background(), "greet", nil); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if got, want := stdout.String(), "first\nsecond\n"; got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}

func TestExecuteStopsOnFirstFailure(t *testing.T) {
	eng, stdout := testEngine(t, `
recipe flaky {
  run "echo before"
  run "exit 3"
  run "echo after"
}
`, nil)

	err := eng.Execute(context.Background(), "flaky", nil)
	if !molderr.IsKind(err, molderr.ErrCommandFailed) {
		t.Fatalf("err = %v, want %s", err, molderr.ErrCommandFailed)
	}
	if status, _ := molderr.ExitStatus(err); status != 3 {
		t.Errorf("exit status = %d, want 3", status)
	}
	if index, _ := molderr.FailedIndex(err); index != 1 {
		t.Errorf("failed index = %d, want 1", index)
	}
	if strings.Contains(stdout.String(), "after") {
		t.Error("commands after the failure still ran")
	}
}

func TestUnknownRecipe(t *testing.T) {
	eng, _ := testEngine(t, `recipe build { run "true" }`, nil)

	err := eng.Execute(context.Background(), "buil", nil)
	if !molderr.IsKind(err, molderr.ErrUnknownRecipe) {
		t.Fatalf("err = %v, want %s", err, molderr.ErrUnknownRecipe)
	}
	if !strings.Contains(err.Error(), "build") {
		t.Errorf("error %q suggests nothing close to 'build'", err.Error())
	}
}

func TestRequirePreflightBlocksExecution(t *testing.T) {
	eng, stdout := testEngine(t, `
recipe deploy {
  run "echo started"
  require some-missing-tool
}
`, nil)
	eng.LookPath = func(string) (string, error) { return "", errors.New("not found") }

	err := eng.Execute(context.Background(), "deploy", nil)
	if !molderr.IsKind(err, molderr.ErrMissingRequirement) {
		t.Fatalf("err = %v, want %s", err, molderr.ErrMissingRequirement)
	}
	if stdout.Len() != 0 {
		t.Errorf("requirements must be checked before any command runs, got output %q", stdout.String())
	}
}

func TestRequireSatisfiedByPath(t *testing.T) {
	eng, _ := testEngine(t, `
recipe build {
  require cc
  run "true"
}
`, nil)
	eng.LookPath = func(name string) (string, error) {
		if name == "cc" {
			return "/usr/bin/cc", nil
		}
		return "", errors.New("not found")
	}

	if err := eng.Execute(context.Background(), "build", nil); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
}

func TestRequireSatisfiedByRecipe(t *testing.T) {
	eng, _ := testEngine(t, `
recipe setup { run "true" }

recipe build {
  require setup
  run "true"
}
`, nil)
	eng.LookPath = func(string) (string, error) { return "", errors.New("not found") }

	if err := eng.Execute(context.Background(), "build", nil); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
}

func TestRequireQualifiedNameNeedsRecipe(t *testing.T) {
	eng, _ := testEngine(t, `
recipe build {
  require tools:fmt
  run "true"
}
`, nil)
	// PATH lookup must not satisfy a namespaced requirement.
	eng.LookPath = func(string) (string, error) { return "/bin/anything", nil }

	err := eng.Execute(context.Background(), "build", nil)
	if !molderr.IsKind(err, molderr.ErrMissingRequirement) {
		t.Fatalf("err = %v, want %s", err, molderr.ErrMissingRequirement)
	}
}

func TestConditionalSelectsBranchFromEnvironment(t *testing.T) {
	moldfile := `
recipe deploy {
  if PROD {
    run "echo to-prod"
  } else {
    run "echo to-dev"
  }
}
`
	eng, stdout := testEngine(t, moldfile, map[string]string{"PROD": "1"})
	if err := eng.Execute(context.Background(), "deploy", nil); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if got := stdout.String(); got != "to-prod\n" {
		t.Errorf("output = %q, want to-prod", got)
	}

	eng, stdout = testEngine(t, moldfile, nil)
	if err := eng.Execute(context.Background(), "deploy", nil); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if got := stdout.String(); got != "to-dev\n" {
		t.Errorf("output = %q, want to-dev", got)
	}
}

func TestVariableInterpolation(t *testing.T) {
	eng, stdout := testEngine(t, `
var name = "world"

recipe greet {
  run "echo hello $name and ${name} again"
}
`, nil)

	if err := eng.Execute(context.Background(), "greet", nil); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if got, want := stdout.String(), "hello world and world again\n"; got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}

func TestRecipeLocalVariableShadowsDocument(t *testing.T) {
	eng, stdout := testEngine(t, `
var target = "doc"

recipe show {
  var target = "local"
  run "echo $target"
}
`, nil)

	if err := eng.Execute(context.Background(), "show", nil); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if got, want := stdout.String(), "local\n"; got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}

func TestArgsArePassedThrough(t *testing.T) {
	eng, stdout := testEngine(t, `
recipe show {
  run "echo args: $MOLD_ARGS"
}
`, nil)

	if err := eng.Execute(context.Background(), "show", []string{"one", "two words"}); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if got, want := stdout.String(), "args: one two words\n"; got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}

func TestScopeExportedToSubprocess(t *testing.T) {
	eng, stdout := testEngine(t, `
var greeting = "exported"

recipe show {
  run "printenv greeting"
}
`, nil)

	if err := eng.Execute(context.Background(), "show", nil); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if got, want := stdout.String(), "exported\n"; got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}

func TestDirStatementChangesWorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "sub", "marker.txt"), []byte("inside\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "moldfile")
	moldfile := `
recipe read {
  dir "sub"
  run "cat marker.txt"
}
`
	if err := os.WriteFile(path, []byte(moldfile), 0o644); err != nil {
		t.Fatal(err)
	}

	r := &resolver.Resolver{ToolVersion: "1.0.0"}
	ns, err := r.Resolve(path, scope.NewRootFrom(nil))
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}

	var stdout bytes.Buffer
	eng := New(ns, slog.New(slog.NewTextHandler(io.Discard, nil)))
	eng.Stdout = &stdout
	eng.Stderr = io.Discard

	if err := eng.Execute(context.Background(), "read", nil); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if got, want := stdout.String(), "inside\n"; got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}

func TestCancellationAbortsCommand(t *testing.T) {
	eng, _ := testEngine(t, `
recipe slow {
  run "sleep 10"
}
`, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := eng.Execute(ctx, "slow", nil)
	if !molderr.IsKind(err, molderr.ErrCanceled) {
		t.Fatalf("err = %v, want %s", err, molderr.ErrCanceled)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("cancellation took %v, command was not aborted", elapsed)
	}
}

func TestInterpolate(t *testing.T) {
	sc := scope.NewRootFrom(func(name string) (string, bool) {
		if name == "HOME" {
			return "/home/u", true
		}
		return "", false
	}).Child()
	sc.Set("target", "dev", false)
	sc.Set("empty", "", false)

	tests := []struct {
		in   string
		want string
	}{
		{"plain text", "plain text"},
		{"deploy $target now", "deploy dev now"},
		{"deploy ${target} now", "deploy dev now"},
		{"$target$target", "devdev"},
		{"bound empty: [$empty]", "bound empty: []"},
		{"env stays: $HOME", "env stays: $HOME"},          // shell's job
		{"unknown stays: ${nope}", "unknown stays: ${nope}"},
		{"subshell stays: $(pwd)", "subshell stays: $(pwd)"},
		{"trailing $", "trailing $"},
		{"lone ${", "lone ${"},
	}
	for _, tt := range tests {
		if got := Interpolate(tt.in, sc); got != tt.want {
			t.Errorf("Interpolate(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
