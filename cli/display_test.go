package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-yaml"

	"github.com/moldlang/mold/cli/internal/resolver"
	"github.com/moldlang/mold/cli/internal/scope"
)

func resolveFixture(t *testing.T, moldfile string) *resolver.Namespace {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "moldfile")
	if err := os.WriteFile(path, []byte(moldfile), 0o644); err != nil {
		t.Fatal(err)
	}
	r := &resolver.Resolver{ToolVersion: Version}
	ns, err := r.Resolve(path, scope.NewRootFrom(nil))
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	return ns
}

const catalogFixture = `
recipe build {
  help "Compile everything"
  run "make"
}

recipe test {
  run "make test"
}
`

func TestRenderCatalog(t *testing.T) {
	ns := resolveFixture(t, catalogFixture)

	var buf bytes.Buffer
	renderCatalog(&buf, ns)
	out := buf.String()

	if !strings.Contains(out, "build") || !strings.Contains(out, "Compile everything") {
		t.Errorf("catalog missing build entry:\n%s", out)
	}
	if !strings.Contains(out, "test") {
		t.Errorf("catalog missing test entry:\n%s", out)
	}
	if strings.Index(out, "build") > strings.Index(out, "test") {
		t.Errorf("catalog not sorted:\n%s", out)
	}
}

func TestRenderCatalogYAML(t *testing.T) {
	ns := resolveFixture(t, catalogFixture)

	var buf bytes.Buffer
	if err := renderCatalogYAML(&buf, ns); err != nil {
		t.Fatalf("renderCatalogYAML() error: %v", err)
	}

	var doc struct {
		Recipes []struct {
			Name string `yaml:"name"`
			Help string `yaml:"help"`
		} `yaml:"recipes"`
	}
	if err := yaml.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("output is not valid yaml: %v\n%s", err, buf.String())
	}
	if len(doc.Recipes) != 2 {
		t.Fatalf("got %d recipes, want 2", len(doc.Recipes))
	}
	if doc.Recipes[0].Name != "build" || doc.Recipes[0].Help != "Compile everything" {
		t.Errorf("first entry = %+v", doc.Recipes[0])
	}
}

func TestRenderExplain(t *testing.T) {
	ns := resolveFixture(t, `
var target = "dev"

recipe deploy {
  help "Ship it"
  require docker
  if never-set {
    run "echo skipped"
  } else {
    run "deploy --to $target"
  }
}
`)

	var buf bytes.Buffer
	if err := renderExplain(&buf, ns, "deploy"); err != nil {
		t.Fatalf("renderExplain() error: %v", err)
	}
	out := buf.String()

	if !strings.Contains(out, "Ship it") {
		t.Errorf("explain missing help:\n%s", out)
	}
	if !strings.Contains(out, "docker") {
		t.Errorf("explain missing requirement:\n%s", out)
	}
	if !strings.Contains(out, "deploy --to dev") {
		t.Errorf("explain did not interpolate the selected command:\n%s", out)
	}
	if strings.Contains(out, "skipped") {
		t.Errorf("explain shows an unselected branch:\n%s", out)
	}
}

func TestRenderExplainUnknownRecipe(t *testing.T) {
	ns := resolveFixture(t, catalogFixture)
	if err := renderExplain(&bytes.Buffer{}, ns, "nope"); err == nil {
		t.Error("renderExplain() succeeded for an unknown recipe")
	}
}
