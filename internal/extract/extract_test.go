package extract

import (
	"context"
	"testing"

	"github.com/coregx/coregex"

	"github.com/phobologic/unfoldgo/internal/classify"
	"github.com/phobologic/unfoldgo/internal/corefail"
	"github.com/phobologic/unfoldgo/internal/model"
	"github.com/phobologic/unfoldgo/internal/syntax"
)

func parse(t *testing.T, source []byte) *syntax.Tree {
	t.Helper()
	tree, err := syntax.Parse(context.Background(), source)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return tree
}

func defaultConfig(t *testing.T) Config {
	t.Helper()
	pattern, err := coregex.Compile(`^f\d+$`)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	return Config{InterceptPattern: pattern, MinArgs: 0, MaxArgs: 4}
}

func classifyHelpers(t *testing.T, root *syntax.Node, source []byte) classify.Result {
	t.Helper()
	pattern, err := coregex.Compile(`^f\d+$`)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	return classify.Helpers(root, source, pattern)
}

func TestCallSitesCapturesLiteralArguments(t *testing.T) {
	t.Parallel()

	source := []byte(`function f1(a,b,c,d,e){} f1("a", 2, -3.5, true, null);`)
	tree := parse(t, source)
	defer tree.Close()

	helpers := classifyHelpers(t, tree.Root(), source)
	res := CallSites(context.Background(), tree.Root(), source, defaultConfig(t), helpers)

	if len(res.Diagnostics) != 0 {
		t.Fatalf("unexpected diagnostics: %v", res.Diagnostics)
	}
	if len(res.Pure) != 1 {
		t.Fatalf("got %d pure call sites, want 1: %+v", len(res.Pure), res.Pure)
	}
	cs := res.Pure[0]
	if cs.Name != "f1" {
		t.Errorf("name = %q, want f1", cs.Name)
	}
	if len(cs.Args) != 5 {
		t.Fatalf("got %d args, want 5", len(cs.Args))
	}
	if cs.Args[0].Kind != model.KindString || cs.Args[0].Str != "a" {
		t.Errorf("arg0 = %+v, want string a", cs.Args[0])
	}
	if cs.Args[2].Kind != model.KindFractional || cs.Args[2].Frac != -3.5 {
		t.Errorf("arg2 = %+v, want fractional -3.5", cs.Args[2])
	}
	if !cs.Pure() {
		t.Errorf("call site should be pure")
	}
}

func TestCallSitesRejectsNonLiteralArgument(t *testing.T) {
	t.Parallel()

	source := []byte(`function f1(a){} var x = 1; f1(x);`)
	tree := parse(t, source)
	defer tree.Close()

	helpers := classifyHelpers(t, tree.Root(), source)
	res := CallSites(context.Background(), tree.Root(), source, defaultConfig(t), helpers)

	if len(res.Pure) != 0 {
		t.Errorf("got %d pure call sites, want 0: %+v", len(res.Pure), res.Pure)
	}
}

func TestCallSitesExcludesInitializerContext(t *testing.T) {
	t.Parallel()

	source := []byte(`function f1(a){} (function(){ f1(1); })();`)
	tree := parse(t, source)
	defer tree.Close()

	helpers := classifyHelpers(t, tree.Root(), source)
	res := CallSites(context.Background(), tree.Root(), source, defaultConfig(t), helpers)

	if len(res.Pure) != 0 {
		t.Errorf("got %d pure call sites, want 0 (initializer context)", len(res.Pure))
	}
}

func TestCallSitesOutsideArgWindowSeedsWithoutRewriting(t *testing.T) {
	t.Parallel()

	source := []byte(`function f1(a,b,c,d,e){} f1(1, 2, 3, 4, 5);`)
	tree := parse(t, source)
	defer tree.Close()

	cfg := defaultConfig(t)
	cfg.MaxArgs = 4

	helpers := classifyHelpers(t, tree.Root(), source)
	res := CallSites(context.Background(), tree.Root(), source, cfg, helpers)

	if len(res.Pure) != 0 {
		t.Errorf("got %d pure call sites, want 0 (outside window)", len(res.Pure))
	}
	if len(res.SeedNames) != 1 || res.SeedNames[0] != "f1" {
		t.Errorf("SeedNames = %v, want [f1]", res.SeedNames)
	}
}

func TestCallSitesReportsClassifierInconsistencyForUndefinedHelper(t *testing.T) {
	t.Parallel()

	source := []byte(`f99(1, 2);`)
	tree := parse(t, source)
	defer tree.Close()

	helpers := classifyHelpers(t, tree.Root(), source)
	res := CallSites(context.Background(), tree.Root(), source, defaultConfig(t), helpers)

	if len(res.Pure) != 0 {
		t.Errorf("got %d pure call sites, want 0 (undefined helper)", len(res.Pure))
	}
	if len(res.Diagnostics) != 1 {
		t.Fatalf("got %d diagnostics, want 1: %v", len(res.Diagnostics), res.Diagnostics)
	}
	var ci corefail.ClassifierInconsistency
	if !asClassifierInconsistency(res.Diagnostics[0], &ci) {
		t.Fatalf("diagnostic = %v, want corefail.ClassifierInconsistency", res.Diagnostics[0])
	}
	if ci.Name != "f99" {
		t.Errorf("Name = %q, want f99", ci.Name)
	}
}

func asClassifierInconsistency(err error, out *corefail.ClassifierInconsistency) bool {
	ci, ok := err.(corefail.ClassifierInconsistency)
	if !ok {
		return false
	}
	*out = ci
	return true
}
