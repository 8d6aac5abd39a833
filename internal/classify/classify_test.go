package classify

import (
	"context"
	"testing"

	"github.com/coregx/coregex"

	"github.com/phobologic/unfoldgo/internal/syntax"
)

func TestHelpersFindsDeclarationsMatchingPattern(t *testing.T) {
	t.Parallel()

	source := []byte(`
function f123(a,b){return a+b;}
function helper(a){return a;}
var f9 = function(x){return x;};
`)

	tree, err := syntax.Parse(context.Background(), source)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	defer tree.Close()

	pattern, err := coregex.Compile(`^f\d+$`)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	res := Helpers(tree.Root(), source, pattern)

	if len(res.Helpers) != 2 {
		t.Fatalf("got %d helpers, want 2: %+v", len(res.Helpers), res.Helpers)
	}
	if _, ok := res.ByName["f123"]; !ok {
		t.Errorf("f123 not classified")
	}
	if _, ok := res.ByName["f9"]; !ok {
		t.Errorf("f9 not classified")
	}
	if _, ok := res.ByName["helper"]; ok {
		t.Errorf("helper should not match pattern")
	}
	if res.ByName["f9"].Kind != "binding" {
		t.Errorf("f9 kind = %q, want binding", res.ByName["f9"].Kind)
	}
	if res.ByName["f123"].ParamCount != 2 {
		t.Errorf("f123 param count = %d, want 2", res.ByName["f123"].ParamCount)
	}
}
