package resolve

import (
	"context"
	"testing"

	"github.com/coregx/coregex"

	"github.com/phobologic/unfoldgo/internal/classify"
	"github.com/phobologic/unfoldgo/internal/syntax"
)

func mustClassify(t *testing.T, source []byte) (*syntax.Tree, classify.Result) {
	t.Helper()
	tree, err := syntax.Parse(context.Background(), source)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	pattern, err := coregex.Compile(`^f\d+$`)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	return tree, classify.Helpers(tree.Root(), source, pattern)
}

func TestClosureSeedsThroughInitializer(t *testing.T) {
	t.Parallel()

	source := []byte(`
function f1(x){return x*2;}
function f2(x){return f1(x)+1;}
(function(){ f2(3); })();
var y = f2(10);
`)
	tree, helpers := mustClassify(t, source)
	defer tree.Close()

	res := Closure(tree.Root(), source, helpers, []string{"f2"}, nil)

	if !res.Extracted["f1"] {
		t.Errorf("f1 should be extracted transitively via f2")
	}
	if !res.Extracted["f2"] {
		t.Errorf("f2 should be extracted (seeded by initializer and by P)")
	}
}

func TestClosureToleratesCycles(t *testing.T) {
	t.Parallel()

	source := []byte(`
function f1(x){return f2(x);}
function f2(x){return f1(x);}
var y = f1(1);
`)
	tree, helpers := mustClassify(t, source)
	defer tree.Close()

	res := Closure(tree.Root(), source, helpers, []string{"f1"}, nil)

	if !res.HasCycle {
		t.Errorf("expected cycle to be detected")
	}
	if !res.Extracted["f1"] || !res.Extracted["f2"] {
		t.Errorf("both helpers should still be in the extracted set despite the cycle")
	}
	if len(res.Order) != 2 {
		t.Errorf("order should still linearize all extracted helpers, got %v", res.Order)
	}
}
