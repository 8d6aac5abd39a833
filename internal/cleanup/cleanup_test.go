package cleanup

import (
	"context"
	"testing"

	"github.com/coregx/coregex"

	"github.com/phobologic/unfoldgo/internal/classify"
	"github.com/phobologic/unfoldgo/internal/syntax"
)

func TestApplyRemovesDeadHelper(t *testing.T) {
	t.Parallel()

	source := []byte(`function f123(a,b,c,d){return a+b+c+d;}
var x = 10;
`)
	tree, err := syntax.Parse(context.Background(), source)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	defer tree.Close()

	pattern, _ := coregex.Compile(`^f\d+$`)
	helpers := classify.Helpers(tree.Root(), source, pattern)

	rewrittenKeys := map[string]bool{"f123(1,2,3,4)": true}

	out, report, err := Apply(tree.Root(), source, helpers, rewrittenKeys, ModeRemove)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(report.DeadHelpers) != 1 || report.DeadHelpers[0] != "f123" {
		t.Fatalf("DeadHelpers = %v, want [f123]", report.DeadHelpers)
	}
	if contains(string(out), "function f123") {
		t.Errorf("expected f123's definition to be removed, got %q", out)
	}
}

func TestApplyRetainsHelperWithRemainingReferences(t *testing.T) {
	t.Parallel()

	source := []byte(`function f123(a,b,c,d){return a+b+c+d;}
var x = 10;
var g = f123;
`)
	tree, err := syntax.Parse(context.Background(), source)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	defer tree.Close()

	pattern, _ := coregex.Compile(`^f\d+$`)
	helpers := classify.Helpers(tree.Root(), source, pattern)

	rewrittenKeys := map[string]bool{"f123(1,2,3,4)": true}

	_, report, err := Apply(tree.Root(), source, helpers, rewrittenKeys, ModeNone)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(report.DeadHelpers) != 0 {
		t.Errorf("DeadHelpers = %v, want none (still referenced by `var g = f123`)", report.DeadHelpers)
	}
}

func contains(haystack, needle string) bool {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return true
		}
	}
	return false
}
