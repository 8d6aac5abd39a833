package rewrite

import (
	"context"
	"testing"

	"github.com/coregx/coregex"

	"github.com/phobologic/unfoldgo/internal/model"
	"github.com/phobologic/unfoldgo/internal/syntax"
)

func TestApplyReplacesKeyedCallWithLiteral(t *testing.T) {
	t.Parallel()

	source := []byte(`function f123(a,b,c,d){return a+b+c+d;}
var x = f123(1,2,3,4);
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

	values := map[string]model.Value{
		"f123(1,2,3,4)": model.Integer(10),
	}

	res, err := Apply(tree.Root(), source, Config{InterceptPattern: pattern, MinArgs: 4, MaxArgs: 6}, values, false)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	if !res.RewrittenKeys["f123(1,2,3,4)"] {
		t.Errorf("expected the call site to be recorded as rewritten")
	}
	if got := string(res.Output); !contains(got, "var x = 10;") {
		t.Errorf("output = %q, want it to contain %q", got, "var x = 10;")
	}
}

func TestApplyHonorsDisableReplace(t *testing.T) {
	t.Parallel()

	source := []byte(`var x = f123(1,2,3,4);`)
	tree, err := syntax.Parse(context.Background(), source)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	defer tree.Close()

	pattern, _ := coregex.Compile(`^f\d+$`)
	values := map[string]model.Value{"f123(1,2,3,4)": model.Integer(10)}

	res, err := Apply(tree.Root(), source, Config{InterceptPattern: pattern, MinArgs: 4, MaxArgs: 6}, values, true)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if string(res.Output) != string(source) {
		t.Errorf("disable_replace should leave source unchanged, got %q", res.Output)
	}
	if len(res.RewrittenKeys) != 0 {
		t.Errorf("disable_replace should record no rewrites")
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
