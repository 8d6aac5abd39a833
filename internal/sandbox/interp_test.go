package sandbox

import (
	"context"
	"testing"

	"github.com/phobologic/unfoldgo/internal/model"
	"github.com/phobologic/unfoldgo/internal/syntax"
)

// runInProcess interprets program directly, skipping the forked-worker
// path Evaluate uses in production — exactly what a unit test for the
// interpreter's own semantics wants, independent of process isolation.
func runInProcess(t *testing.T, program string) (map[string]model.Value, []TraceEntry) {
	t.Helper()
	tree, err := syntax.Parse(context.Background(), []byte(program))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	defer tree.Close()

	it := newInterp([]byte(program))
	results, trace, err := it.run(tree.Root())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	return results, trace
}

func TestInterpArithmeticHelper(t *testing.T) {
	t.Parallel()

	results, _ := runInProcess(t, Preamble+`
function f123(a,b,c,d){return a+b+c+d;}
safe_call(f123, [1,2,3,4], "f123(1,2,3,4)");
`)

	v, ok := results["f123(1,2,3,4)"]
	if !ok {
		t.Fatalf("missing result for f123(1,2,3,4): %v", results)
	}
	if v.Kind != model.KindInteger || v.Int != 10 {
		t.Errorf("result = %+v, want integer 10", v)
	}
}

func TestInterpStringHelper(t *testing.T) {
	t.Parallel()

	results, _ := runInProcess(t, Preamble+`
function greet(name){ return "hello " + name; }
safe_call(greet, ["world"], "greet(\"world\")");
`)

	v, ok := results[`greet("world")`]
	if !ok {
		t.Fatalf("missing result: %v", results)
	}
	if v.Kind != model.KindString || v.Str != "hello world" {
		t.Errorf("result = %+v, want string 'hello world'", v)
	}
}

func TestInterpCatchesThrownError(t *testing.T) {
	t.Parallel()

	results, trace := runInProcess(t, Preamble+`
function boom(){ throw "no"; }
safe_call(boom, [], "boom()");
`)

	if _, ok := results["boom()"]; ok {
		t.Errorf("boom() should not appear in results after throwing")
	}
	found := false
	for _, e := range trace {
		if e.Call == "boom()" && e.Error != "" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a trace entry recording boom()'s thrown error, got %+v", trace)
	}
}

func TestInterpDependencyChainThroughClosure(t *testing.T) {
	t.Parallel()

	results, _ := runInProcess(t, Preamble+`
function f1(x){ return x*2; }
function f2(x){ return f1(x)+1; }
safe_call(f2, [10], "f2(10)");
`)

	v, ok := results["f2(10)"]
	if !ok {
		t.Fatalf("missing result: %v", results)
	}
	if v.Kind != model.KindInteger || v.Int != 21 {
		t.Errorf("result = %+v, want integer 21", v)
	}
}
