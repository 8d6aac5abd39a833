package trace

import (
	"context"
	"testing"
)

func TestPhaseStartsAndEndsWithoutAnExporter(t *testing.T) {
	t.Parallel()

	ctx, end := Phase(context.Background(), "normalize")
	if ctx == nil {
		t.Fatal("expected a non-nil context")
	}
	end(Int("bytes", 10), Bool("has_cycle", false), String("status", "ok"))
}

func TestCallSiteStartsAndEndsWithoutAnExporter(t *testing.T) {
	t.Parallel()

	ctx, end := CallSite(context.Background(), "f1(1,2,3,4)")
	if ctx == nil {
		t.Fatal("expected a non-nil context")
	}
	end()
}
