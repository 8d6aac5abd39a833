package normalize

import "testing"

func TestApplyReversesIdiom(t *testing.T) {
	t.Parallel()

	in := []byte(`var s = "dlrow olleh".split("").reverse().join("");`)
	want := `var s = "hello world";`

	got, err := Apply(in)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if string(got) != want {
		t.Errorf("Apply() = %q, want %q", got, want)
	}
}

func TestApplyLeavesNonIdiomAlone(t *testing.T) {
	t.Parallel()

	in := []byte(`var s = "hello".toUpperCase();`)

	got, err := Apply(in)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if string(got) != string(in) {
		t.Errorf("Apply() = %q, want unchanged %q", got, in)
	}
}

func TestApplyIsIdempotent(t *testing.T) {
	t.Parallel()

	in := []byte(`var s = "dlrow olleh".split("").reverse().join("");`)

	once, err := Apply(in)
	if err != nil {
		t.Fatalf("Apply (1st): %v", err)
	}
	twice, err := Apply(once)
	if err != nil {
		t.Fatalf("Apply (2nd): %v", err)
	}
	if string(once) != string(twice) {
		t.Errorf("Apply is not idempotent: %q vs %q", once, twice)
	}
}

func TestApplyDoesNotTouchEscapedQuotes(t *testing.T) {
	t.Parallel()

	in := []byte(`var s = "a\"b".split("").reverse().join("");`)

	got, err := Apply(in)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	want := `var s = "b\"a";`
	if string(got) != want {
		t.Errorf("Apply() = %q, want %q", got, want)
	}
}
