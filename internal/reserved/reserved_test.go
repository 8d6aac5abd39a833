package reserved

import "testing"

func TestIsRecognizesReservedWords(t *testing.T) {
	t.Parallel()

	for _, w := range []string{"function", "return", "this", "undefined", "NaN"} {
		if !Is(w) {
			t.Errorf("Is(%q) = false, want true", w)
		}
	}
}

func TestIsRejectsOrdinaryIdentifiers(t *testing.T) {
	t.Parallel()

	for _, w := range []string{"f1", "decode", "helper", ""} {
		if Is(w) {
			t.Errorf("Is(%q) = true, want false", w)
		}
	}
}
