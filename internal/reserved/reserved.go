// Package reserved centralizes the fixed reserved-word list, so a future
// grammar change only touches one place.
package reserved

// words is the fixed list of target-language reserved words. A call whose
// callee resolves through a member-access property with one of these names
// is never treated as a helper call.
var words = map[string]struct{}{
	"default": {}, "function": {}, "var": {}, "let": {}, "const": {},
	"if": {}, "else": {}, "for": {}, "while": {}, "do": {},
	"switch": {}, "case": {}, "break": {}, "continue": {}, "return": {},
	"this": {}, "typeof": {}, "instanceof": {}, "new": {}, "delete": {},
	"void": {}, "in": {}, "try": {}, "catch": {}, "finally": {},
	"throw": {}, "class": {}, "extends": {}, "super": {}, "import": {},
	"export": {}, "null": {}, "true": {}, "false": {}, "undefined": {},
	"NaN": {}, "Infinity": {},
}

// Is reports whether name is a reserved word.
func Is(name string) bool {
	_, ok := words[name]
	return ok
}
