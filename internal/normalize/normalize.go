// Package normalize is a textual rewrite, before parsing, of the
// reversed-string-literal idiom
//
//	"<chars>".split("").reverse().join("")
//
// into its folded form "<reverse(chars)>". It runs only when
// string_reverse is enabled.
//
// The idiom grammar is expressed with goparsec (github.com/prataprc/goparsec),
// the same parser-combinator library luthersystems/elps uses for its lisp
// reader (parser/regexparser), rather than one large regular expression: a
// combinator grammar fails closed on near-matches (an escaped quote, a
// missing call) instead of a regex's tendency to over-match greedily.
package normalize

import (
	"strconv"

	parsec "github.com/prataprc/goparsec"
)

const idiomSuffix = `.split("").reverse().join("")`

// idiomParser matches a double-quoted string literal immediately followed
// by the fixed idiom suffix, and yields the literal's raw (quoted) text.
func idiomParser() parsec.Parser {
	str := parsec.String()
	suffix := parsec.Atom(idiomSuffix, "IDIOM_SUFFIX")
	nodify := func(nodes []parsec.ParsecNode) parsec.ParsecNode {
		if len(nodes) == 0 {
			return nil
		}
		raw, ok := nodes[0].(string)
		if !ok {
			return nil
		}
		return raw
	}
	return parsec.And(nodify, str, suffix)
}

// Apply rewrites every occurrence of the idiom in source. It is
// idempotent: the rewritten text no longer contains the idiom suffix, so
// applying Apply to its own output is a no-op.
func Apply(source []byte) ([]byte, error) {
	parser := idiomParser()

	out := make([]byte, 0, len(source))
	i := 0
	for i < len(source) {
		// The idiom always starts at a quote; trying the parser only there
		// keeps its whitespace skipping from swallowing the bytes before a
		// match.
		if source[i] != '"' {
			out = append(out, source[i])
			i++
			continue
		}
		s := parsec.NewScanner(source[i:])
		node, rest := parser(s)
		if node == nil {
			out = append(out, source[i])
			i++
			continue
		}

		raw, ok := node.(string)
		if !ok {
			out = append(out, source[i])
			i++
			continue
		}

		folded, err := fold(raw)
		if err != nil {
			// Not a well-formed string literal after all; treat as a
			// non-match rather than failing the whole run — only an
			// unparseable *result* of a successful match is fatal, and
			// fold() only fails on inputs idiomParser should not have
			// accepted.
			out = append(out, source[i])
			i++
			continue
		}

		out = append(out, []byte(folded)...)
		i += rest.GetCursor()
	}

	return out, nil
}

// fold unquotes the matched literal, reverses its characters, and requotes
// the result.
func fold(quoted string) (string, error) {
	content, err := strconv.Unquote(quoted)
	if err != nil {
		return "", err
	}
	runes := []rune(content)
	for l, r := 0, len(runes)-1; l < r; l, r = l+1, r-1 {
		runes[l], runes[r] = runes[r], runes[l]
	}
	return strconv.Quote(string(runes)), nil
}
