// Package tokenize implements the tokenize(text) interface named in
// SPEC_FULL.md §1: lowercase, alphanumeric tokens, deterministic. It is a
// pure, replaceable implementation consumed by pkg/index.
package tokenize

import (
	"strings"
	"unicode"
)

// Tokens splits text into lowercase alphanumeric tokens, dropping any run
// of non-alphanumeric characters as a separator and discarding empty
// results. Unicode letters/digits count as alphanumeric.
func Tokens(text string) []string {
	if text == "" {
		return nil
	}
	lower := strings.ToLower(text)
	tokens := make([]string, 0, len(lower)/4+1)
	var b strings.Builder
	flush := func() {
		if b.Len() > 0 {
			tokens = append(tokens, b.String())
			b.Reset()
		}
	}
	for _, r := range lower {
		if isAlphaNumeric(r) {
			b.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()
	return tokens
}

func isAlphaNumeric(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
