// Package tokenizer provides text tokenisation for the hotel search engine.
// It lower-cases input and splits it into maximal runs of word characters.
// Documents and queries must go through the same function.
package tokenizer

import (
	"strings"
	"unicode"
)

// Tokenize lower-cases text and returns every maximal run of word characters
// (letters, numbers, underscore) in left-to-right order. Separators are
// dropped; the result is empty when text has no word characters.
func Tokenize(text string) []string {
	text = strings.ToLower(text)
	return strings.FieldsFunc(text, func(r rune) bool {
		return !isWordRune(r)
	})
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsNumber(r) || r == '_'
}
