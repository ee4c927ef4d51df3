package core

import (
	"strings"
	"unicode"
)

// SplitSentences splits text after every `.`, `?` or `!` that is followed by whitespace.
// Whitespace inside sentences is collapsed and empty sentences are dropped.
func SplitSentences(text string) []string {
	text = CollapseSpaces(text)
	if text == "" {
		return nil
	}

	var (
		sentences []string
		start     int
	)
	runes := []rune(text)
	for i, r := range runes {
		if (r == '.' || r == '?' || r == '!') && i+1 < len(runes) && unicode.IsSpace(runes[i+1]) {
			if s := strings.TrimSpace(string(runes[start : i+1])); s != "" {
				sentences = append(sentences, s)
			}
			start = i + 1
		}
	}
	if s := strings.TrimSpace(string(runes[start:])); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

// CollapseSpaces replaces every whitespace run with a single space.
func CollapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
