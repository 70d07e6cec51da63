package wrap

import "strings"

// Splitter breaks a word into hyphenation segments. Every segment except the
// last marks a place where the word may be broken with a hyphen. The segments
// must concatenate to the original word.
type Splitter interface {
	Split(word string) []string
}

// SplitFunc adapts a function to Splitter.
type SplitFunc func(word string) []string

// Split implements Splitter.
func (f SplitFunc) Split(word string) []string { return f(word) }

// split applies sp to word. A nil Splitter, or one whose result does not
// reassemble the word, leaves the word whole.
func split(sp Splitter, word string) []string {
	if sp == nil || word == "" {
		return []string{word}
	}
	segments := sp.Split(word)
	if len(segments) == 0 || strings.Join(segments, "") != word {
		return []string{word}
	}
	return segments
}
