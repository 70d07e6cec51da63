// Package hyphen provides a pattern-based hyphenation dictionary that plugs
// into the line breaker as a wrap.Splitter.
package hyphen

import (
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/speedata/hyphenation"
)

// Dictionary splits words at the hyphenation points of a Liang pattern set.
// It is read-only after loading and safe for concurrent use.
type Dictionary struct {
	lang *hyphenation.Lang
}

// Load reads hyphenation patterns, one per line, from r.
func Load(r io.Reader) (*Dictionary, error) {
	lang, err := hyphenation.New(r)
	if err != nil {
		return nil, fmt.Errorf("hyphen: load patterns: %w", err)
	}
	return &Dictionary{lang: lang}, nil
}

// LoadFile reads hyphenation patterns from a file.
func LoadFile(path string) (*Dictionary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("hyphen: open %s: %w", path, err)
	}
	defer f.Close()
	return Load(f)
}

// Split implements wrap.Splitter. Leading and trailing punctuation stays
// attached to the first and last segment; words containing anything but
// letters in their core are returned whole.
func (d *Dictionary) Split(word string) []string {
	if d == nil || d.lang == nil {
		return []string{word}
	}
	start := strings.IndexFunc(word, unicode.IsLetter)
	end := strings.LastIndexFunc(word, unicode.IsLetter)
	if start < 0 {
		return []string{word}
	}
	_, size := utf8.DecodeRuneInString(word[end:])
	end += size
	prefix, core, suffix := word[:start], word[start:end], word[end:]
	if strings.IndexFunc(core, func(r rune) bool { return !unicode.IsLetter(r) }) >= 0 {
		return []string{word}
	}

	runes := []rune(core)
	var segments []string
	last := 0
	for _, pos := range d.lang.Hyphenate(core) {
		if pos <= last || pos >= len(runes) {
			continue
		}
		segments = append(segments, string(runes[last:pos]))
		last = pos
	}
	segments = append(segments, string(runes[last:]))
	segments[0] = prefix + segments[0]
	segments[len(segments)-1] += suffix
	return segments
}
