// Package wrap turns styled text runs into width-constrained lines.
//
// The pipeline has three steps. Prepare measures the runs and cuts them into
// fragments, the smallest pieces of text a line may end after. Wrap (or the
// generic Break) partitions the fragments into lines no wider than a target
// width. Finalize turns one line back into styled spans, inserting the space
// or hyphen each fragment boundary calls for.
//
// Widths are millimetres at the API. Line breaking compares them as integer
// layout units so that repeated additions do not drift.
package wrap

import "strings"

// Span is a piece of text rendered in a single style. The style is opaque to
// this package and only handed back to the Measurer.
type Span[S any] struct {
	Text  string
	Style S
}

// Measurer reports the rendered width of one character, in millimetres. It
// must be deterministic and never negative.
type Measurer[S any] interface {
	CharWidth(style S, r rune) float64
}

// MeasureFunc adapts a function to Measurer.
type MeasureFunc[S any] func(style S, r rune) float64

// CharWidth implements Measurer.
func (f MeasureFunc[S]) CharWidth(style S, r rune) float64 { return f(style, r) }

// Fragment is an indivisible layout unit. A line break may only fall after a
// fragment, never inside one.
type Fragment[S any] struct {
	Spans []Span[S]
	// AddWhitespace means a space follows the fragment unless it ends a line.
	AddWhitespace bool
	// AddHyphen means a hyphen is inserted when the fragment ends a line.
	AddHyphen bool

	width      float64
	whitespace float64
	penalty    float64
}

// Width is the measured width of the fragment's text.
func (f Fragment[S]) Width() float64 { return f.width }

// WhitespaceWidth is the width of the trailing space, or zero.
func (f Fragment[S]) WhitespaceWidth() float64 {
	if !f.AddWhitespace {
		return 0
	}
	return f.whitespace
}

// PenaltyWidth is the width of the hyphen inserted at a line end, or zero.
func (f Fragment[S]) PenaltyWidth() float64 {
	if !f.AddHyphen {
		return 0
	}
	return f.penalty
}

// Text concatenates the fragment's spans without any separator.
func (f Fragment[S]) Text() string {
	var b strings.Builder
	for _, s := range f.Spans {
		b.WriteString(s.Text)
	}
	return b.String()
}

func measure[S any](m Measurer[S], style S, text string) float64 {
	total := 0.0
	for _, r := range text {
		total += m.CharWidth(style, r)
	}
	return total
}

func newFragment[S any](m Measurer[S], span Span[S], whitespace, hyphen bool) Fragment[S] {
	return Fragment[S]{
		Spans:         []Span[S]{span},
		AddWhitespace: whitespace,
		AddHyphen:     hyphen,
		width:         measure(m, span.Style, span.Text),
		whitespace:    m.CharWidth(span.Style, ' '),
		penalty:       m.CharWidth(span.Style, '-'),
	}
}

// absorb appends next to f. The separator widths follow next, whose last span
// is now f's last span.
func (f *Fragment[S]) absorb(next Fragment[S]) {
	f.Spans = append(f.Spans, next.Spans...)
	f.width += next.width
	f.whitespace = next.whitespace
	f.penalty = next.penalty
	f.AddWhitespace = next.AddWhitespace
	f.AddHyphen = next.AddHyphen
}

// Prepare cuts runs into fragments. Each run is split on the space character
// and every word is handed to sp for hyphenation points; sp may be nil.
// Fragments that can end neither with a space nor with a hyphen are merged
// with their successor, so every returned fragment but the last is a legal
// line boundary. Reading order is preserved.
func Prepare[S any](runs []Span[S], m Measurer[S], sp Splitter) []Fragment[S] {
	var out []Fragment[S]
	push := func(f Fragment[S]) {
		if n := len(out); n > 0 && !out[n-1].AddWhitespace && !out[n-1].AddHyphen {
			out[n-1].absorb(f)
			return
		}
		out = append(out, f)
	}
	for _, run := range runs {
		words := strings.Split(run.Text, " ")
		for wi, word := range words {
			lastWord := wi == len(words)-1
			segments := split(sp, word)
			for si, seg := range segments {
				lastSegment := si == len(segments)-1
				push(newFragment(m, Span[S]{Text: seg, Style: run.Style}, !lastWord && lastSegment, !lastSegment))
			}
		}
	}
	return out
}
