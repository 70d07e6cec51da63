package wrap

// Finalize renders a line back into styled spans. A space is appended after
// every fragment but the last that asked for one, and a hyphen after the last
// fragment when it ends mid-word. Spans of equal style are not merged.
func Finalize[S any](line []Fragment[S]) []Span[S] {
	var spans []Span[S]
	for i, f := range line {
		spans = append(spans, f.Spans...)
		var suffix string
		switch {
		case i == len(line)-1:
			if f.AddHyphen {
				suffix = "-"
			}
		case f.AddWhitespace:
			suffix = " "
		}
		if suffix != "" && len(spans) > 0 {
			spans[len(spans)-1].Text += suffix
		}
	}
	return spans
}

// LineWidth is the rendered width of a line in millimetres: its fragments,
// the spaces between them and a trailing hyphen if one is inserted.
func LineWidth[T Item](line []T) float64 {
	total := 0.0
	for i, it := range line {
		total += it.Width()
		if i < len(line)-1 {
			total += it.WhitespaceWidth()
		} else {
			total += it.PenaltyWidth()
		}
	}
	return total
}

// Lines runs the whole pipeline: it prepares runs, wraps them at width and
// finalizes every line.
func Lines[S any](runs []Span[S], m Measurer[S], sp Splitter, width float64) [][]Span[S] {
	wrapped := Wrap(Prepare(runs, m, sp), width)
	out := make([][]Span[S], 0, len(wrapped))
	for _, line := range wrapped {
		out = append(out, Finalize(line))
	}
	return out
}
