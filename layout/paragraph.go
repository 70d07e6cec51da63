package layout

import (
	"fmt"
	"math"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/ByLCY/quire/binding"
	"github.com/ByLCY/quire/dsl"
	"github.com/ByLCY/quire/geom"
	"github.com/ByLCY/quire/wrap"
)

// run is a styled piece of paragraph text as seen by the line breaker.
type run = wrap.Span[TextStyle]

// paragraph is a text block broken into lines, before pagination.
type paragraph struct {
	lines      []TextLine
	lineHeight float64
	fragments  int
	oversize   int
}

func (ctx *flowContext) handleText(cmd *dsl.Command) error {
	if cmd.Block == nil {
		return fmt.Errorf("text 语句缺少文本块")
	}
	b := ctx.b
	styleName, inline := parseArgs(cmd.Args, true)
	attrs := mergeStyleAttributes(styleName, inline, b.res.Styles)
	if font, ok := fontAlias(styleName, attrs, b.res); ok {
		attrs["font"] = font
	}
	align := normalizeAlign(attrs["align"])
	if align == "" {
		align = ctx.textAlign
	}
	alignment, _ := geom.ParseAlignment(align)

	base, err := b.textStyle(attrs)
	if err != nil {
		return err
	}
	lh := b.opts.lineHeight()
	if v := attrs["line-height"]; v != "" {
		spec, ok := ParseLineHeight(v)
		if !ok {
			return fmt.Errorf("line-height 无法解析：%s", v)
		}
		lh = spec
	}

	runs, err := b.collectRuns(cmd.Block, attrs)
	if err != nil {
		return err
	}
	if !hasText(runs) {
		return fmt.Errorf("text 语句缺少文本内容")
	}

	para := b.composeParagraph(runs, base, lh.Resolve(base.Size), ctx.width, alignment)

	var debug *TextBoxDebug
	if b.opts.Debug.RawUnits || b.opts.Debug.Breaks {
		debug = &TextBoxDebug{Fragments: para.fragments, Oversize: para.oversize}
		if b.opts.Debug.RawUnits {
			size := RawLengthJSON{Value: defaultFontSizePt, Unit: "pt"}
			if l, ok := ParseLength(attrs["size"]); ok && l.Value > 0 {
				size = RawLengthJSON{Value: l.Value, Unit: l.Unit.String()}
			}
			debug.RawUnits = &RawUnits{FontSize: &size, LineHeight: lh.rawJSON()}
		}
	}

	newBox := func() TextBox {
		return TextBox{
			X:          ctx.baseX,
			Y:          ctx.cursorY,
			Width:      ctx.width,
			LineHeight: para.lineHeight,
			Align:      align,
			Debug:      debug,
		}
	}
	flush := func(box TextBox) {
		if len(box.Lines) == 0 {
			return
		}
		if acc := ctx.acc(); acc != nil {
			acc.texts = append(acc.texts, box)
		}
	}

	// 逐行分页：放不下的行移到下一页，段落在页间拆成多个 TextBox。
	box := newBox()
	for _, ln := range para.lines {
		if len(box.Lines) == 0 {
			ln.GapBefore = 0
		}
		need := ln.GapBefore + ln.Height
		if !ctx.fits(need) && !ctx.atTop() {
			flush(box)
			ctx.pageBreak()
			box = newBox()
			ln.GapBefore = 0
			need = ln.Height
		}
		box.Lines = append(box.Lines, ln)
		box.Height += need
		ctx.cursorY += need
	}
	flush(box)
	ctx.cursorY += blockSpacing
	return nil
}

// collectRuns flattens the literals and nested span commands of a text block
// into styled runs, in reading order. attrs are the enclosing attributes.
func (b *builder) collectRuns(block *dsl.Block, attrs map[string]string) ([]run, error) {
	if block == nil {
		return nil, nil
	}
	style, err := b.textStyle(attrs)
	if err != nil {
		return nil, err
	}
	var runs []run
	for _, stmt := range block.Statements {
		switch {
		case stmt.Text != nil:
			text := binding.Interpolate(string(stmt.Text.Value), b.data)
			runs = append(runs, run{Text: text, Style: style})
		case stmt.Command != nil && stmt.Command.Name == "span":
			cmd := stmt.Command
			if cmd.Block == nil {
				return nil, fmt.Errorf("span 语句缺少文本块")
			}
			name, inline := parseArgs(cmd.Args, true)
			own := mergeStyleAttributes(name, inline, b.res.Styles)
			child := make(map[string]string, len(attrs)+len(own))
			for k, v := range attrs {
				child[k] = v
			}
			for k, v := range own {
				child[k] = v
			}
			if font, ok := fontAlias(name, own, b.res); ok {
				child["font"] = font
			}
			nested, err := b.collectRuns(cmd.Block, child)
			if err != nil {
				return nil, err
			}
			runs = append(runs, nested...)
		}
	}
	return runs, nil
}

// fontAlias lets a bare font name stand in for a style, as in `text Bold { ... }`,
// unless the attributes already choose a font.
func fontAlias(name string, own map[string]string, res ResourceSet) (string, bool) {
	if name == "" || own["font"] != "" {
		return "", false
	}
	if _, ok := res.Fonts[name]; ok {
		return name, true
	}
	return "", false
}

func (b *builder) textStyle(attrs map[string]string) (TextStyle, error) {
	name := attrs["font"]
	if name == "" {
		name = "Body"
	}
	font, err := resolveFontResource(name, b.res)
	if err != nil {
		return TextStyle{}, err
	}
	size := b.opts.fontSize()
	if l, ok := ParseLength(attrs["size"]); ok && l.ToMM() > 0 {
		size = l.ToMM()
	}
	color, err := resolveColor(attrs["color"], b.res)
	if err != nil {
		return TextStyle{}, err
	}
	return TextStyle{Font: font, Size: size, Color: color}, nil
}

func resolveFontResource(name string, res ResourceSet) (FontResource, error) {
	if font, ok := res.Fonts[name]; ok {
		return font, nil
	}
	if font, ok := res.Fonts["Body"]; ok {
		return font, nil
	}
	return FontResource{}, fmt.Errorf("字体 %s 未定义，且没有可用的默认字体", name)
}

func hasText(runs []run) bool {
	for _, r := range runs {
		if r.Text != "" {
			return true
		}
	}
	return false
}

// splitHardBreaks normalizes run text and cuts the runs at newlines. Text is
// brought to NFC, carriage returns are dropped and tabs become spaces. The
// result holds one slice of runs per hard line; empty lines yield empty slices.
func splitHardBreaks(runs []run) [][]run {
	clean := func(r rune) rune {
		switch r {
		case '\r':
			return -1
		case '\t':
			return ' '
		}
		return r
	}
	out := [][]run{nil}
	for _, r := range runs {
		text := strings.Map(clean, norm.NFC.String(r.Text))
		for i, part := range strings.Split(text, "\n") {
			if i > 0 {
				out = append(out, nil)
			}
			if part != "" {
				out[len(out)-1] = append(out[len(out)-1], run{Text: part, Style: r.Style})
			}
		}
	}
	return out
}

// composeParagraph breaks runs into lines no wider than width. Line gaps
// follow lineHeight: each line after the first is preceded by the leading
// left over once the line's own height is taken out.
func (b *builder) composeParagraph(runs []run, base TextStyle, lineHeight, width float64, align geom.Alignment) paragraph {
	measure := wrap.MeasureFunc[TextStyle](b.opts.Typesetter.CharWidth)
	penalties := b.opts.penalties()
	para := paragraph{lineHeight: lineHeight}

	for _, segment := range splitHardBreaks(runs) {
		frags := wrap.Prepare(segment, measure, b.opts.Splitter)
		para.fragments += len(frags)
		lines := wrap.Break(frags, width, penalties)
		if len(lines) == 0 {
			para.lines = append(para.lines, b.textLine(nil, 0, base, width, align))
			continue
		}
		for _, line := range lines {
			w := wrap.LineWidth(line)
			if len(line) == 1 && w > width {
				para.oversize++
				b.logger.Debug("fragment wider than line", "text", line[0].Text(), "width", w, "limit", width)
			}
			para.lines = append(para.lines, b.textLine(wrap.Finalize(line), w, base, width, align))
		}
	}

	for i := range para.lines {
		if i > 0 {
			para.lines[i].GapBefore = math.Max(lineHeight-para.lines[i].Height, 0)
		}
	}
	return para
}

func (b *builder) textLine(spans []run, width float64, base TextStyle, limit float64, align geom.Alignment) TextLine {
	ln := TextLine{Width: width, Offset: math.Max(align.Offset(limit, width), 0)}
	if len(spans) == 0 {
		m := b.opts.Typesetter.Metrics(base)
		ln.Ascent, ln.Height = m.Ascent, m.Ascent+m.Descent
		return ln
	}
	ln.Spans = make([]Span, 0, len(spans))
	descent := 0.0
	for _, s := range spans {
		ln.Spans = append(ln.Spans, Span(s))
		m := b.opts.Typesetter.Metrics(s.Style)
		ln.Ascent = math.Max(ln.Ascent, m.Ascent)
		descent = math.Max(descent, m.Descent)
	}
	ln.Height = ln.Ascent + descent
	return ln
}
