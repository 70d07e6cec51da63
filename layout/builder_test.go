package layout

import (
	"bytes"
	"encoding/json"
	"errors"
	"image"
	"math"
	"strings"
	"testing"

	"github.com/ByLCY/quire/dsl"
	"github.com/ByLCY/quire/element"
	"github.com/ByLCY/quire/geom"
	"github.com/ByLCY/quire/hyphen"
	"github.com/ByLCY/quire/wrap"
)

// stubTypesetter 是一个最小实现，仅用于测试：每个字符 1mm 宽，上升部/下降部按字号 8:2 分配。
type stubTypesetter struct{}

func (stubTypesetter) CharWidth(TextStyle, rune) float64 { return 1 }

func (stubTypesetter) Metrics(style TextStyle) FontMetrics {
	return FontMetrics{Ascent: 0.8 * style.Size, Descent: 0.2 * style.Size}
}

func testImages(t *testing.T) ImageSource {
	t.Helper()
	return ImageSourceFunc(func(src string) (element.Image, error) {
		if src != "logo.png" {
			return element.Image{}, errors.New("no such image")
		}
		return element.FromImage(image.NewRGBA(image.Rect(0, 0, 40, 20))), nil
	})
}

func build(t *testing.T, dslText string, opts BuildOptions) *Result {
	t.Helper()
	res, err := tryBuild(t, dslText, opts)
	if err != nil {
		t.Fatalf("布局计算失败: %v", err)
	}
	return res
}

func tryBuild(t *testing.T, dslText string, opts BuildOptions) (*Result, error) {
	t.Helper()
	doc, err := dsl.ParseString(dslText)
	if err != nil {
		t.Fatalf("解析 DSL 失败: %v", err)
	}
	if opts.Typesetter == nil {
		opts.Typesetter = stubTypesetter{}
	}
	if opts.Images == nil {
		opts.Images = testImages(t)
	}
	return Build(doc, nil, opts)
}

func eq(a, b float64) bool { return math.Abs(a-b) < 1e-6 }

func lineTexts(tb TextBox) []string {
	out := make([]string, len(tb.Lines))
	for i, ln := range tb.Lines {
		out[i] = ln.Text()
	}
	return out
}

func TestBuildRequiresTypesetter(t *testing.T) {
	doc, err := dsl.ParseString(`doc T v1 { page A4 { text { "x" } } }`)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Build(doc, nil, BuildOptions{}); err == nil {
		t.Fatalf("expected an error without a typesetter")
	}
	if _, err := Build(nil, nil, BuildOptions{Typesetter: stubTypesetter{}}); err == nil {
		t.Fatalf("expected an error for a nil document")
	}
}

// TestTextBoxTotalHeightInvariant 断言：TextBox.Height == Σ(line.Height + line.GapBefore)。
func TestTextBoxTotalHeightInvariant(t *testing.T) {
	res := build(t, `doc T v1 {
  resources { style Body { size: 12pt line-height: 1.2x } }
  page A4 portrait margin 10mm { flow { text Body { "`+strings.Repeat("long ", 80)+`" } } }
}`, BuildOptions{})
	tb := res.Pages[0].Texts[0]
	if len(tb.Lines) < 2 {
		t.Fatalf("expected several lines, got %d", len(tb.Lines))
	}
	total := 0.0
	for i, ln := range tb.Lines {
		if i == 0 && ln.GapBefore != 0 {
			t.Fatalf("first line must not have a gap")
		}
		total += ln.GapBefore + ln.Height
	}
	if !eq(total, tb.Height) {
		t.Fatalf("TextBox.Height 不变式不成立: got=%g want=%g", tb.Height, total)
	}
}

func TestLinesStayWithinWidth(t *testing.T) {
	words := strings.TrimSpace(strings.Repeat("lorem ipsum dolor sit amet consectetur adipiscing ", 12))
	res := build(t, `doc T v1 { page A4 margin 10mm { flow width 50mm { text { "`+words+`" } } } }`,
		BuildOptions{Debug: DebugOptions{Breaks: true}})
	tb := res.Pages[0].Texts[0]
	if !eq(tb.Width, 50) {
		t.Fatalf("flow width not applied: %g", tb.Width)
	}
	if tb.Debug == nil || tb.Debug.Oversize != 0 || tb.Debug.Fragments == 0 {
		t.Fatalf("unexpected break stats: %+v", tb.Debug)
	}
	var rebuilt []string
	for _, ln := range tb.Lines {
		if ln.Width > tb.Width+1e-9 {
			t.Fatalf("line %q is %gmm wide, limit %g", ln.Text(), ln.Width, tb.Width)
		}
		if ln.Width != float64(len([]rune(strings.TrimSpace(ln.Text())))) {
			t.Fatalf("line width %g does not match text %q", ln.Width, ln.Text())
		}
		rebuilt = append(rebuilt, ln.Text())
	}
	if got := strings.Join(rebuilt, " "); got != words {
		t.Fatalf("text lost while wrapping:\n got %q\nwant %q", got, words)
	}
}

func TestOversizeWordGetsOwnLine(t *testing.T) {
	res := build(t, `doc T v1 { page A4 margin 10mm { flow width 10mm { text { "a supercalifragilistic b" } } } }`,
		BuildOptions{Debug: DebugOptions{Breaks: true}})
	tb := res.Pages[0].Texts[0]
	want := []string{"a", "supercalifragilistic", "b"}
	if got := lineTexts(tb); strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("lines = %q, want %q", got, want)
	}
	if tb.Debug.Oversize != 1 {
		t.Fatalf("oversize count = %d", tb.Debug.Oversize)
	}
}

func TestHyphenationSplitter(t *testing.T) {
	splitter := wrap.SplitFunc(func(word string) []string {
		if word == "typesetting" {
			return []string{"type", "set", "ting"}
		}
		return []string{word}
	})
	res := build(t, `doc T v1 { page A4 margin 10mm { flow width 6mm { text { "typesetting" } } } }`,
		BuildOptions{Splitter: splitter})
	got := lineTexts(res.Pages[0].Texts[0])
	want := []string{"type-", "set-", "ting"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("lines = %q, want %q", got, want)
	}
}

func TestPatternHyphenation(t *testing.T) {
	dict, err := hyphen.LoadFile("../hyphen/testdata/patterns.txt")
	if err != nil {
		t.Fatalf("load patterns: %v", err)
	}
	res := build(t, `doc T v1 { page A4 margin 10mm { flow width 7mm { text { "hyphenation" } } } }`,
		BuildOptions{Splitter: dict})
	got := lineTexts(res.Pages[0].Texts[0])
	want := []string{"hyphen-", "ation"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("lines = %q, want %q", got, want)
	}
}

func TestHexColorsResolveToAllChannels(t *testing.T) {
	res := build(t, `doc T v1 {
  resources {
    color Accent #c0392b
  }
  page A4 margin 10mm {
    text color #ff0000 { "red" }
    text color Accent { "accent" }
    text color #0a0 { "short" }
  }
}`, BuildOptions{})
	want := []Color{{R: 255}, {R: 192, G: 57, B: 43}, {G: 170}}
	texts := res.Pages[0].Texts
	if len(texts) != len(want) {
		t.Fatalf("expected %d text boxes, got %d", len(want), len(texts))
	}
	for i, w := range want {
		if got := texts[i].Lines[0].Spans[0].Style.Color; got != w {
			t.Fatalf("text %d color = %+v, want %+v", i, got, w)
		}
	}
}

func TestSpansKeepTheirStyle(t *testing.T) {
	res := build(t, `doc T v1 {
  resources {
    style Red { color: #ff0000 }
  }
  page A4 margin 10mm {
    text { "plain " span Red { "red" } " tail " span color #00ff00 size 20pt { "green" } }
  }
}`, BuildOptions{})
	ln := res.Pages[0].Texts[0].Lines[0]
	if got := ln.Text(); got != "plain red tail green" {
		t.Fatalf("line text = %q", got)
	}
	colors := map[string]Color{}
	sizes := map[string]float64{}
	for _, s := range ln.Spans {
		if txt := strings.TrimSpace(s.Text); txt != "" {
			colors[txt] = s.Style.Color
			sizes[txt] = s.Style.Size
		}
	}
	if colors["red"] != (Color{R: 255}) || colors["green"] != (Color{G: 255}) || colors["plain"] != (Color{R: 30, G: 30, B: 30}) {
		t.Fatalf("span colors = %+v", colors)
	}
	if !eq(sizes["green"], 20*PtToMm) || !eq(sizes["plain"], 12*PtToMm) {
		t.Fatalf("span sizes = %+v", sizes)
	}
	// 行高取最大字号的度量。
	if !eq(ln.Height, 20*PtToMm) || !eq(ln.Ascent, 0.8*20*PtToMm) {
		t.Fatalf("line metrics = %g/%g", ln.Height, ln.Ascent)
	}
}

func TestHardBreaksAndNormalization(t *testing.T) {
	res := build(t, `doc T v1 { page A4 margin 10mm { text { "foo\r\n\nbar\tbaz" } } }`, BuildOptions{})
	got := lineTexts(res.Pages[0].Texts[0])
	want := []string{"foo", "", "bar baz"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("lines = %q, want %q", got, want)
	}
	if h := res.Pages[0].Texts[0].Lines[1].Height; h <= 0 {
		t.Fatalf("blank line should keep the base line height, got %g", h)
	}

	res = build(t, `doc T v1 { page A4 margin 10mm { text { "café" } } }`, BuildOptions{})
	if got := res.Pages[0].Texts[0].Lines[0].Text(); got != "café" {
		t.Fatalf("text not NFC normalized: %q", got)
	}
}

func TestBindingInText(t *testing.T) {
	doc, err := dsl.ParseString(`doc T v1 { page A4 { text { "Dear ${user.name}, ${user.title|friend}" } } }`)
	if err != nil {
		t.Fatal(err)
	}
	data := map[string]any{"user": map[string]any{"name": "Ada"}}
	res, err := Build(doc, data, BuildOptions{Typesetter: stubTypesetter{}})
	if err != nil {
		t.Fatal(err)
	}
	if got := res.Pages[0].Texts[0].Lines[0].Text(); got != "Dear Ada, friend" {
		t.Fatalf("interpolated text = %q", got)
	}
}

func TestTextAlignment(t *testing.T) {
	cases := []struct {
		dsl    string
		align  string
		offset float64
	}{
		{`text Body align right { "Hello" }`, "right", 185},
		{`text Body align end { "Hello" }`, "right", 185},
		{`text Body { "Hello" }`, "", 0},
	}
	for _, tc := range cases {
		res := build(t, `doc T v1 { page A4 portrait margin 10mm { flow { `+tc.dsl+` } } }`, BuildOptions{})
		tb := res.Pages[0].Texts[0]
		if tb.Align != tc.align || !eq(tb.Lines[0].Offset, tc.offset) {
			t.Fatalf("%s: align=%q offset=%g, want %q %g", tc.dsl, tb.Align, tb.Lines[0].Offset, tc.align, tc.offset)
		}
	}

	res := build(t, `doc T v1 { page A4 margin 10mm { flow align center { text { "Hello" } } } }`, BuildOptions{})
	if tb := res.Pages[0].Texts[0]; tb.Align != "center" || !eq(tb.Lines[0].Offset, 92.5) {
		t.Fatalf("flow 继承对齐未生效: %q %g", tb.Align, tb.Lines[0].Offset)
	}
}

func TestParagraphPagination(t *testing.T) {
	words := strings.Repeat("wwwwwwwwww ", 300)
	res := build(t, `doc T v1 { page A5 margin 10mm { text size 10mm line-height 20mm { "`+words+`" } } }`, BuildOptions{})
	if len(res.Pages) < 3 {
		t.Fatalf("expected at least 3 pages, got %d", len(res.Pages))
	}
	lines := 0
	for i, page := range res.Pages {
		if len(page.Texts) != 1 {
			t.Fatalf("page %d has %d text boxes", i, len(page.Texts))
		}
		tb := page.Texts[0]
		if i > 0 && !eq(tb.Y, 10) {
			t.Fatalf("continuation on page %d starts at %g", i, tb.Y)
		}
		if tb.Y+tb.Height > page.Height-page.Margin.Bottom+1e-6 {
			t.Fatalf("page %d overflows: %g+%g", i, tb.Y, tb.Height)
		}
		if tb.Lines[0].GapBefore != 0 {
			t.Fatalf("page %d starts with a gap", i)
		}
		lines += len(tb.Lines)
	}
	// 每行最多 11 个单词（11*10 + 10 个空格 = 120mm ≤ 128mm）。
	if lines < 300/11 {
		t.Fatalf("only %d lines for 300 words", lines)
	}
}

func TestImagePlacement(t *testing.T) {
	res := build(t, `doc T v1 {
  resources { image Logo { src: "logo.png" dpi: 25.4 } }
  page A4 margin 10mm {
    image Logo align center
    image Logo rotate 90 align right
    text { "after" }
  }
}`, BuildOptions{})
	imgs := res.Pages[0].Images
	if len(imgs) != 2 {
		t.Fatalf("expected 2 images, got %d", len(imgs))
	}
	centered := imgs[0]
	if !eq(centered.X, 85) || !eq(centered.Y, 10) || !eq(centered.Width, 40) || !eq(centered.Height, 20) {
		t.Fatalf("centered image = %+v", centered)
	}
	if centered.Src != "logo.png" || centered.Image == nil {
		t.Fatalf("image source not recorded: %+v", centered)
	}

	rotated := imgs[1]
	// 顺时针 90°：支点（原左上角）位于外接矩形右上角。
	if !eq(rotated.X, 200) || !eq(rotated.Y, 33) || rotated.Rotation != 90 {
		t.Fatalf("rotated anchor = (%g, %g) rot %g", rotated.X, rotated.Y, rotated.Rotation)
	}
	bb := rotated.Bounds
	if !eq(bb.X, 180) || !eq(bb.Y, 33) || !eq(bb.Width, 20) || !eq(bb.Height, 40) {
		t.Fatalf("rotated bounds = %+v", bb)
	}

	text := res.Pages[0].Texts[0]
	if want := 33 + 40 + blockSpacing; !eq(text.Y, want) {
		t.Fatalf("text after images at %g, want %g", text.Y, want)
	}
}

func TestAbsoluteImageDoesNotAdvance(t *testing.T) {
	res := build(t, `doc T v1 {
  page A4 margin 10mm {
    image "logo.png" x 5mm y 7mm dpi 25.4 scale 2 0.5
    text { "first" }
  }
}`, BuildOptions{})
	img := res.Pages[0].Images[0]
	if !eq(img.X, 15) || !eq(img.Y, 17) {
		t.Fatalf("absolute image anchor = (%g, %g)", img.X, img.Y)
	}
	if !eq(img.Width, 80) || !eq(img.Height, 10) || img.ScaleX != 2 || img.ScaleY != 0.5 {
		t.Fatalf("scaled size = %gx%g", img.Width, img.Height)
	}
	if y := res.Pages[0].Texts[0].Y; !eq(y, 10) {
		t.Fatalf("text moved to %g after an absolute image", y)
	}
}

func TestImageErrors(t *testing.T) {
	_, err := tryBuild(t, `doc T v1 { page A4 { image "logo.png" rotate 200 } }`, BuildOptions{})
	if !errors.Is(err, geom.ErrRotationRange) {
		t.Fatalf("expected rotation range error, got %v", err)
	}
	if _, err := tryBuild(t, `doc T v1 { page A4 { image "missing.png" } }`, BuildOptions{}); err == nil {
		t.Fatalf("expected an error for a missing image")
	}
	if _, err := tryBuild(t, `doc T v1 { page A4 { image "logo.png" tilt 3 } }`, BuildOptions{}); err == nil {
		t.Fatalf("expected an error for an unknown argument")
	}
	if _, err := tryBuild(t, `doc T v1 { page A4 { image "logo.png" rotate -180 } }`, BuildOptions{}); err != nil {
		t.Fatalf("-180 is in range: %v", err)
	}
}

func TestFileImagesRejectsRelativeWithoutBase(t *testing.T) {
	if _, err := (FileImages{}).Open("logo.png"); err == nil {
		t.Fatalf("expected an error for a relative path without base dir")
	}
	_, err := (FileImages{BaseDir: t.TempDir()}).Open("logo.png")
	if !errors.Is(err, element.ErrOpen) {
		t.Fatalf("expected an open error, got %v", err)
	}
}

// TestResolveMarginVariants 验证 margin 参数支持 1、2、3、4+ 个值的语义。
func TestResolveMarginVariants(t *testing.T) {
	get := func(spec string) Margin {
		res := build(t, "doc T v1 { page "+spec+" { flow { text { \"x\" } } } }", BuildOptions{})
		return res.Pages[0].Margin
	}
	cases := []struct {
		spec string
		want Margin
	}{
		{"A4 portrait margin 10mm", Margin{10, 10, 10, 10}},
		{"A4 portrait margin 10mm 5mm", Margin{10, 5, 10, 5}},
		{"A4 portrait margin 12mm 8mm 6mm", Margin{12, 8, 6, 0}},
		{"A4 portrait margin 1cm 5mm 2cm 3mm", Margin{10, 5, 20, 3}},
		{"A4 portrait margin 1mm 2mm 3mm 4mm 999mm 888mm", Margin{1, 2, 3, 4}},
		{"A4 portrait", Margin{20, 20, 20, 20}},
	}
	for _, tc := range cases {
		got := get(tc.spec)
		if !eq(got.Top, tc.want.Top) || !eq(got.Right, tc.want.Right) || !eq(got.Bottom, tc.want.Bottom) || !eq(got.Left, tc.want.Left) {
			t.Fatalf("%s: margin = %+v, want %+v", tc.spec, got, tc.want)
		}
	}

	res := build(t, `doc T v1 { page A4 landscape { text { "x" } } }`, BuildOptions{Margin: &Margin{5, 5, 5, 5}})
	if p := res.Pages[0]; !eq(p.Width, 297) || !eq(p.Margin.Left, 5) {
		t.Fatalf("landscape page with default margin = %+v", p)
	}
}

func TestDefaultPageSize(t *testing.T) {
	cases := []struct {
		name string
		spec string
		opts BuildOptions
		w, h float64
	}{
		{"unset", "default", BuildOptions{}, 210, 297},
		{"configured", "default", BuildOptions{PageSize: geom.Size{Width: 210, Height: 148}}, 210, 148},
		{"forced portrait", "default portrait", BuildOptions{PageSize: geom.Size{Width: 210, Height: 148}}, 148, 210},
		{"landscape is idempotent", "default landscape", BuildOptions{PageSize: geom.Size{Width: 210, Height: 148}}, 210, 148},
		{"preset wins", "A5", BuildOptions{PageSize: geom.Size{Width: 100, Height: 100}}, 148, 210},
	}
	for _, tc := range cases {
		res := build(t, "doc T v1 { page "+tc.spec+" margin 10mm { text { \"x\" } } }", tc.opts)
		if p := res.Pages[0]; !eq(p.Width, tc.w) || !eq(p.Height, tc.h) {
			t.Fatalf("%s: page = %gx%g, want %gx%g", tc.name, p.Width, p.Height, tc.w, tc.h)
		}
	}
}

func TestMultiplePageSections(t *testing.T) {
	res := build(t, `doc T v1 {
  meta { title: "Two" }
  page A4 { text { "one" } }
  page A5 { text { "two" } }
}`, BuildOptions{})
	if len(res.Pages) != 2 || !eq(res.Pages[1].Width, 148) {
		t.Fatalf("unexpected pages: %d", len(res.Pages))
	}
	if res.Meta.Title != "Two" || res.Meta.Creator != "quire" {
		t.Fatalf("meta = %+v", res.Meta)
	}
}

// TestDebugRawUnitsOutput 验证在开启 Debug.RawUnits 后，JSON 里会输出 debug.rawUnits，且语义正确。
func TestDebugRawUnitsOutput(t *testing.T) {
	res := build(t, `doc D1 v1 {
  resources { style S1 { size: 12pt line-height: 1.2x } }
  page A4 portrait margin 10mm { flow { text S1 { "aaaa bbbb" } text S1 line-height 6mm { "cccc" } } }
}`, BuildOptions{Debug: DebugOptions{RawUnits: true}})
	texts := res.Pages[0].Texts
	factor := texts[0].Debug.RawUnits
	if factor.LineHeight.Kind != "factor" || factor.LineHeight.Factor != 1.2 {
		t.Fatalf("行高应为 factor 语义，实际: %#v", factor.LineHeight)
	}
	if factor.FontSize.Unit != "pt" || factor.FontSize.Value != 12 {
		t.Fatalf("字号应为 12pt，实际: %#v", factor.FontSize)
	}
	abs := texts[1].Debug.RawUnits.LineHeight
	if abs.Kind != "absolute" || abs.Unit != "mm" || abs.Value != 6 {
		t.Fatalf("行高应为 6mm 绝对值，实际: %#v", abs)
	}

	var buf bytes.Buffer
	if err := EncodeDebugJSON(&buf, res); err != nil {
		t.Fatal(err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("debug JSON is not valid: %v", err)
	}
	if !strings.Contains(buf.String(), `"rawUnits"`) {
		t.Fatalf("debug JSON lacks rawUnits")
	}
}

func TestStyleInheritanceCycle(t *testing.T) {
	_, err := tryBuild(t, `doc T v1 {
  resources { style A extends B { size: 10pt } style B extends A { size: 11pt } }
  page A4 { text { "x" } }
}`, BuildOptions{})
	if err == nil || !strings.Contains(err.Error(), "循环") {
		t.Fatalf("expected a cycle error, got %v", err)
	}
}
