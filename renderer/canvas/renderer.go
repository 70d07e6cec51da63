package canvasrenderer

import (
	"bytes"
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/pdf"

	"github.com/ByLCY/quire/fonts"
	"github.com/ByLCY/quire/layout"
	"github.com/ByLCY/quire/renderer"
)

// Renderer draws layout results via github.com/tdewolff/canvas. It also
// measures text for the layout pass, so one value serves as both the
// layout.Typesetter and the renderer.Renderer of a run.
type Renderer struct {
	baseDir   string
	fontBlobs map[string][]byte // by unique name

	fontMu         sync.Mutex
	fontFamilies   map[string]*fontFamilyEntry
	fallbackFamily *canvas.FontFamily

	widthMu sync.RWMutex
	widths  map[widthKey]float64
}

var (
	_ renderer.Renderer = (*Renderer)(nil)
	_ layout.Typesetter = (*Renderer)(nil)
)

type fontFamilyEntry struct {
	family *canvas.FontFamily
	style  canvas.FontStyle
}

type widthKey struct {
	font string
	size float64
	r    rune
}

// Options configures the canvas renderer.
type Options struct {
	BaseDir string
	Fonts   map[string]Resource // fonts accessible via built-in:<name>
}

// Resource can be provided either by Bytes or by Path.
type Resource struct {
	Bytes []byte
	Path  string
}

// NewRenderer creates a canvas-based renderer rooted at baseDir for resolving font paths.
func NewRenderer(baseDir string) *Renderer { return NewRendererWithOptions(Options{BaseDir: baseDir}) }

// NewRendererWithOptions creates a renderer with injected fonts and optional baseDir.
func NewRendererWithOptions(opts Options) *Renderer {
	r := &Renderer{
		baseDir:      opts.BaseDir,
		fontBlobs:    map[string][]byte{},
		fontFamilies: map[string]*fontFamilyEntry{},
		widths:       map[widthKey]float64{},
	}
	for name, res := range opts.Fonts {
		if name == "" {
			continue
		}
		if len(res.Bytes) > 0 {
			r.fontBlobs[name] = res.Bytes
			continue
		}
		if res.Path != "" {
			// 读取失败时在真正使用该字体时报错
			if data, _ := os.ReadFile(res.Path); len(data) > 0 {
				r.fontBlobs[name] = data
			}
		}
	}
	return r
}

// CharWidth 实现 layout.Typesetter，返回字符在给定样式下的宽度（mm）。
// 结果按字体、字号与字符缓存；缓存可被并发访问。
func (r *Renderer) CharWidth(style layout.TextStyle, ch rune) float64 {
	key := widthKey{font: fontCacheKey(style.Font), size: style.Size, r: ch}
	r.widthMu.RLock()
	w, ok := r.widths[key]
	r.widthMu.RUnlock()
	if ok {
		return w
	}

	// 未命中时持写锁测量，字体对象不会被并发访问。
	r.widthMu.Lock()
	defer r.widthMu.Unlock()
	if w, ok := r.widths[key]; ok {
		return w
	}
	face, err := r.fontFace(style.Font, toPt(style.Size), style.Color)
	if err != nil {
		// 字体不可用时按平均字宽估算，渲染阶段会再次报告该错误
		w = 0.55 * style.Size
	} else {
		w = math.Max(face.TextWidth(string(ch)), 0)
	}
	r.widths[key] = w
	return w
}

// Metrics 实现 layout.Typesetter，返回上升部与下降部（mm，均为正数）。
func (r *Renderer) Metrics(style layout.TextStyle) layout.FontMetrics {
	face, err := r.fontFace(style.Font, toPt(style.Size), style.Color)
	if err != nil {
		return layout.FontMetrics{Ascent: 0.8 * style.Size, Descent: 0.2 * style.Size}
	}
	m := face.Metrics()
	return layout.FontMetrics{Ascent: math.Abs(m.Ascent), Descent: math.Abs(m.Descent)}
}

// Render renders the result into a PDF byte slice.
func (r *Renderer) Render(result *layout.Result) ([]byte, error) {
	if result == nil {
		return nil, fmt.Errorf("渲染结果为空")
	}
	if len(result.Pages) == 0 {
		return nil, fmt.Errorf("缺少可渲染的页面")
	}

	var buf bytes.Buffer
	writer := pdf.New(&buf, result.Pages[0].Width, result.Pages[0].Height, nil)
	applyMeta(writer, result.Meta)
	for i, page := range result.Pages {
		if i > 0 {
			writer.NewPage(page.Width, page.Height)
		}
		c := canvas.New(page.Width, page.Height)
		ctx := canvas.NewContext(c)
		// 布局坐标 y 轴向下；这里使用 y 轴向上的坐标系，以便旋转角度与 canvas 约定一致。
		ctx.SetCoordSystem(canvas.CartesianI)

		if err := r.drawPage(ctx, page); err != nil {
			return nil, fmt.Errorf("渲染第 %d 页失败: %w", i+1, err)
		}
		c.RenderTo(writer)
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("写入 PDF 失败: %w", err)
	}
	return buf.Bytes(), nil
}

func applyMeta(writer *pdf.PDF, meta layout.DocumentMeta) {
	keywords := strings.Join(meta.Keywords, ", ")
	writer.SetInfo(meta.Title, meta.Subject, keywords, meta.Author, meta.Creator)
}

func (r *Renderer) drawPage(ctx *canvas.Context, page layout.Page) error {
	for _, tb := range page.Texts {
		if err := r.drawTextBox(ctx, page.Height, tb); err != nil {
			return err
		}
	}
	return drawImages(ctx, page.Height, page.Images)
}

// drawTextBox 逐行、逐片段绘制文本。片段的水平推进使用与布局相同的字符宽度，
// 保证渲染结果与布局测量一致。
func (r *Renderer) drawTextBox(ctx *canvas.Context, pageHeight float64, tb layout.TextBox) error {
	top := tb.Y
	for _, line := range tb.Lines {
		top += line.GapBefore
		baseline := top + line.Ascent
		x := tb.X + line.Offset
		for _, span := range line.Spans {
			if span.Text == "" {
				continue
			}
			face, err := r.fontFace(span.Style.Font, toPt(span.Style.Size), span.Style.Color)
			if err != nil {
				return err
			}
			ctx.DrawText(x, pageHeight-baseline, canvas.NewTextLine(face, span.Text, canvas.Left))
			for _, ch := range span.Text {
				x += r.CharWidth(span.Style, ch)
			}
		}
		top += line.Height
	}
	return nil
}

// drawImages 以图片左上角为支点绘制：先平移到支点，再顺时针旋转并按比例缩放，
// 使图片恰好落在布局给出的外接矩形内。
func drawImages(ctx *canvas.Context, pageHeight float64, images []layout.ImageBox) error {
	for _, img := range images {
		if img.Image == nil {
			return fmt.Errorf("图片 %s 缺少像素数据", img.Src)
		}
		px := img.Image.Bounds()
		if px.Dx() <= 0 || px.Dy() <= 0 || img.DPI <= 0 {
			continue
		}
		naturalH := 25.4 * float64(px.Dy()) / img.DPI

		ctx.Push()
		ctx.Translate(img.X, pageHeight-img.Y)
		ctx.Rotate(-img.Rotation)
		ctx.Scale(nonZero(img.ScaleX), nonZero(img.ScaleY))
		ctx.DrawImage(0, -naturalH, img.Image, canvas.DPI(img.DPI))
		ctx.Pop()
	}
	return nil
}

func nonZero(v float64) float64 {
	if v == 0 {
		return 1
	}
	return v
}

func (r *Renderer) fontFace(font layout.FontResource, size float64, col layout.Color) (*canvas.FontFace, error) {
	family, style, err := r.ensureFontFamily(font)
	if err != nil {
		return nil, err
	}
	return family.Face(size, colorFromLayout(col), style, canvas.FontNormal), nil
}

func (r *Renderer) ensureFontFamily(font layout.FontResource) (*canvas.FontFamily, canvas.FontStyle, error) {
	key := fontCacheKey(font)
	r.fontMu.Lock()
	defer r.fontMu.Unlock()

	if entry, ok := r.fontFamilies[key]; ok {
		return entry.family, entry.style, nil
	}

	style := parseFontStyle(font.Style)
	familyName := font.Family
	if familyName == "" {
		familyName = font.Name
	}
	if familyName == "" {
		familyName = "Body"
	}
	family := canvas.NewFontFamily(familyName)

	if err := r.loadFontIntoFamily(family, font, style); err != nil {
		fallback, fbErr := r.fallback()
		if fbErr != nil {
			return nil, canvas.FontRegular, err
		}
		r.fontFamilies[key] = &fontFamilyEntry{family: fallback, style: canvas.FontRegular}
		return fallback, canvas.FontRegular, nil
	}

	r.fontFamilies[key] = &fontFamilyEntry{family: family, style: style}
	return family, style, nil
}

func (r *Renderer) loadFontIntoFamily(family *canvas.FontFamily, font layout.FontResource, style canvas.FontStyle) error {
	data, err := r.loadFontBytes(font)
	if err != nil {
		return err
	}
	return family.LoadFont(data, 0, style)
}

func (r *Renderer) loadFontBytes(font layout.FontResource) ([]byte, error) {
	if font.Src == "" {
		return nil, fmt.Errorf("字体 %s 缺少 src", font.Name)
	}
	src := font.Src
	if strings.HasPrefix(src, "built-in:") || strings.HasPrefix(src, "builtin:") {
		name := strings.TrimPrefix(strings.TrimPrefix(src, "built-in:"), "builtin:")
		if blob, ok := r.fontBlobs[name]; ok {
			return blob, nil
		}
		return nil, fmt.Errorf("找不到内置字体资源 built-in:%s", name)
	}
	if strings.HasPrefix(src, "embed:") {
		return fonts.Load(src)
	}
	path := src
	if !filepath.IsAbs(path) {
		if r.baseDir == "" {
			return nil, fmt.Errorf("未指定资源目录时不允许直接使用字体路径：%s（请改用 built-in: 或 embed:）", src)
		}
		path = filepath.Join(r.baseDir, path)
	}
	return os.ReadFile(path)
}

// fallback 在调用方持有 fontMu 时使用。
func (r *Renderer) fallback() (*canvas.FontFamily, error) {
	if r.fallbackFamily != nil {
		return r.fallbackFamily, nil
	}
	data, err := fonts.Load(fonts.Regular)
	if err != nil {
		return nil, err
	}
	family := canvas.NewFontFamily("quire-fallback")
	if err := family.LoadFont(data, 0, canvas.FontRegular); err != nil {
		return nil, err
	}
	r.fallbackFamily = family
	return family, nil
}

func parseFontStyle(style string) canvas.FontStyle {
	s := strings.ToLower(style)
	var result canvas.FontStyle
	switch {
	case strings.Contains(s, "black"):
		result = canvas.FontBlack
	case strings.Contains(s, "extrabold"):
		result = canvas.FontExtraBold
	case strings.Contains(s, "semibold"), strings.Contains(s, "demibold"):
		result = canvas.FontSemiBold
	case strings.Contains(s, "bold"):
		result = canvas.FontBold
	case strings.Contains(s, "medium"):
		result = canvas.FontMedium
	case strings.Contains(s, "light"):
		result = canvas.FontLight
	default:
		result = canvas.FontRegular
	}
	if strings.Contains(s, "italic") || strings.Contains(s, "oblique") {
		result |= canvas.FontItalic
	}
	return result
}

func fontCacheKey(font layout.FontResource) string {
	return fmt.Sprintf("%s|%s|%s", font.Name, font.Src, font.Style)
}

func colorFromLayout(c layout.Color) color.Color {
	return canvas.RGBA(float64(c.R)/255.0, float64(c.G)/255.0, float64(c.B)/255.0, 1.0)
}

// toPt 将毫米(mm)转换为点(pt)。
func toPt(mm float64) float64 { return mm * layout.MmToPt }
