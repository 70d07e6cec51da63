package layout

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/ByLCY/quire/element"
	"github.com/ByLCY/quire/geom"
	"github.com/ByLCY/quire/wrap"
)

const (
	defaultFontSizePt       = 12.0
	defaultLineHeightFactor = 1.4
	defaultPaper            = "A4"
)

// BuildOptions 配置布局阶段所需的依赖，例如排版后端与断字词典。
type BuildOptions struct {
	Typesetter Typesetter
	// Splitter 为 nil 时不做断字。
	Splitter wrap.Splitter
	// Penalties 为 nil 时使用 wrap.DefaultPenalties。
	Penalties *wrap.Penalties
	// Images 负责加载图片；为 nil 时按文件路径加载（相对 BaseDir）。
	Images  ImageSource
	BaseDir string
	Text    TextDefaults
	// Margin 为未声明 margin 的页面提供默认边距；nil 时四边 20mm。
	Margin *Margin
	// PageSize is the paper used by `page default { ... }`, in mm; zero means A4.
	PageSize geom.Size
	// DPI 为未声明 dpi 的图片提供默认值；0 表示使用 element.DefaultDPI。
	DPI    float64
	Logger *log.Logger
	Debug  DebugOptions
}

// TextDefaults apply to text that does not set size or line-height itself.
type TextDefaults struct {
	FontSize   float64 // pt
	LineHeight float64 // factor
}

// DebugOptions 控制调试相关输出。
type DebugOptions struct {
	RawUnits bool // 在调试 JSON 中输出 debug.rawUnits 影子字段
	Breaks   bool // 在调试 JSON 中输出片段数量与超宽片段统计
}

// Typesetter 提供字体度量：单个字符的宽度与行的纵向度量，单位均为 mm。
// 实现必须是确定性的，且可被并发读取。
type Typesetter interface {
	CharWidth(style TextStyle, r rune) float64
	Metrics(style TextStyle) FontMetrics
}

// ImageSource resolves an image reference from the document.
type ImageSource interface {
	Open(src string) (element.Image, error)
}

// ImageSourceFunc adapts a function to ImageSource.
type ImageSourceFunc func(src string) (element.Image, error)

func (f ImageSourceFunc) Open(src string) (element.Image, error) { return f(src) }

// FileImages loads images from disk. Relative paths are resolved against
// BaseDir and rejected when BaseDir is empty.
type FileImages struct {
	BaseDir string
}

func (f FileImages) Open(src string) (element.Image, error) {
	path := src
	if !filepath.IsAbs(path) {
		if f.BaseDir == "" {
			return element.Image{}, fmt.Errorf("未指定资源目录时不允许使用相对路径：%s", src)
		}
		path = filepath.Join(f.BaseDir, path)
	}
	return element.FromPath(path)
}

func (o BuildOptions) penalties() wrap.Penalties {
	if o.Penalties != nil {
		return *o.Penalties
	}
	return wrap.DefaultPenalties()
}

func (o BuildOptions) pageSize() (float64, float64) {
	if o.PageSize.Width > 0 && o.PageSize.Height > 0 {
		return o.PageSize.Width, o.PageSize.Height
	}
	w, h, _ := PageSize(defaultPaper)
	return w, h
}

func (o BuildOptions) images() ImageSource {
	if o.Images != nil {
		return o.Images
	}
	return FileImages{BaseDir: o.BaseDir}
}

func (o BuildOptions) logger() *log.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return log.New(io.Discard)
}

func (o BuildOptions) fontSize() float64 {
	if o.Text.FontSize > 0 {
		return o.Text.FontSize * PtToMm
	}
	return defaultFontSizePt * PtToMm
}

func (o BuildOptions) lineHeight() LineHeightSpec {
	f := o.Text.LineHeight
	if f <= 0 {
		f = defaultLineHeightFactor
	}
	return LineHeightSpec{Kind: LineHeightFactor, Factor: f}
}

// normalizeAlign maps DSL alignment words to left/center/right, or "" when unknown.
func normalizeAlign(v string) string {
	if a, ok := geom.ParseAlignment(v); ok {
		return a.String()
	}
	return ""
}
