package layout

import "image"

// 该文件定义布局结果与资源描述，供布局计算、渲染与调试 JSON 共用。
// 所有坐标均为页面坐标：原点在左上角，y 轴向下，单位 mm。

// Result 保存布局后的页面与资源信息。
type Result struct {
	Pages     []Page       `json:"pages"`
	Resources ResourceSet  `json:"resources"`
	Meta      DocumentMeta `json:"meta"`
}

// ResourceSet 记录解析出的字体、颜色、图片与样式定义。
type ResourceSet struct {
	Fonts  map[string]FontResource  `json:"fonts"`
	Colors map[string]Color         `json:"colors"`
	Images map[string]ImageResource `json:"images"`
	Styles map[string]Style         `json:"styles"`
}

// FontResource 描述字体资源，src 可以是文件路径或 embed:<内置字体名>。
type FontResource struct {
	Name   string `json:"name"`
	Src    string `json:"src"`
	Style  string `json:"style,omitempty"`
	Family string `json:"family"` // 渲染器使用的 Family 名称
}

// ImageResource 记录图片资源；DPI 为 0 时使用默认 300。
type ImageResource struct {
	Name string  `json:"name"`
	Src  string  `json:"src"`
	DPI  float64 `json:"dpi,omitempty"`
}

// Color 采用 0-255 的 RGB 数值。
type Color struct {
	R int `json:"r"`
	G int `json:"g"`
	B int `json:"b"`
}

// TextStyle is the resolved style of a span of text.
type TextStyle struct {
	Font  FontResource `json:"font"`
	Size  float64      `json:"size"` // mm
	Color Color        `json:"color"`
}

// FontMetrics holds vertical metrics of a style in mm. Both values are positive.
type FontMetrics struct {
	Ascent  float64
	Descent float64
}

// Page 记录页面尺寸、边距与最终可以直接渲染的元素。
type Page struct {
	Width  float64    `json:"width"`
	Height float64    `json:"height"`
	Margin Margin     `json:"margin"`
	Texts  []TextBox  `json:"texts"`
	Images []ImageBox `json:"images"`
}

// Margin 以毫米为单位。
type Margin struct {
	Top    float64 `json:"top"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
	Left   float64 `json:"left"`
}

// TextBox 表示一个已经排好坐标的段落（或段落在某一页上的部分）。
type TextBox struct {
	X          float64       `json:"x"`
	Y          float64       `json:"y"`
	Width      float64       `json:"width"`
	LineHeight float64       `json:"lineHeight"`
	Lines      []TextLine    `json:"lines"`
	Height     float64       `json:"height"`
	Align      string        `json:"align,omitempty"` // left/center/right，省略时为 left
	Debug      *TextBoxDebug `json:"debug,omitempty"`
}

// TextLine 表示排版后的一行文本：若干带样式的片段以及行宽、行高。
type TextLine struct {
	Spans     []Span  `json:"spans"`
	Offset    float64 `json:"offset,omitempty"` // 对齐产生的水平偏移
	Width     float64 `json:"width"`
	Height    float64 `json:"height"`
	Ascent    float64 `json:"ascent"`
	GapBefore float64 `json:"gapBefore,omitempty"`
}

// Text returns the plain text of the line.
func (l TextLine) Text() string {
	var n int
	for _, s := range l.Spans {
		n += len(s.Text)
	}
	buf := make([]byte, 0, n)
	for _, s := range l.Spans {
		buf = append(buf, s.Text...)
	}
	return string(buf)
}

// Span is a run of text in one style.
type Span struct {
	Text  string    `json:"text"`
	Style TextStyle `json:"style"`
}

// TextBoxDebug holds optional debug info displayed only when enabled by BuildOptions.
type TextBoxDebug struct {
	RawUnits  *RawUnits `json:"rawUnits,omitempty"`
	Fragments int       `json:"fragments"`
	Oversize  int       `json:"oversize,omitempty"`
}

// RawUnits describes original author-specified units for key fields.
type RawUnits struct {
	FontSize   *RawLengthJSON     `json:"fontSize,omitempty"`
	LineHeight *RawLineHeightJSON `json:"lineHeight,omitempty"`
}

// RawLengthJSON is a JSON-friendly representation of Length.
type RawLengthJSON struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
}

// RawLineHeightJSON is a JSON-friendly representation of LineHeightSpec.
type RawLineHeightJSON struct {
	Kind   string  `json:"kind"` // "factor" | "absolute"
	Factor float64 `json:"factor,omitempty"`
	Value  float64 `json:"value,omitempty"`
	Unit   string  `json:"unit,omitempty"`
}

// ImageBox 描述一张已放置的图片。X/Y 为旋转支点（图片左上角）的页面坐标，
// Width/Height 为缩放后、旋转前的尺寸，Bounds 为旋转后的外接矩形尺寸。
type ImageBox struct {
	Src      string      `json:"src"`
	X        float64     `json:"x"`
	Y        float64     `json:"y"`
	Width    float64     `json:"width"`
	Height   float64     `json:"height"`
	Rotation float64     `json:"rotation"` // 顺时针角度
	ScaleX   float64     `json:"scaleX"`
	ScaleY   float64     `json:"scaleY"`
	DPI      float64     `json:"dpi"`
	Bounds   BoundsBox   `json:"bounds"`
	Image    image.Image `json:"-"`
}

// BoundsBox is the axis-aligned rectangle an image occupies on the page.
type BoundsBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Style 用于描述可继承的文本样式。
type Style struct {
	Name    string            `json:"name"`
	Extends string            `json:"extends,omitempty"`
	Props   map[string]string `json:"props"`
}

// DocumentMeta 保存 PDF 元信息。
type DocumentMeta struct {
	Title    string   `json:"title"`
	Author   string   `json:"author"`
	Subject  string   `json:"subject"`
	Creator  string   `json:"creator"`
	Keywords []string `json:"keywords"`
}
