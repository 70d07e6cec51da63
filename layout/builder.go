package layout

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/ByLCY/quire/dsl"
	"github.com/ByLCY/quire/geom"
)

const blockSpacing = 3.0

// Build 根据 DSL AST 生成页面、段落与图片的布局结果。
func Build(doc *dsl.Document, data any, opts BuildOptions) (*Result, error) {
	if doc == nil {
		return nil, fmt.Errorf("文档为空")
	}
	if opts.Typesetter == nil {
		return nil, fmt.Errorf("layout: 缺少排版后端 Typesetter")
	}

	res, err := collectResources(doc)
	if err != nil {
		return nil, err
	}
	sections := doc.Pages()
	if len(sections) == 0 {
		return nil, fmt.Errorf("文档中缺少 page 段落")
	}

	b := &builder{opts: opts, res: res, data: data, logger: opts.logger()}
	var pages []Page
	for _, section := range sections {
		out, err := b.buildPages(section)
		if err != nil {
			return nil, err
		}
		pages = append(pages, out...)
	}
	b.logger.Debug("layout finished", "pages", len(pages))

	return &Result{
		Pages:     pages,
		Resources: res,
		Meta:      collectMeta(doc),
	}, nil
}

// builder 持有一次布局过程共享的只读依赖。
type builder struct {
	opts   BuildOptions
	res    ResourceSet
	data   any
	logger *log.Logger
}

func (b *builder) buildPages(section *dsl.PageSection) ([]Page, error) {
	width, height, err := b.resolvePageSize(section.Spec)
	if err != nil {
		return nil, err
	}
	if section.Block == nil {
		return nil, fmt.Errorf("page 段落缺少内容")
	}
	margin := b.resolveMargin(section.Spec.Params)
	collector := newPageCollector(width, height, margin)

	// 根上下文从内容区域顶部开始排版。
	root := &flowContext{
		b:              b,
		baseX:          margin.Left,
		baseY:          collector.contentTop(),
		width:          width - margin.Left - margin.Right,
		cursorY:        collector.contentTop(),
		collector:      collector,
		allowPageBreak: true,
	}
	if root.width <= 0 {
		return nil, fmt.Errorf("页边距过大，内容区域宽度为 %gmm", root.width)
	}
	if err := root.processBlock(section.Block); err != nil {
		return nil, err
	}
	return collector.pages(), nil
}

type flowContext struct {
	b              *builder
	baseX          float64
	baseY          float64
	width          float64
	cursorY        float64
	parent         *flowContext
	collector      *pageCollector
	allowPageBreak bool
	// textAlign 继承自父 flow 的对齐方式（left/center/right），用于未显式声明 align 的子元素。
	textAlign string
}

// processBlock 会依次处理 block 内的命令，支持 flow、absolute、text、image。
func (ctx *flowContext) processBlock(block *dsl.Block) error {
	for _, stmt := range block.Statements {
		if stmt.Command == nil {
			continue
		}
		cmd := stmt.Command
		var err error
		switch cmd.Name {
		case "flow":
			err = ctx.handleFlow(cmd)
		case "absolute":
			err = ctx.handleAbsolute(cmd)
		case "text":
			err = ctx.handleText(cmd)
		case "image":
			err = ctx.handleImage(cmd)
		default:
			// 其余命令暂未实现，忽略即可
			ctx.b.logger.Debug("ignoring unknown command", "name", cmd.Name, "pos", cmd.Pos)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (ctx *flowContext) child(baseX, baseY, width float64) *flowContext {
	return &flowContext{
		b:              ctx.b,
		baseX:          baseX,
		baseY:          baseY,
		width:          width,
		cursorY:        baseY,
		parent:         ctx,
		collector:      ctx.collector,
		allowPageBreak: ctx.allowPageBreak,
		textAlign:      ctx.textAlign,
	}
}

func (ctx *flowContext) handleFlow(cmd *dsl.Command) error {
	if cmd.Block == nil {
		return fmt.Errorf("flow 语句缺少子内容")
	}
	styleName, attrs := parseArgs(cmd.Args, false)
	attrs = mergeStyleAttributes(styleName, attrs, ctx.b.res.Styles)
	width := ctx.width
	if v := attrs["width"]; v != "" {
		if w := parseDimension(v, ctx.width); w > 0 && w <= ctx.width {
			width = w
		}
	}
	align := normalizeAlign(attrs["align"])
	offset := 0.0
	if a, ok := geom.ParseAlignment(align); ok {
		offset = math.Max(a.Offset(ctx.width, width), 0)
	}

	child := ctx.child(ctx.baseX+offset, ctx.cursorY, width)
	if align != "" {
		child.textAlign = align
	}
	if err := child.processBlock(cmd.Block); err != nil {
		return err
	}
	// 子 flow 可能已经翻页，游标以子 flow 为准。
	if child.cursorY != ctx.cursorY {
		ctx.cursorY = child.cursorY
	}
	return nil
}

func (ctx *flowContext) handleAbsolute(cmd *dsl.Command) error {
	if cmd.Block == nil {
		return fmt.Errorf("absolute 语句缺少子内容")
	}
	styleName, attrs := parseArgs(cmd.Args, false)
	attrs = mergeStyleAttributes(styleName, attrs, ctx.b.res.Styles)
	width := ctx.width
	if v := attrs["width"]; v != "" {
		if w := parseDimension(v, ctx.width); w > 0 {
			width = w
		}
	}
	offsetX := parseDimension(attrs["x"], ctx.width)
	offsetY := parseDimension(attrs["y"], ctx.width)

	child := ctx.child(ctx.baseX+offsetX, ctx.baseY+offsetY, width)
	child.allowPageBreak = false
	return child.processBlock(cmd.Block)
}

// fits reports whether height more millimetres fit below the cursor.
func (ctx *flowContext) fits(height float64) bool {
	if !ctx.allowPageBreak || ctx.collector == nil {
		return true
	}
	return ctx.cursorY+height <= ctx.collector.contentBottom()+1e-9
}

// atTop reports whether the cursor is at the top of the page content area,
// where breaking the page would not gain any space.
func (ctx *flowContext) atTop() bool {
	return ctx.collector == nil || ctx.cursorY <= ctx.collector.contentTop()+1e-9
}

func (ctx *flowContext) ensureSpace(height float64) {
	if ctx.fits(height) || ctx.atTop() {
		return
	}
	ctx.pageBreak()
}

func (ctx *flowContext) pageBreak() {
	if ctx.collector == nil {
		return
	}
	if ctx.parent != nil {
		ctx.parent.pageBreak()
		ctx.baseY = ctx.parent.cursorY
		ctx.cursorY = ctx.baseY
		return
	}
	ctx.collector.newPage()
	ctx.b.logger.Debug("page break", "page", len(ctx.collector.accs))
	ctx.baseY = ctx.collector.contentTop()
	ctx.cursorY = ctx.baseY
}

func (ctx *flowContext) acc() *pageAccumulator {
	if ctx.collector == nil {
		return nil
	}
	return ctx.collector.curr()
}

type pageAccumulator struct {
	texts  []TextBox
	images []ImageBox
}

type pageCollector struct {
	width   float64
	height  float64
	margin  Margin
	accs    []*pageAccumulator
	current int
}

func newPageCollector(width, height float64, margin Margin) *pageCollector {
	pc := &pageCollector{width: width, height: height, margin: margin}
	pc.newPage()
	return pc
}

func (pc *pageCollector) newPage() *pageAccumulator {
	acc := &pageAccumulator{}
	pc.accs = append(pc.accs, acc)
	pc.current = len(pc.accs) - 1
	return acc
}

func (pc *pageCollector) curr() *pageAccumulator {
	if len(pc.accs) == 0 {
		return pc.newPage()
	}
	return pc.accs[pc.current]
}

func (pc *pageCollector) contentTop() float64 { return pc.margin.Top }

func (pc *pageCollector) contentBottom() float64 { return pc.height - pc.margin.Bottom }

func (pc *pageCollector) pages() []Page {
	out := make([]Page, len(pc.accs))
	for i, acc := range pc.accs {
		out[i] = Page{
			Width:  pc.width,
			Height: pc.height,
			Margin: pc.margin,
			Texts:  acc.texts,
			Images: acc.images,
		}
	}
	return out
}

func collectResources(doc *dsl.Document) (ResourceSet, error) {
	res := ResourceSet{
		Fonts:  map[string]FontResource{},
		Colors: map[string]Color{},
		Images: map[string]ImageResource{},
		Styles: map[string]Style{},
	}
	rawStyles := map[string]Style{}

	for _, stmt := range doc.Resources() {
		if stmt.Command == nil {
			continue
		}
		switch stmt.Command.Name {
		case "font":
			font := parseFontResource(stmt.Command)
			if font.Name != "" {
				res.Fonts[font.Name] = font
			}
		case "color":
			name, value := parseColorResource(stmt.Command)
			if name == "" || value == "" {
				continue
			}
			c, err := parseColor(value)
			if err != nil {
				return res, err
			}
			res.Colors[name] = c
		case "image":
			image, err := parseImageResource(stmt.Command)
			if err != nil {
				return res, err
			}
			if image.Name != "" {
				res.Images[image.Name] = image
			}
		case "style":
			style := parseStyleResource(stmt.Command)
			if style.Name != "" {
				rawStyles[style.Name] = style
			}
		}
	}

	if _, ok := res.Fonts["Body"]; !ok {
		res.Fonts["Body"] = FontResource{Name: "Body", Src: "embed:Go-Regular", Family: "Body"}
	}

	resolved, err := resolveStyles(rawStyles)
	if err != nil {
		return res, err
	}
	res.Styles = resolved
	return res, nil
}

func collectMeta(doc *dsl.Document) DocumentMeta {
	meta := DocumentMeta{Creator: "quire"}
	for _, section := range doc.Sections {
		if section.Meta == nil || section.Meta.Block == nil {
			continue
		}
		for _, stmt := range section.Meta.Block.Statements {
			if stmt.Assignment == nil {
				continue
			}
			switch strings.ToLower(stmt.Assignment.Key) {
			case "title":
				meta.Title = valueToString(stmt.Assignment.Value)
			case "author":
				meta.Author = valueToString(stmt.Assignment.Value)
			case "subject":
				meta.Subject = valueToString(stmt.Assignment.Value)
			case "creator":
				meta.Creator = valueToString(stmt.Assignment.Value)
			case "keywords":
				meta.Keywords = valueToStringSlice(stmt.Assignment.Value)
			}
		}
	}
	return meta
}

func parseFontResource(cmd *dsl.Command) FontResource {
	if len(cmd.Args) == 0 {
		return FontResource{}
	}
	font := FontResource{Name: cmd.Args[0].Value, Family: cmd.Args[0].Value}
	if cmd.Block == nil {
		return font
	}
	for _, stmt := range cmd.Block.Statements {
		if stmt.Assignment == nil {
			continue
		}
		val := valueToString(stmt.Assignment.Value)
		switch stmt.Assignment.Key {
		case "src":
			font.Src = val
		case "style":
			font.Style = val
		case "family":
			font.Family = val
		}
	}
	return font
}

func parseImageResource(cmd *dsl.Command) (ImageResource, error) {
	if len(cmd.Args) == 0 {
		return ImageResource{}, nil
	}
	image := ImageResource{Name: cmd.Args[0].Value}
	if cmd.Block == nil {
		return image, nil
	}
	for _, stmt := range cmd.Block.Statements {
		if stmt.Assignment == nil {
			continue
		}
		val := valueToString(stmt.Assignment.Value)
		switch stmt.Assignment.Key {
		case "src":
			image.Src = val
		case "dpi":
			dpi, err := strconv.ParseFloat(val, 64)
			if err != nil || dpi <= 0 {
				return image, fmt.Errorf("图片 %s 的 dpi 无效：%s", image.Name, val)
			}
			image.DPI = dpi
		}
	}
	return image, nil
}

func parseStyleResource(cmd *dsl.Command) Style {
	if len(cmd.Args) == 0 {
		return Style{}
	}
	style := Style{Name: cmd.Args[0].Value, Props: map[string]string{}}
	if len(cmd.Args) >= 3 && strings.EqualFold(cmd.Args[1].Value, "extends") {
		style.Extends = cmd.Args[2].Value
	}
	if cmd.Block == nil {
		return style
	}
	for _, stmt := range cmd.Block.Statements {
		if stmt.Assignment == nil {
			continue
		}
		if val := valueToString(stmt.Assignment.Value); val != "" {
			style.Props[stmt.Assignment.Key] = val
		}
	}
	return style
}

func resolveStyles(styles map[string]Style) (map[string]Style, error) {
	resolved := map[string]Style{}
	visiting := map[string]bool{}

	var dfs func(name string) (Style, error)
	dfs = func(name string) (Style, error) {
		if style, ok := resolved[name]; ok {
			return style, nil
		}
		style, ok := styles[name]
		if !ok {
			return Style{}, fmt.Errorf("style %s 未定义", name)
		}
		if visiting[name] {
			return Style{}, fmt.Errorf("style 继承存在循环：%s", name)
		}
		visiting[name] = true

		props := map[string]string{}
		if style.Extends != "" {
			parent, err := dfs(style.Extends)
			if err != nil {
				return Style{}, err
			}
			for k, v := range parent.Props {
				props[k] = v
			}
		}
		for k, v := range style.Props {
			props[k] = v
		}
		style.Props = props
		resolved[name] = style
		delete(visiting, name)
		return style, nil
	}

	for name := range styles {
		if _, err := dfs(name); err != nil {
			return nil, err
		}
	}
	return resolved, nil
}

func parseColorResource(cmd *dsl.Command) (string, string) {
	if len(cmd.Args) == 0 {
		return "", ""
	}
	name := cmd.Args[0].Value
	value := ""
	if len(cmd.Args) > 1 {
		value = cmd.Args[len(cmd.Args)-1].Value
	}
	return name, value
}

var pagePresets = map[string][2]float64{
	"A3":     {297, 420},
	"A4":     {210, 297},
	"A5":     {148, 210},
	"LETTER": {215.9, 279.4},
	"LEGAL":  {215.9, 355.6},
}

// PageSize returns the portrait width and height of a named paper size in mm.
func PageSize(name string) (float64, float64, bool) {
	base, ok := pagePresets[strings.ToUpper(strings.TrimSpace(name))]
	return base[0], base[1], ok
}

// resolvePageSize 解析 page 头部的纸张：预设名称，或 default 表示 BuildOptions.PageSize。
// landscape / portrait 决定宽高中哪一边更长。
func (b *builder) resolvePageSize(spec dsl.PageSpec) (float64, float64, error) {
	var width, height float64
	if strings.EqualFold(spec.Size, "default") {
		width, height = b.opts.pageSize()
	} else {
		var ok bool
		if width, height, ok = PageSize(spec.Size); !ok {
			return 0, 0, fmt.Errorf("暂不支持的纸张尺寸：%s", spec.Size)
		}
	}
	for _, token := range spec.Params {
		switch token.Value {
		case "landscape":
			if width < height {
				width, height = height, width
			}
		case "portrait":
			if width > height {
				width, height = height, width
			}
		}
	}
	return width, height, nil
}

// resolveMargin 解析 page 头部的 margin 参数，语义与 CSS 类似：
// 1 个值四边相同；2 个值为上下、左右；3 个值为上、右、下（左为 0）；4 个值为上右下左，多余的忽略。
func (b *builder) resolveMargin(params []*dsl.Lexeme) Margin {
	margin := Margin{Top: 20, Right: 20, Bottom: 20, Left: 20}
	if b.opts.Margin != nil {
		margin = *b.opts.Margin
	}
	for i, token := range params {
		if token.Value != "margin" {
			continue
		}
		var vals []float64
		for j := i + 1; j < len(params) && len(vals) < 4; j++ {
			l, ok := ParseLength(params[j].Value)
			if !ok {
				break
			}
			vals = append(vals, l.ToMM())
		}
		switch len(vals) {
		case 1:
			v := vals[0]
			margin = Margin{Top: v, Right: v, Bottom: v, Left: v}
		case 2:
			margin = Margin{Top: vals[0], Right: vals[1], Bottom: vals[0], Left: vals[1]}
		case 3:
			margin = Margin{Top: vals[0], Right: vals[1], Bottom: vals[2], Left: 0}
		case 4:
			margin = Margin{Top: vals[0], Right: vals[1], Bottom: vals[2], Left: vals[3]}
		}
	}
	return margin
}

func parseArgs(args []*dsl.Lexeme, allowStyle bool) (string, map[string]string) {
	result := map[string]string{}
	if len(args) == 0 {
		return "", result
	}
	cursor := 0
	var style string
	// 首个标识符仅在其后是成对的 key value 时才视为样式名，例如 `text Body size 12pt`。
	if allowStyle && args[0].Type == "Ident" && len(args)%2 == 1 {
		style = args[0].Value
		cursor = 1
	}
	for cursor < len(args)-1 {
		result[args[cursor].Value] = args[cursor+1].Value
		cursor += 2
	}
	return style, result
}

func mergeStyleAttributes(style string, inline map[string]string, styles map[string]Style) map[string]string {
	out := make(map[string]string)
	if s, ok := styles[style]; ok {
		for k, v := range s.Props {
			out[k] = v
		}
	}
	for k, v := range inline {
		out[k] = v
	}
	return out
}

func resolveColor(value string, res ResourceSet) (Color, error) {
	if value == "" {
		return Color{R: 30, G: 30, B: 30}, nil
	}
	if c, ok := res.Colors[value]; ok {
		return c, nil
	}
	return parseColor(value)
}

func parseColor(value string) (Color, error) {
	hex := strings.TrimPrefix(value, "#")
	var expanded string
	switch len(hex) {
	case 3:
		expanded = strings.Repeat(hex[0:1], 2) + strings.Repeat(hex[1:2], 2) + strings.Repeat(hex[2:3], 2)
	case 6, 8:
		expanded = hex[:6]
	default:
		return Color{}, fmt.Errorf("颜色值 %s 无法解析", value)
	}
	v, err := strconv.ParseUint(expanded, 16, 32)
	if err != nil {
		return Color{}, fmt.Errorf("颜色值 %s 无法解析", value)
	}
	return Color{R: int(v >> 16 & 0xff), G: int(v >> 8 & 0xff), B: int(v & 0xff)}, nil
}

func valueToString(val *dsl.Value) string {
	if val == nil {
		return ""
	}
	switch {
	case val.String != nil:
		return string(*val.String)
	case val.Number != nil:
		return *val.Number
	case val.Color != nil:
		return *val.Color
	case val.Expr != nil:
		var builder strings.Builder
		for _, part := range val.Expr.Parts {
			builder.WriteString(part.Value)
		}
		return builder.String()
	default:
		return ""
	}
}

func valueToStringSlice(val *dsl.Value) []string {
	if val == nil {
		return nil
	}
	if val.Array != nil {
		out := make([]string, 0, len(val.Array.Values))
		for _, item := range val.Array.Values {
			if s := valueToString(item); s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	if s := valueToString(val); s != "" {
		return []string{s}
	}
	return nil
}
