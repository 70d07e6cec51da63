package layout

import (
	"fmt"
	"image"
	"strconv"
	"strings"

	"github.com/ByLCY/quire/dsl"
	"github.com/ByLCY/quire/element"
	"github.com/ByLCY/quire/geom"
)

// imageSpec is the parsed form of
//
//	image <name|src> [rotate <deg>] [scale <x> [<y>]] [dpi <n>] [align left|center|right] [x <len>] [y <len>]
type imageSpec struct {
	ref      string
	rotation geom.Rotation
	scale    geom.Scale
	dpi      float64
	align    string
	position *geom.Position
}

func parseImageArgs(args []*dsl.Lexeme, reference float64) (imageSpec, error) {
	spec := imageSpec{scale: geom.Identity}
	number := func(i int, key string) (float64, error) {
		if i >= len(args) {
			return 0, fmt.Errorf("image 参数 %s 缺少取值", key)
		}
		v := strings.TrimSuffix(strings.ToLower(args[i].Value), "deg")
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, fmt.Errorf("image 参数 %s 的取值无效：%s", key, args[i].Value)
		}
		return f, nil
	}
	isNumber := func(i int) bool {
		return i < len(args) && args[i].Type == "Number"
	}

	for i := 0; i < len(args); i++ {
		key := args[i].Value
		switch key {
		case "rotate":
			d, err := number(i+1, key)
			if err != nil {
				return spec, err
			}
			rot, err := geom.NewRotation(d)
			if err != nil {
				return spec, fmt.Errorf("image rotate: %w", err)
			}
			spec.rotation = rot
			i++
		case "scale":
			sx, err := number(i+1, key)
			if err != nil {
				return spec, err
			}
			sy := sx
			i++
			if isNumber(i + 1) {
				if sy, err = number(i+1, key); err != nil {
					return spec, err
				}
				i++
			}
			if sx <= 0 || sy <= 0 {
				return spec, fmt.Errorf("image scale 必须为正数")
			}
			spec.scale = geom.Scale{X: sx, Y: sy}
		case "dpi":
			d, err := number(i+1, key)
			if err != nil {
				return spec, err
			}
			if d <= 0 {
				return spec, fmt.Errorf("image dpi 必须为正数")
			}
			spec.dpi = d
			i++
		case "align":
			if i+1 >= len(args) || normalizeAlign(args[i+1].Value) == "" {
				return spec, fmt.Errorf("image align 取值无效")
			}
			spec.align = normalizeAlign(args[i+1].Value)
			i++
		case "x", "y":
			if i+1 >= len(args) {
				return spec, fmt.Errorf("image 参数 %s 缺少取值", key)
			}
			l, ok := ParseLength(args[i+1].Value)
			if !ok {
				return spec, fmt.Errorf("image 参数 %s 的取值无效：%s", key, args[i+1].Value)
			}
			if spec.position == nil {
				spec.position = &geom.Position{}
			}
			if key == "x" {
				spec.position.X = l.Resolve(reference)
			} else {
				spec.position.Y = l.Resolve(reference)
			}
			i++
		case "src":
			if i+1 >= len(args) {
				return spec, fmt.Errorf("image 参数 src 缺少取值")
			}
			spec.ref = args[i+1].Value
			i++
		default:
			if i == 0 && spec.ref == "" {
				spec.ref = key
				continue
			}
			return spec, fmt.Errorf("image 不支持的参数：%s", key)
		}
	}
	if spec.ref == "" {
		return spec, fmt.Errorf("image 语句缺少资源或 src")
	}
	return spec, nil
}

func (ctx *flowContext) handleImage(cmd *dsl.Command) error {
	b := ctx.b
	spec, err := parseImageArgs(cmd.Args, ctx.width)
	if err != nil {
		return err
	}

	src, dpi := spec.ref, b.opts.DPI
	if r, ok := b.res.Images[spec.ref]; ok {
		if r.Src != "" {
			src = r.Src
		}
		if r.DPI > 0 {
			dpi = r.DPI
		}
	}
	if spec.dpi > 0 {
		dpi = spec.dpi
	}
	align := spec.align
	if align == "" {
		align = ctx.textAlign
	}
	alignment, _ := geom.ParseAlignment(align)

	el, err := b.opts.images().Open(src)
	if err != nil {
		return fmt.Errorf("加载图片 %s 失败: %w", src, err)
	}
	el = el.WithScale(spec.scale).
		WithRotation(spec.rotation).
		WithAlignment(alignment).
		WithDPI(dpi)

	area := &imageArea{width: ctx.width, x: ctx.baseX, y: ctx.baseY}
	if spec.position != nil {
		el = el.WithPosition(*spec.position)
	} else {
		_, bbox := el.Place(ctx.width)
		ctx.ensureSpace(bbox.Height)
		area.y = ctx.cursorY
	}

	result, err := el.Render(area)
	if err != nil {
		return err
	}
	box := area.box
	box.Src = src
	if acc := ctx.acc(); acc != nil {
		acc.images = append(acc.images, box)
	}
	b.logger.Debug("image placed", "src", src, "x", box.X, "y", box.Y, "rotation", box.Rotation, "bounds", box.Bounds)

	if h := result.Size.Height; h > 0 {
		ctx.cursorY += h + blockSpacing
	}
	return nil
}

// imageArea adapts a flow region to element.Area and records the single
// draw call as an ImageBox in page coordinates.
type imageArea struct {
	width float64
	x, y  float64
	box   ImageBox
}

func (a *imageArea) Size() geom.Size { return geom.Size{Width: a.width} }

func (a *imageArea) DrawImage(img image.Image, at geom.Position, scale geom.Scale, rot geom.Rotation, dpi float64) {
	px := img.Bounds()
	size := scale.Apply(geom.Size{
		Width:  25.4 * float64(px.Dx()) / dpi,
		Height: 25.4 * float64(px.Dy()) / dpi,
	})
	offset, bbox := geom.BoundingBox(rot, size)
	anchor := geom.Position{X: a.x + at.X, Y: a.y + at.Y}
	a.box = ImageBox{
		X:        anchor.X,
		Y:        anchor.Y,
		Width:    size.Width,
		Height:   size.Height,
		Rotation: rot.Degrees(),
		ScaleX:   scale.X,
		ScaleY:   scale.Y,
		DPI:      dpi,
		Image:    img,
		Bounds: BoundsBox{
			X:      anchor.X - offset.X,
			Y:      anchor.Y - (bbox.Height - offset.Y),
			Width:  bbox.Width,
			Height: bbox.Height,
		},
	}
}

var _ element.Area = (*imageArea)(nil)
