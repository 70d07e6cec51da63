// Package element implements placeable page elements. An Image is decoded
// once, configured through a chain of WithX calls and rendered into an Area
// with a single draw call.
package element

import (
	"bytes"
	"errors"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/ByLCY/quire/geom"
)

// DefaultDPI is the pixel density assumed when no override is set.
const DefaultDPI = 300.0

const mmPerInch = 25.4

// Area is the region an element renders into. Positions are measured from
// the area's top-left corner with y growing downward, in millimetres.
type Area interface {
	Size() geom.Size
	// DrawImage draws img so that its top-left corner lands on at and the
	// picture is turned clockwise by rot around that corner.
	DrawImage(img image.Image, at geom.Position, scale geom.Scale, rot geom.Rotation, dpi float64)
}

// RenderResult describes the space an element consumed.
type RenderResult struct {
	Size geom.Size
	// HasMore is always false for images: an image is drawn whole or not at all.
	HasMore bool
}

// Image is a raster element. The zero value is not usable; construct one
// with FromImage, FromReader or FromPath.
type Image struct {
	data      image.Image
	alignment geom.Alignment
	position  *geom.Position
	scale     geom.Scale
	rotation  geom.Rotation
	dpi       float64
}

// FromImage wraps already decoded pixels.
func FromImage(img image.Image) Image {
	return Image{data: img, scale: geom.Identity}
}

// FromReader decodes an image from r. The name is used in error messages
// only and may be empty.
func FromReader(name string, r io.Reader) (Image, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return Image{}, sourceError(ErrOpen, name, err)
	}
	return decode(name, raw)
}

// FromPath opens and decodes the image file at path.
func FromPath(path string) (Image, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Image{}, sourceError(ErrOpen, path, err)
	}
	return decode(path, raw)
}

func decode(name string, raw []byte) (Image, error) {
	if _, _, err := image.DecodeConfig(bytes.NewReader(raw)); err != nil {
		if errors.Is(err, image.ErrFormat) {
			return Image{}, sourceError(ErrFormat, name, err)
		}
		return Image{}, sourceError(ErrDecode, name, err)
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return Image{}, sourceError(ErrDecode, name, err)
	}
	return FromImage(img), nil
}

// WithPosition places the image at an absolute position inside the area.
// The position locates the top-left corner of the rotated bounding box and
// takes precedence over the alignment.
func (i Image) WithPosition(p geom.Position) Image {
	i.position = &p
	return i
}

// WithScale sets the horizontal and vertical scale.
func (i Image) WithScale(s geom.Scale) Image {
	i.scale = s
	return i
}

// WithAlignment sets the horizontal alignment used when no position is set.
func (i Image) WithAlignment(a geom.Alignment) Image {
	i.alignment = a
	return i
}

// WithRotation sets the clockwise rotation around the image's top-left corner.
func (i Image) WithRotation(r geom.Rotation) Image {
	i.rotation = r
	return i
}

// WithDPI overrides the pixel density. Non-positive values restore the default.
func (i Image) WithDPI(dpi float64) Image {
	if dpi <= 0 {
		dpi = 0
	}
	i.dpi = dpi
	return i
}

// Bounds returns the pixel dimensions of the decoded image.
func (i Image) Bounds() image.Rectangle {
	if i.data == nil {
		return image.Rectangle{}
	}
	return i.data.Bounds()
}

func (i Image) Alignment() geom.Alignment { return i.alignment }
func (i Image) Scale() geom.Scale         { return i.scale }
func (i Image) Rotation() geom.Rotation   { return i.rotation }

// Position reports the absolute position, if one was set.
func (i Image) Position() (geom.Position, bool) {
	if i.position == nil {
		return geom.Position{}, false
	}
	return *i.position, true
}

// DPI returns the effective pixel density.
func (i Image) DPI() float64 {
	if i.dpi > 0 {
		return i.dpi
	}
	return DefaultDPI
}

// Size returns the scaled, unrotated size in millimetres.
func (i Image) Size() geom.Size {
	b := i.Bounds()
	dpi := i.DPI()
	return geom.NewSize(
		mmPerInch*(i.scale.X*float64(b.Dx()))/dpi,
		mmPerInch*(i.scale.Y*float64(b.Dy()))/dpi,
	)
}

// Place computes where the image goes inside an area of the given width. It
// returns the anchor passed to Area.DrawImage and the bounding box size.
func (i Image) Place(width float64) (geom.Position, geom.Size) {
	offset, bbox := geom.BoundingBox(i.rotation, i.Size())
	var origin geom.Position
	if i.position != nil {
		origin = *i.position
	} else {
		origin = geom.Position{X: i.alignment.Offset(width, bbox.Width)}
	}
	// offset is measured upward from the bounding box's lower-left corner.
	anchor := origin.Add(geom.Position{X: offset.X, Y: bbox.Height - offset.Y})
	return anchor, bbox
}

// Render draws the image into area. With an absolute position the image does
// not consume flow space and the reported size is zero.
func (i Image) Render(area Area) (RenderResult, error) {
	if i.data == nil {
		return RenderResult{}, errors.New("element: render of an empty image")
	}
	anchor, bbox := i.Place(area.Size().Width)
	area.DrawImage(i.data, anchor, i.scale, i.rotation, i.DPI())
	var result RenderResult
	if i.position == nil {
		result.Size = bbox
	}
	return result, nil
}
