// Package geom holds the value types shared by layout and placement: sizes,
// positions, scales, rotations and horizontal alignment. All lengths are in
// millimetres.
package geom

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Size is a width/height pair.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// NewSize returns a Size. Negative inputs are clamped to zero.
func NewSize(width, height float64) Size {
	return Size{Width: math.Max(width, 0), Height: math.Max(height, 0)}
}

// Position is an (x, y) offset.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Add translates p by o.
func (p Position) Add(o Position) Position {
	return Position{X: p.X + o.X, Y: p.Y + o.Y}
}

// Scale holds independent horizontal and vertical multipliers.
type Scale struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Identity is the 1:1 scale.
var Identity = Scale{X: 1, Y: 1}

// Apply scales a size.
func (s Scale) Apply(size Size) Size {
	return NewSize(size.Width*s.X, size.Height*s.Y)
}

// ErrRotationRange reports a rotation outside [-180, 180] degrees.
var ErrRotationRange = errors.New("geom: rotation must lie within [-180, 180] degrees")

// Rotation is a clockwise angle in degrees within [-180, 180]. The zero value
// is no rotation; other values can only be built through NewRotation, so a
// Rotation held by a caller is always in range.
type Rotation struct {
	degrees float64
}

// NewRotation validates d and returns the matching Rotation.
func NewRotation(d float64) (Rotation, error) {
	if math.IsNaN(d) || d < -180 || d > 180 {
		return Rotation{}, fmt.Errorf("%w: got %g", ErrRotationRange, d)
	}
	return Rotation{degrees: d}, nil
}

// MustRotation is NewRotation for constants; it panics on invalid input.
func MustRotation(d float64) Rotation {
	r, err := NewRotation(d)
	if err != nil {
		panic(err)
	}
	return r
}

// Degrees returns the clockwise angle in degrees.
func (r Rotation) Degrees() float64 { return r.degrees }

// Radians returns the clockwise angle in radians.
func (r Rotation) Radians() float64 { return r.degrees * math.Pi / 180 }

func (r Rotation) String() string { return fmt.Sprintf("%g°", r.degrees) }

// Alignment positions an element horizontally inside the available width.
type Alignment int

const (
	Left Alignment = iota
	Center
	Right
)

func (a Alignment) String() string {
	switch a {
	case Center:
		return "center"
	case Right:
		return "right"
	default:
		return "left"
	}
}

// ParseAlignment accepts left/center/right plus the start/end/middle aliases.
// Unknown values yield Left and false.
func ParseAlignment(v string) (Alignment, bool) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "left", "start":
		return Left, true
	case "center", "centre", "middle":
		return Center, true
	case "right", "end":
		return Right, true
	default:
		return Left, false
	}
}

// Offset returns the horizontal offset of an element of the given width inside
// available. The result may be negative when the element is wider than the
// available space.
func (a Alignment) Offset(available, width float64) float64 {
	switch a {
	case Center:
		return (available - width) / 2
	case Right:
		return available - width
	default:
		return 0
	}
}
