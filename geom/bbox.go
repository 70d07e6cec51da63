package geom

import "math"

// quadrant classifies a rotation into one of the half-open angle ranges the
// bounding box computation distinguishes.
type quadrant int

const (
	quadrantNone     quadrant = iota // d == 0
	quadrantFirst                    // 0 < d <= 90
	quadrantSecond                   // 90 < d <= 180
	quadrantFourth                   // -90 < d < 0
	quadrantThird                    // -180 <= d <= -90
)

func quadrantOf(d float64) quadrant {
	switch {
	case d > 0 && d <= 90:
		return quadrantFirst
	case d > 90 && d <= 180:
		return quadrantSecond
	case d < 0 && d > -90:
		return quadrantFourth
	case d <= -90 && d >= -180:
		return quadrantThird
	default:
		return quadrantNone
	}
}

func radians(d float64) float64 { return d * math.Pi / 180 }

// BoundingBox computes the smallest axis-aligned rectangle containing a
// rectangle of the given size after rotating it by rot around its anchor
// corner. The returned offset locates the anchor inside that rectangle,
// measured from the rectangle's lower-left corner with y growing upward.
// Unrotated, the anchor is the top-left corner, hence offset (0, h).
func BoundingBox(rot Rotation, size Size) (Position, Size) {
	w, h := size.Width, size.Height
	d := rot.Degrees()
	switch quadrantOf(d) {
	case quadrantFirst:
		theta := radians(d)
		st, ct := math.Sin(theta), math.Cos(theta)
		bw, bh := h*st+w*ct, w*st+h*ct
		alpha := radians(180 - (d + 90))
		return Position{X: h * math.Cos(alpha), Y: bh}, NewSize(bw, bh)
	case quadrantSecond:
		alpha := radians(d - 90)
		sa, ca := math.Sin(alpha), math.Cos(alpha)
		bw, bh := w*sa+h*ca, w*ca+h*sa
		return Position{X: bw, Y: w * ca}, NewSize(bw, bh)
	case quadrantFourth:
		theta := math.Abs(radians(d))
		st, ct := math.Sin(theta), math.Cos(theta)
		bw, bh := h*st+w*ct, h*ct+w*st
		return Position{X: 0, Y: h * ct}, NewSize(bw, bh)
	case quadrantThird:
		alpha := radians(180 + d)
		sa, ca := math.Sin(alpha), math.Cos(alpha)
		bw, bh := h*sa+w*ca, h*ca+w*sa
		return Position{X: w * ca, Y: 0}, NewSize(bw, bh)
	default:
		return Position{X: 0, Y: h}, NewSize(w, h)
	}
}
