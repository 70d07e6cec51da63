package wrap

import "math"

// Item is anything the line breaker can place: a box of fixed width that may
// be followed by glue (a space, counted only when the item does not end the
// line) and a penalty (a hyphen, counted only when it does).
type Item interface {
	Width() float64
	WhitespaceWidth() float64
	PenaltyWidth() float64
}

// Penalties tune the cost function of Break. Costs are compared in squared
// layout units, so these values only decide between otherwise close layouts.
type Penalties struct {
	// Line is charged for every line, favouring fewer lines.
	Line int64
	// Hyphen is charged for every line ending in a hyphen.
	Hyphen int64
	// ShortLastLineFraction and ShortLastLine penalise a final line narrower
	// than width/ShortLastLineFraction.
	ShortLastLineFraction int64
	ShortLastLine         int64
}

// DefaultPenalties returns the penalties used by Wrap.
func DefaultPenalties() Penalties {
	return Penalties{
		Line:                  1000,
		Hyphen:                25,
		ShortLastLineFraction: 4,
		ShortLastLine:         25,
	}
}

const (
	unitsPerMM = 1000
	maxUnits   = int64(1) << 40
	maxGap     = int64(1) << 30
	costCap    = math.MaxInt64 / 4
)

// toUnits converts millimetres to layout units, truncating toward zero.
func toUnits(mm float64) int64 {
	v := mm * unitsPerMM
	switch {
	case math.IsNaN(v):
		return 0
	case v >= float64(maxUnits):
		return maxUnits
	case v <= -float64(maxUnits):
		return -maxUnits
	}
	return int64(v)
}

func squared(v int64) int64 {
	if v < 0 {
		v = -v
	}
	if v > maxGap {
		return costCap
	}
	return v * v
}

func addCost(a, b int64) int64 {
	if s := a + b; s < costCap {
		return s
	}
	return costCap
}

// Break partitions items into lines for the given width in millimetres.
//
// It searches all break positions for the layout with the lowest total cost,
// where a line costs the square of its unused width plus the configured
// penalties. A line holding more than one item never exceeds width once its
// interior spaces and a trailing hyphen are counted. The comparison is made
// in truncated layout units, so the float sum may overshoot by under 1µm per
// item. A single item wider than width is placed on a line of its own. The
// returned lines are subslices of items, in order, and cover every item
// exactly once.
func Break[T Item](items []T, width float64, p Penalties) [][]T {
	n := len(items)
	if n == 0 {
		return nil
	}
	target := toUnits(width)
	if p.ShortLastLineFraction <= 0 {
		p.ShortLastLineFraction = 1
	}

	box := make([]int64, n)
	glue := make([]int64, n)
	pen := make([]int64, n)
	for i, it := range items {
		box[i] = toUnits(it.Width())
		glue[i] = toUnits(it.WhitespaceWidth())
		pen[i] = toUnits(it.PenaltyWidth())
	}

	// best[i] is the cheapest cost of laying out items[:i]; from[i] is where
	// the last line of that layout starts.
	best := make([]int64, n+1)
	from := make([]int, n+1)
	for i := 1; i <= n; i++ {
		best[i] = math.MaxInt64
		line := int64(0)
		for j := i - 1; j >= 0; j-- {
			if j == i-1 {
				line = box[j]
			} else {
				line += box[j] + glue[j]
			}
			total := line + pen[i-1]
			if j < i-1 && total > target {
				break
			}
			cost := addCost(best[j], lineCost(total, target, i == n, pen[i-1] > 0, p))
			if cost < best[i] {
				best[i] = cost
				from[i] = j
			}
		}
	}

	var lines [][]T
	for i := n; i > 0; i = from[i] {
		lines = append(lines, items[from[i]:i:i])
	}
	for l, r := 0, len(lines)-1; l < r; l, r = l+1, r-1 {
		lines[l], lines[r] = lines[r], lines[l]
	}
	return lines
}

func lineCost(total, target int64, last, hyphenated bool, p Penalties) int64 {
	cost := p.Line
	if hyphenated {
		cost += p.Hyphen
	}
	if last {
		if total*p.ShortLastLineFraction < target {
			cost += p.ShortLastLine
		}
		return cost
	}
	return addCost(cost, squared(target-total))
}

// Wrap breaks fragments into lines no wider than width millimetres using the
// default penalties.
func Wrap[S any](fragments []Fragment[S], width float64) [][]Fragment[S] {
	return Break(fragments, width, DefaultPenalties())
}
