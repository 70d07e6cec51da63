package layout

import (
	"strconv"
	"strings"
)

// 长度与行高的单位换算。DSL 中的长度保留原始单位，布局内部统一使用 mm。

// Unit represents the original unit of a length value as specified in DSL.
type Unit int

const (
	UnitNone Unit = iota // unit-less numbers, read as mm where a length is expected
	UnitMM
	UnitCM
	UnitIN
	UnitPT
	UnitPercent
)

// Conversion constants between pt and mm.
const (
	PtToMm = 25.4 / 72
	MmToPt = 72 / 25.4
)

var unitSuffixes = []struct {
	suffix string
	unit   Unit
	mm     float64
}{
	{"mm", UnitMM, 1},
	{"cm", UnitCM, 10},
	{"in", UnitIN, 25.4},
	{"pt", UnitPT, PtToMm},
	{"%", UnitPercent, 0},
}

func (u Unit) String() string {
	for _, s := range unitSuffixes {
		if s.unit == u {
			return s.suffix
		}
	}
	return ""
}

// Length preserves a numeric value with its unit.
type Length struct {
	Value float64 `json:"value"`
	Unit  Unit    `json:"unit"`
}

func (l Length) IsZero() bool { return l.Value == 0 }

// ToMM converts the length to millimetres. Percentages resolve to zero; use
// Resolve when a reference length is known.
func (l Length) ToMM() float64 {
	switch l.Unit {
	case UnitNone:
		return l.Value
	case UnitPercent:
		return 0
	}
	for _, s := range unitSuffixes {
		if s.unit == l.Unit {
			return l.Value * s.mm
		}
	}
	return l.Value
}

func (l Length) ToPT() float64 { return l.ToMM() * MmToPt }

// Resolve converts to millimetres, reading percentages against reference.
func (l Length) Resolve(reference float64) float64 {
	if l.Unit == UnitPercent {
		return reference * l.Value / 100
	}
	return l.ToMM()
}

// ParseLength parses a DSL length string such as "12pt", "2.5cm" or "40%".
// The boolean is false when the string is not a number.
func ParseLength(value string) (Length, bool) {
	v := strings.ToLower(strings.TrimSpace(value))
	if v == "" {
		return Length{}, false
	}
	unit := UnitNone
	for _, s := range unitSuffixes {
		if strings.HasSuffix(v, s.suffix) {
			unit = s.unit
			v = strings.TrimSpace(strings.TrimSuffix(v, s.suffix))
			break
		}
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return Length{}, false
	}
	return Length{Value: f, Unit: unit}, true
}

// parseLength returns value in mm, or 0 when it does not parse.
func parseLength(value string) float64 {
	l, _ := ParseLength(value)
	return l.ToMM()
}

// parseDimension is parseLength with percentages resolved against reference.
func parseDimension(value string, reference float64) float64 {
	l, _ := ParseLength(value)
	return l.Resolve(reference)
}

// LineHeightKind distinguishes factor-based vs absolute line-height specification.
type LineHeightKind int

const (
	LineHeightFactor LineHeightKind = iota
	LineHeightAbsolute
)

// LineHeightSpec preserves original author intent: either a factor (e.g., 1.2x) or an absolute length (e.g., 18pt).
type LineHeightSpec struct {
	Kind   LineHeightKind `json:"kind"`
	Factor float64        `json:"factor,omitempty"`
	Len    Length         `json:"len,omitempty"`
}

// ParseLineHeight reads "1.2x", a bare factor such as "1.5", or an absolute
// length with a unit.
func ParseLineHeight(value string) (LineHeightSpec, bool) {
	v := strings.ToLower(strings.TrimSpace(value))
	if f, err := strconv.ParseFloat(strings.TrimSuffix(v, "x"), 64); err == nil {
		if f <= 0 {
			return LineHeightSpec{}, false
		}
		return LineHeightSpec{Kind: LineHeightFactor, Factor: f}, true
	}
	l, ok := ParseLength(v)
	if !ok || l.Value <= 0 || l.Unit == UnitPercent {
		return LineHeightSpec{}, false
	}
	return LineHeightSpec{Kind: LineHeightAbsolute, Len: l}, true
}

// Resolve computes the absolute line height in mm for a font size in mm.
func (s LineHeightSpec) Resolve(fontSize float64) float64 {
	switch s.Kind {
	case LineHeightAbsolute:
		return s.Len.ToMM()
	default:
		f := s.Factor
		if f <= 0 {
			f = defaultLineHeightFactor
		}
		return fontSize * f
	}
}

func (s LineHeightSpec) rawJSON() *RawLineHeightJSON {
	if s.Kind == LineHeightAbsolute {
		return &RawLineHeightJSON{Kind: "absolute", Value: s.Len.Value, Unit: s.Len.Unit.String()}
	}
	return &RawLineHeightJSON{Kind: "factor", Factor: s.Factor}
}
