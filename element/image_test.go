package element

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"testing"

	"github.com/ByLCY/quire/geom"
)

type drawCall struct {
	img   image.Image
	at    geom.Position
	scale geom.Scale
	rot   geom.Rotation
	dpi   float64
}

type recordingArea struct {
	size  geom.Size
	calls []drawCall
}

func (a *recordingArea) Size() geom.Size { return a.size }

func (a *recordingArea) DrawImage(img image.Image, at geom.Position, scale geom.Scale, rot geom.Rotation, dpi float64) {
	a.calls = append(a.calls, drawCall{img: img, at: at, scale: scale, rot: rot, dpi: dpi})
}

func testImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 0x80, A: 0xff})
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func approxPos(a, b geom.Position) bool { return approx(a.X, b.X) && approx(a.Y, b.Y) }

func TestRenderAlignment(t *testing.T) {
	base := FromImage(testImage(40, 20)).WithDPI(25.4)
	cases := []struct {
		align geom.Alignment
		x     float64
	}{
		{geom.Left, 0},
		{geom.Center, 30},
		{geom.Right, 60},
	}
	for _, tc := range cases {
		t.Run(tc.align.String(), func(t *testing.T) {
			area := &recordingArea{size: geom.Size{Width: 100, Height: 200}}
			res, err := base.WithAlignment(tc.align).Render(area)
			if err != nil {
				t.Fatalf("render: %v", err)
			}
			if len(area.calls) != 1 {
				t.Fatalf("expected one draw call, got %d", len(area.calls))
			}
			if got := area.calls[0].at; !approxPos(got, geom.Position{X: tc.x}) {
				t.Fatalf("anchor = %+v, want x=%v y=0", got, tc.x)
			}
			if res.HasMore {
				t.Fatalf("image reported more content")
			}
			if !approx(res.Size.Width, 40) || !approx(res.Size.Height, 20) {
				t.Fatalf("consumed size = %+v, want 40x20", res.Size)
			}
		})
	}
}

func TestRenderPassesConfiguration(t *testing.T) {
	img := testImage(30, 30)
	rot := geom.MustRotation(-45)
	el := FromImage(img).WithScale(geom.Scale{X: 2, Y: 0.5}).WithRotation(rot).WithDPI(150)
	area := &recordingArea{size: geom.Size{Width: 210}}
	if _, err := el.Render(area); err != nil {
		t.Fatalf("render: %v", err)
	}
	call := area.calls[0]
	if call.img != image.Image(img) {
		t.Fatalf("draw call did not receive the decoded image")
	}
	if call.scale != (geom.Scale{X: 2, Y: 0.5}) || call.rot != rot || call.dpi != 150 {
		t.Fatalf("unexpected draw call %+v", call)
	}
}

func TestRenderRotatedAnchor(t *testing.T) {
	el := FromImage(testImage(40, 20)).WithDPI(25.4).WithRotation(geom.MustRotation(90))
	area := &recordingArea{size: geom.Size{Width: 100}}
	res, err := el.Render(area)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	// Turned a quarter clockwise, the top-left corner sits at the top-right of a 20x40 box.
	if got := area.calls[0].at; !approxPos(got, geom.Position{X: 20, Y: 0}) {
		t.Fatalf("anchor = %+v, want (20, 0)", got)
	}
	if !approx(res.Size.Width, 20) || !approx(res.Size.Height, 40) {
		t.Fatalf("consumed size = %+v, want 20x40", res.Size)
	}

	right := el.WithAlignment(geom.Right)
	area = &recordingArea{size: geom.Size{Width: 100}}
	if _, err := right.Render(area); err != nil {
		t.Fatalf("render: %v", err)
	}
	if got := area.calls[0].at; !approxPos(got, geom.Position{X: 100, Y: 0}) {
		t.Fatalf("right aligned anchor = %+v, want (100, 0)", got)
	}
}

func TestRenderAbsolutePosition(t *testing.T) {
	el := FromImage(testImage(40, 20)).
		WithDPI(25.4).
		WithAlignment(geom.Right).
		WithPosition(geom.Position{X: 5, Y: 7})
	area := &recordingArea{size: geom.Size{Width: 100}}
	res, err := el.Render(area)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if got := area.calls[0].at; !approxPos(got, geom.Position{X: 5, Y: 7}) {
		t.Fatalf("anchor = %+v, want (5, 7)", got)
	}
	if res.Size != (geom.Size{}) {
		t.Fatalf("absolute image consumed %+v", res.Size)
	}

	rotated := el.WithRotation(geom.MustRotation(180))
	area = &recordingArea{size: geom.Size{Width: 100}}
	if _, err := rotated.Render(area); err != nil {
		t.Fatalf("render: %v", err)
	}
	// Half a turn moves the pivot to the bottom-right of the box.
	if got := area.calls[0].at; !approxPos(got, geom.Position{X: 45, Y: 27}) {
		t.Fatalf("anchor = %+v, want (45, 27)", got)
	}
}

func TestSizeUsesDPIAndScale(t *testing.T) {
	el := FromImage(testImage(300, 150))
	if got := el.Size(); !approx(got.Width, 25.4) || !approx(got.Height, 12.7) {
		t.Fatalf("default dpi size = %+v", got)
	}
	scaled := el.WithScale(geom.Scale{X: 2, Y: 3}).WithDPI(600)
	if got := scaled.Size(); !approx(got.Width, 25.4) || !approx(got.Height, 19.05) {
		t.Fatalf("scaled size = %+v", got)
	}
	if got := scaled.WithDPI(0).DPI(); got != DefaultDPI {
		t.Fatalf("reset dpi = %v", got)
	}
}

func TestWithLeavesReceiverUnchanged(t *testing.T) {
	el := FromImage(testImage(10, 10))
	_ = el.WithScale(geom.Scale{X: 3, Y: 3}).WithPosition(geom.Position{X: 1}).WithRotation(geom.MustRotation(30))
	if el.Scale() != geom.Identity {
		t.Fatalf("scale mutated: %+v", el.Scale())
	}
	if _, ok := el.Position(); ok {
		t.Fatalf("position leaked into the original value")
	}
	if el.Rotation().Degrees() != 0 {
		t.Fatalf("rotation mutated: %v", el.Rotation())
	}
}

func TestFromReaderDecodesPNG(t *testing.T) {
	el, err := FromReader("mem.png", bytes.NewReader(encodePNG(t, testImage(12, 7))))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b := el.Bounds(); b.Dx() != 12 || b.Dy() != 7 {
		t.Fatalf("bounds = %v", b)
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("disk on fire") }

func TestSourceErrorKinds(t *testing.T) {
	full := encodePNG(t, testImage(8, 8))
	cases := []struct {
		name string
		load func() (Image, error)
		kind error
	}{
		{"missing file", func() (Image, error) { return FromPath("testdata/missing.png") }, ErrOpen},
		{"read failure", func() (Image, error) { return FromReader("broken", failingReader{}) }, ErrOpen},
		{"unknown format", func() (Image, error) { return FromReader("text", bytes.NewReader([]byte("plain text, not pixels"))) }, ErrFormat},
		// Signature plus IHDR is enough to identify the format but carries no pixels.
		{"truncated data", func() (Image, error) { return FromReader("cut.png", bytes.NewReader(full[:33])) }, ErrDecode},
	}
	kinds := []error{ErrOpen, ErrFormat, ErrDecode}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.load()
			if err == nil {
				t.Fatalf("expected an error")
			}
			for _, k := range kinds {
				if got, want := errors.Is(err, k), k == tc.kind; got != want {
					t.Fatalf("errors.Is(%v, %v) = %v, want %v", err, k, got, want)
				}
			}
			var se *SourceError
			if !errors.As(err, &se) || se.Source == "" {
				t.Fatalf("expected a *SourceError with a source, got %T", err)
			}
		})
	}
}
