package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
)

func TestFrame_AtSet_BGR(t *testing.T) {
	f := NewFrame(2, 1, BGR)
	f.Set(0, 0, color.RGBA{R: 255, A: 255})

	// Red is stored last in BGR layout.
	if f.Pix[0] != 0 || f.Pix[2] != 255 {
		t.Errorf("expected BGR layout [0 0 255], got %v", f.Pix[:3])
	}

	got := f.At(0, 0).(color.RGBA)
	if got.R != 255 || got.G != 0 || got.B != 0 {
		t.Errorf("expected red in display colors, got %+v", got)
	}
}

func TestFrame_Convert(t *testing.T) {
	bgr := &Frame{Pix: []byte{10, 20, 30, 40, 50, 60}, Width: 2, Height: 1, Order: BGR}

	rgb := bgr.Convert(RGB)

	if rgb.Order != RGB {
		t.Fatalf("expected RGB order, got %s", rgb.Order)
	}
	expected := []byte{30, 20, 10, 60, 50, 40}
	if !bytes.Equal(rgb.Pix, expected) {
		t.Errorf("expected %v, got %v", expected, rgb.Pix)
	}
	// Original is untouched.
	if bgr.Pix[0] != 10 {
		t.Errorf("expected source frame unchanged, got %v", bgr.Pix)
	}
	// Display colors survive the conversion.
	if bgr.At(1, 0) != rgb.At(1, 0) {
		t.Errorf("display color changed: %v vs %v", bgr.At(1, 0), rgb.At(1, 0))
	}
}

func TestFrame_ConvertSameOrder(t *testing.T) {
	f := &Frame{Pix: []byte{1, 2, 3}, Width: 1, Height: 1, Order: RGB}

	out := f.Convert(RGB)

	if !bytes.Equal(out.Pix, f.Pix) {
		t.Errorf("expected identical pixels, got %v", out.Pix)
	}
	out.Pix[0] = 99
	if f.Pix[0] != 1 {
		t.Error("expected Convert to return a copy")
	}
}

func TestFrame_Downscale(t *testing.T) {
	f := NewFrame(640, 480, BGR)

	small := f.Downscale(0.25)

	if small.Width != 160 || small.Height != 120 {
		t.Errorf("expected 160x120, got %dx%d", small.Width, small.Height)
	}
	if small.Order != BGR {
		t.Errorf("expected order preserved, got %s", small.Order)
	}
}

func TestFrame_DownscaleKeepsColor(t *testing.T) {
	f := NewFrame(8, 8, BGR)
	for y := range 8 {
		for x := range 8 {
			f.Set(x, y, color.RGBA{R: 200, G: 100, B: 50, A: 255})
		}
	}

	small := f.Downscale(0.5)

	got := small.At(1, 1).(color.RGBA)
	if got.R != 200 || got.G != 100 || got.B != 50 {
		t.Errorf("expected uniform color to survive scaling, got %+v", got)
	}
}

func TestFrame_DownscaleInvalidFactor(t *testing.T) {
	f := NewFrame(10, 10, RGB)

	for _, factor := range []float64{0, -1, 1, 2} {
		out := f.Downscale(factor)
		if out.Width != 10 || out.Height != 10 {
			t.Errorf("factor %v: expected unchanged size, got %dx%d", factor, out.Width, out.Height)
		}
	}
}

func TestDecode_PNG(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 3, 2))
	img.Set(2, 1, color.RGBA{R: 1, G: 2, B: 3, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}

	f, err := Decode(buf.Bytes())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if f.Width != 3 || f.Height != 2 || f.Order != RGB {
		t.Fatalf("unexpected frame %dx%d %s", f.Width, f.Height, f.Order)
	}
	if got := f.At(2, 1).(color.RGBA); got.R != 1 || got.G != 2 || got.B != 3 {
		t.Errorf("unexpected pixel %+v", got)
	}
}

func TestDecode_Invalid(t *testing.T) {
	if _, err := Decode([]byte("not an image")); err == nil {
		t.Error("expected error for invalid data")
	}
}

func TestJPEGBytes(t *testing.T) {
	data, err := JPEGBytes(NewFrame(16, 16, BGR), 80)
	if err != nil {
		t.Fatalf("JPEGBytes: %v", err)
	}
	if len(data) < 3 || data[0] != 0xFF || data[1] != 0xD8 {
		t.Error("expected JPEG magic bytes")
	}
}

func TestAnnotate(t *testing.T) {
	f := NewFrame(100, 100, BGR)

	Annotate(f, []Annotation{
		{Box: image.Rect(10, 10, 40, 40), Label: "Alice", Known: true},
		{Box: image.Rect(50, 10, 80, 40), Label: "Unknown", Known: false},
	})

	if got := f.At(10, 10); got != KnownColor {
		t.Errorf("expected known box corner to be green, got %v", got)
	}
	if got := f.At(11, 20); got != KnownColor {
		t.Errorf("expected 2px known border, got %v", got)
	}
	if got := f.At(20, 20); got != (color.RGBA{A: 255}) {
		t.Errorf("expected box interior untouched, got %v", got)
	}
	if got := f.At(79, 39); got != UnknownColor {
		t.Errorf("expected unknown box corner to be red, got %v", got)
	}

	// Label is drawn below the box.
	labelPixels := 0
	for y := 41; y < 64; y++ {
		for x := 10; x < 50; x++ {
			if f.At(x, y) == KnownColor {
				labelPixels++
			}
		}
	}
	if labelPixels == 0 {
		t.Error("expected label pixels below the known box")
	}
}

func TestAnnotate_BoxOutsideFrame(t *testing.T) {
	f := NewFrame(10, 10, RGB)

	// Should not panic
	Annotate(f, []Annotation{{Box: image.Rect(50, 50, 60, 60), Label: "x"}})
}
