package imaging

import (
	"image"
	"image/color"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

var (
	KnownColor   = color.RGBA{G: 0xff, A: 0xff}
	UnknownColor = color.RGBA{R: 0xff, A: 0xff}
)

const (
	boxThickness = 2
	labelOffset  = 20 // label baseline below the box bottom
)

// Annotation is a labeled face box in full-resolution frame coordinates.
type Annotation struct {
	Box   image.Rectangle `json:"box"`
	Label string          `json:"label"`
	Known bool            `json:"known"`
}

// Annotate draws boxes and labels onto f in place.
func Annotate(f *Frame, annotations []Annotation) {
	for _, a := range annotations {
		c := UnknownColor
		if a.Known {
			c = KnownColor
		}
		drawRect(f, a.Box, c)
		drawLabel(f, a.Box.Min.X, a.Box.Max.Y+labelOffset, a.Label, c)
	}
}

func drawRect(f *Frame, r image.Rectangle, c color.Color) {
	r = r.Canon().Intersect(f.Bounds())
	if r.Empty() {
		return
	}
	for t := range boxThickness {
		for x := r.Min.X; x < r.Max.X; x++ {
			f.Set(x, r.Min.Y+t, c)
			f.Set(x, r.Max.Y-1-t, c)
		}
		for y := r.Min.Y; y < r.Max.Y; y++ {
			f.Set(r.Min.X+t, y, c)
			f.Set(r.Max.X-1-t, y, c)
		}
	}
}

func drawLabel(f *Frame, x, y int, label string, c color.Color) {
	if label == "" {
		return
	}
	d := &font.Drawer{
		Dst:  f,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(label)
}
