// Package imaging holds the packed frame type passed between capture sources,
// embedding providers and annotation, plus the conversions between them.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	_ "image/png" // register decoder
	"io"

	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // register decoder
)

// ChannelOrder is the byte layout of one pixel in a Frame.
type ChannelOrder int

const (
	RGB ChannelOrder = iota
	BGR
)

func (o ChannelOrder) String() string {
	switch o {
	case RGB:
		return "rgb"
	case BGR:
		return "bgr"
	default:
		return fmt.Sprintf("ChannelOrder(%d)", int(o))
	}
}

// Frame is a packed 3-byte-per-pixel image. Camera and video sources usually
// produce BGR frames, decoded files produce RGB. Frame implements draw.Image,
// At and Set always speak display colors regardless of Order.
type Frame struct {
	Pix    []byte
	Width  int
	Height int
	Order  ChannelOrder
}

// NewFrame allocates a black frame.
func NewFrame(width, height int, order ChannelOrder) *Frame {
	return &Frame{
		Pix:    make([]byte, width*height*3),
		Width:  width,
		Height: height,
		Order:  order,
	}
}

func (f *Frame) ColorModel() color.Model { return color.RGBAModel }

func (f *Frame) Bounds() image.Rectangle { return image.Rect(0, 0, f.Width, f.Height) }

func (f *Frame) offset(x, y int) int { return (y*f.Width + x) * 3 }

func (f *Frame) At(x, y int) color.Color {
	if x < 0 || y < 0 || x >= f.Width || y >= f.Height {
		return color.RGBA{}
	}
	i := f.offset(x, y)
	if f.Order == BGR {
		return color.RGBA{R: f.Pix[i+2], G: f.Pix[i+1], B: f.Pix[i], A: 0xff}
	}
	return color.RGBA{R: f.Pix[i], G: f.Pix[i+1], B: f.Pix[i+2], A: 0xff}
}

func (f *Frame) Set(x, y int, c color.Color) {
	if x < 0 || y < 0 || x >= f.Width || y >= f.Height {
		return
	}
	rgba := color.RGBAModel.Convert(c).(color.RGBA)
	i := f.offset(x, y)
	if f.Order == BGR {
		f.Pix[i], f.Pix[i+1], f.Pix[i+2] = rgba.B, rgba.G, rgba.R
		return
	}
	f.Pix[i], f.Pix[i+1], f.Pix[i+2] = rgba.R, rgba.G, rgba.B
}

// Clone returns a deep copy.
func (f *Frame) Clone() *Frame {
	pix := make([]byte, len(f.Pix))
	copy(pix, f.Pix)
	return &Frame{Pix: pix, Width: f.Width, Height: f.Height, Order: f.Order}
}

// Convert returns a copy of the frame laid out in the requested channel order.
// Display colors are unchanged.
func (f *Frame) Convert(order ChannelOrder) *Frame {
	out := f.Clone()
	if f.Order == order {
		return out
	}
	for i := 0; i+2 < len(out.Pix); i += 3 {
		out.Pix[i], out.Pix[i+2] = out.Pix[i+2], out.Pix[i]
	}
	out.Order = order
	return out
}

// Downscale resizes the frame by factor using bilinear interpolation.
// Factors outside (0, 1) return a copy of the original.
func (f *Frame) Downscale(factor float64) *Frame {
	if factor <= 0 || factor >= 1 {
		return f.Clone()
	}
	w := max(1, int(float64(f.Width)*factor))
	h := max(1, int(float64(f.Height)*factor))

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), f, f.Bounds(), xdraw.Src, nil)
	return FromImage(dst, f.Order)
}

// FromImage copies any image into a Frame with the given channel order.
func FromImage(img image.Image, order ChannelOrder) *Frame {
	b := img.Bounds()
	f := NewFrame(b.Dx(), b.Dy(), order)
	if rgba, ok := img.(*image.RGBA); ok {
		for y := range f.Height {
			row := rgba.Pix[(y+b.Min.Y-rgba.Rect.Min.Y)*rgba.Stride+(b.Min.X-rgba.Rect.Min.X)*4:]
			for x := range f.Width {
				f.Set(x, y, color.RGBA{R: row[x*4], G: row[x*4+1], B: row[x*4+2], A: 0xff})
			}
		}
		return f
	}
	for y := range f.Height {
		for x := range f.Width {
			f.Set(x, y, img.At(b.Min.X+x, b.Min.Y+y))
		}
	}
	return f
}

// Decode reads a JPEG, PNG or WebP image into an RGB frame.
func Decode(data []byte) (*Frame, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return FromImage(img, RGB), nil
}

// EncodeJPEG writes the frame as a JPEG in display colors.
func EncodeJPEG(w io.Writer, f *Frame, quality int) error {
	if err := jpeg.Encode(w, f, &jpeg.Options{Quality: quality}); err != nil {
		return fmt.Errorf("encode jpeg: %w", err)
	}
	return nil
}

// JPEGBytes is a convenience wrapper around EncodeJPEG.
func JPEGBytes(f *Frame, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := EncodeJPEG(&buf, f, quality); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
