package facematch

import (
	"image"
	"math"
)

// Overlap is the intersection over union of two face boxes, 0 when they do
// not touch or either is empty.
func Overlap(a, b image.Rectangle) float64 {
	inter := a.Intersect(b)
	if inter.Empty() {
		return 0
	}
	ia := area(inter)
	union := area(a) + area(b) - ia
	if union <= 0 {
		return 0
	}
	return ia / union
}

func area(r image.Rectangle) float64 {
	return float64(r.Dx()) * float64(r.Dy())
}

// RectToBBox converts r to the [x1, y1, x2, y2] form used on the wire.
func RectToBBox(r image.Rectangle) []float64 {
	return []float64{float64(r.Min.X), float64(r.Min.Y), float64(r.Max.X), float64(r.Max.Y)}
}

// BBoxToRect is the inverse of RectToBBox, rounding to whole pixels. Anything
// but four coordinates yields the zero rectangle.
func BBoxToRect(bbox []float64) image.Rectangle {
	if len(bbox) != 4 {
		return image.Rectangle{}
	}
	return image.Rect(round(bbox[0]), round(bbox[1]), round(bbox[2]), round(bbox[3]))
}

// ScaleRect maps a box found on a downscaled frame back by multiplying every
// coordinate by scale.
func ScaleRect(r image.Rectangle, scale float64) image.Rectangle {
	return image.Rectangle{
		Min: image.Pt(round(float64(r.Min.X)*scale), round(float64(r.Min.Y)*scale)),
		Max: image.Pt(round(float64(r.Max.X)*scale), round(float64(r.Max.Y)*scale)),
	}
}

func round(v float64) int { return int(math.Round(v)) }
