//go:build linux

package capture

import (
	"image/color"
	"testing"
)

func TestYUYVToBGR(t *testing.T) {
	// Two pixels: white and black, neutral chroma.
	data := []byte{255, 128, 0, 128}

	f := yuyvToBGR(data, 2, 1)

	if got := f.At(0, 0).(color.RGBA); got.R != 255 || got.G != 255 || got.B != 255 {
		t.Errorf("expected white, got %+v", got)
	}
	if got := f.At(1, 0).(color.RGBA); got.R != 0 || got.G != 0 || got.B != 0 {
		t.Errorf("expected black, got %+v", got)
	}
}

func TestYUYVToBGR_ShortBuffer(t *testing.T) {
	// Should not panic on truncated frames
	f := yuyvToBGR([]byte{1, 2}, 4, 4)
	if f.Width != 4 || f.Height != 4 {
		t.Errorf("unexpected size %dx%d", f.Width, f.Height)
	}
}
