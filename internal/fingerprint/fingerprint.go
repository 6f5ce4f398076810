// Package fingerprint computes perceptual hashes used to spot near-duplicate
// enrollment photos.
package fingerprint

import (
	"fmt"
	"image"
	"math/bits"

	"golang.org/x/image/draw"
)

// DHash computes a 64-bit difference hash: the image is shrunk to 9x8 grayscale
// and each bit records whether a pixel is brighter than its right neighbour.
func DHash(img image.Image) uint64 {
	small := image.NewGray(image.Rect(0, 0, 9, 8))
	draw.BiLinear.Scale(small, small.Bounds(), img, img.Bounds(), draw.Src, nil)

	var hash uint64
	for y := range 8 {
		for x := range 8 {
			hash <<= 1
			if small.GrayAt(x, y).Y > small.GrayAt(x+1, y).Y {
				hash |= 1
			}
		}
	}
	return hash
}

// Hex formats a hash the way it is logged and returned by the API.
func Hex(hash uint64) string {
	return fmt.Sprintf("%016x", hash)
}

// HammingDistance counts the differing bits of two hashes.
func HammingDistance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

// Similar returns true if two hashes are within threshold bits of each other.
func Similar(a, b uint64, threshold int) bool {
	return HammingDistance(a, b) <= threshold
}
