package editor

import (
	"fmt"
	"math"
)

// CropToPixels maps a screen-space crop rect back to source pixels. bounds
// must come from ImageBounds for the same viewport and view. The scale is
// taken from the horizontal axis only; bounds are never distorted.
func CropToPixels(crop, bounds Rect, imgW, imgH int) (PixelRect, error) {
	if imgW <= 0 || imgH <= 0 || bounds.IsEmpty() {
		return PixelRect{}, ErrNoImage
	}

	pxPerUnit := float64(imgW) / bounds.Width()

	x := max(0, int(math.Round((crop.Left-bounds.Left)*pxPerUnit)))
	y := max(0, int(math.Round((crop.Top-bounds.Top)*pxPerUnit)))

	// A crop starting beyond the far edge would leave nothing to keep.
	x = min(x, imgW)
	y = min(y, imgH)

	w := min(imgW-x, int(math.Round(crop.Width()*pxPerUnit)))
	h := min(imgH-y, int(math.Round(crop.Height()*pxPerUnit)))

	if w <= 0 || h <= 0 {
		return PixelRect{}, fmt.Errorf("%w: %dx%d at (%d,%d)", ErrDegenerateCrop, w, h, x, y)
	}
	return PixelRect{X: x, Y: y, W: w, H: h}, nil
}
