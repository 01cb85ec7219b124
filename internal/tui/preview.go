package tui

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/disintegration/imaging"

	"github.com/pixedit/pixedit/internal/editor"
)

// unitsPerPixel is the number of editor screen units covered by one preview
// pixel. A terminal cell holds two preview pixels stacked vertically.
const unitsPerPixel = 8

var (
	background  = color.NRGBA{R: 24, G: 24, B: 24, A: 255}
	overlayLine = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
)

type previewKey struct {
	version uint64
	filter  editor.FilterMode
	w, h    int
}

// previewCache holds the filtered source resized to its on-screen size.
type previewCache struct {
	key previewKey
	img *image.NRGBA
}

func (c *previewCache) fit(src image.Image, key previewKey) *image.NRGBA {
	if c.img != nil && c.key == key {
		return c.img
	}
	c.key = key
	c.img = imaging.Resize(editor.ApplyFilter(src, key.filter), key.w, key.h, imaging.Box)
	return c.img
}

// frame samples one composed preview: the fitted image at its bounds on a
// dark background, with the crop overlay on top.
type frame struct {
	img      *image.NRGBA
	left     int
	top      int
	cropping bool
	crop     editor.Rect
}

func newFrame(ed *editor.Editor, cache *previewCache, update editor.RenderUpdate) frame {
	f := frame{cropping: ed.Cropping(), crop: ed.CropRect()}
	if !ed.HasImage() {
		return f
	}

	b := ed.ImageBounds()
	f.left = int(math.Round(b.Left / unitsPerPixel))
	f.top = int(math.Round(b.Top / unitsPerPixel))
	w := int(math.Round(b.Right/unitsPerPixel)) - f.left
	h := int(math.Round(b.Bottom/unitsPerPixel)) - f.top
	if w <= 0 || h <= 0 {
		return f
	}
	f.img = cache.fit(ed.Image(), previewKey{version: update.ImageVersion, filter: update.Filter, w: w, h: h})
	return f
}

// pixel returns the color of preview pixel (px, py).
func (f frame) pixel(px, py int) color.NRGBA {
	c := background
	if f.img != nil {
		x, y := px-f.left, py-f.top
		if image.Pt(x, y).In(f.img.Rect) {
			c = over(f.img.NRGBAAt(x, y), background)
		}
	}
	if !f.cropping {
		return c
	}

	// Sample at the pixel center in editor units.
	ux := float64(px*unitsPerPixel) + unitsPerPixel/2
	uy := float64(py*unitsPerPixel) + unitsPerPixel/2
	r := f.crop

	for _, corner := range [][2]float64{{r.Left, r.Top}, {r.Right, r.Top}, {r.Right, r.Bottom}, {r.Left, r.Bottom}} {
		if math.Hypot(ux-corner[0], uy-corner[1]) <= 20 {
			return overlayLine
		}
	}
	near := func(v, edge float64) bool { return math.Abs(v-edge) <= unitsPerPixel/2 }
	inX := ux >= r.Left-unitsPerPixel/2 && ux <= r.Right+unitsPerPixel/2
	inY := uy >= r.Top-unitsPerPixel/2 && uy <= r.Bottom+unitsPerPixel/2
	if (inY && (near(ux, r.Left) || near(ux, r.Right))) || (inX && (near(uy, r.Top) || near(uy, r.Bottom))) {
		return overlayLine
	}
	if !r.Contains(ux, uy) {
		c = dim(c)
	}
	return c
}

// render draws cols×rows terminal cells with upper half blocks.
func (f frame) render(cols, rows int) string {
	var sb strings.Builder
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			top := f.pixel(col, row*2)
			bottom := f.pixel(col, row*2+1)
			sb.WriteString(lipgloss.NewStyle().
				Foreground(lipgloss.Color(hex(top))).
				Background(lipgloss.Color(hex(bottom))).
				Render("▀"))
		}
		if row < rows-1 {
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

func over(c, bg color.NRGBA) color.NRGBA {
	if c.A == 255 {
		return c
	}
	a := float64(c.A) / 255
	mix := func(fg, b uint8) uint8 { return uint8(float64(fg)*a + float64(b)*(1-a) + 0.5) }
	return color.NRGBA{R: mix(c.R, bg.R), G: mix(c.G, bg.G), B: mix(c.B, bg.B), A: 255}
}

// dim matches the overlay's two-thirds black veil.
func dim(c color.NRGBA) color.NRGBA {
	return color.NRGBA{R: c.R / 3, G: c.G / 3, B: c.B / 3, A: c.A}
}

func hex(c color.NRGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}
