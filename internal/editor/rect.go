package editor

import "image"

// Rect is an axis-aligned rectangle stored by its edges.
// Screen space and pixel space share the shape; units differ.
type Rect struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
}

// RectFromCenter builds a rect of the given size centered at (cx, cy).
func RectFromCenter(cx, cy, w, h float64) Rect {
	return Rect{
		Left:   cx - w/2,
		Top:    cy - h/2,
		Right:  cx + w/2,
		Bottom: cy + h/2,
	}
}

// Width returns the horizontal extent.
func (r Rect) Width() float64 { return r.Right - r.Left }

// Height returns the vertical extent.
func (r Rect) Height() float64 { return r.Bottom - r.Top }

// CenterX returns the horizontal center.
func (r Rect) CenterX() float64 { return (r.Left + r.Right) / 2 }

// CenterY returns the vertical center.
func (r Rect) CenterY() float64 { return (r.Top + r.Bottom) / 2 }

// IsEmpty reports whether the rect has zero or negative area.
func (r Rect) IsEmpty() bool {
	return r.Left >= r.Right || r.Top >= r.Bottom
}

// Offset returns the rect translated by (dx, dy).
func (r Rect) Offset(dx, dy float64) Rect {
	return Rect{
		Left:   r.Left + dx,
		Top:    r.Top + dy,
		Right:  r.Right + dx,
		Bottom: r.Bottom + dy,
	}
}

// Contains checks if a point is inside the rect (edges inclusive on the
// leading side, exclusive on the trailing side).
func (r Rect) Contains(x, y float64) bool {
	return !r.IsEmpty() && x >= r.Left && x < r.Right && y >= r.Top && y < r.Bottom
}

// ContainsRect reports whether other lies fully inside r, edges inclusive.
func (r Rect) ContainsRect(other Rect) bool {
	return other.Left >= r.Left && other.Right <= r.Right &&
		other.Top >= r.Top && other.Bottom <= r.Bottom
}

// PixelRect is an integer rectangle in source-image pixel space.
type PixelRect struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// Rectangle converts to an image.Rectangle.
func (p PixelRect) Rectangle() image.Rectangle {
	return image.Rect(p.X, p.Y, p.X+p.W, p.Y+p.H)
}

// Size is a viewport size in screen pixels.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// IsEmpty reports whether either dimension is non-positive.
func (s Size) IsEmpty() bool {
	return s.Width <= 0 || s.Height <= 0
}
