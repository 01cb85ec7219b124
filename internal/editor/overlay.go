package editor

import "math"

const (
	// TouchThreshold is the corner grab radius in screen units.
	TouchThreshold = 60.0

	// MinCropSize is the smallest crop width or height in screen units.
	MinCropSize = 100.0

	defaultCropFraction = 0.8
)

// DragMode is the state of the crop gesture.
type DragMode int

const (
	DragIdle DragMode = iota
	DragMove
	DragTopLeft
	DragTopRight
	DragBottomRight
	DragBottomLeft
)

var dragModeNames = [...]string{
	DragIdle:        "idle",
	DragMove:        "move",
	DragTopLeft:     "resize-top-left",
	DragTopRight:    "resize-top-right",
	DragBottomRight: "resize-bottom-right",
	DragBottomLeft:  "resize-bottom-left",
}

func (m DragMode) String() string {
	if m < 0 || int(m) >= len(dragModeNames) {
		return "unknown"
	}
	return dragModeNames[m]
}

// MarshalText implements encoding.TextMarshaler.
func (m DragMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// anchorsTop reports whether the dragged corner sits on the top edge.
func (m DragMode) anchorsTop() bool {
	return m == DragTopLeft || m == DragTopRight
}

// anchorsLeft reports whether the dragged corner sits on the left edge.
func (m DragMode) anchorsLeft() bool {
	return m == DragTopLeft || m == DragBottomLeft
}

// CropOverlay owns the crop rectangle in screen space and interprets pointer
// gestures into moves and resizes. Constraint violations are absorbed by
// keeping the last valid rectangle.
type CropOverlay struct {
	cropRect    Rect
	imageBounds Rect
	aspectRatio float64

	mode         DragMode
	lastX, lastY float64
}

// NewCropOverlay returns an idle overlay with free aspect ratio.
func NewCropOverlay() *CropOverlay {
	return &CropOverlay{}
}

// CropRect returns a copy of the current crop rectangle.
func (o *CropOverlay) CropRect() Rect { return o.cropRect }

// ImageBounds returns the containment bounds.
func (o *CropOverlay) ImageBounds() Rect { return o.imageBounds }

// AspectRatio returns the locked ratio, 0 for free-form.
func (o *CropOverlay) AspectRatio() float64 { return o.aspectRatio }

// Mode returns the current drag state.
func (o *CropOverlay) Mode() DragMode { return o.mode }

// SetImageBounds replaces the containment bounds and resets the crop rect.
func (o *CropOverlay) SetImageBounds(r Rect) {
	o.imageBounds = r
	o.reset()
}

// SetAspectRatio locks the crop to ratio and resets the crop rect. Any
// ratio that is not positive and finite means free-form.
func (o *CropOverlay) SetAspectRatio(ratio float64) {
	if !usableRatio(ratio) {
		ratio = 0
	}
	o.aspectRatio = ratio
	o.reset()
}

func (o *CropOverlay) reset() {
	if o.imageBounds.IsEmpty() {
		return
	}

	imgW := o.imageBounds.Width()
	imgH := o.imageBounds.Height()

	var w, h float64
	switch {
	case o.aspectRatio == 0:
		w = imgW * defaultCropFraction
		h = imgH * defaultCropFraction
	case imgW/imgH > o.aspectRatio:
		// Bounds wider than the ratio: height limits.
		h = imgH * defaultCropFraction
		w = h * o.aspectRatio
	default:
		w = imgW * defaultCropFraction
		h = w / o.aspectRatio
	}

	o.cropRect = RectFromCenter(o.imageBounds.CenterX(), o.imageBounds.CenterY(), w, h)
}

// PointerDown classifies a press and starts a gesture. It returns false when
// the press is not claimed and should fall through to pan/zoom handling.
func (o *CropOverlay) PointerDown(x, y float64) bool {
	o.lastX, o.lastY = x, y
	o.mode = o.HitTest(x, y)
	return o.mode != DragIdle
}

// HitTest reports which gesture a press at (x, y) would start. Corners are
// tested before the interior, in TL, TR, BR, BL order.
func (o *CropOverlay) HitTest(x, y float64) DragMode {
	r := o.cropRect
	switch {
	case dist(x, y, r.Left, r.Top) < TouchThreshold:
		return DragTopLeft
	case dist(x, y, r.Right, r.Top) < TouchThreshold:
		return DragTopRight
	case dist(x, y, r.Right, r.Bottom) < TouchThreshold:
		return DragBottomRight
	case dist(x, y, r.Left, r.Bottom) < TouchThreshold:
		return DragBottomLeft
	case r.Contains(x, y):
		return DragMove
	default:
		return DragIdle
	}
}

// PointerMove feeds an absolute pointer position. It returns false when no
// gesture is active.
func (o *CropOverlay) PointerMove(x, y float64) bool {
	if o.mode == DragIdle {
		return false
	}
	dx, dy := x-o.lastX, y-o.lastY
	o.lastX, o.lastY = x, y
	o.DragBy(dx, dy)
	return true
}

// PointerUp ends any gesture.
func (o *CropOverlay) PointerUp() {
	o.mode = DragIdle
}

// DragBy applies one delta of the active gesture.
func (o *CropOverlay) DragBy(dx, dy float64) {
	switch o.mode {
	case DragIdle:
		return
	case DragMove:
		o.move(dx, dy)
	default:
		o.resize(dx, dy)
	}
}

func (o *CropOverlay) move(dx, dy float64) {
	next := o.cropRect.Offset(dx, dy)
	if o.imageBounds.ContainsRect(next) {
		o.cropRect = next
	}
}

func (o *CropOverlay) resize(dx, dy float64) {
	next := o.cropRect

	switch o.mode {
	case DragTopLeft:
		next.Left += dx
		next.Top += dy
	case DragTopRight:
		next.Right += dx
		next.Top += dy
	case DragBottomRight:
		next.Right += dx
		next.Bottom += dy
	case DragBottomLeft:
		next.Left += dx
		next.Bottom += dy
	}

	if o.aspectRatio > 0 {
		// The driving axis is chosen per event, not per gesture.
		if math.Abs(dx) > math.Abs(dy) {
			h := next.Width() / o.aspectRatio
			if o.mode.anchorsTop() {
				next.Top = next.Bottom - h
			} else {
				next.Bottom = next.Top + h
			}
		} else {
			w := next.Height() * o.aspectRatio
			if o.mode.anchorsLeft() {
				next.Left = next.Right - w
			} else {
				next.Right = next.Left + w
			}
		}
	}

	if next.Width() < MinCropSize || next.Height() < MinCropSize {
		return
	}
	if !o.imageBounds.ContainsRect(next) {
		return
	}
	o.cropRect = next
}

// usableRatio rejects zero, negatives, NaN and infinity.
func usableRatio(r float64) bool {
	return r > 0 && !math.IsInf(r, 1)
}

func dist(x1, y1, x2, y2 float64) float64 {
	return math.Hypot(x1-x2, y1-y2)
}
