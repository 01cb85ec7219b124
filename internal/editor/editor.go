// Package editor implements the geometric core of the image editor: the
// view transform, projection and on-screen image bounds, the crop overlay
// gesture state machine, the mapping from crop overlay to source pixels, and
// bounded undo/redo history.
package editor

import (
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

var (
	ErrNoImage        = errors.New("no image loaded")
	ErrDegenerateCrop = errors.New("degenerate crop rectangle")
	ErrNotCropping    = errors.New("crop mode is not active")
)

// LoadToken identifies one asynchronous image load. A result carrying a
// token older than the editor's current one is stale and must be dropped.
type LoadToken uint64

// Editor is the interactive editing state for one image. It owns the image,
// the view transform, the crop overlay and the undo history, and posts a
// RenderUpdate after every change that affects what is drawn.
//
// An Editor is not safe for concurrent use; a single goroutine owns it.
type Editor struct {
	// Image state
	img          *image.NRGBA
	imageVersion uint64
	generation   uint64

	// View state
	viewport Size
	view     ViewTransform
	filter   FilterMode

	// Crop state
	cropping bool
	overlay  *CropOverlay

	// Pan gesture outside crop mode
	panning      bool
	lastX, lastY float64

	history  *History
	modified bool

	mailbox *Mailbox
	seq     uint64
}

// New creates an empty editor.
func New() *Editor {
	return &Editor{
		view:    IdentityView(),
		overlay: NewCropOverlay(),
		history: NewHistory(),
		mailbox: NewMailbox(),
	}
}

// --- Image lifecycle ---

// BeginLoad starts a new load and returns its token. Any earlier token
// becomes stale.
func (e *Editor) BeginLoad() LoadToken {
	e.generation++
	return LoadToken(e.generation)
}

// Valid reports whether a load started with token may still be applied.
func (e *Editor) Valid(token LoadToken) bool {
	return uint64(token) == e.generation
}

// Invalidate makes every outstanding token stale, e.g. when the user
// navigates away while a decode is in flight.
func (e *Editor) Invalidate() {
	e.generation++
}

// AcceptImage installs a decoded image if token is still current. A fresh
// image starts with a clean history and an untransformed view.
func (e *Editor) AcceptImage(token LoadToken, img image.Image) bool {
	if !e.Valid(token) || img == nil {
		return false
	}

	nrgba, ok := img.(*image.NRGBA)
	if !ok || nrgba.Rect.Min != (image.Point{}) {
		nrgba = imaging.Clone(img)
	}

	e.img = nrgba
	e.imageVersion++
	e.view = IdentityView()
	e.filter = FilterNone
	e.cropping = false
	e.overlay.PointerUp()
	e.history.Clear()
	e.modified = false
	e.post()
	return true
}

// SetImage loads img synchronously.
func (e *Editor) SetImage(img image.Image) {
	e.AcceptImage(e.BeginLoad(), img)
}

// --- Commands ---

// SetViewport records the viewport size in screen pixels.
func (e *Editor) SetViewport(width, height int) {
	e.viewport = Size{Width: float64(width), Height: float64(height)}
	if e.cropping {
		e.refreshBounds()
	}
	e.post()
}

// BeginZoom marks the start of a zoom gesture.
func (e *Editor) BeginZoom() {
	if e.cropping || e.img == nil {
		return
	}
	e.RecordBeforeAction(false)
}

// Zoom scales the view by factor. Ignored while cropping.
func (e *Editor) Zoom(factor float64) bool {
	if e.cropping || e.img == nil {
		return false
	}
	e.view.ApplyZoom(factor)
	e.post()
	return true
}

// Pan moves the view by a screen-pixel delta. Ignored while cropping.
func (e *Editor) Pan(dx, dy float64) bool {
	if e.cropping || e.img == nil {
		return false
	}
	e.view.ApplyPan(dx/PanDivisor, -dy/PanDivisor)
	e.post()
	return true
}

// SetFilter records history and switches the color filter.
func (e *Editor) SetFilter(mode FilterMode) error {
	if !mode.Valid() {
		return fmt.Errorf("set filter: invalid mode %d", int(mode))
	}
	if e.cropping {
		return nil
	}
	e.RecordBeforeAction(false)
	e.filter = mode
	e.post()
	return nil
}

// SetTargetAspectRatio records history and changes the framing ratio used
// by the renderer and by Export. A ratio that is not positive and finite
// restores the source ratio.
func (e *Editor) SetTargetAspectRatio(ratio float64) {
	if !usableRatio(ratio) {
		ratio = -1
	}
	e.RecordBeforeAction(false)
	e.view.TargetAspectRatio = ratio
	if e.cropping {
		e.refreshBounds()
	}
	e.post()
}

// EnterCrop shows the crop overlay locked to ratio (0 for free-form). On
// first entry the view snaps back to identity placement so the overlay
// frames the whole image; later calls only change the ratio.
func (e *Editor) EnterCrop(ratio float64) error {
	if e.img == nil {
		return ErrNoImage
	}
	e.overlay.SetAspectRatio(ratio)
	if !e.cropping {
		e.cropping = true
		e.panning = false
		e.view.ResetPlacement()
		e.post()
	}
	e.refreshBounds()
	return nil
}

// ExitCrop hides the overlay without applying it.
func (e *Editor) ExitCrop() {
	e.cropping = false
	e.overlay.PointerUp()
}

// PointerDown starts a gesture. In crop mode the overlay decides whether
// to claim it; otherwise a press starts a pan.
func (e *Editor) PointerDown(x, y float64) bool {
	if e.cropping {
		return e.overlay.PointerDown(x, y)
	}
	if e.img == nil {
		return false
	}
	e.panning = true
	e.lastX, e.lastY = x, y
	return true
}

// PointerMove continues the active gesture.
func (e *Editor) PointerMove(x, y float64) bool {
	if e.cropping {
		return e.overlay.PointerMove(x, y)
	}
	if !e.panning {
		return false
	}
	dx, dy := x-e.lastX, y-e.lastY
	e.lastX, e.lastY = x, y
	return e.Pan(dx, dy)
}

// PointerUp ends the active gesture.
func (e *Editor) PointerUp() {
	e.overlay.PointerUp()
	e.panning = false
}

// CommitCrop replaces the image with the selected region. On error the
// image and history are left untouched.
func (e *Editor) CommitCrop() (PixelRect, error) {
	if e.img == nil {
		return PixelRect{}, ErrNoImage
	}
	if !e.cropping {
		return PixelRect{}, ErrNotCropping
	}

	w, h := e.ImageSize()
	bounds := ImageBounds(e.viewport, e.view, e.imageRatio())
	px, err := CropToPixels(e.overlay.CropRect(), bounds, w, h)
	if err != nil {
		return PixelRect{}, fmt.Errorf("commit crop: %w", err)
	}

	e.RecordBeforeAction(true)

	e.img = imaging.Crop(e.img, px.Rectangle())
	e.imageVersion++
	e.view.ResetPlacement()
	e.ExitCrop()
	e.post()
	return px, nil
}

// RecordBeforeAction snapshots the current state onto the undo stack. Pass
// capturePixels for actions that replace the image.
func (e *Editor) RecordBeforeAction(capturePixels bool) {
	e.history.Record(e.capture(capturePixels))
	e.modified = true
}

// Undo restores the previous state. It reports false if there was none.
func (e *Editor) Undo() bool {
	s, ok := e.history.Undo(e.capture)
	if !ok {
		return false
	}
	e.restore(s)
	return true
}

// Redo re-applies an undone state. It reports false if there was none.
func (e *Editor) Redo() bool {
	s, ok := e.history.Redo(e.capture)
	if !ok {
		return false
	}
	e.restore(s)
	return true
}

// Export flattens the current image, filter and view into a new bitmap.
func (e *Editor) Export() (*image.NRGBA, error) {
	if e.img == nil {
		return nil, ErrNoImage
	}
	return Flatten(e.img, e.view, e.filter), nil
}

// MarkSaved clears the modified flag after a successful save.
func (e *Editor) MarkSaved() {
	e.modified = false
}

func (e *Editor) capture(withPixels bool) Snapshot {
	s := Snapshot{View: e.view, Filter: e.filter}
	if withPixels && e.img != nil {
		s.Pixels = Some(e.img)
	}
	return s
}

func (e *Editor) restore(s Snapshot) {
	e.view = s.View
	e.filter = s.Filter
	if img, ok := s.Pixels.Take(); ok {
		e.img = img
		e.imageVersion++
	}
	if e.cropping {
		e.refreshBounds()
	}
	e.modified = true
	e.post()
}

func (e *Editor) refreshBounds() {
	e.overlay.SetImageBounds(ImageBounds(e.viewport, e.view, e.imageRatio()))
}

func (e *Editor) imageRatio() float64 {
	w, h := e.ImageSize()
	if w <= 0 || h <= 0 {
		return 0
	}
	return float64(w) / float64(h)
}

func (e *Editor) post() {
	e.seq++
	e.mailbox.Post(e.RenderUpdate())
}

// --- Queries ---

// Mailbox returns the render hand-off.
func (e *Editor) Mailbox() *Mailbox { return e.mailbox }

// Image returns the current bitmap, or nil.
func (e *Editor) Image() *image.NRGBA { return e.img }

// HasImage reports whether an image is loaded.
func (e *Editor) HasImage() bool { return e.img != nil }

// ImageSize returns the current bitmap's pixel dimensions.
func (e *Editor) ImageSize() (int, int) {
	if e.img == nil {
		return 0, 0
	}
	b := e.img.Bounds()
	return b.Dx(), b.Dy()
}

// Viewport returns the viewport size.
func (e *Editor) Viewport() Size { return e.viewport }

// View returns the view transform.
func (e *Editor) View() ViewTransform { return e.view }

// Filter returns the active filter.
func (e *Editor) Filter() FilterMode { return e.filter }

// Cropping reports whether the crop overlay is active.
func (e *Editor) Cropping() bool { return e.cropping }

// CropRect returns the overlay's crop rectangle.
func (e *Editor) CropRect() Rect { return e.overlay.CropRect() }

// ImageBounds returns where the image currently sits on screen.
func (e *Editor) ImageBounds() Rect {
	return ImageBounds(e.viewport, e.view, e.imageRatio())
}

// HitTest reports what a press at (x, y) would grab in crop mode.
func (e *Editor) HitTest(x, y float64) DragMode {
	if !e.cropping {
		return DragIdle
	}
	return e.overlay.HitTest(x, y)
}

// Modified reports whether there are unsaved edits.
func (e *Editor) Modified() bool { return e.modified }

// History returns the undo/redo stacks.
func (e *Editor) History() *History { return e.history }

// Projection returns the current orthographic extent and whether it could
// be computed.
func (e *Editor) Projection() (Projection, bool) {
	return ComputeProjection(int(e.viewport.Width), int(e.viewport.Height), e.imageRatio(), e.view.TargetAspectRatio)
}

// RenderUpdate builds the renderer's view of the current state.
func (e *Editor) RenderUpdate() RenderUpdate {
	proj, _ := e.Projection()
	view := e.view.ViewMatrix()
	w, h := e.ImageSize()
	return RenderUpdate{
		Seq:          e.seq,
		View:         view,
		Projection:   proj,
		MVP:          proj.Matrix().Multiply(view),
		Filter:       e.filter,
		ImageVersion: e.imageVersion,
		ImageWidth:   w,
		ImageHeight:  h,
	}
}

// State is a serializable summary of the editor for clients.
type State struct {
	HasImage    bool          `json:"hasImage"`
	ImageWidth  int           `json:"imageWidth"`
	ImageHeight int           `json:"imageHeight"`
	Viewport    Size          `json:"viewport"`
	View        ViewTransform `json:"view"`
	Filter      FilterMode    `json:"filter"`
	Cropping    bool          `json:"cropping"`
	CropRect    *Rect         `json:"cropRect,omitempty"`
	ImageBounds Rect          `json:"imageBounds"`
	AspectRatio float64       `json:"aspectRatio"`
	DragMode    DragMode      `json:"dragMode"`
	UndoDepth   int           `json:"undoDepth"`
	RedoDepth   int           `json:"redoDepth"`
	Modified    bool          `json:"modified"`
}

// State returns the current State.
func (e *Editor) State() State {
	w, h := e.ImageSize()
	undo, redo := e.history.Depths()
	s := State{
		HasImage:    e.img != nil,
		ImageWidth:  w,
		ImageHeight: h,
		Viewport:    e.viewport,
		View:        e.view,
		Filter:      e.filter,
		Cropping:    e.cropping,
		ImageBounds: e.ImageBounds(),
		AspectRatio: e.overlay.AspectRatio(),
		DragMode:    e.overlay.Mode(),
		UndoDepth:   undo,
		RedoDepth:   redo,
		Modified:    e.modified,
	}
	if e.cropping {
		r := e.overlay.CropRect()
		s.CropRect = &r
	}
	return s
}
